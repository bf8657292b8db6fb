package helper

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QRDataURI renders a pairing string as a PNG data URI the frontend can
// drop straight into an <img> tag.
func QRDataURI(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("helper: encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
