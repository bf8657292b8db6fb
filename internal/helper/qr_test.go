package helper

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestQRDataURI(t *testing.T) {
	uri, err := QRDataURI("2@abcdefghij,klmnopqrst,uvwxyz==")
	if err != nil {
		t.Fatalf("QRDataURI: %v", err)
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(uri, prefix) {
		t.Fatalf("missing data URI prefix: %q", uri[:32])
	}

	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, prefix))
	if err != nil {
		t.Fatalf("payload is not valid base64: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatal("payload is not a PNG")
	}
}
