package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// WebhookPayload is the envelope posted to the configured webhook URL for
// every session event.
type WebhookPayload struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// WebhookSender delivers session events to a single configured endpoint,
// signing the body when a secret is set.
type WebhookSender struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookSender returns a sender, or nil when no URL is configured so
// callers can skip the fan-out entirely.
func NewWebhookSender(url, secret string) *WebhookSender {
	if url == "" {
		return nil
	}
	return &WebhookSender{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Send posts the event asynchronously. Delivery is best effort; failures
// are logged and never retried.
func (w *WebhookSender) Send(event string, data interface{}) {
	payload := WebhookPayload{
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("webhook: marshal error: %v", err)
		return
	}

	req, err := http.NewRequest("POST", w.url, bytes.NewReader(body))
	if err != nil {
		log.Printf("webhook: new request error: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	if w.secret != "" {
		mac := hmac.New(sha256.New, []byte(w.secret))
		mac.Write(body)
		req.Header.Set("X-Gowalink-Signature", hex.EncodeToString(mac.Sum(nil)))
	}

	go func() {
		resp, err := w.client.Do(req)
		if err != nil {
			log.Printf("webhook: send error: %v", err)
			return
		}
		_ = resp.Body.Close()
	}()
}
