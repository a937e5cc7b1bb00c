package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

type WebhookVerdict string

const (
	WebhookOK           WebhookVerdict = "ok"
	WebhookBadSignature WebhookVerdict = "bad_signature"
	WebhookMalformed    WebhookVerdict = "malformed"
	WebhookStale        WebhookVerdict = "stale"
)

// WebhookTimestamp accepts both RFC3339 strings and Unix-millisecond numbers,
// since push integrations disagree on the format.
type WebhookTimestamp struct {
	time.Time
}

func (t *WebhookTimestamp) UnmarshalJSON(data []byte) error {
	var timestampMs int64
	if err := json.Unmarshal(data, &timestampMs); err == nil {
		t.Time = time.Unix(0, timestampMs*int64(time.Millisecond))
		return nil
	}

	return json.Unmarshal(data, &t.Time)
}

func (t WebhookTimestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// WebhookPayload is one pushed chat message.
type WebhookPayload struct {
	MessageID string           `json:"message_id"`
	ChatID    string           `json:"chat_id"`
	Text      string           `json:"text"`
	Timestamp WebhookTimestamp `json:"timestamp"`
}

// ValidSignature checks an HMAC-SHA256 hex signature over the raw body using
// constant-time comparison. An optional "sha256=" prefix is tolerated.
func ValidSignature(body []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	// hmac.Equal is constant time; hex-decode mismatches fall out as inequality
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	expectedRaw, _ := hex.DecodeString(expected)
	return hmac.Equal(provided, expectedRaw)
}

// VerifyWebhook centralizes the webhook boundary checks: signature over the
// raw body, payload shape, and event freshness. The signature is checked
// before anything is parsed, so malformed bodies with bad signatures are
// still rejected as unauthenticated.
func VerifyWebhook(body []byte, signature, secret string, now time.Time, freshness time.Duration) (*WebhookPayload, WebhookVerdict) {
	if !ValidSignature(body, signature, secret) {
		return nil, WebhookBadSignature
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, WebhookMalformed
	}
	if payload.MessageID == "" || payload.Timestamp.IsZero() {
		return nil, WebhookMalformed
	}

	if now.Sub(payload.Timestamp.Time) > freshness {
		return &payload, WebhookStale
	}

	return &payload, WebhookOK
}
