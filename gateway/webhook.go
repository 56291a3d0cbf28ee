package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
)

// DefaultWebhookTolerance bounds the age of a signed webhook timestamp.
const DefaultWebhookTolerance = 5 * time.Minute

// StripeEvent is the envelope of an inbound Stripe webhook.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// VerifyStripeSignature checks the Stripe-Signature header (v1 scheme:
// HMAC-SHA256 over "<timestamp>.<payload>") against the signing secret.
func VerifyStripeSignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	var timestamp int64
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad signature timestamp", apperr.ErrValidation)
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("%w: malformed stripe-signature header", apperr.ErrValidation)
	}
	if diff := now.Sub(time.Unix(timestamp, 0)); diff > tolerance || diff < -tolerance {
		return fmt.Errorf("%w: webhook timestamp outside tolerance", apperr.ErrValidation)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching webhook signature", apperr.ErrValidation)
}

// ParseStripeEvent verifies the signature and decodes the event envelope.
func ParseStripeEvent(payload []byte, header, secret string) (StripeEvent, error) {
	if err := VerifyStripeSignature(payload, header, secret, DefaultWebhookTolerance, time.Now()); err != nil {
		return StripeEvent{}, err
	}
	var event StripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return StripeEvent{}, fmt.Errorf("%w: decode webhook event: %v", apperr.ErrValidation, err)
	}
	return event, nil
}

// NormalizeIntentEvent converts the payment_intent object embedded in a
// webhook event directly into the verified shape, with no second
// round-trip to Stripe. Returns the payment reference carried in the
// intent metadata alongside the normalized result.
func NormalizeIntentEvent(object json.RawMessage) (reference string, verified VerifiedPayment, err error) {
	var intent stripeIntent
	if err := json.Unmarshal(object, &intent); err != nil {
		return "", VerifiedPayment{}, fmt.Errorf("%w: decode payment intent: %v", apperr.ErrValidation, err)
	}
	if intent.Metadata.Reference == "" {
		return "", VerifiedPayment{}, fmt.Errorf("%w: event intent %s carries no reference", apperr.ErrValidation, intent.ID)
	}
	return intent.Metadata.Reference, normalizeStripeIntent(intent, object), nil
}
