// Package gateway adapts the two payment gateways (Paystack, Stripe)
// behind a single verification interface. Adapters never partially
// populate a success result: either Status is true and the metadata is
// complete, or Status is false, or a recoverable error is returned.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// VerifiedPayment is the normalized result of a gateway verification.
type VerifiedPayment struct {
	Status          bool       `json:"status"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
	Channel         string     `json:"channel,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	Fees            float64    `json:"fees"`
	CardType        string     `json:"cardType,omitempty"`
	Bank            string     `json:"bank,omitempty"`
	CountryCode     string     `json:"countryCode,omitempty"`
	GatewayResponse string     `json:"gatewayResponse,omitempty"`
	Log             string     `json:"log,omitempty"`
}

// Verifier is one gateway's verification capability.
type Verifier interface {
	Verify(ctx context.Context, payment models.Payment) (VerifiedPayment, error)
}

// Selector picks the adapter for a payment by its currency: NGN charges
// go through Paystack, everything else through Stripe.
type Selector struct {
	Paystack Verifier
	Stripe   Verifier
}

func (s Selector) ForCurrency(currency string) Verifier {
	if currency == "" || currency == "NGN" {
		return s.Paystack
	}
	return s.Stripe
}

func defaultClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}
