package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// Stripe verifies a charge by retrieving its PaymentIntent, expanding
// the latest charge and its balance transaction for fee data.
type Stripe struct {
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

func NewStripe(secretKey string) *Stripe {
	return &Stripe{
		SecretKey: secretKey,
		BaseURL:   "https://api.stripe.com",
		Client:    defaultClient(),
	}
}

type stripeIntent struct {
	ID       string `json:"id"`
	Status   string `json:"status"` // "succeeded" when paid
	Currency string `json:"currency"`
	Metadata struct {
		Reference string `json:"reference"`
	} `json:"metadata"`
	LatestCharge *stripeCharge `json:"latest_charge"`
}

type stripeCharge struct {
	Created              int64  `json:"created"`
	Outcome              *struct {
		SellerMessage string `json:"seller_message"`
	} `json:"outcome"`
	PaymentMethodDetails struct {
		Type string `json:"type"`
		Card *struct {
			Brand   string `json:"brand"`
			Country string `json:"country"`
		} `json:"card"`
	} `json:"payment_method_details"`
	BalanceTransaction *struct {
		Fee int64 `json:"fee"` // minor units
	} `json:"balance_transaction"`
}

// CreatedIntent is the slice of a PaymentIntent the checkout flow needs.
type CreatedIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

// CreateIntent opens a PaymentIntent for a non-NGN charge. The payment
// reference travels in the intent metadata so webhook events can be
// correlated back without a lookup by intent id.
func (s *Stripe) CreateIntent(ctx context.Context, reference, currency string, amount float64) (CreatedIntent, error) {
	form := url.Values{
		"amount":              {strconv.FormatInt(int64(amount*100), 10)}, // minor units
		"currency":            {strings.ToLower(currency)},
		"metadata[reference]": {reference},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.BaseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return CreatedIntent{}, fmt.Errorf("stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.Client.Do(req)
	if err != nil {
		return CreatedIntent{}, fmt.Errorf("%w: reach stripe: %v", apperr.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return CreatedIntent{}, fmt.Errorf("%w: stripe create intent (%d): %s", apperr.ErrGateway, resp.StatusCode, string(body))
	}

	var intent CreatedIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return CreatedIntent{}, fmt.Errorf("%w: parse stripe response: %v", apperr.ErrGateway, err)
	}
	if intent.ID == "" || intent.ClientSecret == "" {
		return CreatedIntent{}, fmt.Errorf("%w: stripe returned an incomplete intent", apperr.ErrGateway)
	}
	return intent, nil
}

func (s *Stripe) Verify(ctx context.Context, payment models.Payment) (VerifiedPayment, error) {
	if payment.StripeIntentID == "" {
		return VerifiedPayment{}, fmt.Errorf("%w: payment %s has no stripe intent id", apperr.ErrValidation, payment.Reference)
	}

	endpoint := fmt.Sprintf("%s/v1/payment_intents/%s?%s", s.BaseURL, payment.StripeIntentID,
		url.Values{"expand[]": {"latest_charge.balance_transaction"}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return VerifiedPayment{}, fmt.Errorf("stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.SecretKey)

	resp, err := s.Client.Do(req)
	if err != nil {
		return VerifiedPayment{}, fmt.Errorf("%w: reach stripe: %v", apperr.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return VerifiedPayment{}, fmt.Errorf("%w: stripe retrieve intent (%d): %s", apperr.ErrGateway, resp.StatusCode, string(body))
	}

	var intent stripeIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return VerifiedPayment{}, fmt.Errorf("%w: parse stripe response: %v", apperr.ErrGateway, err)
	}

	return normalizeStripeIntent(intent, body), nil
}

// normalizeStripeIntent maps an intent (from verify or from a webhook
// event) onto the common verified shape.
func normalizeStripeIntent(intent stripeIntent, raw []byte) VerifiedPayment {
	if intent.Status != "succeeded" {
		return VerifiedPayment{Status: false, GatewayResponse: intent.Status}
	}

	verified := VerifiedPayment{
		Status:          true,
		Channel:         "card",
		Currency:        intent.Currency,
		GatewayResponse: "succeeded",
		Log:             string(raw),
	}
	now := time.Now().UTC()
	verified.PaidAt = &now

	if charge := intent.LatestCharge; charge != nil {
		if charge.Created > 0 {
			t := time.Unix(charge.Created, 0).UTC()
			verified.PaidAt = &t
		}
		if charge.PaymentMethodDetails.Type != "" {
			verified.Channel = charge.PaymentMethodDetails.Type
		}
		if card := charge.PaymentMethodDetails.Card; card != nil {
			verified.CardType = card.Brand
			verified.CountryCode = card.Country
		}
		if charge.BalanceTransaction != nil {
			verified.Fees = float64(charge.BalanceTransaction.Fee) / 100
		}
		if charge.Outcome != nil && charge.Outcome.SellerMessage != "" {
			verified.GatewayResponse = charge.Outcome.SellerMessage
		}
	}
	return verified
}
