package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// Paystack verifies a charge by its transaction reference.
type Paystack struct {
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

func NewPaystack(secretKey string) *Paystack {
	return &Paystack{
		SecretKey: secretKey,
		BaseURL:   "https://api.paystack.co",
		Client:    defaultClient(),
	}
}

// paystackVerifyResponse mirrors the fields of Paystack's
// GET /transaction/verify/:reference payload that we consume.
type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status          string          `json:"status"` // "success", "failed", "abandoned"
		GatewayResponse string          `json:"gateway_response"`
		PaidAt          string          `json:"paid_at"`
		Channel         string          `json:"channel"`
		Currency        string          `json:"currency"`
		Fees            float64         `json:"fees"` // in kobo
		Log             json.RawMessage `json:"log"`
		Authorization   struct {
			CardType    string `json:"card_type"`
			Bank        string `json:"bank"`
			CountryCode string `json:"country_code"`
		} `json:"authorization"`
	} `json:"data"`
}

func (p *Paystack) Verify(ctx context.Context, payment models.Payment) (VerifiedPayment, error) {
	reference := payment.PaystackReference
	if reference == "" {
		reference = payment.Reference
	}

	url := fmt.Sprintf("%s/transaction/verify/%s", p.BaseURL, reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return VerifiedPayment{}, fmt.Errorf("paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.SecretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return VerifiedPayment{}, fmt.Errorf("%w: reach paystack: %v", apperr.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return VerifiedPayment{}, fmt.Errorf("%w: paystack verify (%d): %s", apperr.ErrGateway, resp.StatusCode, string(body))
	}

	var out paystackVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return VerifiedPayment{}, fmt.Errorf("%w: parse paystack response: %v", apperr.ErrGateway, err)
	}
	if !out.Status {
		return VerifiedPayment{}, fmt.Errorf("%w: paystack: %s", apperr.ErrGateway, out.Message)
	}

	if out.Data.Status != "success" {
		// A definite non-success is a result, not an error: the caller
		// leaves the payment pending and may retry later.
		return VerifiedPayment{Status: false, GatewayResponse: out.Data.GatewayResponse}, nil
	}

	verified := VerifiedPayment{
		Status:          true,
		Channel:         out.Data.Channel,
		Currency:        out.Data.Currency,
		Fees:            out.Data.Fees / 100, // kobo -> naira
		CardType:        out.Data.Authorization.CardType,
		Bank:            out.Data.Authorization.Bank,
		CountryCode:     out.Data.Authorization.CountryCode,
		GatewayResponse: out.Data.GatewayResponse,
		Log:             string(out.Data.Log),
	}
	if t, err := time.Parse(time.RFC3339, out.Data.PaidAt); err == nil {
		verified.PaidAt = &t
	} else {
		now := time.Now().UTC()
		verified.PaidAt = &now
	}
	return verified, nil
}
