package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

const paystackSuccessBody = `{
	"status": true,
	"message": "Verification successful",
	"data": {
		"status": "success",
		"gateway_response": "Successful",
		"paid_at": "2025-03-01T10:15:00.000Z",
		"channel": "card",
		"currency": "NGN",
		"fees": 13500,
		"log": {"attempts": 1},
		"authorization": {
			"card_type": "visa",
			"bank": "GTBank",
			"country_code": "NG"
		}
	}
}`

func paystackServer(t *testing.T, status int, body string) *Paystack {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk_test_x" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	p := NewPaystack("sk_test_x")
	p.BaseURL = srv.URL
	p.Client = srv.Client()
	return p
}

func TestPaystackVerify_Success(t *testing.T) {
	t.Parallel()

	p := paystackServer(t, http.StatusOK, paystackSuccessBody)
	verified, err := p.Verify(context.Background(), models.Payment{Reference: "ZP-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verified.Status {
		t.Fatal("expected success status")
	}
	// A success result is never partially populated.
	if verified.PaidAt == nil || verified.Channel == "" || verified.Currency == "" ||
		verified.CardType == "" || verified.Bank == "" || verified.CountryCode == "" {
		t.Errorf("partially populated success result: %+v", verified)
	}
	if verified.Fees != 135 {
		t.Errorf("Fees = %v, want 135 (kobo converted)", verified.Fees)
	}
}

func TestPaystackVerify_NonSuccessIsResultNotError(t *testing.T) {
	t.Parallel()

	body := `{"status": true, "message": "ok", "data": {"status": "abandoned", "gateway_response": "Abandoned"}}`
	p := paystackServer(t, http.StatusOK, body)

	verified, err := p.Verify(context.Background(), models.Payment{Reference: "ZP-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verified.Status {
		t.Error("abandoned charge reported as success")
	}
}

func TestPaystackVerify_TransportFailureIsRecoverable(t *testing.T) {
	t.Parallel()

	p := NewPaystack("sk_test_x")
	p.BaseURL = "http://127.0.0.1:1" // nothing listens here

	_, err := p.Verify(context.Background(), models.Payment{Reference: "ZP-1"})
	if !errors.Is(err, apperr.ErrGateway) {
		t.Errorf("want ErrGateway, got %v", err)
	}
}

func TestPaystackVerify_HTTPErrorAndParseError(t *testing.T) {
	t.Parallel()

	p := paystackServer(t, http.StatusBadGateway, "upstream broken")
	if _, err := p.Verify(context.Background(), models.Payment{Reference: "ZP-1"}); !errors.Is(err, apperr.ErrGateway) {
		t.Errorf("http 502: want ErrGateway, got %v", err)
	}

	p = paystackServer(t, http.StatusOK, "{not json")
	if _, err := p.Verify(context.Background(), models.Payment{Reference: "ZP-1"}); !errors.Is(err, apperr.ErrGateway) {
		t.Errorf("bad json: want ErrGateway, got %v", err)
	}
}
