package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/pricing"
)

const referenceAttempts = 5

// newReference mints a human-readable candidate reference.
// Example: ZP-20250901142233-9F1C2B3A
func newReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return "ZP-" + now.Format("20060102150405") + "-" + suffix
}

// newOrderID mints the human-readable order id shown to buyers.
func newOrderID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	return "ZPO-" + suffix
}

// IssueReference returns the payment reference for a user's basket. The
// reference is stable for the life of one pending payment: repeated
// calls return the existing pending payment (with its monetary fields
// refreshed to the current quote) instead of minting a new one. A fresh
// reference is collision-checked against existing payments before use.
func (s *Service) IssueReference(ctx context.Context, userID string, basket *models.Basket, quote pricing.Quote, currency string) (*models.Payment, error) {
	if basket == nil || len(basket.Items) == 0 {
		return nil, fmt.Errorf("%w: basket is empty", apperr.ErrValidation)
	}

	if existing, err := s.payments.FindPendingByBasket(ctx, basket.BasketID); err == nil && existing != nil {
		existing.ItemsTotal = quote.ItemsTotal
		existing.DeliveryFee = quote.DeliveryFee
		existing.AppliedVoucherAmount = quote.AppliedVoucherAmount
		existing.Total = quote.Total
		existing.Amount = quote.Total
		if err := s.payments.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("refresh pending payment %s: %w", existing.Reference, err)
		}
		return existing, nil
	}

	var reference string
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		candidate := newReference(time.Now())
		taken, err := s.payments.ReferenceExists(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("check reference collision: %w", err)
		}
		if !taken {
			reference = candidate
			break
		}
	}
	if reference == "" {
		return nil, fmt.Errorf("could not mint a unique reference after %d attempts", referenceAttempts)
	}

	payment := &models.Payment{
		Reference:            reference,
		UserID:               userID,
		BasketID:             basket.BasketID,
		Status:               models.PaymentStatusPending,
		Amount:               quote.Total,
		ItemsTotal:           quote.ItemsTotal,
		DeliveryFee:          quote.DeliveryFee,
		AppliedVoucherAmount: quote.AppliedVoucherAmount,
		Total:                quote.Total,
		Currency:             currency,
	}
	if currency == "" {
		payment.Currency = "NGN"
	}
	if payment.Currency == "NGN" {
		payment.PaystackReference = reference
	}

	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("persist pending payment: %w", err)
	}
	return payment, nil
}
