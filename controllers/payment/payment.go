// Package paymentcontroller exposes the checkout surface: issuing a
// payment reference, verifying a charge after the frontend redirect,
// and the Stripe webhook ingress.
package paymentcontroller

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ZeapZeaper/Zeaper-api-sub000/apperr"
	"github.com/ZeapZeaper/Zeaper-api-sub000/gateway"
	"github.com/ZeapZeaper/Zeaper-api-sub000/middleware"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/payments"
	"github.com/ZeapZeaper/Zeaper-api-sub000/pricing"
)

const maxWebhookBody = 64 << 10

// Checkout is the slice of the payment service the controller drives.
type Checkout interface {
	IssueReference(ctx context.Context, userID string, basket *models.Basket, quote pricing.Quote, currency string) (*models.Payment, error)
	ProcessPayment(ctx context.Context, reference string, verified gateway.VerifiedPayment) (payments.Result, error)
}

// BasketStore adds persistence of checkout choices on top of the
// read-side used by the payment service.
type BasketStore interface {
	payments.BasketStore
	Save(ctx context.Context, basket *models.Basket) error
}

// IntentCreator opens a Stripe PaymentIntent for foreign-currency
// charges.
type IntentCreator interface {
	CreateIntent(ctx context.Context, reference, currency string, amount float64) (gateway.CreatedIntent, error)
}

// RateSource resolves the NGN multiplier for a display currency.
type RateSource interface {
	Rate(ctx context.Context, currency string) float64
}

type Handler struct {
	log      *zap.Logger
	checkout Checkout
	store    payments.PaymentStore
	baskets  BasketStore
	products payments.ProductStore
	vouchers payments.VoucherStore
	users    payments.UserStore
	selector gateway.Selector
	intents  IntentCreator
	rates    RateSource

	webhookSecret string
}

func New(
	log *zap.Logger,
	checkout Checkout,
	store payments.PaymentStore,
	baskets BasketStore,
	products payments.ProductStore,
	vouchers payments.VoucherStore,
	users payments.UserStore,
	selector gateway.Selector,
	intents IntentCreator,
	rates RateSource,
	webhookSecret string,
) *Handler {
	return &Handler{
		log:           log,
		checkout:      checkout,
		store:         store,
		baskets:       baskets,
		products:      products,
		vouchers:      vouchers,
		users:         users,
		selector:      selector,
		intents:       intents,
		rates:         rates,
		webhookSecret: webhookSecret,
	}
}

type referenceInput struct {
	Country        string `json:"country"`
	DeliveryMethod string `json:"delivery_method"`
	VoucherCode    string `json:"voucher_code"`
	Currency       string `json:"currency"`
}

// GetReference handles POST /user/payments/reference. It prices the
// caller's basket, issues (or refreshes) the pending payment, and for
// foreign-currency charges opens the Stripe intent whose client secret
// the frontend needs.
func (h *Handler) GetReference(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input referenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}
	if input.Currency == "" {
		input.Currency = "NGN"
	}

	ctx := c.Request.Context()

	basket, err := h.baskets.FindByUser(ctx, userID)
	if err != nil || len(basket.Items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "basket is empty"})
		return
	}

	// Checkout choices stick to the basket so webhook-driven fulfillment
	// sees the same snapshot the quote was priced against.
	if input.Country != "" {
		basket.Country = input.Country
	}
	if input.DeliveryMethod != "" {
		basket.DeliveryMethod = input.DeliveryMethod
	}
	if input.VoucherCode != "" {
		basket.VoucherCode = input.VoucherCode
	}
	if err := h.baskets.Save(ctx, basket); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update basket"})
		return
	}

	quote, err := h.quote(ctx, basket)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to price basket"})
		return
	}

	payment, err := h.checkout.IssueReference(ctx, userID, basket, quote, input.Currency)
	if err != nil {
		h.log.Error("issue reference", zap.String("user_id", userID), zap.Error(err))
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error(), "kind": apperr.Kind(err)})
		return
	}

	// The gateway charges in the presentment currency; stored amounts
	// stay in NGN.
	chargeAmount := payment.Total * h.rates.Rate(ctx, payment.Currency)

	resp := gin.H{
		"reference":     payment.Reference,
		"amount":        chargeAmount,
		"currency":      payment.Currency,
		"paymentStatus": payment.Status,
	}

	if payment.Currency != "NGN" && payment.StripeIntentID == "" {
		intent, err := h.intents.CreateIntent(ctx, payment.Reference, payment.Currency, chargeAmount)
		if err != nil {
			h.log.Error("create stripe intent", zap.String("reference", payment.Reference), zap.Error(err))
			c.JSON(apperr.HTTPStatus(err), gin.H{"error": "could not start card payment", "kind": apperr.Kind(err)})
			return
		}
		payment.StripeIntentID = intent.ID
		if err := h.store.Update(ctx, payment); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist payment"})
			return
		}
		resp["stripeClientSecret"] = intent.ClientSecret
	}

	if user, err := h.users.Find(ctx, userID); err == nil {
		resp["fullName"] = user.FullName()
		resp["email"] = user.Email
	}

	c.JSON(http.StatusOK, resp)
}

// Verify handles POST /user/payments/verify: the frontend lands here
// after the gateway redirect. The gateway is re-queried server side;
// client claims of success are never trusted.
func (h *Handler) Verify(c *gin.Context) {
	if _, ok := middleware.UserID(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input struct {
		Reference string `json:"reference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reference is required"})
		return
	}

	ctx := c.Request.Context()

	payment, err := h.store.FindByReference(ctx, input.Reference)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown payment reference"})
		return
	}

	verified, err := h.selector.ForCurrency(payment.Currency).Verify(ctx, *payment)
	if err != nil {
		h.log.Warn("gateway verification failed",
			zap.String("reference", input.Reference), zap.Error(err))
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error(), "kind": apperr.Kind(err)})
		return
	}
	if !verified.Status {
		c.JSON(http.StatusOK, gin.H{
			"paymentStatus":   payment.Status,
			"gatewayResponse": verified.GatewayResponse,
		})
		return
	}

	result, err := h.checkout.ProcessPayment(ctx, input.Reference, verified)
	if err != nil {
		c.JSON(apperr.HTTPStatus(err), gin.H{"error": err.Error(), "kind": apperr.Kind(err)})
		return
	}

	c.JSON(http.StatusOK, result)
}

// StripeWebhook handles POST /webhooks/stripe. A verified
// payment_intent.succeeded event drives the same fulfillment path as
// Verify. Internal failures are logged but still acknowledged with 200:
// Stripe retries on non-2xx and the pipeline is idempotent anyway, so a
// retry storm buys nothing.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	event, err := gateway.ParseStripeEvent(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		h.log.Warn("rejected stripe webhook", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	if event.Type != "payment_intent.succeeded" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	reference, verified, err := gateway.NormalizeIntentEvent(event.Data.Object)
	if err != nil {
		h.log.Warn("undecodable intent event", zap.String("event_id", event.ID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := h.checkout.ProcessPayment(c.Request.Context(), reference, verified); err != nil {
		h.log.Error("webhook fulfillment",
			zap.String("event_id", event.ID),
			zap.String("reference", reference),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// quote loads the catalog and voucher for a basket and prices it.
func (h *Handler) quote(ctx context.Context, basket *models.Basket) (pricing.Quote, error) {
	ids := make([]uint, 0, len(basket.Items))
	for _, item := range basket.Items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := h.products.FindMany(ctx, ids)
	if err != nil {
		return pricing.Quote{}, err
	}

	var voucher *models.Voucher
	if basket.VoucherCode != "" {
		if v, err := h.vouchers.FindByCode(ctx, basket.VoucherCode); err == nil {
			voucher = v
		}
	}

	return pricing.QuoteBasket(*basket, catalog, voucher), nil
}
