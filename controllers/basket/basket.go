// Package basketcontroller manages the user's basket and the priced
// basket total shown at checkout.
package basketcontroller

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ZeapZeaper/Zeaper-api-sub000/middleware"
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
	"github.com/ZeapZeaper/Zeaper-api-sub000/pricing"
)

type BasketStore interface {
	FindByUser(ctx context.Context, userID string) (*models.Basket, error)
	FindOrCreateByUser(ctx context.Context, userID string) (*models.Basket, error)
	UpsertItem(ctx context.Context, item *models.BasketItem) error
	DeleteItem(ctx context.Context, basketID, itemID uint) (bool, error)
	Save(ctx context.Context, basket *models.Basket) error
}

type ProductStore interface {
	Find(ctx context.Context, id uint) (*models.Product, error)
	FindMany(ctx context.Context, ids []uint) (map[uint]*models.Product, error)
}

type VoucherStore interface {
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
}

// RateSource resolves the NGN multiplier for a display currency.
type RateSource interface {
	Rate(ctx context.Context, currency string) float64
}

type Handler struct {
	log      *zap.Logger
	baskets  BasketStore
	products ProductStore
	vouchers VoucherStore
	rates    RateSource
}

func New(log *zap.Logger, baskets BasketStore, products ProductStore, vouchers VoucherStore, rates RateSource) *Handler {
	return &Handler{log: log, baskets: baskets, products: products, vouchers: vouchers, rates: rates}
}

type itemInput struct {
	ProductID uint   `json:"product_id" binding:"required"`
	SKU       string `json:"sku" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Bespoke   string `json:"bespoke"`
}

// UpsertItem handles POST /user/basket. An existing line for the same
// variation has its quantity replaced, not incremented.
func (h *Handler) UpsertItem(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var input itemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input: " + err.Error()})
		return
	}

	ctx := c.Request.Context()

	product, err := h.products.Find(ctx, input.ProductID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product does not exist"})
		return
	}
	variation := product.VariationOf(input.SKU)
	if variation == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown variation"})
		return
	}
	if !variation.Bespoke && input.Bespoke == "" && variation.Quantity < input.Quantity {
		c.JSON(http.StatusConflict, gin.H{"error": "not enough stock", "available": variation.Quantity})
		return
	}

	basket, err := h.baskets.FindOrCreateByUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load basket"})
		return
	}

	item := &models.BasketItem{
		BasketID:  basket.BasketID,
		ProductID: input.ProductID,
		SKU:       input.SKU,
		Quantity:  input.Quantity,
		Bespoke:   input.Bespoke,
		AddedAt:   time.Now(),
	}
	if err := h.baskets.UpsertItem(ctx, item); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save basket item"})
		return
	}

	c.JSON(http.StatusOK, item)
}

// DeleteItem handles DELETE /user/basket/items/:item_id.
func (h *Handler) DeleteItem(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	itemID, err := strconv.ParseUint(c.Param("item_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return
	}

	ctx := c.Request.Context()
	basket, err := h.baskets.FindByUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "basket not found"})
		return
	}

	deleted, err := h.baskets.DeleteItem(ctx, basket.BasketID, uint(itemID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete item"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "basket item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item removed"})
}

// Get handles GET /user/basket.
func (h *Handler) Get(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	basket, err := h.baskets.FindByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"items": []models.BasketItem{}})
		return
	}
	c.JSON(http.StatusOK, basket)
}

// Total handles GET /user/basket/total. Amounts are priced in NGN and
// converted to the requested currency for display only.
func (h *Handler) Total(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	basket, err := h.baskets.FindByUser(ctx, userID)
	if err != nil || len(basket.Items) == 0 {
		c.JSON(http.StatusOK, pricing.Quote{Items: []pricing.ItemQuote{}})
		return
	}

	ids := make([]uint, 0, len(basket.Items))
	for _, item := range basket.Items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := h.products.FindMany(ctx, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to price basket"})
		return
	}

	var voucher *models.Voucher
	if basket.VoucherCode != "" {
		if v, err := h.vouchers.FindByCode(ctx, basket.VoucherCode); err == nil {
			voucher = v
		}
	}

	quote := pricing.QuoteBasket(*basket, catalog, voucher)

	currency := c.DefaultQuery("currency", "NGN")
	if currency != "NGN" {
		quote = pricing.Convert(quote, h.rates.Rate(ctx, currency))
	}

	c.JSON(http.StatusOK, gin.H{"currency": currency, "quote": quote})
}
