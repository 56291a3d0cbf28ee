// Package pricing computes basket totals. Everything here is pure: the
// caller loads the basket, catalog rows, and voucher; no function in
// this package touches storage or mutates its inputs.
package pricing

import (
	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// Quote is the priced view of one basket, all amounts in the base
// currency (NGN).
type Quote struct {
	ItemsTotal           float64     `json:"itemsTotal"`
	DeliveryFee          float64     `json:"deliveryFee"`
	AppliedVoucherAmount float64     `json:"appliedVoucherAmount"`
	Total                float64     `json:"total"`
	TotalWithoutVoucher  float64     `json:"totalWithoutVoucher"`
	Items                []ItemQuote `json:"items"`
}

// ItemQuote is the per-line breakdown parallel to the basket items.
type ItemQuote struct {
	ProductID uint    `json:"product_id"`
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Subtotal  float64 `json:"subtotal"`
}

// Catalog resolves a product by id. A nil return means the product has
// disappeared since the item was added; the line is skipped.
type Catalog map[uint]*models.Product

const (
	DeliveryStandard = "standard"
	DeliveryExpress  = "express"
)

// DeliveryFee returns the fee for a destination country and method.
// Domestic (NG) standard delivery is the baseline.
func DeliveryFee(country, method string) float64 {
	domestic := country == "" || country == "NG" || country == "Nigeria"
	switch {
	case domestic && method == DeliveryExpress:
		return 2500
	case domestic:
		return 1000
	case method == DeliveryExpress:
		return 10000
	default:
		return 5000
	}
}

// QuoteBasket prices a basket snapshot. Missing products or variations
// are skipped rather than failing the whole quote: the basket may
// reference catalog rows deleted after the item was added. The voucher
// only applies when it belongs to the basket's owner and is marked used
// for this basket; the total is floored at zero after subtraction.
func QuoteBasket(basket models.Basket, catalog Catalog, voucher *models.Voucher) Quote {
	q := Quote{Items: make([]ItemQuote, 0, len(basket.Items))}

	for _, item := range basket.Items {
		product := catalog[item.ProductID]
		if product == nil {
			continue
		}
		variation := product.VariationOf(item.SKU)
		if variation == nil {
			continue
		}
		subtotal := variation.Price * float64(item.Quantity)
		q.ItemsTotal += subtotal
		q.Items = append(q.Items, ItemQuote{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Quantity:  item.Quantity,
			UnitPrice: variation.Price,
			Subtotal:  subtotal,
		})
	}

	q.DeliveryFee = DeliveryFee(basket.Country, basket.DeliveryMethod)

	if voucher != nil && voucher.UserID == basket.UserID && voucher.UsedForBasketID == basket.BasketID {
		q.AppliedVoucherAmount = voucher.Amount
	}

	q.Total = q.ItemsTotal + q.DeliveryFee - q.AppliedVoucherAmount
	if q.Total < 0 {
		q.Total = 0
	}
	q.TotalWithoutVoucher = q.Total + q.AppliedVoucherAmount
	return q
}

// Convert presents a quote in another currency using a cached exchange
// rate. Stored base-currency amounts are never mutated; this is a
// display-only projection.
func Convert(q Quote, rate float64) Quote {
	out := q
	out.ItemsTotal *= rate
	out.DeliveryFee *= rate
	out.AppliedVoucherAmount *= rate
	out.Total *= rate
	out.TotalWithoutVoucher *= rate
	out.Items = make([]ItemQuote, len(q.Items))
	for i, it := range q.Items {
		it.UnitPrice *= rate
		it.Subtotal *= rate
		out.Items[i] = it
	}
	return out
}

// LoyaltyPoints derives the points earned from the item subtotal alone:
// one point per NGN 1,000 of items, floored. Deterministic so that
// retried fulfillment attempts always compute the same value.
func LoyaltyPoints(itemsTotal float64) int {
	if itemsTotal <= 0 {
		return 0
	}
	return int(itemsTotal / 1000)
}
