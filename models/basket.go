package models

import "time"

type Basket struct {
	BasketID       uint         `gorm:"primaryKey" json:"basket_id"`
	UserID         string       `gorm:"uniqueIndex" json:"user_id"` // Enforces ONE basket per user
	Items          []BasketItem `gorm:"foreignKey:BasketID;constraint:OnDelete:CASCADE" json:"items"`
	VoucherCode    string       `json:"voucher_code"`
	Country        string       `json:"country"`
	DeliveryMethod string       `json:"delivery_method"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type BasketItem struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	BasketID  uint   `gorm:"index" json:"basket_id"`
	ProductID uint   `json:"product_id"`
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	// Bespoke holds made-to-order attributes (measurements, colour notes)
	// serialized as JSON. Empty for off-the-shelf purchases.
	Bespoke string    `json:"bespoke,omitempty"`
	AddedAt time.Time `json:"added_at"`
}
