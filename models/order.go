package models

import "time"

type ProductOrderStatus string
type RevenueStatus string

const (
	// ProductOrder statuses (per line item fulfillment flow)
	ProductOrderStatusPlaced    ProductOrderStatus = "order placed"
	ProductOrderStatusConfirmed ProductOrderStatus = "order confirmed"
	ProductOrderStatusShipped   ProductOrderStatus = "order shipped"
	ProductOrderStatusDelivered ProductOrderStatus = "order delivered"
	ProductOrderStatusCancelled ProductOrderStatus = "order cancelled"

	// Vendor payout statuses
	RevenueStatusPending RevenueStatus = "pending"
	RevenueStatusPaid    RevenueStatus = "paid"
)

// Order is created from exactly one Payment. The unique index on
// PaymentID is the authoritative guard against a verify/webhook race
// producing two orders for one charge.
type Order struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	OrderID   string `gorm:"uniqueIndex;not null" json:"orderId"`
	PaymentID uint   `gorm:"uniqueIndex;not null" json:"payment_id"`
	UserID    string `gorm:"index;not null" json:"user_id"`

	// Delivery snapshot, copied from the resolved address at creation time.
	DeliveryFullName   string `json:"delivery_full_name"`
	DeliveryPhone      string `json:"delivery_phone"`
	DeliveryCountry    string `json:"delivery_country"`
	DeliveryRegion     string `json:"delivery_region"`
	DeliveryCity       string `json:"delivery_city"`
	DeliveryStreet     string `json:"delivery_street"`
	DeliveryPostalCode string `json:"delivery_postal_code"`
	DeliveryMethod     string `json:"delivery_method"`

	Points        int            `json:"points"`
	ProductOrders []ProductOrder `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"product_orders"`
	CreatedAt     time.Time      `json:"created_at"`
}

// ProductOrder is one committed basket line item with its own
// fulfillment state and vendor payout sub-record.
type ProductOrder struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	OrderID   uint               `gorm:"index" json:"order_id"`
	ProductID uint               `json:"product_id"`
	ShopID    uint               `gorm:"index" json:"shop_id"`
	SKU       string             `json:"sku"`
	Title     string             `json:"title"`
	Image     string             `json:"image"`
	Price     float64            `json:"price"` // locked at catalog price when the order was created
	Quantity  int                `json:"quantity"`
	Bespoke   string             `json:"bespoke,omitempty"`
	Status    ProductOrderStatus `gorm:"type:VARCHAR(30);default:'order placed'" json:"status"`

	ShopRevenue ShopRevenue `gorm:"embedded;embeddedPrefix:revenue_" json:"shop_revenue"`
}

// ShopRevenue tracks what the shop is owed for one ProductOrder.
type ShopRevenue struct {
	Amount float64       `json:"amount"`
	Status RevenueStatus `gorm:"type:VARCHAR(20);default:'pending'" json:"status"`
	PaidAt *time.Time    `json:"paid_at,omitempty"`
}
