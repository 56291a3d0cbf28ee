package models

import "time"

type PaymentStatus string

const (
	// A payment that never succeeds simply stays pending; failed
	// verifications do not move it.
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
)

// Payment represents one checkout attempt. The reference is the business
// key correlating the gateway charge, the basket, and the queue job.
type Payment struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Reference string        `gorm:"uniqueIndex;not null" json:"reference"`
	UserID    string        `gorm:"index;not null" json:"user_id"`
	BasketID  uint          `gorm:"index" json:"basket_id"`
	Status    PaymentStatus `gorm:"type:VARCHAR(20);default:'pending'" json:"status"`

	Amount               float64 `json:"amount"`
	ItemsTotal           float64 `json:"items_total"`
	DeliveryFee          float64 `json:"delivery_fee"`
	AppliedVoucherAmount float64 `json:"applied_voucher_amount"`
	Total                float64 `json:"total"`
	Currency             string  `gorm:"type:VARCHAR(5)" json:"currency"`

	// Gateway identifiers. Exactly one is set depending on the adapter.
	StripeIntentID    string `json:"stripe_intent_id,omitempty"`
	PaystackReference string `json:"paystack_reference,omitempty"`

	// Verification metadata, populated once on the pending->success flip.
	Channel     string     `json:"channel,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	Log         string     `json:"log,omitempty"`
	Fees        float64    `json:"fees"`
	CardType    string     `json:"card_type,omitempty"`
	Bank        string     `json:"bank,omitempty"`
	CountryCode string     `json:"country_code,omitempty"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
