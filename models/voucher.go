package models

import "time"

// Voucher discounts a single basket. It only applies when it belongs to
// the requesting user and has been marked used for that basket.
type Voucher struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	Code            string  `gorm:"uniqueIndex;not null" json:"code"`
	UserID          string  `gorm:"index;not null" json:"user_id"`
	Amount          float64 `json:"amount"`
	UsedForBasketID uint    `gorm:"index" json:"used_for_basket_id"`
	ExpiresAt       *time.Time
	CreatedAt       time.Time
}
