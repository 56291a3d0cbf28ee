package models

import (
	"time"

	"gorm.io/gorm"
)

type Shop struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null" json:"name"`
	OwnerID   string `gorm:"index" json:"owner_id"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt time.Time
}

type Product struct {
	ID          uint               `gorm:"primaryKey;autoIncrement" json:"id"`
	ShopID      uint               `gorm:"index" json:"shop_id"`
	Title       string             `gorm:"not null" json:"title"`
	Description string             `json:"description"`
	Image       string             `json:"image"`
	Variations  []ProductVariation `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"variations"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProductVariation carries sellable stock. Quantity is decremented
// atomically per unit sold and never allowed below zero. Bespoke
// (made-to-order) variations are exempt from decrement.
type ProductVariation struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint    `gorm:"index;not null" json:"product_id"`
	SKU       string  `gorm:"index;not null" json:"sku"`
	Price     float64 `gorm:"not null" json:"price"`
	Quantity  int     `json:"quantity"`
	Bespoke   bool    `json:"bespoke"`
}

// VariationOf returns the variation matching sku, or nil.
func (p Product) VariationOf(sku string) *ProductVariation {
	for i := range p.Variations {
		if p.Variations[i].SKU == sku {
			return &p.Variations[i]
		}
	}
	return nil
}
