package models

import "time"

type User struct {
	ID         string `gorm:"primaryKey" json:"id"`
	Email      string `gorm:"unique;not null" json:"email"`
	Phone      string `json:"phone"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Picture    string `json:"picture"`
	Points     int    `json:"points"`
	HasOrdered bool   `json:"has_ordered"`
	Basket     Basket `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"basket"`
	CreatedAt  time.Time
}

func (u User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// DeliveryAddress is an entry in a user's address book. At most one
// address per user is the default used at checkout.
type DeliveryAddress struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	UserID     string `gorm:"index;not null" json:"user_id"`
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Country    string `json:"country"`
	Region     string `json:"region"`
	City       string `json:"city"`
	Street     string `json:"street"`
	PostalCode string `json:"postal_code"`
	IsDefault  bool   `json:"is_default"`
	CreatedAt  time.Time
}
