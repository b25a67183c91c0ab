package models

import "time"

// PriceTier is the restaurant's price band, "$" (cheap) to "$$$$".
type PriceTier string

const (
	PriceBudget    PriceTier = "$"
	PriceModerate  PriceTier = "$$"
	PriceExpensive PriceTier = "$$$"
	PriceLuxury    PriceTier = "$$$$"
)

func (p PriceTier) Valid() bool {
	switch p {
	case PriceBudget, PriceModerate, PriceExpensive, PriceLuxury:
		return true
	}
	return false
}

type Restaurant struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null"`
	Description  string    `json:"description"`
	Cuisine      string    `json:"cuisine" gorm:"not null;index"`
	Price        PriceTier `json:"price" gorm:"size:4;not null"`
	Address      string    `json:"address" gorm:"not null"`
	Phone        string    `json:"phone" gorm:"not null"`
	Email        *string   `json:"email"`
	OpeningHours *string   `json:"openingHours"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	ImageURL     string    `json:"imageUrl"`
	Rating       float64   `json:"rating" gorm:"not null;default:0"`      // derived from reviews only
	ReviewCount  int       `json:"reviewCount" gorm:"not null;default:0"` // derived from reviews only
	IsFeatured   bool      `json:"isFeatured" gorm:"not null;default:false;index"`
	CreatedAt    time.Time `json:"createdAt" gorm:"index"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (r *Restaurant) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}
