package models

import "time"

// Ingredient is a purchasable input priced per Unit (g, ml, un...).
type Ingredient struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Name      string    `gorm:"size:120;not null" json:"name"`
	Price     float64   `gorm:"not null;default:0" json:"price"`
	Unit      string    `gorm:"size:16" json:"unit"`
}
