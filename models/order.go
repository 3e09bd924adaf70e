package models

import (
	"math"
	"time"
)

const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"

	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusDone       = "done"
	StatusCancelled  = "cancelled"
)

type Order struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	User        *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	ClientID    uint      `gorm:"index;not null" json:"client_id"`
	Client      *Client   `gorm:"constraint:OnUpdate:CASCADE;" json:"-"`
	Description string    `gorm:"size:2000" json:"description"`
	Priority    string    `gorm:"size:16;not null;default:normal" json:"priority"`
	Status      string    `gorm:"size:16;not null;default:open;index" json:"status"`
	// ProfitMargin is a percentage applied on top of the line totals.
	ProfitMargin float64    `gorm:"not null;default:0" json:"profit_margin"`
	TotalPrice   float64    `gorm:"not null;default:0" json:"total_price"`
	DueDate      *time.Time `json:"due_date"`

	Lines []OrderRecipe `gorm:"foreignKey:OrderID" json:"-"`
}

type OrderRecipe struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	OrderID   uint    `gorm:"not null;uniqueIndex:idx_order_recipe" json:"order_id"`
	Order     *Order  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	RecipeID  uint    `gorm:"not null;uniqueIndex:idx_order_recipe;index" json:"recipe_id"`
	Recipe    *Recipe `gorm:"constraint:OnUpdate:CASCADE;" json:"-"`
	Quantity  float64 `gorm:"not null" json:"quantity"`
	UnitPrice float64 `gorm:"not null" json:"unit_price"`
}

// ComputeTotal returns the sum of line totals with the profit margin
// applied, rounded to cents.
func ComputeTotal(lines []OrderRecipe, margin float64) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.Quantity * l.UnitPrice
	}
	return math.Round(sum*(1+margin/100)*100) / 100
}

// ValidPriority and ValidStatus gate the closed string sets above.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

func ValidStatus(s string) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}
