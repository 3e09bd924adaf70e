package models

import "time"

type Recipe struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UserID      uint      `gorm:"index;not null" json:"user_id"`
	User        *User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Description string    `gorm:"size:2000" json:"description"`
	// Price is the sale price of one unit of the recipe.
	Price    float64 `gorm:"not null;default:0" json:"price"`
	ImageURL string  `gorm:"size:512" json:"image_url"`
	ThumbURL string  `gorm:"size:512" json:"thumb_url"`

	Lines []RecipeIngredient `gorm:"foreignKey:RecipeID" json:"-"`
}

// RecipeIngredient associates an ingredient with a recipe. Quantity is in
// the ingredient's unit.
type RecipeIngredient struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	RecipeID     uint        `gorm:"not null;uniqueIndex:idx_recipe_ingredient" json:"recipe_id"`
	Recipe       *Recipe     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	IngredientID uint        `gorm:"not null;uniqueIndex:idx_recipe_ingredient;index" json:"ingredient_id"`
	Ingredient   *Ingredient `gorm:"constraint:OnUpdate:CASCADE;" json:"-"`
	Quantity     float64     `gorm:"not null" json:"quantity"`
}

// Cost sums quantity times ingredient price over lines whose Ingredient is
// loaded.
func (r Recipe) Cost() float64 {
	var total float64
	for _, l := range r.Lines {
		if l.Ingredient != nil {
			total += l.Quantity * l.Ingredient.Price
		}
	}
	return total
}
