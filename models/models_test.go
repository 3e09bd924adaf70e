package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecipeCost(t *testing.T) {
	r := Recipe{Lines: []RecipeIngredient{
		{Quantity: 0.5, Ingredient: &Ingredient{Price: 2}},
		{Quantity: 2, Ingredient: &Ingredient{Price: 3}},
		{Quantity: 10},
	}}
	assert.Equal(t, 7.0, r.Cost())
	assert.Zero(t, Recipe{}.Cost())
}

func TestComputeTotal(t *testing.T) {
	lines := []OrderRecipe{
		{Quantity: 2, UnitPrice: 30},
		{Quantity: 1, UnitPrice: 10},
	}
	assert.Equal(t, 70.0, ComputeTotal(lines, 0))
	assert.Equal(t, 84.0, ComputeTotal(lines, 20))
	assert.Equal(t, 0.0, ComputeTotal(nil, 50))
	// rounded to cents
	assert.Equal(t, 0.37, ComputeTotal([]OrderRecipe{{Quantity: 1, UnitPrice: 0.333}}, 10))
}

func TestRole(t *testing.T) {
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleStandard.IsAdmin())
	assert.True(t, RoleStandard.Valid())
	assert.False(t, Role(2).Valid())
	assert.Equal(t, "admin", RoleAdmin.String())
	assert.Equal(t, "role(5)", Role(5).String())
}

func TestValidPriorityAndStatus(t *testing.T) {
	for _, p := range []string{PriorityLow, PriorityNormal, PriorityHigh} {
		assert.True(t, ValidPriority(p), p)
	}
	assert.False(t, ValidPriority("urgent"))
	for _, s := range []string{StatusOpen, StatusInProgress, StatusDone, StatusCancelled} {
		assert.True(t, ValidStatus(s), s)
	}
	assert.False(t, ValidStatus(""))
}

func TestPublicUserOmitsSecrets(t *testing.T) {
	u := User{ID: 3, Name: "Ana", Email: "ana@example.com", PasswordHash: []byte("x"), Role: RoleAdmin, TokenVersion: 4}
	p := u.Public()
	assert.Equal(t, PublicUser{ID: 3, Name: "Ana", Email: "ana@example.com", Role: RoleAdmin}, p)
}
