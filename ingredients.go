package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipecost/models"
	"recipecost/pkg/apperr"
	"recipecost/pkg/validate"
)

const (
	msgIngredientNotFound = "Ingrediente não encontrado."
	msgIngredientTaken    = "Ingrediente já cadastrado."
	msgIngredientInUse    = "Ingrediente em uso por receitas."
)

// ingredientRequest is the full shape used by create and replace.
type ingredientRequest struct {
	Name  string  `json:"name" validate:"required,notblank,max=120"`
	Price float64 `json:"price" validate:"gte=0"`
	Unit  string  `json:"unit" validate:"max=16"`
}

type ingredientPatch struct {
	Name  *string  `json:"name" validate:"omitnil,notblank,max=120"`
	Price *float64 `json:"price" validate:"omitnil,gte=0"`
	Unit  *string  `json:"unit" validate:"omitnil,max=16"`
}

func (p ingredientPatch) fields() map[string]any {
	f := map[string]any{}
	if p.Name != nil {
		f["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Price != nil {
		f["price"] = *p.Price
	}
	if p.Unit != nil {
		f["unit"] = strings.TrimSpace(*p.Unit)
	}
	return f
}

func (s *server) listIngredientsHandler(c *gin.Context) {
	var items []models.Ingredient
	err := s.db.WithContext(c.Request.Context()).Scopes(ownedBy(caller(c))).Order("name, id").Find(&items).Error
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao listar ingredientes", err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *server) getIngredientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do ingrediente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var ing models.Ingredient
	if err := s.findOwned(c, &ing, id, msgIngredientNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *server) createIngredientHandler(c *gin.Context) {
	var req ingredientRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	ing := models.Ingredient{
		UserID: caller(c).ID,
		Name:   strings.TrimSpace(req.Name),
		Price:  req.Price,
		Unit:   strings.TrimSpace(req.Unit),
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&ing).Error; err != nil {
		s.respondError(c, dbError(err, msgIngredientTaken))
		return
	}
	c.JSON(http.StatusCreated, ing)
}

func (s *server) replaceIngredientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do ingrediente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req ingredientRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	fields := map[string]any{
		"name":  strings.TrimSpace(req.Name),
		"price": req.Price,
		"unit":  strings.TrimSpace(req.Unit),
	}
	var ing models.Ingredient
	if err := s.updateOwned(c, &ing, id, fields, msgIngredientNotFound, msgIngredientTaken); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *server) patchIngredientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do ingrediente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req ingredientPatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	var ing models.Ingredient
	if err := s.updateOwned(c, &ing, id, req.fields(), msgIngredientNotFound, msgIngredientTaken); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *server) deleteIngredientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do ingrediente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var ing models.Ingredient
	if err := s.findOwned(c, &ing, id, msgIngredientNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	db := s.db.WithContext(c.Request.Context())
	var uses int64
	if err := db.Model(&models.RecipeIngredient{}).Where("ingredient_id = ?", ing.ID).Count(&uses).Error; err != nil {
		s.respondError(c, apperr.Internal("falha ao excluir ingrediente", err))
		return
	}
	if uses > 0 {
		s.respondError(c, apperr.Conflict(msgIngredientInUse))
		return
	}
	if err := db.Delete(&ing).Error; err != nil {
		s.respondError(c, dbError(err, msgIngredientInUse))
		return
	}
	c.Status(http.StatusNoContent)
}
