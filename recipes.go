package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recipecost/models"
	"recipecost/pkg/apperr"
	"recipecost/pkg/store"
	"recipecost/pkg/validate"
)

const (
	msgRecipeNotFound   = "Receita não encontrada."
	msgRecipeTaken      = "Receita já cadastrada."
	msgIngredientLinked = "Ingrediente já associado à receita."
	recipeImageKind     = "recipes"
)

type recipeLineRequest struct {
	IngredientID uint    `json:"ingredient_id" validate:"required"`
	Quantity     float64 `json:"quantity" validate:"gt=0"`
}

type recipeRequest struct {
	Name        string              `json:"name" validate:"required,notblank,max=120"`
	Description string              `json:"description" validate:"max=2000"`
	Price       float64             `json:"price" validate:"gte=0"`
	Ingredients []recipeLineRequest `json:"ingredients" validate:"omitempty,dive"`
}

type recipePatch struct {
	Name        *string  `json:"name" validate:"omitnil,notblank,max=120"`
	Description *string  `json:"description" validate:"omitnil,max=2000"`
	Price       *float64 `json:"price" validate:"omitnil,gte=0"`
}

func (p recipePatch) fields() map[string]any {
	f := map[string]any{}
	if p.Name != nil {
		f["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		f["description"] = strings.TrimSpace(*p.Description)
	}
	if p.Price != nil {
		f["price"] = *p.Price
	}
	return f
}

type recipeLineView struct {
	IngredientID uint    `json:"ingredient_id"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	UnitPrice    float64 `json:"unit_price"`
	Quantity     float64 `json:"quantity"`
	Cost         float64 `json:"cost"`
}

// recipeView is a recipe with its ingredient lines and computed cost.
type recipeView struct {
	models.Recipe
	Ingredients []recipeLineView `json:"ingredients"`
	Cost        float64          `json:"cost"`
}

func newRecipeView(r models.Recipe) recipeView {
	lines := make([]recipeLineView, 0, len(r.Lines))
	for _, l := range r.Lines {
		if l.Ingredient == nil {
			continue
		}
		lines = append(lines, recipeLineView{
			IngredientID: l.IngredientID,
			Name:         l.Ingredient.Name,
			Unit:         l.Ingredient.Unit,
			UnitPrice:    l.Ingredient.Price,
			Quantity:     l.Quantity,
			Cost:         l.Quantity * l.Ingredient.Price,
		})
	}
	return recipeView{Recipe: r, Ingredients: lines, Cost: r.Cost()}
}

func withRecipeLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).Preload("Lines.Ingredient")
}

// addRecipeLine links an ingredient of the recipe's owner to the recipe.
func addRecipeLine(tx *gorm.DB, r models.Recipe, ingredientID uint, qty float64) error {
	var ing models.Ingredient
	err := tx.Where("user_id = ?", r.UserID).First(&ing, ingredientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msgIngredientNotFound)
	}
	if err != nil {
		return err
	}
	line := models.RecipeIngredient{RecipeID: r.ID, IngredientID: ing.ID, Quantity: qty}
	if err := tx.Create(&line).Error; err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict(msgIngredientLinked)
		}
		return err
	}
	return nil
}

func (s *server) loadRecipe(c *gin.Context, id uint) (models.Recipe, error) {
	var r models.Recipe
	err := s.findOwned(c, &r, id, msgRecipeNotFound, withRecipeLines)
	return r, err
}

func (s *server) listRecipesHandler(c *gin.Context) {
	var items []models.Recipe
	err := s.db.WithContext(c.Request.Context()).Scopes(ownedBy(caller(c)), withRecipeLines).Order("name, id").Find(&items).Error
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao listar receitas", err))
		return
	}
	out := make([]recipeView, 0, len(items))
	for _, r := range items {
		out = append(out, newRecipeView(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) getRecipeHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	r, err := s.loadRecipe(c, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRecipeView(r))
}

// createRecipeHandler inserts the recipe and its ingredient lines in one
// transaction.
func (s *server) createRecipeHandler(c *gin.Context) {
	var req recipeRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	r := models.Recipe{
		UserID:      caller(c).ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Price:       req.Price,
	}
	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		for _, l := range req.Ingredients {
			if err := addRecipeLine(tx, r, l.IngredientID, l.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.respondError(c, dbError(err, msgRecipeTaken))
		return
	}
	created, err := s.loadRecipe(c, r.ID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRecipeView(created))
}

// replaceRecipeHandler replaces the scalar fields. Ingredient lines are
// managed through their own routes.
func (s *server) replaceRecipeHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req recipeRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	fields := map[string]any{
		"name":        strings.TrimSpace(req.Name),
		"description": strings.TrimSpace(req.Description),
		"price":       req.Price,
	}
	s.applyRecipeUpdate(c, id, fields)
}

func (s *server) patchRecipeHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req recipePatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	s.applyRecipeUpdate(c, id, req.fields())
}

func (s *server) applyRecipeUpdate(c *gin.Context, id uint, fields map[string]any) {
	var r models.Recipe
	if err := s.updateOwned(c, &r, id, fields, msgRecipeNotFound, msgRecipeTaken); err != nil {
		s.respondError(c, err)
		return
	}
	r, err := s.loadRecipe(c, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRecipeView(r))
}

// deleteRecipeHandler refuses recipes still used by orders and removes the
// stored image once the row is gone.
func (s *server) deleteRecipeHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var r models.Recipe
	if err := s.findOwned(c, &r, id, msgRecipeNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var uses int64
		if err := tx.Model(&models.OrderRecipe{}).Where("recipe_id = ?", r.ID).Count(&uses).Error; err != nil {
			return err
		}
		if uses > 0 {
			return apperr.Conflict("Receita usada em pedidos.")
		}
		if err := tx.Where("recipe_id = ?", r.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&r).Error
	})
	if err != nil {
		s.respondError(c, dbError(err, "Receita usada em pedidos."))
		return
	}
	if r.ImageURL != "" {
		if err := s.images.Remove(r.ImageURL); err != nil {
			s.log.WithError(err).WithField("recipe_id", r.ID).Warn("remove recipe image")
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *server) addRecipeIngredientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req recipeLineRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	var r models.Recipe
	if err := s.findOwned(c, &r, id, msgRecipeNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		return addRecipeLine(tx, r, req.IngredientID, req.Quantity)
	})
	if err != nil {
		s.respondError(c, dbError(err, msgIngredientLinked))
		return
	}
	r, err = s.loadRecipe(c, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRecipeView(r))
}

func (s *server) removeRecipeIngredientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	ingredientID, err := validate.ID(c.Param("ingredientId"), "do ingrediente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var r models.Recipe
	if err := s.findOwned(c, &r, id, msgRecipeNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	res := s.db.WithContext(c.Request.Context()).
		Where("recipe_id = ? AND ingredient_id = ?", r.ID, ingredientID).
		Delete(&models.RecipeIngredient{})
	if res.Error != nil {
		s.respondError(c, apperr.Internal("falha ao remover ingrediente da receita", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		s.respondError(c, apperr.NotFound("Ingrediente não associado à receita."))
		return
	}
	c.Status(http.StatusNoContent)
}

// uploadRecipeImageHandler stores a new image and thumbnail for the recipe
// and drops the previous pair.
func (s *server) uploadRecipeImageHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var r models.Recipe
	if err := s.findOwned(c, &r, id, msgRecipeNotFound); err != nil {
		s.respondError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.images.MaxBytes()+1<<20)
	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(c, apperr.Validation("A imagem excede o tamanho máximo permitido."))
			return
		}
		s.respondError(c, apperr.Validation("Envie a imagem no campo 'image'."))
		return
	}
	saved, err := s.images.Save(recipeImageKind, fh)
	if err != nil {
		s.respondError(c, err)
		return
	}

	previous := r.ImageURL
	err = s.db.WithContext(c.Request.Context()).Model(&r).Updates(map[string]any{
		"image_url": saved.URL,
		"thumb_url": saved.ThumbURL,
	}).Error
	if err != nil {
		if rmErr := s.images.Remove(saved.URL); rmErr != nil {
			s.log.WithError(rmErr).Warn("remove orphaned image")
		}
		s.respondError(c, apperr.Internal("falha ao salvar imagem", err))
		return
	}
	if previous != "" {
		if err := s.images.Remove(previous); err != nil {
			s.log.WithError(err).WithField("recipe_id", r.ID).Warn("remove previous recipe image")
		}
	}

	r, err = s.loadRecipe(c, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRecipeView(r))
}
