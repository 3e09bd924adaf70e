package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recipecost/models"
	"recipecost/pkg/apperr"
	"recipecost/pkg/store"
	"recipecost/pkg/validate"
)

const (
	msgOrderNotFound = "Pedido não encontrado."
	msgRecipeInOrder = "Receita já incluída no pedido."
)

type orderLineRequest struct {
	RecipeID  uint     `json:"recipe_id" validate:"required"`
	Quantity  float64  `json:"quantity" validate:"gt=0"`
	UnitPrice *float64 `json:"unit_price" validate:"omitnil,gte=0"`
}

type orderRequest struct {
	ClientID     uint               `json:"client_id" validate:"required"`
	Description  string             `json:"description" validate:"max=2000"`
	Priority     string             `json:"priority" validate:"omitempty,oneof=low normal high"`
	Status       string             `json:"status" validate:"omitempty,oneof=open in_progress done cancelled"`
	ProfitMargin float64            `json:"profit_margin" validate:"gte=0"`
	DueDate      string             `json:"due_date"`
	Recipes      []orderLineRequest `json:"recipes" validate:"omitempty,dive"`
}

type orderPatch struct {
	ClientID     *uint    `json:"client_id" validate:"omitnil,gt=0"`
	Description  *string  `json:"description" validate:"omitnil,max=2000"`
	Priority     *string  `json:"priority" validate:"omitnil,oneof=low normal high"`
	Status       *string  `json:"status" validate:"omitnil,oneof=open in_progress done cancelled"`
	ProfitMargin *float64 `json:"profit_margin" validate:"omitnil,gte=0"`
	// DueDate set to "" clears the date.
	DueDate *string `json:"due_date"`
}

type orderLineView struct {
	RecipeID  uint    `json:"recipe_id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Total     float64 `json:"total"`
}

type orderView struct {
	models.Order
	Recipes []orderLineView `json:"recipes"`
}

func newOrderView(o models.Order) orderView {
	lines := make([]orderLineView, 0, len(o.Lines))
	for _, l := range o.Lines {
		v := orderLineView{RecipeID: l.RecipeID, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Total: l.Quantity * l.UnitPrice}
		if l.Recipe != nil {
			v.Name = l.Recipe.Name
		}
		lines = append(lines, v)
	}
	return orderView{Order: o, Recipes: lines}
}

func withOrderLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).Preload("Lines.Recipe")
}

func parseDueDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := validate.Date(raw, "due_date")
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// clientFor resolves a client the order owner holds.
func clientFor(tx *gorm.DB, ownerID, clientID uint) (models.Client, error) {
	var cl models.Client
	err := tx.Where("user_id = ?", ownerID).First(&cl, clientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cl, apperr.NotFound(msgClientNotFound)
	}
	return cl, err
}

// addOrderLine adds a recipe of the order's owner. The unit price defaults to
// the recipe's current sale price.
func addOrderLine(tx *gorm.DB, o models.Order, l orderLineRequest) error {
	var r models.Recipe
	err := tx.Where("user_id = ?", o.UserID).First(&r, l.RecipeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msgRecipeNotFound)
	}
	if err != nil {
		return err
	}
	price := r.Price
	if l.UnitPrice != nil {
		price = *l.UnitPrice
	}
	line := models.OrderRecipe{OrderID: o.ID, RecipeID: r.ID, Quantity: l.Quantity, UnitPrice: price}
	if err := tx.Create(&line).Error; err != nil {
		if store.IsUniqueViolation(err) {
			return apperr.Conflict(msgRecipeInOrder)
		}
		return err
	}
	return nil
}

// recomputeTotal stores the order total derived from its lines and margin.
func recomputeTotal(tx *gorm.DB, orderID uint) error {
	var o models.Order
	if err := tx.First(&o, orderID).Error; err != nil {
		return err
	}
	var lines []models.OrderRecipe
	if err := tx.Where("order_id = ?", orderID).Find(&lines).Error; err != nil {
		return err
	}
	return tx.Model(&o).Update("total_price", models.ComputeTotal(lines, o.ProfitMargin)).Error
}

// mutateOrder runs fn on an order the caller may see inside a transaction,
// then recomputes its total and answers with the stored result.
func (s *server) mutateOrder(c *gin.Context, id uint, status int, fn func(tx *gorm.DB, o models.Order) error) {
	err := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Scopes(ownedBy(caller(c))).First(&o, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(msgOrderNotFound)
		}
		if err != nil {
			return err
		}
		if err := fn(tx, o); err != nil {
			return err
		}
		return recomputeTotal(tx, o.ID)
	})
	if err != nil {
		s.respondError(c, dbError(err, msgRecipeInOrder))
		return
	}
	s.respondOrder(c, status, id)
}

func (s *server) respondOrder(c *gin.Context, status int, id uint) {
	var o models.Order
	if err := s.findOwned(c, &o, id, msgOrderNotFound, withOrderLines); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(status, newOrderView(o))
}

func (s *server) listOrdersHandler(c *gin.Context) {
	q := s.db.WithContext(c.Request.Context()).Scopes(ownedBy(caller(c)), withOrderLines)
	if st := c.Query("status"); st != "" {
		if !models.ValidStatus(st) {
			s.respondError(c, apperr.Validation("O filtro 'status' deve ser um de: open in_progress done cancelled."))
			return
		}
		q = q.Where("status = ?", st)
	}
	var items []models.Order
	if err := q.Order("id").Find(&items).Error; err != nil {
		s.respondError(c, apperr.Internal("falha ao listar pedidos", err))
		return
	}
	out := make([]orderView, 0, len(items))
	for _, o := range items {
		out = append(out, newOrderView(o))
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) getOrderHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do pedido")
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.respondOrder(c, http.StatusOK, id)
}

// createOrderHandler creates the order and its recipe lines in one
// transaction. The order belongs to the owner of its client.
func (s *server) createOrderHandler(c *gin.Context) {
	var req orderRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var o models.Order
	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var cl models.Client
		err := tx.Scopes(ownedBy(caller(c))).First(&cl, req.ClientID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(msgClientNotFound)
		}
		if err != nil {
			return err
		}
		o = models.Order{
			UserID:       cl.UserID,
			ClientID:     cl.ID,
			Description:  strings.TrimSpace(req.Description),
			Priority:     orDefault(req.Priority, models.PriorityNormal),
			Status:       orDefault(req.Status, models.StatusOpen),
			ProfitMargin: req.ProfitMargin,
			DueDate:      due,
		}
		if err := tx.Create(&o).Error; err != nil {
			return err
		}
		for _, l := range req.Recipes {
			if err := addOrderLine(tx, o, l); err != nil {
				return err
			}
		}
		return recomputeTotal(tx, o.ID)
	})
	if err != nil {
		s.respondError(c, dbError(err, msgRecipeInOrder))
		return
	}
	s.respondOrder(c, http.StatusCreated, o.ID)
}

// replaceOrderHandler replaces the scalar fields. Recipe lines are managed
// through their own routes.
func (s *server) replaceOrderHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do pedido")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req orderRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.mutateOrder(c, id, http.StatusOK, func(tx *gorm.DB, o models.Order) error {
		if _, err := clientFor(tx, o.UserID, req.ClientID); err != nil {
			return err
		}
		return tx.Model(&o).Updates(map[string]any{
			"client_id":     req.ClientID,
			"description":   strings.TrimSpace(req.Description),
			"priority":      orDefault(req.Priority, models.PriorityNormal),
			"status":        orDefault(req.Status, models.StatusOpen),
			"profit_margin": req.ProfitMargin,
			"due_date":      due,
		}).Error
	})
}

func (s *server) patchOrderHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do pedido")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req orderPatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	fields := map[string]any{}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Priority != nil {
		fields["priority"] = *req.Priority
	}
	if req.Status != nil {
		fields["status"] = *req.Status
	}
	if req.ProfitMargin != nil {
		fields["profit_margin"] = *req.ProfitMargin
	}
	if req.DueDate != nil {
		due, err := parseDueDate(*req.DueDate)
		if err != nil {
			s.respondError(c, err)
			return
		}
		fields["due_date"] = due
	}
	if req.ClientID != nil {
		fields["client_id"] = *req.ClientID
	}
	if len(fields) == 0 {
		s.respondError(c, apperr.Validation(msgNothingToUpdate))
		return
	}
	s.mutateOrder(c, id, http.StatusOK, func(tx *gorm.DB, o models.Order) error {
		if req.ClientID != nil {
			if _, err := clientFor(tx, o.UserID, *req.ClientID); err != nil {
				return err
			}
		}
		return tx.Model(&o).Updates(fields).Error
	})
}

func (s *server) deleteOrderHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do pedido")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var o models.Order
	if err := s.findOwned(c, &o, id, msgOrderNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	err = s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", o.ID).Delete(&models.OrderRecipe{}).Error; err != nil {
			return err
		}
		return tx.Delete(&o).Error
	})
	if err != nil {
		s.respondError(c, dbError(err, msgRecipeInOrder))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *server) addOrderRecipeHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do pedido")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req orderLineRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	s.mutateOrder(c, id, http.StatusCreated, func(tx *gorm.DB, o models.Order) error {
		return addOrderLine(tx, o, req)
	})
}

func (s *server) removeOrderRecipeHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do pedido")
	if err != nil {
		s.respondError(c, err)
		return
	}
	recipeID, err := validate.ID(c.Param("recipeId"), "da receita")
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.mutateOrder(c, id, http.StatusOK, func(tx *gorm.DB, o models.Order) error {
		res := tx.Where("order_id = ? AND recipe_id = ?", o.ID, recipeID).Delete(&models.OrderRecipe{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("Receita não incluída no pedido.")
		}
		return nil
	})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
