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
	msgClientNotFound = "Cliente não encontrado."
	msgClientTaken    = "Cliente já cadastrado."
)

type clientRequest struct {
	Name    string `json:"name" validate:"required,notblank,max=120"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"max=64"`
	Address string `json:"address" validate:"max=512"`
}

func (r clientRequest) fields() map[string]any {
	return map[string]any{
		"name":    strings.TrimSpace(r.Name),
		"email":   validate.Email(r.Email),
		"phone":   strings.TrimSpace(r.Phone),
		"address": strings.TrimSpace(r.Address),
	}
}

type clientPatch struct {
	Name    *string `json:"name" validate:"omitnil,notblank,max=120"`
	Email   *string `json:"email" validate:"omitnil,optemail,max=255"`
	Phone   *string `json:"phone" validate:"omitnil,max=64"`
	Address *string `json:"address" validate:"omitnil,max=512"`
}

func (p clientPatch) fields() map[string]any {
	f := map[string]any{}
	if p.Name != nil {
		f["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		f["email"] = validate.Email(*p.Email)
	}
	if p.Phone != nil {
		f["phone"] = strings.TrimSpace(*p.Phone)
	}
	if p.Address != nil {
		f["address"] = strings.TrimSpace(*p.Address)
	}
	return f
}

func (s *server) listClientsHandler(c *gin.Context) {
	var items []models.Client
	err := s.db.WithContext(c.Request.Context()).Scopes(ownedBy(caller(c))).Order("name, id").Find(&items).Error
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao listar clientes", err))
		return
	}
	c.JSON(http.StatusOK, items)
}

func (s *server) getClientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do cliente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var cl models.Client
	if err := s.findOwned(c, &cl, id, msgClientNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (s *server) createClientHandler(c *gin.Context) {
	var req clientRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	cl := models.Client{
		UserID:  caller(c).ID,
		Name:    strings.TrimSpace(req.Name),
		Email:   validate.Email(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Address: strings.TrimSpace(req.Address),
	}
	if err := s.db.WithContext(c.Request.Context()).Create(&cl).Error; err != nil {
		s.respondError(c, dbError(err, msgClientTaken))
		return
	}
	c.JSON(http.StatusCreated, cl)
}

func (s *server) replaceClientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do cliente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req clientRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	var cl models.Client
	if err := s.updateOwned(c, &cl, id, req.fields(), msgClientNotFound, msgClientTaken); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

func (s *server) patchClientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do cliente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req clientPatch
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	var cl models.Client
	if err := s.updateOwned(c, &cl, id, req.fields(), msgClientNotFound, msgClientTaken); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cl)
}

// deleteClientHandler refuses clients that still have orders.
func (s *server) deleteClientHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do cliente")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var cl models.Client
	if err := s.findOwned(c, &cl, id, msgClientNotFound); err != nil {
		s.respondError(c, err)
		return
	}
	db := s.db.WithContext(c.Request.Context())
	var orders int64
	if err := db.Model(&models.Order{}).Where("client_id = ?", cl.ID).Count(&orders).Error; err != nil {
		s.respondError(c, apperr.Internal("falha ao excluir cliente", err))
		return
	}
	if orders > 0 {
		s.respondError(c, apperr.Conflict("Cliente possui pedidos."))
		return
	}
	if err := db.Delete(&cl).Error; err != nil {
		s.respondError(c, dbError(err, "Cliente possui pedidos."))
		return
	}
	c.Status(http.StatusNoContent)
}
