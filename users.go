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

const msgUserNotFound = "Usuário não encontrado."

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

// updateUserRequest is a partial update; nil fields are left untouched.
type updateUserRequest struct {
	Name     *string      `json:"name" validate:"omitnil,notblank,max=120"`
	Email    *string      `json:"email" validate:"omitnil,email,max=255"`
	Role     *models.Role `json:"role"`
	Password *string      `json:"password" validate:"omitnil,password"`
}

func (s *server) meHandler(c *gin.Context) {
	u, err := s.users.ByID(c.Request.Context(), caller(c).ID)
	if store.IsNotFound(err) {
		s.respondError(c, apperr.NotFound(msgUserNotFound))
		return
	}
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao carregar usuário", err))
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

// changePasswordHandler lets the caller replace their own password. Every
// refresh token issued before stops working.
func (s *server) changePasswordHandler(c *gin.Context) {
	var req changePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}
	ctx := c.Request.Context()
	u, err := s.users.ByID(ctx, caller(c).ID)
	if store.IsNotFound(err) {
		s.respondError(c, apperr.Unauthenticated(msgInvalidCredentials))
		return
	}
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao carregar usuário", err))
		return
	}
	if !s.hasher.Verify(req.CurrentPassword, u.PasswordHash) {
		s.respondError(c, apperr.Unauthenticated(msgInvalidCredentials))
		return
	}
	digest, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao alterar senha", err))
		return
	}
	if err := s.users.SetPassword(ctx, u.ID, digest); err != nil {
		s.respondError(c, apperr.Internal("falha ao alterar senha", err))
		return
	}
	s.log.WithField("user_id", u.ID).Info("password changed")
	c.Status(http.StatusNoContent)
}

func (s *server) listUsersHandler(c *gin.Context) {
	users, err := s.users.List(c.Request.Context())
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao listar usuários", err))
		return
	}
	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, out)
}

func (s *server) getUserHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do usuário")
	if err != nil {
		s.respondError(c, err)
		return
	}
	u, err := s.users.ByID(c.Request.Context(), id)
	if store.IsNotFound(err) {
		s.respondError(c, apperr.NotFound(msgUserNotFound))
		return
	}
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao carregar usuário", err))
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

// updateUserHandler is the admin-only profile update. A password change bumps
// the token version like the self-service path.
func (s *server) updateUserHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do usuário")
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req updateUserRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	if req.Email != nil {
		*req.Email = validate.Email(*req.Email)
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(c, err)
		return
	}

	fields := map[string]any{}
	if req.Name != nil {
		fields["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			s.respondError(c, apperr.Validation("O campo 'role' deve ser 0 (padrão) ou 1 (admin)."))
			return
		}
		fields["role"] = *req.Role
	}
	if req.Password != nil {
		digest, err := s.hasher.Hash(*req.Password)
		if err != nil {
			s.respondError(c, apperr.Internal("falha ao atualizar usuário", err))
			return
		}
		fields["password_hash"] = digest
		fields["token_version"] = gorm.Expr("token_version + 1")
	}
	if len(fields) == 0 {
		s.respondError(c, apperr.Validation(msgNothingToUpdate))
		return
	}

	u, err := s.users.Update(c.Request.Context(), id, fields)
	switch {
	case store.IsNotFound(err):
		s.respondError(c, apperr.NotFound(msgUserNotFound))
	case errors.Is(err, store.ErrEmailTaken):
		s.respondError(c, apperr.Conflict(msgEmailTaken))
	case err != nil:
		s.respondError(c, apperr.Internal("falha ao atualizar usuário", err))
	default:
		s.log.WithField("user_id", u.ID).WithField("by", caller(c).ID).Info("user updated")
		c.JSON(http.StatusOK, u.Public())
	}
}

// deleteUserHandler refuses self-deletion and deleting other admins.
func (s *server) deleteUserHandler(c *gin.Context) {
	id, err := validate.ID(c.Param("id"), "do usuário")
	if err != nil {
		s.respondError(c, err)
		return
	}
	me := caller(c)
	if id == me.ID {
		s.respondError(c, apperr.Forbidden("Você não pode excluir a si mesmo."))
		return
	}
	ctx := c.Request.Context()
	target, err := s.users.ByID(ctx, id)
	if store.IsNotFound(err) {
		s.respondError(c, apperr.NotFound(msgUserNotFound))
		return
	}
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao carregar usuário", err))
		return
	}
	if target.Role.IsAdmin() {
		s.respondError(c, apperr.Forbidden("Não é permitido excluir outro administrador."))
		return
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if store.IsNotFound(err) {
			s.respondError(c, apperr.NotFound(msgUserNotFound))
			return
		}
		s.respondError(c, apperr.Internal("falha ao excluir usuário", err))
		return
	}
	s.log.WithField("user_id", id).WithField("by", me.ID).Info("user deleted")
	c.Status(http.StatusNoContent)
}
