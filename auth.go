package main

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recipecost/models"
	"recipecost/pkg/apperr"
	"recipecost/pkg/store"
	"recipecost/pkg/validate"
)

// Generic messages. Login never tells an unknown email from a wrong password.
const (
	msgInvalidCredentials = "Email ou senha inválidos."
	msgRefreshMissing     = "Refresh token ausente."
	msgRefreshInvalid     = "Refresh token inválido ou expirado."
	msgEmailTaken         = "Email já cadastrado."
)

type registerRequest struct {
	Name     string `json:"name" validate:"required,notblank,max=120"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,password"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	TokenType   string             `json:"token_type"`
	AccessToken string             `json:"access_token"`
	ExpiresIn   int64              `json:"expires_in"`
	User        *models.PublicUser `json:"user,omitempty"`
}

// register creates a standard account. The store's unique index decides
// duplicate races.
func (s *server) register(ctx context.Context, req registerRequest) (models.User, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = validate.Email(req.Email)
	if err := validate.Struct(req); err != nil {
		return models.User{}, err
	}
	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		return models.User{}, apperr.Internal("falha ao registrar usuário", err)
	}
	u := models.User{Name: req.Name, Email: req.Email, PasswordHash: digest, Role: models.RoleStandard}
	if err := s.users.Create(ctx, &u); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return models.User{}, apperr.Conflict(msgEmailTaken)
		}
		return models.User{}, apperr.Internal("falha ao registrar usuário", err)
	}
	return u, nil
}

// authenticate checks credentials. Unknown emails still pay for one hash
// comparison.
func (s *server) authenticate(ctx context.Context, req loginRequest) (models.User, error) {
	if err := validate.Struct(req); err != nil {
		return models.User{}, err
	}
	u, err := s.users.ByEmail(ctx, validate.Email(req.Email))
	if store.IsNotFound(err) {
		s.hasher.VerifyMissing(req.Password)
		return models.User{}, apperr.Unauthenticated(msgInvalidCredentials)
	}
	if err != nil {
		return models.User{}, apperr.Internal("falha ao autenticar", err)
	}
	if !s.hasher.Verify(req.Password, u.PasswordHash) {
		return models.User{}, apperr.Unauthenticated(msgInvalidCredentials)
	}
	return u, nil
}

// refreshUser resolves a refresh token to its still existing user. A token
// minted before the user's last password change is rejected.
func (s *server) refreshUser(ctx context.Context, token string) (models.User, error) {
	claims, err := s.issuer.VerifyRefresh(token)
	if err != nil {
		return models.User{}, apperr.Unauthenticated(msgRefreshInvalid)
	}
	uid, err := claims.UserID()
	if err != nil {
		return models.User{}, apperr.Unauthenticated(msgRefreshInvalid)
	}
	u, err := s.users.ByID(ctx, uid)
	if store.IsNotFound(err) {
		return models.User{}, apperr.Unauthenticated(msgRefreshInvalid)
	}
	if err != nil {
		return models.User{}, apperr.Internal("falha ao renovar sessão", err)
	}
	if u.TokenVersion != claims.Version {
		return models.User{}, apperr.Unauthenticated(msgRefreshInvalid)
	}
	return u, nil
}

// startSession issues both tokens, binds the refresh token to the cookie
// and writes the access token body.
func (s *server) startSession(c *gin.Context, status int, u models.User) {
	access, err := s.issuer.IssueAccess(u)
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao emitir token", err))
		return
	}
	refresh, err := s.issuer.IssueRefresh(u)
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao emitir token", err))
		return
	}
	s.cookies.Set(c, refresh)
	pub := u.Public()
	c.JSON(status, sessionResponse{
		TokenType:   "Bearer",
		AccessToken: access,
		ExpiresIn:   int64(s.issuer.AccessTTL().Seconds()),
		User:        &pub,
	})
}

func (s *server) registerHandler(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	u, err := s.register(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	s.startSession(c, http.StatusCreated, u)
}

func (s *server) loginHandler(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		s.respondError(c, err)
		return
	}
	u, err := s.authenticate(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.startSession(c, http.StatusOK, u)
}

// refreshHandler mints a new access token only; the refresh cookie is left
// as it is.
func (s *server) refreshHandler(c *gin.Context) {
	token, ok := s.cookies.Read(c)
	if !ok {
		s.respondError(c, apperr.Unauthenticated(msgRefreshMissing))
		return
	}
	u, err := s.refreshUser(c.Request.Context(), token)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindAuthentication {
			s.cookies.Clear(c)
		}
		s.respondError(c, err)
		return
	}
	access, err := s.issuer.IssueAccess(u)
	if err != nil {
		s.respondError(c, apperr.Internal("falha ao emitir token", err))
		return
	}
	c.JSON(http.StatusOK, sessionResponse{
		TokenType:   "Bearer",
		AccessToken: access,
		ExpiresIn:   int64(s.issuer.AccessTTL().Seconds()),
	})
}

func (s *server) logoutHandler(c *gin.Context) {
	s.cookies.Clear(c)
	c.Status(http.StatusNoContent)
}
