package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"recipecost/pkg/apperr"
	"recipecost/pkg/auth"
	"recipecost/pkg/config"
	"recipecost/pkg/imagestore"
	"recipecost/pkg/store"
)

const msgNothingToUpdate = "Informe ao menos um campo para atualizar."

// server carries every dependency the handlers need. It is built once in
// newServer and never mutated afterwards.
type server struct {
	cfg     *config.Config
	db      *gorm.DB
	log     logrus.FieldLogger
	users   *store.Users
	hasher  *auth.Hasher
	issuer  *auth.Issuer
	cookies *auth.CookieManager
	images  *imagestore.Store
}

func newServer(cfg *config.Config, db *gorm.DB, hasher *auth.Hasher, log logrus.FieldLogger) *server {
	return &server{
		cfg:     cfg,
		db:      db,
		log:     log,
		users:   store.NewUsers(db),
		hasher:  hasher,
		issuer:  auth.NewIssuer(cfg),
		cookies: auth.NewCookieManager(cfg),
		images:  imagestore.New(cfg.UploadBase, cfg.UploadMaxBytes, cfg.ThumbWidth),
	}
}

// respondError writes {"erro": msg} with the status of err's kind. Internal
// errors are logged with their cause; the client only sees the generic text.
func (s *server) respondError(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"erro": apperr.Message(err)})
}

// bindJSON decodes the body into dst. Shape rules are checked by the caller
// through validate.Struct.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return apperr.Validation("Corpo da requisição inválido.")
	}
	return nil
}

// caller returns the authenticated identity. Routes reaching it always run
// behind auth.RequireAuth.
func caller(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
}

// ownedBy restricts a query to the caller's rows unless the caller is an
// admin.
func ownedBy(id auth.Identity) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if id.IsAdmin() {
			return db
		}
		return db.Where("user_id = ?", id.ID)
	}
}

// findOwned loads the row with primary key id into dst if the caller may see
// it. Rows of other users are reported exactly like missing ones. Extra
// scopes add preloads.
func (s *server) findOwned(c *gin.Context, dst any, id uint, notFound string, scopes ...func(*gorm.DB) *gorm.DB) error {
	err := s.db.WithContext(c.Request.Context()).Scopes(ownedBy(caller(c))).Scopes(scopes...).First(dst, id).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound(notFound)
	default:
		return apperr.Internal("falha ao consultar banco de dados", err)
	}
}

// updateOwned applies column updates to a row the caller may see and reloads
// it into dst.
func (s *server) updateOwned(c *gin.Context, dst any, id uint, fields map[string]any, notFound, conflict string) error {
	if len(fields) == 0 {
		return apperr.Validation(msgNothingToUpdate)
	}
	if err := s.findOwned(c, dst, id, notFound); err != nil {
		return err
	}
	db := s.db.WithContext(c.Request.Context())
	if err := db.Model(dst).Updates(fields).Error; err != nil {
		return dbError(err, conflict)
	}
	if err := db.First(dst, id).Error; err != nil {
		return apperr.Internal("falha ao recarregar registro", err)
	}
	return nil
}

// dbError classifies a write failure. Already classified errors pass
// through.
func dbError(err error, conflict string) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case store.IsUniqueViolation(err):
		return apperr.Conflict(conflict)
	case store.IsForeignKeyViolation(err):
		return apperr.Conflict("O registro está em uso por outro registro.")
	default:
		return apperr.Internal("falha ao gravar no banco de dados", err)
	}
}
