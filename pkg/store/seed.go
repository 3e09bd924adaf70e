package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"recipecost/models"
)

// PasswordHasher is the part of the password hasher seeding needs.
type PasswordHasher interface {
	Hash(secret string) ([]byte, error)
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Reset drops every table and migrates again.
func Reset(db *gorm.DB) error {
	if err := models.DropAll(db); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return Migrate(db)
}

// SeedAdmin creates the default admin account when no admin exists yet and
// reports whether it did. An existing non-admin account holding the address is
// never promoted; ErrEmailTaken is returned instead.
func SeedAdmin(ctx context.Context, db *gorm.DB, email, password string, h PasswordHasher, log logrus.FieldLogger) (bool, error) {
	users := NewUsers(db)
	ok, err := users.HasAdmin(ctx)
	if err != nil || ok {
		return false, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		log.Warn("no admin account exists and ADMIN_EMAIL/ADMIN_PASSWORD are empty; skipping seed")
		return false, nil
	}
	digest, err := h.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash admin password: %w", err)
	}
	admin := models.User{Name: "Administrador", Email: email, PasswordHash: digest, Role: models.RoleAdmin}
	if err := users.Create(ctx, &admin); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, fmt.Errorf("admin email %s belongs to a non-admin account: %w", email, err)
		}
		return false, err
	}
	log.WithField("email", email).Info("seeded admin account")
	return true, nil
}
