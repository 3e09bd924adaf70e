package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"recipecost/models"
)

// Users is the credential store.
type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create inserts u. The unique index on email is the source of truth for
// duplicates, so concurrent registrations lose with ErrEmailTaken.
func (s *Users) Create(ctx context.Context, u *models.User) error {
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Users) ByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("load user %d: %w", id, err)
	}
	return u, nil
}

// ByEmail looks up a user by an already normalized email.
func (s *Users) ByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("load user by email: %w", err)
	}
	return u, nil
}

func (s *Users) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("name, id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Update applies column updates to user id and returns the stored result.
func (s *Users) Update(ctx context.Context, id uint, fields map[string]any) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&u, id).Error; err != nil {
			return err
		}
		if len(fields) == 0 {
			return nil
		}
		if err := tx.Model(&u).Updates(fields).Error; err != nil {
			return err
		}
		return tx.First(&u, id).Error
	})
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.User{}, ErrNotFound
	case IsUniqueViolation(err):
		return models.User{}, ErrEmailTaken
	default:
		return models.User{}, fmt.Errorf("update user %d: %w", id, err)
	}
}

// SetPassword stores a new digest and bumps the token version, which
// invalidates every refresh token issued before.
func (s *Users) SetPassword(ctx context.Context, id uint, digest []byte) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash": digest,
		"token_version": gorm.Expr("token_version + 1"),
	})
	if res.Error != nil {
		return fmt.Errorf("set password for user %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user together with every record the user owns, in one
// transaction.
func (s *Users) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := tx.Model(&models.Order{}).Select("id").Where("user_id = ?", id)
		recipes := tx.Model(&models.Recipe{}).Select("id").Where("user_id = ?", id)
		steps := []struct {
			model any
			query string
			arg   any
		}{
			{&models.OrderRecipe{}, "order_id IN (?)", orders},
			{&models.Order{}, "user_id = ?", id},
			{&models.Client{}, "user_id = ?", id},
			{&models.RecipeIngredient{}, "recipe_id IN (?)", recipes},
			{&models.Recipe{}, "user_id = ?", id},
			{&models.Ingredient{}, "user_id = ?", id},
		}
		for _, st := range steps {
			if err := tx.Where(st.query, st.arg).Delete(st.model).Error; err != nil {
				return fmt.Errorf("delete owned rows of user %d: %w", id, err)
			}
		}
		res := tx.Delete(&models.User{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete user %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// HasAdmin reports whether at least one admin account exists.
func (s *Users) HasAdmin(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return n > 0, nil
}
