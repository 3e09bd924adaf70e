package models

import (
	"time"
)

// User model. Email is stored lower-cased, so the unique index makes it
// unique case-insensitively.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Name         string `gorm:"size:120;not null"`
	Email        string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash []byte `gorm:"not null"`
	Role         Role   `gorm:"not null;default:0;index"`
	// TokenVersion is embedded in refresh tokens; bumping it invalidates
	// every refresh token issued before.
	TokenVersion int `gorm:"not null;default:0"`
}

// PublicUser is the only shape of a user that leaves the service.
type PublicUser struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
