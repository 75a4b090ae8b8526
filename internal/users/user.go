// Package users stores shopper accounts.
package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reddragons/storefront-backend/pkg/db/models"
)

// Profile is the account as shown to its owner; credentials never leave
// the package in this shape.
type Profile struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	DisplayName string     `json:"display_name"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func ProfileOf(u *models.User) *Profile {
	if u == nil {
		return nil
	}
	return &Profile{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// NewUser is a signup ready to persist. The password is already hashed.
type NewUser struct {
	Email        string
	PasswordHash string
	DisplayName  string
}

// Model builds the row for n. A blank display name falls back to the
// mailbox part of the address.
func (n NewUser) Model() *models.User {
	email := NormalizeEmail(n.Email)
	display := strings.TrimSpace(n.DisplayName)
	if display == "" {
		display, _, _ = strings.Cut(email, "@")
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: n.PasswordHash,
		DisplayName:  display,
		IsActive:     true,
	}
}

// NormalizeEmail lowercases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
