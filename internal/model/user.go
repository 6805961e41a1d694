// Package model defines domain models and data structures.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User represents a storefront account.
type User struct {
	ID             int64      `json:"id"`
	UUID           uuid.UUID  `json:"uuid"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Phone          string     `json:"phone"`
	IsBusinessUser bool       `json:"is_business_user"`
	ReferredByID   *int64     `json:"-"`
	ReferredByUUID *uuid.UUID `json:"referred_by_uuid"`
	IsActive       bool       `json:"is_active"`
	DateJoined     time.Time  `json:"date_joined"`
}

// CreateUserParams represents parameters for creating a new user.
type CreateUserParams struct {
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Phone          string     `json:"phone"`
	IsBusinessUser bool       `json:"is_business_user"`
	ReferredByUUID *uuid.UUID `json:"referred_by_uuid"`
}

// Validate validates the create user parameters.
func (p *CreateUserParams) Validate() error {
	p.Email = strings.TrimSpace(p.Email)
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return ErrInvalidEmail
	}

	return nil
}

// UpdateUserParams carries a partial update; nil fields are left untouched.
type UpdateUserParams struct {
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	Phone          *string `json:"phone"`
	IsBusinessUser *bool   `json:"is_business_user"`
	IsActive       *bool   `json:"is_active"`
}

// Apply copies the set fields onto u.
func (p *UpdateUserParams) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.IsBusinessUser != nil {
		u.IsBusinessUser = *p.IsBusinessUser
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
}
