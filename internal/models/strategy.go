package models

import (
	"time"

	"github.com/google/uuid"
)

// Strategy is a user-owned piece of trading code
type Strategy struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"userId"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Code        string    `db:"code" json:"code"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// StrategyPatch holds the optional fields of a strategy update. Nil fields
// are left untouched.
type StrategyPatch struct {
	Name        *string
	Description *string
	Code        *string
	IsActive    *bool
}

// Apply overwrites the fields of s that are set on the patch.
func (p StrategyPatch) Apply(s *Strategy) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Code != nil {
		s.Code = *p.Code
	}
	if p.IsActive != nil {
		s.IsActive = *p.IsActive
	}
}
