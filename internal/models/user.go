package models

import (
	"time"
)

// Marketplace roles. Students order prints, creators publish study
// material, print shops fulfill orders.
const (
	RoleStudent   = "student"
	RoleCreator   = "creator"
	RolePrintShop = "print_shop"
	RoleAdmin     = "admin"
)

const (
	StatusActive    = "active"
	StatusSuspended = "suspended"
	StatusDisabled  = "disabled"
)

type User struct {
	ID                string
	Email             string
	PasswordHash      string
	Name              string
	Role              string // student, creator, print_shop, admin
	Status            string // active, suspended, disabled
	EmailVerified     bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
	PasswordChangedAt *time.Time // invalidates tokens issued before a reset
}

// ValidRole reports whether a role is one the marketplace knows.
func ValidRole(role string) bool {
	switch role {
	case RoleStudent, RoleCreator, RolePrintShop, RoleAdmin:
		return true
	}
	return false
}
