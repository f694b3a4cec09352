package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleTenant Role = "tenant"
	RoleVendor Role = "vendor"
	RoleAdmin  Role = "admin"
)

type Profile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      Role      `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	// Company is set for vendors and owners acting through an SCI.
	Company   *string   `json:"company,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is what the auth provider vouches for on a bearer token.
type Identity struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
