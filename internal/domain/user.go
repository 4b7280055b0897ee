package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleReceptionist = "receptionist"
	RoleAssistant    = "assistant"
	RoleSystem       = "system"
)

// User is the staff record this engine reads; account management lives in the
// main clinic API.
type User struct {
	ID       uuid.UUID  `json:"id" db:"id"`
	Email    string     `json:"email" db:"email"`
	FullName string     `json:"full_name" db:"full_name"`
	Role     string     `json:"role" db:"role"`
	BranchID *uuid.UUID `json:"branch_id,omitempty" db:"branch_id"`
	IsActive bool       `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Actor identifies who is invoking an operation. Background jobs and domain
// services use SystemActor.
type Actor struct {
	ID       uuid.UUID
	Role     string
	BranchID *uuid.UUID
}

func (a Actor) IsAdmin() bool  { return a.Role == RoleAdmin }
func (a Actor) IsSystem() bool { return a.Role == RoleSystem }

var SystemActor = Actor{Role: RoleSystem}
