package models

import "time"

// UserRole represents the available roles for capability checks.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleStudent    UserRole = "STUDENT"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleStudent:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         UserRole  `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Identity returns the credential-free view of the user.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Identity is the authenticated caller attached to a request.
type Identity struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  UserRole `json:"role"`
}

// Is reports whether the identity carries the role.
func (i Identity) Is(role UserRole) bool {
	return i.Role == role
}

// UserSummary is the compact user shape embedded in other payloads.
type UserSummary struct {
	ID    string `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *UserRole
	Search string
	Page   int
	Limit  int
}

// CreateUserRequest is the admin payload for creating accounts.
type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Name     string   `json:"name" validate:"required,min=2,max=120"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN SUPERVISOR STUDENT"`
}

// UpdateUserRequest is the admin payload for partial user updates.
type UpdateUserRequest struct {
	Email    *string   `json:"email" validate:"omitempty,email"`
	Name     *string   `json:"name" validate:"omitempty,min=2,max=120"`
	Password *string   `json:"password" validate:"omitempty,min=6"`
	Role     *UserRole `json:"role" validate:"omitempty,oneof=ADMIN SUPERVISOR STUDENT"`
}
