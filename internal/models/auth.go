package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignupRequest registers a new student account.
type SignupRequest struct {
	Email    string    `json:"email" validate:"required,email"`
	Name     string    `json:"name" validate:"required,min=2,max=120"`
	Password string    `json:"password" validate:"required,min=6"`
	Role     *UserRole `json:"role" validate:"omitempty,oneof=ADMIN SUPERVISOR STUDENT"`
}

// SigninRequest holds credentials for authenticating a user.
type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse returns the issued access token and user info.
type AuthResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   int64     `json:"expiresIn"`
	IssuedAt    time.Time `json:"issuedAt"`
	User        Identity  `json:"user"`
}

// JWTClaims represents the JWT payload for access tokens. Subject carries the user id.
type JWTClaims struct {
	Role  UserRole `json:"role"`
	Email string   `json:"email"`
	jwt.RegisteredClaims
}
