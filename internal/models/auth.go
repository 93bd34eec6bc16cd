package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest carries operator credentials. IP and UserAgent are filled from
// the HTTP request for the login audit row.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// Operator is the public view of an administrator or teacher.
type Operator struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Operator    Operator  `json:"user"`
}

// JWTClaims is the access token payload.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Operator returns the identity the token was issued to.
func (c *JWTClaims) Operator() Operator {
	return Operator{ID: c.UserID, Email: c.Email, FullName: c.FullName, Role: c.Role}
}

// Operator returns the public view of the account.
func (u *User) Operator() Operator {
	return Operator{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role}
}
