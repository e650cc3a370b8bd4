package models

import "github.com/golang-jwt/jwt/v5"

// Role is the caller's role carried in the access token.
type Role string

// Supported roles.
const (
	RoleAdmin     Role = "ADMIN"
	RoleRegistrar Role = "REGISTRAR"
	RoleStudent   Role = "STUDENT"
)

// JWTClaims represents the JWT payload for access tokens. StudentNumber is
// set only for STUDENT tokens.
type JWTClaims struct {
	Role          Role   `json:"role"`
	StudentNumber string `json:"student_id,omitempty"`
	jwt.RegisteredClaims
}
