package models

import "github.com/golang-jwt/jwt/v5"

// Roles issued by the identity service, as carried in the token claims.
const (
	RoleSuperAdmin = "SUPERADMIN"
	RoleAdmin      = "ADMIN"
	RoleTeacher    = "TEACHER"
	RoleStudent    = "STUDENT"
)

// JWTClaims carries the identity attributes issued by the external identity
// service. This module only validates tokens, it never mints them.
type JWTClaims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
