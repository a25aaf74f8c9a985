package models

import "github.com/golang-jwt/jwt/v5"

// UserType partitions the audience universe.
type UserType string

const (
	UserTypeStaff    UserType = "STAFF"
	UserTypeGuardian UserType = "GUARDIAN"
	UserTypeStudent  UserType = "STUDENT"
)

// Well-known role names used by visibility predicates.
const (
	// RoleSuperAdmin bypasses unit restrictions in the feed.
	RoleSuperAdmin = "SUPER_ADMIN"
	// RoleGuardian is the audience_roles token matched for guardians on
	// CUSTOM-scoped events.
	RoleGuardian = "Guardian"
)

// ValidUserType reports whether the value is a known audience type.
func ValidUserType(t UserType) bool {
	switch t {
	case UserTypeStaff, UserTypeGuardian, UserTypeStudent:
		return true
	}
	return false
}

// JWTClaims represents the JWT payload issued by the auth collaborator.
// This service only validates and reads it.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	UserType UserType `json:"user_type"`
	Roles    []string `json:"roles"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry the given role.
func (c *JWTClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
