package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the roles recognised by route guards.
type UserRole string

const (
	// RoleAdmin may read and write every record.
	RoleAdmin UserRole = "ADMIN"
	// RoleTeacher may read and write every record.
	RoleTeacher UserRole = "TEACHER"
	// RoleLearner may only read records whose learner id matches the token subject.
	RoleLearner UserRole = "LEARNER"
	// RoleViewer may read aggregate reports.
	RoleViewer UserRole = "VIEWER"
)

// JWTClaims represents the JWT payload for access tokens. Subject carries the
// caller id; for learners it is the learner id.
type JWTClaims struct {
	Role UserRole `json:"role"`
	Name string   `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IssueTokenRequest describes a token minted by operators.
type IssueTokenRequest struct {
	Subject string        `json:"subject" validate:"required"`
	Role    UserRole      `json:"role" validate:"required,oneof=ADMIN TEACHER LEARNER VIEWER"`
	Name    string        `json:"name"`
	TTL     time.Duration `json:"ttl"`
}

// IssuedToken is a signed access token.
type IssuedToken struct {
	AccessToken string    `json:"access_token" yaml:"access_token"`
	ExpiresAt   time.Time `json:"expires_at" yaml:"expires_at"`
}
