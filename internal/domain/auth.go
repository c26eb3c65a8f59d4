package domain

import "time"

// Token describes an issued access token.
type Token struct {
	UserID         string
	OrganizationID string
	Role           Role
	ExpiresAt      time.Time
	IssuedAt       time.Time
}

// PasswordReset is a single-use password reset grant.
type PasswordReset struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
