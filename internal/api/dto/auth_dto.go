package dto

import "time"

// RegisterRequest creates an organization together with its owner.
type RegisterRequest struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	UserName         string `json:"user_name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationName string `json:"organization_name"`
	Industry         string `json:"industry"`
	Website          string `json:"website"`
}

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// InviteRequest adds a staff member to the caller's organization.
type InviteRequest struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Email      string  `json:"email"`
	Role       string  `json:"role"`
	BranchID   *string `json:"branch_id"`
	ParentID   *string `json:"parent_id"`
	JobTitle   string  `json:"job_title"`
	Department string  `json:"department"`
}

// PushTokenRequest registers an Expo push token for the caller.
type PushTokenRequest struct {
	Token string `json:"token"`
}

// PasswordChangeRequest payload for authenticated password change.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// PasswordResetRequest starts the reset flow.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// PasswordResetConfirmRequest completes the reset flow.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID             string     `json:"id"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	UserName       string     `json:"user_name"`
	Email          string     `json:"email"`
	OrganizationID string     `json:"organization_id"`
	BranchID       *string    `json:"branch_id,omitempty"`
	ParentID       *string    `json:"parent_id,omitempty"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	JobTitle       string     `json:"job_title,omitempty"`
	Department     string     `json:"department,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	Avatar         string     `json:"avatar,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastLoggedIn   *time.Time `json:"last_logged_in,omitempty"`
}
