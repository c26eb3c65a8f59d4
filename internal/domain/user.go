package domain

import "time"

// Role enumerates the organizational roles a user can hold.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// IsAdmin reports whether the role may approve and delete on behalf of the organization.
func (r Role) IsAdmin() bool {
	return r == RoleOwner || r == RoleManager
}

// UserStatus represents lifecycle states for a user account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// UserProfile holds optional contact and avatar details.
type UserProfile struct {
	Phone  string `json:"phone,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// UserSettings holds client preferences.
type UserSettings struct {
	Theme           string `json:"theme"`
	Mode            string `json:"mode"`
	NotificationsOn bool   `json:"notificationsOn"`
}

// User is a staff member of an organization. ParentID points at the user's manager.
type User struct {
	ID             string
	FirstName      string
	LastName       string
	UserName       string
	Email          string
	PasswordHash   string
	OrganizationID string
	BranchID       *string
	ParentID       *string
	Role           Role
	Status         UserStatus
	JobTitle       string
	Department     string
	PushTokens     []string
	Profile        UserProfile
	Settings       UserSettings
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastLoggedIn   *time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
