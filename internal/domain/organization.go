package domain

import "time"

// Organization is the tenant. OwnerID is the single creator holding the owner role.
type Organization struct {
	ID        string
	Name      string
	Industry  string
	Website   string
	Logo      string
	OwnerID   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Branch is a physical or logical location of an organization.
type Branch struct {
	ID             string
	OrganizationID string
	Name           string
	Location       string
	Contact        string
	Email          string
	ManagerID      *string
	CreatedAt      time.Time
}
