package domain

import "time"

// ProjectStatus enumerates project states.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusInactive ProjectStatus = "inactive"
)

// Project belongs to exactly one client.
type Project struct {
	ID             string
	Name           string
	Description    string
	Budget         float64
	Deadline       *time.Time
	Status         ProjectStatus
	OrganizationID string
	ClientID       string
	AssignedTo     *string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
