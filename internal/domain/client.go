package domain

import "time"

// ClientType distinguishes people from companies.
type ClientType string

const (
	ClientTypeIndividual   ClientType = "individual"
	ClientTypeOrganization ClientType = "organization"
)

// ClientStatus toggles whether a client is currently engaged.
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client is a customer of an organization.
type Client struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	Address        string
	Type           ClientType
	Status         ClientStatus
	Industry       string
	Notes          string
	OrganizationID string
	BranchID       *string
	AssignedTo     *string
	ProjectIDs     []string
	Feedback       []Feedback
	CreatedBy      string
	UpdatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Feedback is one entry of a client's feedback log, addressed by its stable ID.
type Feedback struct {
	ID        string
	ClientID  string
	Text      string
	AuthorID  string
	Seen      bool
	Edited    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
