package dto

import "time"

// BranchRequest describes a branch to add to the organization.
type BranchRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Contact  string `json:"contact"`
	Email    string `json:"email"`
}

// UpdateOrganizationRequest edits the caller's organization.
type UpdateOrganizationRequest struct {
	Name     string          `json:"name"`
	Industry string          `json:"industry"`
	Website  string          `json:"website"`
	Logo     string          `json:"logo"`
	Branches []BranchRequest `json:"branches"`
}

// BranchResponse is a branch of an organization.
type BranchResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location,omitempty"`
	Contact   string    `json:"contact,omitempty"`
	Email     string    `json:"email,omitempty"`
	ManagerID *string   `json:"manager_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OrganizationResponse is an organization with optional branches.
type OrganizationResponse struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Industry string           `json:"industry,omitempty"`
	Website  string           `json:"website,omitempty"`
	Logo     string           `json:"logo,omitempty"`
	OwnerID  *string          `json:"owner_id,omitempty"`
	Branches []BranchResponse `json:"branches,omitempty"`
}
