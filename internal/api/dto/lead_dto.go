package dto

import "time"

// CreateLeadRequest payload for new leads.
type CreateLeadRequest struct {
	Name                  string     `json:"name"`
	Type                  string     `json:"type"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	BranchID              string     `json:"branch_id"`
	Source                string     `json:"source"`
	Notes                 string     `json:"notes"`
	AssignedTo            *string    `json:"assigned_to"`
	ScheduledFollowupDate *time.Time `json:"scheduled_followup_date"`
}

// LeadStatusRequest asks for a lead status change.
type LeadStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// LeadReviewRequest approves or rejects an inactive request.
type LeadReviewRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// LeadHistoryResponse mirrors the lead history block.
type LeadHistoryResponse struct {
	CreatedAt time.Time  `json:"created_at"`
	CreatedBy string     `json:"created_by"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	UpdatedBy *string    `json:"updated_by,omitempty"`
	Reason    string     `json:"reason"`
}

// LeadResponse is the lead view.
type LeadResponse struct {
	ID                    string              `json:"id"`
	Name                  string              `json:"name"`
	Type                  string              `json:"type"`
	Email                 string              `json:"email"`
	Phone                 string              `json:"phone"`
	Address               string              `json:"address,omitempty"`
	BranchID              string              `json:"branch_id"`
	Source                string              `json:"source"`
	AssignedTo            *string             `json:"assigned_to,omitempty"`
	Approval              string              `json:"approval"`
	Status                string              `json:"status"`
	Notes                 string              `json:"notes,omitempty"`
	History               LeadHistoryResponse `json:"history"`
	ScheduledFollowupDate *time.Time          `json:"scheduled_followup_date,omitempty"`
	IsArchived            bool                `json:"is_archived"`
	InactiveRequested     bool                `json:"inactive_requested"`
}

// LeadTransitionResponse reports the outcome of a status change request.
type LeadTransitionResponse struct {
	Lead            LeadResponse    `json:"lead"`
	Applied         bool            `json:"applied"`
	PendingApproval bool            `json:"pending_approval"`
	Client          *ClientResponse `json:"client,omitempty"`
	ClientCreated   bool            `json:"client_created"`
}
