package domain

import "time"

// LeadStatus enumerates lifecycle states for leads.
type LeadStatus string

const (
	LeadStatusPending    LeadStatus = "pending"
	LeadStatusActive     LeadStatus = "active"
	LeadStatusInProgress LeadStatus = "in progress"
	LeadStatusInactive   LeadStatus = "inactive"
	LeadStatusClosed     LeadStatus = "closed"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusPending, LeadStatusActive, LeadStatusInProgress, LeadStatusInactive, LeadStatusClosed:
		return true
	}
	return false
}

// LeadApproval gates the inactive transition for employees.
type LeadApproval string

const (
	ApprovalPending  LeadApproval = "pending"
	ApprovalApproved LeadApproval = "approved"
	ApprovalRejected LeadApproval = "rejected"
)

// LeadSource is the acquisition channel.
type LeadSource string

const (
	SourceWalkIn      LeadSource = "walkin"
	SourceCall        LeadSource = "call"
	SourceEmail       LeadSource = "email"
	SourceWebsite     LeadSource = "website"
	SourceSocialMedia LeadSource = "socialmedia"
	SourceReferral    LeadSource = "referral"
	SourceOther       LeadSource = "other"
)

// Valid reports whether s is a known source.
func (s LeadSource) Valid() bool {
	switch s {
	case SourceWalkIn, SourceCall, SourceEmail, SourceWebsite, SourceSocialMedia, SourceReferral, SourceOther:
		return true
	}
	return false
}

// DefaultTransitionReason is stamped when a transition carries no reason.
const DefaultTransitionReason = "No reason provided"

// LeadHistory records creation and the last accepted transition.
type LeadHistory struct {
	CreatedAt time.Time
	CreatedBy string
	UpdatedAt *time.Time
	UpdatedBy *string
	Reason    string
}

// Lead is a prospective client.
type Lead struct {
	ID                    string
	Name                  string
	Type                  ClientType
	Email                 string
	Phone                 string
	Address               string
	OrganizationID        string
	BranchID              string
	Source                LeadSource
	AssignedTo            *string
	Approval              LeadApproval
	Status                LeadStatus
	Notes                 string
	History               LeadHistory
	ScheduledFollowupDate *time.Time
	IsArchived            bool
	InactiveRequested     bool
}
