package events

import (
	"time"

	"github.com/elegantflow/crm-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventClientCreated         EventType = "client_created"
	EventClientDeleted         EventType = "client_deleted"
	EventClientFeedbackAdded   EventType = "client_feedback_added"
	EventLeadCreated           EventType = "lead_created"
	EventLeadStatusChanged     EventType = "lead_status_changed"
	EventLeadInactiveRequested EventType = "lead_inactive_requested"
	EventLeadApprovalReviewed  EventType = "lead_approval_reviewed"
)

// AllEventTypes lists every type the services publish.
var AllEventTypes = []EventType{
	EventClientCreated,
	EventClientDeleted,
	EventClientFeedbackAdded,
	EventLeadCreated,
	EventLeadStatusChanged,
	EventLeadInactiveRequested,
	EventLeadApprovalReviewed,
}

// Event represents a domain event emitted by services.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	OrganizationID string      `json:"organization_id"`
	ActorID        string      `json:"actor_id"`
	ActorRole      domain.Role `json:"actor_role"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// ClientPayload is carried by client created and deleted events.
type ClientPayload struct {
	ClientID   string  `json:"client_id"`
	ClientName string  `json:"client_name"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// FeedbackAddedPayload payload.
type FeedbackAddedPayload struct {
	ClientID   string  `json:"client_id"`
	ClientName string  `json:"client_name"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	FeedbackID string  `json:"feedback_id"`
	AuthorID   string  `json:"author_id"`
}

// LeadCreatedPayload payload.
type LeadCreatedPayload struct {
	LeadID     string  `json:"lead_id"`
	LeadName   string  `json:"lead_name"`
	AssigneeID *string `json:"assignee_id,omitempty"`
}

// LeadStatusChangedPayload describes an accepted transition.
type LeadStatusChangedPayload struct {
	LeadID     string            `json:"lead_id"`
	LeadName   string            `json:"lead_name"`
	AssigneeID *string           `json:"assignee_id,omitempty"`
	OldStatus  domain.LeadStatus `json:"old_status"`
	NewStatus  domain.LeadStatus `json:"new_status"`
	Reason     string            `json:"reason"`
	ClientID   *string           `json:"client_id,omitempty"`
}

// LeadInactiveRequestedPayload describes an employee request awaiting approval.
type LeadInactiveRequestedPayload struct {
	LeadID     string  `json:"lead_id"`
	LeadName   string  `json:"lead_name"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	Reason     string  `json:"reason"`
}

// LeadApprovalReviewedPayload describes a manager decision on a pending request.
type LeadApprovalReviewedPayload struct {
	LeadID     string  `json:"lead_id"`
	LeadName   string  `json:"lead_name"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	Approved   bool    `json:"approved"`
	Reason     string  `json:"reason"`
}
