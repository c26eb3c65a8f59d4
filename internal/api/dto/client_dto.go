package dto

import "time"

// CreateClientRequest payload for manual client creation.
type CreateClientRequest struct {
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	Phone      string  `json:"phone"`
	Address    string  `json:"address"`
	Type       string  `json:"type"`
	Industry   string  `json:"industry"`
	Notes      string  `json:"notes"`
	BranchID   *string `json:"branch_id"`
	AssignedTo *string `json:"assigned_to"`
}

// ClientStatusRequest toggles a client's status.
type ClientStatusRequest struct {
	Status string `json:"status"`
}

// FeedbackRequest carries feedback text.
type FeedbackRequest struct {
	Text string `json:"text"`
}

// CreateProjectRequest adds a project to a client.
type CreateProjectRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Budget      float64    `json:"budget"`
	Deadline    *time.Time `json:"deadline"`
	AssignedTo  *string    `json:"assigned_to"`
}

// FeedbackResponse is one feedback log entry.
type FeedbackResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	Seen      bool      `json:"seen"`
	Edited    bool      `json:"edited"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientResponse is the client view.
type ClientResponse struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	Phone      string             `json:"phone"`
	Address    string             `json:"address,omitempty"`
	Type       string             `json:"type"`
	Status     string             `json:"status"`
	Industry   string             `json:"industry,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	BranchID   *string            `json:"branch_id,omitempty"`
	AssignedTo *string            `json:"assigned_to,omitempty"`
	ProjectIDs []string           `json:"project_ids,omitempty"`
	Feedback   []FeedbackResponse `json:"feedback,omitempty"`
	CreatedBy  string             `json:"created_by"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// ClientStatsResponse feeds the client dashboard.
type ClientStatsResponse struct {
	Total  int              `json:"total"`
	Active int              `json:"active"`
	Latest []ClientResponse `json:"latest"`
}

// ProjectResponse is the project view.
type ProjectResponse struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Budget      float64    `json:"budget"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      string     `json:"status"`
	ClientID    string     `json:"client_id"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}
