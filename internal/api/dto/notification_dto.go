package dto

import "time"

// NotificationResponse is an inbox entry.
type NotificationResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Route     string    `json:"route,omitempty"`
	Screen    string    `json:"screen,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
