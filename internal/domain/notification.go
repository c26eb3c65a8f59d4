package domain

import "time"

// NotificationType tags the domain a notification belongs to.
type NotificationType string

const (
	NotificationTypeClient NotificationType = "client"
	NotificationTypeLead   NotificationType = "lead"
)

// NotificationStatus is unread until the recipient opens it.
type NotificationStatus string

const (
	NotificationUnread NotificationStatus = "unread"
	NotificationRead   NotificationStatus = "read"
)

// Notification is the persisted audit record of an in-app notification.
type Notification struct {
	ID        string
	Title     string
	Subject   string
	Body      string
	Type      NotificationType
	From      string
	To        string
	Route     string
	Screen    string
	Status    NotificationStatus
	CreatedAt time.Time
}
