package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	StatusPending NotificationStatus = "pending"
	StatusSent    NotificationStatus = "sent"
	StatusFailed  NotificationStatus = "failed"
)

// Notification is the audit record of one outbound order email.
type Notification struct {
	ID           uuid.UUID          `json:"id"`
	OrderID      string             `json:"order_id"`
	Recipient    string             `json:"recipient"`
	Subject      string             `json:"subject"`
	Content      string             `json:"content"`
	Status       NotificationStatus `json:"status"`
	ErrorMessage string             `json:"error,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// EmailMessage is one transactional email. Category and OrderID travel to the
// provider as tags so deliveries can be traced back to an order.
type EmailMessage struct {
	To          string
	ToName      string
	Subject     string
	Content     string
	HTMLContent string
	Category    string
	OrderID     string
}

const CategoryOrderConfirmation = "order_confirmation"
