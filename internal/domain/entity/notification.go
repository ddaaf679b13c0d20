package entity

import "time"

// Notification is an outbox record addressed to a role or a single user
type Notification struct {
	ID           int64      `json:"id"`
	TargetRole   string     `json:"target_role,omitempty"`
	TargetUser   string     `json:"target_user,omitempty"`
	Message      string     `json:"message"`
	EntityType   string     `json:"entity_type"`
	EntityID     int64      `json:"entity_id"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
