package notifications

import (
	"time"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
)

// MessageType identifies a websocket message
type MessageType string

const (
	// MessageTypeStatus confirms the connection.
	MessageTypeStatus MessageType = "status"

	// MessageTypeApproval carries a new approval status.
	MessageTypeApproval MessageType = "approval_status"
)

// Message is the JSON frame pushed to clients
type Message struct {
	Type           MessageType               `json:"type"`
	ConnectionID   string                    `json:"connection_id,omitempty"`
	ApprovalStatus onboarding.ApprovalStatus `json:"approval_status,omitempty"`
	Timestamp      time.Time                 `json:"timestamp"`
}

// Settled reports whether an approval message ends the wait.
func (m Message) Settled() bool {
	return m.Type == MessageTypeApproval && m.ApprovalStatus.Decided()
}
