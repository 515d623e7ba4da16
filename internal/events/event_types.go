package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered EventType = "account_registered"
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventLoginThrottled    EventType = "login_throttled"
)

// Event represents a domain event emitted by services. It never carries
// secrets, digests or tokens.
type Event struct {
	Type      EventType `json:"type"`
	AccountID string    `json:"account_id,omitempty"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}
