// Package queue defines message payloads exchanged over the message broker.
package queue

// ActivityExchange is the direct exchange all domain events go through.
// Routing keys are the event types, so a consumer binds only the events it
// handles.
const ActivityExchange = "gym.events"

// Event types, used as routing keys on the gym.events exchange.
const (
	EventMemberRegistered = "member.registered"
	EventGymCreated       = "gym.created"
)

// ActivityEvent is published when something notable happens in the system:
// a member registers or a gym is created. It carries enough information for
// downstream consumers to log, notify, or trigger analytics without
// querying the primary database. Fields that do not apply to the event type
// are left at their zero value and omitted from the JSON.
type ActivityEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id"`
	Email      string `json:"email,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	GymID      uint64 `json:"gym_id,omitempty"`
	GymName    string `json:"gym_name,omitempty"`
	GymSlug    string `json:"gym_slug,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
