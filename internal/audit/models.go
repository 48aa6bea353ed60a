package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - actor and ip capture are best-effort; do not block critical flows on audit failures.
type Event struct {
	ID string `json:"id"`
	// OrgID is zero for service-scope actions that are not tied to one organization.
	OrgID int64     `json:"org_id,omitempty"`
	Type  EventType `json:"type"`

	// ActorScope is the credential kind that caused the event (user, service, link).
	ActorScope string `json:"actor_scope,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`

	// TargetID identifies the token or call the event is about.
	TargetID string `json:"target_id,omitempty"`
	Message  string `json:"message,omitempty"`
	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventAuthTokenCreated EventType = "auth_token.created"
	EventAuthTokenRevoked EventType = "auth_token.revoked"
	EventAuthTokenDeleted EventType = "auth_token.deleted"
	EventCallCreated      EventType = "call.created"
	EventCallAnalyzed     EventType = "call.analyzed"
)

func (t EventType) valid() bool {
	switch t {
	case EventAuthTokenCreated, EventAuthTokenRevoked, EventAuthTokenDeleted, EventCallCreated, EventCallAnalyzed:
		return true
	default:
		return false
	}
}
