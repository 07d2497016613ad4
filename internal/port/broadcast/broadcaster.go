// Package broadcast defines the port for pushing live events to connected
// dashboard clients.
package broadcast

import "context"

// Event types pushed to dashboards.
const (
	EventVisitCreated = "visit.created"
	EventVisitUpdated = "visit.updated"
	EventVisitDeleted = "visit.deleted"
)

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Targeted is implemented by payloads meant for specific users.
type Targeted interface {
	Audience() []string
}
