package adjustment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventKind names the domain events, one per lifecycle transition.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventApproved  EventKind = "approved"
	EventRejected  EventKind = "rejected"
	EventCompleted EventKind = "completed"
	EventWithdrawn EventKind = "withdrawn"
)

// Event carries what notification and audit subscribers need. The contract is
// exactly-once emission per transition; the emitter dedupes on
// (RequestID, Kind).
type Event struct {
	Kind             EventKind
	RequestID        uuid.UUID
	AdjustmentNumber string
	SKUID            string
	LocationID       string
	Type             Type
	Quantity         float64
	Amount           float64
	Status           Status
	ActorID          string
	OccurredAt       time.Time
}

// EmitterPort delivers domain events to subscribers. Emission failures are
// logged but never roll back the committed state change.
type EmitterPort interface {
	Emit(ctx context.Context, evt Event) error
}
