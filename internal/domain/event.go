package domain

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const (
	// IDField is the key a stored event's identifier is returned under.
	IDField = "id"
	// ScheduleField orders the latest-events listing.
	ScheduleField = "schedule"
)

// Event is a schemaless event document. Only IDField and ScheduleField have
// meaning to the service; every other field belongs to the client.
type Event map[string]any

// ID returns the store-assigned identifier, if the document carries one.
func (e Event) ID() string {
	id, _ := e[IDField].(string)
	return id
}

// withoutID returns a shallow copy of e with the identifier removed. The store
// owns identity, so client-supplied ids are never persisted.
func (e Event) withoutID() Event {
	out := make(Event, len(e))
	for k, v := range e {
		if k == IDField {
			continue
		}
		out[k] = v
	}
	return out
}

// ParseID validates a client-supplied event identifier.
func ParseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid event id %q: %w", id, err)
	}
	return parsed, nil
}

type EventRepository interface {
	// FindByID returns nil, nil when no event matches.
	FindByID(ctx context.Context, id string) (Event, error)
	ListLatest(ctx context.Context, limit, offset int) ([]Event, error)
	Insert(ctx context.Context, event Event) (string, error)
	BulkInsert(ctx context.Context, events []Event) (int, error)
	// Update merges the top-level fields of patch into the stored event.
	// Updating an id that does not exist is not an error.
	Update(ctx context.Context, id string, patch Event) error
	Delete(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}
