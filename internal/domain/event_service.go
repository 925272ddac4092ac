package domain

import (
	"context"
	"fmt"
)

type EventService struct {
	eventRepo EventRepository
}

func NewEventService(eventRepo EventRepository) *EventService {
	return &EventService{
		eventRepo: eventRepo,
	}
}

// GetEvent looks up a single event. Malformed identifiers cannot match any
// stored event and are reported as ErrNotFound.
func (s *EventService) GetEvent(ctx context.Context, id string) (Event, error) {
	eventID, err := ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	event, err := s.eventRepo.FindByID(ctx, eventID.String())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get event %s: %w", ErrStore, id, err)
	}
	if event == nil {
		return nil, ErrNotFound
	}

	return event, nil
}

// ListLatest returns events ordered by schedule, newest first.
func (s *EventService) ListLatest(ctx context.Context, page Page) ([]Event, error) {
	events, err := s.eventRepo.ListLatest(ctx, page.Limit, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list latest events: %w", ErrStore, err)
	}
	if events == nil {
		events = []Event{}
	}

	return events, nil
}

func (s *EventService) CreateEvent(ctx context.Context, event Event) (string, error) {
	if event == nil {
		return "", fmt.Errorf("%w: event must be a JSON object", ErrInvalidRequest)
	}

	id, err := s.eventRepo.Insert(ctx, event.withoutID())
	if err != nil {
		return "", fmt.Errorf("%w: failed to create event: %w", ErrStore, err)
	}

	return id, nil
}

// CreateEvents stores a batch of events and reports how many were inserted.
func (s *EventService) CreateEvents(ctx context.Context, events []Event) (int, error) {
	docs := make([]Event, 0, len(events))
	for _, event := range events {
		if event == nil {
			return 0, fmt.Errorf("%w: event must be a JSON object", ErrInvalidRequest)
		}
		docs = append(docs, event.withoutID())
	}

	n, err := s.eventRepo.BulkInsert(ctx, docs)
	if err != nil {
		return n, fmt.Errorf("%w: failed to bulk insert events: %w", ErrStore, err)
	}

	return n, nil
}

// UpdateEvent merges patch into the stored event. The identifier is handed to
// the store as-is, so a malformed one surfaces as ErrStore.
func (s *EventService) UpdateEvent(ctx context.Context, id string, patch Event) error {
	if patch == nil {
		return fmt.Errorf("%w: update must be a JSON object", ErrInvalidRequest)
	}

	if err := s.eventRepo.Update(ctx, id, patch.withoutID()); err != nil {
		return fmt.Errorf("%w: failed to update event %s: %w", ErrStore, id, err)
	}

	return nil
}

func (s *EventService) DeleteEvent(ctx context.Context, id string) error {
	if err := s.eventRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: failed to delete event %s: %w", ErrStore, id, err)
	}

	return nil
}

func (s *EventService) Ping(ctx context.Context) error {
	if err := s.eventRepo.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return nil
}
