package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/zhirschtritt/eventapi/internal/domain"
)

type EventRouter struct {
	eventService *domain.EventService
	logger       *slog.Logger
}

func NewEventRouter(eventService *domain.EventService, logger *slog.Logger) *EventRouter {
	return &EventRouter{
		eventService: eventService,
		logger:       logger,
	}
}

func (er *EventRouter) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", er.getEvents)
	r.Post("/", er.createEvent)
	r.Put("/{id}", er.updateEvent)
	r.Delete("/{id}", er.deleteEvent)
	return r
}

type CreateEventResponse struct {
	ID string `json:"id"`
}

// getEvents serves both lookups: ?id=<id> for a single event, or
// ?type=latest[&limit=N&page=N] for the schedule-ordered listing.
func (er *EventRouter) getEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if id := query.Get("id"); id != "" {
		er.getEvent(w, r, id)
		return
	}

	if query.Get("type") == "latest" {
		page := domain.NewPage(queryInt(query.Get("limit")), queryInt(query.Get("page")))
		er.listLatest(w, r, page)
		return
	}

	http.Error(w, "Invalid request", http.StatusBadRequest)
}

func (er *EventRouter) getEvent(w http.ResponseWriter, r *http.Request, id string) {
	event, err := er.eventService.GetEvent(r.Context(), id)
	if err != nil {
		er.writeError(w, err, "Error retrieving the event", "id", id)
		return
	}

	er.writeJSON(w, http.StatusOK, event)
}

func (er *EventRouter) listLatest(w http.ResponseWriter, r *http.Request, page domain.Page) {
	events, err := er.eventService.ListLatest(r.Context(), page)
	if err != nil {
		er.writeError(w, err, "Error retrieving the events", "limit", page.Limit, "page", page.Page)
		return
	}

	er.writeJSON(w, http.StatusOK, events)
}

func (er *EventRouter) createEvent(w http.ResponseWriter, r *http.Request) {
	event, err := decodeEvent(r)
	if err != nil {
		er.logger.Error("failed to decode create event request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, err := er.eventService.CreateEvent(r.Context(), event)
	if err != nil {
		er.writeError(w, err, "Error creating the event")
		return
	}

	er.writeJSON(w, http.StatusOK, CreateEventResponse{ID: id})
}

func (er *EventRouter) updateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	patch, err := decodeEvent(r)
	if err != nil {
		er.logger.Error("failed to decode update event request", "error", err, "id", id)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := er.eventService.UpdateEvent(r.Context(), id, patch); err != nil {
		er.writeError(w, err, "Error updating the event", "id", id)
		return
	}

	writeText(w, "Event updated successfully")
}

func (er *EventRouter) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := er.eventService.DeleteEvent(r.Context(), id); err != nil {
		er.writeError(w, err, "Error deleting the event", "id", id)
		return
	}

	writeText(w, "Event deleted successfully")
}

// writeError maps domain errors to status codes. Store details are logged and
// never sent to the client.
func (er *EventRouter) writeError(w http.ResponseWriter, err error, storeMessage string, attrs ...any) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		er.logger.Debug("event not found", append(attrs, "error", err)...)
		http.Error(w, "Event not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidRequest):
		er.logger.Info("invalid event request", append(attrs, "error", err)...)
		http.Error(w, "Invalid request", http.StatusBadRequest)
	default:
		er.logger.Error(storeMessage, append(attrs, "error", err)...)
		http.Error(w, storeMessage, http.StatusInternalServerError)
	}
}

func (er *EventRouter) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		er.logger.Error("failed to encode response", "error", err)
	}
}

func writeText(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(message))
}

// decodeEvent reads a JSON object body, keeping numbers exact. An empty body
// is an empty object.
func decodeEvent(r *http.Request) (domain.Event, error) {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var event domain.Event
	if err := dec.Decode(&event); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Event{}, nil
		}
		return nil, err
	}
	if event == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if dec.More() {
		return nil, errors.New("unexpected data after JSON object")
	}

	return event, nil
}

// queryInt returns 0 for anything that is not an integer, letting
// domain.NewPage substitute the default.
func queryInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}
