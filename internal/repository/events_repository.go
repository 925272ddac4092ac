package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/eventapi/internal/domain"
)

var _ domain.EventRepository = new(DBEventsRepository)

// DBEventsRepository stores events as JSONB documents in Postgres.
type DBEventsRepository struct {
	db *pgxpool.Pool
}

func NewDBEventsRepository(db *pgxpool.Pool) *DBEventsRepository {
	return &DBEventsRepository{
		db: db,
	}
}

func (r *DBEventsRepository) FindByID(ctx context.Context, id string) (domain.Event, error) {
	query := `
		SELECT id::text, doc
		FROM events
		WHERE id = $1
	`

	var (
		eventID string
		raw     []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(&eventID, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}

	return decodeDocument(eventID, raw)
}

func (r *DBEventsRepository) ListLatest(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	// Values of different JSON types rank boolean > array > object > string >
	// number, the BSON order, before comparing within a type.
	query := `
		SELECT id::text, doc
		FROM events
		ORDER BY
			CASE jsonb_typeof(doc->'schedule')
				WHEN 'number' THEN 1
				WHEN 'string' THEN 2
				WHEN 'object' THEN 3
				WHEN 'array' THEN 4
				WHEN 'boolean' THEN 5
				ELSE 0
			END DESC,
			doc->'schedule' DESC NULLS LAST,
			seq DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest events: %w", err)
	}
	defer rows.Close()

	events := []domain.Event{}
	for rows.Next() {
		var (
			eventID string
			raw     []byte
		)
		if err := rows.Scan(&eventID, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		event, err := decodeDocument(eventID, raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list latest events: %w", err)
	}

	return events, nil
}

func (r *DBEventsRepository) Insert(ctx context.Context, event domain.Event) (string, error) {
	data, err := encodeDocument(event)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO events (doc)
		VALUES ($1::jsonb)
		RETURNING id::text
	`

	var id string
	if err := r.db.QueryRow(ctx, query, data).Scan(&id); err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}

	return id, nil
}

func (r *DBEventsRepository) BulkInsert(ctx context.Context, events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO events (doc)
		VALUES 
	`

	values := make([]string, len(events))
	args := make([]interface{}, 0, len(events))

	for i, event := range events {
		data, err := encodeDocument(event)
		if err != nil {
			return 0, err
		}

		values[i] = fmt.Sprintf("($%d::jsonb)", i+1)
		args = append(args, data)
	}

	query += strings.Join(values, ", ")

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk insert events: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func (r *DBEventsRepository) Update(ctx context.Context, id string, patch domain.Event) error {
	eventID, err := domain.ParseID(id)
	if err != nil {
		return err
	}

	data, err := encodeDocument(patch)
	if err != nil {
		return err
	}

	// jsonb || replaces top-level keys and keeps the rest.
	query := `
		UPDATE events
		SET doc = doc || $2::jsonb
		WHERE id = $1
	`

	if _, err := r.db.Exec(ctx, query, eventID.String(), data); err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	return nil
}

func (r *DBEventsRepository) Delete(ctx context.Context, id string) error {
	eventID, err := domain.ParseID(id)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, eventID.String()); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

func (r *DBEventsRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func (r *DBEventsRepository) Close() error {
	r.db.Close()
	return nil
}
