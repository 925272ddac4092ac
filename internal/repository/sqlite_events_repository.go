package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/zhirschtritt/eventapi/internal/domain"
)

var _ domain.EventRepository = new(SQLiteEventsRepository)

// SQLiteEventsRepository stores events as JSON text in a local SQLite file.
// It is meant for development and single-node deployments.
type SQLiteEventsRepository struct {
	db *sqlx.DB
}

type documentRow struct {
	ID  string `db:"id"`
	Doc string `db:"doc"`
}

func OpenSQLiteEventsRepository(ctx context.Context, path string) (*SQLiteEventsRepository, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize access through one connection.
	db.SetMaxOpenConns(1)

	r := &SQLiteEventsRepository{db: db}
	if err := r.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return r, nil
}

func (r *SQLiteEventsRepository) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL CHECK (json_valid(doc)),
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS events_schedule_idx
		ON events (json_extract(doc, '$.schedule'))
	`)
	if err != nil {
		return fmt.Errorf("failed to create events schedule index: %w", err)
	}

	return nil
}

func (r *SQLiteEventsRepository) FindByID(ctx context.Context, id string) (domain.Event, error) {
	var row documentRow
	err := r.db.GetContext(ctx, &row, `SELECT id, doc FROM events WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event by ID: %w", err)
	}

	return decodeDocument(row.ID, []byte(row.Doc))
}

func (r *SQLiteEventsRepository) ListLatest(ctx context.Context, limit, offset int) ([]domain.Event, error) {
	// Rank JSON types the same way the Postgres store does. json_extract
	// returns objects and arrays as text, so the type has to lead the sort.
	query := `
		SELECT id, doc
		FROM events
		ORDER BY
			CASE json_type(doc, '$.schedule')
				WHEN 'integer' THEN 1
				WHEN 'real' THEN 1
				WHEN 'text' THEN 2
				WHEN 'object' THEN 3
				WHEN 'array' THEN 4
				WHEN 'true' THEN 5
				WHEN 'false' THEN 5
				ELSE 0
			END DESC,
			json_extract(doc, '$.schedule') DESC,
			rowid DESC
		LIMIT ? OFFSET ?
	`

	var rows []documentRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list latest events: %w", err)
	}

	events := make([]domain.Event, 0, len(rows))
	for _, row := range rows {
		event, err := decodeDocument(row.ID, []byte(row.Doc))
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

func (r *SQLiteEventsRepository) Insert(ctx context.Context, event domain.Event) (string, error) {
	data, err := encodeDocument(event)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	if _, err := r.db.ExecContext(ctx, `INSERT INTO events (id, doc) VALUES (?, json(?))`, id, string(data)); err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}

	return id, nil
}

func (r *SQLiteEventsRepository) BulkInsert(ctx context.Context, events []domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO events (id, doc) VALUES (?, json(?))`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare bulk insert: %w", err)
	}
	defer stmt.Close()

	for _, event := range events {
		data, err := encodeDocument(event)
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), string(data)); err != nil {
			return 0, fmt.Errorf("failed to bulk insert events: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit bulk insert: %w", err)
	}

	return len(events), nil
}

func (r *SQLiteEventsRepository) Update(ctx context.Context, id string, patch domain.Event) error {
	eventID, err := domain.ParseID(id)
	if err != nil {
		return err
	}

	setExpr, args, err := jsonSetArgs(patch)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE events SET doc = %s WHERE id = ?`, setExpr)
	args = append(args, eventID.String())

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}

	return nil
}

// jsonSetArgs builds a json_set call that overwrites each top-level key of
// patch. Keys are sorted so the statement text is stable.
func jsonSetArgs(patch domain.Event) (string, []interface{}, error) {
	if len(patch) == 0 {
		return "doc", nil, nil
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		if strings.ContainsRune(k, '"') {
			return "", nil, fmt.Errorf("unsupported field name %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	placeholders := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		value, err := json.Marshal(patch[k])
		if err != nil {
			return "", nil, fmt.Errorf("failed to marshal field %q: %w", k, err)
		}
		placeholders = append(placeholders, "?, json(?)")
		args = append(args, `$."`+k+`"`, string(value))
	}

	return "json_set(doc, " + strings.Join(placeholders, ", ") + ")", args, nil
}

func (r *SQLiteEventsRepository) Delete(ctx context.Context, id string) error {
	eventID, err := domain.ParseID(id)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID.String()); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	return nil
}

func (r *SQLiteEventsRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteEventsRepository) Close() error {
	return r.db.Close()
}
