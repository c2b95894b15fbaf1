package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// ErrNoDocument is returned when a document lookup finds no row.
var ErrNoDocument = errors.New("document not found")

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	StudioID  string                 `json:"studio_id"`
	RunID     *string                `json:"testrun_id,omitempty"`
}

// Config holds connection settings. Empty fields fall back to the libpq
// defaults used by ConnString.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
}

// ConnString renders a lib/pq key=value connection string.
func (c Config) ConnString() string {
	host := orDefault(c.Host, "127.0.0.1")
	port := orDefault(c.Port, "5432")
	user := orDefault(c.User, "sentient")
	dbname := orDefault(c.Database, "sentient_studio")
	sslmode := orDefault(c.SSLMode, "disable")

	if c.Password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, c.Password, dbname, sslmode)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s",
		host, port, user, dbname, sslmode)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Client manages the Postgres connection for events and authored documents.
type Client struct {
	db       *sql.DB
	studioID string

	mu          sync.Mutex
	errorLogged bool
}

// New opens a connection, verifies it and creates the schema.
// Returns an error if the database is unreachable (caller should degrade
// to in-memory storage).
func New(ctx context.Context, cfg Config, studioID string) (*Client, error) {
	db, err := sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:       db,
		studioID: studioID,
	}

	if err := client.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func (c *Client) createTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			studio_id  TEXT NOT NULL,
			testrun_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_testrun ON events(testrun_id);

		CREATE TABLE IF NOT EXISTS documents (
			kind       TEXT NOT NULL,
			id         TEXT NOT NULL,
			parent_id  TEXT NOT NULL DEFAULT '',
			body       JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (kind, id)
		);
		CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents(kind, parent_id);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Append inserts an event into the database.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, runID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var runPtr *string
	if runID != "" {
		runPtr = &runID
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, studio_id, testrun_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.studioID, runPtr)
	return err
}

// Query returns the last N events from the database in descending order by
// timestamp. A non-empty runID restricts the result to one test run.
func (c *Client) Query(limit int, runID string) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, studio_id, testrun_id
		FROM events
		WHERE studio_id = $1 AND ($2 = '' OR testrun_id = $2)
		ORDER BY ts DESC
		LIMIT $3
	`
	rows, err := c.db.Query(query, c.studioID, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, rid sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.StudioID, &rid); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if rid.Valid {
			e.RunID = &rid.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// PutDocument upserts a JSON document of the given kind. parentID links the
// document to its owner (project, scenario) for listing.
func (c *Client) PutDocument(ctx context.Context, kind, id, parentID string, body []byte) error {
	query := `
		INSERT INTO documents (kind, id, parent_id, body)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (kind, id) DO UPDATE
		SET parent_id = EXCLUDED.parent_id, body = EXCLUDED.body, updated_at = now()
	`
	if _, err := c.db.ExecContext(ctx, query, kind, id, parentID, body); err != nil {
		return fmt.Errorf("failed to put %s %s: %w", kind, id, err)
	}
	return nil
}

// GetDocument returns the raw JSON body of a document.
func (c *Client) GetDocument(ctx context.Context, kind, id string) ([]byte, error) {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE kind = $1 AND id = $2`, kind, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s: %w", kind, id, err)
	}
	return body, nil
}

// DeleteDocument removes a document. Returns ErrNoDocument if nothing matched.
func (c *Client) DeleteDocument(ctx context.Context, kind, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, kind, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoDocument
	}
	return nil
}

// ListDocuments returns document bodies of a kind in creation order. An empty
// parentID lists all documents of that kind.
func (c *Client) ListDocuments(ctx context.Context, kind, parentID string) ([][]byte, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT body FROM documents
		WHERE kind = $1 AND ($2 = '' OR parent_id = $2)
		ORDER BY created_at, id
	`, kind, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

// Ping checks connectivity for the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// MarkErrorLogged marks that an error has been logged (to avoid spam).
func (c *Client) MarkErrorLogged() {
	c.mu.Lock()
	c.errorLogged = true
	c.mu.Unlock()
}

// HasLoggedError returns true if an error has been logged.
func (c *Client) HasLoggedError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorLogged
}
