// Package alertstore persists density alerts and their lifecycle.
package alertstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/entities"
)

var ErrNotFound = errors.New("alert not found")

// Store is the full alert lifecycle used by the control and HTTP surfaces.
type Store interface {
	CreateAlert(ctx context.Context, alert model.Alert) (model.Alert, error)
	Get(ctx context.Context, id string) (model.Alert, error)
	ListActive(ctx context.Context) ([]model.Alert, error)
	Acknowledge(ctx context.Context, id string) (model.Alert, error)
	Resolve(ctx context.Context, id string) (model.Alert, error)
	Ping(ctx context.Context) error
}

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	type       TEXT    NOT NULL,
	severity   INTEGER NOT NULL,
	zones      TEXT    NOT NULL,
	status     TEXT    NOT NULL,
	message    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_status ON alerts (status, created_at);
`

type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open alert db: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply alert schema: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAlert inserts the alert, filling in a missing id, status or
// timestamp, and returns the stored row.
func (s *SQLiteStore) CreateAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = entities.StatusActive
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = s.now()
	}
	if a.AffectedZones == nil {
		a.AffectedZones = []string{}
	}
	zones, err := json.Marshal(a.AffectedZones)
	if err != nil {
		return model.Alert{}, err
	}

	ts := a.Timestamp.UnixMilli()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, type, severity, zones, status, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, string(a.Type), a.Severity, string(zones), string(a.Status), a.Message, ts, ts)
	if err != nil {
		return model.Alert{}, fmt.Errorf("insert alert %s: %w", a.ID, err)
	}
	a.Timestamp = time.UnixMilli(ts).UTC()
	return a, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (model.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, severity, zones, status, message, created_at FROM alerts WHERE id = ?`, id)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Alert{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return a, err
}

// ListActive returns active alerts, newest first.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, severity, zones, status, message, created_at FROM alerts
		 WHERE status = ? ORDER BY created_at DESC, id`, string(entities.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active alerts: %w", err)
	}
	defer rows.Close()

	out := []model.Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Acknowledge moves an active alert to acknowledged. Acknowledging twice
// is not an error; a resolved alert stays resolved.
func (s *SQLiteStore) Acknowledge(ctx context.Context, id string) (model.Alert, error) {
	return s.transition(ctx, id, entities.StatusAcknowledged, entities.StatusActive)
}

func (s *SQLiteStore) Resolve(ctx context.Context, id string) (model.Alert, error) {
	return s.transition(ctx, id, entities.StatusResolved, entities.StatusActive, entities.StatusAcknowledged)
}

func (s *SQLiteStore) transition(ctx context.Context, id string, to entities.AlertStatus, from ...entities.AlertStatus) (model.Alert, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Alert{}, err
	}
	allowed := false
	for _, f := range from {
		if current.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return current, nil
	}
	_, err = s.db.ExecContext(ctx, `UPDATE alerts SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), s.now().UnixMilli(), id)
	if err != nil {
		return model.Alert{}, fmt.Errorf("update alert %s: %w", id, err)
	}
	current.Status = to
	return current, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(sc scanner) (model.Alert, error) {
	var (
		a         model.Alert
		typ, st   string
		zones     string
		createdAt int64
	)
	if err := sc.Scan(&a.ID, &typ, &a.Severity, &zones, &st, &a.Message, &createdAt); err != nil {
		return model.Alert{}, err
	}
	if err := json.Unmarshal([]byte(zones), &a.AffectedZones); err != nil {
		return model.Alert{}, fmt.Errorf("alert %s zones: %w", a.ID, err)
	}
	a.Type = entities.AlertType(typ)
	a.Status = entities.AlertStatus(st)
	a.Timestamp = time.UnixMilli(createdAt).UTC()
	return a, nil
}
