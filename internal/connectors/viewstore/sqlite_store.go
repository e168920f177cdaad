package viewstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"go-vboa-hmi-api/internal/alerts"
)

// ErrNotFound is returned when no view has the requested name.
var ErrNotFound = errors.New("view not found")

// View is a saved sliding-window configuration of the alerts timeline.
type View struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	WindowDelay       float64         `json:"window_delay"`
	WindowSize        float64         `json:"window_size"`
	RepeatCycleSecond int64           `json:"repeat_cycle_sec"`
	Entities          []alerts.Entity `json:"entities"`
	CreatedAt         *time.Time      `json:"created_at,omitempty"`
	UpdatedAt         *time.Time      `json:"updated_at,omitempty"`
}

// Window returns the sliding window described by the view.
func (v View) Window() alerts.Window {
	return alerts.Window{
		Delay:       v.WindowDelay,
		Size:        v.WindowSize,
		RepeatCycle: time.Duration(v.RepeatCycleSecond) * time.Second,
	}
}

// Store persists views in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

func NewSQLiteStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS sliding_views (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  window_delay REAL NOT NULL DEFAULT 0,
  window_size REAL NOT NULL,
  repeat_cycle_sec INTEGER NOT NULL DEFAULT 300,
  entities TEXT NOT NULL DEFAULT '',
  created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path is the SQLite file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const viewColumns = `id, name, description, window_delay, window_size, repeat_cycle_sec, entities, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanView(row scanner) (*View, error) {
	var (
		item      View
		entities  string
		createdAt sql.NullTime
		updatedAt sql.NullTime
	)
	if err := row.Scan(&item.ID, &item.Name, &item.Description, &item.WindowDelay, &item.WindowSize,
		&item.RepeatCycleSecond, &entities, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	item.Entities = splitEntities(entities)
	if createdAt.Valid {
		t := createdAt.Time.UTC()
		item.CreatedAt = &t
	}
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		item.UpdatedAt = &t
	}
	return &item, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]View, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+viewColumns+` FROM sliding_views ORDER BY name ASC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]View, 0)
	for rows.Next() {
		item, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, name string) (*View, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+viewColumns+` FROM sliding_views WHERE name = ?;`, strings.TrimSpace(name))
	item, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Save inserts the view or replaces the one with the same name, keeping
// its id and creation time.
func (s *Store) Save(ctx context.Context, v View) (*View, error) {
	v.Name = strings.TrimSpace(v.Name)
	v.Description = strings.TrimSpace(v.Description)
	if v.Name == "" {
		return nil, fmt.Errorf("view name is required")
	}
	if err := v.Window().Validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO sliding_views (id, name, description, window_delay, window_size, repeat_cycle_sec, entities, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
ON CONFLICT(name) DO UPDATE SET
  description = excluded.description,
  window_delay = excluded.window_delay,
  window_size = excluded.window_size,
  repeat_cycle_sec = excluded.repeat_cycle_sec,
  entities = excluded.entities,
  updated_at = CURRENT_TIMESTAMP;
`, uuid.NewString(), v.Name, v.Description, v.WindowDelay, v.WindowSize, v.RepeatCycleSecond, joinEntities(v.Entities))
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, v.Name)
}

func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sliding_views WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func joinEntities(entities []alerts.Entity) string {
	seen := make(map[alerts.Entity]struct{}, len(entities))
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, ok := seen[e]; ok || e == "" {
			continue
		}
		seen[e] = struct{}{}
		parts = append(parts, string(e))
	}
	return strings.Join(parts, ",")
}

func splitEntities(raw string) []alerts.Entity {
	out := make([]alerts.Entity, 0)
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, alerts.Entity(p))
		}
	}
	return out
}
