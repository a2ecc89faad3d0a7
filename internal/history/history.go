// Package history records served predictions in PostgreSQL.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	KindWeatherRisk = "weather_risk"
	KindWeatherML   = "weather_ml"
	KindImage       = "image"

	DefaultLimit = 20
	MaxLimit     = 100

	pingTimeout = 5 * time.Second
)

type Entry struct {
	ID         uuid.UUID      `db:"id"          json:"id"`
	Kind       string         `db:"kind"        json:"kind"`
	Crop       string         `db:"crop"        json:"crop"`
	District   string         `db:"district"    json:"district,omitempty"`
	TopDisease string         `db:"top_disease" json:"top_disease"`
	TopLevel   string         `db:"top_level"   json:"top_level,omitempty"`
	Confidence float64        `db:"confidence"  json:"confidence"`
	Diseases   pq.StringArray `db:"diseases"    json:"diseases"`
	CreatedAt  time.Time      `db:"created_at"  json:"created_at"`
}

// Recorder is what the HTTP layer writes to.
type Recorder interface {
	Record(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, crop string, limit int) ([]Entry, error)
}

// Open connects to PostgreSQL and verifies the connection.
func Open(url string, maxOpenConns int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(max(1, maxOpenConns/5))
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS prediction_history (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL,
	crop        TEXT NOT NULL,
	district    TEXT NOT NULL DEFAULT '',
	top_disease TEXT NOT NULL DEFAULT '',
	top_level   TEXT NOT NULL DEFAULT '',
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
	diseases    TEXT[] NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS prediction_history_crop_created_idx
	ON prediction_history (crop, created_at DESC);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create prediction_history: %w", err)
	}
	return nil
}

// Record inserts e, assigning its id if unset and filling CreatedAt.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Diseases == nil {
		e.Diseases = pq.StringArray{}
	}

	query := `
		INSERT INTO prediction_history (
			id, kind, crop, district, top_disease, top_level, confidence, diseases
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := s.db.QueryRowContext(ctx, query,
		e.ID, e.Kind, e.Crop, e.District, e.TopDisease, e.TopLevel, e.Confidence, e.Diseases,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}
	return nil
}

// Recent lists the newest entries, optionally for one crop. limit is
// clamped to [1, MaxLimit]; zero means DefaultLimit.
func (s *Store) Recent(ctx context.Context, crop string, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	query := `
		SELECT id, kind, crop, district, top_disease, top_level, confidence, diseases, created_at
		FROM prediction_history
		WHERE ($1 = '' OR crop = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	entries := []Entry{}
	if err := s.db.SelectContext(ctx, &entries, query, crop, limit); err != nil {
		return nil, fmt.Errorf("failed to list predictions: %w", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Nop discards entries. It is used when no database is configured.
type Nop struct{}

func (Nop) Record(context.Context, *Entry) error { return nil }

func (Nop) Recent(context.Context, string, int) ([]Entry, error) { return []Entry{}, nil }
