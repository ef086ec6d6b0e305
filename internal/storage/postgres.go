package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/codespot/internal/assembler"
	"github.com/lib/pq"
)

// PostgresConfig configures the optional result mirror.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultPostgresConfig returns pool settings for a single listener.
func DefaultPostgresConfig() PostgresConfig {
	return PostgresConfig{
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// FrameMeta identifies the frame a result belongs to.
type FrameMeta struct {
	ObjectID  string
	CameraID  string
	EventTime time.Time
	FramePath string
}

const schema = `
CREATE TABLE IF NOT EXISTS frame_codes (
	object_id   TEXT        NOT NULL,
	position    INTEGER     NOT NULL,
	camera_uuid TEXT        NOT NULL,
	event_time  TIMESTAMP   NOT NULL,
	frame_path  TEXT        NOT NULL,
	code        TEXT        NOT NULL,
	matches     TEXT[]      NOT NULL,
	score       DOUBLE PRECISION,
	orientation TEXT        NOT NULL,
	x_min       DOUBLE PRECISION NOT NULL,
	y_min       DOUBLE PRECISION NOT NULL,
	x_max       DOUBLE PRECISION NOT NULL,
	y_max       DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (object_id, position)
)`

// PostgresMirror stores accepted codes as rows, one per code.
type PostgresMirror struct {
	db *sql.DB
}

// OpenPostgres connects, pings and ensures the table exists.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresMirror, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &PostgresMirror{db: db}, nil
}

// SaveCodes replaces the rows of meta.ObjectID with codes, in one transaction.
func (m *PostgresMirror) SaveCodes(ctx context.Context, meta FrameMeta, codes []assembler.CandidateCode) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM frame_codes WHERE object_id = $1`, meta.ObjectID); err != nil {
		return fmt.Errorf("clear previous rows: %w", err)
	}
	for i, c := range codes {
		var score sql.NullFloat64
		if c.Score.Valid {
			score = sql.NullFloat64{Float64: c.Score.Value, Valid: true}
		}
		matches := c.Matches
		if matches == nil {
			matches = []string{}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO frame_codes (
				object_id, position, camera_uuid, event_time, frame_path,
				code, matches, score, orientation, x_min, y_min, x_max, y_max
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			meta.ObjectID, i, meta.CameraID, meta.EventTime, meta.FramePath,
			c.Text, pq.Array(matches), score, c.Orientation.String(),
			c.Box.MinX, c.Box.MinY, c.Box.MaxX, c.Box.MaxY,
		)
		if err != nil {
			return fmt.Errorf("insert code %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (m *PostgresMirror) Ping(ctx context.Context) error { return m.db.PingContext(ctx) }

// Close releases the pool.
func (m *PostgresMirror) Close() error { return m.db.Close() }
