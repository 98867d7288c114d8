package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// ErrNotFound is returned when a queried row does not exist.
var ErrNotFound = errors.New("record not found")

// Postgres represents a PostgreSQL connection
type Postgres struct {
	db *sql.DB
}

// AnalysisRecord is one row of the analyses index.
type AnalysisRecord struct {
	ID          string
	Fingerprint string
	Owner       string
	Seed        int64
	Overall     float64
	Degraded    bool
	CreatedAt   time.Time
}

// NewPostgres creates a new PostgreSQL connection
func NewPostgres(cfg Config) (*Postgres, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db}, nil
}

// NewPostgresFromDB wraps an existing handle.
func NewPostgresFromDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// DB exposes the underlying handle.
func (p *Postgres) DB() *sql.DB {
	return p.db
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping verifies the database connection
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// CreateTables creates the necessary database tables
func (p *Postgres) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id UUID PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			owner VARCHAR(255) NOT NULL DEFAULT '',
			seed BIGINT NOT NULL,
			overall DOUBLE PRECISION NOT NULL,
			degraded BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE(fingerprint, owner)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_owner ON analyses(owner, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS valuations (
			id SERIAL PRIMARY KEY,
			fingerprint TEXT NOT NULL,
			position VARCHAR(32) NOT NULL,
			league_tier INT NOT NULL,
			age INT NOT NULL,
			current_value BIGINT NOT NULL,
			peak_value BIGINT NOT NULL,
			trend VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	return nil
}

// RecordAnalysis upserts an analysis row. A repeat upload of the same file by
// the same owner keeps the original id and refreshes the rest.
func (p *Postgres) RecordAnalysis(ctx context.Context, rec *AnalysisRecord) error {
	query := `
		INSERT INTO analyses (id, fingerprint, owner, seed, overall, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (fingerprint, owner) DO UPDATE
		SET seed = EXCLUDED.seed, overall = EXCLUDED.overall,
		    degraded = EXCLUDED.degraded, created_at = EXCLUDED.created_at`
	_, err := p.db.ExecContext(ctx, query,
		rec.ID, rec.Fingerprint, rec.Owner, rec.Seed, rec.Overall, rec.Degraded, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetAnalysis returns the newest row for a fingerprint.
func (p *Postgres) GetAnalysis(ctx context.Context, fingerprint string) (*AnalysisRecord, error) {
	query := `
		SELECT id, fingerprint, owner, seed, overall, degraded, created_at
		FROM analyses WHERE fingerprint = $1
		ORDER BY created_at DESC LIMIT 1`

	var rec AnalysisRecord
	err := p.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&rec.ID, &rec.Fingerprint, &rec.Owner, &rec.Seed, &rec.Overall, &rec.Degraded, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", fingerprint, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	return &rec, nil
}

// ListByOwner returns an owner's analyses, newest first.
func (p *Postgres) ListByOwner(ctx context.Context, owner string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, fingerprint, owner, seed, overall, degraded, created_at
		FROM analyses WHERE owner = $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []AnalysisRecord{}
	for rows.Next() {
		var r AnalysisRecord
		if err := rows.Scan(&r.ID, &r.Fingerprint, &r.Owner, &r.Seed, &r.Overall, &r.Degraded, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
