package database

import (
	"context"
	"fmt"
	"time"
)

// ValuationRecord is one forecast served for a fingerprint.
type ValuationRecord struct {
	ID           int64
	Fingerprint  string
	Position     string
	LeagueTier   int
	Age          int
	CurrentValue int64
	PeakValue    int64
	Trend        string
	CreatedAt    time.Time
}

// RecordValuation appends a forecast to the valuation history.
func (p *Postgres) RecordValuation(ctx context.Context, rec *ValuationRecord) error {
	query := `
        INSERT INTO valuations (fingerprint, position, league_tier, age, current_value, peak_value, trend, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	_, err := p.db.ExecContext(ctx, query,
		rec.Fingerprint, rec.Position, rec.LeagueTier, rec.Age,
		rec.CurrentValue, rec.PeakValue, rec.Trend, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert valuation: %w", err)
	}
	return nil
}

// ValuationHistory lists forecasts for a fingerprint, newest first.
func (p *Postgres) ValuationHistory(ctx context.Context, fingerprint string) ([]ValuationRecord, error) {
	query := `
        SELECT id, fingerprint, position, league_tier, age, current_value, peak_value, trend, created_at
        FROM valuations
        WHERE fingerprint = $1
        ORDER BY created_at DESC
    `
	rows, err := p.db.QueryContext(ctx, query, fingerprint)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []ValuationRecord
	for rows.Next() {
		var r ValuationRecord
		err := rows.Scan(&r.ID, &r.Fingerprint, &r.Position, &r.LeagueTier, &r.Age,
			&r.CurrentValue, &r.PeakValue, &r.Trend, &r.CreatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
