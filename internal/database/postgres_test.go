package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresFromDB(db), mock
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", User: "scout", Password: "pw", Database: "scoutline"}
	assert.Equal(t, "host=db port=5432 user=scout password=pw dbname=scoutline sslmode=disable", cfg.DSN())

	cfg.Port = 6543
	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "port=6543")
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestPostgres_CreateTables(t *testing.T) {
	p, mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analyses").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_analyses_owner").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS valuations").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.CreateTables(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateTablesError(t *testing.T) {
	p, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS analyses").WillReturnError(errors.New("permission denied"))

	err := p.CreateTables(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create table")
}

func TestPostgres_RecordAnalysis(t *testing.T) {
	p, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &AnalysisRecord{
		ID:          "7b0e9a52-2f59-4a8f-9d0e-3c1b8f6d2a11",
		Fingerprint: "clip.mp4-2048-video/mp4-1700000000000-3joqo0",
		Owner:       "coach-1",
		Seed:        214465536,
		Overall:     71.4,
		CreatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(rec.ID, rec.Fingerprint, rec.Owner, rec.Seed, rec.Overall, false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.RecordAnalysis(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetAnalysis(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		p, mock := newMock(t)
		rows := sqlmock.NewRows([]string{"id", "fingerprint", "owner", "seed", "overall", "degraded", "created_at"}).
			AddRow("id-1", "fp", "coach-1", int64(42), 66.5, true, now)
		mock.ExpectQuery("SELECT id, fingerprint").WithArgs("fp").WillReturnRows(rows)

		rec, err := p.GetAnalysis(ctx, "fp")
		require.NoError(t, err)
		assert.Equal(t, "id-1", rec.ID)
		assert.Equal(t, int64(42), rec.Seed)
		assert.True(t, rec.Degraded)
		assert.Equal(t, now, rec.CreatedAt)
	})

	t.Run("missing", func(t *testing.T) {
		p, mock := newMock(t)
		mock.ExpectQuery("SELECT id, fingerprint").WithArgs("fp").WillReturnError(sql.ErrNoRows)

		_, err := p.GetAnalysis(ctx, "fp")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgres_ListByOwner(t *testing.T) {
	p, mock := newMock(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "fingerprint", "owner", "seed", "overall", "degraded", "created_at"}).
		AddRow("id-2", "fp-2", "coach-1", int64(2), 60.0, false, now).
		AddRow("id-1", "fp-1", "coach-1", int64(1), 55.0, false, now.Add(-time.Hour))
	// out-of-range limits fall back to 100
	mock.ExpectQuery("FROM analyses WHERE owner").WithArgs("coach-1", 100).WillReturnRows(rows)

	records, err := p.ListByOwner(context.Background(), "coach-1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "fp-2", records[0].Fingerprint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Valuations(t *testing.T) {
	p, mock := newMock(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := &ValuationRecord{
		Fingerprint: "fp", Position: "midfielder", LeagueTier: 1, Age: 23,
		CurrentValue: 4_100_000, PeakValue: 5_000_000, Trend: "rising", CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO valuations").
		WithArgs("fp", "midfielder", 1, 23, int64(4_100_000), int64(5_000_000), "rising", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, p.RecordValuation(ctx, rec))

	rows := sqlmock.NewRows([]string{"id", "fingerprint", "position", "league_tier", "age", "current_value", "peak_value", "trend", "created_at"}).
		AddRow(int64(1), "fp", "midfielder", 1, 23, int64(4_100_000), int64(5_000_000), "rising", now)
	mock.ExpectQuery("FROM valuations").WithArgs("fp").WillReturnRows(rows)

	history, err := p.ValuationHistory(ctx, "fp")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "rising", history[0].Trend)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Integration(t *testing.T) {
	dsn := os.Getenv("SCOUTLINE_TEST_DATABASE_URL")
	if dsn == "" || testing.Short() {
		t.Skip("SCOUTLINE_TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	p := NewPostgresFromDB(db)
	defer func() { _ = p.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, p.Ping(ctx))
	require.NoError(t, p.CreateTables(ctx))
}
