// Package recorder persists forecast history to SQLite.
package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteHistory stores fused forecasts in a SQLite database.
type SQLiteHistory struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteHistory opens (or creates) the SQLite database and runs migrations.
func NewSQLiteHistory(dbPath string, log zerolog.Logger) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the server writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	h := &SQLiteHistory{db: db}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("sqlite history opened")
	return h, nil
}

func (h *SQLiteHistory) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS forecasts (
			id                 TEXT PRIMARY KEY,
			fingerprint        TEXT NOT NULL,
			generated_at       INTEGER NOT NULL,
			target_time        INTEGER NOT NULL,
			baseline_per_hour  REAL,
			extra_per_hour     REAL,
			total_per_hour     REAL,
			overall_confidence REAL,
			summary_label      TEXT,
			degraded           INTEGER,
			payload            TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_generated ON forecasts(generated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_fingerprint ON forecasts(fingerprint)`,
	}

	for _, s := range stmts {
		if _, err := h.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", stmtPrefix(s), err)
		}
	}
	return nil
}

// stmtPrefix shortens a statement for error messages.
func stmtPrefix(s string) string {
	return s[:min(len(s), 40)]
}

// Record inserts one forecast.
func (h *SQLiteHistory) Record(ctx context.Context, rec forecast.HistoryRecord) error {
	payload, err := json.Marshal(rec.Forecast)
	if err != nil {
		return fmt.Errorf("encode forecast: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	f := rec.Forecast
	_, err = h.db.ExecContext(ctx,
		`INSERT INTO forecasts (id, fingerprint, generated_at, target_time, baseline_per_hour,
			extra_per_hour, total_per_hour, overall_confidence, summary_label, degraded, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Fingerprint, f.GeneratedAt.UnixNano(), f.TargetTime.UnixNano(), f.BaselineRatePerHour,
		f.ExtraPerHour, f.TotalPerHour, f.OverallConfidence, string(f.SummaryLabel), f.Degraded(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert forecast: %w", err)
	}
	return nil
}

// Latest returns the most recently generated forecast.
func (h *SQLiteHistory) Latest(ctx context.Context) (forecast.HistoryRecord, error) {
	row := h.db.QueryRowContext(ctx,
		`SELECT id, fingerprint, payload FROM forecasts ORDER BY generated_at DESC, rowid DESC LIMIT 1`)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return forecast.HistoryRecord{}, forecast.ErrNotFound
	}
	return rec, err
}

// Range returns forecasts generated between from and to (inclusive), oldest first.
func (h *SQLiteHistory) Range(ctx context.Context, from, to time.Time) ([]forecast.HistoryRecord, error) {
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, fingerprint, payload FROM forecasts
		WHERE generated_at >= ? AND generated_at <= ?
		ORDER BY generated_at ASC, rowid ASC`,
		from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("query forecasts: %w", err)
	}
	defer rows.Close()

	var out []forecast.HistoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forecasts: %w", err)
	}
	if len(out) == 0 {
		return nil, forecast.ErrNotFound
	}
	return out, nil
}

// Close closes the database.
func (h *SQLiteHistory) Close() error {
	return h.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (forecast.HistoryRecord, error) {
	var (
		rec     forecast.HistoryRecord
		payload string
	)
	if err := s.Scan(&rec.ID, &rec.Fingerprint, &payload); err != nil {
		return forecast.HistoryRecord{}, err
	}
	if err := json.Unmarshal([]byte(payload), &rec.Forecast); err != nil {
		return forecast.HistoryRecord{}, fmt.Errorf("decode forecast %s: %w", rec.ID, err)
	}
	return rec, nil
}
