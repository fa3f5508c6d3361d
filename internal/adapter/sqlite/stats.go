package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/couchcryptid/drought-index-etl/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS zonal_stats (
	region     TEXT    NOT NULL,
	variable   TEXT    NOT NULL,
	year       INTEGER NOT NULL,
	month      INTEGER NOT NULL,
	mean       REAL,
	pixels     INTEGER NOT NULL,
	updated_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	PRIMARY KEY (region, variable, year, month)
)`

const upsert = `
INSERT INTO zonal_stats (region, variable, year, month, mean, pixels)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (region, variable, year, month) DO UPDATE SET
	mean       = excluded.mean,
	pixels     = excluded.pixels,
	updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')`

// StatsStore persists zonal statistics in a SQLite database.
// It implements pipeline.StatsWriter.
type StatsStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the stats database at path.
func Open(ctx context.Context, path string) (*StatsStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open stats database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping stats database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create stats schema: %w", err)
	}
	return &StatsStore{db: db}, nil
}

// WriteStats upserts every row in one transaction. A NaN mean is stored as NULL.
func (s *StatsStore) WriteStats(ctx context.Context, stats []domain.ZonalStat) error {
	if len(stats) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stats transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("prepare stats upsert: %w", err)
	}
	defer stmt.Close()

	for _, st := range stats {
		var mean sql.NullFloat64
		if !math.IsNaN(st.Mean) {
			mean = sql.NullFloat64{Float64: st.Mean, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, st.Region, st.Variable, st.Year, st.Month, mean, st.Count); err != nil {
			return fmt.Errorf("upsert stat %s %s %d-%02d: %w", st.Region, st.Variable, st.Year, st.Month, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stats: %w", err)
	}
	return nil
}

// Stats returns every row for variable ordered by region, year and month.
func (s *StatsStore) Stats(ctx context.Context, variable string) ([]domain.ZonalStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT region, variable, year, month, mean, pixels
		FROM zonal_stats
		WHERE variable = ?
		ORDER BY region, year, month`, variable)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var out []domain.ZonalStat
	for rows.Next() {
		var st domain.ZonalStat
		var mean sql.NullFloat64
		if err := rows.Scan(&st.Region, &st.Variable, &st.Year, &st.Month, &mean, &st.Count); err != nil {
			return nil, fmt.Errorf("scan stat: %w", err)
		}
		st.Mean = math.NaN()
		if mean.Valid {
			st.Mean = mean.Float64
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// CheckReadiness pings the database.
func (s *StatsStore) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *StatsStore) Close() error {
	return s.db.Close()
}
