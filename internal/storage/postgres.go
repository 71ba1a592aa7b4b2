package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pool_monitor/internal/monitor"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// SummaryStore keeps the history of periodic summary snapshots.
type SummaryStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*SummaryStore, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &SummaryStore{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (s *SummaryStore) Close() {
	s.pool.Close()
}

// CreateSchema creates the snapshot history table.
func (s *SummaryStore) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS summary_snapshots (
		id                  BIGSERIAL PRIMARY KEY,
		taken_at            TIMESTAMPTZ NOT NULL,
		total_places        INTEGER NOT NULL,
		total_drivers       INTEGER NOT NULL,
		occupied_spaces     INTEGER NOT NULL,
		available_spaces    INTEGER NOT NULL,
		utilization_rate    DOUBLE PRECISION NOT NULL,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_summary_snapshots_taken ON summary_snapshots(taken_at);
	`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Snapshot is one stored summary row.
type Snapshot struct {
	ID      int64
	TakenAt time.Time
	Summary monitor.Summary
}

// Insert records a summary snapshot.
func (s *SummaryStore) Insert(ctx context.Context, takenAt time.Time, sum monitor.Summary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO summary_snapshots (taken_at, total_places, total_drivers, occupied_spaces, available_spaces, utilization_rate)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, takenAt, sum.TotalPlaces, sum.TotalDrivers, sum.OccupiedSpaces, sum.AvailableSpaces, sum.UtilizationRate)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, or nil when none exist.
func (s *SummaryStore) Latest(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, taken_at, total_places, total_drivers, occupied_spaces, available_spaces, utilization_rate
		FROM summary_snapshots
		ORDER BY taken_at DESC
		LIMIT 1
	`).Scan(&snap.ID, &snap.TakenAt, &snap.Summary.TotalPlaces, &snap.Summary.TotalDrivers,
		&snap.Summary.OccupiedSpaces, &snap.Summary.AvailableSpaces, &snap.Summary.UtilizationRate)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Range returns snapshots taken within [from, to), oldest first.
func (s *SummaryStore) Range(ctx context.Context, from, to time.Time) ([]Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, taken_at, total_places, total_drivers, occupied_spaces, available_spaces, utilization_rate
		FROM summary_snapshots
		WHERE taken_at >= $1 AND taken_at < $2
		ORDER BY taken_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.TakenAt, &snap.Summary.TotalPlaces, &snap.Summary.TotalDrivers,
			&snap.Summary.OccupiedSpaces, &snap.Summary.AvailableSpaces, &snap.Summary.UtilizationRate); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
