package storage

import (
	"context"
	"fmt"
)

// Config holds database connection settings for both ClickHouse and PostgreSQL.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "pool_monitor",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "pool_monitor",
			User:     "pool_monitor",
			Password: "pool_monitor",
		},
	}
}

// Archive wraps both analytics stores: the ClickHouse event archive and
// the PostgreSQL summary snapshot history.
type Archive struct {
	Events    *EventArchive
	Summaries *SummaryStore
}

// OpenArchive opens connections to both ClickHouse and PostgreSQL.
func OpenArchive(ctx context.Context, cfg Config) (*Archive, error) {
	ev, err := OpenClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: %w", err)
	}

	sums, err := OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		_ = ev.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	return &Archive{Events: ev, Summaries: sums}, nil
}

// Close closes both database connections.
func (a *Archive) Close() error {
	var errs []error
	if a.Events != nil {
		if err := a.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("clickhouse: %w", err))
		}
	}
	if a.Summaries != nil {
		a.Summaries.Close()
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// CreateSchemas creates the schemas in both databases.
func (a *Archive) CreateSchemas(ctx context.Context) error {
	if err := a.Events.CreateSchema(ctx); err != nil {
		return fmt.Errorf("clickhouse schema: %w", err)
	}
	if err := a.Summaries.CreateSchema(ctx); err != nil {
		return fmt.Errorf("postgres schema: %w", err)
	}
	return nil
}
