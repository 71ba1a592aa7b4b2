// Package storage provides the optional persistence around the monitor:
// an append-only reconciled-event archive in ClickHouse, summary snapshot
// history in PostgreSQL, and the place reference-name store in SQLite.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"pool_monitor/internal/monitor"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// EventArchive stores every applied feed event for later analytics.
type EventArchive struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*EventArchive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &EventArchive{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (a *EventArchive) Close() error {
	return a.conn.Close()
}

// CreateSchema creates the event archive table.
func (a *EventArchive) CreateSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS events (
		timestamp       DateTime64(3),
		stream          LowCardinality(String),
		event_type      LowCardinality(String),
		place_id        Int64,
		fleet_number    LowCardinality(String),
		driver_id       String,
		total           Int32,
		driver_count    Int32,
		payload         String,
		created_at      DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (stream, event_type, timestamp)
	SETTINGS index_granularity = 8192`

	if err := a.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// InsertBatch archives one applied batch of changes.
func (a *EventArchive) InsertBatch(ctx context.Context, changes []monitor.Change) error {
	if len(changes) == 0 {
		return nil
	}

	batch, err := a.conn.PrepareBatch(ctx, `
		INSERT INTO events (timestamp, stream, event_type, place_id, fleet_number, driver_id, total, driver_count, payload)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ch := range changes {
		ts := ch.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}

		var (
			stream      string
			placeID     int64
			fleetNumber string
			driverID    string
			total       int32
			driverCount int32
			payload     any
		)
		switch {
		case ch.Place != nil:
			stream = "monitoring"
			placeID = ch.Place.PlaceID
			total = int32(ch.Place.Total)
			driverCount = int32(len(ch.Place.Drivers))
			payload = ch.Place
		case ch.Supply != nil:
			stream = "supplies"
			placeID = ch.Supply.PlaceID
			fleetNumber = ch.Supply.FleetNumber
			driverID = ch.Supply.DriverID
			payload = ch.Supply
		default:
			continue
		}

		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}

		err = batch.Append(ts, stream, string(ch.Type), placeID, fleetNumber, driverID, total, driverCount, string(raw))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// CountEvents returns the number of archived events for a stream since
// the given time. Used by operational tooling, not the hot path.
func (a *EventArchive) CountEvents(ctx context.Context, stream string, since time.Time) (uint64, error) {
	var count uint64
	err := a.conn.QueryRow(ctx, `
		SELECT count() FROM events WHERE stream = ? AND timestamp >= ?
	`, stream, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return count, nil
}
