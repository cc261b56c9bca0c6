// Package postgres implements the run sink on a Postgres database.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propfetch/rightmove-scraper/internal/scraper"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used by the sink.
type Config struct {
	DSN             string
	ListingsTable   string
	ReportsTable    string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Sink writes listing rows and report rows into Postgres.
type Sink struct {
	pool     execCloser
	listings string
	reports  string
}

// New creates a Postgres-backed sink using the provided config.
func New(ctx context.Context, cfg Config) (*Sink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("sink.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, cfg.ListingsTable, cfg.ReportsTable)
}

// NewWithPool constructs a sink from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, listingsTable, reportsTable string) (*Sink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if listingsTable == "" {
		listingsTable = "listings"
	}
	if reportsTable == "" {
		reportsTable = "run_reports"
	}
	for _, table := range []string{listingsTable, reportsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Sink{pool: pool, listings: listingsTable, reports: reportsTable}, nil
}

// Close releases the underlying pool resources.
func (s *Sink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// PushRecord upserts one listing row keyed by the property id.
func (s *Sink) PushRecord(ctx context.Context, record scraper.CleanRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	if record.BasicInfo.ID == "" {
		return fmt.Errorf("record id is required")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	price,
	title,
	property_type,
	postcode,
	address,
	bedrooms,
	bathrooms,
	reception_rooms,
	scraped_at,
	schema_version,
	payload
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
	price = EXCLUDED.price,
	scraped_at = EXCLUDED.scraped_at,
	payload = EXCLUDED.payload
`, s.listings)
	if _, err := s.pool.Exec(ctx, query,
		record.BasicInfo.ID,
		record.BasicInfo.Price,
		record.BasicInfo.Title,
		record.BasicInfo.PropertyType,
		record.Location.Postcode,
		record.Location.Address,
		record.Features.Bedrooms,
		record.Features.Bathrooms,
		record.Features.ReceptionRooms,
		record.Metadata.ScrapedAt,
		record.Metadata.SchemaVersion,
		payload,
	); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// PushReport inserts one keyed report row.
func (s *Sink) PushReport(ctx context.Context, key string, report any) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	query := fmt.Sprintf(
		`INSERT INTO %s (report_key, created_at, payload) VALUES ($1, $2, $3)`,
		s.reports,
	)
	if _, err := s.pool.Exec(ctx, query, key, time.Now().UTC(), payload); err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}
