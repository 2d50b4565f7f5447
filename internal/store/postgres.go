// Package store provides Postgres-backed persistence for emitted records.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jfourny/profilescout/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ProfileStoreConfig controls the Postgres connection used for profile rows.
type ProfileStoreConfig struct {
	DSN   string
	Table string
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// ProfileStore writes emitted profile records into Postgres. Rows are keyed
// by profile_url, so re-runs upsert rather than duplicate.
type ProfileStore struct {
	pool  execCloser
	table string
}

// NewProfileStore connects a pool and returns the store.
//
// Expected schema:
//
//	CREATE TABLE profiles (
//	    profile_url TEXT PRIMARY KEY,
//	    name TEXT NOT NULL,
//	    headline TEXT,
//	    location TEXT,
//	    current_position TEXT,
//	    educations JSONB NOT NULL,
//	    skills JSONB NOT NULL,
//	    scraped_at TIMESTAMPTZ NOT NULL
//	);
func NewProfileStore(ctx context.Context, cfg ProfileStoreConfig) (*ProfileStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &ProfileStore{pool: pool, table: table}, nil
}

// NewProfileStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewProfileStoreWithPool(pool execCloser, table string) (*ProfileStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ProfileStore{pool: pool, table: name}, nil
}

// Emit upserts one profile record.
func (s *ProfileStore) Emit(ctx context.Context, rec crawler.ProfileRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("profile store is not configured")
	}
	if rec.ProfileURL == "" {
		return fmt.Errorf("profile_url is required")
	}
	educations, err := json.Marshal(rec.Educations)
	if err != nil {
		return fmt.Errorf("marshal educations: %w", err)
	}
	skills, err := json.Marshal(rec.Skills)
	if err != nil {
		return fmt.Errorf("marshal skills: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	profile_url,
	name,
	headline,
	location,
	current_position,
	educations,
	skills,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)
ON CONFLICT (profile_url) DO UPDATE SET
	name = EXCLUDED.name,
	headline = EXCLUDED.headline,
	location = EXCLUDED.location,
	current_position = EXCLUDED.current_position,
	educations = EXCLUDED.educations,
	skills = EXCLUDED.skills,
	scraped_at = EXCLUDED.scraped_at`, s.table)

	args := []any{
		rec.ProfileURL,
		rec.Name,
		rec.Headline,
		rec.Location,
		rec.CurrentPosition,
		educations,
		skills,
		rec.ScrapedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ProfileStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func tableName(table string) (string, error) {
	if table == "" {
		table = "profiles"
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}
