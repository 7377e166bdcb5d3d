package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Migration represents a database migration
type Migration struct {
	Version    int
	Name       string
	Statements []string
}

// schemaVersionTable is created before any migration runs
const schemaVersionTable = `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL
	)`

// migrations contains all database migrations in order. Statements use the
// SQL subset shared by PostgreSQL and SQLite.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_posts_table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS posts (
				id TEXT PRIMARY KEY,
				campaign_id TEXT NOT NULL,
				subreddit TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				body TEXT NOT NULL DEFAULT '',
				comment_count INTEGER,
				upvotes INTEGER NOT NULL DEFAULT 0,
				archetype TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_posts_campaign_subreddit ON posts(campaign_id, subreddit)`,
		},
	},
	{
		Version: 2,
		Name:    "create_post_scores_table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS post_scores (
				post_id TEXT PRIMARY KEY,
				campaign_id TEXT NOT NULL,
				subreddit TEXT NOT NULL,
				total_score REAL NOT NULL,
				features TEXT NOT NULL,
				score TEXT NOT NULL,
				scored_at TIMESTAMP NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_post_scores_campaign_subreddit ON post_scores(campaign_id, subreddit)`,
		},
	},
	{
		Version: 3,
		Name:    "create_community_profiles_table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS community_profiles (
				id TEXT PRIMARY KEY,
				campaign_id TEXT NOT NULL,
				subreddit TEXT NOT NULL,
				isc_score REAL NOT NULL,
				isc_tier TEXT NOT NULL,
				sample_size INTEGER NOT NULL,
				profile TEXT NOT NULL,
				analyzed_at TIMESTAMP NOT NULL,
				UNIQUE (campaign_id, subreddit)
			)`,
		},
	},
	{
		Version: 4,
		Name:    "create_custom_patterns_table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS custom_patterns (
				id TEXT PRIMARY KEY,
				campaign_id TEXT NOT NULL,
				subreddit TEXT NOT NULL DEFAULT '',
				category TEXT NOT NULL,
				pattern TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				UNIQUE (campaign_id, subreddit, category, pattern)
			)`,
		},
	},
	{
		Version: 5,
		Name:    "create_analysis_runs_table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS analysis_runs (
				campaign_id TEXT NOT NULL,
				subreddit TEXT NOT NULL,
				status TEXT NOT NULL,
				stage TEXT NOT NULL DEFAULT '',
				error TEXT NOT NULL DEFAULT '',
				enqueued_at TIMESTAMP NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (campaign_id, subreddit)
			)`,
		},
	},
}

// Migrate runs all pending migrations
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var currentVersion int
	err := db.conn.GetContext(ctx, &currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	slog.Debug("current schema version", "version", currentVersion, "driver", db.driver)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.conn.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		for _, stmt := range migration.Statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
			}
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"),
			migration.Version, time.Now().UTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Info("applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}

// SchemaVersion returns the highest applied migration
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := db.conn.GetContext(ctx, &version, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
