package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

// Connect creates a PostgreSQL connection pool and verifies it answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// PendingMigrations returns the .up.sql files in fsys not listed in applied, sorted by name.
func PendingMigrations(fsys fs.FS, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	files := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		name := e.Name()
		return name, !e.IsDir() && strings.HasSuffix(name, ".up.sql") && !applied[name]
	})
	slices.Sort(files)
	return files, nil
}

// RunMigrations applies pending .up.sql files from fsys, each in its own transaction.
// Applied files are tracked in schema_migrations and skipped on later runs.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT        PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("reading applied migrations: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scanning applied migrations: %w", err)
	}
	applied := lo.SliceToMap(names, func(n string) (string, bool) { return n, true })

	pending, err := PendingMigrations(fsys, applied)
	if err != nil {
		return err
	}

	for _, file := range pending {
		sql, err := fs.ReadFile(fsys, file)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", file, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return fmt.Errorf("executing migration %s: %w", file, err)
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file); err != nil {
				return fmt.Errorf("recording migration %s: %w", file, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		slog.Info("applied migration", "file", file)
	}

	return nil
}
