// Package store persists swap records, signer confirmations, and
// checkpoints in Postgres, plus in-memory and file-based fallbacks used
// by tests and by the checkpoint's crash-safety path respectively.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a pooled *sql.DB connection with the logging and migration
// conventions shared by every repository in this package.
type DB struct {
	conn   *sql.DB
	logger *log.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *DB) { d.logger = logger }
}

// Open connects to dsn and verifies the connection with a bounded ping.
func Open(dsn string, opts ...Option) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: database URL cannot be empty")
	}

	d := &DB{logger: log.New(log.Writer(), "[Store] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(d)
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	d.conn = conn
	d.logger.Println("connected")
	return d, nil
}

// Conn exposes the underlying *sql.DB for repositories in this package.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Close closes the pooled connection.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// Ping verifies the connection is alive, used by the health endpoint.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// migration is one embedded *.sql file, ordered by its numeric prefix.
type migration struct {
	version string
	sql     string
}

// MigrateUp applies every embedded migration not yet recorded in
// schema_migrations, in filename order.
func (d *DB) MigrateUp(ctx context.Context) error {
	migrations, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("store: load migrations: %w", err)
	}

	applied, err := d.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("store: read applied migrations: %w", err)
		}
		applied = map[string]bool{}
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		d.logger.Printf("applying migration %s", m.version)
		tx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: apply migration %s: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
			m.version, time.Now()); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: record migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %s: %w", m.version, err)
		}
	}
	return nil
}

func loadMigrations() ([]migration, error) {
	var out []migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, migration{version: strings.TrimSuffix(d.Name(), ".sql"), sql: string(content)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (d *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := map[string]bool{}
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
