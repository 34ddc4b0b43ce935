package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL flavour behind a connection
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

// ParseDialect maps a configured driver name to a dialect
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "pgx", "postgres", "postgresql":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// Config holds database configuration
type Config struct {
	Driver string
	DSN    string
}

// DB is a connection pool that knows its dialect. Queries are written with
// ? placeholders and passed through Rebind.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open connects and verifies the database
func Open(ctx context.Context, cfg Config) (*DB, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	conn, err := sql.Open(string(dialect), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := &DB{DB: conn, Dialect: dialect}

	switch dialect {
	case SQLite:
		if isMemoryDSN(cfg.DSN) {
			// every connection to :memory: is a separate database
			conn.SetMaxOpenConns(1)
			conn.SetMaxIdleConns(1)
		} else {
			conn.SetMaxOpenConns(10)
			conn.SetMaxIdleConns(5)
		}
		for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	case Postgres:
		conn.SetMaxOpenConns(20)
		conn.SetMaxIdleConns(5)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database initialized", "component", "database", "driver", string(dialect))
	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// Rebind converts ? placeholders to the dialect's bind syntax
func (db *DB) Rebind(query string) string {
	return Rebind(db.Dialect, query)
}

// Rebind converts ? placeholders to $1..$n for Postgres
func Rebind(dialect Dialect, query string) string {
	if dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Placeholders returns n comma separated ? markers
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

// Transaction executes a function within a database transaction
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

var (
	shared   *DB
	initOnce sync.Once
)

// Init opens the process-wide database once
func Init(ctx context.Context, cfg Config) error {
	var err error
	initOnce.Do(func() {
		shared, err = Open(ctx, cfg)
	})
	return err
}

// Get returns the process-wide database
func Get() *DB {
	if shared == nil {
		panic("database not initialized, call Init first")
	}
	return shared
}

// Close closes the process-wide database
func Close() error {
	if shared != nil {
		return shared.Close()
	}
	return nil
}
