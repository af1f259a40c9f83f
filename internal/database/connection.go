package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var (
	ErrUnsupportedDriver = errors.New("database: unsupported driver")
	ErrItemNotFound      = errors.New("database: learning item not found")
	ErrUserNotFound      = errors.New("database: user not found")
)

// Config selects the SQL backend.
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// dialect holds the column types that differ between backends.
type dialect struct {
	serial    string
	timestamp string
	float     string
}

var dialects = map[string]dialect{
	DriverSQLite:   {serial: "INTEGER PRIMARY KEY AUTOINCREMENT", timestamp: "TIMESTAMP", float: "REAL"},
	DriverPostgres: {serial: "BIGSERIAL PRIMARY KEY", timestamp: "TIMESTAMPTZ", float: "DOUBLE PRECISION"},
}

// Connect opens the database and makes sure the schema exists.
func Connect(cfg Config) (*sqlx.DB, error) {
	d, ok := dialects[cfg.Driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}

	if cfg.Driver == DriverSQLite && !isMemoryDSN(cfg.DSN) {
		// Create data directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers; one connection also keeps
		// an in-memory database alive for the lifetime of the pool.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db, d); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || (strings.HasPrefix(dsn, "file:") && strings.Contains(dsn, "mode=memory"))
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB, d dialect) error {
	statements := []struct {
		name  string
		query string
	}{
		{"users", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				username TEXT NOT NULL DEFAULT '',
				first_name TEXT NOT NULL DEFAULT '',
				items_per_day INTEGER NOT NULL DEFAULT 20,
				notification_hour INTEGER NOT NULL DEFAULT 9,
				notification_enabled BOOLEAN NOT NULL DEFAULT TRUE,
				created_at %[1]s NOT NULL,
				updated_at %[1]s NOT NULL
			)`, d.timestamp)},
		{"learning_items", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS learning_items (
				id TEXT PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id),
				topic TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL,
				question TEXT NOT NULL DEFAULT '',
				answer TEXT NOT NULL DEFAULT '',
				difficulty %[2]s NOT NULL,
				ease_factor %[2]s NOT NULL DEFAULT 2.5,
				interval_days %[2]s NOT NULL DEFAULT 1.0,
				review_count INTEGER NOT NULL DEFAULT 0,
				next_review %[1]s NOT NULL,
				last_reviewed %[1]s,
				created_at %[1]s NOT NULL,
				updated_at %[1]s NOT NULL
			)`, d.timestamp, d.float)},
		{"learning_items_due_idx", `
			CREATE INDEX IF NOT EXISTS learning_items_due_idx
			ON learning_items (user_id, next_review)`},
		{"review_logs", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS review_logs (
				id %[1]s,
				item_id TEXT NOT NULL REFERENCES learning_items(id),
				user_id BIGINT NOT NULL REFERENCES users(id),
				quality INTEGER NOT NULL,
				reviewed_at %[2]s NOT NULL,
				ease_factor %[3]s NOT NULL,
				interval_days %[3]s NOT NULL,
				difficulty %[3]s NOT NULL
			)`, d.serial, d.timestamp, d.float)},
	}

	for _, st := range statements {
		if _, err := db.Exec(st.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}
