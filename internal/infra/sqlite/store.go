// Package sqlite implements the persistence ports on an embedded SQLite
// database. The pure-Go driver keeps the binary free of cgo.
package sqlite

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	// Import sqlite driver
	_ "modernc.org/sqlite"
)

// Store wraps a sql.DB connection and implements the persistence ports.
type Store struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Open opens a database connection at path (":memory:" for tests) and runs
// migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	// SQLite serializes writers; a single connection avoids busy errors
	// under concurrent handlers.
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn, logger: logger}
	if err := s.migrate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT,
			name TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			user_id TEXT PRIMARY KEY REFERENCES users(id),
			monthly_income REAL,
			daily_calorie_target INTEGER,
			weight_goal TEXT,
			current_weight REAL,
			target_weight REAL,
			preferred_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS expenses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			amount REAL NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_user_time
			ON expenses(user_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS consumed_foods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			food_item TEXT NOT NULL,
			calories INTEGER NOT NULL,
			carbs REAL NOT NULL DEFAULT 0,
			protein REAL NOT NULL DEFAULT 0,
			fat REAL NOT NULL DEFAULT 0,
			quantity REAL NOT NULL DEFAULT 1,
			unit TEXT NOT NULL DEFAULT 'serving',
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_consumed_user_time
			ON consumed_foods(user_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			is_user INTEGER NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			tool_used TEXT,
			tool_response TEXT,
			conversation_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_user_time
			ON chat_messages(user_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS restaurants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			cuisine_type TEXT NOT NULL,
			price_level TEXT NOT NULL,
			rating REAL,
			address TEXT,
			description TEXT,
			highlights TEXT
		)`,
	}

	for _, m := range migrations {
		if _, err := s.conn.Exec(m); err != nil {
			return err
		}
	}

	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
