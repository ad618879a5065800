package db

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// FileName is the database file created inside the data directory.
const FileName = "depplan.db"

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// New opens (creating if needed) the database in dataDir and initializes
// the schema. An empty dataDir opens a private in-memory database.
func New(dataDir string) (*DB, error) {
	dsn := ":memory:"
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("db.New: %w", err)
		}
		dsn = filepath.Join(dataDir, FileName) + "?_foreign_keys=on&_busy_timeout=5000"
	}

	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("db.New: %w", err)
	}
	if dataDir == "" {
		// every pooled connection would otherwise get its own empty database
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db.New: schema: %w", err)
	}

	return &DB{conn}, nil
}

// GetSetting retrieves a setting value by key. A missing key is "".
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSetting sets a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// DeleteSetting removes a setting.
func (db *DB) DeleteSetting(key string) error {
	_, err := db.Exec("DELETE FROM settings WHERE key = ?", key)
	return err
}
