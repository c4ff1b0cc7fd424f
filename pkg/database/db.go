package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

// Open mở file sqlite; ":memory:" dùng cho test.
func Open(dbPath string) (*sql.DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite: 1 connection, ":memory:" cũng giữ nguyên dữ liệu giữa các query
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// OpenMemory opens a migrated in-memory database.
func OpenMemory() (*sql.DB, error) {
	db, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	if _, _, err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
