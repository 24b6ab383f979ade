package store

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3" // Registers the sqlite3 driver.
	"github.com/pkg/errors"
)

// SQLiteKV is a KV backed by a SQLite database, for installs which already
// carry a game database and prefer a single durable artifact over loose
// files. Values live in a dedicated save_slots table.
type SQLiteKV struct {
	db    *sql.DB
	quota int64
}

// NewSQLiteKV opens (or creates) the SQLite database at |path| and prepares
// the save_slots table. |quota| bounds total stored bytes (<= 0 unbounded).
func NewSQLiteKV(path string, quota int64) (*SQLiteKV, error) {
	var db, err = sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WithMessage(err, "opening database")
	}
	if _, err = db.Exec(
		`CREATE TABLE IF NOT EXISTS save_slots (
			key   TEXT PRIMARY KEY NOT NULL,
			value BLOB NOT NULL
		);`); err != nil {
		_ = db.Close()
		return nil, errors.WithMessage(err, "creating save_slots table")
	}
	return &SQLiteKV{db: db, quota: quota}, nil
}

// Put implements KV.
func (kv *SQLiteKV) Put(key string, value []byte) error {
	if kv.quota > 0 {
		var used int64
		var err = kv.db.QueryRow(
			`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM save_slots WHERE key != ?;`, key,
		).Scan(&used)
		if err != nil {
			return errors.WithMessage(err, "sizing store")
		}
		if used+int64(len(value)) > kv.quota {
			return ErrQuotaExceeded
		}
	}
	var _, err = kv.db.Exec(
		`INSERT INTO save_slots (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO UPDATE SET value = excluded.value;`, key, value)
	return errors.WithMessage(err, "upserting value")
}

// Get implements KV.
func (kv *SQLiteKV) Get(key string) ([]byte, bool, error) {
	var value []byte
	var err = kv.db.QueryRow(
		`SELECT value FROM save_slots WHERE key = ?;`, key).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, false, nil
	} else if err != nil {
		return nil, false, errors.WithMessage(err, "selecting value")
	}
	return value, true, nil
}

// Delete implements KV.
func (kv *SQLiteKV) Delete(key string) error {
	var _, err = kv.db.Exec(`DELETE FROM save_slots WHERE key = ?;`, key)
	return errors.WithMessage(err, "deleting value")
}

// Close closes the underlying database.
func (kv *SQLiteKV) Close() error { return kv.db.Close() }
