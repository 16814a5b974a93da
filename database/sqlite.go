package database

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	logger "github.com/sirupsen/logrus"
)

const MemoryPath = ":memory:"

// OpenSQLite opens the sqlite file at path, ":memory:" gives a private
// in-memory database.
//
// The pool is capped at one connection: sqlite allows a single writer, and
// every connection to ":memory:" would otherwise see its own empty database.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != MemoryPath {
		dsn = "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	logger.WithField("path", path).Debug("sqlite opened")
	return db, nil
}
