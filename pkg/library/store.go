// Tankobon: a manga library, reader backend and downloader.
// Copyright (C) 2025 Luca M. Schmidt (LuMiSxh)
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package library persists series, chapters and download tasks in SQLite.
package library

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"Tankobon/pkg/errors"
)

//go:embed schema.sql
var schemaSQL string

var errNoRows = sql.ErrNoRows

// Store is the library database. Writes go through a single connection,
// so callers never see SQLITE_BUSY from concurrent writers.
type Store struct {
	db   *sqlx.DB
	path string
}

// Open opens (or creates) the library database at path and brings its
// schema up to date.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Track(err).WithFileContext(dir, "mkdir").AsStorage().Error()
		}
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, errors.TS(fmt.Errorf("open library %s: %w", path, err))
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.TS(fmt.Errorf("ping library %s: %w", path, err))
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.TS(fmt.Errorf("%s: %w", p, err))
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location
func (s *Store) Path() string {
	return s.path
}

// inTx runs fn inside a transaction, rolling back on error
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.TS(fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.TS(fmt.Errorf("commit: %w", err))
	}
	return nil
}

// notFound turns sql.ErrNoRows into ErrNotFound and anything else into a
// storage failure.
func notFound(err error, what string, id interface{}) error {
	if err == sql.ErrNoRows {
		return errors.Track(errors.ErrNotFound).
			WithMessage(fmt.Sprintf("%s %v not found", what, id)).
			WithContext(what+"_id", id).
			AsNotFound().
			Error()
	}
	return errors.TS(fmt.Errorf("load %s %v: %w", what, id, err))
}
