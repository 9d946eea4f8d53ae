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

package library

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"Tankobon/pkg/errors"
)

// Migration is one forward-only schema step
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sqlx.Tx) error
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema with series, chapters and downloads",
		Up: func(tx *sqlx.Tx) error {
			_, err := tx.Exec(schemaSQL)
			return err
		},
	},
	{
		Version:     2,
		Description: "Index download queue by enqueue time",
		Up: func(tx *sqlx.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_downloads_queue ON downloads(enqueued_at, id)`)
			return err
		},
	},
}

// currentSchemaVersion is the version a freshly opened store ends up at
var currentSchemaVersion = migrations[len(migrations)-1].Version

// SchemaVersion reports the applied schema version
func (s *Store) SchemaVersion() (int, error) {
	var v int
	if err := s.db.Get(&v, `SELECT COALESCE(MAX(version), 0) FROM schema_version`); err != nil {
		return 0, errors.TS(fmt.Errorf("read schema version: %w", err))
	}
	return v, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return errors.TS(fmt.Errorf("create schema_version: %w", err))
	}

	current, err := s.SchemaVersion()
	if err != nil {
		return err
	}
	if current > currentSchemaVersion {
		return errors.TS(fmt.Errorf("library schema version %d is newer than supported %d", current, currentSchemaVersion))
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := s.db.Beginx()
		if err != nil {
			return errors.TS(fmt.Errorf("begin migration %d: %w", m.Version, err))
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return errors.TS(fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err))
		}
		if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, m.Version); err != nil {
			_ = tx.Rollback()
			return errors.TS(fmt.Errorf("record migration %d: %w", m.Version, err))
		}
		if err := tx.Commit(); err != nil {
			return errors.TS(fmt.Errorf("commit migration %d: %w", m.Version, err))
		}
	}
	return nil
}
