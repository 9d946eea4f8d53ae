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
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
)

const seriesColumns = `id, source_id, slug, name, url, authors, scanlators, genres, status,
	synopsis, cover_url, cover_local_path, reading_direction, scaling, background_color,
	last_read_at, last_updated_at`

// SeriesDelta is a partial series update. Nil fields are left untouched.
type SeriesDelta struct {
	Name       *string
	URL        *string
	Authors    *[]string
	Scanlators *[]string
	Genres     *[]string
	Status     *core.Status
	Synopsis   *string
	CoverURL   *string

	CoverLocalPath      *string
	ClearCoverLocalPath bool

	// Settings replaces all three reader overrides; nil fields inside it
	// fall back to the global defaults.
	Settings *core.SeriesSettings

	LastReadAt    *time.Time
	LastUpdatedAt *time.Time
}

func (d SeriesDelta) empty() bool {
	return d.Name == nil && d.URL == nil && d.Authors == nil && d.Scanlators == nil &&
		d.Genres == nil && d.Status == nil && d.Synopsis == nil && d.CoverURL == nil &&
		d.CoverLocalPath == nil && !d.ClearCoverLocalPath && d.Settings == nil &&
		d.LastReadAt == nil && d.LastUpdatedAt == nil
}

// InsertSeries stores s and returns its id. When a series with the same
// source and slug exists, its id is returned and nothing is overwritten.
func (s *Store) InsertSeries(ctx context.Context, series *core.Series) (int64, error) {
	if series.SourceID == "" || series.Slug == "" {
		return 0, errors.Track(errors.ErrInvalidInput).
			WithMessage("series needs a source and a slug").
			AsValidation().
			Error()
	}
	if !series.Status.Valid() {
		series.Status = core.StatusUnknown
	}

	var id int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO series (source_id, slug, name, url, authors, scanlators, genres, status,
				synopsis, cover_url, cover_local_path, reading_direction, scaling, background_color,
				last_read_at, last_updated_at)
			VALUES (:source_id, :slug, :name, :url, :authors, :scanlators, :genres, :status,
				:synopsis, :cover_url, :cover_local_path, :reading_direction, :scaling, :background_color,
				:last_read_at, :last_updated_at)
			ON CONFLICT (source_id, slug) DO NOTHING`, series)
		if err != nil {
			return errors.TS(fmt.Errorf("insert series %s/%s: %w", series.SourceID, series.Slug, err))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			id, err = res.LastInsertId()
			return errors.TS(err)
		}
		err = tx.GetContext(ctx, &id, `SELECT id FROM series WHERE source_id = ? AND slug = ?`,
			series.SourceID, series.Slug)
		return errors.TS(err)
	})
	if err != nil {
		return 0, err
	}
	series.ID = id
	return id, nil
}

// GetSeries loads one series
func (s *Store) GetSeries(ctx context.Context, id int64) (*core.Series, error) {
	var out core.Series
	err := s.db.GetContext(ctx, &out, `SELECT `+seriesColumns+` FROM series WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "series", id)
	}
	return &out, nil
}

// FindSeries looks a series up by its source and slug
func (s *Store) FindSeries(ctx context.Context, sourceID, slug string) (*core.Series, error) {
	var out core.Series
	err := s.db.GetContext(ctx, &out,
		`SELECT `+seriesColumns+` FROM series WHERE source_id = ? AND slug = ?`, sourceID, slug)
	if err != nil {
		return nil, notFound(err, "series", sourceID+"/"+slug)
	}
	return &out, nil
}

// ListSeriesByLastRead returns every series, most recently read first.
// Never-read series come last, by name.
func (s *Store) ListSeriesByLastRead(ctx context.Context) ([]core.Series, error) {
	out := []core.Series{}
	err := s.db.SelectContext(ctx, &out, `SELECT `+seriesColumns+` FROM series
		ORDER BY last_read_at IS NULL, last_read_at DESC, name COLLATE NOCASE, id`)
	if err != nil {
		return nil, errors.TS(fmt.Errorf("list series: %w", err))
	}
	return out, nil
}

// SeriesIDs returns the ids of every series in the library
func (s *Store) SeriesIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM series ORDER BY id`); err != nil {
		return nil, errors.TS(fmt.Errorf("list series ids: %w", err))
	}
	return ids, nil
}

// UpdateSeries applies a partial update
func (s *Store) UpdateSeries(ctx context.Context, id int64, d SeriesDelta) error {
	if d.empty() {
		_, err := s.GetSeries(ctx, id)
		return err
	}
	if d.Status != nil && !d.Status.Valid() {
		return errors.Track(errors.ErrInvalidInput).
			WithMessagef("unknown series status %q", *d.Status).
			AsValidation().
			Error()
	}

	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}

	if d.Name != nil {
		set("name", *d.Name)
	}
	if d.URL != nil {
		set("url", *d.URL)
	}
	if d.Authors != nil {
		set("authors", core.StringList(*d.Authors))
	}
	if d.Scanlators != nil {
		set("scanlators", core.StringList(*d.Scanlators))
	}
	if d.Genres != nil {
		set("genres", core.StringList(*d.Genres))
	}
	if d.Status != nil {
		set("status", *d.Status)
	}
	if d.Synopsis != nil {
		set("synopsis", *d.Synopsis)
	}
	if d.CoverURL != nil {
		set("cover_url", *d.CoverURL)
	}
	switch {
	case d.ClearCoverLocalPath:
		set("cover_local_path", nil)
	case d.CoverLocalPath != nil:
		set("cover_local_path", *d.CoverLocalPath)
	}
	if d.Settings != nil {
		set("reading_direction", d.Settings.ReadingDirection)
		set("scaling", d.Settings.Scaling)
		set("background_color", d.Settings.BackgroundColor)
	}
	if d.LastReadAt != nil {
		set("last_read_at", d.LastReadAt.UTC())
	}
	if d.LastUpdatedAt != nil {
		set("last_updated_at", d.LastUpdatedAt.UTC())
	}
	args = append(args, id)

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE series SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return errors.TS(fmt.Errorf("update series %d: %w", id, err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(errNoRows, "series", id)
		}
		return nil
	})
}

// DeleteSeries removes a series together with its chapters and their
// download tasks.
func (s *Store) DeleteSeries(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM series WHERE id = ?`, id)
		if err != nil {
			return errors.TS(fmt.Errorf("delete series %d: %w", id, err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(errNoRows, "series", id)
		}
		return nil
	})
}
