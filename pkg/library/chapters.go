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

	"github.com/jmoiron/sqlx"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
)

const chapterColumns = `id, series_id, slug, title, url, published_date, rank, pages,
	downloaded, read, last_page_read_index, scanlators`

// Order selects the rank direction of a chapter listing
type Order int

const (
	Ascending Order = iota
	Descending
)

// ChapterDelta is a partial chapter update. Nil fields are left untouched.
type ChapterDelta struct {
	Title *string
	// Pages replaces the page list; a pointer to a nil list marks the
	// chapter unresolved again.
	Pages             *core.Pages
	Downloaded        *bool
	Read              *bool
	LastPageReadIndex *int
	ClearProgress     bool
}

// InsertChapters stores chapters in reader order, ranked 0..N-1. It is
// meant for a series that has no chapters yet; use MergeChapters otherwise.
func (s *Store) InsertChapters(ctx context.Context, seriesID int64, chapters []core.ChapterData) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for i, c := range chapters {
			if err := insertChapter(ctx, tx, seriesID, i, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertChapter(ctx context.Context, tx *sqlx.Tx, seriesID int64, rank int, c core.ChapterData) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO chapters (series_id, slug, title, url, published_date, rank, scanlators)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seriesID, c.Slug, c.Title, c.URL, c.Date, rank, core.StringList(c.Scanlators))
	if err != nil {
		return errors.TS(fmt.Errorf("insert chapter %q of series %d: %w", c.Slug, seriesID, err))
	}
	return nil
}

// MergeChapters reconciles the stored chapters of a series with a fresh
// listing. It returns how many chapters were new and the slugs of the
// chapters it dropped, whose cached pages the caller owns.
//
// Known slugs keep their reader state and take the fresh title, url, date
// and scanlators. Ranks follow the fresh order. Stored chapters missing
// from the listing are dropped unless downloaded; downloaded ones are
// ranked after the fresh list in their previous order.
func (s *Store) MergeChapters(ctx context.Context, seriesID int64, fresh []core.ChapterData) (int, []string, error) {
	added := 0
	var dropped []string
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var stored []core.Chapter
		if err := tx.SelectContext(ctx, &stored, `SELECT `+chapterColumns+` FROM chapters
			WHERE series_id = ? ORDER BY rank, id`, seriesID); err != nil {
			return errors.TS(fmt.Errorf("load chapters of series %d: %w", seriesID, err))
		}

		bySlug := make(map[string]core.Chapter, len(stored))
		for _, c := range stored {
			bySlug[c.Slug] = c
		}

		seen := make(map[string]bool, len(fresh))
		rank := 0
		for _, c := range fresh {
			if seen[c.Slug] {
				continue
			}
			seen[c.Slug] = true

			if old, ok := bySlug[c.Slug]; ok {
				_, err := tx.ExecContext(ctx, `UPDATE chapters
					SET title = ?, url = ?, published_date = ?, scanlators = ?, rank = ?
					WHERE id = ?`,
					c.Title, c.URL, c.Date, core.StringList(c.Scanlators), rank, old.ID)
				if err != nil {
					return errors.TS(fmt.Errorf("refresh chapter %d: %w", old.ID, err))
				}
			} else {
				if err := insertChapter(ctx, tx, seriesID, rank, c); err != nil {
					return err
				}
				added++
			}
			rank++
		}

		for _, old := range stored {
			if seen[old.Slug] {
				continue
			}
			if old.Downloaded {
				if _, err := tx.ExecContext(ctx, `UPDATE chapters SET rank = ? WHERE id = ?`, rank, old.ID); err != nil {
					return errors.TS(fmt.Errorf("rerank chapter %d: %w", old.ID, err))
				}
				rank++
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, old.ID); err != nil {
				return errors.TS(fmt.Errorf("drop chapter %d: %w", old.ID, err))
			}
			dropped = append(dropped, old.Slug)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return added, dropped, nil
}

// GetChapter loads one chapter
func (s *Store) GetChapter(ctx context.Context, id int64) (*core.Chapter, error) {
	var out core.Chapter
	err := s.db.GetContext(ctx, &out, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "chapter", id)
	}
	return &out, nil
}

// ChaptersForSeries lists the chapters of a series by rank
func (s *Store) ChaptersForSeries(ctx context.Context, seriesID int64, order Order) ([]core.Chapter, error) {
	dir := "ASC"
	if order == Descending {
		dir = "DESC"
	}
	out := []core.Chapter{}
	err := s.db.SelectContext(ctx, &out, `SELECT `+chapterColumns+` FROM chapters
		WHERE series_id = ? ORDER BY rank `+dir, seriesID)
	if err != nil {
		return nil, errors.TS(fmt.Errorf("list chapters of series %d: %w", seriesID, err))
	}
	return out, nil
}

// UpdateChapter applies a partial update. A read position must point into
// the page list the chapter ends up with.
func (s *Store) UpdateChapter(ctx context.Context, id int64, d ChapterDelta) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var current core.Chapter
		if err := tx.GetContext(ctx, &current, `SELECT `+chapterColumns+` FROM chapters WHERE id = ?`, id); err != nil {
			return notFound(err, "chapter", id)
		}

		pages := current.Pages
		if d.Pages != nil {
			pages = *d.Pages
		}
		if d.LastPageReadIndex != nil {
			idx := *d.LastPageReadIndex
			if pages == nil || idx < 0 || idx >= len(pages) {
				return errors.Track(errors.ErrInvalidInput).
					WithMessagef("page index %d out of range for chapter %d (%d pages)", idx, id, len(pages)).
					WithContext("chapter_id", id).
					AsValidation().
					Error()
			}
		}

		var sets []string
		var args []interface{}
		set := func(col string, v interface{}) {
			sets = append(sets, col+" = ?")
			args = append(args, v)
		}
		if d.Title != nil {
			set("title", *d.Title)
		}
		if d.Pages != nil {
			set("pages", *d.Pages)
		}
		if d.Downloaded != nil {
			set("downloaded", *d.Downloaded)
		}
		if d.Read != nil {
			set("read", *d.Read)
		}
		switch {
		case d.ClearProgress:
			set("last_page_read_index", nil)
		case d.LastPageReadIndex != nil:
			set("last_page_read_index", *d.LastPageReadIndex)
		case d.Pages != nil && current.LastPageReadIndex != nil && *current.LastPageReadIndex >= len(pages):
			// the stored position does not fit the new page list
			set("last_page_read_index", nil)
		}
		if len(sets) == 0 {
			return nil
		}
		args = append(args, id)

		if _, err := tx.ExecContext(ctx, `UPDATE chapters SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return errors.TS(fmt.Errorf("update chapter %d: %w", id, err))
		}
		return nil
	})
}

// SetPageLocal records the cached file name of one page. A page list that
// changed underneath is left alone.
func (s *Store) SetPageLocal(ctx context.Context, chapterID int64, index int, name string) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var pages core.Pages
		if err := tx.GetContext(ctx, &pages, `SELECT pages FROM chapters WHERE id = ?`, chapterID); err != nil {
			return notFound(err, "chapter", chapterID)
		}
		if index < 0 || index >= len(pages) || pages[index].LocalName == name {
			return nil
		}
		pages[index].LocalName = name
		if _, err := tx.ExecContext(ctx, `UPDATE chapters SET pages = ? WHERE id = ?`, pages, chapterID); err != nil {
			return errors.TS(fmt.Errorf("record page %d of chapter %d: %w", index, chapterID, err))
		}
		return nil
	})
}

// DeleteChapter removes one chapter and its download task
func (s *Store) DeleteChapter(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var seriesID int64
		if err := tx.GetContext(ctx, &seriesID, `SELECT series_id FROM chapters WHERE id = ?`, id); err != nil {
			return notFound(err, "chapter", id)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE id = ?`, id); err != nil {
			return errors.TS(fmt.Errorf("delete chapter %d: %w", id, err))
		}
		return rerank(ctx, tx, seriesID)
	})
}

// rerank closes rank gaps left by a deletion
func rerank(ctx context.Context, tx *sqlx.Tx, seriesID int64) error {
	var ids []int64
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM chapters WHERE series_id = ? ORDER BY rank, id`, seriesID); err != nil {
		return errors.TS(fmt.Errorf("rerank series %d: %w", seriesID, err))
	}
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE chapters SET rank = ? WHERE id = ?`, i, id); err != nil {
			return errors.TS(fmt.Errorf("rerank chapter %d: %w", id, err))
		}
	}
	return nil
}
