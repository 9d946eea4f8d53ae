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
	"time"

	"github.com/jmoiron/sqlx"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
)

const taskColumns = `id, chapter_id, status, percent, error_count, enqueued_at`

// InsertTask queues a chapter for download. It returns the existing task
// with created=false when the chapter is already queued.
func (s *Store) InsertTask(ctx context.Context, chapterID int64) (task *core.DownloadTask, created bool, err error) {
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO downloads (chapter_id, status, percent, error_count, enqueued_at)
			VALUES (?, ?, 0, 0, ?) ON CONFLICT (chapter_id) DO NOTHING`,
			chapterID, core.DownloadPending, time.Now().UTC())
		if err != nil {
			return errors.TS(fmt.Errorf("queue chapter %d: %w", chapterID, err))
		}
		n, _ := res.RowsAffected()
		created = n == 1

		var t core.DownloadTask
		if err := tx.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM downloads WHERE chapter_id = ?`, chapterID); err != nil {
			return notFound(err, "download", chapterID)
		}
		task = &t
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return task, created, nil
}

// NextTask returns the oldest pending or failed task whose id is not in
// exclude. It returns ErrNotFound when the queue holds nothing runnable.
func (s *Store) NextTask(ctx context.Context, exclude []int64) (*core.DownloadTask, error) {
	query := `SELECT ` + taskColumns + ` FROM downloads WHERE status IN (?, ?)`
	args := []interface{}{core.DownloadPending, core.DownloadError}
	if len(exclude) > 0 {
		query += ` AND id NOT IN (?)`
		args = append(args, exclude)
	}
	query += ` ORDER BY enqueued_at, id LIMIT 1`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, errors.TS(fmt.Errorf("build queue query: %w", err))
	}

	var t core.DownloadTask
	if err := s.db.GetContext(ctx, &t, s.db.Rebind(query), args...); err != nil {
		return nil, notFound(err, "download", "next")
	}
	return &t, nil
}

// TaskForChapter returns the queued task of a chapter
func (s *Store) TaskForChapter(ctx context.Context, chapterID int64) (*core.DownloadTask, error) {
	var t core.DownloadTask
	if err := s.db.GetContext(ctx, &t, `SELECT `+taskColumns+` FROM downloads WHERE chapter_id = ?`, chapterID); err != nil {
		return nil, notFound(err, "download", chapterID)
	}
	return &t, nil
}

// UpdateTask persists status, percent and error count of a task
func (s *Store) UpdateTask(ctx context.Context, t *core.DownloadTask) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `UPDATE downloads
			SET status = :status, percent = :percent, error_count = :error_count
			WHERE id = :id`, t)
		if err != nil {
			return errors.TS(fmt.Errorf("update download %d: %w", t.ID, err))
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound(errNoRows, "download", t.ID)
		}
		return nil
	})
}

// DeleteTask drops a task from the queue
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id); err != nil {
			return errors.TS(fmt.Errorf("delete download %d: %w", id, err))
		}
		return nil
	})
}

// CompleteTask marks the chapter downloaded and drops its task in one step
func (s *Store) CompleteTask(ctx context.Context, t *core.DownloadTask) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE chapters SET downloaded = 1 WHERE id = ?`, t.ChapterID); err != nil {
			return errors.TS(fmt.Errorf("mark chapter %d downloaded: %w", t.ChapterID, err))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, t.ID); err != nil {
			return errors.TS(fmt.Errorf("delete download %d: %w", t.ID, err))
		}
		return nil
	})
}

// ListTasks returns the queue in processing order
func (s *Store) ListTasks(ctx context.Context) ([]core.DownloadTask, error) {
	out := []core.DownloadTask{}
	if err := s.db.SelectContext(ctx, &out, `SELECT `+taskColumns+` FROM downloads ORDER BY enqueued_at, id`); err != nil {
		return nil, errors.TS(fmt.Errorf("list downloads: %w", err))
	}
	return out, nil
}

// ResetDownloading puts tasks interrupted mid-download back to pending
// and reports how many there were.
func (s *Store) ResetDownloading(ctx context.Context) (int64, error) {
	var n int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE downloads SET status = ? WHERE status = ?`,
			core.DownloadPending, core.DownloadDownloading)
		if err != nil {
			return errors.TS(fmt.Errorf("reset interrupted downloads: %w", err))
		}
		n, _ = res.RowsAffected()
		return nil
	})
	return n, err
}
