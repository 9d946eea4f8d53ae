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

package core

import "time"

// DownloadStatus is the state of a queued chapter download
type DownloadStatus string

const (
	DownloadPending     DownloadStatus = "pending"
	DownloadDownloading DownloadStatus = "downloading"
	DownloadError       DownloadStatus = "error"
	DownloadCancelled   DownloadStatus = "cancelled"
)

// DownloadTask is a queued chapter download
type DownloadTask struct {
	ID         int64          `db:"id" json:"id"`
	ChapterID  int64          `db:"chapter_id" json:"chapter_id"`
	Status     DownloadStatus `db:"status" json:"status"`
	Percent    int            `db:"percent" json:"percent"`
	ErrorCount int            `db:"error_count" json:"error_count"`
	EnqueuedAt time.Time      `db:"enqueued_at" json:"enqueued_at"`
}

// EventKind tells subscribers what changed
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventStarted   EventKind = "started"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
)

// DownloadEvent is emitted on every task transition and percent change
type DownloadEvent struct {
	Kind       EventKind      `json:"kind"`
	TaskID     int64          `json:"task_id"`
	ChapterID  int64          `json:"chapter_id"`
	Status     DownloadStatus `json:"status"`
	Percent    int            `json:"percent"`
	ErrorCount int            `json:"error_count"`
	Err        string         `json:"error,omitempty"`
	At         time.Time      `json:"at"`
}
