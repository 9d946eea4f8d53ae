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

package engine

import (
	"context"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/download"
)

// EnqueueDownload queues chapters for background download
func (e *Engine) EnqueueDownload(ctx context.Context, chapterIDs ...int64) ([]core.DownloadTask, error) {
	return e.Download.Enqueue(ctx, chapterIDs...)
}

// CancelDownload drops a chapter from the download queue
func (e *Engine) CancelDownload(ctx context.Context, chapterID int64) error {
	return e.Download.Cancel(ctx, chapterID)
}

// RetryDownload requeues a failed download
func (e *Engine) RetryDownload(ctx context.Context, chapterID int64) error {
	return e.Download.Retry(ctx, chapterID)
}

// ListDownloads returns the queue in processing order
func (e *Engine) ListDownloads(ctx context.Context) ([]core.DownloadTask, error) {
	return e.Download.List(ctx)
}

// SubscribeDownloads registers fn for download events. Call the returned
// function to unsubscribe.
func (e *Engine) SubscribeDownloads(fn download.Listener) func() {
	return e.Download.Subscribe(fn)
}
