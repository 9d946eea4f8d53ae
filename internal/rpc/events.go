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

package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"Tankobon/pkg/core"
)

// defaultEventBuffer bounds how many download events are kept for clients
// that poll late.
const defaultEventBuffer = 512

type eventEntry struct {
	id    string
	event core.DownloadEvent
}

// EventLog buffers download events for long-polling clients. Every event
// gets a uuid; a client passes the id of the last event it saw as cursor
// and receives everything after it.
type EventLog struct {
	mu      sync.Mutex
	entries []eventEntry
	limit   int
	// changed is closed and replaced on every append
	changed chan struct{}
}

// NewEventLog returns a log holding at most limit events
func NewEventLog(limit int) *EventLog {
	if limit <= 0 {
		limit = defaultEventBuffer
	}
	return &EventLog{limit: limit, changed: make(chan struct{})}
}

// Append records ev and wakes every waiting poller
func (l *EventLog) Append(ev core.DownloadEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, eventEntry{id: uuid.NewString(), event: ev})
	if over := len(l.entries) - l.limit; over > 0 {
		l.entries = append([]eventEntry(nil), l.entries[over:]...)
	}
	close(l.changed)
	l.changed = make(chan struct{})
}

// Since returns the events after cursor and the cursor to pass next time.
// An empty or unknown cursor (for example one evicted from the buffer)
// yields everything buffered.
func (l *EventLog) Since(cursor string) ([]core.DownloadEvent, string, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := 0
	if cursor != "" {
		for i := len(l.entries) - 1; i >= 0; i-- {
			if l.entries[i].id == cursor {
				start = i + 1
				break
			}
		}
	}

	next := cursor
	if n := len(l.entries); n > 0 {
		next = l.entries[n-1].id
	}
	out := make([]core.DownloadEvent, 0, len(l.entries)-start)
	for _, e := range l.entries[start:] {
		out = append(out, e.event)
	}
	return out, next, l.changed
}

// Wait blocks until events after cursor exist, wait elapses or ctx ends.
// It returns whatever is available at that point, possibly nothing.
func (l *EventLog) Wait(ctx context.Context, cursor string, wait time.Duration) ([]core.DownloadEvent, string) {
	events, next, changed := l.Since(cursor)
	if len(events) > 0 || wait <= 0 {
		return events, next
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-ctx.Done():
	}
	events, next, _ = l.Since(cursor)
	return events, next
}
