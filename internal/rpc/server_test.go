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
	"encoding/json"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/config"
	"Tankobon/pkg/core"
	"Tankobon/pkg/engine"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/providertest"
)

func newClient(t *testing.T) (*rpc.Client, *engine.Engine) {
	t.Helper()
	cfg := config.New()
	require.NoError(t, cfg.Set(config.KeyDataDir, t.TempDir()))
	require.NoError(t, cfg.Set(config.KeyPageDelay, "0s"))
	require.NoError(t, cfg.Set(config.KeyRetryDelay, "1ms"))

	e, err := engine.New(engine.Options{Config: cfg, Logger: logger.Nop()})
	require.NoError(t, err)

	src := providertest.New("mock")
	src.Add("one-piece", "One Piece", "1", "2")
	require.NoError(t, e.RegisterProvider(src.Provider()))
	require.NoError(t, e.Start(context.Background()))

	server, err := NewServer(e, "test")
	require.NoError(t, err)

	serverConn, clientConn := net.Pipe()
	go server.ServeConn(serverConn)
	client := jsonrpc.NewClient(clientConn)

	t.Cleanup(func() {
		client.Close()
		server.Close()
		e.Shutdown()
	})
	return client, e
}

func TestVersionAndSources(t *testing.T) {
	client, _ := newClient(t)

	var version VersionInfo
	require.NoError(t, client.Call("Version.Get", struct{}{}, &version))
	assert.Equal(t, "test", version.Version)
	assert.Equal(t, 1, version.Sources)

	var sources []provider.Info
	require.NoError(t, client.Call("Sources.List", struct{}{}, &sources))
	require.Len(t, sources, 1)
	assert.Equal(t, "mock", sources[0].ID)

	var results []core.SearchResult
	require.NoError(t, client.Call("Sources.Search", SearchArgs{SourceID: "mock", Term: "piece"}, &results))
	require.Len(t, results, 1)
	assert.Equal(t, "one-piece", results[0].Slug)
}

func TestLibraryReaderFlow(t *testing.T) {
	client, _ := newClient(t)

	var series core.Series
	require.NoError(t, client.Call("Library.Add", AddArgs{SourceID: "mock", Result: core.SearchResult{Slug: "one-piece"}}, &series))
	assert.Equal(t, "One Piece", series.Name)

	var opened core.SeriesWithChapters
	require.NoError(t, client.Call("Library.Open", SeriesArgs{SeriesID: series.ID}, &opened))
	require.Len(t, opened.Chapters, 2)
	chapterID := opened.Chapters[0].ID

	var path string
	err := client.Call("Reader.Page", PageArgs{ChapterID: chapterID, Index: 0}, &path)
	require.Error(t, err)
	var rpcErr Error
	require.NoError(t, json.Unmarshal([]byte(err.Error()), &rpcErr))
	assert.Equal(t, ErrCodeCacheMiss, rpcErr.Code)
	assert.Equal(t, "Reader", rpcErr.Service)

	require.NoError(t, client.Call("Reader.Page", PageArgs{ChapterID: chapterID, Index: 0, Online: true}, &path))
	assert.FileExists(t, path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	var size int64
	require.NoError(t, client.Call("Library.Size", SeriesArgs{SeriesID: series.ID}, &size))
	assert.Equal(t, info.Size(), size)

	var ok bool
	require.NoError(t, client.Call("Reader.Progress", PageArgs{ChapterID: chapterID, Index: 1}, &ok))

	var library []core.Series
	require.NoError(t, client.Call("Library.List", FilterArgs{}, &library))
	require.Len(t, library, 1)
	assert.NotNil(t, library[0].LastReadAt)

	black := core.BackgroundBlack
	var rs core.ReaderSettings
	require.NoError(t, client.Call("Reader.SetSettings", SettingsArgs{SeriesID: series.ID, Settings: core.SeriesSettings{BackgroundColor: &black}}, &rs))
	assert.Equal(t, core.BackgroundBlack, rs.BackgroundColor)

	err = client.Call("Library.Open", SeriesArgs{SeriesID: 999}, &opened)
	require.Error(t, err)
	require.NoError(t, json.Unmarshal([]byte(err.Error()), &rpcErr))
	assert.Equal(t, ErrCodeNotFound, rpcErr.Code)
}

func TestDownloadEventsLongPoll(t *testing.T) {
	client, _ := newClient(t)

	var series core.Series
	require.NoError(t, client.Call("Library.Add", AddArgs{SourceID: "mock", Result: core.SearchResult{Slug: "one-piece"}}, &series))
	var opened core.SeriesWithChapters
	require.NoError(t, client.Call("Library.Open", SeriesArgs{SeriesID: series.ID}, &opened))

	var tasks []core.DownloadTask
	require.NoError(t, client.Call("Downloads.Enqueue", EnqueueArgs{ChapterIDs: []int64{opened.Chapters[0].ID}}, &tasks))
	require.Len(t, tasks, 1)

	var (
		cursor string
		kinds  []core.EventKind
	)
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var reply EventsReply
		require.NoError(t, client.Call("Downloads.Events", EventsArgs{Cursor: cursor, WaitMs: 1000}, &reply))
		cursor = reply.Cursor
		for _, ev := range reply.Events {
			kinds = append(kinds, ev.Kind)
		}
		if len(kinds) > 0 && kinds[len(kinds)-1] == core.EventCompleted {
			break
		}
	}
	assert.Equal(t, []core.EventKind{
		core.EventQueued, core.EventStarted,
		core.EventProgress, core.EventProgress, core.EventProgress,
		core.EventCompleted,
	}, kinds)

	var reply EventsReply
	require.NoError(t, client.Call("Downloads.Events", EventsArgs{Cursor: cursor}, &reply))
	assert.Empty(t, reply.Events)
	assert.Equal(t, cursor, reply.Cursor)
}

func TestSettings(t *testing.T) {
	client, _ := newClient(t)

	var value string
	require.NoError(t, client.Call("Settings.Set", KeyArgs{Key: config.KeyScaling, Value: "width"}, &value))
	assert.Equal(t, "width", value)

	err := client.Call("Settings.Set", KeyArgs{Key: config.KeyScaling, Value: "sideways"}, &value)
	require.Error(t, err)
	var rpcErr Error
	require.NoError(t, json.Unmarshal([]byte(err.Error()), &rpcErr))
	assert.Equal(t, ErrCodeInvalidInput, rpcErr.Code)

	var all map[string]string
	require.NoError(t, client.Call("Settings.All", struct{}{}, &all))
	assert.Equal(t, "width", all[config.KeyScaling])
}

func TestEventLogCursor(t *testing.T) {
	log := NewEventLog(2)
	events, cursor, _ := log.Since("")
	assert.Empty(t, events)
	assert.Empty(t, cursor)

	log.Append(core.DownloadEvent{TaskID: 1})
	log.Append(core.DownloadEvent{TaskID: 2})
	events, cursor, _ = log.Since("")
	require.Len(t, events, 2)

	log.Append(core.DownloadEvent{TaskID: 3})
	events, next, _ := log.Since(cursor)
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), events[0].TaskID)

	log.Append(core.DownloadEvent{TaskID: 4})
	log.Append(core.DownloadEvent{TaskID: 5})
	events, _, _ = log.Since(cursor)
	assert.Len(t, events, 2, "an evicted cursor returns the whole buffer")

	done := make(chan []core.DownloadEvent)
	_, latest, _ := log.Since(next)
	go func() {
		evs, _ := log.Wait(context.Background(), latest, 5*time.Second)
		done <- evs
	}()
	time.Sleep(20 * time.Millisecond)
	log.Append(core.DownloadEvent{TaskID: 6})
	select {
	case evs := <-done:
		require.Len(t, evs, 1)
		assert.Equal(t, int64(6), evs[0].TaskID)
	case <-time.After(5 * time.Second):
		t.Fatal("long-poll did not wake")
	}
}
