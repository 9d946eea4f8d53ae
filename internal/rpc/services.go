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
	"runtime"
	"time"

	"Tankobon/pkg/config"
	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/engine/search"
	"Tankobon/pkg/engine/update"
	"Tankobon/pkg/provider"
)

// requestTimeout bounds calls that reach out to a source
const requestTimeout = 2 * time.Minute

// maxPollWait caps a single Downloads.Events long-poll
const maxPollWait = 60 * time.Second

func (s *Server) networkCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(s.ctx, requestTimeout)
}

// --- Version ---

type VersionService struct{ server *Server }

type VersionInfo struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
	DataDir   string `json:"data_dir"`
	LogFile   string `json:"log_file,omitempty"`
	Sources   int    `json:"sources"`
}

func (s *VersionService) Get(_ *struct{}, reply *VersionInfo) error {
	e := s.server.engine
	settings := e.Config.Settings()
	*reply = VersionInfo{
		Version:   s.server.version,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		DataDir:   settings.DataDir,
		Sources:   e.ProviderCount(),
	}
	if svc, ok := e.Logger.(*logger.Service); ok {
		reply.LogFile = svc.LogFile()
	}
	return nil
}

// --- Sources ---

type SourcesService struct{ server *Server }

type SearchArgs struct {
	SourceID string `json:"source_id"`
	Term     string `json:"term"`
}

type SourceArgs struct {
	SourceID string `json:"source_id"`
}

// List returns the usable sources
func (s *SourcesService) List(_ *struct{}, reply *[]provider.Info) error {
	*reply = s.server.engine.Sources()
	return nil
}

// Search queries one source
func (s *SourcesService) Search(args *SearchArgs, reply *[]core.SearchResult) error {
	ctx, cancel := s.server.networkCtx()
	defer cancel()

	results, err := s.server.engine.Search(ctx, args.SourceID, args.Term)
	if err != nil {
		return wrap(err, "Sources", "Search")
	}
	*reply = results
	return nil
}

// SearchAll queries every usable source; per-source failures are reported
// in the results
func (s *SourcesService) SearchAll(args *SearchArgs, reply *[]search.Result) error {
	*reply = s.server.engine.SearchAll(s.server.ctx, args.Term)
	return nil
}

// Popular lists the most popular series of one source
func (s *SourcesService) Popular(args *SourceArgs, reply *[]core.SearchResult) error {
	ctx, cancel := s.server.networkCtx()
	defer cancel()

	results, err := s.server.engine.MostPopulars(ctx, args.SourceID)
	if err != nil {
		return wrap(err, "Sources", "Popular")
	}
	*reply = results
	return nil
}

// --- Library ---

type LibraryService struct{ server *Server }

type AddArgs struct {
	SourceID string            `json:"source_id"`
	Result   core.SearchResult `json:"result"`
}

type FilterArgs struct {
	Filter string `json:"filter"`
}

type SeriesArgs struct {
	SeriesID int64 `json:"series_id"`
}

// Add stores a series with its chapters
func (s *LibraryService) Add(args *AddArgs, reply *core.Series) error {
	ctx, cancel := s.server.networkCtx()
	defer cancel()

	series, err := s.server.engine.AddToLibrary(ctx, args.SourceID, args.Result)
	if err != nil {
		return wrap(err, "Library", "Add")
	}
	*reply = *series
	return nil
}

// List returns the library, most recently read first
func (s *LibraryService) List(args *FilterArgs, reply *[]core.Series) error {
	series, err := s.server.engine.ListLibrary(s.server.ctx, args.Filter)
	if err != nil {
		return wrap(err, "Library", "List")
	}
	*reply = series
	return nil
}

// Open returns a series with its chapters
func (s *LibraryService) Open(args *SeriesArgs, reply *core.SeriesWithChapters) error {
	series, err := s.server.engine.OpenSeries(s.server.ctx, args.SeriesID)
	if err != nil {
		return wrap(err, "Library", "Open")
	}
	*reply = *series
	return nil
}

// Delete removes a series and its cached images
func (s *LibraryService) Delete(args *SeriesArgs, reply *bool) error {
	if err := s.server.engine.DeleteSeries(s.server.ctx, args.SeriesID); err != nil {
		return wrap(err, "Library", "Delete")
	}
	*reply = true
	return nil
}

// URL returns the web address of a series
func (s *LibraryService) URL(args *SeriesArgs, reply *string) error {
	url, err := s.server.engine.SeriesURL(s.server.ctx, args.SeriesID)
	if err != nil {
		return wrap(err, "Library", "URL")
	}
	*reply = url
	return nil
}

// Size returns the bytes a series uses in the page cache
func (s *LibraryService) Size(args *SeriesArgs, reply *int64) error {
	size, err := s.server.engine.SeriesDiskUsage(s.server.ctx, args.SeriesID)
	if err != nil {
		return wrap(err, "Library", "Size")
	}
	*reply = size
	return nil
}

// --- Reader ---

type ReaderService struct{ server *Server }

type ChapterArgs struct {
	ChapterID int64 `json:"chapter_id"`
}

type PageArgs struct {
	ChapterID int64 `json:"chapter_id"`
	Index     int   `json:"index"`
	Online    bool  `json:"online"`
}

type SettingsArgs struct {
	SeriesID int64               `json:"series_id"`
	Settings core.SeriesSettings `json:"settings"`
}

// Resolve makes sure the page list of a chapter is known
func (s *ReaderService) Resolve(args *ChapterArgs, reply *core.Chapter) error {
	ctx, cancel := s.server.networkCtx()
	defer cancel()

	chapter, err := s.server.engine.ResolvePages(ctx, args.ChapterID)
	if err != nil {
		return wrap(err, "Reader", "Resolve")
	}
	*reply = *chapter
	return nil
}

// Page returns the cached file of a page, fetching it first when Online
// is set
func (s *ReaderService) Page(args *PageArgs, reply *string) error {
	ctx, cancel := s.server.networkCtx()
	defer cancel()

	path, err := s.server.engine.FetchPage(ctx, args.ChapterID, args.Index, args.Online)
	if err != nil {
		return wrap(err, "Reader", "Page")
	}
	*reply = path
	return nil
}

// Progress records the last page read
func (s *ReaderService) Progress(args *PageArgs, reply *bool) error {
	if err := s.server.engine.SetReadProgress(s.server.ctx, args.ChapterID, args.Index); err != nil {
		return wrap(err, "Reader", "Progress")
	}
	*reply = true
	return nil
}

// Settings returns the effective reader settings of a series
func (s *ReaderService) Settings(args *SeriesArgs, reply *core.ReaderSettings) error {
	rs, err := s.server.engine.ReaderSettings(s.server.ctx, args.SeriesID)
	if err != nil {
		return wrap(err, "Reader", "Settings")
	}
	*reply = rs
	return nil
}

// SetSettings replaces the per-series overrides
func (s *ReaderService) SetSettings(args *SettingsArgs, reply *core.ReaderSettings) error {
	e := s.server.engine
	if err := e.SetSeriesSettings(s.server.ctx, args.SeriesID, args.Settings); err != nil {
		return wrap(err, "Reader", "SetSettings")
	}
	rs, err := e.ReaderSettings(s.server.ctx, args.SeriesID)
	if err != nil {
		return wrap(err, "Reader", "SetSettings")
	}
	*reply = rs
	return nil
}

// Reset forgets the pages and progress of a chapter
func (s *ReaderService) Reset(args *ChapterArgs, reply *bool) error {
	if err := s.server.engine.ResetChapter(s.server.ctx, args.ChapterID); err != nil {
		return wrap(err, "Reader", "Reset")
	}
	*reply = true
	return nil
}

// --- Downloads ---

type DownloadsService struct{ server *Server }

type EnqueueArgs struct {
	ChapterIDs []int64 `json:"chapter_ids"`
}

type EventsArgs struct {
	Cursor string `json:"cursor"`
	// WaitMs is how long to block when nothing is pending
	WaitMs int `json:"wait_ms"`
}

type EventsReply struct {
	Cursor string               `json:"cursor"`
	Events []core.DownloadEvent `json:"events"`
}

// Enqueue queues chapters for download
func (s *DownloadsService) Enqueue(args *EnqueueArgs, reply *[]core.DownloadTask) error {
	tasks, err := s.server.engine.EnqueueDownload(s.server.ctx, args.ChapterIDs...)
	if err != nil {
		return wrap(err, "Downloads", "Enqueue")
	}
	*reply = tasks
	return nil
}

// Cancel stops or dequeues the download of a chapter
func (s *DownloadsService) Cancel(args *ChapterArgs, reply *bool) error {
	if err := s.server.engine.CancelDownload(s.server.ctx, args.ChapterID); err != nil {
		return wrap(err, "Downloads", "Cancel")
	}
	*reply = true
	return nil
}

// Retry requeues a failed download
func (s *DownloadsService) Retry(args *ChapterArgs, reply *bool) error {
	if err := s.server.engine.RetryDownload(s.server.ctx, args.ChapterID); err != nil {
		return wrap(err, "Downloads", "Retry")
	}
	*reply = true
	return nil
}

// List returns the download queue
func (s *DownloadsService) List(_ *struct{}, reply *[]core.DownloadTask) error {
	tasks, err := s.server.engine.ListDownloads(s.server.ctx)
	if err != nil {
		return wrap(err, "Downloads", "List")
	}
	*reply = tasks
	return nil
}

// Events long-polls for download events after Cursor
func (s *DownloadsService) Events(args *EventsArgs, reply *EventsReply) error {
	wait := time.Duration(args.WaitMs) * time.Millisecond
	if wait > maxPollWait {
		wait = maxPollWait
	}
	events, cursor := s.server.events.Wait(s.server.ctx, args.Cursor, wait)
	*reply = EventsReply{Cursor: cursor, Events: events}
	return nil
}

// --- Updates ---

type UpdatesService struct{ server *Server }

type UpdateArgs struct {
	SeriesIDs []int64 `json:"series_ids"`
}

// Series refreshes one series and reports how many chapters were added
func (s *UpdatesService) Series(args *SeriesArgs, reply *int) error {
	ctx, cancel := s.server.networkCtx()
	defer cancel()

	added, err := s.server.engine.UpdateSeries(ctx, args.SeriesID)
	if err != nil {
		return wrap(err, "Updates", "Series")
	}
	*reply = added
	return nil
}

// All refreshes the given series, or the whole library when none are given
func (s *UpdatesService) All(args *UpdateArgs, reply *[]update.Result) error {
	results, err := s.server.engine.Updates.UpdateAll(s.server.ctx, args.SeriesIDs)
	if err != nil {
		return wrap(err, "Updates", "All")
	}
	*reply = results
	return nil
}

// --- Settings ---

type SettingsService struct{ server *Server }

type KeyArgs struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

// All returns every setting as strings
func (s *SettingsService) All(_ *struct{}, reply *map[string]string) error {
	cfg := s.server.engine.Config
	out := make(map[string]string)
	for _, key := range config.Keys() {
		value, err := cfg.Get(key)
		if err != nil {
			return wrap(err, "Settings", "All")
		}
		out[key] = value
	}
	*reply = out
	return nil
}

// Get returns one setting
func (s *SettingsService) Get(args *KeyArgs, reply *string) error {
	value, err := s.server.engine.Config.Get(args.Key)
	if err != nil {
		return wrap(err, "Settings", "Get")
	}
	*reply = value
	return nil
}

// Set validates and stores one setting, persisting it when the
// configuration is file backed
func (s *SettingsService) Set(args *KeyArgs, reply *string) error {
	cfg := s.server.engine.Config
	if err := cfg.Set(args.Key, args.Value); err != nil {
		return wrap(err, "Settings", "Set")
	}
	if cfg.Path() != "" {
		if err := cfg.Save(); err != nil {
			return wrap(err, "Settings", "Set")
		}
	}
	value, err := cfg.Get(args.Key)
	if err != nil {
		return wrap(err, "Settings", "Set")
	}
	*reply = value
	return nil
}
