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

// Package providertest offers an in-memory source for tests of code that
// consumes providers.
package providertest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/base"
)

// PNG is a minimal image header that passes content sniffing
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

// Source is a scriptable fake. Series and page counts are plain data; the
// hooks let tests fail or observe individual calls.
type Source struct {
	mu sync.Mutex

	ID     string
	Series map[string]*core.MangaData
	// Pages is the page count of every chapter
	Pages int

	// OnPage runs before a page image is returned; a non-nil error fails
	// the fetch.
	OnPage func(ref core.ChapterRef, index int) error
	// OnMangaData runs before a series record is returned
	OnMangaData func(slug string) error

	pageCalls    map[string]int
	chapterCalls map[string]int
}

// New returns an empty source with three pages per chapter
func New(id string) *Source {
	return &Source{
		ID:           id,
		Series:       make(map[string]*core.MangaData),
		Pages:        3,
		pageCalls:    make(map[string]int),
		chapterCalls: make(map[string]int),
	}
}

// Add stores a series with chapters named after slugs, earliest first
func (s *Source) Add(slug, name string, chapters ...string) *core.MangaData {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &core.MangaData{
		Slug:    slug,
		Name:    name,
		Authors: []string{"Author of " + name},
		Genres:  []string{"Action"},
		Status:  core.StatusOngoing,
	}
	for _, c := range chapters {
		m.Chapters = append(m.Chapters, core.ChapterData{
			Slug:  c,
			Title: "Chapter " + c,
			URL:   "https://mock.test/" + slug + "/" + c,
		})
	}
	s.Series[slug] = m
	return m
}

// SetChapters replaces the chapter list of a series
func (s *Source) SetChapters(slug string, chapters ...string) {
	s.mu.Lock()
	m := s.Series[slug]
	s.mu.Unlock()
	if m == nil {
		return
	}
	name := m.Name
	s.Add(slug, name, chapters...)
}

// SetOnPage swaps the page hook while the source is in use
func (s *Source) SetOnPage(fn func(ref core.ChapterRef, index int) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OnPage = fn
}

// PageCalls reports how often a page of a chapter was fetched
func (s *Source) PageCalls(chapterSlug string, index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCalls[fmt.Sprintf("%s/%d", chapterSlug, index)]
}

// ChapterCalls reports how often a chapter's page list was resolved
func (s *Source) ChapterCalls(chapterSlug string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chapterCalls[chapterSlug]
}

// Provider builds the provider.Provider view of the fake
func (s *Source) Provider() provider.Provider {
	info := provider.Info{ID: s.ID, Name: "Mock " + s.ID, Language: "en", SiteURL: "https://mock.test"}
	return base.New(info, provider.Env{Logger: logger.Nop()}, nil).
		WithSearch(s.search).
		WithBrowse().
		WithMostPopulars(func(ctx context.Context) ([]core.SearchResult, error) {
			return s.search(ctx, "")
		}).
		WithMangaData(s.mangaData).
		WithChapterData(s.chapterData).
		WithPageImage(s.pageImage).
		Build()
}

func (s *Source) search(_ context.Context, term string) ([]core.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.SearchResult
	for _, m := range s.Series {
		if term == "" || strings.Contains(strings.ToLower(m.Name), strings.ToLower(term)) {
			out = append(out, core.SearchResult{Slug: m.Slug, Name: m.Name, Cover: m.CoverURL})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Source) mangaData(_ context.Context, initial core.MangaData) (*core.MangaData, error) {
	s.mu.Lock()
	hook := s.OnMangaData
	s.mu.Unlock()
	if hook != nil {
		if err := hook(initial.Slug); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.Series[initial.Slug]
	if !ok {
		return nil, errors.Track(errors.ErrNotFound).WithContext("slug", initial.Slug).Error()
	}
	out := *m
	out.Chapters = append([]core.ChapterData(nil), m.Chapters...)
	return &out, nil
}

func (s *Source) chapterData(_ context.Context, ref core.ChapterRef) ([]core.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapterCalls[ref.ChapterSlug]++

	pages := make([]core.Page, s.Pages)
	for i := range pages {
		pages[i] = core.Page{
			Slug:     fmt.Sprintf("%d", i),
			ImageURL: fmt.Sprintf("https://mock.test/%s/%s/%d.png", ref.SeriesSlug, ref.ChapterSlug, i),
		}
	}
	return pages, nil
}

func (s *Source) pageImage(_ context.Context, ref core.ChapterRef, page core.Page) (*core.Image, error) {
	var index int
	fmt.Sscanf(page.Slug, "%d", &index)

	s.mu.Lock()
	s.pageCalls[fmt.Sprintf("%s/%d", ref.ChapterSlug, index)]++
	hook := s.OnPage
	s.mu.Unlock()

	if hook != nil {
		if err := hook(ref, index); err != nil {
			return nil, err
		}
	}
	return &core.Image{Data: PNG, MimeType: "image/png", Name: page.Slug + ".png"}, nil
}

// Registry is a fixed provider lookup
type Registry map[string]provider.Provider

// Provider returns the source registered under id
func (r Registry) Provider(id string) (provider.Provider, error) {
	p, ok := r[id]
	if !ok {
		return nil, errors.Track(errors.ErrNotFound).WithMessagef("unknown source %q", id).AsNotFound().Error()
	}
	return p, nil
}
