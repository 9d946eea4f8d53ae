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

package guya

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/network"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/base"
)

// Config holds configuration for Guya readers
type Config struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"url"`
	Language string `yaml:"language"`
	NSFW     bool   `yaml:"nsfw"`
}

type catalogEntry struct {
	Slug   string `json:"slug"`
	Cover  string `json:"cover"`
	Author string `json:"author"`
}

type seriesResp struct {
	Slug        string                 `json:"slug"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Author      string                 `json:"author"`
	Artist      string                 `json:"artist"`
	Cover       string                 `json:"cover"`
	Groups      map[string]string      `json:"groups"`
	Chapters    map[string]chapterResp `json:"chapters"`
}

type chapterResp struct {
	Volume      string              `json:"volume"`
	Title       string              `json:"title"`
	Folder      string              `json:"folder"`
	Groups      map[string][]string `json:"groups"`
	ReleaseDate map[string]int64    `json:"release_date"`
}

type guya struct {
	cfg    Config
	client *network.Client
}

// New creates a provider for one Guya reader
func New(cfg Config, env provider.Env) (provider.Provider, error) {
	if cfg.ID == "" || cfg.BaseURL == "" {
		return nil, errors.Track(fmt.Errorf("%w: guya site needs id and url", errors.ErrInvalidInput)).Error()
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	b := base.New(provider.Info{
		ID:       cfg.ID,
		Name:     cfg.Name,
		Language: cfg.Language,
		NSFW:     cfg.NSFW,
		SiteURL:  cfg.BaseURL,
	}, env, map[string]string{"Accept": "application/json"})

	g := &guya{cfg: cfg, client: b.Client()}
	return b.
		WithSearch(g.search).
		WithBrowse().
		WithMostPopulars(g.catalog).
		WithMangaData(g.mangaData).
		WithChapterData(g.chapterData).
		WithMangaURL(g.mangaURL).
		Build(), nil
}

func (g *guya) mangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return base.JoinURL(g.cfg.BaseURL, "read", "manga", slug) + "/"
}

// catalog lists every series the reader hosts, sorted by name
func (g *guya) catalog(ctx context.Context) ([]core.SearchResult, error) {
	var all map[string]catalogEntry
	if err := g.client.GetJSON(ctx, base.JoinURL(g.cfg.BaseURL, "api", "get_all_series")+"/", &all); err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0, len(all))
	for name, e := range all {
		results = append(results, core.SearchResult{
			Slug:  e.Slug,
			Name:  name,
			Cover: g.absolute(e.Cover),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results, nil
}

func (g *guya) search(ctx context.Context, term string) ([]core.SearchResult, error) {
	all, err := g.catalog(ctx)
	if err != nil || term == "" {
		return all, err
	}
	needle := strings.ToLower(term)
	var out []core.SearchResult
	for _, r := range all {
		if strings.Contains(strings.ToLower(r.Name), needle) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *guya) series(ctx context.Context, slug string) (*seriesResp, error) {
	var resp seriesResp
	if err := g.client.GetJSON(ctx, base.JoinURL(g.cfg.BaseURL, "api", "series", slug)+"/", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (g *guya) mangaData(ctx context.Context, initial core.MangaData) (*core.MangaData, error) {
	s, err := g.series(ctx, initial.Slug)
	if err != nil {
		return nil, err
	}

	out := &core.MangaData{
		Slug:     initial.Slug,
		Name:     s.Title,
		URL:      g.mangaURL(initial.Slug, ""),
		Authors:  []string{s.Author, s.Artist},
		Status:   core.StatusUnknown,
		Synopsis: s.Description,
		CoverURL: g.absolute(s.Cover),
	}

	for _, num := range chapterNumbers(s.Chapters) {
		c := s.Chapters[num]
		ch := core.ChapterData{
			Slug:  num,
			Title: "Chapter " + num,
		}
		if c.Title != "" {
			ch.Title += " - " + c.Title
		}
		for _, gid := range sortedKeys(c.Groups) {
			if name := s.Groups[gid]; name != "" {
				ch.Scanlators = append(ch.Scanlators, name)
				out.Scanlators = append(out.Scanlators, name)
			}
			if ch.Date == nil {
				if ts, ok := c.ReleaseDate[gid]; ok && ts > 0 {
					d := time.Unix(ts, 0).UTC()
					d = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
					ch.Date = &d
				}
			}
		}
		out.Chapters = append(out.Chapters, ch)
	}
	return out, nil
}

func (g *guya) chapterData(ctx context.Context, ref core.ChapterRef) ([]core.Page, error) {
	s, err := g.series(ctx, ref.SeriesSlug)
	if err != nil {
		return nil, err
	}
	c, ok := s.Chapters[ref.ChapterSlug]
	if !ok {
		return nil, errors.Track(fmt.Errorf("%w: chapter %s", errors.ErrNotFound, ref.ChapterSlug)).Error()
	}

	// first group in id order serves the pages
	for _, gid := range sortedKeys(c.Groups) {
		files := c.Groups[gid]
		if len(files) == 0 {
			continue
		}
		pages := make([]core.Page, len(files))
		for i, file := range files {
			pages[i] = core.Page{
				Slug:     file,
				ImageURL: base.JoinURL(g.cfg.BaseURL, "media", "manga", ref.SeriesSlug, "chapters", c.Folder, gid, file),
			}
		}
		return pages, nil
	}
	return nil, errors.Track(fmt.Errorf("%w: chapter %s has no group pages", errors.ErrParse, ref.ChapterSlug)).Error()
}

func (g *guya) absolute(ref string) string {
	if ref == "" || strings.HasPrefix(ref, "http") {
		return ref
	}
	return base.JoinURL(g.cfg.BaseURL, ref)
}

// chapterNumbers sorts chapter keys numerically, "10.5" after "10"
func chapterNumbers(chapters map[string]chapterResp) []string {
	nums := make([]string, 0, len(chapters))
	for k := range chapters {
		nums = append(nums, k)
	}
	sort.Slice(nums, func(i, j int) bool {
		a, errA := strconv.ParseFloat(nums[i], 64)
		b, errB := strconv.ParseFloat(nums[j], 64)
		if errA != nil || errB != nil {
			return nums[i] < nums[j]
		}
		return a < b
	})
	return nums
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
