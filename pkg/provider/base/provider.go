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

package base

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/engine/network"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
)

// Operations that a source supplies. Unset operations fall back to
// defaults on Provider.
type Operations struct {
	Search       func(ctx context.Context, term string) ([]core.SearchResult, error)
	MostPopulars func(ctx context.Context) ([]core.SearchResult, error)
	MangaData    func(ctx context.Context, initial core.MangaData) (*core.MangaData, error)
	ChapterData  func(ctx context.Context, ref core.ChapterRef) ([]core.Page, error)
	PageImage    func(ctx context.Context, ref core.ChapterRef, page core.Page) (*core.Image, error)
	MangaURL     func(slug, url string) string
}

// Provider is the shared implementation behind every source. It wraps the
// operations with error attribution and record normalization.
type Provider struct {
	info   provider.Info
	client *network.Client
	log    logger.Logger
	ops    Operations

	statusLabels map[string]core.Status
}

// Interface compliance check
var _ provider.Provider = (*Provider)(nil)

func (p *Provider) Info() provider.Info { return p.info }

// Client returns the HTTP session of this source
func (p *Provider) Client() *network.Client { return p.client }

// Search performs a listing query
func (p *Provider) Search(ctx context.Context, term string) ([]core.SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" && !p.info.Has(provider.CapBrowse) {
		return nil, errors.Track(fmt.Errorf("%w: empty search term", errors.ErrInvalidInput)).
			AsProvider(p.info.ID).
			Error()
	}
	if p.ops.Search == nil {
		return nil, errors.Track(fmt.Errorf("%w: search not supported", errors.ErrInvalidInput)).
			AsProvider(p.info.ID).
			Error()
	}

	p.log.Debug("[%s] search %q", p.info.ID, term)
	results, err := p.ops.Search(ctx, term)
	if err != nil {
		return nil, errors.TP(err, p.info.ID)
	}
	return cleanResults(results), nil
}

// MostPopulars returns the popular listing or an empty list
func (p *Provider) MostPopulars(ctx context.Context) ([]core.SearchResult, error) {
	if p.ops.MostPopulars == nil || !p.info.Has(provider.CapPopulars) {
		return []core.SearchResult{}, nil
	}
	results, err := p.ops.MostPopulars(ctx)
	if err != nil {
		return nil, errors.TP(err, p.info.ID)
	}
	return cleanResults(results), nil
}

// MangaData returns a normalized and validated record; partial records are
// reported as errors.
func (p *Provider) MangaData(ctx context.Context, initial core.MangaData) (*core.MangaData, error) {
	if strings.TrimSpace(initial.Slug) == "" {
		return nil, errors.Track(fmt.Errorf("%w: empty slug", errors.ErrInvalidInput)).
			AsProvider(p.info.ID).
			Error()
	}
	if p.ops.MangaData == nil {
		return nil, errors.Track(fmt.Errorf("manga data not implemented")).AsProvider(p.info.ID).Error()
	}

	p.log.Debug("[%s] manga data for %s", p.info.ID, initial.Slug)
	m, err := p.ops.MangaData(ctx, initial)
	if err != nil {
		return nil, errors.Track(err).
			WithContext("slug", initial.Slug).
			AsProvider(p.info.ID).
			Error()
	}

	if m.Slug == "" {
		m.Slug = initial.Slug
	}
	if m.Name == "" {
		m.Name = initial.Name
	}
	if m.CoverURL == "" {
		m.CoverURL = initial.CoverURL
	}
	if m.URL == "" {
		m.URL = p.MangaURL(m.Slug, initial.URL)
	}
	if !m.Status.Valid() {
		m.Status = core.ParseStatusWith(string(m.Status), p.statusLabels)
	}
	m.Normalize()

	if err := m.Validate(); err != nil {
		return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrValidation, err)).
			WithContext("slug", initial.Slug).
			AsProvider(p.info.ID).
			Error()
	}
	return m, nil
}

// ChapterData resolves the page list of a chapter
func (p *Provider) ChapterData(ctx context.Context, ref core.ChapterRef) ([]core.Page, error) {
	if p.ops.ChapterData == nil {
		return nil, errors.Track(fmt.Errorf("chapter data not implemented")).AsProvider(p.info.ID).Error()
	}

	pages, err := p.ops.ChapterData(ctx, ref)
	if err != nil {
		return nil, errors.Track(err).
			WithContext("chapter", ref.ChapterSlug).
			AsProvider(p.info.ID).
			Error()
	}
	if len(pages) == 0 {
		return nil, errors.Track(fmt.Errorf("%w: chapter %s has no pages", errors.ErrParse, ref.ChapterSlug)).
			AsProvider(p.info.ID).
			Error()
	}
	return pages, nil
}

// PageImage fetches one page. Sources without a custom operation download
// page.ImageURL with the chapter as referer.
func (p *Provider) PageImage(ctx context.Context, ref core.ChapterRef, page core.Page) (*core.Image, error) {
	var (
		img *core.Image
		err error
	)
	if p.ops.PageImage != nil {
		img, err = p.ops.PageImage(ctx, ref, page)
	} else {
		img, err = FetchImage(ctx, p.client, page.ImageURL, ref.ChapterURL)
	}
	if err != nil {
		return nil, errors.Track(err).
			WithContext("chapter", ref.ChapterSlug).
			WithContext("page", page.Slug).
			AsProvider(p.info.ID).
			Error()
	}
	return img, nil
}

// MangaURL returns the web address of a series
func (p *Provider) MangaURL(slug, rawURL string) string {
	if p.ops.MangaURL != nil {
		return p.ops.MangaURL(slug, rawURL)
	}
	if rawURL != "" {
		return rawURL
	}
	return JoinURL(p.info.SiteURL, url.PathEscape(slug))
}

func cleanResults(results []core.SearchResult) []core.SearchResult {
	out := make([]core.SearchResult, 0, len(results))
	seen := make(map[string]struct{}, len(results))
	for _, r := range results {
		r.Slug = strings.TrimSpace(r.Slug)
		if r.Slug == "" {
			continue
		}
		if _, dup := seen[r.Slug]; dup {
			continue
		}
		seen[r.Slug] = struct{}{}
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			r.Name = r.Slug
		}
		out = append(out, r)
	}
	return out
}

// JoinURL joins a base URL and path segments with single slashes
func JoinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, part := range parts {
		part = strings.Trim(part, "/")
		if part == "" {
			continue
		}
		out += "/" + part
	}
	return out
}

// PathSegments returns the non-empty path segments of rawURL
func PathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var out []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SegmentAfter returns the path segment that follows marker, or the last
// segment when marker is absent
func SegmentAfter(rawURL, marker string) string {
	segs := PathSegments(rawURL)
	for i, s := range segs {
		if s == marker && i+1 < len(segs) {
			return segs[i+1]
		}
	}
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}
