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

package genkan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/engine/network"
	"Tankobon/pkg/engine/parser/html"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/base"
	"Tankobon/pkg/util"
)

var backgroundURL = regexp.MustCompile(`url\(['"]?([^'")]+)['"]?\)`)

// Config holds configuration for Genkan CMS sites
type Config struct {
	ID           string                 `yaml:"id"`
	Name         string                 `yaml:"name"`
	BaseURL      string                 `yaml:"url"`
	Language     string                 `yaml:"language"`
	NSFW         bool                   `yaml:"nsfw"`
	DateLayout   string                 `yaml:"date_layout"`
	StatusLabels map[string]core.Status `yaml:"status_labels"`
}

type genkan struct {
	cfg    Config
	client *network.Client
	log    logger.Logger
}

// New creates a provider for one Genkan site
func New(cfg Config, env provider.Env) (provider.Provider, error) {
	if cfg.ID == "" || cfg.BaseURL == "" {
		return nil, errors.Track(fmt.Errorf("%w: genkan site needs id and url", errors.ErrInvalidInput)).Error()
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
	}, env, nil)

	g := &genkan{cfg: cfg, client: b.Client(), log: env.Log()}
	return b.
		WithSearch(g.search).
		WithBrowse().
		WithMangaData(g.mangaData).
		WithChapterData(g.chapterData).
		WithMangaURL(g.mangaURL).
		WithStatusLabels(cfg.StatusLabels).
		Build(), nil
}

func (g *genkan) mangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return base.JoinURL(g.cfg.BaseURL, "comics", slug)
}

func (g *genkan) search(ctx context.Context, term string) ([]core.SearchResult, error) {
	req := network.NewRequest(base.JoinURL(g.cfg.BaseURL, "comics"))
	if term != "" {
		req = req.Query(url.Values{"query": {term}})
	}
	resp, err := g.client.Do(ctx, req.Build())
	if err != nil {
		return nil, err
	}
	doc, err := resp.HTML()
	if err != nil {
		return nil, err
	}

	var results []core.SearchResult
	doc.Find("div.list-item").Each(func(_ int, item *html.Element) {
		link := item.Find("a.list-title").FirstOrNil()
		if link == nil {
			return
		}
		r := core.SearchResult{
			Slug: base.SegmentAfter(link.Href(), "comics"),
			Name: link.Text(),
		}
		if media := item.Find(".media-content").FirstOrNil(); media != nil {
			if m := backgroundURL.FindStringSubmatch(media.AttrOr("style", "")); m != nil {
				r.Cover = doc.Resolve(m[1])
			}
		}
		results = append(results, r)
	})
	return results, nil
}

func (g *genkan) mangaData(ctx context.Context, initial core.MangaData) (*core.MangaData, error) {
	pageURL := g.mangaURL(initial.Slug, initial.URL)
	doc, err := g.client.GetHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title, err := doc.MultiSelect("div#content h5", "div.card-body h5", "h1").First()
	if err != nil {
		return nil, err
	}

	out := &core.MangaData{
		Slug:   initial.Slug,
		Name:   title.Text(),
		URL:    pageURL,
		Genres: doc.Find("a.badge").Texts(),
	}
	if el := doc.MultiSelect("div.card-body div.text-muted", "div.description").FirstSelector().FirstOrNil(); el != nil {
		out.Synopsis = el.Text()
	}
	if media := doc.Find("div.media-comic-card .media-content").FirstOrNil(); media != nil {
		if m := backgroundURL.FindStringSubmatch(media.AttrOr("style", "")); m != nil {
			out.CoverURL = doc.Resolve(m[1])
		}
	}

	// summary rows look like "Status: Ongoing" or "Author: X, Y"
	doc.Find("div.card-body div.row div.col").Each(func(_ int, row *html.Element) {
		label, value, ok := strings.Cut(row.Text(), ":")
		if !ok {
			return
		}
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "status":
			out.Status = core.ParseStatusWith(value, g.cfg.StatusLabels)
		case "author", "authors", "artist":
			out.Authors = append(out.Authors, util.SplitList(value)...)
		}
	})
	if out.Status == "" {
		out.Status = core.StatusUnknown
	}

	out.Chapters = g.parseChapters(doc, initial.Slug)
	return out, nil
}

// parseChapters reads the volume/chapter rows, newest first on the page.
// Chapter links are /comics/<slug>/<volume>/<chapter>.
func (g *genkan) parseChapters(doc *html.Parser, slug string) []core.ChapterData {
	items := doc.Find("div.list-item.col-sm-3, div.list.list-row div.list-item").AllOrEmpty()
	chapters := make([]core.ChapterData, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		link := items[i].Find("a.item-author").FirstOrNil()
		if link == nil {
			continue
		}
		href := link.Href()
		segs := base.PathSegments(href)
		var parts []string
		for j, s := range segs {
			if s == slug {
				parts = segs[j+1:]
				break
			}
		}
		if len(parts) == 0 {
			continue
		}

		ch := core.ChapterData{
			Slug:  strings.Join(parts, "-"),
			Title: link.Text(),
			URL:   href,
		}
		if date := items[i].Find("a.item-company").FirstOrNil(); date != nil {
			ch.Date = util.ParseNullableDate(date.Text(), g.cfg.DateLayout)
		}
		chapters = append(chapters, ch)
	}
	return chapters
}

func (g *genkan) chapterData(ctx context.Context, ref core.ChapterRef) ([]core.Page, error) {
	chapterURL := ref.ChapterURL
	if chapterURL == "" {
		chapterURL = base.JoinURL(g.mangaURL(ref.SeriesSlug, ""), strings.ReplaceAll(ref.ChapterSlug, "-", "/"))
	}
	doc, err := g.client.GetHTML(ctx, chapterURL)
	if err != nil {
		return nil, err
	}

	for _, script := range doc.Scripts() {
		raw, ok := base.ScriptValue(script, "chapterPages")
		if !ok {
			continue
		}
		var urls []string
		if err := json.Unmarshal([]byte(raw), &urls); err != nil {
			return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrParse, err)).Error()
		}
		pages := make([]core.Page, 0, len(urls))
		for _, u := range urls {
			pages = append(pages, core.Page{Slug: strconv.Itoa(len(pages)), ImageURL: doc.Resolve(u)})
		}
		return pages, nil
	}

	return nil, errors.Track(fmt.Errorf("%w: no chapterPages script", errors.ErrParse)).
		WithContext("url", chapterURL).
		Error()
}
