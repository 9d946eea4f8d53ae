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

package foolslide

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
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

var atobCall = regexp.MustCompile(`atob\(\s*["']([^"']+)["']\s*\)`)

// Config holds configuration for FoOlSlide readers
type Config struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	BaseURL    string `yaml:"url"`
	Language   string `yaml:"language"`
	NSFW       bool   `yaml:"nsfw"`
	DateLayout string `yaml:"date_layout"`
}

type foolslide struct {
	cfg    Config
	client *network.Client
	log    logger.Logger
}

type pageEntry struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// New creates a provider for one FoOlSlide reader
func New(cfg Config, env provider.Env) (provider.Provider, error) {
	if cfg.ID == "" || cfg.BaseURL == "" {
		return nil, errors.Track(fmt.Errorf("%w: foolslide site needs id and url", errors.ErrInvalidInput)).Error()
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.DateLayout == "" {
		cfg.DateLayout = "2006.01.02"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	b := base.New(provider.Info{
		ID:       cfg.ID,
		Name:     cfg.Name,
		Language: cfg.Language,
		NSFW:     cfg.NSFW,
		SiteURL:  cfg.BaseURL,
	}, env, nil)

	f := &foolslide{cfg: cfg, client: b.Client(), log: env.Log()}
	return b.
		WithSearch(f.search).
		WithBrowse().
		WithMangaData(f.mangaData).
		WithChapterData(f.chapterData).
		WithMangaURL(f.mangaURL).
		Build(), nil
}

func (f *foolslide) mangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return base.JoinURL(f.cfg.BaseURL, "series", slug) + "/"
}

// adult posts the age interstitial form along with the request
func adult(rawURL string) *network.Request {
	return network.NewRequest(rawURL).Form(url.Values{"adult": {"true"}}).Build()
}

func (f *foolslide) search(ctx context.Context, term string) ([]core.SearchResult, error) {
	var req *network.Request
	if term == "" {
		req = network.NewRequest(base.JoinURL(f.cfg.BaseURL, "directory") + "/").Build()
	} else {
		req = network.NewRequest(base.JoinURL(f.cfg.BaseURL, "search") + "/").
			Form(url.Values{"search": {term}}).
			Build()
	}
	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	doc, err := resp.HTML()
	if err != nil {
		return nil, err
	}

	var results []core.SearchResult
	doc.Find("div.group").Each(func(_ int, group *html.Element) {
		link := group.Find("div.title a").FirstOrNil()
		if link == nil {
			return
		}
		r := core.SearchResult{
			Slug: base.SegmentAfter(link.Href(), "series"),
			Name: link.AttrOr("title", link.Text()),
		}
		if img := group.Find("img").FirstOrNil(); img != nil {
			r.Cover = img.ImageURL()
		}
		results = append(results, r)
	})
	return results, nil
}

func (f *foolslide) mangaData(ctx context.Context, initial core.MangaData) (*core.MangaData, error) {
	pageURL := f.mangaURL(initial.Slug, initial.URL)
	resp, err := f.client.Do(ctx, adult(pageURL))
	if err != nil {
		return nil, err
	}
	doc, err := resp.HTML()
	if err != nil {
		return nil, err
	}

	title, err := doc.MultiSelect("h1.title", "div.large.comic h1").First()
	if err != nil {
		return nil, err
	}

	out := &core.MangaData{
		Slug:   initial.Slug,
		Name:   title.Text(),
		URL:    pageURL,
		Status: core.StatusUnknown,
	}
	if img := doc.Find("div.thumbnail img").FirstOrNil(); img != nil {
		out.CoverURL = img.ImageURL()
	}

	// the info block is "<b>Author</b>: X<br><b>Synopsis</b>: ..." inline
	if info := doc.Find("div.info").FirstOrNil(); info != nil {
		fields := infoFields(info.HTML())
		out.Authors = append(util.SplitList(fields["author"]), util.SplitList(fields["artist"])...)
		out.Synopsis = fields["synopsis"]
		if fields["description"] != "" && out.Synopsis == "" {
			out.Synopsis = fields["description"]
		}
	}

	items := doc.Find("div.list div.element").AllOrEmpty()
	for i := len(items) - 1; i >= 0; i-- {
		link := items[i].Find("div.title a").FirstOrNil()
		if link == nil {
			continue
		}
		href := link.Href()
		ch := core.ChapterData{
			Slug:  chapterSlug(href, initial.Slug),
			Title: link.AttrOr("title", link.Text()),
			URL:   href,
		}
		if meta := items[i].Find("div.meta_r").FirstOrNil(); meta != nil {
			ch.Scanlators = meta.Find("a").Texts()
			out.Scanlators = append(out.Scanlators, ch.Scanlators...)
			if _, date, ok := strings.Cut(meta.Text(), ","); ok {
				ch.Date = util.ParseNullableDate(date, f.cfg.DateLayout)
			}
		}
		out.Chapters = append(out.Chapters, ch)
	}
	return out, nil
}

// infoFields splits the inline info block into lower-cased label/value
// pairs
func infoFields(markup string) map[string]string {
	doc, err := html.ParseString("<div>" + strings.ReplaceAll(markup, "<br", "\n<br") + "</div>")
	if err != nil {
		return nil
	}
	fields := make(map[string]string)
	for _, line := range strings.Split(doc.Text(), "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(label))] = strings.TrimSpace(value)
	}
	return fields
}

// chapterSlug joins the path after /read/<series>/, e.g. en/0/12/5 becomes
// en-0-12-5
func chapterSlug(href, series string) string {
	segs := base.PathSegments(href)
	for i, s := range segs {
		if s == series {
			return strings.Join(segs[i+1:], "-")
		}
	}
	return base.SegmentAfter(href, "read")
}

func (f *foolslide) chapterData(ctx context.Context, ref core.ChapterRef) ([]core.Page, error) {
	chapterURL := ref.ChapterURL
	if chapterURL == "" {
		chapterURL = base.JoinURL(f.cfg.BaseURL, "read", ref.SeriesSlug, strings.ReplaceAll(ref.ChapterSlug, "-", "/")) + "/"
	}
	resp, err := f.client.Do(ctx, adult(chapterURL))
	if err != nil {
		return nil, err
	}
	doc, err := resp.HTML()
	if err != nil {
		return nil, err
	}

	for _, script := range doc.Scripts() {
		raw, ok := base.ScriptValue(script, "pages")
		if !ok {
			continue
		}
		// some readers hide the list behind JSON.parse(atob("..."))
		if m := atobCall.FindStringSubmatch(raw); m != nil {
			decoded, err := base64.StdEncoding.DecodeString(m[1])
			if err != nil {
				return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrParse, err)).Error()
			}
			raw = string(decoded)
		}

		var entries []pageEntry
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrParse, err)).Error()
		}
		pages := make([]core.Page, 0, len(entries))
		for _, e := range entries {
			pages = append(pages, core.Page{Slug: e.Filename, ImageURL: doc.Resolve(e.URL)})
		}
		return pages, nil
	}

	return nil, errors.Track(fmt.Errorf("%w: no pages script", errors.ErrParse)).
		WithContext("url", chapterURL).
		Error()
}
