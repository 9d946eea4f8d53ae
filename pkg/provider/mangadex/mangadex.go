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

package mangadex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/engine/network"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
	"Tankobon/pkg/provider/base"
	"Tankobon/pkg/util"
)

const feedPageSize = 100

// Config points the adapter at an API deployment
type Config struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Language string `yaml:"language"`
	APIURL   string `yaml:"api_url"`
	SiteURL  string `yaml:"url"`
	// CoverURL hosts cover art, uploads.mangadex.org by default
	CoverURL string `yaml:"cover_url"`
	NSFW     bool   `yaml:"nsfw"`
}

func (c Config) withDefaults() Config {
	if c.ID == "" {
		c.ID = "mangadex"
	}
	if c.Name == "" {
		c.Name = "MangaDex"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.APIURL == "" {
		c.APIURL = "https://api.mangadex.org"
	}
	if c.SiteURL == "" {
		c.SiteURL = "https://mangadex.org"
	}
	if c.CoverURL == "" {
		c.CoverURL = "https://uploads.mangadex.org"
	}
	return c
}

type relationship struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Name     string `json:"name"`
		FileName string `json:"fileName"`
	} `json:"attributes"`
}

type mangaEntry struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string   `json:"title"`
		AltTitles   []map[string]string `json:"altTitles"`
		Description map[string]string   `json:"description"`
		Status      string              `json:"status"`
		Tags        []struct {
			Attributes struct {
				Name map[string]string `json:"name"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type mangaListResp struct {
	Data  []mangaEntry `json:"data"`
	Total int          `json:"total"`
}

type mangaResp struct {
	Data mangaEntry `json:"data"`
}

type chapterEntry struct {
	ID         string `json:"id"`
	Attributes struct {
		Title              string `json:"title"`
		Chapter            string `json:"chapter"`
		Volume             string `json:"volume"`
		PublishAt          string `json:"publishAt"`
		TranslatedLanguage string `json:"translatedLanguage"`
		ExternalURL        string `json:"externalUrl"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type feedResp struct {
	Data   []chapterEntry `json:"data"`
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
}

type atHomeResp struct {
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash string   `json:"hash"`
		Data []string `json:"data"`
	} `json:"chapter"`
}

type mangadex struct {
	cfg    Config
	client *network.Client
	log    logger.Logger
}

// New creates the API adapter
func New(cfg Config, env provider.Env) (provider.Provider, error) {
	cfg = cfg.withDefaults()
	b := base.New(provider.Info{
		ID:       cfg.ID,
		Name:     cfg.Name,
		Language: cfg.Language,
		NSFW:     cfg.NSFW,
		SiteURL:  cfg.SiteURL,
	}, env, map[string]string{"Accept": "application/json"})

	m := &mangadex{cfg: cfg, client: b.Client(), log: env.Log()}
	return b.
		WithSearch(m.search).
		WithBrowse().
		WithMostPopulars(m.mostPopulars).
		WithMangaData(m.mangaData).
		WithChapterData(m.chapterData).
		WithMangaURL(m.mangaURL).
		Build(), nil
}

func (m *mangadex) mangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return base.JoinURL(m.cfg.SiteURL, "title", slug)
}

func (m *mangadex) contentRatings(q url.Values) {
	q.Add("contentRating[]", "safe")
	q.Add("contentRating[]", "suggestive")
	if m.cfg.NSFW {
		q.Add("contentRating[]", "erotica")
		q.Add("contentRating[]", "pornographic")
	}
}

func (m *mangadex) search(ctx context.Context, term string) ([]core.SearchResult, error) {
	q := url.Values{}
	q.Set("limit", "30")
	if term == "" {
		q.Set("order[latestUploadedChapter]", "desc")
	} else {
		q.Set("title", term)
		q.Set("order[relevance]", "desc")
	}
	return m.list(ctx, q)
}

func (m *mangadex) mostPopulars(ctx context.Context) ([]core.SearchResult, error) {
	q := url.Values{}
	q.Set("limit", "30")
	q.Set("order[followedCount]", "desc")
	return m.list(ctx, q)
}

func (m *mangadex) list(ctx context.Context, q url.Values) ([]core.SearchResult, error) {
	q.Add("includes[]", "cover_art")
	q.Add("availableTranslatedLanguage[]", m.cfg.Language)
	m.contentRatings(q)

	var resp mangaListResp
	req := network.NewRequest(base.JoinURL(m.cfg.APIURL, "manga")).Query(q).Build()
	r, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.JSON(&resp); err != nil {
		return nil, err
	}

	results := make([]core.SearchResult, 0, len(resp.Data))
	for _, e := range resp.Data {
		results = append(results, core.SearchResult{
			Slug:  e.ID,
			Name:  bestTitle(e.Attributes.Title, e.Attributes.AltTitles, m.cfg.Language),
			Cover: m.cover(e),
		})
	}
	return results, nil
}

func (m *mangadex) cover(e mangaEntry) string {
	for _, rel := range e.Relationships {
		if rel.Type == "cover_art" && rel.Attributes.FileName != "" {
			return base.JoinURL(m.cfg.CoverURL, "covers", e.ID, rel.Attributes.FileName+".512.jpg")
		}
	}
	return ""
}

func (m *mangadex) mangaData(ctx context.Context, initial core.MangaData) (*core.MangaData, error) {
	q := url.Values{}
	for _, inc := range []string{"cover_art", "author", "artist"} {
		q.Add("includes[]", inc)
	}

	var resp mangaResp
	req := network.NewRequest(base.JoinURL(m.cfg.APIURL, "manga", initial.Slug)).Query(q).Build()
	r, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := r.JSON(&resp); err != nil {
		return nil, err
	}
	e := resp.Data

	out := &core.MangaData{
		Slug:     initial.Slug,
		Name:     bestTitle(e.Attributes.Title, e.Attributes.AltTitles, m.cfg.Language),
		URL:      m.mangaURL(initial.Slug, ""),
		Status:   core.ParseStatus(e.Attributes.Status),
		Synopsis: localized(e.Attributes.Description, m.cfg.Language),
		CoverURL: m.cover(e),
	}
	for _, rel := range e.Relationships {
		if (rel.Type == "author" || rel.Type == "artist") && rel.Attributes.Name != "" {
			out.Authors = append(out.Authors, rel.Attributes.Name)
		}
	}
	for _, tag := range e.Attributes.Tags {
		out.Genres = append(out.Genres, localized(tag.Attributes.Name, "en"))
	}

	chapters, scanlators, err := m.feed(ctx, initial.Slug)
	if err != nil {
		return nil, err
	}
	out.Chapters = chapters
	out.Scanlators = scanlators
	return out, nil
}

// feed pages through the chapter feed of a series in the configured language
func (m *mangadex) feed(ctx context.Context, id string) ([]core.ChapterData, []string, error) {
	var (
		chapters   []core.ChapterData
		scanlators []string
	)

	for offset := 0; ; offset += feedPageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(feedPageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Add("translatedLanguage[]", m.cfg.Language)
		q.Set("order[volume]", "asc")
		q.Set("order[chapter]", "asc")
		q.Add("includes[]", "scanlation_group")
		m.contentRatings(q)

		var resp feedResp
		req := network.NewRequest(base.JoinURL(m.cfg.APIURL, "manga", id, "feed")).Query(q).Build()
		r, err := m.client.Do(ctx, req)
		if err != nil {
			return nil, nil, err
		}
		if err := r.JSON(&resp); err != nil {
			return nil, nil, err
		}

		for _, c := range resp.Data {
			// externally hosted chapters have no pages here
			if c.Attributes.ExternalURL != "" {
				continue
			}
			ch := core.ChapterData{
				Slug:  c.ID,
				Title: chapterTitle(c),
				Date:  util.ParseNullableDate(c.Attributes.PublishAt),
			}
			for _, rel := range c.Relationships {
				if rel.Type == "scanlation_group" && rel.Attributes.Name != "" {
					ch.Scanlators = append(ch.Scanlators, rel.Attributes.Name)
					scanlators = append(scanlators, rel.Attributes.Name)
				}
			}
			chapters = append(chapters, ch)
		}

		if len(resp.Data) == 0 || offset+feedPageSize >= resp.Total {
			break
		}
	}

	m.log.Debug("[%s] feed of %s has %d chapters", m.cfg.ID, id, len(chapters))
	return chapters, scanlators, nil
}

func (m *mangadex) chapterData(ctx context.Context, ref core.ChapterRef) ([]core.Page, error) {
	var resp atHomeResp
	if err := m.client.GetJSON(ctx, base.JoinURL(m.cfg.APIURL, "at-home", "server", ref.ChapterSlug), &resp); err != nil {
		return nil, err
	}
	if resp.BaseURL == "" || resp.Chapter.Hash == "" {
		return nil, errors.Track(fmt.Errorf("%w: at-home response without server", errors.ErrParse)).
			WithContext("chapter", ref.ChapterSlug).
			Error()
	}

	pages := make([]core.Page, len(resp.Chapter.Data))
	for i, file := range resp.Chapter.Data {
		pages[i] = core.Page{
			Slug:     file,
			ImageURL: base.JoinURL(resp.BaseURL, "data", resp.Chapter.Hash, file),
		}
	}
	return pages, nil
}

func chapterTitle(c chapterEntry) string {
	var parts []string
	if v := c.Attributes.Volume; v != "" {
		parts = append(parts, "Vol. "+v)
	}
	if n := c.Attributes.Chapter; n != "" {
		parts = append(parts, "Ch. "+n)
	}
	title := strings.Join(parts, " ")
	if t := strings.TrimSpace(c.Attributes.Title); t != "" {
		if title == "" {
			return t
		}
		return title + " - " + t
	}
	if title == "" {
		return "Oneshot"
	}
	return title
}

// bestTitle prefers the configured language, then English, then Japanese
// romanization, then anything
func bestTitle(titles map[string]string, alt []map[string]string, lang string) string {
	for _, code := range []string{lang, "en", "ja-ro", "ja"} {
		if t := titles[code]; t != "" {
			return t
		}
	}
	for _, a := range alt {
		if t := a[lang]; t != "" {
			return t
		}
	}
	for _, t := range titles {
		if t != "" {
			return t
		}
	}
	return ""
}

func localized(m map[string]string, lang string) string {
	if v := m[lang]; v != "" {
		return v
	}
	if v := m["en"]; v != "" {
		return v
	}
	for _, v := range m {
		return v
	}
	return ""
}
