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

package madara

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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

const (
	adultCookie  = "wpmanga-adault"
	ajaxEndpoint = "wp-admin/admin-ajax.php"
)

var (
	resultSelectors  = []string{".c-tabs-item__content", ".page-item-detail", ".manga-item"}
	titleSelectors   = []string{".post-title h1", ".post-title h3", ".manga-title h1", "h1"}
	synopsisSelector = []string{".description-summary .summary__content", ".summary__content", ".manga-excerpt", ".description-summary"}
	statusHeadings   = []string{"status", "statut", "estado", "durum", "stato", "الحالة", "状态"}
)

type madara struct {
	cfg    Config
	client *network.Client
	log    logger.Logger
}

// New creates a provider for one Madara site
func New(cfg Config, env provider.Env) (provider.Provider, error) {
	cfg = cfg.withDefaults()
	if cfg.ID == "" || cfg.BaseURL == "" {
		return nil, errors.Track(fmt.Errorf("%w: madara site needs id and url", errors.ErrInvalidInput)).Error()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	b := base.New(provider.Info{
		ID:       cfg.ID,
		Name:     cfg.Name,
		Language: cfg.Language,
		NSFW:     cfg.NSFW,
		SiteURL:  cfg.BaseURL,
	}, env, cfg.Headers)

	m := &madara{cfg: cfg, client: b.Client(), log: env.Log()}
	if cfg.Adult {
		m.client.SetCookie(cfg.BaseURL, &http.Cookie{Name: adultCookie, Value: "1", Path: "/"})
	}

	return b.
		WithSearch(m.search).
		WithBrowse().
		WithMostPopulars(m.mostPopulars).
		WithMangaData(m.mangaData).
		WithChapterData(m.chapterData).
		WithMangaURL(m.mangaURL).
		WithStatusLabels(cfg.StatusLabels).
		Build(), nil
}

func (m *madara) mangaURL(slug, rawURL string) string {
	if rawURL != "" {
		return rawURL
	}
	return base.JoinURL(m.cfg.BaseURL, m.cfg.MangaPath, slug) + "/"
}

func (m *madara) search(ctx context.Context, term string) ([]core.SearchResult, error) {
	vars := url.Values{}
	template := "madara-core/content/content-search"
	if term == "" {
		template = "madara-core/content/content-archive"
		vars.Set("vars[orderby]", "date")
		vars.Set("vars[order]", "desc")
	} else {
		vars.Set("vars[s]", term)
	}
	return m.loadMore(ctx, template, vars)
}

func (m *madara) mostPopulars(ctx context.Context) ([]core.SearchResult, error) {
	vars := url.Values{}
	vars.Set("vars[orderby]", "meta_value_num")
	vars.Set("vars[meta_key]", "_wp_manga_views")
	vars.Set("vars[order]", "desc")
	return m.loadMore(ctx, "madara-core/content/content-archive", vars)
}

// loadMore posts the theme's infinite-scroll action and parses the first
// page of results
func (m *madara) loadMore(ctx context.Context, template string, vars url.Values) ([]core.SearchResult, error) {
	form := url.Values{}
	form.Set("action", "madara_load_more")
	form.Set("page", "0")
	form.Set("template", template)
	form.Set("vars[paged]", "1")
	form.Set("vars[post_type]", "wp-manga")
	form.Set("vars[post_status]", "publish")
	form.Set("vars[posts_per_page]", "20")
	for k, v := range vars {
		form[k] = v
	}

	req := network.NewRequest(base.JoinURL(m.cfg.BaseURL, ajaxEndpoint)).
		Form(form).
		Header("X-Requested-With", "XMLHttpRequest").
		Referer(m.cfg.BaseURL + "/").
		Build()
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	doc, err := resp.HTML()
	if err != nil {
		return nil, err
	}
	doc = doc.WithBase(m.cfg.BaseURL + "/")

	var results []core.SearchResult
	for _, sel := range resultSelectors {
		doc.Find(sel).Each(func(_ int, item *html.Element) {
			link := item.Find(".post-title a").FirstOrNil()
			if link == nil {
				link = item.Find("h3 a, h4 a, h5 a").FirstOrNil()
			}
			if link == nil {
				return
			}
			r := core.SearchResult{
				Slug: base.SegmentAfter(link.Href(), m.cfg.MangaPath),
				Name: link.Text(),
			}
			if img := item.Find("img").FirstOrNil(); img != nil {
				r.Cover = img.ImageURL()
			}
			results = append(results, r)
		})
		if len(results) > 0 {
			break
		}
	}
	m.log.Debug("[%s] %s returned %d results", m.cfg.ID, template, len(results))
	return results, nil
}

func (m *madara) mangaData(ctx context.Context, initial core.MangaData) (*core.MangaData, error) {
	pageURL := m.mangaURL(initial.Slug, initial.URL)
	doc, err := m.client.GetHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	title, err := doc.MultiSelect(titleSelectors...).First()
	if err != nil {
		return nil, err
	}
	name := title.OwnText()
	if name == "" {
		name = title.Text()
	}

	out := &core.MangaData{
		Slug:       initial.Slug,
		Name:       name,
		URL:        pageURL,
		Authors:    append(doc.Find(".author-content a").Texts(), doc.Find(".artist-content a").Texts()...),
		Genres:     doc.Find(".genres-content a").Texts(),
		Status:     core.ParseStatusWith(m.statusLabel(doc), m.cfg.StatusLabels),
		Scanlators: []string{},
	}
	if el := doc.MultiSelect(synopsisSelector...).FirstSelector().FirstOrNil(); el != nil {
		out.Synopsis = el.Text()
	}
	if img := doc.Find(".summary_image img").FirstOrNil(); img != nil {
		out.CoverURL = img.ImageURL()
	}

	chapters, err := m.chapters(ctx, doc, pageURL)
	if err != nil {
		return nil, err
	}
	out.Chapters = chapters
	return out, nil
}

// statusLabel finds the summary row whose heading names the status
func (m *madara) statusLabel(doc *html.Parser) string {
	for _, item := range doc.Find(".post-content_item").AllOrEmpty() {
		h := item.Find(".summary-heading").FirstOrNil()
		if h == nil {
			continue
		}
		heading := strings.ToLower(h.Text())
		for _, label := range statusHeadings {
			if strings.Contains(heading, label) {
				if content := item.Find(".summary-content").FirstOrNil(); content != nil {
					return content.Text()
				}
			}
		}
	}
	if last := doc.Find(".post-status .summary-content").Last(); last != nil {
		return last.Text()
	}
	return ""
}

// chapters reads the list embedded in the page, then the ajax/chapters/
// endpoint, then the legacy admin-ajax action
func (m *madara) chapters(ctx context.Context, doc *html.Parser, pageURL string) ([]core.ChapterData, error) {
	if list := m.parseChapters(doc, pageURL); len(list) > 0 {
		return list, nil
	}

	if !m.cfg.LegacyChapters {
		req := network.NewRequest(strings.TrimRight(pageURL, "/")+"/ajax/chapters/").
			Method(http.MethodPost).
			Header("X-Requested-With", "XMLHttpRequest").
			Referer(pageURL).
			Build()
		resp, err := m.client.Do(ctx, req)
		if err == nil {
			if chDoc, err := resp.HTML(); err == nil {
				if list := m.parseChapters(chDoc, pageURL); len(list) > 0 {
					return list, nil
				}
			}
		} else {
			m.log.Debug("[%s] ajax/chapters failed, trying legacy action: %v", m.cfg.ID, err)
		}
	}

	holder := doc.Find("#manga-chapters-holder").FirstOrNil()
	if holder == nil {
		return []core.ChapterData{}, nil
	}
	dataID := holder.AttrOr("data-id", "")
	if dataID == "" {
		return []core.ChapterData{}, nil
	}

	form := url.Values{}
	form.Set("action", "manga_get_chapters")
	form.Set("manga", dataID)
	req := network.NewRequest(base.JoinURL(m.cfg.BaseURL, ajaxEndpoint)).
		Form(form).
		Header("X-Requested-With", "XMLHttpRequest").
		Referer(pageURL).
		Build()
	resp, err := m.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	chDoc, err := resp.HTML()
	if err != nil {
		return nil, err
	}
	return m.parseChapters(chDoc, pageURL), nil
}

// parseChapters returns the chapters of a listing in reader order. The
// theme lists newest first.
func (m *madara) parseChapters(doc *html.Parser, pageURL string) []core.ChapterData {
	seriesSlug := base.SegmentAfter(pageURL, m.cfg.MangaPath)
	items := doc.Find("li.wp-manga-chapter").AllOrEmpty()

	chapters := make([]core.ChapterData, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		link := items[i].Find("a").FirstOrNil()
		if link == nil {
			continue
		}
		href := link.Href()
		ch := core.ChapterData{
			Slug:  base.SegmentAfter(href, seriesSlug),
			Title: link.Text(),
			URL:   href,
		}

		// recent chapters show a "new" badge whose title holds the age
		if badge := items[i].Find(".chapter-release-date a[title]").FirstOrNil(); badge != nil {
			ch.Date = util.ParseNullableDate(badge.AttrOr("title", ""), m.cfg.DateLayout)
		} else if date := items[i].Find(".chapter-release-date").FirstOrNil(); date != nil {
			ch.Date = util.ParseNullableDate(date.Text(), m.cfg.DateLayout)
		}
		chapters = append(chapters, ch)
	}
	return chapters
}

func (m *madara) chapterData(ctx context.Context, ref core.ChapterRef) ([]core.Page, error) {
	chapterURL := ref.ChapterURL
	if chapterURL == "" {
		chapterURL = base.JoinURL(m.mangaURL(ref.SeriesSlug, ""), ref.ChapterSlug) + "/"
	}

	resp, err := m.client.Do(ctx, network.NewRequest(chapterURL).
		Query(url.Values{"style": {"list"}}).
		Referer(m.mangaURL(ref.SeriesSlug, "")).
		Build())
	if err != nil {
		return nil, err
	}
	doc, err := resp.HTML()
	if err != nil {
		return nil, err
	}

	var urls []string
	if m.cfg.Scrambled {
		urls, err = unscramble(doc)
		if err != nil {
			return nil, err
		}
	} else {
		urls = doc.Find(".reading-content img").MapString(func(el *html.Element) string {
			return el.ImageURL()
		})
	}

	pages := make([]core.Page, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		pages = append(pages, core.Page{Slug: strconv.Itoa(len(pages)), ImageURL: u})
	}
	return pages, nil
}

// unscramble decodes the page list of protected chapters: a base64 blob
// in chapter_data XORed with the page nonce
func unscramble(doc *html.Parser) ([]string, error) {
	var blob, key string
	for _, script := range doc.Scripts() {
		if v, ok := base.ScriptValue(script, "chapter_data"); ok {
			blob = v
		}
		if v, ok := base.ScriptValue(script, "wpmangaprotectornonce"); ok {
			key = v
		}
	}
	if blob == "" {
		return nil, errors.Track(fmt.Errorf("%w: no chapter_data script", errors.ErrParse)).Error()
	}

	plain, err := base.XORBase64(strings.ReplaceAll(blob, `\/`, "/"), key)
	if err != nil {
		return nil, err
	}
	var urls []string
	if err := json.Unmarshal(plain, &urls); err != nil {
		return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrParse, err)).Error()
	}
	for i, u := range urls {
		urls[i] = doc.Resolve(util.CleanImageURL(u))
	}
	return urls, nil
}
