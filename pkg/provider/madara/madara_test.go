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
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

// site serves a Madara install whose chapter list is only reachable
// through the legacy admin-ajax action
func site(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/wp-admin/admin-ajax.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("action") {
		case "madara_load_more":
			assert.Equal(t, "wp-manga", r.PostForm.Get("vars[post_type]"))
			if r.PostForm.Get("vars[meta_key]") == "" && r.PostForm.Get("vars[s]") == "" &&
				r.PostForm.Get("vars[orderby]") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write(fixture(t, "search.html"))
		case "manga_get_chapters":
			assert.Equal(t, "42", r.PostForm.Get("manga"))
			_, _ = w.Write(fixture(t, "chapters.html"))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/manga/solo-hero/", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(adultCookie); err != nil {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(fixture(t, "manga.html"))
	})
	mux.HandleFunc("/manga/solo-hero/ajax/chapters/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/manga/solo-hero/chapter-2/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "list", r.URL.Query().Get("style"))
		_, _ = w.Write(fixture(t, "chapter.html"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("<html>home</html>"))
	})
	return httptest.NewServer(mux)
}

func newSite(t *testing.T, srv *httptest.Server, adjust func(*Config)) provider.Provider {
	cfg := Config{ID: "example", Name: "Example", BaseURL: srv.URL, Adult: true}
	if adjust != nil {
		adjust(&cfg)
	}
	p, err := New(cfg, provider.Env{})
	require.NoError(t, err)
	return p
}

func TestSearch(t *testing.T) {
	srv := site(t)
	defer srv.Close()
	p := newSite(t, srv, nil)

	results, err := p.Search(context.Background(), "hero")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, core.SearchResult{Slug: "solo-hero", Name: "Solo Hero", Cover: srv.URL + "/covers/solo.jpg"}, results[0])
	assert.Equal(t, "night-walk", results[1].Slug)

	browse, err := p.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, browse, 2)

	populars, err := p.MostPopulars(context.Background())
	require.NoError(t, err)
	assert.Len(t, populars, 2)
}

func TestMangaDataFallsBackToLegacyChapters(t *testing.T) {
	srv := site(t)
	defer srv.Close()
	p := newSite(t, srv, nil)

	m, err := p.MangaData(context.Background(), core.MangaData{Slug: "solo-hero"})
	require.NoError(t, err)

	m.URL = strings.ReplaceAll(m.URL, srv.URL, "http://site")
	m.CoverURL = strings.ReplaceAll(m.CoverURL, srv.URL, "http://site")
	for i := range m.Chapters {
		m.Chapters[i].URL = strings.ReplaceAll(m.Chapters[i].URL, srv.URL, "http://site")
	}
	data, err := json.MarshalIndent(m, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "manga", append(data, '\n'))
}

func TestMangaDataWithoutAdultCookieIsNotFound(t *testing.T) {
	srv := site(t)
	defer srv.Close()
	p := newSite(t, srv, func(c *Config) { c.Adult = false })

	_, err := p.MangaData(context.Background(), core.MangaData{Slug: "solo-hero"})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestChapterData(t *testing.T) {
	srv := site(t)
	defer srv.Close()
	p := newSite(t, srv, nil)

	pages, err := p.ChapterData(context.Background(), core.ChapterRef{
		SeriesSlug:  "solo-hero",
		ChapterSlug: "chapter-2",
	})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, core.Page{Slug: "0", ImageURL: srv.URL + "/uploads/solo-hero/chapter-2/01.jpg"}, pages[0])
	assert.Equal(t, "1", pages[1].Slug)
}

func TestChapterDataScrambled(t *testing.T) {
	key := "n0nce"
	plain := []byte(`["https:\/\/cdn.example\/p1.webp","/p2.webp"]`)
	for i := range plain {
		plain[i] ^= key[i%len(key)]
	}
	page := `<html><body><script>var wpmangaprotectornonce = '` + key + `';
var chapter_data = "` + base64.StdEncoding.EncodeToString(plain) + `";</script></body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()
	p := newSite(t, srv, func(c *Config) { c.Scrambled = true })

	pages, err := p.ChapterData(context.Background(), core.ChapterRef{
		SeriesSlug:  "x",
		ChapterSlug: "c",
		ChapterURL:  srv.URL + "/manga/x/c/",
	})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://cdn.example/p1.webp", pages[0].ImageURL)
	assert.Equal(t, srv.URL+"/p2.webp", pages[1].ImageURL)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New(Config{ID: "x"}, provider.Env{})
	assert.Error(t, err)
}

func TestMangaURL(t *testing.T) {
	p, err := New(Config{ID: "x", BaseURL: "https://x.io/", MangaPath: "series"}, provider.Env{})
	require.NoError(t, err)
	assert.Equal(t, "https://x.io/series/abc/", p.MangaURL("abc", ""))
	assert.Equal(t, "https://x.io/custom", p.MangaURL("abc", "https://x.io/custom"))
}
