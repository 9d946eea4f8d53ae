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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/core"
	"Tankobon/pkg/provider"
)

const searchPage = `<div class="list series">
<div class="group"><div class="title"><a href="/series/kaguya/" title="Kaguya-sama">Kaguya...</a></div><img src="/content/kaguya.png"></div>
</div>`

const seriesPage = `<html><body>
<div class="large comic"><h1 class="title">Kaguya-sama</h1>
<div class="thumbnail"><img src="/content/kaguya_thumb.png"></div>
<div class="info"><b>Author</b>: Aka Akasaka<br><b>Artist</b>: Aka Akasaka<br><b>Synopsis</b>: Love is war.</div></div>
<div class="list">
  <div class="element"><div class="title"><a href="/read/kaguya/en/0/2/" title="Chapter 2">Chapter 2</a></div><div class="meta_r">by <a href="#">Scan Team</a>, 2024.03.05</div></div>
  <div class="element"><div class="title"><a href="/read/kaguya/en/0/1/" title="Chapter 1">Chapter 1</a></div><div class="meta_r">by <a href="#">Scan Team</a>, 2024.03.01</div></div>
</div></body></html>`

func site(t *testing.T) *httptest.Server {
	pages := base64.StdEncoding.EncodeToString([]byte(`[{"filename":"01.png","url":"/content/comics/kaguya/2/01.png"}]`))

	mux := http.NewServeMux()
	mux.HandleFunc("/search/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "kaguya", r.PostForm.Get("search"))
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/directory/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(searchPage))
	})
	mux.HandleFunc("/series/kaguya/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("adult") != "true" {
			_, _ = w.Write([]byte(`<form><input name="adult" value="true"></form>`))
			return
		}
		_, _ = w.Write([]byte(seriesPage))
	})
	mux.HandleFunc("/read/kaguya/en/0/1/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<script>var pages = [{"filename":"01.jpg","url":"https://cdn.example/01.jpg"},{"filename":"02.jpg","url":"https://cdn.example/02.jpg"}];</script>`))
	})
	mux.HandleFunc("/read/kaguya/en/0/2/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<script>var pages = JSON.parse(atob("` + pages + `"));</script>`))
	})
	return httptest.NewServer(mux)
}

func newSite(t *testing.T, srv *httptest.Server) provider.Provider {
	p, err := New(Config{ID: "fs", Name: "Fool", BaseURL: srv.URL}, provider.Env{})
	require.NoError(t, err)
	return p
}

func TestSearchAndBrowse(t *testing.T) {
	srv := site(t)
	defer srv.Close()
	p := newSite(t, srv)

	results, err := p.Search(context.Background(), "kaguya")
	require.NoError(t, err)
	assert.Equal(t, []core.SearchResult{{Slug: "kaguya", Name: "Kaguya-sama", Cover: srv.URL + "/content/kaguya.png"}}, results)

	browse, err := p.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, browse, 1)
}

func TestMangaDataPassesAdultGate(t *testing.T) {
	srv := site(t)
	defer srv.Close()

	m, err := newSite(t, srv).MangaData(context.Background(), core.MangaData{Slug: "kaguya"})
	require.NoError(t, err)
	assert.Equal(t, "Kaguya-sama", m.Name)
	assert.Equal(t, []string{"Aka Akasaka"}, m.Authors)
	assert.Equal(t, "Love is war.", m.Synopsis)
	assert.Equal(t, []string{"Scan Team"}, m.Scanlators)
	assert.Equal(t, core.StatusUnknown, m.Status)

	require.Len(t, m.Chapters, 2)
	assert.Equal(t, "en-0-1", m.Chapters[0].Slug)
	assert.Equal(t, "2024-03-01", m.Chapters[0].Date.Format("2006-01-02"))
	assert.Equal(t, []string{"Scan Team"}, m.Chapters[1].Scanlators)
}

func TestChapterData(t *testing.T) {
	srv := site(t)
	defer srv.Close()
	p := newSite(t, srv)

	pages, err := p.ChapterData(context.Background(), core.ChapterRef{SeriesSlug: "kaguya", ChapterSlug: "en-0-1"})
	require.NoError(t, err)
	assert.Equal(t, []core.Page{
		{Slug: "01.jpg", ImageURL: "https://cdn.example/01.jpg"},
		{Slug: "02.jpg", ImageURL: "https://cdn.example/02.jpg"},
	}, pages)

	pages, err = p.ChapterData(context.Background(), core.ChapterRef{SeriesSlug: "kaguya", ChapterSlug: "en-0-2"})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, srv.URL+"/content/comics/kaguya/2/01.png", pages[0].ImageURL)
}
