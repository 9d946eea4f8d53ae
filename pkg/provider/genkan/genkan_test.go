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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/provider"
)

const listing = `<div class="row">
<div class="list-item rounded">
  <div class="media"><a class="media-content" href="/comics/1234-blade" style="background-image:url('/storage/blade.jpg')"></a></div>
  <div class="list-content"><a class="list-title" href="/comics/1234-blade">Blade Dance</a></div>
</div></div>`

const detail = `<html><body><div id="content">
<div class="media-comic-card"><a class="media-content" style="background-image: url(/storage/blade.jpg)"></a></div>
<div class="card-body">
  <h5 class="text-highlight">Blade Dance</h5>
  <div class="text-muted">Swords everywhere.</div>
  <div class="row"><div class="col">Status: Ongoing</div><div class="col">Author: Ana, Bo</div></div>
  <a class="badge">Action</a><a class="badge">Drama</a>
</div>
<div class="list list-row">
  <div class="list-item"><a class="item-author" href="/comics/1234-blade/1/2">Chapter 2</a><a class="item-company">2 days ago</a></div>
  <div class="list-item"><a class="item-author" href="/comics/1234-blade/1/1">Chapter 1</a><a class="item-company">Jan 3, 2024</a></div>
</div></div></body></html>`

const reader = `<html><body><script>
window.chapterPages = ["/storage/blade/1/2/01.jpg","https:\/\/cdn.example\/02.jpg"];
window.nextChapter = null;
</script></body></html>`

func site(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/comics", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "blade", r.URL.Query().Get("query"))
		_, _ = w.Write([]byte(listing))
	})
	mux.HandleFunc("/comics/1234-blade", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(detail))
	})
	mux.HandleFunc("/comics/1234-blade/1/2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(reader))
	})
	mux.HandleFunc("/comics/1234-blade/1/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>nothing</body></html>"))
	})
	return httptest.NewServer(mux)
}

func newSite(t *testing.T, srv *httptest.Server) provider.Provider {
	p, err := New(Config{ID: "gk", Name: "Genkan", BaseURL: srv.URL}, provider.Env{})
	require.NoError(t, err)
	return p
}

func TestSearch(t *testing.T) {
	srv := site(t)
	defer srv.Close()

	results, err := newSite(t, srv).Search(context.Background(), "blade")
	require.NoError(t, err)
	assert.Equal(t, []core.SearchResult{{Slug: "1234-blade", Name: "Blade Dance", Cover: srv.URL + "/storage/blade.jpg"}}, results)
}

func TestMangaData(t *testing.T) {
	srv := site(t)
	defer srv.Close()

	m, err := newSite(t, srv).MangaData(context.Background(), core.MangaData{Slug: "1234-blade"})
	require.NoError(t, err)
	assert.Equal(t, "Blade Dance", m.Name)
	assert.Equal(t, "Swords everywhere.", m.Synopsis)
	assert.Equal(t, core.StatusOngoing, m.Status)
	assert.Equal(t, []string{"Ana", "Bo"}, m.Authors)
	assert.Equal(t, []string{"Action", "Drama"}, m.Genres)
	assert.Equal(t, srv.URL+"/storage/blade.jpg", m.CoverURL)

	require.Len(t, m.Chapters, 2)
	assert.Equal(t, "1-1", m.Chapters[0].Slug)
	assert.Equal(t, "2024-01-03", m.Chapters[0].Date.Format("2006-01-02"))
	assert.Equal(t, "1-2", m.Chapters[1].Slug)
	assert.NotNil(t, m.Chapters[1].Date)
}

func TestChapterData(t *testing.T) {
	srv := site(t)
	defer srv.Close()
	p := newSite(t, srv)

	pages, err := p.ChapterData(context.Background(), core.ChapterRef{SeriesSlug: "1234-blade", ChapterSlug: "1-2"})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, srv.URL+"/storage/blade/1/2/01.jpg", pages[0].ImageURL)
	assert.Equal(t, "https://cdn.example/02.jpg", pages[1].ImageURL)

	_, err = p.ChapterData(context.Background(), core.ChapterRef{SeriesSlug: "1234-blade", ChapterSlug: "1-1"})
	assert.True(t, errors.Is(err, errors.ErrParse))
}
