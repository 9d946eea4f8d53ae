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

package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/errors"
)

const chapterPage = `<html><body>
<h1 class="title">One Piece <span>ongoing</span></h1>
<a class="ch" href="/manga/one-piece/1">Chapter 1</a>
<a class="ch" href="chapter-2">Chapter 2</a>
<div class="reading-content">
  <img data-src=" /img/001.jpg ">
  <img src="data:image/gif;base64,AAAA" data-lazy-src="https://cdn.test/002.jpg">
  <img srcset="/img/003.jpg 1x, /img/003@2x.jpg 2x">
</div>
<script src="/app.js"></script>
<script>var pages = [1,2,3];</script>
</body></html>`

func parse(t *testing.T) *Parser {
	t.Helper()
	doc, err := ParseString(chapterPage)
	require.NoError(t, err)
	return doc.WithBase("https://mock.test/manga/one-piece/")
}

func TestOwnTextAndLinks(t *testing.T) {
	doc := parse(t)

	title, err := doc.Select("h1.title").First()
	require.NoError(t, err)
	assert.Equal(t, "One Piece", title.OwnText())
	assert.Equal(t, "One Piece ongoing", title.Text())

	hrefs := doc.Find("a.ch").MapString((*Element).Href)
	assert.Equal(t, []string{
		"https://mock.test/manga/one-piece/1",
		"https://mock.test/manga/one-piece/chapter-2",
	}, hrefs)
	assert.Equal(t, []string{"Chapter 1", "Chapter 2"}, doc.Find("a.ch").Texts())
	assert.Equal(t, "Chapter 2", doc.Find("a.ch").Last().Text())
}

func TestImageURL(t *testing.T) {
	urls := parse(t).Find(".reading-content img").MapString((*Element).ImageURL)
	assert.Equal(t, []string{
		"https://mock.test/img/001.jpg",
		"https://cdn.test/002.jpg",
		"https://mock.test/img/003.jpg",
	}, urls)
}

func TestMissingSelectors(t *testing.T) {
	doc := parse(t)

	_, err := doc.Select("div.none").First()
	assert.True(t, errors.Is(err, errors.ErrParse))
	assert.Nil(t, doc.Select("div.none").FirstOrNil())
	assert.Nil(t, doc.Select("div.none").Last())

	_, err = doc.MultiSelect("div.none", "span.none").First()
	assert.True(t, errors.Is(err, errors.ErrParse))

	el, err := doc.MultiSelect("div.none", "h1.title").First()
	require.NoError(t, err)
	assert.Equal(t, "One Piece", el.OwnText())
	assert.False(t, doc.MultiSelect("div.none").FirstSelector().Exists())
}

func TestScripts(t *testing.T) {
	assert.Equal(t, []string{"var pages = [1,2,3];"}, parse(t).Scripts())
}
