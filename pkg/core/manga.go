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

package core

import (
	"fmt"
	"strings"
	"time"

	"Tankobon/pkg/util"
)

// SearchResult is one entry of a source listing
type SearchResult struct {
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Cover string `json:"cover,omitempty"`
}

// MangaData is the full record a source returns for one series. Chapters
// are in reader order, earliest first.
type MangaData struct {
	Slug       string        `json:"slug"`
	Name       string        `json:"name"`
	URL        string        `json:"url,omitempty"`
	Authors    []string      `json:"authors"`
	Scanlators []string      `json:"scanlators"`
	Genres     []string      `json:"genres"`
	Status     Status        `json:"status"`
	Synopsis   string        `json:"synopsis,omitempty"`
	CoverURL   string        `json:"cover,omitempty"`
	Chapters   []ChapterData `json:"chapters"`
}

// ChapterData is a chapter as listed by a source
type ChapterData struct {
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	URL        string     `json:"url,omitempty"`
	Date       *time.Time `json:"date,omitempty"`
	Scanlators []string   `json:"scanlators,omitempty"`
}

// ChapterRef addresses a chapter when asking a source for its pages
type ChapterRef struct {
	SeriesSlug  string
	SeriesName  string
	ChapterSlug string
	ChapterURL  string
}

// Page describes a single image of a chapter. Slug is opaque to everything
// but the source; ImageURL may be empty when the source resolves it late.
type Page struct {
	Slug      string `json:"slug,omitempty"`
	ImageURL  string `json:"image,omitempty"`
	LocalName string `json:"local,omitempty"`
}

// Image is a fetched page or cover
type Image struct {
	Data     []byte
	MimeType string
	Name     string
}

// Normalize cleans a record in place: strings become NFC with collapsed
// whitespace, nil lists become empty, unknown status labels become
// StatusUnknown and chapters with a duplicate slug are dropped.
func (m *MangaData) Normalize() {
	m.Name = util.CleanText(m.Name)
	m.Synopsis = util.CleanMultiline(m.Synopsis)
	m.Authors = util.CleanList(m.Authors)
	m.Scanlators = util.CleanList(m.Scanlators)
	m.Genres = util.CleanList(m.Genres)
	if !m.Status.Valid() {
		m.Status = ParseStatus(string(m.Status))
	}

	seen := make(map[string]struct{}, len(m.Chapters))
	chapters := m.Chapters[:0]
	for _, ch := range m.Chapters {
		ch.Slug = strings.TrimSpace(ch.Slug)
		if _, dup := seen[ch.Slug]; dup {
			continue
		}
		seen[ch.Slug] = struct{}{}
		ch.Title = util.CleanText(ch.Title)
		if ch.Title == "" {
			ch.Title = ch.Slug
		}
		ch.Scanlators = util.CleanList(ch.Scanlators)
		chapters = append(chapters, ch)
	}
	m.Chapters = chapters
}

// Validate checks the invariants a record must hold before it is stored
func (m *MangaData) Validate() error {
	if strings.TrimSpace(m.Slug) == "" {
		return fmt.Errorf("series slug is empty")
	}
	if m.Name == "" {
		return fmt.Errorf("series %q has no name", m.Slug)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("series %q has status %q", m.Slug, m.Status)
	}
	seen := make(map[string]struct{}, len(m.Chapters))
	for i, ch := range m.Chapters {
		if ch.Slug == "" {
			return fmt.Errorf("chapter %d of %q has no slug", i, m.Slug)
		}
		if _, dup := seen[ch.Slug]; dup {
			return fmt.Errorf("chapter slug %q appears twice in %q", ch.Slug, m.Slug)
		}
		seen[ch.Slug] = struct{}{}
	}
	return nil
}
