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
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Series is a library entry. Per-series reader settings are nil when the
// global default applies.
type Series struct {
	ID               int64             `db:"id" json:"id"`
	SourceID         string            `db:"source_id" json:"source_id"`
	Slug             string            `db:"slug" json:"slug"`
	Name             string            `db:"name" json:"name"`
	URL              string            `db:"url" json:"url,omitempty"`
	Authors          StringList        `db:"authors" json:"authors"`
	Scanlators       StringList        `db:"scanlators" json:"scanlators"`
	Genres           StringList        `db:"genres" json:"genres"`
	Status           Status            `db:"status" json:"status"`
	Synopsis         string            `db:"synopsis" json:"synopsis,omitempty"`
	CoverURL         string            `db:"cover_url" json:"cover_url,omitempty"`
	CoverLocalPath   *string           `db:"cover_local_path" json:"cover_local_path,omitempty"`
	ReadingDirection *ReadingDirection `db:"reading_direction" json:"reading_direction,omitempty"`
	Scaling          *Scaling          `db:"scaling" json:"scaling,omitempty"`
	BackgroundColor  *BackgroundColor  `db:"background_color" json:"background_color,omitempty"`
	LastReadAt       *time.Time        `db:"last_read_at" json:"last_read_at,omitempty"`
	LastUpdatedAt    *time.Time        `db:"last_updated_at" json:"last_updated_at,omitempty"`
}

// Chapter is a stored chapter. Pages is nil until resolved.
type Chapter struct {
	ID                int64      `db:"id" json:"id"`
	SeriesID          int64      `db:"series_id" json:"series_id"`
	Slug              string     `db:"slug" json:"slug"`
	Title             string     `db:"title" json:"title"`
	URL               string     `db:"url" json:"url,omitempty"`
	PublishedDate     *time.Time `db:"published_date" json:"published_date,omitempty"`
	Rank              int        `db:"rank" json:"rank"`
	Pages             Pages      `db:"pages" json:"pages"`
	Downloaded        bool       `db:"downloaded" json:"downloaded"`
	Read              bool       `db:"read" json:"read"`
	LastPageReadIndex *int       `db:"last_page_read_index" json:"last_page_read_index,omitempty"`
	Scanlators        StringList `db:"scanlators" json:"scanlators,omitempty"`
}

// Resolved reports whether the page list is known
func (c *Chapter) Resolved() bool {
	return c.Pages != nil
}

// Ref builds the adapter-facing reference for this chapter
func (c *Chapter) Ref(s *Series) ChapterRef {
	return ChapterRef{
		SeriesSlug:  s.Slug,
		SeriesName:  s.Name,
		ChapterSlug: c.Slug,
		ChapterURL:  c.URL,
	}
}

// SeriesWithChapters is what the reader gets when opening a series
type SeriesWithChapters struct {
	Series
	Chapters []Chapter `json:"chapters"`
}

// StringList is stored as a JSON array
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}

func (l *StringList) Scan(src interface{}) error {
	raw, err := scanBytes(src)
	if err != nil || raw == nil {
		*l = StringList{}
		return err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode string list: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = out
	return nil
}

// Pages is stored as a JSON array, or NULL while unresolved
type Pages []Page

func (p Pages) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal([]Page(p))
	return string(b), err
}

func (p *Pages) Scan(src interface{}) error {
	raw, err := scanBytes(src)
	if err != nil || raw == nil {
		*p = nil
		return err
	}
	out := []Page{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode pages: %w", err)
	}
	*p = out
	return nil
}

func scanBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", src)
	}
}
