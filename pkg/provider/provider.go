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

package provider

import (
	"context"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/logger"
	"Tankobon/pkg/engine/network"
)

// Status tells whether a source is offered to the user
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Capability is an optional feature of a source
type Capability string

const (
	CapSearch   Capability = "search"
	CapBrowse   Capability = "browse"
	CapPopulars Capability = "populars"
)

// Info describes a source
type Info struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Language     string       `json:"language"`
	NSFW         bool         `json:"nsfw"`
	Status       Status       `json:"status"`
	SiteURL      string       `json:"site_url,omitempty"`
	Capabilities []Capability `json:"capabilities"`
}

// Has reports whether the source supports c
func (i Info) Has(c Capability) bool {
	for _, have := range i.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Enabled reports whether the source may be used
func (i Info) Enabled() bool {
	return i.Status != StatusDisabled
}

// Provider defines the interface all manga sources implement. Methods
// return tracked errors and never panic.
type Provider interface {
	Info() Info

	// Search with an empty term browses when CapBrowse is set and fails
	// with a validation error otherwise.
	Search(ctx context.Context, term string) ([]core.SearchResult, error)
	// MostPopulars returns an empty list without CapPopulars.
	MostPopulars(ctx context.Context) ([]core.SearchResult, error)
	// MangaData fills a full record for initial.Slug, chapters earliest first.
	MangaData(ctx context.Context, initial core.MangaData) (*core.MangaData, error)
	ChapterData(ctx context.Context, ref core.ChapterRef) ([]core.Page, error)
	PageImage(ctx context.Context, ref core.ChapterRef, page core.Page) (*core.Image, error)
	MangaURL(slug, url string) string
}

// Env carries what every source needs at construction time
type Env struct {
	Logger logger.Logger
	HTTP   network.Options
}

// Client creates the HTTP session of one source
func (e Env) Client(headers map[string]string) *network.Client {
	opts := e.HTTP
	if e.Logger != nil && opts.Logger == nil {
		opts.Logger = e.Logger
	}
	if len(headers) > 0 {
		merged := make(map[string]string, len(opts.Headers)+len(headers))
		for k, v := range opts.Headers {
			merged[k] = v
		}
		for k, v := range headers {
			merged[k] = v
		}
		opts.Headers = merged
	}
	return network.NewClient(opts)
}

// Log returns the environment logger or a no-op one
func (e Env) Log() logger.Logger {
	if e.Logger == nil {
		return logger.Nop()
	}
	return e.Logger
}
