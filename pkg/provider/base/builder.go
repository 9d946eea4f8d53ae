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

package base

import (
	"context"

	"Tankobon/pkg/core"
	"Tankobon/pkg/engine/network"
	"Tankobon/pkg/provider"
)

// Builder provides fluent configuration for providers
type Builder struct {
	provider *Provider
}

// New creates a builder for a source. headers are sent with every request
// of the source's client.
func New(info provider.Info, env provider.Env, headers map[string]string) *Builder {
	if info.Status == "" {
		info.Status = provider.StatusEnabled
	}
	return &Builder{provider: &Provider{
		info:   info,
		client: env.Client(headers),
		log:    env.Log(),
	}}
}

// Client exposes the session so family code can issue requests
func (b *Builder) Client() *network.Client {
	return b.provider.client
}

func (b *Builder) WithSearch(fn func(context.Context, string) ([]core.SearchResult, error)) *Builder {
	b.provider.ops.Search = fn
	b.capability(provider.CapSearch)
	return b
}

// WithBrowse marks the search operation as accepting an empty term
func (b *Builder) WithBrowse() *Builder {
	b.capability(provider.CapBrowse)
	return b
}

func (b *Builder) WithMostPopulars(fn func(context.Context) ([]core.SearchResult, error)) *Builder {
	b.provider.ops.MostPopulars = fn
	b.capability(provider.CapPopulars)
	return b
}

func (b *Builder) WithMangaData(fn func(context.Context, core.MangaData) (*core.MangaData, error)) *Builder {
	b.provider.ops.MangaData = fn
	return b
}

func (b *Builder) WithChapterData(fn func(context.Context, core.ChapterRef) ([]core.Page, error)) *Builder {
	b.provider.ops.ChapterData = fn
	return b
}

func (b *Builder) WithPageImage(fn func(context.Context, core.ChapterRef, core.Page) (*core.Image, error)) *Builder {
	b.provider.ops.PageImage = fn
	return b
}

func (b *Builder) WithMangaURL(fn func(slug, url string) string) *Builder {
	b.provider.ops.MangaURL = fn
	return b
}

// WithStatusLabels adds site specific status labels
func (b *Builder) WithStatusLabels(labels map[string]core.Status) *Builder {
	b.provider.statusLabels = labels
	return b
}

// Build returns the configured provider
func (b *Builder) Build() *Provider {
	return b.provider
}

func (b *Builder) capability(c provider.Capability) {
	if !b.provider.info.Has(c) {
		b.provider.info.Capabilities = append(b.provider.info.Capabilities, c)
	}
}
