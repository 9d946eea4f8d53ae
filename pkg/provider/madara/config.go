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

import "Tankobon/pkg/core"

// Config holds configuration for Madara-based sites
type Config struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"url"`
	Language string `yaml:"language"`
	NSFW     bool   `yaml:"nsfw"`

	// MangaPath is the path segment in front of series slugs
	MangaPath string `yaml:"manga_path"`
	// DateLayout is tried before the shared date layouts
	DateLayout   string                 `yaml:"date_layout"`
	StatusLabels map[string]core.Status `yaml:"status_labels"`

	// Adult sends the interstitial cookie that unlocks adult series
	Adult bool `yaml:"adult"`
	// Scrambled sites deliver the page list as an obfuscated script blob
	Scrambled bool `yaml:"scrambled"`
	// LegacyChapters skips the ajax/chapters/ endpoint
	LegacyChapters bool `yaml:"legacy_chapters"`

	Headers map[string]string `yaml:"headers"`
}

func (c Config) withDefaults() Config {
	if c.MangaPath == "" {
		c.MangaPath = "manga"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	return c
}
