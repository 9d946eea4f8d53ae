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

package util

import (
	"fmt"
	"strconv"
	"strings"
)

// SanitizeSegment makes s safe to use as a single path segment. It never
// returns an empty string, ".", "..", or something containing a separator.
func SanitizeSegment(s string) string {
	s = CleanText(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	s = strings.Trim(s, " .")

	if s == "" {
		return "_"
	}

	const maxLength = 120
	if len(s) > maxLength {
		// cut on a rune boundary
		cut := maxLength
		for cut > 0 && !utf8Start(s[cut]) {
			cut--
		}
		s = strings.TrimRight(s[:cut], " .")
	}
	return s
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}

// PageFilename returns the zero-padded 1-based name of page index out of
// total pages, without extension.
func PageFilename(index, total int) string {
	digits := len(strconv.Itoa(total))
	if digits < 3 {
		digits = 3
	}
	return fmt.Sprintf("%0*d", digits, index+1)
}

// ExtensionFor maps an image mime type to a file extension with a dot
func ExtensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/avif":
		return ".avif"
	case "image/bmp":
		return ".bmp"
	default:
		return ".img"
	}
}
