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
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	spaceRun   = regexp.MustCompile(`\s+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
	embedded   = regexp.MustCompile(`https?://[^\s]+`)
)

// CleanText returns s in NFC form with whitespace collapsed and trimmed
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// CleanMultiline is CleanText for prose: line breaks survive, runs of
// blank lines shrink to one.
func CleanMultiline(s string) string {
	s = norm.NFC.String(strings.ToValidUTF8(s, ""))
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = CleanText(line)
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(s, "\n\n"))
}

// CleanList cleans every entry, dropping empties and duplicates while
// keeping order. The result is never nil.
func CleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = CleanText(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList splits a comma separated label list such as "Action, Drama"
func SplitList(s string, seps ...string) []string {
	if len(seps) == 0 {
		seps = []string{","}
	}
	for _, sep := range seps[1:] {
		s = strings.ReplaceAll(s, sep, seps[0])
	}
	return CleanList(strings.Split(s, seps[0]))
}

// CleanImageURL strips the tabs and newlines lazy-load attributes carry
// and extracts a URL that is embedded in surrounding junk.
func CleanImageURL(dirty string) string {
	dirty = strings.TrimSpace(dirty)
	if matches := embedded.FindAllString(dirty, -1); len(matches) > 0 {
		return matches[len(matches)-1]
	}
	return strings.Join(strings.Fields(dirty), "")
}
