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
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"Tankobon/pkg/errors"
)

// ScriptValue finds `name = <literal>` in inline javascript and returns
// the literal. Arrays, objects and quoted strings are supported.
func ScriptValue(script, name string) (string, bool) {
	re := regexp.MustCompile(`(?:^|[^\w$])` + regexp.QuoteMeta(name) + `\s*=\s*`)
	loc := re.FindStringIndex(script)
	if loc == nil {
		return "", false
	}
	rest := script[loc[1]:]
	if rest == "" {
		return "", false
	}

	switch rest[0] {
	case '[', '{':
		end := matchBracket(rest)
		if end < 0 {
			return "", false
		}
		return rest[:end+1], true
	case '"', '\'':
		quote := rest[0]
		for i := 1; i < len(rest); i++ {
			switch rest[i] {
			case '\\':
				i++
			case quote:
				return rest[1:i], true
			}
		}
		return "", false
	default:
		end := strings.IndexAny(rest, ";\n")
		if end < 0 {
			end = len(rest)
		}
		return strings.TrimSpace(rest[:end]), true
	}
}

// matchBracket returns the index of the bracket closing s[0], skipping
// brackets inside string literals
func matchBracket(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// XORBase64 decodes a base64 blob and XORs it with the cycled key
func XORBase64(blob, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.Track(fmt.Errorf("%w: empty scramble key", errors.ErrParse)).Error()
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, errors.Track(fmt.Errorf("%w: %v", errors.ErrParse, err)).Error()
	}
	for i := range data {
		data[i] ^= key[i%len(key)]
	}
	return data, nil
}
