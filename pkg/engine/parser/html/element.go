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
	"strings"

	"github.com/PuerkitoBio/goquery"

	"Tankobon/pkg/util"
)

// Element wraps a goquery selection for easier access
type Element struct {
	selection *goquery.Selection
	parser    *Parser
}

// Text returns the text content of the element
func (e *Element) Text() string {
	return strings.TrimSpace(e.selection.Text())
}

// OwnText returns the text of the element without its children
func (e *Element) OwnText() string {
	return strings.TrimSpace(e.selection.Clone().Children().Remove().End().Text())
}

// HTML returns the inner HTML content of the element
func (e *Element) HTML() string {
	html, _ := e.selection.Html()
	return html
}

// Attr returns an attribute value
func (e *Element) Attr(name string) (string, bool) {
	return e.selection.Attr(name)
}

// AttrOr returns an attribute value or default if not found
func (e *Element) AttrOr(name string, defaultValue string) string {
	if val, exists := e.Attr(name); exists {
		return val
	}
	return defaultValue
}

// Find searches within this element
func (e *Element) Find(selector string) *Selector {
	return &Selector{parser: e.parser, selection: e.selection.Find(selector), selector: selector}
}

// Href returns the absolute href of a link
func (e *Element) Href() string {
	return e.parser.Resolve(e.AttrOr("href", ""))
}

// ImageURL returns the absolute image location of an img element, looking
// at the lazy-load attributes sites use before src.
func (e *Element) ImageURL() string {
	for _, attr := range []string{"data-src", "data-lazy-src", "data-original", "data-cfsrc", "src"} {
		if v := util.CleanImageURL(e.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return e.parser.Resolve(v)
		}
	}
	if srcset := e.AttrOr("data-srcset", e.AttrOr("srcset", "")); srcset != "" {
		first := strings.Fields(strings.Split(srcset, ",")[0])
		if len(first) > 0 {
			return e.parser.Resolve(first[0])
		}
	}
	return ""
}
