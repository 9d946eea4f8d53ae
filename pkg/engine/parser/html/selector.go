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
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"Tankobon/pkg/errors"
)

// Selector provides methods for querying HTML elements
type Selector struct {
	parser    *Parser
	selection *goquery.Selection
	selector  string
}

func (s *Selector) wrap(sel *goquery.Selection) *Element {
	return &Element{selection: sel, parser: s.parser}
}

// First returns the first element matching the selector
func (s *Selector) First() (*Element, error) {
	if s.selection.Length() == 0 {
		return nil, errors.Track(fmt.Errorf("no elements found: %w", errors.ErrParse)).
			WithContext("selector", s.selector).
			Error()
	}
	return s.wrap(s.selection.First()), nil
}

// FirstOrNil returns the first element or nil if not found
func (s *Selector) FirstOrNil() *Element {
	if s.selection.Length() == 0 {
		return nil
	}
	return s.wrap(s.selection.First())
}

// Last returns the last element or nil if not found
func (s *Selector) Last() *Element {
	if s.selection.Length() == 0 {
		return nil
	}
	return s.wrap(s.selection.Last())
}

// AllOrEmpty returns all elements or empty slice if none found
func (s *Selector) AllOrEmpty() []*Element {
	elements := make([]*Element, 0, s.selection.Length())
	s.selection.Each(func(_ int, sel *goquery.Selection) {
		elements = append(elements, s.wrap(sel))
	})
	return elements
}

// Exists checks if any elements match the selector
func (s *Selector) Exists() bool {
	return s.selection.Length() > 0
}

// Each iterates over all matching elements
func (s *Selector) Each(fn func(int, *Element)) {
	s.selection.Each(func(i int, sel *goquery.Selection) {
		fn(i, s.wrap(sel))
	})
}

// MapString maps matching elements to strings, dropping empty results
func (s *Selector) MapString(fn func(*Element) string) []string {
	var results []string
	s.Each(func(_ int, elem *Element) {
		if result := fn(elem); result != "" {
			results = append(results, result)
		}
	})
	return results
}

// Texts returns the trimmed text of every match
func (s *Selector) Texts() []string {
	return s.MapString((*Element).Text)
}

// MultiSelector tries several CSS selectors in order
type MultiSelector struct {
	parser    *Parser
	selectors []string
}

// MultiSelect creates a selector that tries multiple CSS selectors
func (p *Parser) MultiSelect(selectors ...string) *MultiSelector {
	return &MultiSelector{parser: p, selectors: selectors}
}

// First returns the first element found using any of the selectors
func (m *MultiSelector) First() (*Element, error) {
	for _, selector := range m.selectors {
		if elem := m.parser.Select(selector).FirstOrNil(); elem != nil {
			return elem, nil
		}
	}

	return nil, errors.Track(fmt.Errorf("no elements found: %w", errors.ErrParse)).
		WithContext("selectors", m.selectors).
		Error()
}

// FirstSelector returns the matches of the first selector that matches anything
func (m *MultiSelector) FirstSelector() *Selector {
	for _, selector := range m.selectors {
		if sel := m.parser.Select(selector); sel.Exists() {
			return sel
		}
	}
	return &Selector{parser: m.parser, selection: &goquery.Selection{}}
}
