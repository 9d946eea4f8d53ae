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
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"Tankobon/pkg/errors"
)

// Parser wraps goquery document for HTML parsing
type Parser struct {
	doc  *goquery.Document
	base *url.URL
}

// Parse creates a new parser from HTML content
func Parse(content []byte) (*Parser, error) {
	return ParseReader(bytes.NewReader(content))
}

// ParseReader creates a new parser from an io.Reader
func ParseReader(r io.Reader) (*Parser, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, errors.Track(err).
			WithContext("operation", "html_parse").
			AsParser().
			Error()
	}
	return &Parser{doc: doc}, nil
}

// ParseString creates a new parser from a string
func ParseString(html string) (*Parser, error) {
	return ParseReader(strings.NewReader(html))
}

// WithBase sets the URL relative links are resolved against
func (p *Parser) WithBase(rawURL string) *Parser {
	if u, err := url.Parse(rawURL); err == nil {
		p.base = u
	}
	return p
}

// Select returns a selector for querying elements
func (p *Parser) Select(selector string) *Selector {
	return &Selector{parser: p, selection: p.doc.Find(selector), selector: selector}
}

// Find is an alias for Select
func (p *Parser) Find(selector string) *Selector {
	return p.Select(selector)
}

// Text returns all text content in the document
func (p *Parser) Text() string {
	return strings.TrimSpace(p.doc.Text())
}

// Scripts returns the bodies of inline script tags
func (p *Parser) Scripts() []string {
	var scripts []string
	p.doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if body := strings.TrimSpace(s.Text()); body != "" {
			scripts = append(scripts, body)
		}
	})
	return scripts
}

// Resolve turns ref into an absolute URL using the document base
func (p *Parser) Resolve(ref string) string {
	return resolve(p.base, ref)
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
