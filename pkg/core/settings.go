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

import "fmt"

// ReadingDirection decides which side advances to the next page
type ReadingDirection string

const (
	RightToLeft ReadingDirection = "right-to-left"
	LeftToRight ReadingDirection = "left-to-right"
)

// Scaling decides how a page is fit to the viewport
type Scaling string

const (
	ScaleScreen Scaling = "screen"
	ScaleWidth  Scaling = "width"
	ScaleHeight Scaling = "height"
)

type BackgroundColor string

const (
	BackgroundWhite BackgroundColor = "white"
	BackgroundBlack BackgroundColor = "black"
)

func ParseReadingDirection(s string) (ReadingDirection, error) {
	switch d := ReadingDirection(s); d {
	case RightToLeft, LeftToRight:
		return d, nil
	}
	return "", fmt.Errorf("reading direction must be %s or %s, got %q", RightToLeft, LeftToRight, s)
}

func ParseScaling(s string) (Scaling, error) {
	switch v := Scaling(s); v {
	case ScaleScreen, ScaleWidth, ScaleHeight:
		return v, nil
	}
	return "", fmt.Errorf("scaling must be screen, width or height, got %q", s)
}

func ParseBackgroundColor(s string) (BackgroundColor, error) {
	switch c := BackgroundColor(s); c {
	case BackgroundWhite, BackgroundBlack:
		return c, nil
	}
	return "", fmt.Errorf("background color must be white or black, got %q", s)
}

// ReaderSettings is what the reader applies to one series
type ReaderSettings struct {
	ReadingDirection ReadingDirection `json:"reading_direction"`
	Scaling          Scaling          `json:"scaling"`
	BackgroundColor  BackgroundColor  `json:"background_color"`
	Fullscreen       bool             `json:"fullscreen"`
}

// SeriesSettings carries per-series overrides; nil fields are left alone
type SeriesSettings struct {
	ReadingDirection *ReadingDirection `json:"reading_direction,omitempty"`
	Scaling          *Scaling          `json:"scaling,omitempty"`
	BackgroundColor  *BackgroundColor  `json:"background_color,omitempty"`
}

// Apply overlays the overrides of s on top of the global defaults
func (s *Series) Apply(defaults ReaderSettings) ReaderSettings {
	out := defaults
	if s.ReadingDirection != nil {
		out.ReadingDirection = *s.ReadingDirection
	}
	if s.Scaling != nil {
		out.Scaling = *s.Scaling
	}
	if s.BackgroundColor != nil {
		out.BackgroundColor = *s.BackgroundColor
	}
	return out
}
