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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDateAt(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2023-11-05", day(2023, 11, 5)},
		{"November 5, 2023", day(2023, 11, 5)},
		{"Nov 5th, 2023", day(2023, 11, 5)},
		{"5 novembre 2023", day(2023, 11, 5)},
		{"5 Dezember 2023", day(2023, 12, 5)},
		{"12 Agosto 2022", day(2022, 8, 12)},
		{"2024-01-02T23:10:00Z", day(2024, 1, 2)},
		{"yesterday", day(2024, 3, 9)},
		{"3 days ago", day(2024, 3, 7)},
		{"an hour ago", day(2024, 3, 10)},
		{"2 weeks ago", day(2024, 2, 25)},
		{"1 month ago", day(2024, 2, 10)},
		{"il y a 2 jours", day(2024, 3, 8)},
		{"hace 1 año", day(2023, 3, 10)},
	}

	for _, tc := range cases {
		got := ParseDateAt(tc.in, refNow)
		require.NotNil(t, got, tc.in)
		assert.True(t, tc.want.Equal(*got), "%s: got %s", tc.in, got)
	}
}

func TestParseDateAtUnparseableIsNil(t *testing.T) {
	assert.Nil(t, ParseDateAt("", refNow))
	assert.Nil(t, ParseDateAt("   ", refNow))
	assert.Nil(t, ParseDateAt("Chapter 12", refNow))
}

func TestParseDateAtCustomLayout(t *testing.T) {
	got := ParseDateAt("05/11/23", refNow, "02/01/06")
	require.NotNil(t, got)
	assert.True(t, day(2023, 11, 5).Equal(*got))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "One Piece", CleanText("  One\n\t Piece "))
	// decomposed e + combining acute becomes a single rune
	assert.Equal(t, "Pokémon", CleanText("Pokémon"))
	assert.Equal(t, "ab", CleanText("a\x00b"))
}

func TestCleanMultiline(t *testing.T) {
	assert.Equal(t, "first line\n\nsecond", CleanMultiline(" first   line \r\n\r\n\r\n\n second "))
}

func TestCleanListAndSplit(t *testing.T) {
	assert.Equal(t, []string{"Action", "Drama"}, CleanList([]string{" Action", "", "Drama", "Action "}))
	assert.NotNil(t, CleanList(nil))
	assert.Equal(t, []string{"A", "B", "C"}, SplitList("A, B; C", ",", ";"))
}

func TestCleanImageURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.org/1.jpg", CleanImageURL("\n\t\thttps://cdn.example.org/1.jpg\t"))
	assert.Equal(t, "https://cdn.example.org/2.jpg", CleanImageURL("data:x https://cdn.example.org/2.jpg"))
}

func TestSanitizeSegment(t *testing.T) {
	assert.Equal(t, "a_b_c", SanitizeSegment("a/b\\c"))
	assert.Equal(t, "_", SanitizeSegment(".."))
	assert.Equal(t, "_", SanitizeSegment("   "))
	assert.Equal(t, "Kimetsu no Yaiba", SanitizeSegment(" Kimetsu no Yaiba. "))
}

func TestPageFilename(t *testing.T) {
	assert.Equal(t, "001", PageFilename(0, 3))
	assert.Equal(t, "0100", PageFilename(99, 1200))
	assert.Equal(t, ".webp", ExtensionFor("image/webp; charset=binary"))
}
