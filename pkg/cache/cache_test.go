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

package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
)

var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func key(index int) PageKey {
	return PageKey{SourceID: "mock", SeriesSlug: "one-piece", ChapterSlug: "1", Index: index, Total: 3}
}

func TestPathFor(t *testing.T) {
	c := New("/data")
	assert.Equal(t, filepath.Join("/data", "mock", "one-piece", "1", "002.jpg"), c.PathFor(key(1), ".jpg"))

	k := PageKey{SourceID: "mock", SeriesSlug: "a/b", ChapterSlug: "..", Index: 0, Total: 1, Name: "scan.png"}
	assert.Equal(t, filepath.Join("/data", "mock", "a_b", "_", "scan.webp"), c.PathFor(k, ".webp"))
}

func TestPutAndLookup(t *testing.T) {
	c := New(t.TempDir())
	ctx := context.Background()

	assert.False(t, c.Has(key(0)))
	_, err := c.Lookup(key(0))
	assert.True(t, errors.IsCacheMiss(err))

	path, err := c.Put(ctx, key(0), pngBytes)
	require.NoError(t, err)
	assert.Equal(t, c.PathFor(key(0), ".png"), path)
	assert.True(t, c.Has(key(0)))

	got, err := c.Lookup(key(0))
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, data)

	// idempotent: a second put keeps the first file
	again, err := c.Put(ctx, key(0), jpegBytes)
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestPutRejectsNonImage(t *testing.T) {
	c := New(t.TempDir())
	_, err := c.Put(context.Background(), key(0), []byte("<html>Just a moment...</html>"))
	assert.ErrorIs(t, err, errors.ErrNotImage)
	assert.False(t, c.Has(key(0)))
}

func TestTempFilesAreInvisible(t *testing.T) {
	c := New(t.TempDir())
	dir := c.ChapterDir("mock", "one-piece", "1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, tempPrefix+"abc"), pngBytes[:4], 0o644))

	assert.False(t, c.Has(key(0)))

	_, err := c.Put(context.Background(), key(0), pngBytes)
	require.NoError(t, err)
	assert.True(t, c.Has(key(0)))
}

func TestCover(t *testing.T) {
	c := New(t.TempDir())
	ctx := context.Background()

	_, err := c.CoverPath("mock", "one-piece")
	assert.True(t, errors.IsCacheMiss(err))

	first, err := c.PutCover(ctx, "mock", "one-piece", pngBytes)
	require.NoError(t, err)
	assert.Equal(t, "cover.png", filepath.Base(first))

	second, err := c.PutCover(ctx, "mock", "one-piece", jpegBytes)
	require.NoError(t, err)
	assert.Equal(t, "cover.jpg", filepath.Base(second))
	assert.NoFileExists(t, first)

	got, err := c.CoverPath("mock", "one-piece")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestPurgeAndSize(t *testing.T) {
	root := t.TempDir()
	c := New(root)
	ctx := context.Background()

	size, err := c.FolderSize("mock", "one-piece")
	require.NoError(t, err)
	assert.Zero(t, size)

	// files outside the series tree and half-written pages do not count
	require.NoError(t, os.WriteFile(filepath.Join(root, "library.db"), make([]byte, 4096), 0o644))
	other := key(0)
	other.SeriesSlug = "berserk"
	_, err = c.Put(ctx, other, pngBytes)
	require.NoError(t, err)
	chapterDir := c.ChapterDir("mock", "one-piece", "1")
	require.NoError(t, os.MkdirAll(chapterDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(chapterDir, tempPrefix+"partial"), make([]byte, 512), 0o644))

	for i := 0; i < 3; i++ {
		_, err := c.Put(ctx, key(i), pngBytes)
		require.NoError(t, err)
	}
	_, err = c.PutCover(ctx, "mock", "one-piece", jpegBytes)
	require.NoError(t, err)

	size, err = c.FolderSize("mock", "one-piece")
	require.NoError(t, err)
	assert.EqualValues(t, 3*len(pngBytes)+len(jpegBytes), size)

	require.NoError(t, c.PurgeChapter("mock", "one-piece", "1"))
	assert.False(t, c.Has(key(0)))
	_, err = c.CoverPath("mock", "one-piece")
	require.NoError(t, err, "purging a chapter keeps the cover")

	require.NoError(t, c.PurgeSeries("mock", "one-piece"))
	assert.NoDirExists(t, c.SeriesDir("mock", "one-piece"))

	// purging something never cached is fine
	require.NoError(t, c.PurgeSeries("mock", "missing"))
}

func TestPutCancelled(t *testing.T) {
	c := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Put(ctx, key(0), pngBytes)
	assert.True(t, errors.IsCancelled(err))
}

func TestKeyFor(t *testing.T) {
	s := &core.Series{SourceID: "mock", Slug: "one-piece"}
	c := &core.Chapter{Slug: "1", Pages: core.Pages{{}, {LocalName: "credits.png"}}}

	assert.Equal(t, "001", KeyFor(s, c, 0).FileName())
	assert.Equal(t, "credits", KeyFor(s, c, 1).FileName())
	assert.Equal(t, 2, KeyFor(s, c, 0).Total)
}
