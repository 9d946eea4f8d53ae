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

// Package cache stores page images and covers on disk, one directory per
// source, series and chapter.
package cache

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
	"Tankobon/pkg/util"
)

const (
	coverName  = "cover"
	tempPrefix = ".tmp-"
)

// PageKey addresses one cached page
type PageKey struct {
	SourceID    string
	SeriesSlug  string
	ChapterSlug string
	Index       int
	Total       int
	// Name overrides the index-derived file name
	Name string
}

// KeyFor addresses page index of a resolved chapter
func KeyFor(s *core.Series, c *core.Chapter, index int) PageKey {
	key := PageKey{
		SourceID:    s.SourceID,
		SeriesSlug:  s.Slug,
		ChapterSlug: c.Slug,
		Index:       index,
		Total:       len(c.Pages),
	}
	if index >= 0 && index < len(c.Pages) {
		key.Name = c.Pages[index].LocalName
	}
	return key
}

// FileName is the page file name without extension
func (k PageKey) FileName() string {
	if k.Name != "" {
		return util.SanitizeSegment(strings.TrimSuffix(k.Name, filepath.Ext(k.Name)))
	}
	return util.PageFilename(k.Index, k.Total)
}

// Cache is the on-disk image tree rooted at a directory
type Cache struct {
	root string
}

// New returns a cache rooted at root. Nothing is created until the first
// write.
func New(root string) *Cache {
	return &Cache{root: root}
}

// Root returns the cache root directory
func (c *Cache) Root() string {
	return c.root
}

// SeriesDir is the directory holding a series' cover and chapters
func (c *Cache) SeriesDir(sourceID, seriesSlug string) string {
	return filepath.Join(c.root, util.SanitizeSegment(sourceID), util.SanitizeSegment(seriesSlug))
}

// ChapterDir is the directory holding a chapter's pages
func (c *Cache) ChapterDir(sourceID, seriesSlug, chapterSlug string) string {
	return filepath.Join(c.SeriesDir(sourceID, seriesSlug), util.SanitizeSegment(chapterSlug))
}

// PathFor returns where a page with the given extension lives. It does not
// touch the disk.
func (c *Cache) PathFor(key PageKey, ext string) string {
	return filepath.Join(c.ChapterDir(key.SourceID, key.SeriesSlug, key.ChapterSlug), key.FileName()+ext)
}

// Has reports whether a page is cached
func (c *Cache) Has(key PageKey) bool {
	_, err := c.Lookup(key)
	return err == nil
}

// Lookup returns the path of a cached page or ErrCacheMiss
func (c *Cache) Lookup(key PageKey) (string, error) {
	dir := c.ChapterDir(key.SourceID, key.SeriesSlug, key.ChapterSlug)
	return lookup(dir, key.FileName())
}

// CoverPath returns the path of a cached cover or ErrCacheMiss
func (c *Cache) CoverPath(sourceID, seriesSlug string) (string, error) {
	return lookup(c.SeriesDir(sourceID, seriesSlug), coverName)
}

// lookup finds name.<ext> in dir, whatever the extension
func lookup(dir, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return "", errors.Track(err).WithFileContext(dir, "read").AsStorage().Error()
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())) == name {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errors.Track(errors.ErrCacheMiss).
		WithContext("dir", dir).
		WithContext("name", name).
		AsCacheMiss().
		Error()
}

// Put stores page bytes and returns the final path. The bytes must be an
// image; an already cached page is left alone.
func (c *Cache) Put(ctx context.Context, key PageKey, data []byte) (string, error) {
	dir := c.ChapterDir(key.SourceID, key.SeriesSlug, key.ChapterSlug)
	return c.write(ctx, dir, key.FileName(), data)
}

// PutCover stores a series cover, replacing an older one
func (c *Cache) PutCover(ctx context.Context, sourceID, seriesSlug string, data []byte) (string, error) {
	dir := c.SeriesDir(sourceID, seriesSlug)
	if old, err := lookup(dir, coverName); err == nil {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return "", errors.Track(err).WithFileContext(old, "remove").AsStorage().Error()
		}
	}
	return c.write(ctx, dir, coverName, data)
}

// write sniffs data, then writes it to a temporary file next to its final
// name and renames it into place, so readers never see a partial file.
func (c *Cache) write(ctx context.Context, dir, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.FromContext(ctx).Error()
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", errors.Track(fmt.Errorf("%w: got %s", errors.ErrNotImage, mtype.String())).
			WithContext("name", name).
			Error()
	}

	if existing, err := lookup(dir, name); err == nil {
		return existing, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Track(err).WithFileContext(dir, "mkdir").AsStorage().Error()
	}

	final := filepath.Join(dir, name+util.ExtensionFor(mtype.String()))
	tmp := filepath.Join(dir, tempPrefix+uuid.NewString())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", errors.Track(err).WithFileContext(tmp, "create").AsStorage().Error()
	}
	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(tmp)
		return "", errors.Track(werr).WithFileContext(tmp, "write").AsStorage().Error()
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", errors.Track(err).WithFileContext(final, "rename").AsStorage().Error()
	}
	return final, nil
}

// PurgeChapter removes every cached page of a chapter
func (c *Cache) PurgeChapter(sourceID, seriesSlug, chapterSlug string) error {
	return removeAll(c.ChapterDir(sourceID, seriesSlug, chapterSlug))
}

// PurgeSeries removes the cover and every chapter of a series
func (c *Cache) PurgeSeries(sourceID, seriesSlug string) error {
	return removeAll(c.SeriesDir(sourceID, seriesSlug))
}

func removeAll(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return errors.Track(err).WithFileContext(dir, "remove").AsStorage().Error()
	}
	return nil
}

// FolderSize returns the bytes a series uses on disk: its cover and every
// cached page. Temporary files of writes in flight are not counted.
func (c *Cache) FolderSize(sourceID, seriesSlug string) (int64, error) {
	dir := c.SeriesDir(sourceID, seriesSlug)
	var total int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, errors.Track(err).WithFileContext(dir, "walk").AsStorage().Error()
	}
	return total, nil
}
