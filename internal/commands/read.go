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

package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"Tankobon/pkg/errors"
)

var (
	readOffline bool
	readReset   bool
)

type pageView struct {
	ChapterID int64  `json:"chapter_id"`
	Page      int    `json:"page"`
	Pages     int    `json:"pages"`
	Path      string `json:"path"`
}

var readCmd = &cobra.Command{
	Use:   "read <chapter-id> [page]",
	Short: "Open a chapter page",
	Long: `Fetch a page of a chapter into the image cache, print its path and record it as
the reading position. Pages are numbered from 1. Without a page number reading
resumes where it stopped. With --offline only cached pages are opened.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		chapterID, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		if readReset {
			if err := appEngine.ResetChapter(ctx, chapterID); err != nil {
				return err
			}
			return render(map[string]int64{"reset": chapterID}, func() {
				out.PrintSuccess(fmt.Sprintf("Chapter %d reset", chapterID))
			})
		}

		chapter, err := appEngine.Store.GetChapter(ctx, chapterID)
		if err != nil {
			return err
		}
		if !chapter.Resolved() && !readOffline {
			if chapter, err = appEngine.ResolvePages(ctx, chapterID); err != nil {
				return err
			}
		}

		index := 0
		if len(args) == 2 {
			page, err := strconv.Atoi(args[1])
			if err != nil || page < 1 {
				return errors.Track(errors.ErrInvalidInput).
					WithMessagef("%q is not a page number", args[1]).
					AsValidation().
					Error()
			}
			index = page - 1
		} else if chapter.LastPageReadIndex != nil {
			index = *chapter.LastPageReadIndex
		}

		path, err := appEngine.FetchPage(ctx, chapterID, index, !readOffline)
		if err != nil {
			return err
		}
		if err := appEngine.SetReadProgress(ctx, chapterID, index); err != nil {
			return err
		}

		view := pageView{ChapterID: chapterID, Page: index + 1, Pages: len(chapter.Pages), Path: path}
		return render(view, func() {
			out.PrintDetail(fmt.Sprintf("Page %d/%d", view.Page, view.Pages), out.FormatPath(path))
		})
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().BoolVar(&readOffline, "offline", false, "Only open pages already in the cache")
	readCmd.Flags().BoolVar(&readReset, "reset", false, "Forget the chapter's pages, images and reading position")
}
