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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"Tankobon/pkg/core"
)

var (
	downloadSeries int64
	downloadDetach bool
)

var downloadCmd = &cobra.Command{
	Use:   "download [chapter-id...]",
	Short: "Download chapters for offline reading",
	Long: `Queue chapters for download and process the queue until they are done.
With --series every chapter of a series is queued. Without arguments the queue
left by earlier runs is processed. Interrupting keeps unfinished chapters queued.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		if downloadSeries > 0 {
			series, err := appEngine.OpenSeries(ctx, downloadSeries)
			if err != nil {
				return err
			}
			for _, c := range series.Chapters {
				ids = append(ids, c.ID)
			}
		}

		if downloadDetach {
			tasks, err := appEngine.EnqueueDownload(ctx, ids...)
			if err != nil {
				return err
			}
			return render(tasks, func() {
				out.PrintInfo(fmt.Sprintf("%d chapter(s) queued", len(tasks)))
			})
		}

		results, err := runDownloads(ctx, ids)
		if err != nil {
			return err
		}
		return render(results, func() {
			for _, ev := range results {
				switch ev.Kind {
				case core.EventCompleted:
					out.PrintSuccess(fmt.Sprintf("Chapter %d downloaded", ev.ChapterID))
				case core.EventFailed:
					out.PrintError(fmt.Sprintf("Chapter %d failed at %d%%: %s", ev.ChapterID, ev.Percent, ev.Err))
				case core.EventCancelled:
					out.PrintWarning(fmt.Sprintf("Chapter %d cancelled", ev.ChapterID))
				}
			}
		})
	},
}

// runDownloads enqueues ids, starts the worker and blocks until every
// queued task has finished or ctx is cancelled. It returns the final event
// of each task.
func runDownloads(ctx context.Context, ids []int64) ([]core.DownloadEvent, error) {
	events := make(chan core.DownloadEvent, 64)
	done := make(chan struct{})
	unsubscribe := appEngine.SubscribeDownloads(func(ev core.DownloadEvent) {
		select {
		case events <- ev:
		case <-done:
		}
	})
	defer unsubscribe()
	defer close(done)

	if _, err := appEngine.EnqueueDownload(ctx, ids...); err != nil {
		return nil, err
	}
	queue, err := appEngine.ListDownloads(ctx)
	if err != nil {
		return nil, err
	}
	waiting := make(map[int64]int, len(queue))
	for _, t := range queue {
		if t.Status != core.DownloadError {
			waiting[t.ChapterID] = t.Percent
		}
	}
	if len(waiting) == 0 {
		return nil, nil
	}
	if err := appEngine.Start(ctx); err != nil {
		return nil, err
	}

	bar := newDownloadBar(len(waiting))
	defer bar.Finish()

	var finished []core.DownloadEvent
	for len(waiting) > 0 {
		select {
		case <-ctx.Done():
			return finished, ctx.Err()
		case ev := <-events:
			if _, ok := waiting[ev.ChapterID]; !ok {
				continue
			}
			switch ev.Kind {
			case core.EventProgress, core.EventStarted:
				waiting[ev.ChapterID] = ev.Percent
				bar.Describe(fmt.Sprintf("chapter %d", ev.ChapterID))
			case core.EventCompleted, core.EventFailed, core.EventCancelled:
				delete(waiting, ev.ChapterID)
				finished = append(finished, ev)
			}
			bar.Set(100*len(finished) + sumPercent(waiting))
		}
	}
	return finished, nil
}

func sumPercent(waiting map[int64]int) int {
	total := 0
	for _, p := range waiting {
		total += p
	}
	return total
}

func newDownloadBar(chapters int) *progressbar.ProgressBar {
	var w io.Writer = os.Stderr
	if apiMode {
		w = io.Discard
	}
	return progressbar.NewOptions(chapters*100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(!noColor),
	)
}

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List the download queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		tasks, err := appEngine.ListDownloads(ctx)
		if err != nil {
			return err
		}
		return render(tasks, func() {
			out.PrintDownloads(tasks)
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <chapter-id>",
	Short: "Remove a chapter from the download queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		if err := appEngine.CancelDownload(ctx, id); err != nil {
			return err
		}
		return render(map[string]int64{"cancelled": id}, func() {
			out.PrintSuccess(fmt.Sprintf("Download of chapter %d cancelled", id))
		})
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <chapter-id>",
	Short: "Requeue a failed download",
	Long:  `Mark a failed download pending again. It runs with the next download command.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		if err := appEngine.RetryDownload(ctx, id); err != nil {
			return err
		}
		return render(map[string]int64{"retried": id}, func() {
			out.PrintSuccess(fmt.Sprintf("Chapter %d queued again", id))
		})
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd, downloadsCmd, cancelCmd, retryCmd)

	downloadCmd.Flags().Int64Var(&downloadSeries, "series", 0, "Queue every chapter of this series")
	downloadCmd.Flags().BoolVar(&downloadDetach, "detach", false, "Only queue the chapters, do not wait")
}
