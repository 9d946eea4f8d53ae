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
	"strings"

	"github.com/spf13/cobra"

	"Tankobon/pkg/core"
	"Tankobon/pkg/errors"
)

var addCmd = &cobra.Command{
	Use:   "add <source> <slug>",
	Short: "Add a series to the library",
	Long: `Fetch a series from a source and store it with its chapter list.
The slug is the one shown by search. Adding a series twice is harmless.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		series, err := appEngine.AddToLibrary(ctx, args[0], core.SearchResult{Slug: args[1]})
		if err != nil {
			return err
		}
		return render(series, func() {
			out.PrintSuccess(fmt.Sprintf("Added %s (ID %d)", series.Name, series.ID))
		})
	},
}

var libraryCmd = &cobra.Command{
	Use:   "library [filter]",
	Short: "List the library",
	Long:  `List library series, most recently read first. An optional filter fuzzy-matches series names.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		series, err := appEngine.ListLibrary(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return render(series, func() {
			out.PrintLibrary(series)
		})
	},
}

var showSettings bool

var showCmd = &cobra.Command{
	Use:   "show <series-id>",
	Short: "Show a series and its chapters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		series, err := appEngine.OpenSeries(ctx, id)
		if err != nil {
			return err
		}
		size, err := appEngine.SeriesDiskUsage(ctx, id)
		if err != nil {
			return err
		}
		if !showSettings {
			return render(series, func() {
				out.PrintSeries(series)
				out.PrintDetail("Disk usage", out.FormatSize(size))
			})
		}

		rs, err := appEngine.ReaderSettings(ctx, id)
		if err != nil {
			return err
		}
		return render(map[string]interface{}{"series": series, "reader": rs}, func() {
			out.PrintSeries(series)
			out.PrintDetail("Disk usage", out.FormatSize(size))
			out.PrintSection("Reader settings")
			out.PrintReaderSettings(rs)
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <series-id>",
	Short: "Remove a series and its downloaded images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		if err := appEngine.DeleteSeries(ctx, id); err != nil {
			return err
		}
		return render(map[string]int64{"deleted": id}, func() {
			out.PrintSuccess(fmt.Sprintf("Deleted series %d", id))
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [series-id...]",
	Short: "Check series for new chapters",
	Long:  `Refresh the given series, or the whole library, from their sources. Reading progress and downloads are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		results, err := appEngine.Updates.UpdateAll(ctx, ids)
		if err != nil {
			return err
		}
		return render(results, func() {
			out.PrintUpdateResults(results)
		})
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Track(errors.ErrInvalidInput).
			WithMessagef("%q is not a valid id", s).
			AsValidation().
			Error()
	}
	return id, nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := parseID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(addCmd, libraryCmd, showCmd, deleteCmd, updateCmd)

	showCmd.Flags().BoolVar(&showSettings, "settings", false, "Also show the effective reader settings")
}

func invalid(err error) error {
	return errors.Track(errors.ErrInvalidInput).WithMessage(err.Error()).AsValidation().Error()
}
