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
	"strings"

	"github.com/spf13/cobra"
)

var searchSource string

var searchCmd = &cobra.Command{
	Use:   "search [term...]",
	Short: "Search sources for a series",
	Long: `Search one source, or every source at once when --source is not given.
Results are ranked by how closely their names match the term.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		ctx, cancel := commandContext()
		defer cancel()

		if searchSource != "" {
			results, err := appEngine.Search(ctx, searchSource, term)
			if err != nil {
				return err
			}
			return render(results, func() {
				out.PrintSearchResults(searchSource, results)
			})
		}

		results := appEngine.SearchAll(ctx, term)
		return render(results, func() {
			out.PrintSearchAcross(term, results)
		})
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular <source>",
	Short: "List the most popular series of a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		results, err := appEngine.MostPopulars(ctx, args[0])
		if err != nil {
			return err
		}
		return render(results, func() {
			out.PrintSearchResults(args[0], results)
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(popularCmd)

	searchCmd.Flags().StringVarP(&searchSource, "source", "s", "", "Search only this source")
}
