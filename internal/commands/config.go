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

	"github.com/spf13/cobra"

	"Tankobon/pkg/config"
	"Tankobon/pkg/core"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make(map[string]string)
		rows := make([][]string, 0, len(config.Keys()))
		for _, key := range config.Keys() {
			value, err := appEngine.Config.Get(key)
			if err != nil {
				return err
			}
			values[key] = value
			rows = append(rows, []string{key, value})
		}
		return render(values, func() {
			out.PrintHeader(fmt.Sprintf("Settings (%s)", appEngine.Config.Path()))
			out.PrintTable([]string{"KEY", "VALUE"}, rows)
		})
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := appEngine.Config.Get(args[0])
		if err != nil {
			return err
		}
		return render(map[string]string{args[0]: value}, func() {
			fmt.Fprintln(out.Writer, value)
		})
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting and save it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appEngine.Config
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		value, _ := cfg.Get(args[0])
		return render(map[string]string{args[0]: value}, func() {
			out.PrintSuccess(fmt.Sprintf("%s = %s", args[0], value))
		})
	},
}

var (
	seriesDirection  string
	seriesScaling    string
	seriesBackground string
	seriesClear      bool
)

var configSeriesCmd = &cobra.Command{
	Use:   "series <series-id>",
	Short: "Override reader settings for one series",
	Long: `Set the reading direction, scaling or background of one series. Settings
that are not given keep their current override. --clear drops every override so
the global settings apply again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		var overrides core.SeriesSettings
		if !seriesClear {
			series, err := appEngine.Store.GetSeries(ctx, id)
			if err != nil {
				return err
			}
			overrides = core.SeriesSettings{
				ReadingDirection: series.ReadingDirection,
				Scaling:          series.Scaling,
				BackgroundColor:  series.BackgroundColor,
			}
		}

		if seriesDirection != "" {
			d, err := core.ParseReadingDirection(seriesDirection)
			if err != nil {
				return invalid(err)
			}
			overrides.ReadingDirection = &d
		}
		if seriesScaling != "" {
			s, err := core.ParseScaling(seriesScaling)
			if err != nil {
				return invalid(err)
			}
			overrides.Scaling = &s
		}
		if seriesBackground != "" {
			b, err := core.ParseBackgroundColor(seriesBackground)
			if err != nil {
				return invalid(err)
			}
			overrides.BackgroundColor = &b
		}

		if err := appEngine.SetSeriesSettings(ctx, id, overrides); err != nil {
			return err
		}
		rs, err := appEngine.ReaderSettings(ctx, id)
		if err != nil {
			return err
		}
		return render(rs, func() {
			out.PrintReaderSettings(rs)
		})
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configSeriesCmd)

	configSeriesCmd.Flags().StringVar(&seriesDirection, "reading-direction", "", "right-to-left or left-to-right")
	configSeriesCmd.Flags().StringVar(&seriesScaling, "scaling", "", "screen, width or height")
	configSeriesCmd.Flags().StringVar(&seriesBackground, "background-color", "", "white or black")
	configSeriesCmd.Flags().BoolVar(&seriesClear, "clear", false, "Drop every override of the series first")
}
