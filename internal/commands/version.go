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
	"runtime"

	"github.com/spf13/cobra"

	"Tankobon/pkg/engine/logger"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display version information for Tankobon, including the data directory and log file location.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := map[string]string{
			"version":    version,
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"data_dir":   appEngine.Config.Settings().DataDir,
		}
		if svc, ok := appEngine.Logger.(*logger.Service); ok {
			info["log_file"] = svc.LogFile()
		}
		return render(info, func() {
			out.PrintVersionInfo(info["version"], info["go_version"], info["os"], info["arch"], info["data_dir"], info["log_file"])
		})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
