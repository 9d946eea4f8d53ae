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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"Tankobon/pkg/cli"
	"Tankobon/pkg/config"
	"Tankobon/pkg/engine"
	"Tankobon/pkg/engine/search"
	"Tankobon/pkg/util"
)

var (
	appEngine      *engine.Engine
	out            *cli.Formatter
	maxConcurrency int
	version        = "dev"
	configPath     string
	debugMode      bool
	verboseErrors  bool
	apiMode        bool
	noColor        bool
	// ownEngine is set when the engine was built here rather than injected
	ownEngine bool
)

var rootCmd = &cobra.Command{
	Use:           "tankobon",
	Short:         "Tankobon is a manga reader library and downloader.",
	Long:          "Tankobon keeps a local library of manga series from online sources. It searches sources, tracks reading progress, downloads chapters for offline reading and checks the library for new chapters.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		out = cli.NewFormatterTo(cmd.OutOrStdout(), noColor || apiMode)
		if appEngine != nil {
			SetupDebugMode()
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := cfg.BindFlag(config.KeyDataDir, cmd.Root().PersistentFlags().Lookup("data-dir")); err != nil {
			return err
		}
		e, err := engine.New(engine.Options{Config: cfg})
		if err != nil {
			return err
		}
		appEngine = e
		ownEngine = true
		SetupDebugMode()

		if err := appEngine.LoadProviders(); err != nil {
			appEngine.Logger.Warn("Some sources failed to load: %v", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if appEngine != nil && ownEngine {
			if err := appEngine.Shutdown(); err != nil {
				fmt.Fprintf(os.Stderr, "Shutdown: %v\n", err)
			}
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the command line and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if apiMode {
			util.OutputJSON(os.Stdout, nil, err)
		} else if appEngine != nil {
			fmt.Fprintln(os.Stderr, appEngine.FormatError(err))
		} else {
			fmt.Fprintf(os.Stderr, "Oops. An error while executing Tankobon: %v\n", err)
		}
		os.Exit(1)
	}
}

// SetupDebugMode applies the --debug and --verbose-errors flags
func SetupDebugMode() {
	appEngine.SetDebugMode(debugMode)
	appEngine.SetVerboseMode(verboseErrors)
}

// commandContext is cancelled by Ctrl-C and carries the concurrency flag
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return search.WithConcurrency(ctx, maxConcurrency), cancel
}

// render prints data as JSON in API mode and calls human otherwise
func render(data interface{}, human func()) error {
	if apiMode {
		return util.OutputJSON(out.Writer, data, nil)
	}
	human()
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default is the user config dir)")
	rootCmd.PersistentFlags().String("data-dir", "", "Library and image directory (overrides the data-dir setting)")
	rootCmd.PersistentFlags().IntVar(&maxConcurrency, "concurrency", 5, "Maximum number of sources queried at once")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging and detailed error information")
	rootCmd.PersistentFlags().BoolVar(&verboseErrors, "verbose-errors", false, "Show function call chains in errors")
	rootCmd.PersistentFlags().BoolVar(&apiMode, "json", false, "Print machine readable JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}
