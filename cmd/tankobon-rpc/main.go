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

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	_ "Tankobon/internal/providers" // registers the bundled sources
	"Tankobon/internal/rpc"
	"Tankobon/pkg/config"
	"Tankobon/pkg/engine"
)

var Version = "dev"

// stdio joins stdin and stdout into the connection the codec expects
type stdio struct {
	reader io.Reader
	writer io.Writer
}

func (s *stdio) Read(p []byte) (int, error)  { return s.reader.Read(p) }
func (s *stdio) Write(p []byte) (int, error) { return s.writer.Write(p) }
func (s *stdio) Close() error                { return nil }

func main() {
	app := &cli.App{
		Name:    "tankobon-rpc",
		Usage:   "Serve the Tankobon library over JSON-RPC on stdin/stdout",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Settings file (default is the user config dir)",
				EnvVars: []string{"TANKOBON_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Library and image directory",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "Enable debug logging on stderr",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"vb"},
				Usage:   "Include call chains in logged errors",
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if dir := c.String("data-dir"); dir != "" {
		if err := cfg.Set(config.KeyDataDir, dir); err != nil {
			return err
		}
	}

	appEngine, err := engine.New(engine.Options{Config: cfg})
	if err != nil {
		return err
	}
	defer appEngine.Shutdown()

	appEngine.SetDebugMode(c.Bool("debug"))
	appEngine.SetVerboseMode(c.Bool("verbose"))

	if err := appEngine.LoadProviders(); err != nil {
		// serving without every source is still useful
		appEngine.Logger.Error("Failed to load providers: %v", err)
	}

	server, err := rpc.NewServer(appEngine, Version)
	if err != nil {
		return err
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := appEngine.Start(ctx); err != nil {
		return err
	}

	appEngine.Logger.Info("Tankobon RPC server v%s started with %d sources", Version, appEngine.ProviderCount())
	// stderr does not interfere with the JSON-RPC stream
	fmt.Fprintf(os.Stderr, "Tankobon RPC v%s ready with %d sources\n", Version, appEngine.ProviderCount())

	done := make(chan struct{})
	go func() {
		server.ServeConn(&stdio{reader: bufio.NewReader(os.Stdin), writer: os.Stdout})
		close(done)
	}()

	select {
	case <-done:
		appEngine.Logger.Info("RPC connection closed")
	case <-ctx.Done():
		appEngine.Logger.Info("RPC server shutting down...")
	}
	return nil
}
