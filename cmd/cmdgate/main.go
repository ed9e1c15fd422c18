// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cmdgate/internal/config"
	"cmdgate/internal/metrics"
	"cmdgate/internal/tools"
)

var version = "dev"

type rootOptions struct {
	configPath string
	envFile    string
	logFile    string
	debug      bool
}

// exitError carries a process exit status without an extra message.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		return
	}
	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "cmdgate",
		Short:         "Guarded command execution for LLM tool calls",
		Long:          "cmdgate validates tool calls, runs ls and git without a shell under a timeout, and filters their output.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "Configuration file (JSON or YAML)")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before the configuration")
	flags.StringVar(&opts.logFile, "log-file", "", "Log file path (stderr when empty)")
	flags.BoolVarP(&opts.debug, "debug", "d", false, "Enable debug mode")

	root.AddCommand(
		newServeCmd(opts),
		newCallCmd(opts),
		newBatchCmd(opts),
		newReplCmd(opts),
		newToolsCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

func initLogger(debug bool, logFilePath string) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output io.Writer = os.Stderr
	closer := func() {}
	if logFilePath != "" {
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closer, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		closer = func() { file.Close() }
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), closer, nil
}

// app is what every subcommand needs: configuration, registry and metrics.
type app struct {
	cfg      *config.Config
	registry *tools.Registry
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	close    func()
}

func newApp(opts *rootOptions) (*app, error) {
	logger, closeLog, err := initLogger(opts.debug, opts.logFile)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*app, error) {
		closeLog()
		return nil, err
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return fail(err)
	}
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fail(fmt.Errorf("failed to load config: %w", err))
	}
	toolsCfg, err := cfg.ToolsConfig()
	if err != nil {
		return fail(err)
	}

	m := metrics.New()
	registry := tools.NewRegistry(toolsCfg, tools.WithLogger(logger), tools.WithObserver(m))
	for _, warning := range cfg.Validate(registry) {
		logger.Warn().Str("field", warning.Field).Msg(warning.Message)
	}
	logger.Debug().
		Str("config", opts.configPath).
		Strs("blocked_paths", toolsCfg.Blocked.Blocked()).
		Strs("tools", registry.GetToolNames()).
		Msg("configuration loaded")

	return &app{cfg: cfg, registry: registry, metrics: m, logger: logger, close: closeLog}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "cmdgate", version)
		},
	}
}
