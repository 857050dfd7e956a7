// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/LogicGraph/pkg/logging"
	"github.com/AleutianAI/LogicGraph/services/diagram/config"
	"github.com/AleutianAI/LogicGraph/services/diagram/graph"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess  = 0 // Operation completed successfully
	CLIExitFindings = 1 // Operation completed with findings
	CLIExitError    = 2 // Operation failed
)

// errFindings marks a command that ran but found problems. Its output has
// already been written.
var errFindings = errors.New("problems found")

// app holds global flags and state shared by subcommands.
type app struct {
	configPath string
	logLevel   string
	jsonLogs   bool
	jsonOut    bool

	cfg    config.Config
	logger *logging.Logger

	out    io.Writer
	errOut io.Writer
}

// run executes the CLI with args and returns the process exit code.
func run(ctx context.Context, args []string, out, errOut io.Writer) int {
	a := &app{out: out, errOut: errOut}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if a.logger != nil {
		_ = a.logger.Close()
	}

	switch {
	case err == nil:
		return CLIExitSuccess
	case errors.Is(err, errFindings):
		return CLIExitFindings
	default:
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return CLIExitError
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "logicgraph",
		Short: "Inspect, query and serve node-graph documents",
		Long: `logicgraph loads node-graph documents (nodes with typed ports joined by
directed edges), answers spatial queries against them and serves them over
HTTP with a websocket event stream.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.BoolVar(&a.jsonLogs, "json-logs", false, "write logs as JSON")
	flags.BoolVar(&a.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		a.inspectCmd(),
		a.queryCmd(),
		a.validateCmd(),
		a.serveCmd(),
		a.configCmd(),
	)
	return root
}

// setup loads configuration and installs the logger.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.jsonLogs {
		cfg.Logging.JSON = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	lc := cfg.LoggingConfig(cfg.Telemetry.ServiceName)
	lc.Output = a.errOut
	a.logger = logging.New(lc)
	slog.SetDefault(a.logger.Slog())
	return nil
}

// loadGraph reads the document at path into a graph configured from a.cfg.
func (a *app) loadGraph(ctx context.Context, path string) (*graph.Graph, graph.LoadReport, error) {
	data, err := graph.ReadDocument(path)
	if err != nil {
		return nil, graph.LoadReport{}, err
	}

	g := graph.New(data.ID, data.Name, a.cfg.GraphOptions(a.logger.Slog())...)
	report, err := g.FromData(ctx, data)
	if err != nil {
		return nil, report, fmt.Errorf("load %s: %w", path, err)
	}
	if !report.Complete() {
		a.logger.Warn("document partially loaded",
			"path", path,
			"skipped_nodes", report.SkippedNodes,
			"skipped_edges", report.SkippedEdges,
		)
	}
	return g, report, nil
}
