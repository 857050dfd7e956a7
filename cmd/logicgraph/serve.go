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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/LogicGraph/pkg/logging"
	"github.com/AleutianAI/LogicGraph/services/diagram/server"
	"github.com/AleutianAI/LogicGraph/services/diagram/telemetry"
	"github.com/AleutianAI/LogicGraph/services/diagram/watch"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr      string
		watchFile bool
	)

	cmd := &cobra.Command{
		Use:   "serve FILE",
		Short: "Serve a graph document over HTTP",
		Long: `serve loads FILE and exposes it on the read API with a websocket
event stream at /v1/events. With --watch the document is reloaded whenever
it changes on disk.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd.Context(), args[0], watchFile)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&watchFile, "watch", false, "reload the document when it changes")
	return cmd
}

func (a *app) serve(ctx context.Context, path string, watchFile bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if level, _ := logging.ParseLevel(a.cfg.Logging.Level); level == logging.LevelDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdown, err := telemetry.Init(ctx, a.cfg.TelemetryConfig())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	g, _, err := a.loadGraph(ctx, path)
	if err != nil {
		return err
	}
	logger := a.logger.Slog()

	srv := server.New(g, server.Options{
		ServiceName:           a.cfg.Telemetry.ServiceName,
		MovingEventsPerSecond: a.cfg.Server.MovingEventsPerSecond,
		MovingBurst:           a.cfg.Server.MovingBurst,
		Logger:                logger,
	})

	var watcher *watch.Watcher
	if watchFile {
		watcher, err = watch.New(path, func(ctx context.Context, p string) {
			if _, err := srv.ReloadFile(ctx, p); err != nil {
				logger.Warn("reload failed, keeping previous graph", "path", p, "error", err)
			}
		}, watch.Options{Debounce: a.cfg.Server.WatchDebounce, Logger: logger})
		if err != nil {
			return err
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return srv.Run(gctx, a.cfg.Server.Addr)
	})
	if watcher != nil {
		group.Go(func() error {
			return watcher.Run(gctx)
		})
		a.logger.Info("watching document", "path", watcher.Path())
	}
	return group.Wait()
}
