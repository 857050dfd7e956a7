// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports changes to a single graph document on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long writes must be quiet before the handler runs.
const DefaultDebounce = 200 * time.Millisecond

// ErrAlreadyRunning is returned when Run is called twice.
var ErrAlreadyRunning = errors.New("watcher already running")

// Handler is called with the document path once writes have settled.
type Handler func(ctx context.Context, path string)

// Options configures a Watcher.
type Options struct {
	// Debounce is the quiet period after the last change.
	// Default: DefaultDebounce
	Debounce time.Duration

	// Logger receives watcher errors.
	// Default: slog.Default()
	Logger *slog.Logger
}

// Watcher calls a Handler when one file changes.
//
// Description:
//
//	The file's directory is watched rather than the file, so editors that
//	save by writing a temporary file and renaming it over the document are
//	still seen. Events for other files in the directory are ignored. A
//	burst of events produces one handler call after Debounce of quiet.
//
// Thread Safety: Run must be called at most once. The handler runs on the
// Run goroutine.
type Watcher struct {
	path     string
	dir      string
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	fs      *fsnotify.Watcher
	started bool
}

// New creates a watcher for path. Watching starts in Run.
//
// Errors:
//
//	The directory cannot be watched, or path cannot be made absolute.
func New(path string, handler Handler, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(abs)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		path:     abs,
		dir:      dir,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger.With("path", abs),
		fs:       fsw,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Run delivers debounced change notifications until ctx is done.
//
// Outputs:
//
//	error - nil when ctx ends; ErrAlreadyRunning on a second call.
func (w *Watcher) Run(ctx context.Context) error {
	if w.started {
		return ErrAlreadyRunning
	}
	w.started = true
	defer w.fs.Close()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			w.logger.Debug("document changed")
			w.handler(ctx, w.path)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// relevant reports whether event may have changed the document's content.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
