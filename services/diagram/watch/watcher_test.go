// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string, debounce time.Duration) (*Watcher, chan string) {
	t.Helper()
	calls := make(chan string, 16)
	w, err := New(path, func(_ context.Context, p string) { calls <- p }, Options{Debounce: debounce})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return w, calls
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	w, calls := startWatcher(t, path, 100*time.Millisecond)

	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('0' + i)}, 0600))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case got := <-calls:
		assert.Equal(t, w.Path(), got)
	case <-time.After(3 * time.Second):
		t.Fatal("handler not called")
	}

	select {
	case <-calls:
		t.Fatal("burst produced more than one call")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_SeesRenameOverDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	_, calls := startWatcher(t, path, 20*time.Millisecond)

	tmp := filepath.Join(dir, ".graph.json.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte(`{"id":"g"}`), 0600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("handler not called after atomic save")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))

	_, calls := startWatcher(t, path, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0600))

	select {
	case p := <-calls:
		t.Fatalf("unexpected call for %s", p)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_RunTwice(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	var n atomic.Int32
	w, err := New(path, func(context.Context, string) { n.Add(1) }, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.ErrorIs(t, w.Run(ctx), ErrAlreadyRunning)
	assert.Zero(t, n.Load())
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope", "graph.json"), func(context.Context, string) {}, Options{})
	assert.Error(t, err)
}
