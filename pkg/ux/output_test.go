// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsTerminal(t *testing.T) {
	var buf bytes.Buffer
	if IsTerminal(&buf) {
		t.Error("bytes.Buffer reported as terminal")
	}

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("regular file reported as terminal")
	}
}

func TestPrinter_Plain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	if !p.Plain() {
		t.Fatal("printer for a buffer should be plain")
	}

	p.Title("Graph %s", "g1")
	p.Field("nodes", 3)
	p.Item("%s %d", "math", 2)
	p.Success("all good")
	p.Warning("careful")
	p.Error("broken")

	want := []string{
		"Graph g1",
		"  nodes:       3",
		"    - math 2",
		"OK: all good",
		"WARN: careful",
		"ERROR: broken",
	}
	got := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPrinter_NoEscapeCodesWhenPlain(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Title("title")
	p.Error("err")

	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("plain output contains ANSI escapes: %q", buf.String())
	}
}
