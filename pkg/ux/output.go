// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders human-readable CLI reports.
//
// Output to a terminal is colored and uses unicode status icons. Output to
// anything else (pipes, files, buffers) is plain text with word prefixes,
// so scripts can grep it.
package ux

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorSlate       = lipgloss.Color("#2C4A54")
	ColorWarning     = lipgloss.Color("#F4D03F")
	ColorError       = lipgloss.Color("#E74C3C")
)

// Icon is a status marker.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// plainIcons replaces icons when the output is not a terminal.
var plainIcons = map[Icon]string{
	IconSuccess: "OK:",
	IconWarning: "WARN:",
	IconError:   "ERROR:",
	IconBullet:  "-",
}

type styles struct {
	title   lipgloss.Style
	label   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
	muted   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
		label:   r.NewStyle().Foreground(ColorTealPrimary),
		success: r.NewStyle().Foreground(ColorTealBright),
		warning: r.NewStyle().Foreground(ColorWarning),
		err:     r.NewStyle().Foreground(ColorError),
		muted:   r.NewStyle().Foreground(ColorSlate),
	}
}

// Printer writes styled report lines to one writer.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w      io.Writer
	plain  bool
	styles styles
}

// NewPrinter returns a printer for w. Styling is enabled only when w is a
// terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{
		w:      w,
		plain:  !IsTerminal(w),
		styles: newStyles(lipgloss.NewRenderer(w)),
	}
}

// IsTerminal reports whether w is a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Plain reports whether styling is disabled.
func (p *Printer) Plain() bool { return p.plain }

func (p *Printer) icon(i Icon, style lipgloss.Style) string {
	if p.plain {
		return plainIcons[i]
	}
	return style.Render(string(i))
}

// Title prints a heading line.
func (p *Printer) Title(format string, args ...any) {
	fmt.Fprintln(p.w, p.styles.title.Render(fmt.Sprintf(format, args...)))
}

// Field prints an indented "label: value" line. Labels are padded to line
// up consecutive fields.
func (p *Printer) Field(label string, value any) {
	fmt.Fprintf(p.w, "  %s %v\n", p.styles.label.Render(fmt.Sprintf("%-12s", label+":")), value)
}

// Item prints a bulleted line under a field.
func (p *Printer) Item(format string, args ...any) {
	fmt.Fprintf(p.w, "    %s %s\n", p.icon(IconBullet, p.styles.muted), fmt.Sprintf(format, args...))
}

// Success prints a line prefixed with the success icon.
func (p *Printer) Success(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconSuccess, p.styles.success), fmt.Sprintf(format, args...))
}

// Warning prints a line prefixed with the warning icon.
func (p *Printer) Warning(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconWarning, p.styles.warning), p.styles.warning.Render(fmt.Sprintf(format, args...)))
}

// Error prints a line prefixed with the error icon.
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", p.icon(IconError, p.styles.err), p.styles.err.Render(fmt.Sprintf(format, args...)))
}
