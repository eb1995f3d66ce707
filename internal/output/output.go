// Package output provides consistent human-facing CLI output. Structured
// diagnostics go to the slog logger; this package is only for what the
// user asked to see.
package output

import (
	"fmt"
	"io"
	"strings"
)

// Writer prints formatted CLI output. Write errors are ignored: there is
// nothing useful to do when the terminal is gone.
type Writer struct {
	out io.Writer
}

// New creates a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Printf prints a plain formatted line.
func (w *Writer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, format+"\n", args...)
}

// Successf prints a success line.
func (w *Writer) Successf(format string, args ...any) {
	w.status("✓", format, args...)
}

// Warningf prints a warning line.
func (w *Writer) Warningf(format string, args ...any) {
	w.status("!", format, args...)
}

// Errorf prints an error line.
func (w *Writer) Errorf(format string, args ...any) {
	w.status("✗", format, args...)
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

func (w *Writer) status(icon, format string, args ...any) {
	_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

// Progress prints an in-place progress bar, terminated with a newline when
// current reaches total.
func (w *Writer) Progress(current, total int, msg string) {
	if total <= 0 {
		return
	}
	pct := float64(current) / float64(total) * 100
	_, _ = fmt.Fprintf(w.out, "\r[%s] %3.0f%% %s", bar(current, total, 30), pct, msg)
	if current >= total {
		_, _ = fmt.Fprintln(w.out)
	}
}

func bar(current, total, width int) string {
	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
