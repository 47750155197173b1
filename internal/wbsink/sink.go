// Package wbsink is the Supervisor's reporting surface: colored log lines,
// a live progress bar, and the end-of-run summary table. Adapted from the
// teacher's internal/ui (hand-rolled ANSI bar and box-drawing table) and
// internal/reporter (result accumulation), replacing both with the
// ecosystem libraries the rest of the pack reaches for: fatih/color,
// schollz/progressbar/v3, jedib0t/go-pretty/v6 and dustin/go-humanize.
package wbsink

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// Sink is the core.Sink implementation used outside of tests. Its
// Infof/Warnf/Errorf methods are a thin, color-decorated front end over a
// stdlib log/slog.Logger, so every line also carries a level and timestamp
// through the usual slog machinery even when colors are disabled.
type Sink struct {
	mu     sync.Mutex
	out    io.Writer
	errW   io.Writer
	color  bool
	bar    *progressbar.ProgressBar
	logger *slog.Logger

	infoColor *color.Color
	warnColor *color.Color
	errColor  *color.Color
}

// New builds a Sink writing info/progress lines to out and warnings/errors
// to errW. Colors and the progress bar render only when out is a terminal;
// redirected output (logs, CI) falls back to plain slog text lines.
func New(out, errW io.Writer) *Sink {
	interactive := isTerminal(out)
	return &Sink{
		out:       out,
		errW:      errW,
		color:     interactive,
		logger:    slog.New(slog.NewTextHandler(errW, &slog.HandlerOptions{Level: slog.LevelInfo})),
		infoColor: color.New(color.FgCyan),
		warnColor: color.New(color.FgYellow),
		errColor:  color.New(color.FgRed),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (s *Sink) Infof(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	s.logger.Info(msg)
	s.echo(s.out, s.infoColor, msg)
}

func (s *Sink) Warnf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	s.logger.Warn(msg)
	s.echo(s.errW, s.warnColor, msg)
}

func (s *Sink) Errorf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	s.logger.Error(msg)
	s.echo(s.errW, s.errColor, msg)
}

// echo writes the human-facing, color-decorated counterpart of a line
// already recorded through slog. Skipped when out isn't a terminal: the
// slog text line above is the only record, avoiding duplicate plain output.
func (s *Sink) echo(w io.Writer, c *color.Color, msg string) {
	if !s.color {
		return
	}
	if s.bar != nil {
		_, _ = io.WriteString(w, "\n")
	}
	c.Fprintln(w, msg)
}

// Progress renders/updates the live progress bar. total <= 0 means the
// count isn't known yet (still streaming the CDX index), so no bar is
// shown until it is.
func (s *Sink) Progress(handled, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if total <= 0 || !s.color {
		return
	}
	if s.bar == nil {
		s.bar = progressbar.NewOptions64(total,
			progressbar.OptionSetWriter(s.out),
			progressbar.OptionSetDescription("downloading"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(s.out, "\n") }),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = s.bar.Set64(handled)
}

// Done finalizes the bar and renders the summary table.
func (s *Sink) Done(results []snapshot.Snapshot) {
	s.mu.Lock()
	if s.bar != nil {
		_ = s.bar.Finish()
	}
	s.mu.Unlock()

	_, _ = io.WriteString(s.out, RenderSummary(results))
}
