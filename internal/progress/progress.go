// Package progress drives the job's progress/ETA display. Counter clamps
// every update so the rendered value never decreases and never exceeds the
// job total, whatever the caller passes.
package progress

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"openbq/internal/logging"
)

// Sink renders progress values.
type Sink interface {
	Update(current, total int)
	Finish(current, total int)
}

// Counter is a monotonic, bounded progress value.
type Counter struct {
	mu       sync.Mutex
	total    int
	current  int
	finished bool
	sink     Sink
}

// NewCounter creates a counter over total units. A nil sink discards updates.
func NewCounter(total int, sink Sink) *Counter {
	if sink == nil {
		sink = Nop{}
	}
	if total < 0 {
		total = 0
	}
	return &Counter{total: total, sink: sink}
}

// Advance adds n and returns the clamped value.
func (c *Counter) Advance(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(c.current + n)
}

// Set raises the value to n. Lower values are ignored.
func (c *Counter) Set(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setLocked(n)
}

func (c *Counter) setLocked(n int) int {
	n = min(n, c.total)
	if n <= c.current {
		return c.current
	}
	c.current = n
	c.sink.Update(c.current, c.total)
	return c.current
}

// Current returns the displayed value.
func (c *Counter) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Total returns the bound.
func (c *Counter) Total() int {
	return c.total
}

// Finish closes the display once.
func (c *Counter) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return
	}
	c.finished = true
	c.sink.Finish(c.current, c.total)
}

// Nop discards progress.
type Nop struct{}

func (Nop) Update(int, int) {}
func (Nop) Finish(int, int) {}

// Bar renders a terminal progress bar with count, rate and ETA.
type Bar struct {
	bar *progressbar.ProgressBar
}

// NewBar builds a bar writing to w.
func NewBar(w io.Writer, total int, description string) *Bar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("it"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetWidth(30),
		progressbar.OptionOnCompletion(func() {
			_, _ = io.WriteString(w, "\n")
		}),
	)
	return &Bar{bar: bar}
}

func (b *Bar) Update(current, _ int) {
	_ = b.bar.Set(current)
}

func (b *Bar) Finish(current, _ int) {
	_ = b.bar.Set(current)
	_ = b.bar.Finish()
}

// logBucket is the percentage step between sampled progress lines.
const logBucket = 5

// bucketer reports when progress enters a new percentage bucket.
type bucketer struct {
	step float64
	last int
}

func newBucketer(step float64) *bucketer {
	if step <= 0 {
		step = logBucket
	}
	return &bucketer{step: step, last: -1}
}

func (b *bucketer) enter(percent float64) bool {
	bucket := int(min(max(percent, 0), 100) / b.step)
	if bucket <= b.last {
		return false
	}
	b.last = bucket
	return true
}

// Log reports progress through the logger, sampled into 5% buckets.
type Log struct {
	logger  *slog.Logger
	buckets *bucketer
	phase   string
	start   time.Time
}

// NewLog builds a log-backed sink for non-interactive output.
func NewLog(logger *slog.Logger, phase string) *Log {
	return &Log{
		logger:  logging.NewComponentLogger(logger, "progress"),
		buckets: newBucketer(logBucket),
		phase:   phase,
		start:   time.Now(),
	}
}

func (l *Log) Update(current, total int) {
	percent := percentOf(current, total)
	if !l.buckets.enter(percent) {
		return
	}
	l.logger.Info("progress",
		logging.String("phase", l.phase),
		logging.Int("completed", current),
		logging.Int("total", total),
		logging.Float64("percent", percent),
		logging.Duration("eta", eta(l.start, current, total)),
	)
}

func (l *Log) Finish(current, total int) {
	l.logger.Info("progress complete",
		logging.String("phase", l.phase),
		logging.Int("completed", current),
		logging.Int("total", total),
		logging.Duration("elapsed", time.Since(l.start).Round(time.Second)),
	)
}

// ForWriter picks a bar when w is a terminal and a sampled log sink otherwise.
func ForWriter(w io.Writer, logger *slog.Logger, total int, description string) Sink {
	if IsTerminal(w) {
		return NewBar(w, total, description)
	}
	return NewLog(logger, description)
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func percentOf(current, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(current) * 100 / float64(total)
}

func eta(start time.Time, current, total int) time.Duration {
	if current <= 0 || current >= total {
		return 0
	}
	elapsed := time.Since(start)
	remaining := time.Duration(float64(elapsed) / float64(current) * float64(total-current))
	return remaining.Round(time.Second)
}
