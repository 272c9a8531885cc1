// Package logging records per-episode statistics and routes them to one or
// more writers.
package logging

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Data is one record of named values.
type Data map[string]any

// Keys returns the record's keys in sorted order.
func (d Data) Keys() []string {
	return slices.Sorted(maps.Keys(d))
}

// Writer consumes records.
type Writer interface {
	Write(ctx context.Context, data Data) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, data Data) error

func (f WriterFunc) Write(ctx context.Context, data Data) error {
	return f(ctx, data)
}

// SlogWriter emits every record as one structured log line.
type SlogWriter struct {
	logger *slog.Logger
	label  string
	level  slog.Level
}

func NewSlogWriter(logger *slog.Logger, label string, level slog.Level) *SlogWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogWriter{logger: logger, label: label, level: level}
}

func (w *SlogWriter) Write(ctx context.Context, data Data) error {
	attrs := make([]slog.Attr, 0, len(data))
	for _, k := range data.Keys() {
		attrs = append(attrs, slog.Any(k, data[k]))
	}
	w.logger.LogAttrs(ctx, w.level, w.label, attrs...)
	return nil
}

// MultiWriter writes to each writer in order and stops at the first error.
type MultiWriter []Writer

func (m MultiWriter) Write(ctx context.Context, data Data) error {
	for _, w := range m {
		if err := w.Write(ctx, data); err != nil {
			return err
		}
	}
	return nil
}

// NoneFilter drops nil values before forwarding.
type NoneFilter struct {
	next Writer
}

func NewNoneFilter(next Writer) *NoneFilter {
	return &NoneFilter{next: next}
}

func (f *NoneFilter) Write(ctx context.Context, data Data) error {
	filtered := make(Data, len(data))
	for k, v := range data {
		if v != nil {
			filtered[k] = v
		}
	}
	return f.next.Write(ctx, filtered)
}

// TimeFilter forwards at most one record per interval. The first record is
// always forwarded; an interval <= 0 forwards everything.
type TimeFilter struct {
	mu       sync.Mutex
	next     Writer
	interval time.Duration
	now      func() time.Time
	last     time.Time
	sent     bool
}

type TimeFilterOption func(*TimeFilter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TimeFilterOption {
	return func(f *TimeFilter) {
		f.now = now
	}
}

func NewTimeFilter(next Writer, interval time.Duration, opts ...TimeFilterOption) *TimeFilter {
	f := &TimeFilter{next: next, interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *TimeFilter) Write(ctx context.Context, data Data) error {
	f.mu.Lock()
	now := f.now()
	if f.sent && f.interval > 0 && now.Sub(f.last) < f.interval {
		f.mu.Unlock()
		return nil
	}
	f.last, f.sent = now, true
	f.mu.Unlock()
	return f.next.Write(ctx, data)
}

// MakeDefaultLogger builds the writer used when the loop is given no
// logging callback: rate-limited, nil-free structured log lines.
func MakeDefaultLogger(label string, logger *slog.Logger, interval time.Duration) Writer {
	return NewTimeFilter(NewNoneFilter(NewSlogWriter(logger, label, slog.LevelInfo)), interval)
}
