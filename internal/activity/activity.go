// Package activity keeps the operator-facing log: a short, newest-first list
// of timestamped lines, each one mirrored to the structured logger.
package activity

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultMaxEntries is used when New is given a non-positive capacity.
const DefaultMaxEntries = 200

// Entry is one log line.
type Entry struct {
	At      time.Time
	Level   zapcore.Level
	Message string
}

// String renders the entry as "[HH:MM:SS] message".
func (e Entry) String() string {
	return fmt.Sprintf("[%s] %s", e.At.Format("15:04:05"), e.Message)
}

// Option configures a Log.
type Option func(*Log)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Log is a bounded, concurrency-safe activity log.
type Log struct {
	logger  *zap.Logger
	max     int
	now     func() time.Time
	mu      sync.RWMutex
	entries []Entry // oldest first
	subs    []func(Entry)
}

// New creates a Log holding at most maxEntries lines.
func New(maxEntries int, logger *zap.Logger, opts ...Option) *Log {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	l := &Log{
		logger: logger.Named("activity"),
		max:    maxEntries,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnAppend registers fn to be called after every append, outside the lock.
func (l *Log) OnAppend(fn func(Entry)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

func (l *Log) Info(format string, args ...any)  { l.Append(zapcore.InfoLevel, format, args...) }
func (l *Log) Warn(format string, args ...any)  { l.Append(zapcore.WarnLevel, format, args...) }
func (l *Log) Error(format string, args ...any) { l.Append(zapcore.ErrorLevel, format, args...) }

// Append adds a formatted line at level and drops the oldest line past capacity.
func (l *Log) Append(level zapcore.Level, format string, args ...any) Entry {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	entry := Entry{At: l.now(), Level: level, Message: msg}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.max; over > 0 {
		l.entries = append(l.entries[:0:0], l.entries[over:]...)
	}
	subs := make([]func(Entry), len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	if ce := l.logger.Check(level, msg); ce != nil {
		ce.Write()
	}
	for _, fn := range subs {
		fn(entry)
	}
	return entry
}

// Entries returns up to limit lines, newest first. limit <= 0 returns all.
func (l *Log) Entries(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := len(l.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.entries[i])
	}
	return out
}

// Len returns the number of retained lines.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
