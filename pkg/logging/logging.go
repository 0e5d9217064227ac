package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Level defines the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes Level satisfy the fmt.Stringer interface.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// SlogLevel maps Level onto the corresponding slog.Level.
func (l Level) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Entry is a single structured log record as queued inside a Sink.
type Entry struct {
	Timestamp time.Time
	Level     Level
	Subsystem string
	Message   string
	Err       error
}

// Sink receives log output from the components that do real work (attacher,
// forwarder, coordinator). It is passed explicitly to whoever needs it rather
// than being reachable through package-level state, so tests can substitute
// their own implementation and two sessions never share a logger by accident.
type Sink interface {
	Debug(subsystem, format string, args ...any)
	Info(subsystem, format string, args ...any)
	Warn(subsystem, format string, args ...any)
	Error(subsystem string, err error, format string, args ...any)
}

const defaultQueueSize = 2048

// queuedSink buffers entries in a channel and drains them through a single
// flusher goroutine into a slog handler. Producers never block unless the
// queue is full, and output ordering is FIFO across all subsystems.
type queuedSink struct {
	logger  *slog.Logger
	entries chan Entry

	closeOnce sync.Once
	done      chan struct{}
}

// NewSink creates a Sink writing text-formatted records to output, dropping
// entries below filterLevel. Call Close to flush and stop the flusher.
func NewSink(output io.Writer, filterLevel Level) *queuedSink {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: filterLevel.SlogLevel(),
	})
	s := &queuedSink{
		logger:  slog.New(handler),
		entries: make(chan Entry, defaultQueueSize),
		done:    make(chan struct{}),
	}
	go s.flush()
	return s
}

func (s *queuedSink) flush() {
	defer close(s.done)
	for entry := range s.entries {
		attrs := []slog.Attr{slog.String("subsystem", entry.Subsystem)}
		if entry.Err != nil {
			attrs = append(attrs, slog.String("error", entry.Err.Error()))
		}
		s.logger.LogAttrs(context.Background(), entry.Level.SlogLevel(), entry.Message, attrs...)
	}
}

func (s *queuedSink) enqueue(level Level, subsystem string, err error, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	entry := Entry{
		Timestamp: time.Now(),
		Level:     level,
		Subsystem: subsystem,
		Message:   msg,
		Err:       err,
	}
	// Recover protects late log calls racing a Close; losing those entries
	// is acceptable during shutdown.
	defer func() { _ = recover() }()
	s.entries <- entry
}

func (s *queuedSink) Debug(subsystem, format string, args ...any) {
	s.enqueue(LevelDebug, subsystem, nil, format, args...)
}

func (s *queuedSink) Info(subsystem, format string, args ...any) {
	s.enqueue(LevelInfo, subsystem, nil, format, args...)
}

func (s *queuedSink) Warn(subsystem, format string, args ...any) {
	s.enqueue(LevelWarn, subsystem, nil, format, args...)
}

func (s *queuedSink) Error(subsystem string, err error, format string, args ...any) {
	s.enqueue(LevelError, subsystem, err, format, args...)
}

// Close stops accepting entries and waits until the flusher has drained the
// queue. Safe to call more than once.
func (s *queuedSink) Close() {
	s.closeOnce.Do(func() {
		close(s.entries)
	})
	<-s.done
}

// nopSink discards everything. Useful default for callers that do not care.
type nopSink struct{}

func (nopSink) Debug(string, string, ...any)        {}
func (nopSink) Info(string, string, ...any)         {}
func (nopSink) Warn(string, string, ...any)         {}
func (nopSink) Error(string, error, string, ...any) {}

// NewNopSink returns a Sink that drops all entries.
func NewNopSink() Sink { return nopSink{} }
