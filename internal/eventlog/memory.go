package eventlog

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryLog is an append-only, unbounded, in-process trail.
type MemoryLog struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Record(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Entries returns a copy of every recorded event in order.
func (l *MemoryLog) Entries() []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Values returns the flat string/bool trail.
func (l *MemoryLog) Values() []any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]any, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Value())
	}
	return out
}

// Count returns how many events of the given kind were recorded.
func (l *MemoryLog) Count(kind Kind) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, ev := range l.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (l *MemoryLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// SlogRecorder writes every event as a structured log line.
type SlogRecorder struct {
	logger *slog.Logger
	level  slog.Level
}

func NewSlogRecorder(logger *slog.Logger, level slog.Level) *SlogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogRecorder{logger: logger, level: level}
}

func (r *SlogRecorder) Record(ev Event) {
	attrs := []any{"event_id", ev.ID.String(), "kind", string(ev.Kind)}
	if ev.Room != "" {
		attrs = append(attrs, "room", ev.Room)
	}
	if ev.Connected != nil {
		attrs = append(attrs, "connected", *ev.Connected)
	}
	msg := ev.Text
	if msg == "" {
		msg = string(ev.Kind)
	}
	r.logger.Log(context.Background(), r.level, msg, attrs...)
}

// Multi fans one event out to every non-nil recorder in order.
func Multi(recorders ...Recorder) Recorder {
	list := make([]Recorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			list = append(list, r)
		}
	}
	return RecorderFunc(func(ev Event) {
		for _, r := range list {
			r.Record(ev)
		}
	})
}
