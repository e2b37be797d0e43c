// Package status carries coarse progress notifications out of the engine
// and the cooperative stop flag into it.
package status

import (
	"log/slog"
	"sync"
)

// Event is one progress notification.
type Event struct {
	Message         string  `json:"message"`
	Detail          string  `json:"detail,omitempty"`
	Percent         float64 `json:"percent"` // -1 means indeterminate
	RestartRequired bool    `json:"restart_required,omitempty"`
}

// Sink receives progress events. The engine emits coarse notifications
// only and owns no rendering.
type Sink interface {
	Publish(ev Event)
}

// LogSink logs events through slog.
type LogSink struct {
	Logger *slog.Logger
}

// Publish implements Sink.
func (s *LogSink) Publish(ev Event) {
	attrs := []any{slog.String("message", ev.Message)}
	if ev.Detail != "" {
		attrs = append(attrs, slog.String("detail", ev.Detail))
	}
	if ev.Percent >= 0 {
		attrs = append(attrs, slog.Float64("percent", ev.Percent))
	}
	s.Logger.Info("status", attrs...)
}

// Tracker is a Sink that remembers the most recent event so read-only
// surfaces can poll it.
type Tracker struct {
	mu   sync.RWMutex
	last Event
	next Sink // optional chained sink
}

// NewTracker returns a Tracker chaining to next (may be nil).
func NewTracker(next Sink) *Tracker {
	return &Tracker{last: Event{Percent: -1}, next: next}
}

// Publish implements Sink.
func (t *Tracker) Publish(ev Event) {
	t.mu.Lock()
	t.last = ev
	t.mu.Unlock()
	if t.next != nil {
		t.next.Publish(ev)
	}
}

// Last returns the most recent event.
func (t *Tracker) Last() Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}
