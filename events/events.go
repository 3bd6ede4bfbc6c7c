// Package events is the passive broadcast side-channel. The orchestration
// loop depends only on the Sink interface; delivery is fire-and-forget and a
// misbehaving observer must never affect the request path.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/toolchat", "events")

// Type identifies the event kind.
type Type string

const (
	TypeToolCall       Type = "tool_call"
	TypeToolResult     Type = "tool_result"
	TypeToolError      Type = "tool_error"
	TypeAnswer         Type = "answer"
	TypeDegraded       Type = "degraded"
	TypeParseFallback  Type = "parse_fallback"
	TypeInferenceError Type = "inference_error"
	TypeCacheHit       Type = "cache_hit"
)

// Event is one structured notification.
type Event struct {
	Type      Type      `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Tool      string    `json:"tool,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Sink consumes events. Implementations must not block the caller for long
// and must not panic; the Fanout recovers panics regardless.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// Noop discards all events.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Emit(context.Context, Event) {}

// Fanout forwards each event to every registered sink. Sinks may be added
// and removed at any time from concurrent request contexts.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Add(sink Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, sink)
}

func (f *Fanout) Remove(sink Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.sinks {
		if s == sink {
			f.sinks = append(f.sinks[:i], f.sinks[i+1:]...)
			return
		}
	}
}

func (f *Fanout) Emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	f.mu.RLock()
	sinks := make([]Sink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	for _, sink := range sinks {
		emit(ctx, sink, ev)
	}
}

// emit isolates one sink: a panic there is logged and swallowed so the other
// sinks and the main request path are unaffected.
func emit(ctx context.Context, sink Sink, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "event_sink_panic",
				"event", ev.Type,
				"recovered", r,
			)
		}
	}()
	sink.Emit(ctx, ev)
}

// LogSink writes events to the package logger.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (*LogSink) Emit(ctx context.Context, ev Event) {
	logger.ContextKV(ctx, xlog.DEBUG,
		"event", ev.Type,
		"request_id", ev.RequestID,
		"tool", ev.Tool,
		"err", ev.Error,
	)
}
