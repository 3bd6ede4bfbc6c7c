package events_test

import (
	"context"
	"sync"
	"testing"

	"github.com/effective-security/toolchat/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	seen []events.Event
}

func (s *recordingSink) Emit(_ context.Context, ev events.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, ev)
}

func (s *recordingSink) events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.seen...)
}

type panickySink struct{}

func (panickySink) Emit(context.Context, events.Event) {
	panic("observer is broken")
}

func Test_Fanout_AddRemove(t *testing.T) {
	ctx := context.Background()
	a := &recordingSink{}
	b := &recordingSink{}

	fan := events.NewFanout(a)
	fan.Add(b)
	fan.Emit(ctx, events.Event{Type: events.TypeAnswer})

	fan.Remove(a)
	fan.Emit(ctx, events.Event{Type: events.TypeDegraded})

	assert.Len(t, a.events(), 1)
	require.Len(t, b.events(), 2)
	assert.Equal(t, events.TypeDegraded, b.events()[1].Type)
	assert.False(t, b.events()[0].Time.IsZero())
}

func Test_Fanout_SinkFailureIsolated(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSink{}
	fan := events.NewFanout(panickySink{}, rec)

	assert.NotPanics(t, func() {
		fan.Emit(ctx, events.Event{Type: events.TypeToolResult, Tool: "math.calculate"})
	})
	require.Len(t, rec.events(), 1)
	assert.Equal(t, "math.calculate", rec.events()[0].Tool)
}

func Test_Fanout_ConcurrentEmit(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSink{}
	fan := events.NewFanout(rec)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fan.Emit(ctx, events.Event{Type: events.TypeToolCall})
			fan.Add(events.NewNoop())
		}()
	}
	wg.Wait()
	assert.Len(t, rec.events(), 16)
}
