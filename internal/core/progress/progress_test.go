package progress

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/logger"
)

func TestHubRoutesByRun(t *testing.T) {
	hub := NewHub(logger.Nop(), 4)
	a := hub.Subscribe("run-a")
	b := hub.Subscribe("run-b")

	hub.Emit(model.ProgressEvent{RunID: "run-a", Iteration: 1, Phase: model.PhaseGeneration})

	ev := <-a.Outbound
	assert.Equal(t, 1, ev.Iteration)
	assert.Len(t, b.Outbound, 0)
}

func TestHubDropsWhenFull(t *testing.T) {
	hub := NewHub(logger.Nop(), 1)
	sub := hub.Subscribe("run")

	hub.Emit(model.ProgressEvent{RunID: "run", Iteration: 1})
	hub.Emit(model.ProgressEvent{RunID: "run", Iteration: 2})

	assert.Len(t, sub.Outbound, 1)
	assert.Equal(t, 1, (<-sub.Outbound).Iteration)
}

func TestHubClosesOnDone(t *testing.T) {
	hub := NewHub(logger.Nop(), 4)
	sub := hub.Subscribe("run")

	hub.Emit(model.ProgressEvent{RunID: "run", Phase: model.PhaseDone, Status: model.StatusConverged})

	ev, ok := <-sub.Outbound
	require.True(t, ok)
	assert.Equal(t, model.StatusConverged, ev.Status)
	_, ok = <-sub.Outbound
	assert.False(t, ok)

	// already closed by the hub
	hub.Unsubscribe(sub)
}

func TestMultiAndFunc(t *testing.T) {
	var got []int
	m := Multi{Func(func(ev model.ProgressEvent) { got = append(got, ev.Iteration) }), nil, Discard{}}
	m.Emit(model.ProgressEvent{Iteration: 3})
	assert.Equal(t, []int{3}, got)
}

type fakePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	closed   bool
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, payload)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestRedisSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := newRedisSink(pub, "", logger.Nop())

	sink.Emit(model.ProgressEvent{RunID: "r1", Iteration: 2, Phase: model.PhaseValidation})
	require.NoError(t, sink.Close())

	require.Len(t, pub.messages, 1)
	var ev model.ProgressEvent
	require.NoError(t, json.Unmarshal(pub.messages[0], &ev))
	assert.Equal(t, "r1", ev.RunID)
	assert.Equal(t, model.PhaseValidation, ev.Phase)
	assert.True(t, pub.closed)
	assert.Equal(t, "canon.progress", sink.channel)
}

func TestRedisSinkDropsEventsAfterClose(t *testing.T) {
	pub := &fakePublisher{}
	sink := newRedisSink(pub, "canon.test", logger.Nop())
	require.NoError(t, sink.Close())

	assert.NotPanics(t, func() {
		sink.Emit(model.ProgressEvent{RunID: "late", Phase: model.PhaseDone})
	})
	require.NoError(t, sink.Close())
	assert.Empty(t, pub.messages)
}
