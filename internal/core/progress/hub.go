package progress

import (
	"sync"

	"github.com/google/uuid"

	"github.com/agenthands/canon/internal/core/model"
	"github.com/agenthands/canon/internal/logger"
)

type Subscriber struct {
	ID       uuid.UUID
	RunID    string
	Outbound chan model.ProgressEvent
}

// Hub routes events to subscribers of the event's run. Subscribers whose
// buffer is full miss events. The run's subscriptions are closed after its
// done event.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	buffer        int
	subscriptions map[string]map[*Subscriber]bool
}

func NewHub(log *logger.Logger, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		log:           log.With("component", "ProgressHub"),
		buffer:        buffer,
		subscriptions: make(map[string]map[*Subscriber]bool),
	}
}

func (h *Hub) Subscribe(runID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &Subscriber{
		ID:       uuid.New(),
		RunID:    runID,
		Outbound: make(chan model.ProgressEvent, h.buffer),
	}
	subs, ok := h.subscriptions[runID]
	if !ok {
		subs = make(map[*Subscriber]bool)
		h.subscriptions[runID] = subs
	}
	subs[sub] = true

	h.log.Debug("progress subscriber added", "run_id", runID, "subscriber", sub.ID)
	return sub
}

// Unsubscribe is safe to call after the hub already closed the subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscriptions[sub.RunID]
	if !ok || !subs[sub] {
		return
	}
	delete(subs, sub)
	close(sub.Outbound)
	if len(subs) == 0 {
		delete(h.subscriptions, sub.RunID)
	}
}

func (h *Hub) Emit(ev model.ProgressEvent) {
	if ev.Phase == model.PhaseDone {
		h.finish(ev)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscriptions[ev.RunID] {
		select {
		case sub.Outbound <- ev:
		default:
			h.log.Warn("dropping progress event; subscriber buffer full", "run_id", ev.RunID, "subscriber", sub.ID)
		}
	}
}

func (h *Hub) finish(ev model.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscriptions[ev.RunID] {
		select {
		case sub.Outbound <- ev:
		default:
		}
		close(sub.Outbound)
	}
	delete(h.subscriptions, ev.RunID)
}
