package server

import (
	"encoding/json"
	"sync"
)

// RunEvent is the payload published to a run's SSE subscribers.
type RunEvent struct {
	Type      string `json:"type"`
	StepID    int64  `json:"stepId,omitempty"`
	SpotID    int64  `json:"spotId,omitempty"`
	IsCorrect bool   `json:"isCorrect,omitempty"`
}

// Broker is an in-process pub/sub for SSE events, keyed by run ID.
type Broker struct {
	mu   sync.RWMutex
	subs map[int64]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		subs: make(map[int64]map[chan []byte]struct{}),
	}
}

// Subscribe returns a channel that receives JSON-encoded events for the run.
func (b *Broker) Subscribe(runID int64) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[chan []byte]struct{})
	}
	b.subs[runID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a channel from the run's subscribers.
func (b *Broker) Unsubscribe(runID int64, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[runID], ch)
	if len(b.subs[runID]) == 0 {
		delete(b.subs, runID)
	}
	b.mu.Unlock()
}

// Publish sends an event to all subscribers of the given run.
func (b *Broker) Publish(runID int64, event RunEvent) {
	data, _ := json.Marshal(event)
	b.mu.RLock()
	for ch := range b.subs[runID] {
		select {
		case ch <- data:
		default:
			// Drop if subscriber is slow.
		}
	}
	b.mu.RUnlock()
}
