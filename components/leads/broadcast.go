package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StoreEvent describes a fetch-state transition that views might care about.
type StoreEvent struct {
	Store      string    `json:"store"`
	Reason     string    `json:"reason"`
	Generation uint64    `json:"generation"`
	Error      string    `json:"error,omitempty"`
	At         time.Time `json:"at"`
}

// Store event reasons.
const (
	ReasonLoading   = "loading"
	ReasonLoaded    = "loaded"
	ReasonFailed    = "failed"
	ReasonSubmitted = "submitted"
	ReasonMutated   = "mutated"
)

// ChangeHook notifies transports (REST/WebSocket/SSE) about store changes.
type ChangeHook interface {
	StoreUpdated(ctx context.Context, event StoreEvent) error
}

type noopChangeHook struct{}

func (noopChangeHook) StoreUpdated(context.Context, StoreEvent) error { return nil }

// ChangeHooks fans one event out to several hooks, joining their errors.
type ChangeHooks []ChangeHook

func (hooks ChangeHooks) StoreUpdated(ctx context.Context, event StoreEvent) error {
	var errs []error
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook.StoreUpdated(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BroadcastHook fans out store events to in-process subscribers.
type BroadcastHook struct {
	mu   sync.RWMutex
	subs map[int]chan StoreEvent
	next int
}

// NewBroadcastHook creates a broadcast hook.
func NewBroadcastHook() *BroadcastHook {
	return &BroadcastHook{
		subs: make(map[int]chan StoreEvent),
	}
}

// StoreUpdated satisfies ChangeHook. Slow subscribers drop events instead of blocking stores.
func (h *BroadcastHook) StoreUpdated(_ context.Context, event StoreEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of store events and a cancel func.
func (h *BroadcastHook) Subscribe() (<-chan StoreEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan StoreEvent, 16)
	h.subs[id] = ch
	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the request and streams store events as JSON.
func (h *BroadcastHook) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := h.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// ServeSSE provides a Server-Sent Events endpoint for store events.
func (h *BroadcastHook) ServeSSE(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	events, cancel := h.Subscribe()
	defer cancel()

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				return
			}
			if _, err := w.Write([]byte("event: " + event.Reason + "\ndata: ")); err != nil {
				return
			}
			if _, err := w.Write(payload); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
