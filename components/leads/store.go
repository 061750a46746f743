package leads

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the fetch-state container snapshot: {data, loading, error}.
type State[T any] struct {
	Data       T         `json:"data"`
	Loading    bool      `json:"loading"`
	Error      string    `json:"error,omitempty"`
	Kind       ErrorKind `json:"error_kind,omitempty"`
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}

// Failed reports whether the last completed load ended in an error.
func (s State[T]) Failed() bool {
	return s.Error != ""
}

// Loader fetches the full value held by a store.
type Loader[T any] func(ctx context.Context) (T, error)

// StoreOption customizes a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	logger    *slog.Logger
	telemetry Telemetry
	hook      ChangeHook
	now       func() time.Time
}

// WithStoreLogger sets the logger used for load diagnostics.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithStoreTelemetry records load events.
func WithStoreTelemetry(t Telemetry) StoreOption {
	return func(o *storeOptions) {
		o.telemetry = t
	}
}

// WithStoreHook publishes state transitions.
func WithStoreHook(hook ChangeHook) StoreOption {
	return func(o *storeOptions) {
		o.hook = hook
	}
}

// WithStoreClock overrides time.Now, mostly for tests.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(o *storeOptions) {
		o.now = now
	}
}

// Store is an independent fetch-state container with a single load action.
// Loads replace Data in full; failures keep the previous Data available.
type Store[T any] struct {
	name   string
	loader Loader[T]
	opts   storeOptions

	mu         sync.RWMutex
	state      State[T]
	dispatched uint64
}

// NewStore builds a store in its initial state: no data, not loading, no error.
func NewStore[T any](name string, loader Loader[T], opts ...StoreOption) *Store[T] {
	o := storeOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = normalizeLogger(o.logger).With("store", name)
	o.telemetry = normalizeTelemetry(o.telemetry)
	if o.hook == nil {
		o.hook = noopChangeHook{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return &Store[T]{
		name:   name,
		loader: loader,
		opts:   o,
	}
}

// Name returns the store identifier.
func (s *Store[T]) Name() string {
	return s.name
}

// Snapshot returns the current state.
func (s *Store[T]) Snapshot() State[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Load runs the loader and records the outcome. Only the latest dispatched call may write
// the container; earlier calls that finish later get ErrSuperseded and leave state untouched.
func (s *Store[T]) Load(ctx context.Context) (state State[T], err error) {
	if s.loader == nil {
		return s.Snapshot(), fmt.Errorf("leads: store %s has no loader", s.name)
	}
	seq := s.begin(ctx)
	started := s.opts.now()

	var data T
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("leads: store %s loader panicked: %v", s.name, r)
		}
		state, err = s.finish(ctx, seq, data, err, started)
	}()

	data, err = s.loader(ctx)
	return state, err
}

func (s *Store[T]) begin(ctx context.Context) uint64 {
	s.mu.Lock()
	s.dispatched++
	seq := s.dispatched
	s.state.Loading = true
	generation := s.state.Generation
	s.mu.Unlock()

	s.opts.logger.Debug("load started", "seq", seq)
	s.publish(ctx, StoreEvent{Store: s.name, Reason: ReasonLoading, Generation: generation})
	return seq
}

func (s *Store[T]) finish(ctx context.Context, seq uint64, data T, loadErr error, started time.Time) (State[T], error) {
	s.mu.Lock()
	if seq != s.dispatched {
		snapshot, latest := s.state, s.dispatched
		s.mu.Unlock()
		s.opts.logger.Debug("discarding superseded load", "seq", seq, "latest", latest)
		return snapshot, ErrSuperseded
	}
	now := s.opts.now()
	s.state.Loading = false
	s.state.UpdatedAt = now
	if loadErr != nil {
		s.state.Error = Message("load "+s.name, loadErr)
		s.state.Kind = KindOf(loadErr)
	} else {
		s.state.Data = data
		s.state.Error = ""
		s.state.Kind = ""
		s.state.Generation++
	}
	snapshot := s.state
	s.mu.Unlock()

	payload := map[string]any{
		"store":       s.name,
		"duration_ms": now.Sub(started).Milliseconds(),
		"generation":  snapshot.Generation,
	}
	event := StoreEvent{Store: s.name, Generation: snapshot.Generation, At: now}
	if loadErr != nil {
		s.opts.logger.Warn("load failed", "error", snapshot.Error, "kind", snapshot.Kind)
		payload["error"] = snapshot.Error
		s.opts.telemetry.Record(ctx, "leads.store.load_failed", payload)
		event.Reason = ReasonFailed
		event.Error = snapshot.Error
	} else {
		s.opts.logger.Debug("load finished", "generation", snapshot.Generation)
		s.opts.telemetry.Record(ctx, "leads.store.load", payload)
		event.Reason = ReasonLoaded
	}
	s.publish(ctx, event)
	return snapshot, loadErr
}

func (s *Store[T]) publish(ctx context.Context, event StoreEvent) {
	if event.At.IsZero() {
		event.At = s.opts.now()
	}
	if err := s.opts.hook.StoreUpdated(ctx, event); err != nil {
		s.opts.logger.Warn("change hook failed", "reason", event.Reason, "error", err)
	}
}
