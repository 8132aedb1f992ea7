// Package poller provides the generic polling primitive: register a keyed
// fetch function and receive repeated deliveries on a fixed interval until
// the key is cancelled or a delivery signals termination.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind distinguishes the job families multiplexed on one scheduler.
type Kind string

const (
	KindOCR               Kind = "ocr"
	KindContextualization Kind = "contextualization"
)

// Key identifies one active poll: at most one handle exists per key.
type Key struct {
	DocumentID int64
	Kind       Kind
}

// Decision is returned by a result callback to keep or stop the poll.
type Decision int

const (
	Continue Decision = iota
	Stop
)

// FetchFunc performs one poll exchange.
type FetchFunc func(ctx context.Context) (any, error)

// ResultFunc receives each successful fetch result.
type ResultFunc func(v any) Decision

// ErrorFunc receives a fetch failure. The key is deregistered afterwards;
// there is no automatic retry, callers re-register to resume.
type ErrorFunc func(err error)

type handle struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// Scheduler multiplexes independent keyed polls.
type Scheduler struct {
	logger *slog.Logger

	mu      sync.Mutex
	handles map[Key]*handle
	// deliver serializes callback delivery per key, so a replaced handle
	// whose fetch was already in flight cannot deliver beside its successor.
	deliver map[Key]*sync.Mutex
	wg      sync.WaitGroup
	closed  bool
}

type Option func(*registration)

// WithMaxAttempts bounds the poll: after n result deliveries without a Stop
// decision the key is deregistered silently.
func WithMaxAttempts(n int) Option {
	return func(r *registration) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

type registration struct {
	maxAttempts int
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:  logger,
		handles: make(map[Key]*handle),
		deliver: make(map[Key]*sync.Mutex),
	}
}

// Register starts a poll for key: an immediate fetch, then one per interval.
// Registering over an existing key replaces its handle; callback deliveries
// for one key are serialized, and a replaced handle stops delivering as soon
// as its cancellation is observable. onError may be nil.
func (s *Scheduler) Register(ctx context.Context, key Key, interval time.Duration, fetch FetchFunc, onResult ResultFunc, onError ErrorFunc, opts ...Option) {
	reg := &registration{}
	for _, o := range opts {
		o(reg)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("poller.register_after_shutdown", "doc_id", key.DocumentID, "kind", key.Kind)
		return
	}
	if prev, ok := s.handles[key]; ok {
		prev.cancel()
	}
	pollCtx, cancel := context.WithCancel(ctx)
	h := &handle{id: uuid.New(), cancel: cancel}
	s.handles[key] = h
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("poller.registered",
		"handle_id", h.id, "doc_id", key.DocumentID, "kind", key.Kind,
		"interval_ms", interval.Milliseconds(), "max_attempts", reg.maxAttempts)

	go s.run(pollCtx, key, h, interval, reg.maxAttempts, fetch, onResult, onError)
}

func (s *Scheduler) run(ctx context.Context, key Key, h *handle, interval time.Duration, maxAttempts int, fetch FetchFunc, onResult ResultFunc, onError ErrorFunc) {
	defer s.wg.Done()
	defer s.deregister(key, h)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	attempts := 0
	for {
		v, err := fetch(ctx)

		// Cancellation is rechecked under the key's delivery lock: once a
		// replacement has cancelled this handle, no callback fires here.
		lock := s.deliveryLock(key)
		lock.Lock()
		if ctx.Err() != nil {
			lock.Unlock()
			return
		}
		if err != nil {
			s.logger.Warn("poller.fetch_error",
				"handle_id", h.id, "doc_id", key.DocumentID, "kind", key.Kind, "error", err)
			if onError != nil {
				onError(err)
			}
			lock.Unlock()
			return
		}
		dec := onResult(v)
		lock.Unlock()
		if dec == Stop {
			s.logger.Info("poller.stopped",
				"handle_id", h.id, "doc_id", key.DocumentID, "kind", key.Kind, "attempts", attempts+1)
			return
		}
		attempts++
		if maxAttempts > 0 && attempts >= maxAttempts {
			s.logger.Info("poller.exhausted",
				"handle_id", h.id, "doc_id", key.DocumentID, "kind", key.Kind, "attempts", attempts)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// deliveryLock returns the per-key delivery mutex, creating it on first use.
// Locks are never removed; the key space is bounded by the document set.
func (s *Scheduler) deliveryLock(key Key) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.deliver[key]
	if !ok {
		m = &sync.Mutex{}
		s.deliver[key] = m
	}
	return m
}

// deregister removes the map entry only if it still points at h, so a
// replacement registered meanwhile is left alone.
func (s *Scheduler) deregister(key Key, h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.handles[key]; ok && cur == h {
		delete(s.handles, key)
	}
	h.cancel()
}

// Cancel stops the poll for key. Unknown keys are a no-op.
func (s *Scheduler) Cancel(key Key) {
	s.mu.Lock()
	h, ok := s.handles[key]
	if ok {
		delete(s.handles, key)
	}
	s.mu.Unlock()
	if ok {
		h.cancel()
		s.logger.Info("poller.cancelled", "handle_id", h.id, "doc_id", key.DocumentID, "kind", key.Kind)
	}
}

// Active reports whether a handle exists for key.
func (s *Scheduler) Active(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[key]
	return ok
}

// ActiveKeys returns a snapshot of currently registered keys.
func (s *Scheduler) ActiveKeys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Key, 0, len(s.handles))
	for k := range s.handles {
		out = append(out, k)
	}
	return out
}

// Shutdown cancels every handle and waits for the poll goroutines to drain,
// or until ctx expires.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, h := range s.handles {
		h.cancel()
	}
	s.handles = make(map[Key]*handle)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("poller.shutdown_interrupted_by_context")
	case <-done:
		s.logger.Info("poller.shutdown_complete")
	}
}
