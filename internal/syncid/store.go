// Package syncid correlates outbound mirai-api-http calls with their responses.
//
// Every call carries a syncId; the response frame echoes it. A Store hands out
// ids, holds one single-use slot per outstanding id, and removes the slot
// exactly once: when Await returns, whether it got a payload, timed out, or
// was cancelled. One Store belongs to one connection.
//
// The map lock is only held for O(1) bookkeeping and slots are buffered, so a
// slow waiter never delays resolution of another id.
package syncid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/keepmind9/miraibridge/pkg/errs"
)

// ErrDuplicateID is returned by Register when the id is already pending
var ErrDuplicateID = errors.New("sync id already pending")

// Option configures a Store
type Option func(*Store)

// WithWrap sets the exclusive upper bound ids wrap at. Mostly for tests.
func WithWrap(bound uint64) Option {
	return func(s *Store) {
		if bound > 0 {
			s.wrap = bound
		}
	}
}

// Store tracks pending requests for one connection
type Store struct {
	mu      sync.Mutex
	next    uint64
	wrap    uint64
	pending map[string]chan json.RawMessage
	closed  bool
}

// New creates an empty Store
func New(opts ...Option) *Store {
	s := &Store{
		wrap:    math.MaxInt64,
		pending: make(map[string]chan json.RawMessage),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextID returns the next id, skipping any that are still pending.
func (s *Store) NextID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextIDLocked()
}

func (s *Store) nextIDLocked() string {
	// Bounded: at most len(pending)+1 candidates are rejected.
	for {
		id := strconv.FormatUint(s.next, 10)
		s.next = (s.next + 1) % s.wrap
		if _, busy := s.pending[id]; !busy {
			return id
		}
	}
}

// Register creates the pending slot for id
func (s *Store) Register(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(id)
}

func (s *Store) registerLocked(id string) error {
	if s.closed {
		return errs.ErrCancelled
	}
	if _, busy := s.pending[id]; busy {
		return fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	s.pending[id] = make(chan json.RawMessage, 1)
	return nil
}

// Reserve allocates a fresh id and registers it in one step
func (s *Store) Reserve() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errs.ErrCancelled
	}
	id := s.nextIDLocked()
	if err := s.registerLocked(id); err != nil {
		return "", err
	}
	return id, nil
}

// Resolve completes the slot for id. Late and duplicate responses find no
// slot and are dropped; the return value says whether a waiter existed.
func (s *Store) Resolve(id string, payload json.RawMessage) bool {
	s.mu.Lock()
	slot, ok := s.pending[id]
	if ok {
		// Only the first response is kept; the slot stays until Await removes it.
		select {
		case slot <- payload:
		default:
			ok = false
		}
	}
	s.mu.Unlock()
	return ok
}

// Await blocks until id is resolved, timeout elapses (fails with
// errs.ErrTimeout), ctx ends, or the store is closed (errs.ErrCancelled).
// A timeout <= 0 waits without a deadline. The slot is always removed.
func (s *Store) Await(ctx context.Context, id string, timeout time.Duration) (json.RawMessage, error) {
	s.mu.Lock()
	slot, ok := s.pending[id]
	closed := s.closed
	s.mu.Unlock()
	if !ok {
		if closed {
			return nil, errs.ErrCancelled
		}
		return nil, fmt.Errorf("sync id %s is not registered", id)
	}
	defer s.remove(id)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case payload, open := <-slot:
		if !open {
			return nil, errs.ErrCancelled
		}
		return payload, nil
	case <-deadline:
		return nil, fmt.Errorf("%w: sync id %s after %s", errs.ErrTimeout, id, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", errs.ErrCancelled, ctx.Err())
	}
}

// Pending returns the number of outstanding requests
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close fails every pending waiter with errs.ErrCancelled and rejects new
// registrations. Safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, slot := range s.pending {
		// Unresolved slots are closed; resolved ones keep their payload.
		if len(slot) == 0 {
			close(slot)
		}
		delete(s.pending, id)
	}
}

// Release drops the slot for id without waiting, e.g. when the request
// could not be sent.
func (s *Store) Release(id string) {
	s.remove(id)
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}
