package cache

import (
	"context"
	"sync"
	"time"

	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore implements shared.IdempotencyStore with a map of
// claim expiries. Claims are not shared between processes.
type InMemoryIdempotencyStore struct {
	mu        sync.Mutex
	claims    map[string]time.Time
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryStoreOption configures an InMemoryIdempotencyStore
type InMemoryStoreOption func(*inMemoryStoreOptions)

type inMemoryStoreOptions struct {
	now           func() time.Time
	sweepInterval time.Duration
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) InMemoryStoreOption {
	return func(o *inMemoryStoreOptions) { o.now = now }
}

// WithSweepInterval sets how often expired claims are dropped
func WithSweepInterval(d time.Duration) InMemoryStoreOption {
	return func(o *inMemoryStoreOptions) { o.sweepInterval = d }
}

// NewInMemoryIdempotencyStore creates a store and starts its expiry sweep
func NewInMemoryIdempotencyStore(opts ...InMemoryStoreOption) *InMemoryIdempotencyStore {
	o := inMemoryStoreOptions{now: time.Now, sweepInterval: defaultSweepInterval}
	for _, opt := range opts {
		opt(&o)
	}
	store := &InMemoryIdempotencyStore{
		claims:   make(map[string]time.Time),
		now:      o.now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.sweepLoop(o.sweepInterval)

	return store
}

// MarkProcessed claims key unless an unexpired claim exists
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiresAt, ok := s.claims[key]; ok && now.Before(expiresAt) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key holds an unexpired claim
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.claims[key]
	return ok && s.now().Before(expiresAt), nil
}

// Release drops the claim on key
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, key)
	return nil
}

// Close stops the sweep. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) sweepLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *InMemoryIdempotencyStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expiresAt := range s.claims {
		if !now.Before(expiresAt) {
			delete(s.claims, key)
		}
	}
}

// Size returns the number of claims held, expired or not
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
