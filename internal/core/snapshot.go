package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FetchFunc loads one snapshot of a data feed from the backend.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// SnapshotStore wraps a fetch-and-cache cycle: it keeps the latest good
// snapshot of one feed (balance, profile, records, ...) and refreshes it on
// demand. A failed refresh leaves the previous snapshot in place.
type SnapshotStore[T any] struct {
	name   string
	fetch  FetchFunc[T]
	cache  SnapshotCache
	key    func() string
	logger logrus.FieldLogger

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	loaded    bool
	lastErr   error

	// started numbers each Refresh; committed is the newest one whose
	// result was applied. epoch advances on Reset.
	started   uint64
	committed uint64
	epoch     uint64
}

// SnapshotOption configures a SnapshotStore.
type SnapshotOption[T any] func(*SnapshotStore[T])

// WithSnapshotCache persists good snapshots in cache under the key returned
// by key (typically scoped to the logged-in user).
func WithSnapshotCache[T any](cache SnapshotCache, key func() string) SnapshotOption[T] {
	return func(s *SnapshotStore[T]) {
		s.cache = cache
		s.key = key
	}
}

// WithSnapshotLogger sets the logger used for swallowed refresh errors.
func WithSnapshotLogger[T any](l logrus.FieldLogger) SnapshotOption[T] {
	return func(s *SnapshotStore[T]) {
		s.logger = l
	}
}

// NewSnapshotStore creates a store named name around fetch.
func NewSnapshotStore[T any](name string, fetch FetchFunc[T], opts ...SnapshotOption[T]) *SnapshotStore[T] {
	s := &SnapshotStore[T]{
		name:   name,
		fetch:  fetch,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the feed name.
func (s *SnapshotStore[T]) Name() string { return s.name }

// Refresh fetches a new snapshot. On error the previous snapshot is kept and
// the error is returned for callers that care; background pollers ignore it.
//
// Overlapping refreshes commit in start order: a result is dropped when a
// later refresh already committed or the store was Reset while fetching.
func (s *SnapshotStore[T]) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.started++
	seq, epoch := s.started, s.epoch
	s.mu.Unlock()
	key := s.cacheKey()

	v, err := s.fetch(ctx)

	s.mu.Lock()
	if epoch != s.epoch || seq < s.committed {
		s.mu.Unlock()
		s.logger.WithField("store", s.name).Debug("dropping superseded refresh")
		if err != nil {
			return fmt.Errorf("refreshing %s: %w", s.name, err)
		}
		return nil
	}
	if err != nil {
		s.lastErr = err
		s.mu.Unlock()
		s.logger.WithField("store", s.name).WithError(err).Debug("refresh failed, keeping previous snapshot")
		return fmt.Errorf("refreshing %s: %w", s.name, err)
	}
	s.value = v
	s.fetchedAt = time.Now()
	s.loaded = true
	s.lastErr = nil
	s.committed = seq
	s.mu.Unlock()

	if s.cache != nil {
		s.cache.Store(ctx, key, v)
	}
	return nil
}

// Prime seeds the store from the snapshot cache if nothing was fetched yet.
// It reports whether a cached snapshot was loaded.
func (s *SnapshotStore[T]) Prime(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	s.mu.RLock()
	loaded, epoch := s.loaded, s.epoch
	s.mu.RUnlock()
	if loaded {
		return false
	}

	var v T
	if !s.cache.Load(ctx, s.cacheKey(), &v) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded || s.epoch != epoch {
		return false
	}
	s.value = v
	s.loaded = true
	return true
}

// Latest returns the current snapshot and whether one has been loaded.
func (s *SnapshotStore[T]) Latest() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.loaded
}

// FetchedAt returns when the current snapshot was fetched from the backend.
// It is zero for snapshots primed from the cache.
func (s *SnapshotStore[T]) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetchedAt
}

// LastError returns the error of the most recent refresh, nil after a success.
func (s *SnapshotStore[T]) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Reset forgets the snapshot, e.g. on logout.
func (s *SnapshotStore[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero T
	s.value = zero
	s.fetchedAt = time.Time{}
	s.loaded = false
	s.lastErr = nil
	s.epoch++
	s.committed = 0
}

func (s *SnapshotStore[T]) cacheKey() string {
	if s.key == nil {
		return s.name
	}
	return s.key() + ":" + s.name
}
