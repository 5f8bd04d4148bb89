package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/BrianElionDev/Loomify/internal/domain"
)

// Gateway is the remote store surface the query layer depends on.
type Gateway interface {
	FetchAll(ctx context.Context) ([]domain.Recording, error)
	FetchOne(ctx context.Context, id string) (domain.Recording, error)
	ReplaceAnalysis(ctx context.Context, id string, analysis domain.AnalysisResult) (domain.Recording, error)
}

const (
	recordingsKey = "recordings"

	// Entries count as stale after this long, but stale data is still served;
	// staleness only matters when a refresh is requested explicitly.
	defaultTTL = 5 * time.Minute
)

type fetchResult struct {
	data []domain.Recording
	err  error
}

// Store is the single source of truth for the current known set of
// recordings. Concurrent first reads coalesce onto one in-flight fetch, and a
// failed refresh never clears previously cached data.
type Store struct {
	gw Gateway

	// data holds the collection under NoExpiration; fresh is a TTL marker
	// whose absence means the entry is stale.
	data  *gocache.Cache
	fresh *gocache.Cache

	mu       sync.Mutex
	fetching bool
	waiters  []chan fetchResult
	lastErr  error
}

// New creates a store over the gateway with the default 5-minute staleness.
func New(gw Gateway) *Store {
	return NewWithTTL(gw, defaultTTL)
}

func NewWithTTL(gw Gateway, ttl time.Duration) *Store {
	return &Store{
		gw:    gw,
		data:  gocache.New(gocache.NoExpiration, 0),
		fresh: gocache.New(ttl, 2*ttl),
	}
}

// Recordings returns the cached collection, fetching on first use. Callers
// arriving while a fetch is in flight share its result.
func (s *Store) Recordings(ctx context.Context) ([]domain.Recording, error) {
	if data, ok := s.cached(); ok {
		return data, nil
	}
	return s.fetch(ctx)
}

// Snapshot returns the cached collection and the last refresh error without
// touching the network. ok is false when nothing was ever fetched.
func (s *Store) Snapshot() (data []domain.Recording, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.lastErr
	if v, found := s.data.Get(recordingsKey); found {
		return v.([]domain.Recording), true, err
	}
	return nil, false, err
}

// IsStale reports whether the cached collection has outlived its TTL.
func (s *Store) IsStale() bool {
	_, found := s.fresh.Get(recordingsKey)
	return !found
}

// Invalidate marks the collection stale and refetches in the background.
// Readers keep seeing the previous value until the refetch lands.
func (s *Store) Invalidate(ctx context.Context) {
	s.fresh.Delete(recordingsKey)
	go func() { _, _ = s.fetch(ctx) }()
}

// Refresh fetches synchronously. On failure the previous data stays cached
// (stale-while-error) and the error is recorded for Snapshot.
func (s *Store) Refresh(ctx context.Context) error {
	_, err := s.fetch(ctx)
	return err
}

// ApplyPatch replaces the matching cached entry by id; no-op when the id is
// absent or nothing is cached.
func (s *Store) ApplyPatch(updated domain.Recording) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, found := s.data.Get(recordingsKey)
	if !found {
		return
	}
	current := v.([]domain.Recording)
	next := make([]domain.Recording, len(current))
	copy(next, current)
	for i := range next {
		if next[i].ID == updated.ID {
			next[i] = updated
			s.data.Set(recordingsKey, next, gocache.NoExpiration)
			return
		}
	}
}

// UpdateTasks performs the read-modify-write the store's whole-field update
// primitive forces: fetch the current record, overwrite the named positions
// on a deep copy, replace the whole analysis, then patch the cache with the
// post-write record. A failed mutation leaves the cache untouched.
func (s *Store) UpdateTasks(ctx context.Context, id string, completions []domain.CompletionUpdate, texts []domain.TextUpdate) (domain.Recording, error) {
	current, err := s.gw.FetchOne(ctx, id)
	if err != nil {
		return domain.Recording{}, err
	}
	next := domain.ApplyUpdates(current.Analysis, completions, texts)
	updated, err := s.gw.ReplaceAnalysis(ctx, id, next)
	if err != nil {
		return domain.Recording{}, err
	}
	s.ApplyPatch(updated)
	return updated, nil
}

func (s *Store) cached() ([]domain.Recording, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, found := s.data.Get(recordingsKey); found {
		return v.([]domain.Recording), true
	}
	return nil, false
}

func (s *Store) fetch(ctx context.Context) ([]domain.Recording, error) {
	s.mu.Lock()
	if s.fetching {
		ch := make(chan fetchResult, 1)
		s.waiters = append(s.waiters, ch)
		s.mu.Unlock()
		select {
		case res := <-ch:
			return res.data, res.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.fetching = true
	s.mu.Unlock()

	data, err := s.gw.FetchAll(ctx)

	s.mu.Lock()
	s.fetching = false
	waiters := s.waiters
	s.waiters = nil
	if err == nil {
		s.data.Set(recordingsKey, data, gocache.NoExpiration)
		s.fresh.SetDefault(recordingsKey, true)
		s.lastErr = nil
	} else {
		s.lastErr = err
		if v, found := s.data.Get(recordingsKey); found {
			// stale-while-error: keep serving what we had
			data = v.([]domain.Recording)
		}
	}
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- fetchResult{data: data, err: err}
	}
	return data, err
}
