package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/finsight/backend/internal/ledger"
)

// DefaultAnalysisTimeout bounds one pipeline run. A ledger large enough
// to blow this is a configuration problem, not a retry case.
const DefaultAnalysisTimeout = 2 * time.Minute

type cacheEntry struct {
	analyzer *Analyzer
	revision string
	builtAt  time.Time
}

// Cache hands out per-user analyzers, rebuilding only when the ledger's
// revision marker has moved. Concurrent requests for the same user
// share one pipeline run through singleflight, so a burst of requests
// after an append trains the models once.
type Cache struct {
	store   ledger.Store
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	group   singleflight.Group
}

// NewCache creates an analyzer cache over the given ledger store.
func NewCache(store ledger.Store, log zerolog.Logger) *Cache {
	return &Cache{
		store:   store,
		timeout: DefaultAnalysisTimeout,
		log:     log.With().Str("component", "analyzer_cache").Logger(),
		entries: make(map[string]*cacheEntry),
	}
}

// SetTimeout overrides the per-run timeout. Zero disables the bound.
func (c *Cache) SetTimeout(d time.Duration) { c.timeout = d }

// Get returns a ready analyzer for the user, rebuilding if the ledger
// changed since the cached run. ledger.ErrNotFound passes through for
// unknown users.
func (c *Cache) Get(ctx context.Context, userID string) (*Analyzer, error) {
	revision, err := c.store.Revision(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if ok && entry.revision == revision {
		return entry.analyzer, nil
	}

	// Key on user and revision so a stale in-flight build does not
	// satisfy a request that has already seen a newer ledger.
	v, err, _ := c.group.Do(userID+"\x00"+revision, func() (interface{}, error) {
		return c.build(ctx, userID, revision)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Analyzer), nil
}

func (c *Cache) build(ctx context.Context, userID, revision string) (*Analyzer, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	recs, err := c.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	analyzer := NewAnalyzer(c.log)
	if err := analyzer.Run(ctx, recs); err != nil {
		return nil, err
	}
	c.log.Info().
		Str("user", userID).
		Str("revision", revision).
		Dur("took", time.Since(started)).
		Msg("analysis rebuilt")

	c.mu.Lock()
	c.entries[userID] = &cacheEntry{
		analyzer: analyzer,
		revision: revision,
		builtAt:  started,
	}
	c.mu.Unlock()
	return analyzer, nil
}

// Invalidate drops the cached analyzer so the next Get rebuilds even if
// the revision marker has not moved.
func (c *Cache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}
