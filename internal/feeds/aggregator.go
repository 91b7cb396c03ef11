package feeds

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/finpulse/narrative/internal/logging"
)

// sourceState tracks a single source and its fetch throttle.
type sourceState struct {
	source  Source
	limiter *rate.Limiter
}

// Aggregator fans in items from multiple sources for one batch run.
// Each source is throttled independently so a tight scheduler cadence
// cannot hammer a provider.
type Aggregator struct {
	mu      sync.Mutex
	sources []*sourceState
	seen    map[string]bool // item URL -> already returned
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		seen: make(map[string]bool),
	}
}

// Add registers a source with a minimum interval between fetches.
func (a *Aggregator) Add(src Source, minInterval time.Duration) {
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sources = append(a.sources, &sourceState{
		source:  src,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	})
}

// FetchAll fetches every registered source and returns new items only,
// deduplicated by URL across runs, ordered by published time ascending.
// A failing source is logged and skipped; it never aborts the batch.
func (a *Aggregator) FetchAll(ctx context.Context) []Item {
	a.mu.Lock()
	sources := make([]*sourceState, len(a.sources))
	copy(sources, a.sources)
	a.mu.Unlock()

	var (
		wg      sync.WaitGroup
		itemsMu sync.Mutex
		fetched []Item
	)

	for _, st := range sources {
		wg.Add(1)
		go func(st *sourceState) {
			defer wg.Done()

			if err := st.limiter.Wait(ctx); err != nil {
				return // context cancelled
			}

			items, err := st.source.Fetch()
			if err != nil {
				logging.Warn("feed fetch failed", "source", st.source.Name(), "error", err)
				return
			}
			logging.Debug("feed fetched", "source", st.source.Name(), "items", len(items))

			itemsMu.Lock()
			fetched = append(fetched, items...)
			itemsMu.Unlock()
		}(st)
	}
	wg.Wait()

	a.mu.Lock()
	defer a.mu.Unlock()

	var fresh []Item
	for _, it := range fetched {
		key := it.URL
		if key == "" {
			key = it.ID
		}
		if a.seen[key] {
			continue
		}
		a.seen[key] = true
		fresh = append(fresh, it)
	}

	sort.Slice(fresh, func(i, j int) bool {
		if fresh[i].Published.Equal(fresh[j].Published) {
			return fresh[i].ID < fresh[j].ID
		}
		return fresh[i].Published.Before(fresh[j].Published)
	})

	return fresh
}
