package narrative

import (
	"context"
	"sync"
	"time"

	"github.com/finpulse/narrative/internal/entity"
	"github.com/finpulse/narrative/internal/feeds"
)

// memStore is an in-memory Store for engine tests. It mirrors the sqlite
// implementation's isolation: reads return copies, never shared pointers.
type memStore struct {
	mu sync.Mutex

	narratives map[string]*Narrative
	memberOf   map[string]string // item ID -> narrative ID
	titles     map[string][]string
	times      map[string][]time.Time
	seeds      map[string]Seed
	snapshots  []*MetricSnapshot
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		narratives: make(map[string]*Narrative),
		memberOf:   make(map[string]string),
		titles:     make(map[string][]string),
		times:      make(map[string][]time.Time),
		seeds:      make(map[string]Seed),
	}
}

func cloneNarrative(n *Narrative) *Narrative {
	c := *n
	c.ArticleIDs = append([]string(nil), n.ArticleIDs...)
	c.EntityKeys = make(map[entity.Key]bool, len(n.EntityKeys))
	for k := range n.EntityKeys {
		c.EntityKeys[k] = true
	}
	return &c
}

func (s *memStore) GetNarrative(_ context.Context, id string) (*Narrative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.narratives[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneNarrative(n), nil
}

func (s *memStore) RecentNarratives(_ context.Context, since time.Time) ([]*Narrative, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Narrative
	for _, n := range s.narratives {
		if since.IsZero() || !n.UpdatedAt.Before(since) {
			out = append(out, cloneNarrative(n))
		}
	}
	return out, nil
}

func (s *memStore) CreateNarrative(_ context.Context, n *Narrative, members []feeds.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narratives[n.ID] = cloneNarrative(n)
	for _, it := range members {
		s.memberOf[it.ID] = n.ID
		s.titles[n.ID] = append(s.titles[n.ID], it.Title)
		s.times[n.ID] = append(s.times[n.ID], it.Published)
	}
	return nil
}

func (s *memStore) UpdateNarrative(_ context.Context, id string, up NarrativeUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.narratives[id]
	if !ok {
		return ErrNotFound
	}
	for _, it := range up.AddMembers {
		if _, dup := s.memberOf[it.ID]; dup {
			continue
		}
		s.memberOf[it.ID] = id
		n.ArticleIDs = append(n.ArticleIDs, it.ID)
		s.titles[id] = append(s.titles[id], it.Title)
		s.times[id] = append(s.times[id], it.Published)
	}
	for _, k := range up.AddKeys {
		n.EntityKeys[k] = true
	}
	n.Sentiment = up.Sentiment
	n.UpdatedAt = up.UpdatedAt
	return nil
}

func (s *memStore) MemberArticleIDs(_ context.Context, ids []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool)
	for _, id := range ids {
		if _, ok := s.memberOf[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *memStore) ArticleTitles(_ context.Context, narrativeID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles[narrativeID]...), nil
}

func (s *memStore) ArticleTimes(_ context.Context, narrativeID string) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.times[narrativeID]...), nil
}

func (s *memStore) PutSeeds(_ context.Context, seeds []Seed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sd := range seeds {
		s.seeds[sd.Item.ID] = sd
	}
	return nil
}

func (s *memStore) Seeds(_ context.Context) ([]Seed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Seed
	for _, sd := range s.seeds {
		out = append(out, sd)
	}
	return out, nil
}

func (s *memStore) DeleteSeeds(_ context.Context, itemIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range itemIDs {
		delete(s.seeds, id)
	}
	return nil
}

func (s *memStore) AppendSnapshot(_ context.Context, snap *MetricSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *snap
	s.snapshots = append(s.snapshots, &c)
	return nil
}

func (s *memStore) LatestSnapshot(_ context.Context, narrativeID string, period Period) (*MetricSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *MetricSnapshot
	for _, snap := range s.snapshots {
		if snap.NarrativeID != narrativeID || snap.Period != period {
			continue
		}
		if latest == nil || snap.ComputedAt.After(latest.ComputedAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	c := *latest
	return &c, nil
}

func (s *memStore) DeleteNarrativesOlderThan(_ context.Context, age time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-age)
	deleted := 0
	for id, n := range s.narratives {
		if n.UpdatedAt.Before(cutoff) {
			delete(s.narratives, id)
			for item, nid := range s.memberOf {
				if nid == id {
					delete(s.memberOf, item)
				}
			}
			delete(s.titles, id)
			delete(s.times, id)
			deleted++
		}
	}
	return deleted, nil
}
