package narrative

import (
	"context"
	"errors"
	"time"

	"github.com/finpulse/narrative/internal/entity"
	"github.com/finpulse/narrative/internal/feeds"
	"github.com/finpulse/narrative/internal/sentiment"
)

// ErrNotFound is returned by store lookups for absent records.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for narratives, their article
// associations, held seeds, and metric snapshots. The engine issues
// read/append/update operations against it; schema and transport are the
// implementation's concern.
//
// UpdateNarrative must be atomic per narrative: the detector partitions a
// run's items by target narrative and applies each narrative's mutation
// set in a single call, so concurrent attaches to the same narrative
// serialize inside the store.
type Store interface {
	// GetNarrative fetches one narrative with its entity keys and member
	// article IDs. Returns ErrNotFound when absent.
	GetNarrative(ctx context.Context, id string) (*Narrative, error)

	// RecentNarratives returns narratives with UpdatedAt >= since. A zero
	// since returns all narratives.
	RecentNarratives(ctx context.Context, since time.Time) ([]*Narrative, error)

	// CreateNarrative persists a new narrative together with its founding
	// members in one transaction.
	CreateNarrative(ctx context.Context, n *Narrative, members []feeds.Item) error

	// UpdateNarrative atomically appends members, unions entity keys, and
	// rewrites sentiment and UpdatedAt for one narrative.
	UpdateNarrative(ctx context.Context, id string, up NarrativeUpdate) error

	// MemberArticleIDs reports which of the given item IDs are already a
	// member of some narrative.
	MemberArticleIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// ArticleTitles returns member titles for sentiment recomputation.
	ArticleTitles(ctx context.Context, narrativeID string) ([]string, error)

	// ArticleTimes returns member publish timestamps for metrics windows.
	ArticleTimes(ctx context.Context, narrativeID string) ([]time.Time, error)

	// PutSeeds upserts held seeds so accumulation works across runs.
	PutSeeds(ctx context.Context, seeds []Seed) error

	// Seeds returns all held seeds.
	Seeds(ctx context.Context) ([]Seed, error)

	// DeleteSeeds drops seeds by item ID after promotion or attachment.
	DeleteSeeds(ctx context.Context, itemIDs []string) error

	// AppendSnapshot appends one metric snapshot. Never mutates prior rows.
	AppendSnapshot(ctx context.Context, snap *MetricSnapshot) error

	// LatestSnapshot returns the most recent snapshot for a narrative and
	// period, or ErrNotFound.
	LatestSnapshot(ctx context.Context, narrativeID string, period Period) (*MetricSnapshot, error)

	// DeleteNarrativesOlderThan removes narratives whose UpdatedAt is older
	// than the given age, with their associations. Returns rows removed.
	DeleteNarrativesOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// NarrativeUpdate is one atomic mutation set for a single narrative.
type NarrativeUpdate struct {
	AddMembers []feeds.Item
	AddKeys    []entity.Key
	Sentiment  sentiment.Sentiment
	UpdatedAt  time.Time
}
