// Package narrative implements the narrative engine core: clustering of
// incoming text items into persistent, evolving narratives, incremental
// sentiment classification, and time-windowed momentum metrics.
package narrative

import (
	"errors"
	"fmt"
	"time"

	"github.com/finpulse/narrative/internal/entity"
	"github.com/finpulse/narrative/internal/feeds"
	"github.com/finpulse/narrative/internal/sentiment"
)

// Narrative is a persistent cluster of items believed to represent one
// ongoing story, identified by a growing set of shared entities.
//
// Invariants: ArticleIDs is never empty (a memberless narrative is deleted,
// not retained), and UpdatedAt >= CreatedAt with UpdatedAt bumped on every
// successful attach. Only the detector mutates a narrative.
type Narrative struct {
	ID        string
	Title     string // derived from the founding item
	Summary   string
	Sentiment sentiment.Sentiment
	CreatedAt time.Time
	UpdatedAt time.Time

	ArticleIDs []string
	EntityKeys map[entity.Key]bool
}

// SharedEntities counts the intersection between the narrative's entity
// keys and the given set.
func (n *Narrative) SharedEntities(keys []entity.Key) int {
	count := 0
	for _, k := range keys {
		if n.EntityKeys[k] {
			count++
		}
	}
	return count
}

// Period is a metrics time bucket.
type Period string

const (
	PeriodHour Period = "1h"
	Period24h  Period = "24h"
)

// DefaultPeriods are the buckets computed when the caller passes none.
func DefaultPeriods() []Period {
	return []Period{PeriodHour, Period24h}
}

// Duration returns the bucket length, or an error for unknown periods.
func (p Period) Duration() (time.Duration, error) {
	switch p {
	case PeriodHour:
		return time.Hour, nil
	case Period24h:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: unknown period %q", ErrInvalidConfig, p)
	}
}

// MetricSnapshot is a point-in-time measurement for one narrative and one
// period. Snapshots are append-only; each computation run writes new rows
// so trend-over-time queries remain possible.
type MetricSnapshot struct {
	ID                   string
	NarrativeID          string
	Period               Period
	MentionCount         int
	PreviousMentionCount int
	Velocity             float64
	ComputedAt           time.Time
}

// Seed is an item not yet attached to any narrative, held pending enough
// corroborating items to materialize a new one. A single isolated item
// never becomes a one-item narrative.
type Seed struct {
	Item feeds.Item
	Keys []entity.Key
}

// DetectConfig bounds one detector pass.
type DetectConfig struct {
	// MinArticles is the minimum group size before a new narrative is
	// materialized from unattached seeds.
	MinArticles int

	// TimeWindowHours bounds how stale a narrative's UpdatedAt may be,
	// relative to an item's publish time, to remain an attach candidate.
	TimeWindowHours int

	// MinSharedEntities is the minimum entity intersection between an item
	// and a narrative (or between two seeds) to qualify as a match.
	MinSharedEntities int
}

// ErrInvalidConfig marks programming-contract violations rejected before a
// run starts; nothing is processed when it is returned.
var ErrInvalidConfig = errors.New("invalid config")

// Validate rejects configs that would make a run meaningless.
func (c DetectConfig) Validate() error {
	if c.MinArticles < 1 {
		return fmt.Errorf("%w: minArticles must be >= 1, got %d", ErrInvalidConfig, c.MinArticles)
	}
	if c.MinSharedEntities < 1 {
		return fmt.Errorf("%w: minSharedEntities must be >= 1, got %d", ErrInvalidConfig, c.MinSharedEntities)
	}
	if c.TimeWindowHours <= 0 {
		return fmt.Errorf("%w: timeWindowHours must be positive, got %d", ErrInvalidConfig, c.TimeWindowHours)
	}
	return nil
}

// Window returns the recency window as a duration.
func (c DetectConfig) Window() time.Duration {
	return time.Duration(c.TimeWindowHours) * time.Hour
}

// DetectResult reports one detector pass. Zero counts mean "nothing to do",
// which is distinct from a failed run (explicit error).
type DetectResult struct {
	Detected int // narratives touched this run (created or updated)
	Created  int // brand-new narratives
	Skipped  int // malformed or signal-free items skipped
}

// MetricsResult reports one metrics pass.
type MetricsResult struct {
	Calculated int // snapshots computed
	Stored     int // snapshots successfully appended
}

// Ranked is one row of a trending or most-mentioned view.
type Ranked struct {
	Narrative            *Narrative
	MentionCount         int
	PreviousMentionCount int
	Velocity             float64
}
