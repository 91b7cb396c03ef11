package narrative

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/finpulse/narrative/internal/logging"
	"github.com/finpulse/narrative/internal/work"
)

// Metrics recomputes time-windowed momentum measurements per narrative and
// produces ranked trending and most-mentioned views.
//
// A computation run is a pure read-then-append: it never mutates narrative
// rows, only appends snapshots, so it can be retried safely after a partial
// failure. Duplicate snapshots are superseded by recency in queries.
type Metrics struct {
	store   Store
	workers int

	now func() time.Time // injectable for tests
}

// NewMetrics wires a metrics engine over the store.
func NewMetrics(store Store) *Metrics {
	return &Metrics{store: store, now: time.Now}
}

// measure is one narrative's counts for one period.
type measure struct {
	narrative *Narrative
	mentions  int
	previous  int
	velocity  float64
	err       error
}

// ComputeAll computes and appends snapshots for every narrative and each
// requested period. An empty periods slice means both default buckets.
func (m *Metrics) ComputeAll(ctx context.Context, periods []Period) (MetricsResult, error) {
	var res MetricsResult

	if len(periods) == 0 {
		periods = DefaultPeriods()
	}
	for _, p := range periods {
		if _, err := p.Duration(); err != nil {
			return res, err
		}
	}
	now := m.now()

	narratives, err := m.store.RecentNarratives(ctx, time.Time{})
	if err != nil {
		return res, err
	}

	for _, period := range periods {
		measures := m.measureAll(ctx, narratives, period, now)
		for _, ms := range measures {
			if ms.err != nil {
				logging.Error("metrics: measuring narrative failed",
					"narrative", ms.narrative.ID, "period", period, "error", ms.err)
				continue
			}
			res.Calculated++

			snap := &MetricSnapshot{
				ID:                   uuid.NewString(),
				NarrativeID:          ms.narrative.ID,
				Period:               period,
				MentionCount:         ms.mentions,
				PreviousMentionCount: ms.previous,
				Velocity:             ms.velocity,
				ComputedAt:           now,
			}
			if err := m.store.AppendSnapshot(ctx, snap); err != nil {
				logging.Error("metrics: appending snapshot failed",
					"narrative", ms.narrative.ID, "period", period, "error", err)
				continue
			}
			res.Stored++
		}
	}

	logging.Info("metrics: run complete", "calculated", res.Calculated, "stored", res.Stored)
	return res, nil
}

// Trending ranks narratives by velocity descending for the period.
// Narratives with zero mentions in the current window are excluded
// regardless of velocity: a story that has gone silent cannot be trending.
func (m *Metrics) Trending(ctx context.Context, period Period, limit int) ([]Ranked, error) {
	measures, err := m.liveMeasures(ctx, period)
	if err != nil {
		return nil, err
	}

	var ranked []Ranked
	for _, ms := range measures {
		if ms.err != nil || ms.mentions == 0 {
			continue
		}
		ranked = append(ranked, Ranked{
			Narrative:            ms.narrative,
			MentionCount:         ms.mentions,
			PreviousMentionCount: ms.previous,
			Velocity:             ms.velocity,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Velocity != ranked[j].Velocity {
			return ranked[i].Velocity > ranked[j].Velocity
		}
		if ranked[i].MentionCount != ranked[j].MentionCount {
			return ranked[i].MentionCount > ranked[j].MentionCount
		}
		return rankAfter(ranked[i].Narrative, ranked[j].Narrative)
	})

	return clip(ranked, limit), nil
}

// MostMentioned ranks narratives by raw mention count descending, ties
// broken by more recent UpdatedAt.
func (m *Metrics) MostMentioned(ctx context.Context, period Period, limit int) ([]Ranked, error) {
	measures, err := m.liveMeasures(ctx, period)
	if err != nil {
		return nil, err
	}

	var ranked []Ranked
	for _, ms := range measures {
		if ms.err != nil {
			continue
		}
		ranked = append(ranked, Ranked{
			Narrative:            ms.narrative,
			MentionCount:         ms.mentions,
			PreviousMentionCount: ms.previous,
			Velocity:             ms.velocity,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].MentionCount != ranked[j].MentionCount {
			return ranked[i].MentionCount > ranked[j].MentionCount
		}
		return rankAfter(ranked[i].Narrative, ranked[j].Narrative)
	})

	return clip(ranked, limit), nil
}

// Latest returns the most recent stored snapshot per default period for one
// narrative. Periods without a snapshot yet are omitted.
func (m *Metrics) Latest(ctx context.Context, narrativeID string) ([]*MetricSnapshot, error) {
	var snaps []*MetricSnapshot
	for _, period := range DefaultPeriods() {
		snap, err := m.store.LatestSnapshot(ctx, narrativeID, period)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("latest snapshot for %s/%s: %w", narrativeID, period, err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (m *Metrics) liveMeasures(ctx context.Context, period Period) ([]measure, error) {
	if _, err := period.Duration(); err != nil {
		return nil, err
	}
	narratives, err := m.store.RecentNarratives(ctx, time.Time{})
	if err != nil {
		return nil, err
	}
	return m.measureAll(ctx, narratives, period, m.now()), nil
}

// measureAll computes counts and velocity for every narrative in one
// period. Reads are independent, so they fan out across workers.
func (m *Metrics) measureAll(ctx context.Context, narratives []*Narrative, period Period, now time.Time) []measure {
	d, _ := period.Duration()

	return work.Map(ctx, m.workers, narratives, func(ctx context.Context, n *Narrative) measure {
		times, err := m.store.ArticleTimes(ctx, n.ID)
		if err != nil {
			return measure{narrative: n, err: err}
		}

		current, previous := 0, 0
		windowStart := now.Add(-d)
		prevStart := now.Add(-2 * d)
		for _, t := range times {
			switch {
			case t.After(windowStart) && !t.After(now):
				current++
			case t.After(prevStart) && !t.After(windowStart):
				previous++
			}
		}

		return measure{
			narrative: n,
			mentions:  current,
			previous:  previous,
			velocity:  velocity(current, previous),
		}
	})
}

// velocity is the rate of change versus the prior equal-length window,
// expressed as a ratio. The max(previous, 1) divisor avoids division by
// zero while still rewarding narratives that go from zero to nonzero.
func velocity(current, previous int) float64 {
	divisor := previous
	if divisor < 1 {
		divisor = 1
	}
	return float64(current-previous) / float64(divisor)
}

// rankAfter is the shared deterministic tie-break: more recently updated
// first, then lexical ID.
func rankAfter(a, b *Narrative) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func clip(ranked []Ranked, limit int) []Ranked {
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}
