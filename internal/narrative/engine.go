package narrative

import (
	"context"
	"time"

	"github.com/finpulse/narrative/internal/entity"
	"github.com/finpulse/narrative/internal/feeds"
	"github.com/finpulse/narrative/internal/sentiment"
)

// Engine is the facade the API layer calls. It bundles the detector, the
// metrics engine, and the pure extraction/classification pass-throughs
// behind the three operation groups the core exposes.
type Engine struct {
	store      Store
	extractor  *entity.Extractor
	classifier *sentiment.Classifier
	detector   *Detector
	metrics    *Metrics
}

// NewEngine wires an engine over its collaborators. Nil extractor or
// classifier fall back to the compiled-in rule tables.
func NewEngine(store Store, extractor *entity.Extractor, classifier *sentiment.Classifier) *Engine {
	if extractor == nil {
		extractor = entity.NewExtractor(nil)
	}
	if classifier == nil {
		classifier = sentiment.NewClassifier(nil)
	}
	return &Engine{
		store:      store,
		extractor:  extractor,
		classifier: classifier,
		detector:   NewDetector(store, extractor, classifier),
		metrics:    NewMetrics(store),
	}
}

// SetMaxKeywords overrides the keyword extraction cap used during
// detection.
func (e *Engine) SetMaxKeywords(n int) {
	e.detector.SetMaxKeywords(n)
}

// DetectNarratives triggers one detector pass over a batch of recent items.
func (e *Engine) DetectNarratives(ctx context.Context, items []feeds.Item, cfg DetectConfig) (DetectResult, error) {
	return e.detector.Detect(ctx, items, cfg)
}

// ComputeMetrics triggers one metrics pass. Nil or empty periods compute
// both default buckets.
func (e *Engine) ComputeMetrics(ctx context.Context, periods []Period) (MetricsResult, error) {
	return e.metrics.ComputeAll(ctx, periods)
}

// LatestMetrics returns the most recent stored snapshot per period.
func (e *Engine) LatestMetrics(ctx context.Context, narrativeID string) ([]*MetricSnapshot, error) {
	return e.metrics.Latest(ctx, narrativeID)
}

// Trending returns narratives ranked by velocity for the period.
func (e *Engine) Trending(ctx context.Context, period Period, limit int) ([]Ranked, error) {
	return e.metrics.Trending(ctx, period, limit)
}

// MostMentioned returns narratives ranked by raw mention count.
func (e *Engine) MostMentioned(ctx context.Context, period Period, limit int) ([]Ranked, error) {
	return e.metrics.MostMentioned(ctx, period, limit)
}

// ExtractEntities is the pass-through debug entry point: extraction without
// detection, grouped by entity type. maxKeywords <= 0 uses the default cap.
func (e *Engine) ExtractEntities(text string, maxKeywords int) map[entity.Type][]string {
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	grouped := make(map[entity.Type][]string)
	for _, m := range e.extractor.Extract(text, maxKeywords) {
		grouped[m.Type] = append(grouped[m.Type], m.Value)
	}
	return grouped
}

// ClassifySentiment is the pass-through classification entry point.
func (e *Engine) ClassifySentiment(text string) sentiment.Sentiment {
	return e.classifier.Classify(text)
}

// ExplainSentiment classifies and reports the matched lexicon terms.
func (e *Engine) ExplainSentiment(text string) sentiment.Explanation {
	return e.classifier.Explain(text)
}

// DeleteOlderThan removes narratives whose last update is older than the
// given number of days. Retention policy itself lives with the caller.
func (e *Engine) DeleteOlderThan(ctx context.Context, days int) (int, error) {
	return e.store.DeleteNarrativesOlderThan(ctx, time.Duration(days)*24*time.Hour)
}
