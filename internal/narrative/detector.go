package narrative

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finpulse/narrative/internal/entity"
	"github.com/finpulse/narrative/internal/feeds"
	"github.com/finpulse/narrative/internal/logging"
	"github.com/finpulse/narrative/internal/sentiment"
	"github.com/finpulse/narrative/internal/work"
)

// DefaultMaxKeywords caps keyword extraction during detection.
const DefaultMaxKeywords = 5

// Detector consumes a batch of recent items and either attaches each item
// to an existing open narrative or holds it as a seed until enough mutually
// overlapping seeds accumulate to materialize a new narrative.
//
// A run is deterministic and idempotent: re-running on the same batch finds
// every item already attached and changes nothing.
type Detector struct {
	store       Store
	extractor   *entity.Extractor
	classifier  *sentiment.Classifier
	maxKeywords int
	workers     int

	now func() time.Time // injectable for tests
}

// NewDetector wires a detector over its collaborators.
func NewDetector(store Store, extractor *entity.Extractor, classifier *sentiment.Classifier) *Detector {
	return &Detector{
		store:       store,
		extractor:   extractor,
		classifier:  classifier,
		maxKeywords: DefaultMaxKeywords,
		now:         time.Now,
	}
}

// SetMaxKeywords overrides the keyword extraction cap for detection.
// Values below 1 keep the default.
func (d *Detector) SetMaxKeywords(n int) {
	if n > 0 {
		d.maxKeywords = n
	}
}

// candidate is one item (from the batch or the held seed pool) flowing
// through a detection pass.
type candidate struct {
	item     feeds.Item
	keys     []entity.Key
	fromSeed bool
}

// Detect runs one detector pass over the batch. Malformed items are skipped
// and logged, never fatal; a storage failure on one narrative's update
// leaves that narrative untouched and the run continues.
func (d *Detector) Detect(ctx context.Context, items []feeds.Item, cfg DetectConfig) (DetectResult, error) {
	var res DetectResult

	if err := cfg.Validate(); err != nil {
		return res, err
	}
	now := d.now()

	cands, skipped, err := d.gather(ctx, items)
	if err != nil {
		return res, err
	}
	res.Skipped = skipped
	if len(cands) == 0 {
		return res, nil
	}

	// Open narratives within reach of the oldest item in the batch.
	earliest := cands[0].item.Published
	for _, c := range cands[1:] {
		if c.item.Published.Before(earliest) {
			earliest = c.item.Published
		}
	}
	narratives, err := d.store.RecentNarratives(ctx, earliest.Add(-cfg.Window()))
	if err != nil {
		return res, err
	}

	matched, pool := d.matchPass(cands, narratives, cfg, now)
	created := d.promoteSeeds(pool, cfg, now)

	return d.apply(ctx, res, matched, created, pool, now)
}

// gather validates the batch, drops items already attached to a narrative,
// merges in held seeds, and extracts entities for new items.
func (d *Detector) gather(ctx context.Context, items []feeds.Item) ([]candidate, int, error) {
	skipped := 0
	fresh := make([]feeds.Item, 0, len(items))
	inBatch := make(map[string]bool, len(items))

	for _, it := range items {
		if !it.Valid() {
			skipped++
			logging.Warn("detector: skipping malformed item", "id", it.ID, "source", it.Source)
			continue
		}
		if inBatch[it.ID] {
			continue
		}
		inBatch[it.ID] = true
		fresh = append(fresh, it)
	}

	seeds, err := d.store.Seeds(ctx)
	if err != nil {
		return nil, skipped, err
	}

	ids := make([]string, 0, len(fresh)+len(seeds))
	for _, it := range fresh {
		ids = append(ids, it.ID)
	}
	for _, s := range seeds {
		ids = append(ids, s.Item.ID)
	}
	members, err := d.store.MemberArticleIDs(ctx, ids)
	if err != nil {
		return nil, skipped, err
	}

	var pending []feeds.Item
	for _, it := range fresh {
		if !members[it.ID] {
			pending = append(pending, it)
		}
	}

	// Extraction is pure, so fan out across workers.
	extracted := work.Map(ctx, d.workers, pending, func(_ context.Context, it feeds.Item) []entity.Key {
		mentions := d.extractor.Extract(it.Text(), d.maxKeywords)
		keys := make([]entity.Key, 0, len(mentions))
		for _, m := range mentions {
			keys = append(keys, m.Key())
		}
		return keys
	})

	var cands []candidate
	for i, it := range pending {
		if len(extracted[i]) == 0 {
			skipped++
			logging.Debug("detector: no entities extracted", "id", it.ID, "title", it.Title)
			continue
		}
		cands = append(cands, candidate{item: it, keys: extracted[i]})
	}

	for _, s := range seeds {
		if inBatch[s.Item.ID] || members[s.Item.ID] || len(s.Keys) == 0 {
			continue
		}
		cands = append(cands, candidate{item: s.Item, keys: s.Keys, fromSeed: true})
	}

	// Deterministic processing order: publish time, then ID.
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i].item, cands[j].item
		if a.Published.Equal(b.Published) {
			return a.ID < b.ID
		}
		return a.Published.Before(b.Published)
	})

	return cands, skipped, nil
}

// matchPass walks candidates in order, resolving each to an existing open
// narrative where the entity-overlap and recency rules allow, or into the
// seed pool otherwise. Matched attachments update the in-memory narrative
// state and entity index so later items in the same run see the growth.
func (d *Detector) matchPass(cands []candidate, narratives []*Narrative, cfg DetectConfig, now time.Time) (map[string][]candidate, []candidate) {
	state := make(map[string]*Narrative, len(narratives))
	index := make(map[entity.Key]map[string]bool) // entity key -> narrative IDs

	for _, n := range narratives {
		state[n.ID] = n
		for k := range n.EntityKeys {
			addToIndex(index, k, n.ID)
		}
	}

	matched := make(map[string][]candidate)
	var pool []candidate

	for _, c := range cands {
		best := d.bestMatch(c, state, index, cfg)
		if best == nil {
			pool = append(pool, c)
			continue
		}

		matched[best.ID] = append(matched[best.ID], c)
		for _, k := range c.keys {
			if !best.EntityKeys[k] {
				best.EntityKeys[k] = true
				addToIndex(index, k, best.ID)
			}
		}
		best.UpdatedAt = now
	}

	return matched, pool
}

// bestMatch picks the qualifying narrative with the largest entity
// intersection; ties break to the most recently updated, then smallest ID
// for stability.
func (d *Detector) bestMatch(c candidate, state map[string]*Narrative, index map[entity.Key]map[string]bool, cfg DetectConfig) *Narrative {
	candIDs := make(map[string]bool)
	for _, k := range c.keys {
		for id := range index[k] {
			candIDs[id] = true
		}
	}

	var best *Narrative
	bestOverlap := 0
	window := cfg.Window()

	for id := range candIDs {
		n := state[id]
		if n == nil {
			continue
		}

		// Stale narratives outside the window are not candidates; this
		// prevents unrelated news from resurrecting an old story.
		diff := c.item.Published.Sub(n.UpdatedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff > window {
			continue
		}

		overlap := n.SharedEntities(c.keys)
		if overlap < cfg.MinSharedEntities {
			continue
		}

		switch {
		case best == nil,
			overlap > bestOverlap,
			overlap == bestOverlap && n.UpdatedAt.After(best.UpdatedAt),
			overlap == bestOverlap && n.UpdatedAt.Equal(best.UpdatedAt) && n.ID < best.ID:
			best = n
			bestOverlap = overlap
		}
	}

	return best
}

// promoteSeeds groups the unattached pool into connected components where
// an edge is a pairwise entity intersection of at least MinSharedEntities,
// then materializes components that reach MinArticles. The remaining pool
// entries stay held.
func (d *Detector) promoteSeeds(pool []candidate, cfg DetectConfig, now time.Time) []*creation {
	if len(pool) < cfg.MinArticles {
		return nil
	}

	parent := make([]int, len(pool))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	keySets := make([]map[entity.Key]bool, len(pool))
	for i, c := range pool {
		keySets[i] = make(map[entity.Key]bool, len(c.keys))
		for _, k := range c.keys {
			keySets[i][k] = true
		}
	}

	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			shared := 0
			for k := range keySets[j] {
				if keySets[i][k] {
					shared++
					if shared >= cfg.MinSharedEntities {
						break
					}
				}
			}
			if shared >= cfg.MinSharedEntities {
				union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := range pool {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	roots := make([]int, 0, len(groups))
	for root, idxs := range groups {
		if len(idxs) >= cfg.MinArticles {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots) // deterministic creation order

	var creations []*creation
	for _, root := range roots {
		idxs := groups[root]
		members := make([]candidate, 0, len(idxs))
		for _, i := range idxs {
			members = append(members, pool[i])
		}
		// already sorted by publish time via pool ordering
		creations = append(creations, d.materialize(members, now))
	}

	return creations
}

// creation pairs a new narrative with its founding members.
type creation struct {
	narrative *Narrative
	members   []candidate
}

// materialize builds a narrative from a promoted seed group. Title and
// summary come from the founding (earliest) item; sentiment is classified
// over the concatenation of all member titles.
func (d *Detector) materialize(members []candidate, now time.Time) *creation {
	founding := members[0].item

	keys := make(map[entity.Key]bool)
	titles := make([]string, 0, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		for _, k := range m.keys {
			keys[k] = true
		}
		titles = append(titles, m.item.Title)
		ids = append(ids, m.item.ID)
	}

	n := &Narrative{
		ID:         uuid.NewString(),
		Title:      founding.Title,
		Summary:    founding.Summary,
		Sentiment:  d.classifier.ClassifyNarrative(founding.Title, strings.Join(titles, " ")),
		CreatedAt:  now,
		UpdatedAt:  now,
		ArticleIDs: ids,
		EntityKeys: keys,
	}
	return &creation{narrative: n, members: members}
}

// apply commits creations and per-narrative attachment sets. Each narrative
// is one atomic store call; updates fan out across workers since different
// narratives are independent. A failed narrative is logged and left for the
// next run; its items remain unattached and will be re-matched.
func (d *Detector) apply(ctx context.Context, res DetectResult, matched map[string][]candidate, creations []*creation, pool []candidate, now time.Time) (DetectResult, error) {
	var consumedSeeds []string
	promoted := make(map[string]bool)

	for _, cr := range creations {
		items := make([]feeds.Item, 0, len(cr.members))
		for _, m := range cr.members {
			items = append(items, m.item)
			promoted[m.item.ID] = true
		}
		if err := d.store.CreateNarrative(ctx, cr.narrative, items); err != nil {
			logging.Error("detector: create narrative failed", "narrative", cr.narrative.ID, "error", err)
			for _, m := range cr.members {
				promoted[m.item.ID] = false
			}
			continue
		}
		res.Created++
		res.Detected++
		logging.Info("detector: narrative created",
			"narrative", cr.narrative.ID, "title", cr.narrative.Title,
			"members", len(items), "sentiment", cr.narrative.Sentiment)
	}

	// Apply attachment sets concurrently; the per-narrative partition keeps
	// writes to one narrative serialized.
	ids := make([]string, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type outcome struct {
		id    string
		seeds []string
		err   error
	}
	outcomes := work.Map(ctx, d.workers, ids, func(ctx context.Context, id string) outcome {
		cands := matched[id]

		existing, err := d.store.ArticleTitles(ctx, id)
		if err != nil {
			return outcome{id: id, err: err}
		}
		n, err := d.store.GetNarrative(ctx, id)
		if err != nil {
			return outcome{id: id, err: err}
		}

		titles := existing
		up := NarrativeUpdate{UpdatedAt: now}
		var attachedIDs []string
		for _, c := range cands {
			up.AddMembers = append(up.AddMembers, c.item)
			up.AddKeys = append(up.AddKeys, c.keys...)
			titles = append(titles, c.item.Title)
			attachedIDs = append(attachedIDs, c.item.ID)
		}
		up.Sentiment = d.classifier.ClassifyNarrative(n.Title, strings.Join(titles, " "))

		if err := d.store.UpdateNarrative(ctx, id, up); err != nil {
			return outcome{id: id, err: err}
		}
		return outcome{id: id, seeds: attachedIDs}
	})

	for _, o := range outcomes {
		if o.err != nil {
			logging.Error("detector: narrative update failed", "narrative", o.id, "error", o.err)
			continue
		}
		res.Detected++
		consumedSeeds = append(consumedSeeds, o.seeds...)
	}

	// Persist the still-held pool and drop consumed seeds.
	var hold []Seed
	for _, c := range pool {
		if promoted[c.item.ID] {
			continue
		}
		hold = append(hold, Seed{Item: c.item, Keys: c.keys})
	}
	if len(hold) > 0 {
		if err := d.store.PutSeeds(ctx, hold); err != nil {
			logging.Error("detector: persisting seeds failed", "count", len(hold), "error", err)
		}
	}
	for id := range promoted {
		if promoted[id] {
			consumedSeeds = append(consumedSeeds, id)
		}
	}
	if len(consumedSeeds) > 0 {
		if err := d.store.DeleteSeeds(ctx, consumedSeeds); err != nil {
			logging.Error("detector: clearing seeds failed", "error", err)
		}
	}

	return res, nil
}

func addToIndex(index map[entity.Key]map[string]bool, k entity.Key, id string) {
	set, ok := index[k]
	if !ok {
		set = make(map[string]bool)
		index[k] = set
	}
	set[id] = true
}
