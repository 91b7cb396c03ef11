package feeds

import (
	"strings"
	"time"
)

// Item represents a single ingested piece of text from any provider.
// This is the unified type that flows into the narrative engine.
// Items are immutable once created; the engine never mutates them.
type Item struct {
	ID         string
	Source     string // provider name: "rss", "finnhub", "manual"
	SourceName string // "Hacker News", "Reuters Business"
	Title      string
	Summary    string // brief description/excerpt
	Content    string // full content if available
	URL        string // link to original
	ExternalID string // provider-side identifier, if any
	Published  time.Time
	Fetched    time.Time
}

// Text returns the item's title and body joined for extraction and
// classification. Empty parts are skipped.
func (it Item) Text() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{it.Title, it.Summary, it.Content} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Valid reports whether the item carries enough signal to process.
// Malformed items are skipped by the detector, never fatal.
func (it Item) Valid() bool {
	return it.ID != "" && !it.Published.IsZero() && strings.TrimSpace(it.Text()) != ""
}

// Source is the interface all item providers implement
type Source interface {
	// Name returns human-readable source name
	Name() string

	// Fetch retrieves latest items from this source
	Fetch() ([]Item, error)
}
