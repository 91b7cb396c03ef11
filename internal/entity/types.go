// Package entity provides deterministic, rule-based entity extraction
// from raw text: tickers, keywords, people, and organizations.
//
// No statistical NER is involved. The recognizers are table-driven so the
// rosters can be versioned and swapped without touching extraction logic,
// and the same text always yields the same output.
package entity

import "fmt"

// Type categorizes extracted entities
type Type string

const (
	TypeTicker  Type = "ticker"
	TypeKeyword Type = "keyword"
	TypePerson  Type = "person"
	TypeOrg     Type = "org"
)

// Key identifies an entity by type and normalized value. Two items share
// an entity iff they produced mentions with identical keys; this is the
// join key for narrative clustering.
type Key struct {
	Type  Type
	Value string
}

// String renders the key as "ticker:SPY" for logs and storage.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.Value)
}

// Mention is one extracted entity occurrence within a single text.
type Mention struct {
	Type  Type
	Value string // normalized: uppercase ticker without $, lowercase keyword
}

// Key returns the mention's join key.
func (m Mention) Key() Key {
	return Key{Type: m.Type, Value: m.Value}
}

// KeySet builds the deduplicated key set for a slice of mentions.
func KeySet(mentions []Mention) map[Key]bool {
	set := make(map[Key]bool, len(mentions))
	for _, m := range mentions {
		set[m.Key()] = true
	}
	return set
}
