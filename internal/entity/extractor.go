package entity

import (
	"regexp"
	"sort"
	"strings"
)

// cashtagRegex matches stock tickers like $AAPL, $TSLA
var cashtagRegex = regexp.MustCompile(`\$([A-Z]{1,5})\b`)

// Extractor recognizes entities in raw text using the loaded tables.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	tables    *Tables
	stopwords map[string]bool
}

// NewExtractor builds an extractor over the given tables. A nil tables
// argument uses the compiled-in defaults.
func NewExtractor(tables *Tables) *Extractor {
	if tables == nil {
		tables = DefaultTables()
	}
	stop := make(map[string]bool, len(tables.Stopwords))
	for _, w := range tables.Stopwords {
		stop[strings.ToLower(w)] = true
	}
	return &Extractor{tables: tables, stopwords: stop}
}

// Extract pulls ticker, person, org, and keyword mentions out of text.
// Output is deduplicated per (type, value); ordering within each type
// follows first occurrence in the text. Empty or malformed input yields
// an empty result, never an error.
func (e *Extractor) Extract(text string, maxKeywords int) []Mention {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var mentions []Mention
	tickers := e.extractTickers(text)
	mentions = append(mentions, tickers...)
	mentions = append(mentions, e.extractRoster(text, TypePerson, e.tables.People)...)
	mentions = append(mentions, e.extractRoster(text, TypeOrg, e.tables.Orgs)...)
	mentions = append(mentions, e.extractKeywords(text, maxKeywords, tickers)...)
	return mentions
}

// occurrence pairs a normalized value with its first position in the text.
type occurrence struct {
	value string
	index int
}

func sortByOccurrence(occ []occurrence) {
	sort.Slice(occ, func(i, j int) bool {
		if occ[i].index == occ[j].index {
			return occ[i].value < occ[j].value
		}
		return occ[i].index < occ[j].index
	})
}

// extractTickers finds cashtags plus allow-listed bare symbols, normalized
// by stripping the $ prefix. Deduplicated, ordered by first occurrence.
func (e *Extractor) extractTickers(text string) []Mention {
	seen := make(map[string]bool)
	var occ []occurrence

	for _, loc := range cashtagRegex.FindAllStringSubmatchIndex(text, -1) {
		ticker := text[loc[2]:loc[3]]
		if !seen[ticker] {
			seen[ticker] = true
			occ = append(occ, occurrence{value: ticker, index: loc[0]})
		}
	}

	// Bare symbols must appear as whole uppercase words
	for _, sym := range e.tables.Tickers {
		if seen[sym] {
			continue
		}
		if idx := wordIndex(text, sym); idx >= 0 {
			seen[sym] = true
			occ = append(occ, occurrence{value: sym, index: idx})
		}
	}

	sortByOccurrence(occ)
	mentions := make([]Mention, 0, len(occ))
	for _, o := range occ {
		mentions = append(mentions, Mention{Type: TypeTicker, Value: o.value})
	}
	return mentions
}

// extractRoster matches curated names case-insensitively on word boundaries.
// The roster entry is the normalized value.
func (e *Extractor) extractRoster(text string, typ Type, roster []string) []Mention {
	lower := strings.ToLower(text)
	seen := make(map[string]bool)
	var occ []occurrence

	for _, name := range roster {
		if seen[name] {
			continue
		}
		if idx := wordIndex(lower, strings.ToLower(name)); idx >= 0 {
			seen[name] = true
			occ = append(occ, occurrence{value: name, index: idx})
		}
	}

	sortByOccurrence(occ)
	mentions := make([]Mention, 0, len(occ))
	for _, o := range occ {
		mentions = append(mentions, Mention{Type: typ, Value: o.value})
	}
	return mentions
}

// extractKeywords ranks stop-word-filtered terms by frequency, capped at
// maxKeywords. Ties break by first-occurrence order. Tokens already
// surfaced as tickers are skipped so "$SPY rallies as SPY leads" does not
// double-report.
func (e *Extractor) extractKeywords(text string, maxKeywords int, tickers []Mention) []Mention {
	if maxKeywords <= 0 {
		return nil
	}

	tickerSet := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		tickerSet[strings.ToLower(t.Value)] = true
	}

	counts := make(map[string]int)
	firstAt := make(map[string]int)

	pos := 0
	for _, tok := range tokenize(text) {
		word := strings.ToLower(tok)
		pos++
		if len(word) < 3 || e.stopwords[word] || tickerSet[word] || !hasLetter(word) {
			continue
		}
		counts[word]++
		if _, ok := firstAt[word]; !ok {
			firstAt[word] = pos
		}
	}

	ranked := make([]string, 0, len(counts))
	for w := range counts {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return firstAt[ranked[i]] < firstAt[ranked[j]]
	})

	if len(ranked) > maxKeywords {
		ranked = ranked[:maxKeywords]
	}

	mentions := make([]Mention, 0, len(ranked))
	for _, w := range ranked {
		mentions = append(mentions, Mention{Type: TypeKeyword, Value: w})
	}
	return mentions
}

// tokenize splits text into alphanumeric runs.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !isAlphaNumRune(r)
	})
}

func hasLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// wordIndex returns the index of the first whole-word match of word in
// text, or -1. Boundary checks avoid substring hits, e.g. "sec" must not
// match inside "second".
func wordIndex(text, word string) int {
	if word == "" {
		return -1
	}
	offset := 0
	for {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return -1
		}
		abs := offset + idx

		leftOK := abs == 0 || !isAlphaNum(text[abs-1])
		end := abs + len(word)
		rightOK := end >= len(text) || !isAlphaNum(text[end])

		if leftOK && rightOK {
			return abs
		}
		offset = abs + len(word)
		if offset >= len(text) {
			return -1
		}
	}
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isAlphaNumRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
