package entity

import (
	"testing"
)

func values(mentions []Mention, typ Type) []string {
	var out []string
	for _, m := range mentions {
		if m.Type == typ {
			out = append(out, m.Value)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"$AAPL is up 5%", []string{"AAPL"}},
		{"$TSLA and $AAPL both rallied", []string{"TSLA", "AAPL"}},
		{"No tickers in this one", nil},
		{"Price is $100", nil},
		{"$NVDA hits record, $NVDA continues to soar", []string{"NVDA"}}, // deduped
		{"SPY closed higher while QQQ lagged", []string{"SPY", "QQQ"}},   // bare allowlist
		{"$SPY rallies as SPY leads", []string{"SPY"}},                   // cashtag + bare deduped
		{"spy novels are popular", nil},                                  // lowercase is not a symbol
		{"The DESPYSER index", nil},                                      // no substring hits
	}

	ex := NewExtractor(nil)
	for _, tt := range tests {
		got := values(ex.Extract(tt.input, 0), TypeTicker)
		if !equalStrings(got, tt.expected) {
			t.Errorf("Extract(%q) tickers = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestExtractPeopleAndOrgs(t *testing.T) {
	tests := []struct {
		input  string
		people []string
		orgs   []string
	}{
		{"Jerome Powell signals the Federal Reserve may pause", []string{"Jerome Powell"}, []string{"Federal Reserve"}},
		{"JEROME POWELL SPEAKS", []string{"Jerome Powell"}, nil}, // case-insensitive match, roster casing out
		{"elon musk teases new product", []string{"Elon Musk"}, nil},
		{"SEC opens probe into exchange", nil, []string{"SEC"}},
		{"The second quarter was strong", nil, nil}, // "sec" must not match inside "second"
		{"OPEC and the Treasury respond", nil, []string{"OPEC", "Treasury"}},
	}

	ex := NewExtractor(nil)
	for _, tt := range tests {
		mentions := ex.Extract(tt.input, 0)
		if got := values(mentions, TypePerson); !equalStrings(got, tt.people) {
			t.Errorf("Extract(%q) people = %v, want %v", tt.input, got, tt.people)
		}
		if got := values(mentions, TypeOrg); !equalStrings(got, tt.orgs) {
			t.Errorf("Extract(%q) orgs = %v, want %v", tt.input, got, tt.orgs)
		}
	}
}

func TestExtractKeywords(t *testing.T) {
	ex := NewExtractor(nil)

	// "rates" appears twice so it must rank first; stopwords and short
	// tokens never surface.
	text := "rates climbed as inflation cooled and rates stayed elevated"
	got := values(ex.Extract(text, 3), TypeKeyword)
	if len(got) != 3 {
		t.Fatalf("Extract keywords = %v, want 3 entries", got)
	}
	if got[0] != "rates" {
		t.Errorf("top keyword = %q, want %q", got[0], "rates")
	}
	for _, w := range got {
		if w == "and" || w == "as" {
			t.Errorf("stopword %q surfaced in keywords", w)
		}
	}

	// Ties break by first occurrence.
	got = values(ex.Extract("inflation report spooks traders", 2), TypeKeyword)
	want := []string{"inflation", "report"}
	if !equalStrings(got, want) {
		t.Errorf("tie-break keywords = %v, want %v", got, want)
	}
}

func TestExtractKeywordsSkipTickers(t *testing.T) {
	ex := NewExtractor(nil)
	mentions := ex.Extract("$SPY rallies as SPY leads the market", 5)
	for _, w := range values(mentions, TypeKeyword) {
		if w == "spy" {
			t.Errorf("ticker token leaked into keywords: %v", mentions)
		}
	}
}

func TestExtractMaxKeywordsCap(t *testing.T) {
	ex := NewExtractor(nil)
	text := "markets traders futures bonds commodities currencies equities"
	if got := values(ex.Extract(text, 2), TypeKeyword); len(got) != 2 {
		t.Errorf("keyword cap 2 returned %d entries: %v", len(got), got)
	}
	if got := values(ex.Extract(text, 0), TypeKeyword); got != nil {
		t.Errorf("keyword cap 0 returned %v, want none", got)
	}
}

func TestExtractEmptyInput(t *testing.T) {
	ex := NewExtractor(nil)
	for _, input := range []string{"", "   ", "\n\t"} {
		if got := ex.Extract(input, 5); len(got) != 0 {
			t.Errorf("Extract(%q) = %v, want empty", input, got)
		}
	}
}

func TestExtractOrdering(t *testing.T) {
	// Tickers, people, orgs, then keywords, each in first-occurrence order.
	ex := NewExtractor(nil)
	mentions := ex.Extract("Elon Musk says $TSLA deliveries beat records", 1)

	if len(mentions) < 3 {
		t.Fatalf("Extract returned %v, want ticker+person+keyword", mentions)
	}
	if mentions[0].Type != TypeTicker || mentions[0].Value != "TSLA" {
		t.Errorf("mentions[0] = %v, want ticker TSLA", mentions[0])
	}
	if mentions[1].Type != TypePerson || mentions[1].Value != "Elon Musk" {
		t.Errorf("mentions[1] = %v, want person Elon Musk", mentions[1])
	}
	if mentions[len(mentions)-1].Type != TypeKeyword {
		t.Errorf("last mention = %v, want a keyword", mentions[len(mentions)-1])
	}
}

func TestKeyString(t *testing.T) {
	k := Key{Type: TypeTicker, Value: "SPY"}
	if k.String() != "ticker:SPY" {
		t.Errorf("Key.String() = %q, want %q", k.String(), "ticker:SPY")
	}
}
