package sentiment

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		input    string
		expected Sentiment
	}{
		{"SPY rallies on strong earnings", Bullish},
		{"Stocks surge as optimism returns", Bullish},
		{"$COIN plunges after SEC lawsuit", Bearish},
		{"Markets tumble amid recession fears", Bearish},
		{"Fed holds rates steady", Neutral},                 // zero signal
		{"Stocks rally then crash", Neutral},                // 1-1 tie
		{"", Neutral},                                       // empty input
		{"Rally rally rally despite one downgrade", Bullish}, // majority wins
		{"RALLIES AND SURGES EVERYWHERE", Bullish},          // case-insensitive
	}

	c := NewClassifier(nil)
	for _, tt := range tests {
		if got := c.Classify(tt.input); got != tt.expected {
			t.Errorf("Classify(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestClassifyWordBoundaries(t *testing.T) {
	c := NewClassifier(nil)

	// "bullish" inside a longer token must not count
	if got := c.Classify("the bullishness-free report"); got != Neutral {
		t.Errorf("substring matched as term: got %q, want %q", got, Neutral)
	}
	// "crash" as part of "crashproof" must not count either
	if got := c.Classify("a crashproof design"); got != Neutral {
		t.Errorf("substring matched as term: got %q, want %q", got, Neutral)
	}
}

func TestClassifyPhrases(t *testing.T) {
	c := NewClassifier(nil)
	if got := c.Classify("Company beats expectations for the quarter"); got != Bullish {
		t.Errorf("phrase term not matched: got %q, want %q", got, Bullish)
	}
	if got := c.Classify("Company misses expectations for the quarter"); got != Bearish {
		t.Errorf("phrase term not matched: got %q, want %q", got, Bearish)
	}
}

func TestExplain(t *testing.T) {
	c := NewClassifier(nil)

	ex := c.Explain("Stocks rally despite layoffs and lawsuit worries")
	if ex.Sentiment != Bearish {
		t.Errorf("Explain sentiment = %q, want %q", ex.Sentiment, Bearish)
	}
	if len(ex.BullishTerms) != 1 || ex.BullishTerms[0] != "rally" {
		t.Errorf("bullish terms = %v, want [rally]", ex.BullishTerms)
	}
	if len(ex.BearishTerms) != 2 {
		t.Errorf("bearish terms = %v, want layoffs and lawsuit", ex.BearishTerms)
	}
}

func TestClassifyNarrative(t *testing.T) {
	tests := []struct {
		title    string
		summary  string
		expected Sentiment
	}{
		// Summary dominates when counts differ
		{"Market update", "shares surged and rallied on upgrade news", Bullish},
		// Combined tie falls back to the title-only verdict
		{"Stocks rally hard", "but a selloff looms", Bullish},
		{"Selloff deepens", "though dip buyers see a rally", Bearish},
		// Tie everywhere resolves neutral
		{"Quarterly report released", "figures in line with estimates", Neutral},
	}

	c := NewClassifier(nil)
	for _, tt := range tests {
		if got := c.ClassifyNarrative(tt.title, tt.summary); got != tt.expected {
			t.Errorf("ClassifyNarrative(%q, %q) = %q, want %q", tt.title, tt.summary, got, tt.expected)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(nil)
	text := "Bitcoin rallies to record high as ETF optimism builds"
	first := c.Classify(text)
	for i := 0; i < 10; i++ {
		if got := c.Classify(text); got != first {
			t.Fatalf("classification changed between runs: %q then %q", first, got)
		}
	}
}
