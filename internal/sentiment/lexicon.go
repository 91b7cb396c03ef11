package sentiment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon holds the curated bullish/bearish term tables. Terms may be
// multi-word phrases; matching is case-insensitive on word boundaries.
type Lexicon struct {
	Version string   `yaml:"version"`
	Bullish []string `yaml:"bullish"`
	Bearish []string `yaml:"bearish"`
}

// DefaultLexicon returns the compiled-in term tables.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Version: "2026-08",
		Bullish: []string{
			"rally", "rallies", "rallied", "rallying",
			"surge", "surges", "surged", "soar", "soars", "soared",
			"jump", "jumps", "jumped", "climb", "climbs", "climbed",
			"gain", "gains", "gained", "rebound", "rebounds", "rebounded",
			"breakout", "record high", "all-time high", "new high",
			"beat expectations", "beats expectations", "strong earnings",
			"strong demand", "upgrade", "upgraded", "outperform",
			"bull", "bullish", "buyback", "optimism", "optimistic",
			"momentum", "upside", "growth", "profit", "profits", "boom",
			"approval", "approved", "partnership", "expansion",
		},
		Bearish: []string{
			"plunge", "plunges", "plunged", "crash", "crashes", "crashed",
			"tumble", "tumbles", "tumbled", "slump", "slumps", "slumped",
			"sink", "sinks", "sank", "slide", "slides", "slid",
			"drop", "drops", "dropped", "fall", "falls", "fell",
			"selloff", "sell-off", "bear", "bearish", "correction",
			"miss expectations", "misses expectations", "weak earnings",
			"weak demand", "downgrade", "downgraded", "underperform",
			"layoffs", "bankruptcy", "bankrupt", "default", "defaults",
			"fraud", "lawsuit", "probe", "investigation", "fine", "fined",
			"recession", "downturn", "losses", "loss", "warning", "warns",
			"cuts guidance", "cut guidance", "pessimism", "fears", "panic",
		},
	}
}

// LoadLexicon reads term tables from a YAML file. Empty sections fall back
// to the defaults.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sentiment lexicon: %w", err)
	}

	var loaded Lexicon
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse sentiment lexicon: %w", err)
	}

	merged := DefaultLexicon()
	if loaded.Version != "" {
		merged.Version = loaded.Version
	}
	if len(loaded.Bullish) > 0 {
		merged.Bullish = loaded.Bullish
	}
	if len(loaded.Bearish) > 0 {
		merged.Bearish = loaded.Bearish
	}
	return merged, nil
}
