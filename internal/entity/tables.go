package entity

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tables holds the curated recognition rosters. They are plain data so a
// deployment can version and reload them without touching extraction code.
type Tables struct {
	Version string `yaml:"version"`

	// Tickers that appear as bare uppercase words without a $ prefix
	Tickers []string `yaml:"tickers"`

	// People roster, capitalized multi-word names
	People []string `yaml:"people"`

	// Organization roster
	Orgs []string `yaml:"orgs"`

	// Stopwords excluded from keyword ranking
	Stopwords []string `yaml:"stopwords"`
}

// DefaultTables returns the compiled-in rosters.
func DefaultTables() *Tables {
	return &Tables{
		Version: "2026-08",
		Tickers: []string{
			"BTC", "ETH", "SOL", "DOGE", "XRP",
			"SPY", "QQQ", "DIA", "IWM", "VIX",
			"AAPL", "MSFT", "NVDA", "TSLA", "AMZN", "GOOGL", "META", "AMD", "NFLX", "COIN",
		},
		People: []string{
			"Jerome Powell", "Janet Yellen", "Christine Lagarde", "Kazuo Ueda",
			"Donald Trump", "Gary Gensler", "Elon Musk", "Warren Buffett",
			"Cathie Wood", "Jamie Dimon", "Larry Fink", "Sam Altman",
			"Tim Cook", "Satya Nadella", "Jensen Huang", "Mark Zuckerberg",
		},
		Orgs: []string{
			"Federal Reserve", "The Fed", "European Central Bank", "Bank of Japan",
			"Bank of England", "Treasury", "SEC", "CFTC", "IMF", "OPEC",
			"Goldman Sachs", "JPMorgan", "Morgan Stanley", "BlackRock", "Citadel",
			"Apple", "Microsoft", "Nvidia", "Tesla", "Amazon", "Google", "Meta",
			"OpenAI", "Anthropic", "Coinbase", "Binance", "MicroStrategy",
		},
		Stopwords: []string{
			"a", "an", "and", "are", "as", "at", "be", "been", "but", "by", "can",
			"could", "did", "do", "does", "for", "from", "had", "has", "have", "he",
			"her", "his", "how", "if", "in", "into", "is", "it", "its", "more",
			"most", "my", "new", "no", "not", "now", "of", "off", "on", "or",
			"our", "out", "over", "said", "says", "she", "so", "some", "than",
			"that", "the", "their", "them", "then", "there", "these", "they",
			"this", "to", "under", "up", "was", "we", "were", "what", "when",
			"which", "while", "who", "will", "with", "would", "you", "your",
			"after", "before", "about", "amid", "also", "just", "still", "may",
			"might", "been", "being", "such", "per", "via", "due",
		},
	}
}

// LoadTables reads rosters from a YAML file. Missing sections fall back to
// the defaults, so a deployment can override only the lists it cares about.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entity tables: %w", err)
	}

	var loaded Tables
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parse entity tables: %w", err)
	}

	merged := DefaultTables()
	if loaded.Version != "" {
		merged.Version = loaded.Version
	}
	if len(loaded.Tickers) > 0 {
		merged.Tickers = loaded.Tickers
	}
	if len(loaded.People) > 0 {
		merged.People = loaded.People
	}
	if len(loaded.Orgs) > 0 {
		merged.Orgs = loaded.Orgs
	}
	if len(loaded.Stopwords) > 0 {
		merged.Stopwords = loaded.Stopwords
	}
	return merged, nil
}
