package entity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	content := `version: custom
tickers:
  - ZZZZ
people:
  - Test Person
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}
	if tables.Version != "custom" {
		t.Errorf("version = %q, want custom", tables.Version)
	}
	if len(tables.Tickers) != 1 || tables.Tickers[0] != "ZZZZ" {
		t.Errorf("tickers = %v, want override applied", tables.Tickers)
	}
	if len(tables.People) != 1 {
		t.Errorf("people = %v, want override applied", tables.People)
	}
	// Untouched sections keep the defaults.
	if len(tables.Orgs) == 0 || len(tables.Stopwords) == 0 {
		t.Errorf("missing sections did not fall back to defaults")
	}
}

func TestLoadTablesMissingFile(t *testing.T) {
	if _, err := LoadTables("/nonexistent/entities.yaml"); err == nil {
		t.Error("LoadTables on missing file succeeded, want error")
	}
}

func TestLoadedTablesDriveExtraction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	content := `tickers:
  - ZZZZ
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	tables, err := LoadTables(path)
	if err != nil {
		t.Fatalf("LoadTables failed: %v", err)
	}

	ex := NewExtractor(tables)
	mentions := ex.Extract("ZZZZ spikes while SPY is ignored", 0)
	var got []string
	for _, m := range mentions {
		if m.Type == TypeTicker {
			got = append(got, m.Value)
		}
	}
	if len(got) != 1 || got[0] != "ZZZZ" {
		t.Errorf("tickers = %v, want only the overridden roster to match", got)
	}
}
