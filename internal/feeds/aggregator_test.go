package feeds

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSource returns a fixed batch, or an error.
type fakeSource struct {
	name  string
	items []Item
	err   error
}

func (f *fakeSource) Name() string           { return f.name }
func (f *fakeSource) Fetch() ([]Item, error) { return f.items, f.err }

func fakeItem(id, url string, published time.Time) Item {
	return Item{
		ID:        id,
		Source:    "test",
		Title:     "item " + id,
		URL:       url,
		Published: published,
	}
}

func TestFetchAllMergesAndSorts(t *testing.T) {
	now := time.Now()
	agg := NewAggregator()
	agg.Add(&fakeSource{name: "one", items: []Item{
		fakeItem("b", "https://example.com/b", now),
	}}, time.Millisecond)
	agg.Add(&fakeSource{name: "two", items: []Item{
		fakeItem("a", "https://example.com/a", now.Add(-time.Hour)),
	}}, time.Millisecond)

	got := agg.FetchAll(context.Background())
	if len(got) != 2 {
		t.Fatalf("FetchAll returned %d items, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("order = %s, %s, want published ascending a, b", got[0].ID, got[1].ID)
	}
}

func TestFetchAllDeduplicatesAcrossRuns(t *testing.T) {
	now := time.Now()
	src := &fakeSource{name: "one", items: []Item{
		fakeItem("a", "https://example.com/a", now),
	}}
	agg := NewAggregator()
	agg.Add(src, time.Millisecond)

	first := agg.FetchAll(context.Background())
	if len(first) != 1 {
		t.Fatalf("first FetchAll returned %d items, want 1", len(first))
	}

	second := agg.FetchAll(context.Background())
	if len(second) != 0 {
		t.Errorf("second FetchAll returned %d items, want 0 (already seen)", len(second))
	}
}

func TestFetchAllSkipsFailingSource(t *testing.T) {
	now := time.Now()
	agg := NewAggregator()
	agg.Add(&fakeSource{name: "broken", err: errors.New("boom")}, time.Millisecond)
	agg.Add(&fakeSource{name: "ok", items: []Item{
		fakeItem("a", "https://example.com/a", now),
	}}, time.Millisecond)

	got := agg.FetchAll(context.Background())
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("FetchAll = %v, want the healthy source's item only", got)
	}
}

func TestItemText(t *testing.T) {
	tests := []struct {
		item     Item
		expected string
	}{
		{Item{Title: "a", Summary: "b", Content: "c"}, "a b c"},
		{Item{Title: "a", Summary: "  ", Content: "c"}, "a c"},
		{Item{Title: "only title"}, "only title"},
		{Item{}, ""},
	}
	for _, tt := range tests {
		if got := tt.item.Text(); got != tt.expected {
			t.Errorf("Text() = %q, want %q", got, tt.expected)
		}
	}
}

func TestItemValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		item     Item
		expected bool
	}{
		{Item{ID: "a", Title: "t", Published: now}, true},
		{Item{Title: "t", Published: now}, false},         // no ID
		{Item{ID: "a", Title: "t"}, false},                // no publish time
		{Item{ID: "a", Published: now}, false},            // no text
		{Item{ID: "a", Content: "body", Published: now}, true},
	}
	for _, tt := range tests {
		if got := tt.item.Valid(); got != tt.expected {
			t.Errorf("Valid(%+v) = %v, want %v", tt.item, got, tt.expected)
		}
	}
}
