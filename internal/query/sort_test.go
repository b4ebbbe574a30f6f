package query

import (
	"testing"

	"github.com/wealthops/engine/internal/columns"
	"github.com/wealthops/engine/internal/domain"
)

func TestSortByDateDescendingGroupsAndKeepsOrder(t *testing.T) {
	records, refs := fixture(t)
	registry := columns.DefaultRegistry()

	q := allKindsQuery()
	q.PortfolioID = int64p(10)
	filtered := Filter(records, q, refs)
	if len(filtered) != 10 {
		t.Fatalf("fixture broken, got %d trades", len(filtered))
	}

	sorted := Sort(filtered, registry, refs, "date", domain.SortDirectionDesc)
	prev := ""
	for i, rec := range sorted {
		day := rec.PrimaryDate.Format("2006-01-02")
		if i > 0 && day > prev {
			t.Fatalf("dates not descending at %d: %s after %s", i, day, prev)
		}
		prev = day
	}
	// Within one date group the pre-sort relative order survives.
	var lastID string
	for _, rec := range sorted {
		if rec.PrimaryDate.Day() != 3 {
			continue
		}
		if lastID != "" && rec.ID < lastID {
			// Fixture ids grow with source order within a date.
			t.Fatalf("stable order violated within date group: %s before %s", lastID, rec.ID)
		}
		lastID = rec.ID
	}
}

func TestSortIsStableForEqualKeys(t *testing.T) {
	records, refs := fixture(t)
	registry := columns.DefaultRegistry()

	q := domain.Query{Kinds: []domain.Kind{domain.KindTrade}}
	filtered := Filter(records, q, refs)
	// Every trade has side BUY: sorting by side must keep the input order.
	sorted := Sort(filtered, registry, refs, "side", domain.SortDirectionAsc)
	for i := range filtered {
		if filtered[i].ID != sorted[i].ID {
			t.Fatalf("equal-key sort reordered records at %d: %s vs %s",
				i, filtered[i].ID, sorted[i].ID)
		}
	}
}

func TestSortCaseInsensitive(t *testing.T) {
	refs := domain.NewReferenceSet()
	registry := columns.DefaultRegistry()
	recs := []domain.TaggedRecord{
		makeJournal(t, 1, "zebra"),
		makeJournal(t, 2, "Apple"),
		makeJournal(t, 3, "mango"),
	}
	sorted := Sort(recs, registry, refs, "description", domain.SortDirectionAsc)
	want := []string{"Apple", "mango", "zebra"}
	for i, rec := range sorted {
		journal := rec.Payload.(domain.CashJournal)
		if journal.Description != want[i] {
			t.Fatalf("position %d: expected %q, got %q", i, want[i], journal.Description)
		}
	}
}

func makeJournal(t *testing.T, id int64, description string) domain.TaggedRecord {
	t.Helper()
	journal := domain.CashJournal{
		JournalID:   id,
		AccountID:   1,
		JournalType: "FEE",
		Description: description,
		Date:        domain.NewDate(2024, 1, int(id)),
	}
	return domain.NewTaggedRecord(domain.KindCashJournal, int(id), journal, "")
}

func TestSortUnknownKeyKeepsOrder(t *testing.T) {
	records, refs := fixture(t)
	registry := columns.DefaultRegistry()
	sorted := Sort(records, registry, refs, "bogus", domain.SortDirectionAsc)
	for i := range records {
		if records[i].ID != sorted[i].ID {
			t.Fatal("unknown sort key must not reorder")
		}
	}
}

func TestSortDoesNotMutateInput(t *testing.T) {
	records, refs := fixture(t)
	registry := columns.DefaultRegistry()
	before := make([]string, len(records))
	for i, rec := range records {
		before[i] = rec.ID
	}
	Sort(records, registry, refs, "date", domain.SortDirectionAsc)
	for i, rec := range records {
		if rec.ID != before[i] {
			t.Fatal("input slice mutated by sort")
		}
	}
}

func TestSortStateToggleAndReset(t *testing.T) {
	var state SortState
	state.Toggle("date")
	if state.Key != "date" || state.Direction != domain.SortDirectionAsc {
		t.Fatalf("new column must start ascending, got %+v", state)
	}
	state.Toggle("date")
	if state.Direction != domain.SortDirectionDesc {
		t.Fatalf("second toggle must flip to descending, got %+v", state)
	}
	state.Toggle("date")
	if state.Direction != domain.SortDirectionAsc {
		t.Fatalf("third toggle must flip back, got %+v", state)
	}
	state.Toggle("symbol")
	if state.Key != "symbol" || state.Direction != domain.SortDirectionAsc {
		t.Fatalf("switching columns must reset to ascending, got %+v", state)
	}
}
