package query

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/wealthops/engine/internal/columns"
	"github.com/wealthops/engine/internal/domain"
)

// Sort orders records by the projected value of one column. Values are
// lower-cased and compared with a locale-aware collator. The sort is
// stable: equal keys keep their pre-sort relative order. The input slice
// is left untouched; sorting always runs on the already filtered set.
func Sort(records []domain.TaggedRecord, registry *columns.Registry, refs *domain.ReferenceSet, key string, direction domain.SortDirection) []domain.TaggedRecord {
	out := make([]domain.TaggedRecord, len(records))
	copy(out, records)
	if key == "" {
		return out
	}
	if _, ok := registry.Lookup(key); !ok {
		return out
	}

	// Decorate once so projection (which may walk the reference chain)
	// runs O(n), not O(n log n).
	keys := make([]string, len(out))
	for i := range out {
		keys[i] = strings.ToLower(registry.Project(out[i], refs, key))
	}

	// Collators are not safe for concurrent use, so each sort gets its own.
	collator := collate.New(language.Und)
	index := make([]int, len(out))
	for i := range index {
		index[i] = i
	}
	sort.SliceStable(index, func(a, b int) bool {
		cmp := collator.CompareString(keys[index[a]], keys[index[b]])
		if direction == domain.SortDirectionDesc {
			return cmp > 0
		}
		return cmp < 0
	})

	sorted := make([]domain.TaggedRecord, len(out))
	for i, idx := range index {
		sorted[i] = out[idx]
	}
	return sorted
}

// SortState tracks the UI's active sort column. Toggling the active column
// flips direction; selecting a new column resets to ascending.
type SortState struct {
	Key       string
	Direction domain.SortDirection
}

func (s *SortState) Toggle(key string) {
	if s.Key == key {
		if s.Direction == domain.SortDirectionAsc {
			s.Direction = domain.SortDirectionDesc
		} else {
			s.Direction = domain.SortDirectionAsc
		}
		return
	}
	s.Key = key
	s.Direction = domain.SortDirectionAsc
}
