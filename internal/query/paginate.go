package query

import "github.com/wealthops/engine/internal/domain"

// Page is one fixed-size window over the filtered, sorted set plus its
// human-readable bounds. An empty set is the one case where
// CurrentPage (1) exceeds TotalPages (0): the UI always sits on a page,
// but there is no page of records to count.
type Page struct {
	Records     []domain.TaggedRecord
	Total       int
	PageStart   int
	PageEnd     int
	CurrentPage int
	TotalPages  int
}

// Paginate clamps the requested page into [1, ceil(total/pageSize)] and
// slices that window. A filter change that shrinks the set below the
// current page re-clamps to the last page instead of returning an empty
// window stuck past the end.
func Paginate(records []domain.TaggedRecord, pageSize, requestedPage int) Page {
	if pageSize <= 0 {
		pageSize = 1
	}
	total := len(records)
	if total == 0 {
		return Page{Records: []domain.TaggedRecord{}, CurrentPage: 1}
	}

	totalPages := (total + pageSize - 1) / pageSize
	safePage := requestedPage
	if safePage < 1 {
		safePage = 1
	}
	if safePage > totalPages {
		safePage = totalPages
	}

	start := (safePage - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}

	return Page{
		Records:     records[start:end],
		Total:       total,
		PageStart:   start + 1,
		PageEnd:     end,
		CurrentPage: safePage,
		TotalPages:  totalPages,
	}
}
