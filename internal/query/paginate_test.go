package query

import (
	"fmt"
	"testing"

	"github.com/wealthops/engine/internal/domain"
)

func sequence(n int) []domain.TaggedRecord {
	records := make([]domain.TaggedRecord, n)
	for i := range records {
		records[i] = domain.TaggedRecord{ID: fmt.Sprintf("rec-%03d", i)}
	}
	return records
}

func TestPaginateClampsPastEnd(t *testing.T) {
	// 45 records at page size 20: requesting page 10 lands on page 3 with
	// records 41-45.
	page := Paginate(sequence(45), 20, 10)
	if page.CurrentPage != 3 {
		t.Fatalf("expected safe page 3, got %d", page.CurrentPage)
	}
	if page.TotalPages != 3 {
		t.Fatalf("expected 3 total pages, got %d", page.TotalPages)
	}
	if page.PageStart != 41 || page.PageEnd != 45 || page.Total != 45 {
		t.Fatalf("unexpected bounds: start=%d end=%d total=%d", page.PageStart, page.PageEnd, page.Total)
	}
	if len(page.Records) != 5 {
		t.Fatalf("expected 5 records, got %d", len(page.Records))
	}
	if page.Records[0].ID != "rec-040" {
		t.Fatalf("expected rec-040 first, got %s", page.Records[0].ID)
	}
}

func TestPaginateClampsBelowOne(t *testing.T) {
	page := Paginate(sequence(10), 5, 0)
	if page.CurrentPage != 1 || page.PageStart != 1 || page.PageEnd != 5 {
		t.Fatalf("unexpected page: %+v", page)
	}
	page = Paginate(sequence(10), 5, -3)
	if page.CurrentPage != 1 {
		t.Fatalf("negative page must clamp to 1, got %d", page.CurrentPage)
	}
}

func TestPaginateEmptySet(t *testing.T) {
	page := Paginate(nil, 20, 4)
	if page.Total != 0 || page.TotalPages != 0 || page.CurrentPage != 1 {
		t.Fatalf("unexpected empty page: %+v", page)
	}
	if page.PageStart != 0 || page.PageEnd != 0 {
		t.Fatalf("empty set must have zero bounds: %+v", page)
	}
	if page.Records == nil || len(page.Records) != 0 {
		t.Fatalf("expected empty but non-nil records, got %#v", page.Records)
	}
}

func TestPaginateCoversSetExactlyOnce(t *testing.T) {
	records := sequence(45)
	first := Paginate(records, 20, 1)

	seen := map[string]int{}
	for pageNum := 1; pageNum <= first.TotalPages; pageNum++ {
		page := Paginate(records, 20, pageNum)
		if page.CurrentPage != pageNum {
			t.Fatalf("page %d clamped unexpectedly to %d", pageNum, page.CurrentPage)
		}
		for _, rec := range page.Records {
			seen[rec.ID]++
		}
	}
	if len(seen) != len(records) {
		t.Fatalf("pages cover %d of %d records", len(seen), len(records))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("record %s appeared %d times", id, count)
		}
	}
}
