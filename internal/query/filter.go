// Package query is the in-memory engine answering ad-hoc queries against a
// loaded snapshot: AND-composed predicate filtering, collated stable
// sorting, and safe-page windowing. Everything here is a synchronous pass
// over resident data; no call suspends or touches the network.
package query

import (
	"strings"

	"github.com/wealthops/engine/internal/domain"
)

type predicate func(rec *domain.TaggedRecord) bool

// Filter applies every active predicate of the query to the records in one
// pass. A record passes only if all predicates accept it. Cross-entity
// predicates resolve through the reference set's O(1) maps and fail closed
// when a link is unresolved, including while a cache is still loading.
func Filter(records []domain.TaggedRecord, q domain.Query, refs *domain.ReferenceSet) []domain.TaggedRecord {
	// Zero selected kinds and an inverted date range are valid queries
	// with an empty answer, not errors.
	if len(q.Kinds) == 0 {
		return []domain.TaggedRecord{}
	}
	if q.DateFrom != nil && q.DateTo != nil {
		if q.DateFrom.Time.After(domain.EndOfDay(q.DateTo.Time)) {
			return []domain.TaggedRecord{}
		}
	}

	predicates := buildPredicates(q, refs)
	out := make([]domain.TaggedRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		pass := true
		for _, pred := range predicates {
			if !pred(rec) {
				pass = false
				break
			}
		}
		if pass {
			out = append(out, *rec)
		}
	}
	return out
}

func buildPredicates(q domain.Query, refs *domain.ReferenceSet) []predicate {
	var predicates []predicate

	selected := make(map[domain.Kind]bool, len(q.Kinds))
	for _, kind := range q.Kinds {
		selected[kind] = true
	}
	predicates = append(predicates, func(rec *domain.TaggedRecord) bool {
		return selected[rec.Kind]
	})

	if q.PortfolioID != nil {
		want := *q.PortfolioID
		predicates = append(predicates, func(rec *domain.TaggedRecord) bool {
			accountID, ok := rec.Payload.Account()
			if !ok {
				return false
			}
			account, ok := refs.Account(accountID)
			if !ok {
				return false
			}
			return account.PortfolioID == want
		})
	}

	if q.AssetClassID != nil {
		want := *q.AssetClassID
		predicates = append(predicates, func(rec *domain.TaggedRecord) bool {
			asset, ok := resolveAsset(rec, refs)
			return ok && asset.ClassID == want
		})
	}

	if q.AssetSubClassID != nil {
		want := *q.AssetSubClassID
		predicates = append(predicates, func(rec *domain.TaggedRecord) bool {
			asset, ok := resolveAsset(rec, refs)
			return ok && asset.SubClassID == want
		})
	}

	if q.DateFrom != nil {
		from := q.DateFrom.Time
		predicates = append(predicates, func(rec *domain.TaggedRecord) bool {
			return !rec.PrimaryDate.Before(from)
		})
	}

	if q.DateTo != nil {
		to := domain.EndOfDay(q.DateTo.Time)
		predicates = append(predicates, func(rec *domain.TaggedRecord) bool {
			return !rec.PrimaryDate.After(to)
		})
	}

	if text := strings.ToLower(strings.TrimSpace(q.SearchText)); text != "" {
		predicates = append(predicates, func(rec *domain.TaggedRecord) bool {
			return strings.Contains(rec.SearchBlob, text)
		})
	}

	return predicates
}

func resolveAsset(rec *domain.TaggedRecord, refs *domain.ReferenceSet) (domain.AssetInfo, bool) {
	assetID, ok := rec.Payload.Asset()
	if !ok {
		return domain.AssetInfo{}, false
	}
	return refs.Asset(assetID)
}
