// Package normalize converts the heterogeneous per-kind fetch results into
// one ordered stream of tagged records. Kinds are discriminated
// structurally, by the presence of kind-unique fields in the payload, so
// the normalizer does not care which endpoint produced a record.
package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/wealthops/engine/internal/domain"
)

// signatures lists, per kind, the field combination no other kind carries.
var signatures = map[domain.Kind][]string{
	domain.KindTrade:           {"side", "transaction_id"},
	domain.KindCashJournal:     {"journal_type"},
	domain.KindFxTransaction:   {"base_currency", "quote_currency"},
	domain.KindCorporateAction: {"action_type", "execution_date"},
}

// fieldSets lists every field a kind's payload can carry, used to prove the
// signatures are unambiguous.
var fieldSets = map[domain.Kind][]string{
	domain.KindTrade: {
		"transaction_id", "account_id", "asset_id", "side", "quantity",
		"price", "fee", "currency", "trade_date", "settle_date",
	},
	domain.KindCashJournal: {
		"journal_id", "account_id", "journal_type", "amount", "currency",
		"description", "date",
	},
	domain.KindFxTransaction: {
		"fx_id", "account_id", "base_currency", "quote_currency",
		"base_amount", "quote_amount", "rate", "trade_date",
	},
	domain.KindCorporateAction: {
		"action_id", "account_id", "asset_id", "action_type", "ratio",
		"description", "execution_date",
	},
}

func init() {
	// A record of kind B must never satisfy kind A's signature, so each
	// signature needs at least one field absent from every other kind's
	// field set. Violations are programming errors, caught here rather
	// than worked around at query time.
	for kind, sig := range signatures {
		for other, fields := range fieldSets {
			if kind == other {
				continue
			}
			present := map[string]bool{}
			for _, f := range fields {
				present[f] = true
			}
			covered := true
			for _, f := range sig {
				if !present[f] {
					covered = false
					break
				}
			}
			if covered {
				panic(fmt.Sprintf("normalize: signature of %s is ambiguous with %s", kind, other))
			}
		}
	}
}

// Report aggregates data-integrity defects found during one normalization
// pass. Callers log it once; individual bad records are dropped, never
// fatal to the load.
type Report struct {
	Unmatched int // payload satisfied no kind's signature
	Ambiguous int // payload satisfied more than one signature
	Malformed int // payload matched a signature but failed to decode
}

// Empty reports whether the pass was defect-free.
func (r Report) Empty() bool {
	return r.Unmatched == 0 && r.Ambiguous == 0 && r.Malformed == 0
}

func (r Report) String() string {
	return fmt.Sprintf("unmatched=%d ambiguous=%d malformed=%d", r.Unmatched, r.Ambiguous, r.Malformed)
}

// Normalize merges any number of raw source arrays into one tagged-record
// stream ordered by primary date descending, ties keeping source order.
// The pass is deterministic: the same inputs yield identical output.
func Normalize(sources ...[]json.RawMessage) ([]domain.TaggedRecord, Report) {
	var report Report
	var records []domain.TaggedRecord
	counters := map[domain.Kind]int{}

	for _, source := range sources {
		for _, raw := range source {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(raw, &fields); err != nil {
				report.Malformed++
				continue
			}
			kind, ok := discriminate(fields, &report)
			if !ok {
				continue
			}
			payload, err := decodePayload(kind, raw)
			if err != nil {
				report.Malformed++
				continue
			}
			blob, err := searchBlob(payload)
			if err != nil {
				report.Malformed++
				continue
			}
			records = append(records, domain.NewTaggedRecord(kind, counters[kind], payload, blob))
			counters[kind]++
		}
	}

	// Default presentation order: most recent first. Stable, so records
	// sharing a date keep their fetch-group relative order.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PrimaryDate.After(records[j].PrimaryDate)
	})
	return records, report
}

func discriminate(fields map[string]json.RawMessage, report *Report) (domain.Kind, bool) {
	var matched domain.Kind
	matches := 0
	for _, kind := range domain.AllKinds() {
		sig := signatures[kind]
		all := true
		for _, field := range sig {
			if _, ok := fields[field]; !ok {
				all = false
				break
			}
		}
		if all {
			matched = kind
			matches++
		}
	}
	switch matches {
	case 1:
		return matched, true
	case 0:
		report.Unmatched++
	default:
		report.Ambiguous++
	}
	return "", false
}

func decodePayload(kind domain.Kind, raw json.RawMessage) (domain.Payload, error) {
	switch kind {
	case domain.KindTrade:
		var p domain.Trade
		err := json.Unmarshal(raw, &p)
		return p, err
	case domain.KindCashJournal:
		var p domain.CashJournal
		err := json.Unmarshal(raw, &p)
		return p, err
	case domain.KindFxTransaction:
		var p domain.FxTransaction
		err := json.Unmarshal(raw, &p)
		return p, err
	case domain.KindCorporateAction:
		var p domain.CorporateAction
		err := json.Unmarshal(raw, &p)
		return p, err
	}
	return nil, fmt.Errorf("unknown kind %q", kind)
}

// searchBlob serializes the decoded payload once so free-text filtering is
// a substring check. Matching the serialized form means numeric substrings
// can false-positive; that imprecision is part of the search contract.
func searchBlob(payload domain.Payload) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return strings.ToLower(string(encoded)), nil
}
