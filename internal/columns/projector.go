// Package columns is the declarative registry mapping logical column keys
// to the kinds that expose them and the extraction of their display value.
// Two degradation modes exist and callers rely on the difference: a column
// a kind never carries projects to "", while a reference id that is present
// but not yet resolvable projects to the "#<id>" placeholder.
package columns

import (
	"strconv"
	"strings"

	"github.com/wealthops/engine/internal/domain"
)

// Extractor produces the display value for one record.
type Extractor func(rec domain.TaggedRecord, refs *domain.ReferenceSet) string

// Column is one entry in the registry.
type Column struct {
	Key     string
	Label   string
	Kinds   map[domain.Kind]bool
	Extract Extractor
}

// AppliesTo reports whether the column has a value for the given kind.
func (c Column) AppliesTo(kind domain.Kind) bool {
	return c.Kinds[kind]
}

// Registry holds the ordered column set and its key index.
type Registry struct {
	ordered []Column
	byKey   map[string]Column
}

func NewRegistry(cols []Column) *Registry {
	r := &Registry{byKey: make(map[string]Column, len(cols))}
	for _, col := range cols {
		r.ordered = append(r.ordered, col)
		r.byKey[col.Key] = col
	}
	return r
}

// Columns returns the registry in declaration order.
func (r *Registry) Columns() []Column {
	return r.ordered
}

// Keys returns the column keys in declaration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.ordered))
	for i, col := range r.ordered {
		keys[i] = col.Key
	}
	return keys
}

// Lookup returns the column for a key.
func (r *Registry) Lookup(key string) (Column, bool) {
	col, ok := r.byKey[key]
	return col, ok
}

// Project extracts the display value of one column for one record. Unknown
// keys and non-applicable kinds both yield the empty string.
func (r *Registry) Project(rec domain.TaggedRecord, refs *domain.ReferenceSet, key string) string {
	col, ok := r.byKey[key]
	if !ok || !col.AppliesTo(rec.Kind) {
		return ""
	}
	return col.Extract(rec, refs)
}

func placeholder(id int64) string {
	return "#" + strconv.FormatInt(id, 10)
}

// OwnerLabel derives the human account label: the account's institution
// plus the owning user's name, as institution-first_lst3. It is a lossy
// display convention with no uniqueness guarantee and is never used as a
// key. Any missing link in the account -> portfolio -> user chain degrades
// it to the empty string.
func OwnerLabel(refs *domain.ReferenceSet, accountID int64) string {
	account, ok := refs.Account(accountID)
	if !ok {
		return ""
	}
	owner, ok := refs.OwnerUser(accountID)
	if !ok {
		return ""
	}
	tokens := strings.Fields(owner.FullName)
	if len(tokens) == 0 {
		return ""
	}
	first := strings.ToLower(tokens[0])
	last := []rune(strings.ToLower(tokens[len(tokens)-1]))
	if len(last) > 3 {
		last = last[len(last)-3:]
	}
	return strings.ToLower(account.Institution) + "-" + first + "_" + string(last)
}

func kinds(ks ...domain.Kind) map[domain.Kind]bool {
	set := make(map[domain.Kind]bool, len(ks))
	for _, k := range ks {
		set[k] = true
	}
	return set
}

var allKinds = kinds(domain.AllKinds()...)

// DefaultRegistry is the column set the console renders.
func DefaultRegistry() *Registry {
	return NewRegistry([]Column{
		{
			Key: "date", Label: "Date", Kinds: allKinds,
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				if rec.PrimaryDate.IsZero() {
					return ""
				}
				return rec.PrimaryDate.Format("2006-01-02")
			},
		},
		{
			Key: "kind", Label: "Type", Kinds: allKinds,
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				return string(rec.Kind)
			},
		},
		{
			Key: "symbol", Label: "Symbol", Kinds: kinds(domain.KindTrade, domain.KindCorporateAction),
			Extract: func(rec domain.TaggedRecord, refs *domain.ReferenceSet) string {
				assetID, ok := rec.Payload.Asset()
				if !ok {
					return ""
				}
				asset, ok := refs.Asset(assetID)
				if !ok {
					return placeholder(assetID)
				}
				return asset.Symbol
			},
		},
		{
			Key: "account", Label: "Account", Kinds: allKinds,
			Extract: func(rec domain.TaggedRecord, refs *domain.ReferenceSet) string {
				accountID, ok := rec.Payload.Account()
				if !ok {
					return ""
				}
				return OwnerLabel(refs, accountID)
			},
		},
		{
			Key: "portfolio", Label: "Portfolio", Kinds: allKinds,
			Extract: func(rec domain.TaggedRecord, refs *domain.ReferenceSet) string {
				accountID, ok := rec.Payload.Account()
				if !ok {
					return ""
				}
				account, ok := refs.Account(accountID)
				if !ok {
					return placeholder(accountID)
				}
				portfolio, ok := refs.Portfolio(account.PortfolioID)
				if !ok {
					return placeholder(account.PortfolioID)
				}
				return portfolio.Name
			},
		},
		{
			Key: "side", Label: "Side", Kinds: kinds(domain.KindTrade),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				trade, ok := rec.Payload.(domain.Trade)
				if !ok {
					return ""
				}
				return trade.Side
			},
		},
		{
			Key: "quantity", Label: "Quantity", Kinds: kinds(domain.KindTrade),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				trade, ok := rec.Payload.(domain.Trade)
				if !ok {
					return ""
				}
				return trade.Quantity.String()
			},
		},
		{
			Key: "price", Label: "Price", Kinds: kinds(domain.KindTrade),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				trade, ok := rec.Payload.(domain.Trade)
				if !ok {
					return ""
				}
				return trade.Price.String()
			},
		},
		{
			Key: "fee", Label: "Fee", Kinds: kinds(domain.KindTrade),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				trade, ok := rec.Payload.(domain.Trade)
				if !ok {
					return ""
				}
				return trade.Fee.String()
			},
		},
		{
			Key: "amount", Label: "Amount", Kinds: kinds(domain.KindCashJournal),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				journal, ok := rec.Payload.(domain.CashJournal)
				if !ok {
					return ""
				}
				return journal.Amount.String()
			},
		},
		{
			Key: "currency", Label: "Currency", Kinds: kinds(domain.KindTrade, domain.KindCashJournal),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				switch p := rec.Payload.(type) {
				case domain.Trade:
					return p.Currency
				case domain.CashJournal:
					return p.Currency
				}
				return ""
			},
		},
		{
			Key: "pair", Label: "Pair", Kinds: kinds(domain.KindFxTransaction),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				fx, ok := rec.Payload.(domain.FxTransaction)
				if !ok {
					return ""
				}
				return fx.BaseCurrency + "/" + fx.QuoteCurrency
			},
		},
		{
			Key: "rate", Label: "Rate", Kinds: kinds(domain.KindFxTransaction),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				fx, ok := rec.Payload.(domain.FxTransaction)
				if !ok {
					return ""
				}
				return fx.Rate.String()
			},
		},
		{
			Key: "ratio", Label: "Ratio", Kinds: kinds(domain.KindCorporateAction),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				action, ok := rec.Payload.(domain.CorporateAction)
				if !ok {
					return ""
				}
				return action.Ratio.String()
			},
		},
		{
			Key: "description", Label: "Description", Kinds: kinds(domain.KindCashJournal, domain.KindCorporateAction),
			Extract: func(rec domain.TaggedRecord, _ *domain.ReferenceSet) string {
				switch p := rec.Payload.(type) {
				case domain.CashJournal:
					return p.Description
				case domain.CorporateAction:
					return p.Description
				}
				return ""
			},
		},
	})
}
