package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies one of the four transaction record variants. The set is
// closed: every payload in the system belongs to exactly one kind.
type Kind string

const (
	KindTrade           Kind = "TRADE"
	KindCashJournal     Kind = "CASH_JOURNAL"
	KindFxTransaction   Kind = "FX_TRANSACTION"
	KindCorporateAction Kind = "CORPORATE_ACTION"
)

// AllKinds returns the closed set of kinds in declaration order.
func AllKinds() []Kind {
	return []Kind{KindTrade, KindCashJournal, KindFxTransaction, KindCorporateAction}
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	switch k {
	case KindTrade, KindCashJournal, KindFxTransaction, KindCorporateAction:
		return true
	}
	return false
}

// Payload is the kind-specific record carried inside a TaggedRecord. Field
// sets are disjoint per kind; accessors expose only the references shared by
// the query engine. Account and Asset report false when the kind has no such
// field at all, as opposed to a zero id.
type Payload interface {
	RecordKind() Kind
	EventDate() time.Time
	Account() (int64, bool)
	Asset() (int64, bool)
}

// Trade is an executed buy or sell of an asset.
type Trade struct {
	TransactionID int64           `json:"transaction_id"`
	AccountID     int64           `json:"account_id"`
	AssetID       int64           `json:"asset_id"`
	Side          string          `json:"side"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Fee           decimal.Decimal `json:"fee"`
	Currency      string          `json:"currency"`
	TradeDate     Date            `json:"trade_date"`
	SettleDate    Date            `json:"settle_date"`
}

func (t Trade) RecordKind() Kind       { return KindTrade }
func (t Trade) EventDate() time.Time   { return t.TradeDate.Time }
func (t Trade) Account() (int64, bool) { return t.AccountID, true }
func (t Trade) Asset() (int64, bool)   { return t.AssetID, true }

// CashJournal is a cash movement on an account (deposit, withdrawal,
// dividend payout, fee, interest).
type CashJournal struct {
	JournalID   int64           `json:"journal_id"`
	AccountID   int64           `json:"account_id"`
	JournalType string          `json:"journal_type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
}

func (c CashJournal) RecordKind() Kind       { return KindCashJournal }
func (c CashJournal) EventDate() time.Time   { return c.Date.Time }
func (c CashJournal) Account() (int64, bool) { return c.AccountID, true }
func (c CashJournal) Asset() (int64, bool)   { return 0, false }

// FxTransaction converts cash between two currencies on one account.
type FxTransaction struct {
	FxID          int64           `json:"fx_id"`
	AccountID     int64           `json:"account_id"`
	BaseCurrency  string          `json:"base_currency"`
	QuoteCurrency string          `json:"quote_currency"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	QuoteAmount   decimal.Decimal `json:"quote_amount"`
	Rate          decimal.Decimal `json:"rate"`
	TradeDate     Date            `json:"trade_date"`
}

func (f FxTransaction) RecordKind() Kind       { return KindFxTransaction }
func (f FxTransaction) EventDate() time.Time   { return f.TradeDate.Time }
func (f FxTransaction) Account() (int64, bool) { return f.AccountID, true }
func (f FxTransaction) Asset() (int64, bool)   { return 0, false }

// CorporateAction is an issuer event applied to a held asset (split,
// merger, stock dividend, spin-off).
type CorporateAction struct {
	ActionID      int64           `json:"action_id"`
	AccountID     int64           `json:"account_id"`
	AssetID       int64           `json:"asset_id"`
	ActionType    string          `json:"action_type"`
	Ratio         decimal.Decimal `json:"ratio"`
	Description   string          `json:"description"`
	ExecutionDate Date            `json:"execution_date"`
}

func (a CorporateAction) RecordKind() Kind       { return KindCorporateAction }
func (a CorporateAction) EventDate() time.Time   { return a.ExecutionDate.Time }
func (a CorporateAction) Account() (int64, bool) { return a.AccountID, true }
func (a CorporateAction) Asset() (int64, bool)   { return a.AssetID, true }

// TaggedRecord is the normalized envelope unifying the four kinds into one
// addressable stream. SearchBlob is the lowercase serialized payload, built
// once at normalization time so free-text matching is a plain substring
// check per record.
type TaggedRecord struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	PrimaryDate time.Time `json:"primary_date"`
	Payload     Payload   `json:"payload"`
	SearchBlob  string    `json:"-"`
}

// NewTaggedRecord builds the envelope for a payload. The id is the kind
// plus the payload's index within its source array.
func NewTaggedRecord(kind Kind, index int, payload Payload, searchBlob string) TaggedRecord {
	return TaggedRecord{
		ID:          fmt.Sprintf("%s-%d", kind, index),
		Kind:        kind,
		PrimaryDate: payload.EventDate(),
		Payload:     payload,
		SearchBlob:  searchBlob,
	}
}
