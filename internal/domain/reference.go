package domain

// Reference entities are read-only snapshots bulk-loaded from the backend.
// They are rebuilt wholesale on reload, never patched in place, so a
// ReferenceSet mixes no stale and fresh entries.

type AssetInfo struct {
	AssetID    int64  `json:"asset_id"`
	Symbol     string `json:"symbol"`
	ClassID    int64  `json:"class_id"`
	SubClassID int64  `json:"sub_class_id"`
}

type AccountInfo struct {
	AccountID   int64  `json:"account_id"`
	PortfolioID int64  `json:"portfolio_id"`
	Institution string `json:"institution"`
	Currency    string `json:"currency"`
}

type PortfolioInfo struct {
	PortfolioID int64  `json:"portfolio_id"`
	OwnerUserID int64  `json:"owner_user_id"`
	Name        string `json:"name"`
}

type UserInfo struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
}

// ReferenceSet holds the keyed lookup tables the projector and the filter
// predicates resolve against. A nil or partially built set is legal: every
// lookup degrades to a miss, and callers treat misses as fail-closed.
type ReferenceSet struct {
	Assets     map[int64]AssetInfo
	Accounts   map[int64]AccountInfo
	Portfolios map[int64]PortfolioInfo
	Users      map[int64]UserInfo
}

// NewReferenceSet returns an empty set with all tables allocated.
func NewReferenceSet() *ReferenceSet {
	return &ReferenceSet{
		Assets:     map[int64]AssetInfo{},
		Accounts:   map[int64]AccountInfo{},
		Portfolios: map[int64]PortfolioInfo{},
		Users:      map[int64]UserInfo{},
	}
}

func (r *ReferenceSet) Asset(id int64) (AssetInfo, bool) {
	if r == nil || r.Assets == nil {
		return AssetInfo{}, false
	}
	info, ok := r.Assets[id]
	return info, ok
}

func (r *ReferenceSet) Account(id int64) (AccountInfo, bool) {
	if r == nil || r.Accounts == nil {
		return AccountInfo{}, false
	}
	info, ok := r.Accounts[id]
	return info, ok
}

func (r *ReferenceSet) Portfolio(id int64) (PortfolioInfo, bool) {
	if r == nil || r.Portfolios == nil {
		return PortfolioInfo{}, false
	}
	info, ok := r.Portfolios[id]
	return info, ok
}

func (r *ReferenceSet) User(id int64) (UserInfo, bool) {
	if r == nil || r.Users == nil {
		return UserInfo{}, false
	}
	info, ok := r.Users[id]
	return info, ok
}

// OwnerUser walks account -> portfolio -> user. It reports false if any
// link in the chain is missing.
func (r *ReferenceSet) OwnerUser(accountID int64) (UserInfo, bool) {
	account, ok := r.Account(accountID)
	if !ok {
		return UserInfo{}, false
	}
	portfolio, ok := r.Portfolio(account.PortfolioID)
	if !ok {
		return UserInfo{}, false
	}
	return r.User(portfolio.OwnerUserID)
}
