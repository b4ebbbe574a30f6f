// Package refloader resolves reference ids straight against the backend
// with request-scoped batching. It backs the record-detail endpoint, which
// may resolve ids the bulk caches missed; the query hot path never calls
// it and stays on the pre-built maps.
package refloader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/wealthops/engine/internal/domain"
)

// Client is the by-id slice of the backend client.
type Client interface {
	GetAssetsByIDs(ctx context.Context, ids []int64) ([]domain.AssetInfo, error)
	GetAccountsByIDs(ctx context.Context, ids []int64) ([]domain.AccountInfo, error)
	GetPortfoliosByIDs(ctx context.Context, ids []int64) ([]domain.PortfolioInfo, error)
	GetUsersByIDs(ctx context.Context, ids []int64) ([]domain.UserInfo, error)
}

// Loaders bundles one batched loader per reference entity. Build one per
// request so no request observes another's cache.
type Loaders struct {
	Assets     *dataloader.Loader
	Accounts   *dataloader.Loader
	Portfolios *dataloader.Loader
	Users      *dataloader.Loader
}

func New(client Client) *Loaders {
	return &Loaders{
		Assets: newLoader(func(ctx context.Context, ids []int64) (map[int64]any, error) {
			assets, err := client.GetAssetsByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			byID := make(map[int64]any, len(assets))
			for _, a := range assets {
				byID[a.AssetID] = a
			}
			return byID, nil
		}),
		Accounts: newLoader(func(ctx context.Context, ids []int64) (map[int64]any, error) {
			accounts, err := client.GetAccountsByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			byID := make(map[int64]any, len(accounts))
			for _, a := range accounts {
				byID[a.AccountID] = a
			}
			return byID, nil
		}),
		Portfolios: newLoader(func(ctx context.Context, ids []int64) (map[int64]any, error) {
			portfolios, err := client.GetPortfoliosByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			byID := make(map[int64]any, len(portfolios))
			for _, p := range portfolios {
				byID[p.PortfolioID] = p
			}
			return byID, nil
		}),
		Users: newLoader(func(ctx context.Context, ids []int64) (map[int64]any, error) {
			users, err := client.GetUsersByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			byID := make(map[int64]any, len(users))
			for _, u := range users {
				byID[u.UserID] = u
			}
			return byID, nil
		}),
	}
}

func newLoader(fetch func(ctx context.Context, ids []int64) (map[int64]any, error)) *dataloader.Loader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]int64, len(keys))
		for i, key := range keys {
			id, err := strconv.ParseInt(key.String(), 10, 64)
			if err != nil {
				return failAll(keys, fmt.Errorf("invalid reference id %q: %w", key.String(), err))
			}
			ids[i] = id
		}
		byID, err := fetch(ctx, ids)
		if err != nil {
			return failAll(keys, err)
		}
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if value, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: value}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}
	return dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(5*time.Millisecond))
}

func failAll(keys dataloader.Keys, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, len(keys))
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

func load(ctx context.Context, loader *dataloader.Loader, id int64) (any, error) {
	thunk := loader.Load(ctx, dataloader.StringKey(strconv.FormatInt(id, 10)))
	return thunk()
}

// RecordDetail is the fully resolved reference chain for one record.
// Unresolved links stay nil rather than failing the whole detail.
type RecordDetail struct {
	Record    domain.TaggedRecord   `json:"record"`
	Asset     *domain.AssetInfo     `json:"asset,omitempty"`
	Account   *domain.AccountInfo   `json:"account,omitempty"`
	Portfolio *domain.PortfolioInfo `json:"portfolio,omitempty"`
	Owner     *domain.UserInfo      `json:"owner,omitempty"`
}

// ResolveChain walks asset and account -> portfolio -> user for one record
// through the batched loaders.
func (l *Loaders) ResolveChain(ctx context.Context, rec domain.TaggedRecord) RecordDetail {
	detail := RecordDetail{Record: rec}

	if assetID, ok := rec.Payload.Asset(); ok {
		if data, err := load(ctx, l.Assets, assetID); err == nil && data != nil {
			if asset, ok := data.(domain.AssetInfo); ok {
				detail.Asset = &asset
			}
		}
	}

	accountID, ok := rec.Payload.Account()
	if !ok {
		return detail
	}
	data, err := load(ctx, l.Accounts, accountID)
	if err != nil || data == nil {
		return detail
	}
	account, ok := data.(domain.AccountInfo)
	if !ok {
		return detail
	}
	detail.Account = &account

	data, err = load(ctx, l.Portfolios, account.PortfolioID)
	if err != nil || data == nil {
		return detail
	}
	portfolio, ok := data.(domain.PortfolioInfo)
	if !ok {
		return detail
	}
	detail.Portfolio = &portfolio

	data, err = load(ctx, l.Users, portfolio.OwnerUserID)
	if err != nil || data == nil {
		return detail
	}
	if owner, ok := data.(domain.UserInfo); ok {
		detail.Owner = &owner
	}
	return detail
}
