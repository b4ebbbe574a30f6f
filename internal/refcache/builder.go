// Package refcache builds the keyed reference lookup tables by draining
// paged backend endpoints. Builders accumulate into fresh maps so an
// abandoned or failed build never clobbers a previously committed cache.
package refcache

import (
	"context"
	"fmt"

	"github.com/wealthops/engine/internal/domain"
)

const (
	// DefaultBatchSize is the page size used against the backend's
	// skip/limit contract.
	DefaultBatchSize = 500
	// DefaultMaxItems caps a single drain. Items past the cap are dropped,
	// not errored: a runaway paging loop must not take the page down.
	DefaultMaxItems = 50000
)

// PageFunc fetches one page of T starting at skip.
type PageFunc[T any] func(ctx context.Context, skip, limit int) ([]T, error)

// Drain fetches pages until a short or empty page, the item cap, or
// cancellation. A fetch error aborts the drain and surfaces as-is so the
// caller can keep its last good data.
func Drain[T any](ctx context.Context, fetch PageFunc[T], batchSize, maxItems int) ([]T, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	var items []T
	skip := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := fetch(ctx, skip, batchSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page at skip=%d: %w", skip, err)
		}
		for _, item := range page {
			if len(items) >= maxItems {
				return items, nil
			}
			items = append(items, item)
		}
		if len(page) < batchSize {
			return items, nil
		}
		skip += batchSize
	}
}

// BuildMap drains a paged source into a map keyed by the entity's natural
// id. Later occurrences of a key overwrite earlier ones.
func BuildMap[T any, K comparable](ctx context.Context, fetch PageFunc[T], key func(T) K, batchSize, maxItems int) (map[K]T, error) {
	items, err := Drain(ctx, fetch, batchSize, maxItems)
	if err != nil {
		return nil, err
	}
	table := make(map[K]T, len(items))
	for _, item := range items {
		table[key(item)] = item
	}
	return table, nil
}

// ReferenceClient is the slice of the backend client the builder drains.
type ReferenceClient interface {
	ListAssets(ctx context.Context, skip, limit int) ([]domain.AssetInfo, error)
	ListAccounts(ctx context.Context, skip, limit int) ([]domain.AccountInfo, error)
	ListPortfolios(ctx context.Context, skip, limit int) ([]domain.PortfolioInfo, error)
	ListUsers(ctx context.Context, skip, limit int) ([]domain.UserInfo, error)
}

// Builder drains the four reference endpoints into a ReferenceSet.
type Builder struct {
	client    ReferenceClient
	batchSize int
	maxItems  int
}

func NewBuilder(client ReferenceClient, batchSize, maxItems int) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Builder{client: client, batchSize: batchSize, maxItems: maxItems}
}

// Build loads all four tables into a fresh ReferenceSet. The result is only
// ever committed by the caller after checking the load was not superseded;
// on error the caller keeps whatever set it had before.
func (b *Builder) Build(ctx context.Context) (*domain.ReferenceSet, error) {
	assets, err := BuildMap(ctx, b.client.ListAssets,
		func(a domain.AssetInfo) int64 { return a.AssetID }, b.batchSize, b.maxItems)
	if err != nil {
		return nil, fmt.Errorf("build asset cache: %w", err)
	}
	accounts, err := BuildMap(ctx, b.client.ListAccounts,
		func(a domain.AccountInfo) int64 { return a.AccountID }, b.batchSize, b.maxItems)
	if err != nil {
		return nil, fmt.Errorf("build account cache: %w", err)
	}
	portfolios, err := BuildMap(ctx, b.client.ListPortfolios,
		func(p domain.PortfolioInfo) int64 { return p.PortfolioID }, b.batchSize, b.maxItems)
	if err != nil {
		return nil, fmt.Errorf("build portfolio cache: %w", err)
	}
	users, err := BuildMap(ctx, b.client.ListUsers,
		func(u domain.UserInfo) int64 { return u.UserID }, b.batchSize, b.maxItems)
	if err != nil {
		return nil, fmt.Errorf("build user cache: %w", err)
	}
	return &domain.ReferenceSet{
		Assets:     assets,
		Accounts:   accounts,
		Portfolios: portfolios,
		Users:      users,
	}, nil
}
