// Package backend is the REST client for the upstream wealth API. Every
// list endpoint shares one paging contract: skip/limit in, a JSON array
// out, with a short page signalling exhaustion.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wealthops/engine/internal/domain"
)

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Path string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d for %s", e.Code, e.Path)
}

// Retryable reports whether the failure is worth surfacing as a retryable
// section error rather than a page-level failure.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, Path: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func pagingParams(skip, limit int) url.Values {
	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	params.Set("limit", strconv.Itoa(limit))
	return params
}

func (c *Client) listRaw(ctx context.Context, path string, skip, limit int, accountID *int64) ([]json.RawMessage, error) {
	params := pagingParams(skip, limit)
	if accountID != nil {
		params.Set("account_id", strconv.FormatInt(*accountID, 10))
	}
	var page []json.RawMessage
	if err := c.get(ctx, path, params, &page); err != nil {
		return nil, err
	}
	return page, nil
}

// The four kind fetchers. They return raw JSON objects on purpose: the
// normalizer discriminates records structurally, not by which endpoint
// produced them.

func (c *Client) ListTrades(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error) {
	return c.listRaw(ctx, "/trades", skip, limit, accountID)
}

func (c *Client) ListCashJournals(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error) {
	return c.listRaw(ctx, "/cash-journals", skip, limit, accountID)
}

func (c *Client) ListFxTransactions(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error) {
	return c.listRaw(ctx, "/fx-transactions", skip, limit, accountID)
}

func (c *Client) ListCorporateActions(ctx context.Context, skip, limit int, accountID *int64) ([]json.RawMessage, error) {
	return c.listRaw(ctx, "/corporate-actions", skip, limit, accountID)
}

// Reference-data endpoints, decoded into their snapshot types.

func (c *Client) ListAssets(ctx context.Context, skip, limit int) ([]domain.AssetInfo, error) {
	var page []domain.AssetInfo
	err := c.get(ctx, "/assets", pagingParams(skip, limit), &page)
	return page, err
}

func (c *Client) ListAccounts(ctx context.Context, skip, limit int) ([]domain.AccountInfo, error) {
	var page []domain.AccountInfo
	err := c.get(ctx, "/accounts", pagingParams(skip, limit), &page)
	return page, err
}

func (c *Client) ListPortfolios(ctx context.Context, skip, limit int) ([]domain.PortfolioInfo, error) {
	var page []domain.PortfolioInfo
	err := c.get(ctx, "/portfolios", pagingParams(skip, limit), &page)
	return page, err
}

func (c *Client) ListUsers(ctx context.Context, skip, limit int) ([]domain.UserInfo, error) {
	var page []domain.UserInfo
	err := c.get(ctx, "/users", pagingParams(skip, limit), &page)
	return page, err
}

func idsParam(ids []int64) url.Values {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	params := url.Values{}
	params.Set("ids", strings.Join(parts, ","))
	return params
}

// By-id batch lookups, used by the record-detail dataloaders to resolve
// references that the bulk caches missed.

func (c *Client) GetAssetsByIDs(ctx context.Context, ids []int64) ([]domain.AssetInfo, error) {
	var out []domain.AssetInfo
	err := c.get(ctx, "/assets", idsParam(ids), &out)
	return out, err
}

func (c *Client) GetAccountsByIDs(ctx context.Context, ids []int64) ([]domain.AccountInfo, error) {
	var out []domain.AccountInfo
	err := c.get(ctx, "/accounts", idsParam(ids), &out)
	return out, err
}

func (c *Client) GetPortfoliosByIDs(ctx context.Context, ids []int64) ([]domain.PortfolioInfo, error) {
	var out []domain.PortfolioInfo
	err := c.get(ctx, "/portfolios", idsParam(ids), &out)
	return out, err
}

func (c *Client) GetUsersByIDs(ctx context.Context, ids []int64) ([]domain.UserInfo, error) {
	var out []domain.UserInfo
	err := c.get(ctx, "/users", idsParam(ids), &out)
	return out, err
}
