package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wealthops/engine/internal/columns"
	"github.com/wealthops/engine/internal/domain"
	"github.com/wealthops/engine/internal/query"
	"github.com/wealthops/engine/internal/view"
)

type stubFetcher struct {
	trades   []json.RawMessage
	journals []json.RawMessage
}

func window(items []json.RawMessage, skip, limit int) []json.RawMessage {
	if skip >= len(items) {
		return nil
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

func (s *stubFetcher) ListTrades(ctx context.Context, skip, limit int, _ *int64) ([]json.RawMessage, error) {
	return window(s.trades, skip, limit), nil
}

func (s *stubFetcher) ListCashJournals(ctx context.Context, skip, limit int, _ *int64) ([]json.RawMessage, error) {
	return window(s.journals, skip, limit), nil
}

func (s *stubFetcher) ListFxTransactions(ctx context.Context, skip, limit int, _ *int64) ([]json.RawMessage, error) {
	return nil, nil
}

func (s *stubFetcher) ListCorporateActions(ctx context.Context, skip, limit int, _ *int64) ([]json.RawMessage, error) {
	return nil, nil
}

type stubRefLoader struct {
	refs *domain.ReferenceSet
}

func (s *stubRefLoader) Build(ctx context.Context) (*domain.ReferenceSet, error) {
	return s.refs, nil
}

func loadedHandler(t *testing.T) http.Handler {
	t.Helper()
	fetcher := &stubFetcher{
		trades: []json.RawMessage{
			json.RawMessage(`{"transaction_id":1,"account_id":1,"asset_id":77,"side":"BUY","quantity":"2","price":"10","currency":"USD","trade_date":"2024-06-01"}`),
		},
		journals: []json.RawMessage{
			json.RawMessage(`{"journal_id":1,"account_id":1,"journal_type":"DEPOSIT","amount":"100","currency":"USD","date":"2024-06-02"}`),
		},
	}
	refs := domain.NewReferenceSet()
	refs.Assets[77] = domain.AssetInfo{AssetID: 77, Symbol: "NVDA", ClassID: 5}
	refs.Accounts[1] = domain.AccountInfo{AccountID: 1, PortfolioID: 2, Institution: "UBS"}
	refs.Portfolios[2] = domain.PortfolioInfo{PortfolioID: 2, OwnerUserID: 3, Name: "Growth"}
	refs.Users[3] = domain.UserInfo{UserID: 3, FullName: "Ada Lovelace"}

	session := view.NewSession(fetcher, &stubRefLoader{refs: refs})
	if err := session.Load(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return NewHTTPHandler(session, query.NewEngine(columns.DefaultRegistry()))
}

func TestHandleQuery(t *testing.T) {
	handler := loadedHandler(t)
	body := `{"kinds":["TRADE","CASH_JOURNAL"],"page":1,"pageSize":10}`
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result domain.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid result JSON: %v", err)
	}
	if result.Total != 2 || len(result.Rows) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	// Default order puts the newer journal first.
	if result.Rows[0].Kind != domain.KindCashJournal {
		t.Fatalf("expected journal first, got %s", result.Rows[0].Kind)
	}
	if result.Rows[1].Cells["symbol"] != "NVDA" {
		t.Fatalf("expected projected symbol, got %q", result.Rows[1].Cells["symbol"])
	}
}

func TestHandleQueryRejectsBadPayload(t *testing.T) {
	handler := loadedHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleQueryRejectsUnknownKind(t *testing.T) {
	handler := loadedHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"kinds":["EQUITY"]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleQueryBeforeFirstLoad(t *testing.T) {
	session := view.NewSession(&stubFetcher{}, &stubRefLoader{refs: domain.NewReferenceSet()})
	handler := NewHTTPHandler(session, query.NewEngine(columns.DefaultRegistry()))

	req := httptest.NewRequest(http.MethodPost, "/api/query", strings.NewReader(`{"kinds":["TRADE"]}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("still-loading must answer an empty state, got %d", rec.Code)
	}
	var result domain.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid result JSON: %v", err)
	}
	if result.Total != 0 || len(result.Rows) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestHandleColumns(t *testing.T) {
	handler := loadedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/columns", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cols []columnInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &cols); err != nil {
		t.Fatalf("invalid columns JSON: %v", err)
	}
	if len(cols) == 0 {
		t.Fatal("expected column metadata")
	}
	for _, col := range cols {
		if col.Key == "" || col.Label == "" || len(col.Kinds) == 0 {
			t.Fatalf("incomplete column %+v", col)
		}
	}
}

func TestHandleRecordDetail(t *testing.T) {
	handler := loadedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/records/TRADE-0", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var detail struct {
		Asset *domain.AssetInfo `json:"asset"`
		Owner *domain.UserInfo  `json:"owner"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("invalid detail JSON: %v", err)
	}
	if detail.Asset == nil || detail.Asset.Symbol != "NVDA" {
		t.Fatalf("asset chain unresolved: %+v", detail.Asset)
	}
	if detail.Owner == nil || detail.Owner.FullName != "Ada Lovelace" {
		t.Fatalf("owner chain unresolved: %+v", detail.Owner)
	}
}

func TestHandleRecordNotFound(t *testing.T) {
	handler := loadedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/records/TRADE-42", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleReloadAccepted(t *testing.T) {
	handler := loadedHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/reload", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	handler := loadedHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status view.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if !status.Loaded || status.RecordCount != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
}
