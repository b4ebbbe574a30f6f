// Package api exposes the query engine to the UI layer as plain JSON over
// HTTP: one query object in, one result object out.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/wealthops/engine/internal/domain"
	"github.com/wealthops/engine/internal/middleware"
	"github.com/wealthops/engine/internal/query"
	"github.com/wealthops/engine/internal/refloader"
	"github.com/wealthops/engine/internal/view"
)

type Handler struct {
	session *view.Session
	engine  *query.Engine
}

func NewHTTPHandler(session *view.Session, engine *query.Engine) http.Handler {
	return &Handler{session: session, engine: engine}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/query"):
		h.handleQuery(w, r)
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/records/"):
		h.handleRecord(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/columns"):
		h.handleColumns(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reload"):
		h.handleReload(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/status"):
		h.handleStatus(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var q domain.Query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	for _, kind := range q.Kinds {
		if !kind.Valid() {
			http.Error(w, fmt.Sprintf("unknown kind %q", kind), http.StatusBadRequest)
			return
		}
	}

	snap, ok := h.session.Snapshot()
	if !ok {
		// Still loading is a valid empty state; a load that never
		// succeeded because the backend is unreachable is the one case
		// that warrants a page-level error.
		if status := h.session.Status(); status.LastError != "" {
			http.Error(w, status.LastError, http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, domain.Result{Rows: []domain.DisplayRow{}, CurrentPage: 1})
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Execute(snap.Records, snap.Refs, q))
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	idx := strings.LastIndex(path, "/")
	if idx == -1 || idx == len(path)-1 {
		http.Error(w, "missing record identifier", http.StatusBadRequest)
		return
	}
	recordID := path[idx+1:]

	snap, ok := h.session.Snapshot()
	if !ok {
		http.Error(w, "no snapshot loaded", http.StatusServiceUnavailable)
		return
	}
	rec, ok := snap.FindRecord(recordID)
	if !ok {
		http.Error(w, fmt.Sprintf("record %q not found", recordID), http.StatusNotFound)
		return
	}

	// The detail view resolves the full chain on demand; ids the bulk
	// caches missed are batch-fetched from the backend.
	if loaders := middleware.RefLoadersFromContext(r.Context()); loaders != nil {
		writeJSON(w, http.StatusOK, loaders.ResolveChain(r.Context(), rec))
		return
	}
	writeJSON(w, http.StatusOK, detailFromSnapshot(snap, rec))
}

// detailFromSnapshot answers the detail from the loaded caches alone when
// no per-request loaders are installed.
func detailFromSnapshot(snap *view.Snapshot, rec domain.TaggedRecord) refloader.RecordDetail {
	detail := refloader.RecordDetail{Record: rec}
	if assetID, ok := rec.Payload.Asset(); ok {
		if asset, ok := snap.Refs.Asset(assetID); ok {
			detail.Asset = &asset
		}
	}
	accountID, ok := rec.Payload.Account()
	if !ok {
		return detail
	}
	account, ok := snap.Refs.Account(accountID)
	if !ok {
		return detail
	}
	detail.Account = &account
	portfolio, ok := snap.Refs.Portfolio(account.PortfolioID)
	if !ok {
		return detail
	}
	detail.Portfolio = &portfolio
	if owner, ok := snap.Refs.User(portfolio.OwnerUserID); ok {
		detail.Owner = &owner
	}
	return detail
}

type columnInfo struct {
	Key   string        `json:"key"`
	Label string        `json:"label"`
	Kinds []domain.Kind `json:"kinds"`
}

func (h *Handler) handleColumns(w http.ResponseWriter, r *http.Request) {
	cols := h.engine.Registry().Columns()
	out := make([]columnInfo, len(cols))
	for i, col := range cols {
		info := columnInfo{Key: col.Key, Label: col.Label}
		for _, kind := range domain.AllKinds() {
			if col.AppliesTo(kind) {
				info.Kinds = append(info.Kinds, kind)
			}
		}
		out[i] = info
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleReload(w http.ResponseWriter, r *http.Request) {
	// Writes go straight to the backend; their only contract with this
	// engine is a full reload afterwards. The reload outlives the request.
	go func() {
		if err := h.session.Load(context.Background()); err != nil && !errors.Is(err, view.ErrSuperseded) {
			log.Printf("[VIEW] reload failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reloading"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
