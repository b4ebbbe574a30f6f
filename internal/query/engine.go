package query

import (
	"github.com/wealthops/engine/internal/columns"
	"github.com/wealthops/engine/internal/domain"
)

const DefaultPageSize = 50

// Engine answers queries against a loaded snapshot: filter, sort, paginate,
// then project the visible page through the column registry.
type Engine struct {
	registry *columns.Registry
	pageSize int
}

type EngineOption func(*Engine)

func WithDefaultPageSize(size int) EngineOption {
	return func(e *Engine) {
		if size > 0 {
			e.pageSize = size
		}
	}
}

func NewEngine(registry *columns.Registry, opts ...EngineOption) *Engine {
	engine := &Engine{registry: registry, pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Registry exposes the column set for metadata endpoints and exports.
func (e *Engine) Registry() *columns.Registry {
	return e.registry
}

// Execute runs the full pipeline for one query. It never errors: invalid
// query states short-circuit to an empty result inside Filter.
func (e *Engine) Execute(records []domain.TaggedRecord, refs *domain.ReferenceSet, q domain.Query) domain.Result {
	ordered := e.Select(records, refs, q)

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = e.pageSize
	}
	page := Paginate(ordered, pageSize, q.Page)

	keys := q.Columns
	if len(keys) == 0 {
		keys = e.registry.Keys()
	}
	rows := make([]domain.DisplayRow, len(page.Records))
	for i, rec := range page.Records {
		cells := make(map[string]string, len(keys))
		for _, key := range keys {
			cells[key] = e.registry.Project(rec, refs, key)
		}
		rows[i] = domain.DisplayRow{ID: rec.ID, Kind: rec.Kind, Cells: cells}
	}

	return domain.Result{
		Rows:        rows,
		Total:       page.Total,
		PageStart:   page.PageStart,
		PageEnd:     page.PageEnd,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
	}
}

// Select returns the full filtered, sorted set without pagination, used by
// exports which write every matching row.
func (e *Engine) Select(records []domain.TaggedRecord, refs *domain.ReferenceSet, q domain.Query) []domain.TaggedRecord {
	filtered := Filter(records, q, refs)
	return Sort(filtered, e.registry, refs, q.SortKey, q.SortDirection)
}
