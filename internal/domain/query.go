package domain

// SortDirection represents ordering direction for sortable columns.
type SortDirection string

const (
	SortDirectionAsc  SortDirection = "asc"
	SortDirectionDesc SortDirection = "desc"
)

// Query is the downstream contract with the UI layer: one struct in, one
// Result out. Pointer fields are inactive filters when nil. An empty Kinds
// slice is a valid query that yields an empty result, not "all kinds".
type Query struct {
	Kinds           []Kind        `json:"kinds"`
	PortfolioID     *int64        `json:"portfolioId,omitempty"`
	AssetClassID    *int64        `json:"assetClassId,omitempty"`
	AssetSubClassID *int64        `json:"assetSubClassId,omitempty"`
	DateFrom        *Date         `json:"dateFrom,omitempty"`
	DateTo          *Date         `json:"dateTo,omitempty"`
	SearchText      string        `json:"searchText,omitempty"`
	SortKey         string        `json:"sortKey,omitempty"`
	SortDirection   SortDirection `json:"sortDirection,omitempty"`
	Page            int           `json:"page"`
	PageSize        int           `json:"pageSize"`
	Columns         []string      `json:"columns,omitempty"`
}

// DisplayRow is a Tagged Record with the requested columns pre-projected to
// display strings.
type DisplayRow struct {
	ID    string            `json:"id"`
	Kind  Kind              `json:"kind"`
	Cells map[string]string `json:"cells"`
}

// Result is the paginated answer to a Query.
type Result struct {
	Rows        []DisplayRow `json:"rows"`
	Total       int          `json:"total"`
	PageStart   int          `json:"pageStart"`
	PageEnd     int          `json:"pageEnd"`
	CurrentPage int          `json:"currentPage"`
	TotalPages  int          `json:"totalPages"`
}
