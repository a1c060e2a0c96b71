package storage

import "time"

// SortOrder selects ascending or descending result ordering.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sortable card fields, named after the application-level (camelCase) shape.
const (
	SortByID        = "id"
	SortByTitle     = "title"
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"
)

// DateRange bounds a query by creation time. Both bounds are inclusive; a
// zero bound is open on that side.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Filters narrows a card query.
//
// Tags is an OR-match: a card qualifies if at least one of the given tags is
// present on it. SearchTerm is a case-insensitive substring match against
// title, content, and tags. DateRange compares against createdAt.
type Filters struct {
	Tags       []string   `json:"tags,omitempty"`
	SearchTerm string     `json:"searchTerm,omitempty"`
	DateRange  *DateRange `json:"dateRange,omitempty"`
}

// QueryOptions shapes a GetCards call. The zero value (or nil) means: no
// filtering, sorted by updatedAt descending, no pagination.
//
// Pagination is applied after filtering and sorting. Limit <= 0 means no
// limit.
type QueryOptions struct {
	Limit     int       `json:"limit,omitempty"`
	Offset    int       `json:"offset,omitempty"`
	SortBy    string    `json:"sortBy,omitempty"`
	SortOrder SortOrder `json:"sortOrder,omitempty"`
	Filters   *Filters  `json:"filters,omitempty"`
}

// sortKey returns the effective sort field and order with defaults applied.
func (o *QueryOptions) sortKey() (string, SortOrder) {
	field := SortByUpdatedAt
	order := SortDesc
	if o != nil {
		if o.SortBy != "" {
			field = o.SortBy
		}
		if o.SortOrder != "" {
			order = o.SortOrder
		}
	}
	return field, order
}

// filters returns the filter block, which may be nil.
func (o *QueryOptions) filters() *Filters {
	if o == nil {
		return nil
	}
	return o.Filters
}
