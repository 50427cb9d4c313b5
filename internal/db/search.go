package db

// TextQuery is the input for relevance-ranked full-text search.
type TextQuery struct {
	IndexName    string
	Query        string
	TopK         int
	ReturnFields []string
}

// ListQuery is the input for ordered listing via FT.SEARCH, optionally sorted
// by a SORTABLE field.
type ListQuery struct {
	IndexName    string
	Query        string
	SortBy       string // empty means index order
	SortDesc     bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
