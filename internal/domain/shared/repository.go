package shared

// Filter carries paging, ordering and free-text search for list queries
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Search   string
}

