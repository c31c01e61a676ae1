package models

// SearchPage is one page of a Chef search response
type SearchPage struct {
	Total int              `json:"total"`
	Start int              `json:"start"`
	Rows  []map[string]any `json:"rows"`
}

// ListingRef is one name/URL pair from a direct collection listing
type ListingRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}
