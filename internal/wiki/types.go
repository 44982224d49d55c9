// Package wiki talks to a Confluence Server REST API with basic auth.
// Page bodies use the storage representation throughout.
package wiki

// Page identifies a Confluence page without its body.
type Page struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	SpaceKey string `json:"space_key"`
}

// PageWithContent carries the storage body and version needed for updates.
type PageWithContent struct {
	Page
	Body    string `json:"body"`
	Version int    `json:"version"`
}

// CreationResult reports a finished page creation or update, including the
// year/month hierarchy the page was filed under.
type CreationResult struct {
	PageID       string `json:"page_id"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	ParentPageID string `json:"parent_page_id,omitempty"`
	YearPageID   string `json:"year_page_id,omitempty"`
	MonthPageID  string `json:"month_page_id,omitempty"`

	// WasUpdated is true when an existing page was modified instead of a
	// new one created.
	WasUpdated bool `json:"was_updated"`
}
