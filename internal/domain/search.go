package domain

// SearchRequest is the UI-facing search trigger.
// Include and Exclude entries may themselves be comma-separated lists.
type SearchRequest struct {
	Site     string   `json:"site" binding:"required"`
	Keyword  string   `json:"keyword"`
	Include  []string `json:"include,omitempty"`
	Exclude  []string `json:"exclude,omitempty"`
	MinPrice float64  `json:"minPrice"`
	MaxPrice float64  `json:"maxPrice"`
}

// CrawlRequest is the body sent to the external crawl service
type CrawlRequest struct {
	Site     string   `json:"site"`
	Keyword  string   `json:"keyword"`
	Include  []string `json:"include"`
	Exclude  []string `json:"exclude"`
	MinPrice float64  `json:"min_price"`
	MaxPrice float64  `json:"max_price"`
}

// CrawlResponse is the envelope returned by the crawl service.
type CrawlResponse struct {
	Success bool          `json:"success"`
	Result  []PriceRecord `json:"result"`
	Error   string        `json:"error,omitempty"`
}

// SearchOutcome is what a completed search hands back to the caller:
// today's candidates and the reloaded full history of the site.
type SearchOutcome struct {
	Results []PriceRecord `json:"results"`
	History []PriceRecord `json:"history"`
}
