package domain

import "time"

// DateLayout is the calendar-day format used for PriceRecord.Date and scopes.
const DateLayout = "2006-01-02"

// PriceRecord is a single observed price for a product on one site and day.
// ID and the timestamps are assigned by the persisted store; crawl candidates
// carry none of them.
type PriceRecord struct {
	ID          int        `json:"id,omitempty"`
	Title       string     `json:"title"`
	Price       float64    `json:"price"`
	URL         string     `json:"url"`
	Code        string     `json:"code"`
	Date        string     `json:"date"`
	Site        string     `json:"site"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// IsPersisted reports whether the store has assigned an identity to the record.
func (r PriceRecord) IsPersisted() bool {
	return r.ID > 0
}

// RecordFilter holds exact-match predicates for store reads.
// An empty field leaves that attribute unconstrained.
type RecordFilter struct {
	Site string
	Date string
}

// Scope is the (site, date) key a reconciliation may delete and insert under.
type Scope struct {
	Site string
	Date string
}

// Key returns a stable string form of the scope, usable as a lock or cache key.
func (s Scope) Key() string {
	return s.Site + "|" + s.Date
}

// Filter returns the exact-match filter selecting the scope's snapshot.
func (s Scope) Filter() RecordFilter {
	return RecordFilter{Site: s.Site, Date: s.Date}
}

// ChartPoint is one day of the lowest-price time series for a site
type ChartPoint struct {
	Date  string  `json:"date"`
	Price float64 `json:"price"`
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Code  string  `json:"code"`
}
