package domain

import "time"

// SessionState is what one interactive session currently shows:
// the last search results, the site history and the loading/error flags.
type SessionState struct {
	Site      string        `json:"site"`
	Results   []PriceRecord `json:"results"`
	History   []PriceRecord `json:"history"`
	Loading   bool          `json:"loading"`
	Error     string        `json:"error,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
