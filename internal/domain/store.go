package domain

import "time"

// StoreFields are the attributes of a crawl entry as the content store keeps them
type StoreFields struct {
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

// StoreEntity wraps one stored entry: identity plus attributes.
type StoreEntity struct {
	ID         int         `json:"id"`
	Attributes StoreFields `json:"attributes"`
}

// StorePagination describes the page returned by a collection read.
type StorePagination struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// StoreMeta carries response metadata
type StoreMeta struct {
	Pagination StorePagination `json:"pagination"`
}

// StoreListResponse is the paginated envelope of a collection read.
type StoreListResponse struct {
	Data []StoreEntity `json:"data"`
	Meta StoreMeta     `json:"meta"`
}

// StoreEntityResponse is the envelope of a single-entry create.
type StoreEntityResponse struct {
	Data StoreEntity `json:"data"`
}

// StoreCreateRequest is the body of a create call; it never carries an id.
type StoreCreateRequest struct {
	Data StoreFields `json:"data"`
}
