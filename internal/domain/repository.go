package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Crawler runs a price search against the external crawl service
type Crawler interface {
	Crawl(ctx context.Context, request *CrawlRequest) ([]PriceRecord, error)
}

// PriceStore is the persisted collection of price records.
// FindRecords returns flat records; any store-specific wrapping is removed by
// the implementation. DeleteRecord of a missing id is not an error.
type PriceStore interface {
	FindRecords(ctx context.Context, filter RecordFilter) ([]PriceRecord, error)
	CreateRecord(ctx context.Context, record PriceRecord) (*PriceRecord, error)
	DeleteRecord(ctx context.Context, id int) error
}

// SessionRepository is the durable local copy of session state
type SessionRepository interface {
	LoadSession(ctx context.Context, id string) (*SessionState, error)
	SaveSession(ctx context.Context, id string, state *SessionState) error
	DeleteSession(ctx context.Context, id string) error
}
