package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pricetrail/backend/internal/domain"
	"github.com/pricetrail/backend/internal/infrastructure/memstore"
)

var errStoreDown = errors.New("store unavailable")

// fixedClock returns a clock stuck at the given day, noon UTC
func fixedClock(date string) func() time.Time {
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		panic(err)
	}
	t = t.Add(12 * time.Hour)
	return func() time.Time { return t }
}

// faultyStore wraps memstore.Store with injectable failures and a call log
type faultyStore struct {
	*memstore.Store

	mu          sync.Mutex
	calls       []string
	failScope   bool
	failReload  bool
	failDelete  bool
	failCreates map[string]bool // by title

	// hooks run after the wrapped call succeeds
	afterFind   func(filter domain.RecordFilter)
	afterDelete func(id int)
}

func newFaultyStore() *faultyStore {
	return &faultyStore{Store: memstore.New(), failCreates: map[string]bool{}}
}

func (s *faultyStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *faultyStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *faultyStore) FindRecords(ctx context.Context, filter domain.RecordFilter) ([]domain.PriceRecord, error) {
	s.record(fmt.Sprintf("find %s|%s", filter.Site, filter.Date))
	if filter.Date != "" && s.failScope {
		return nil, errStoreDown
	}
	if filter.Date == "" && s.failReload {
		return nil, errStoreDown
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := s.Store.FindRecords(ctx, filter)
	if err == nil && s.afterFind != nil {
		s.afterFind(filter)
	}
	return records, err
}

func (s *faultyStore) CreateRecord(ctx context.Context, record domain.PriceRecord) (*domain.PriceRecord, error) {
	s.record("create " + record.Title)
	if s.failCreates[record.Title] {
		return nil, errStoreDown
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Store.CreateRecord(ctx, record)
}

func (s *faultyStore) DeleteRecord(ctx context.Context, id int) error {
	s.record(fmt.Sprintf("delete %d", id))
	if s.failDelete {
		return errStoreDown
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.Store.DeleteRecord(ctx, id); err != nil {
		return err
	}
	if s.afterDelete != nil {
		s.afterDelete(id)
	}
	return nil
}

// seed stores records directly, bypassing the call log
func (s *faultyStore) seed(records ...domain.PriceRecord) {
	for _, r := range records {
		if _, err := s.Store.CreateRecord(context.Background(), r); err != nil {
			panic(err)
		}
	}
}

// fakeCrawler is a scripted domain.Crawler
type fakeCrawler struct {
	mu       sync.Mutex
	records  []domain.PriceRecord
	err      error
	requests []*domain.CrawlRequest
}

func (c *fakeCrawler) Crawl(ctx context.Context, request *domain.CrawlRequest) ([]domain.PriceRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, request)
	if c.err != nil {
		return nil, c.err
	}
	out := make([]domain.PriceRecord, len(c.records))
	copy(out, c.records)
	return out, nil
}

func (c *fakeCrawler) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// mapCache is a minimal domain.CacheRepository
type mapCache struct {
	mu      sync.Mutex
	data    map[string]interface{}
	deletes []string
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string]interface{}{}}
}

func (c *mapCache) Get(ctx context.Context, key string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (c *mapCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, key)
	delete(c.data, key)
	return nil
}

func (c *mapCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}
