package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/pricetrail/backend/internal/domain"
)

// Store is an in-process PriceStore. It assigns ids and timestamps the
// way the content store does and keeps records in insertion order.
type Store struct {
	mu      sync.RWMutex
	records []domain.PriceRecord
	nextID  int
	now     func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{now: time.Now}
}

// FindRecords returns copies of all records matching the filter
func (s *Store) FindRecords(ctx context.Context, filter domain.RecordFilter) ([]domain.PriceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.PriceRecord, 0)
	for _, r := range s.records {
		if filter.Site != "" && r.Site != filter.Site {
			continue
		}
		if filter.Date != "" && r.Date != filter.Date {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// CreateRecord stores a copy of record under a fresh id
func (s *Store) CreateRecord(ctx context.Context, record domain.PriceRecord) (*domain.PriceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now()
	record.ID = s.nextID
	record.CreatedAt = &now
	record.UpdatedAt = &now
	record.PublishedAt = &now
	s.records = append(s.records, record)

	created := record
	return &created, nil
}

// DeleteRecord removes the record with id; unknown ids are ignored
func (s *Store) DeleteRecord(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			return nil
		}
	}
	return nil
}

// Len returns the number of stored records
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
