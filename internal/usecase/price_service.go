package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pricetrail/backend/internal/domain"
)

// PriceServiceConfig holds configuration for the price service
type PriceServiceConfig struct {
	CacheTTL time.Duration
}

// PriceService runs searches through the executor and reconciler and serves
// site history with caching
type PriceService struct {
	cache      domain.CacheRepository
	executor   *SearchExecutor
	reconciler *SnapshotReconciler
	cacheTTL   time.Duration

	// generations counts history changes per site. A read only caches what
	// it loaded if no search started on that site in the meantime.
	mu          sync.Mutex
	generations map[string]uint64
}

// NewPriceService creates a new price service with dependencies
func NewPriceService(
	cache domain.CacheRepository,
	executor *SearchExecutor,
	reconciler *SnapshotReconciler,
	config PriceServiceConfig,
) *PriceService {
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	return &PriceService{
		cache:      cache,
		executor:   executor,
		reconciler:  reconciler,
		cacheTTL:    cacheTTL,
		generations: make(map[string]uint64),
	}
}

// Search runs a crawl and stores its results as today's snapshot.
// Flow: validate -> crawl -> reconcile -> cache reloaded history -> return
//
// A failed crawl returns ErrSearchFailed and leaves the store untouched.
// Store failures during reconciliation are returned next to a non-nil
// outcome; History is nil when the reload itself failed.
func (s *PriceService) Search(ctx context.Context, request *domain.SearchRequest) (*domain.SearchOutcome, error) {
	results, err := s.executor.RunSearch(ctx, request)
	if err != nil {
		return nil, err
	}

	site := strings.TrimSpace(request.Site)
	started := s.bumpGeneration(site)
	history, reconcileErr := s.reconciler.Reconcile(ctx, site, results)

	outcome := &domain.SearchOutcome{Results: results}
	if history != nil {
		outcome.History = SortByDate(history)
	}
	s.storeHistory(ctx, site, outcome.History, started)

	return outcome, reconcileErr
}

// Validate reports whether request would be accepted by Search
func (s *PriceService) Validate(request *domain.SearchRequest) error {
	return s.executor.Validate(request)
}

// History returns every stored record of site ordered by date
func (s *PriceService) History(ctx context.Context, site string) ([]domain.PriceRecord, error) {
	if !s.executor.Accepts(site) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSite, site)
	}

	cacheKey := historyCacheKey(site)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
		if records, ok := cached.([]domain.PriceRecord); ok {
			return cloneRecords(records), nil
		}
	}

	generation := s.generation(site)
	records, err := s.reconciler.History(ctx, site)
	if err != nil {
		return nil, err
	}
	sorted := SortByDate(records)

	s.mu.Lock()
	if s.generations[site] == generation {
		if err := s.cache.Set(ctx, cacheKey, sorted, s.cacheTTL); err != nil {
			log.Printf("[Prices] caching history of %s failed: %v", site, err)
		}
	}
	s.mu.Unlock()

	return cloneRecords(sorted), nil
}

func (s *PriceService) generation(site string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generations[site]
}

func (s *PriceService) bumpGeneration(site string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[site]++
	return s.generations[site]
}

// storeHistory publishes the history reloaded by the search that started at
// generation started. A nil history (failed reload) or a search that
// overlapped another one on the same site only drops the cached copy.
func (s *PriceService) storeHistory(ctx context.Context, site string, history []domain.PriceRecord, started uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	overlapped := s.generations[site] != started
	s.generations[site]++
	key := historyCacheKey(site)
	if history == nil || overlapped {
		if err := s.cache.Delete(ctx, key); err != nil {
			log.Printf("[Prices] invalidating cached history of %s failed: %v", site, err)
		}
		return
	}
	if err := s.cache.Set(ctx, key, cloneRecords(history), s.cacheTTL); err != nil {
		log.Printf("[Prices] caching history of %s failed: %v", site, err)
	}
}

// Chart returns the daily lowest-price series of site
func (s *PriceService) Chart(ctx context.Context, site string) ([]domain.ChartPoint, error) {
	history, err := s.History(ctx, site)
	if err != nil {
		return nil, err
	}
	return DailyLowest(history), nil
}

// historyCacheKey returns the cache key of a site's history.
// Format: "history:{site}"
func historyCacheKey(site string) string {
	return "history:" + site
}

func cloneRecords(records []domain.PriceRecord) []domain.PriceRecord {
	out := make([]domain.PriceRecord, len(records))
	copy(out, records)
	return out
}
