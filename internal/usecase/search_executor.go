package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pricetrail/backend/internal/domain"
)

// SearchExecutor validates a UI search request and runs it against the crawler
type SearchExecutor struct {
	crawler      domain.Crawler
	sites        map[string]bool
	debugLogging bool
}

// NewSearchExecutor creates an executor that accepts only the given sites
func NewSearchExecutor(crawler domain.Crawler, sites []string, enableDebugLogging bool) *SearchExecutor {
	allowed := make(map[string]bool, len(sites))
	for _, site := range sites {
		if site = strings.TrimSpace(site); site != "" {
			allowed[site] = true
		}
	}
	return &SearchExecutor{
		crawler:      crawler,
		sites:        allowed,
		debugLogging: enableDebugLogging,
	}
}

// Accepts reports whether site is one of the configured sites
func (e *SearchExecutor) Accepts(site string) bool {
	return e.sites[site]
}

// Validate checks a request without running it
func (e *SearchExecutor) Validate(request *domain.SearchRequest) error {
	_, err := buildCrawlRequest(request, e.sites)
	return err
}

// RunSearch returns today's candidate records for the request. Records carry
// the requested site; dates are assigned later by the reconciler. Invalid
// input never reaches the crawler. Failures are not retried.
func (e *SearchExecutor) RunSearch(ctx context.Context, request *domain.SearchRequest) ([]domain.PriceRecord, error) {
	crawlRequest, err := buildCrawlRequest(request, e.sites)
	if err != nil {
		return nil, err
	}

	if e.debugLogging {
		log.Printf("[Search] site=%s keyword=%q include=%q exclude=%q price=%.0f..%.0f",
			crawlRequest.Site, crawlRequest.Keyword, crawlRequest.Include, crawlRequest.Exclude,
			crawlRequest.MinPrice, crawlRequest.MaxPrice)
	}

	records, err := e.crawler.Crawl(ctx, crawlRequest)
	if err != nil {
		if errors.Is(err, domain.ErrSearchFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}

	results := make([]domain.PriceRecord, len(records))
	for i, record := range records {
		record.Site = crawlRequest.Site
		results[i] = record
	}

	if e.debugLogging {
		log.Printf("[Search] site=%s returned %d records", crawlRequest.Site, len(results))
	}

	return results, nil
}
