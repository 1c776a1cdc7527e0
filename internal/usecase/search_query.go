package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pricetrail/backend/internal/domain"
)

var multiSpacePattern = regexp.MustCompile(`\s+`)

// SplitTerms turns UI filter input into crawler terms: every entry is split
// on commas, trimmed, and empties are dropped. Order and case are kept.
func SplitTerms(entries []string) []string {
	terms := make([]string, 0, len(entries))
	for _, entry := range entries {
		for _, part := range strings.Split(entry, ",") {
			if term := strings.TrimSpace(part); term != "" {
				terms = append(terms, term)
			}
		}
	}
	return terms
}

// normalizeKeyword trims the keyword and collapses inner whitespace
func normalizeKeyword(keyword string) string {
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(keyword, " "))
}

// buildCrawlRequest validates a search request and converts it to the crawler's wire shape
func buildCrawlRequest(request *domain.SearchRequest, sites map[string]bool) (*domain.CrawlRequest, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}

	site := strings.TrimSpace(request.Site)
	if !sites[site] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSite, request.Site)
	}

	keyword := normalizeKeyword(request.Keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", domain.ErrInvalidRequest)
	}
	if request.MaxPrice <= 0 {
		return nil, fmt.Errorf("%w: max price must be greater than zero", domain.ErrInvalidRequest)
	}
	if request.MinPrice < 0 {
		return nil, fmt.Errorf("%w: min price must not be negative", domain.ErrInvalidRequest)
	}
	if request.MinPrice > request.MaxPrice {
		return nil, fmt.Errorf("%w: min price %.0f exceeds max price %.0f", domain.ErrInvalidRequest, request.MinPrice, request.MaxPrice)
	}

	return &domain.CrawlRequest{
		Site:     site,
		Keyword:  keyword,
		Include:  SplitTerms(request.Include),
		Exclude:  SplitTerms(request.Exclude),
		MinPrice: request.MinPrice,
		MaxPrice: request.MaxPrice,
	}, nil
}
