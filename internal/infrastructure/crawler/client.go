package crawler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pricetrail/backend/internal/domain"
	"golang.org/x/time/rate"
)

// NoResultsMessage is reported when the crawler fails without saying why
const NoResultsMessage = "no products match the given conditions"

// Client calls the external crawl service
type Client struct {
	client      *resty.Client
	url         string
	rateLimiter *rate.Limiter
}

// NewClient creates a crawl client posting to url. Crawls are never retried.
func NewClient(url string, timeout time.Duration, requestsPerSecond float64) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "PriceTrail/1.0")

	return &Client{
		client:      client,
		url:         url,
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

// Crawl runs one search. Every record returned carries the requested site.
func (c *Client) Crawl(ctx context.Context, request *domain.CrawlRequest) ([]domain.PriceRecord, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %v", domain.ErrSearchFailed, err)
	}

	log.Printf("[Crawler] site=%s keyword=%q include=%v exclude=%v price=%.0f~%.0f",
		request.Site, request.Keyword, request.Include, request.Exclude, request.MinPrice, request.MaxPrice)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(request).
		Post(c.url)
	if err != nil {
		log.Printf("[Crawler] request error: %v", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrSearchFailed, err)
	}

	var crawlResp domain.CrawlResponse
	if err := json.Unmarshal(resp.Body(), &crawlResp); err != nil {
		log.Printf("[Crawler] decode error (status %d): %v", resp.StatusCode(), err)
		return nil, fmt.Errorf("%w: status %d: failed to decode response: %v", domain.ErrSearchFailed, resp.StatusCode(), err)
	}

	if !resp.IsSuccess() || !crawlResp.Success {
		message := crawlResp.Error
		if message == "" {
			message = NoResultsMessage
		}
		log.Printf("[Crawler] unsuccessful search (status %d): %s", resp.StatusCode(), message)
		return nil, &SearchError{Message: message}
	}

	records := make([]domain.PriceRecord, 0, len(crawlResp.Result))
	for _, r := range crawlResp.Result {
		if r.Price < 0 {
			log.Printf("[Crawler] dropping %q: negative price %.0f", r.Title, r.Price)
			continue
		}
		r.ID = 0
		r.Site = request.Site
		records = append(records, r)
	}

	log.Printf("[Crawler] %d results for %q on %s", len(records), request.Keyword, request.Site)
	return records, nil
}

// SearchError is an explicit unsuccessful answer from the crawler.
// It matches domain.ErrSearchFailed and carries the crawler's message.
type SearchError struct {
	Message string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%s: %s", domain.ErrSearchFailed, e.Message)
}

// Unwrap lets errors.Is match domain.ErrSearchFailed
func (e *SearchError) Unwrap() error {
	return domain.ErrSearchFailed
}
