package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pricetrail/backend/internal/domain"
	"golang.org/x/time/rate"
)

// maxErrorBody bounds how much of a failed response is kept for error messages
const maxErrorBody = 2048

// Config holds the content-store connection settings
type Config struct {
	BaseURL           string
	APIToken          string
	Collection        string
	PageSize          int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Client talks to a Strapi-style content store holding crawl entries
type Client struct {
	httpClient  *http.Client
	baseURL     string
	apiToken    string
	collection  string
	pageSize    int
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new content-store client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "crawls"
	}

	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:    cfg.APIToken,
		collection:  collection,
		pageSize:    pageSize,
		rateLimiter: rate.NewLimiter(limit, 5),
	}
}

// SetDebug enables or disables debug logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

func (c *Client) debugLog(format string, args ...interface{}) {
	if c.debug {
		log.Printf("[Strapi] "+format, args...)
	}
}

// doRequest waits for the limiter and executes a request with auth and JSON headers
func (c *Client) doRequest(ctx context.Context, method, reqURL string, body interface{}) (*http.Response, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PriceTrail/1.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	c.debugLog("%s %s", method, reqURL)
	return c.httpClient.Do(req)
}

// collectionURL builds /{collection}[/{id}]
func (c *Client) collectionURL(id int) string {
	if id > 0 {
		return fmt.Sprintf("%s/%s/%d", c.baseURL, c.collection, id)
	}
	return fmt.Sprintf("%s/%s", c.baseURL, c.collection)
}

// filterQuery encodes exact-match filters plus the page window
func filterQuery(filter domain.RecordFilter, page, pageSize int) url.Values {
	params := url.Values{}
	if filter.Site != "" {
		params.Set("filters[site][$eq]", filter.Site)
	}
	if filter.Date != "" {
		params.Set("filters[date][$eq]", filter.Date)
	}
	params.Set("pagination[page]", strconv.Itoa(page))
	params.Set("pagination[pageSize]", strconv.Itoa(pageSize))
	return params
}

// FindRecords reads every entry matching the filter, following pagination,
// and returns them flattened.
func (c *Client) FindRecords(ctx context.Context, filter domain.RecordFilter) ([]domain.PriceRecord, error) {
	var records []domain.PriceRecord

	for page := 1; ; page++ {
		listResp, err := c.findPage(ctx, filter, page)
		if err != nil {
			return nil, err
		}

		records = append(records, MapEntities(listResp.Data)...)

		pageCount := listResp.Meta.Pagination.PageCount
		if page >= pageCount || len(listResp.Data) == 0 {
			break
		}
	}

	c.debugLog("found %d records for site=%q date=%q", len(records), filter.Site, filter.Date)
	return records, nil
}

func (c *Client) findPage(ctx context.Context, filter domain.RecordFilter, page int) (*domain.StoreListResponse, error) {
	reqURL := fmt.Sprintf("%s?%s", c.collectionURL(0), filterQuery(filter, page, c.pageSize).Encode())

	resp, err := c.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreRead, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := readLimitedBody(resp.Body, maxErrorBody)
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrStoreRead, resp.StatusCode, string(body))
	}

	var listResp domain.StoreListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrStoreRead, err)
	}
	return &listResp, nil
}

// CreateRecord inserts one entry; the store assigns id and timestamps
func (c *Client) CreateRecord(ctx context.Context, record domain.PriceRecord) (*domain.PriceRecord, error) {
	body := domain.StoreCreateRequest{Data: ToFields(record)}

	resp, err := c.doRequest(ctx, http.MethodPost, c.collectionURL(0), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := readLimitedBody(resp.Body, maxErrorBody)
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrStoreWrite, resp.StatusCode, string(respBody))
	}

	var created domain.StoreEntityResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrStoreWrite, err)
	}

	result := MapEntity(created.Data)
	return &result, nil
}

// DeleteRecord removes one entry by id. A missing id counts as deleted.
func (c *Client) DeleteRecord(ctx context.Context, id int) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, c.collectionURL(id), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreWrite, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.debugLog("delete of missing id %d ignored", id)
		return nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := readLimitedBody(resp.Body, maxErrorBody)
		return fmt.Errorf("%w: delete %d: status %d, body: %s", domain.ErrStoreWrite, id, resp.StatusCode, string(body))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// readLimitedBody reads at most limit bytes from r
func readLimitedBody(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
