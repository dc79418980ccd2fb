package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when the search provider cannot be reached or
// answers non-2xx. Callers treat this as non-fatal and substitute an empty
// result set.
var ErrUnavailable = errors.New("search unavailable")

// providerMaxResults is the Serper per-request result cap.
const providerMaxResults = 10

// Kind classifies where a result came from in the provider response.
type Kind string

const (
	KindNews           Kind = "news"
	KindOrganic        Kind = "organic"
	KindKnowledgeGraph Kind = "knowledge_graph"
)

// Result is one ranked search result item.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
	Source  string `json:"source,omitempty"`
	Date    string `json:"date,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}

// Store caches raw search responses. Implementations must be safe for
// concurrent use; a miss is (nil, false).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// Client wraps the Serper search API (POST <base>/search, X-API-KEY header).
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      Store // optional
}

// NewClient creates a new Serper client. cache may be nil.
func NewClient(baseURL, apiKey string, cache Store) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cache:      cache,
	}
}

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	TBM string `json:"tbm,omitempty"`
}

type serperItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Date    string `json:"date"`
}

type serperResponse struct {
	News    []serperItem `json:"news"`
	Organic []serperItem `json:"organic"`
}

// SearchNews searches news results for query. Falls back to organic results
// when the provider returns no news array. limit is clamped to 1..10.
// A malformed provider payload yields an empty slice, not an error.
func (c *Client) SearchNews(ctx context.Context, query string, limit int) ([]Result, error) {
	return c.search(ctx, query, limit, true)
}

// SearchOrganic searches organic (web) results for query.
func (c *Client) SearchOrganic(ctx context.Context, query string, limit int) ([]Result, error) {
	return c.search(ctx, query, limit, false)
}

func (c *Client) search(ctx context.Context, query string, limit int, news bool) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrUnavailable)
	}
	if limit < 1 {
		limit = 1
	}
	if limit > providerMaxResults {
		limit = providerMaxResults
	}

	req := serperRequest{Q: query, Num: limit}
	if news {
		req.TBM = "nws"
	}

	cacheKey := fmt.Sprintf("serper:%s:%d:%t", query, limit, news)
	if c.cache != nil {
		if raw, ok := c.cache.Get(ctx, cacheKey); ok {
			if results, ok := c.decode(raw, news); ok {
				log.Debug().Str("query", query).Msg("Search cache hit")
				return results, nil
			}
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("X-API-KEY", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("query", query).Msg("Serper returned non-2xx")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	results, ok := c.decode(raw, news)
	if !ok {
		// Malformed upstream payload is swallowed: empty results, no error.
		log.Warn().Str("query", query).Msg("Failed to parse Serper response")
		return []Result{}, nil
	}

	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, raw)
	}
	return results, nil
}

// decode parses a Serper payload into results. For news searches the organic
// array is the fallback when no news results formed.
func (c *Client) decode(raw []byte, news bool) ([]Result, bool) {
	var payload serperResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, false
	}

	var items []serperItem
	kind := KindOrganic
	if news && len(payload.News) > 0 {
		items = payload.News
		kind = KindNews
	} else {
		items = payload.Organic
	}

	results := make([]Result, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		results = append(results, Result{
			Title:   it.Title,
			Link:    it.Link,
			Snippet: it.Snippet,
			Source:  it.Source,
			Date:    it.Date,
			Kind:    kind,
		})
	}
	return results, true
}
