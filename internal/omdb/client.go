// Package omdb implements the client for the external OMDB catalog API.
package omdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/karlosatvar19/movies-app/internal/config"
	"github.com/karlosatvar19/movies-app/internal/logger"
)

// SearchItem is one entry of a paginated search response. Field names are
// capitalized on the wire; they are mapped to the internal schema on ingest.
type SearchItem struct {
	Title  string `json:"Title"`
	Year   string `json:"Year"`
	ImdbID string `json:"imdbID"`
	Type   string `json:"Type"`
	Poster string `json:"Poster"`
}

// SearchResult is a single page of search results. TotalResults arrives as
// a string and must be parsed defensively by the caller.
type SearchResult struct {
	Search       []SearchItem `json:"Search"`
	TotalResults string       `json:"totalResults"`
	Response     string       `json:"Response"`
	Error        string       `json:"Error"`
}

// MovieDetail is the full record for a single title.
type MovieDetail struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	Director string `json:"Director"`
	Plot     string `json:"Plot"`
	Poster   string `json:"Poster"`
	ImdbID   string `json:"imdbID"`
	Type     string `json:"Type"`
	Response string `json:"Response"`
	Error    string `json:"Error"`
}

// Recorder receives per-request metrics for upstream calls.
type Recorder interface {
	RecordCatalogRequest(operation string, err error, duration time.Duration)
}

// Client talks to the OMDB HTTP API. It performs no caching and no retries;
// a fresh user-triggered fetch is the retry mechanism.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logger.Logger
	recorder   Recorder
}

// NewClient creates a new OMDB client. recorder may be nil.
func NewClient(cfg config.OmdbConfig, log logger.Logger, recorder Recorder) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:   log,
		recorder: recorder,
	}
}

// Search runs a paginated title search. page is 1-based. A response with
// no matches is not an error; the result simply carries no items.
func (c *Client) Search(ctx context.Context, title, year string, page int) (*SearchResult, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("s", title)
	if year != "" {
		params.Set("y", year)
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("type", "movie")

	var result SearchResult
	if err := c.get(ctx, "search", params, &result); err != nil {
		return nil, fmt.Errorf("search %q page %d: %w", title, page, err)
	}

	return &result, nil
}

// Details fetches the full record for one imdb id. A title the search step
// listed may still be missing here; that surfaces as an error the caller
// treats as a skip.
func (c *Client) Details(ctx context.Context, imdbID string) (*MovieDetail, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("i", imdbID)
	params.Set("plot", "full")

	var detail MovieDetail
	if err := c.get(ctx, "details", params, &detail); err != nil {
		return nil, fmt.Errorf("details %s: %w", imdbID, err)
	}

	if detail.Response == "False" {
		if detail.Error != "" {
			return nil, fmt.Errorf("details %s: %s", imdbID, detail.Error)
		}
		return nil, fmt.Errorf("details %s: movie not found", imdbID)
	}

	return &detail, nil
}

func (c *Client) get(ctx context.Context, operation string, params url.Values, dest any) (err error) {
	reqURL := c.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	if c.recorder != nil {
		defer func() {
			c.recorder.RecordCatalogRequest(operation, err, time.Since(start))
		}()
	}

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.Warn("OMDB request failed",
			logger.Duration("duration", duration),
			logger.Error(err),
		)
		return fmt.Errorf("omdb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("OMDB returned non-OK status",
			logger.Int("status_code", resp.StatusCode),
			logger.Duration("duration", duration),
		)
		return fmt.Errorf("omdb returned status %d", resp.StatusCode)
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(dest); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	return nil
}

// ParseTotalResults converts OMDB's string-typed totalResults to an int,
// falling back to 0 for missing or malformed values.
func ParseTotalResults(raw string) int {
	total, err := strconv.Atoi(raw)
	if err != nil || total < 0 {
		return 0
	}
	return total
}
