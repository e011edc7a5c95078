// Package firecrawl implements the primary scraping backend. It asks the
// hosted service for both rendered HTML and markdown, with a render wait for
// dynamic pages.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/retry"
)

const (
	maxAttempts  = 3
	retryBackoff = 500 * time.Millisecond
	// renderWaitMs gives client-side rendered pages time to paint before
	// the scrape snapshot is taken.
	renderWaitMs = 2000
)

// Client handles communication with the scraping service.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	log         zerolog.Logger
}

// NewClient creates a scraping client with a bounded per-request timeout.
func NewClient(apiKey, baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 5),
		log:         log.With().Str("component", "firecrawl").Logger(),
	}
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor"`
}

type scrapeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		HTML     string `json:"html"`
		Markdown string `json:"markdown"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Scrape fetches the page in the requested mode. Transient failures are
// retried with backoff; the final error wraps domain.ErrScrapeFailed so the
// arbiter can treat it uniformly.
func (c *Client) Scrape(ctx context.Context, pageURL string, mode domain.ScrapeMode) (*domain.ScrapeResult, error) {
	payload := scrapeRequest{
		URL:             pageURL,
		Formats:         []string{"html", "markdown"},
		OnlyMainContent: mode == domain.ScrapeModeMain,
		WaitFor:         renderWaitMs,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode scrape request: %w", err)
	}

	var result *domain.ScrapeResult
	err = retry.Do(ctx, maxAttempts, retryBackoff, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		res, err := c.scrapeOnce(ctx, body)
		if err != nil {
			c.log.Warn().Err(err).Str("url", pageURL).Str("mode", string(mode)).Msg("scrape attempt failed")
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScrapeFailed, err)
	}
	return result, nil
}

func (c *Client) scrapeOnce(ctx context.Context, body []byte) (*domain.ScrapeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(respBody, 200))
	}

	var parsed scrapeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("service error: %s", parsed.Error)
	}

	return &domain.ScrapeResult{
		HTML:     parsed.Data.HTML,
		Markdown: parsed.Data.Markdown,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
