// Package scrapingbee implements the fallback scraping backend, used only
// after the primary backend is exhausted. It always renders JavaScript,
// since the pages that defeat the primary scraper usually require it.
package scrapingbee

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/retry"
)

const (
	maxAttempts  = 2
	retryBackoff = 500 * time.Millisecond
)

// Client handles communication with the fallback scraping service.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	log         zerolog.Logger
}

// NewClient creates a fallback scraping client.
func NewClient(apiKey, baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(1), 3),
		log:         log.With().Str("component", "scrapingbee").Logger(),
	}
}

// Scrape fetches the fully rendered HTML for the page.
func (c *Client) Scrape(ctx context.Context, pageURL string) (string, error) {
	params := url.Values{}
	params.Add("api_key", c.apiKey)
	params.Add("url", pageURL)
	params.Add("render_js", "true")

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var html string
	err := retry.Do(ctx, maxAttempts, retryBackoff, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		body, err := c.fetchOnce(ctx, reqURL)
		if err != nil {
			c.log.Warn().Err(err).Str("url", pageURL).Msg("fallback scrape attempt failed")
			return err
		}
		html = body
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrScrapeFailed, err)
	}
	return html, nil
}

func (c *Client) fetchOnce(ctx context.Context, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
	}

	return string(body), nil
}
