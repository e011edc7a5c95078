// Package ocrspace implements the OCR collaborator: one request per image
// URL, no batching. The client owns the only retry policy applied to OCR;
// the arbiter never loops around it.
package ocrspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/retry"
)

const (
	maxAttempts  = 2
	retryBackoff = 400 * time.Millisecond
)

// Client handles communication with the OCR service.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	log         zerolog.Logger
}

// NewClient creates an OCR client.
func NewClient(apiKey, baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: rate.NewLimiter(rate.Limit(2), 4),
		log:         log.With().Str("component", "ocrspace").Logger(),
	}
}

type ocrResponse struct {
	ParsedResults []struct {
		ParsedText   string `json:"ParsedText"`
		ErrorMessage string `json:"ErrorMessage,omitempty"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool        `json:"IsErroredOnProcessing"`
	ErrorMessage          interface{} `json:"ErrorMessage,omitempty"`
}

// Recognize runs OCR over one image by URL and returns the recognized text.
func (c *Client) Recognize(ctx context.Context, imageURL string) (string, error) {
	params := url.Values{}
	params.Add("apikey", c.apiKey)
	params.Add("url", imageURL)
	params.Add("scale", "true")
	params.Add("OCREngine", "2")

	reqURL := fmt.Sprintf("%s?%s", c.baseURL, params.Encode())

	var text string
	err := retry.Do(ctx, maxAttempts, retryBackoff, func() error {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		parsed, err := c.recognizeOnce(ctx, reqURL)
		if err != nil {
			c.log.Warn().Err(err).Str("image", imageURL).Msg("OCR attempt failed")
			return err
		}
		text = parsed
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrOCRFailed, err)
	}
	return text, nil
}

func (c *Client) recognizeOnce(ctx context.Context, reqURL string) (string, error) {
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

	var parsed ocrResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("service error: %v", parsed.ErrorMessage)
	}

	var parts []string
	for _, r := range parsed.ParsedResults {
		if r.ErrorMessage != "" {
			c.log.Debug().Str("error", r.ErrorMessage).Msg("parsed result carried an error")
			continue
		}
		if t := strings.TrimSpace(r.ParsedText); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no parsed text in response")
	}

	return strings.Join(parts, "\n"), nil
}
