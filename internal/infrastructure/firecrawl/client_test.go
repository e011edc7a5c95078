package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/domain"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestScrape_Success(t *testing.T) {
	var gotPayload scrapeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/scrape", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]string{
				"html":     "<html><body>page</body></html>",
				"markdown": "page",
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second, testLogger())
	res, err := client.Scrape(context.Background(), "https://shop.example.com/p/1", domain.ScrapeModeMain)

	require.NoError(t, err)
	assert.Equal(t, "<html><body>page</body></html>", res.HTML)
	assert.Equal(t, "page", res.Markdown)

	assert.Equal(t, "https://shop.example.com/p/1", gotPayload.URL)
	assert.Equal(t, []string{"html", "markdown"}, gotPayload.Formats)
	assert.True(t, gotPayload.OnlyMainContent)
	assert.Equal(t, renderWaitMs, gotPayload.WaitFor)
}

func TestScrape_FullModeRequestsWholePage(t *testing.T) {
	var gotPayload scrapeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"html": "<html></html>", "markdown": ""},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second, testLogger())
	_, err := client.Scrape(context.Background(), "https://shop.example.com/p/1", domain.ScrapeModeFull)

	require.NoError(t, err)
	assert.False(t, gotPayload.OnlyMainContent)
}

func TestScrape_RetriesOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]string{"html": "<html>ok</html>", "markdown": "ok"},
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second, testLogger())
	res, err := client.Scrape(context.Background(), "https://shop.example.com/p/1", domain.ScrapeModeMain)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "ok", res.Markdown)
}

func TestScrape_ExhaustedAttemptsWrapScrapeFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second, testLogger())
	res, err := client.Scrape(context.Background(), "https://shop.example.com/p/1", domain.ScrapeModeMain)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrScrapeFailed)
}

func TestScrape_ServiceLevelFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "target blocked the request",
		})
	}))
	defer server.Close()

	client := NewClient("test-key", server.URL, 5*time.Second, testLogger())
	_, err := client.Scrape(context.Background(), "https://shop.example.com/p/1", domain.ScrapeModeMain)

	assert.ErrorIs(t, err, domain.ErrScrapeFailed)
	assert.Contains(t, err.Error(), "target blocked the request")
}
