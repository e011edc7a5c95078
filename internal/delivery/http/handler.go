package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/usecase"
)

// Extractor is the slice of the extraction engine the delivery layer needs.
type Extractor interface {
	Extract(ctx context.Context, url string, opts usecase.ExtractOptions) (*domain.ExtractedProduct, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	extractor Extractor
	cache     domain.ResultCache
	cacheTTL  time.Duration
	log       zerolog.Logger
}

// NewHandler creates a new HTTP handler. cache may be nil to disable result
// caching.
func NewHandler(extractor Extractor, cache domain.ResultCache, cacheTTL time.Duration, log zerolog.Logger) *Handler {
	return &Handler{
		extractor: extractor,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log.With().Str("component", "http").Logger(),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "labelscan-backend",
		"version": "1.0.0",
	})
}

type extractRequest struct {
	URL      string `json:"url" binding:"required"`
	ForceOCR bool   `json:"forceOcr"`
}

// Extract handles product-page extraction requests. An "empty parse" is a
// legitimate 200 response whose envelope carries only metadata; the client
// translates it into an actionable message (try another URL or capture the
// label with the camera).
func (h *Handler) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	key := cacheKey(req.URL)
	if h.cache != nil && !req.ForceOCR {
		if cached, err := h.cache.Get(c.Request.Context(), key); err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	product, err := h.extractor.Extract(c.Request.Context(), req.URL, usecase.ExtractOptions{
		ForceOCR: req.ForceOCR,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product URL"})
		case errors.Is(err, domain.ErrOCRNotConfigured):
			c.JSON(http.StatusBadRequest, gin.H{"error": "OCR is not available on this deployment"})
		case errors.Is(err, domain.ErrPageUnreachable):
			c.JSON(http.StatusBadGateway, gin.H{
				"error": "page could not be scraped by any backend",
				"code":  "page_unreachable",
			})
		default:
			h.log.Error().Err(err).Str("url", req.URL).Msg("extraction failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
		}
		return
	}

	// Only completed, usable extractions are worth caching.
	if h.cache != nil && !req.ForceOCR && !product.Empty() {
		if err := h.cache.Set(c.Request.Context(), key, product, h.cacheTTL); err != nil {
			h.log.Warn().Err(err).Msg("failed to cache extraction result")
		}
	}

	c.JSON(http.StatusOK, product)
}

// cacheKey normalizes a product URL for cache lookup: scheme and fragment
// are irrelevant to page identity, host casing is not.
func cacheKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "extract:" + raw
	}
	u.Fragment = ""
	host := strings.ToLower(u.Host)
	return "extract:" + host + u.RequestURI()
}
