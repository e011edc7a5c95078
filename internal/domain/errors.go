package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrPageUnreachable is returned when both scraping backends are
	// exhausted without producing any markup
	ErrPageUnreachable = errors.New("page unreachable: all scraping backends failed")

	// ErrScrapeFailed is returned when a single scraping backend fails
	ErrScrapeFailed = errors.New("scrape request failed")

	// ErrOCRFailed is returned when an OCR request fails
	ErrOCRFailed = errors.New("OCR request failed")

	// ErrOCRNotConfigured is returned when OCR is requested but no OCR
	// credential was configured
	ErrOCRNotConfigured = errors.New("OCR service not configured")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)
