package domain

import (
	"context"
	"time"
)

// ScrapeMode selects how much of the page the primary scraper returns.
type ScrapeMode string

const (
	// ScrapeModeMain asks the scraper for the heuristically detected main
	// content region only.
	ScrapeModeMain ScrapeMode = "main"
	// ScrapeModeFull asks for the whole rendered page. Some retailers hide
	// the supplement-facts panel outside the detected main region.
	ScrapeModeFull ScrapeMode = "full"
)

// ScrapeResult is what the primary scraping service returns for a page.
type ScrapeResult struct {
	HTML     string
	Markdown string
}

// PrimaryScraper is the first-choice scraping backend.
type PrimaryScraper interface {
	Scrape(ctx context.Context, url string, mode ScrapeMode) (*ScrapeResult, error)
}

// FallbackScraper is tried only after the primary backend is exhausted.
// It renders JavaScript, which some pages require.
type FallbackScraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// OCRClient recognizes text in a single image, addressed by URL.
type OCRClient interface {
	Recognize(ctx context.Context, imageURL string) (string, error)
}

// ResultCache caches finished extraction records keyed by normalized URL.
// Caching is a concern of the calling layer, not the extraction engine.
type ResultCache interface {
	Get(ctx context.Context, key string) (*ExtractedProduct, error)
	Set(ctx context.Context, key string, product *ExtractedProduct, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
