package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/labelscan/backend/config"
	"github.com/labelscan/backend/internal/delivery/http"
	"github.com/labelscan/backend/internal/domain"
	"github.com/labelscan/backend/internal/infrastructure/cache"
	"github.com/labelscan/backend/internal/infrastructure/firecrawl"
	"github.com/labelscan/backend/internal/infrastructure/ocrspace"
	"github.com/labelscan/backend/internal/infrastructure/scrapingbee"
	"github.com/labelscan/backend/internal/usecase"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if cfg.Server.Environment == "development" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("starting LabelScan backend")

	primary := firecrawl.NewClient(cfg.Scraper.PrimaryAPIKey, cfg.Scraper.PrimaryBaseURL, cfg.Scraper.Timeout, log.Logger)

	var fallback domain.FallbackScraper
	if cfg.Scraper.FallbackAPIKey != "" {
		fallback = scrapingbee.NewClient(cfg.Scraper.FallbackAPIKey, cfg.Scraper.FallbackBaseURL, cfg.Scraper.Timeout, log.Logger)
	} else {
		log.Warn().Msg("no fallback scraper key configured; JavaScript-only pages will fail")
	}

	var ocr domain.OCRClient
	if cfg.OCR.APIKey != "" {
		ocr = ocrspace.NewClient(cfg.OCR.APIKey, cfg.OCR.BaseURL, cfg.OCR.Timeout, log.Logger)
	} else {
		log.Warn().Msg("no OCR key configured; label-image recovery disabled")
	}

	extractor := usecase.NewExtractionService(
		primary,
		fallback,
		ocr,
		usecase.NewOverrideRegistry(),
		usecase.ExtractionConfig{
			MinFactsTokens: cfg.Extraction.MinFactsTokens,
			MinIngredients: cfg.Extraction.MinIngredients,
			MaxImages:      cfg.Extraction.MaxImages,
			MaxOCRImages:   cfg.Extraction.MaxOCRImages,
		},
		log.Logger,
	)

	log.Info().
		Int("min_facts_tokens", cfg.Extraction.MinFactsTokens).
		Int("min_ingredients", cfg.Extraction.MinIngredients).
		Int("max_ocr_images", cfg.Extraction.MaxOCRImages).
		Bool("ocr_enabled", ocr != nil).
		Msg("extraction engine configured")

	resultCache := cache.NewMemoryCache()

	handler := http.NewHandler(extractor, resultCache, cfg.Cache.TTL, log.Logger)
	router := http.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("server listening")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
