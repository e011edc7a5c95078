package usecase

import (
	"context"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/labelscan/backend/internal/domain"
)

// minMarkupWords is the word count below which scraped markup is considered
// near-empty and a more permissive scrape is attempted.
const minMarkupWords = 50

// ExtractionConfig holds the engine's tunable thresholds. The numbers are
// empirically tuned; callers inject them rather than the engine hardcoding
// them.
type ExtractionConfig struct {
	MinFactsTokens int
	MinIngredients int
	MaxImages      int
	MaxOCRImages   int
}

// ExtractOptions modifies a single extraction request.
type ExtractOptions struct {
	// ForceOCR bypasses the OCR-need heuristic and always runs OCR when a
	// credential is configured.
	ForceOCR bool
}

// ExtractionService turns an arbitrary retailer product page into a
// structured supplement-facts record, arbitrating between two scraping
// backends, pattern extraction, site overrides, and OCR. Stateless per
// request; safe for concurrent use.
type ExtractionService struct {
	primary   domain.PrimaryScraper
	fallback  domain.FallbackScraper
	ocr       domain.OCRClient
	overrides *OverrideRegistry
	cfg       ExtractionConfig
	log       zerolog.Logger
}

// NewExtractionService wires the engine. fallback and ocr may be nil, which
// disables the corresponding stage.
func NewExtractionService(
	primary domain.PrimaryScraper,
	fallback domain.FallbackScraper,
	ocr domain.OCRClient,
	overrides *OverrideRegistry,
	cfg ExtractionConfig,
	log zerolog.Logger,
) *ExtractionService {
	if overrides == nil {
		overrides = NewOverrideRegistry()
	}
	return &ExtractionService{
		primary:   primary,
		fallback:  fallback,
		ocr:       ocr,
		overrides: overrides,
		cfg:       cfg,
		log:       log,
	}
}

// pageMarkup is what the scrape stages produced.
type pageMarkup struct {
	HTML       string
	Markdown   string
	Source     string
	SecondPass bool
	Chain      []string
}

// Extract is the engine's sole entry point. It returns ErrInvalidRequest for
// a malformed URL, ErrPageUnreachable when both scraping backends are
// exhausted without markup, and otherwise a complete record whose Empty
// method signals the legitimate "nothing usable found" terminal outcome.
func (s *ExtractionService) Extract(ctx context.Context, rawURL string, opts ExtractOptions) (*domain.ExtractedProduct, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, domain.ErrInvalidRequest
	}
	if opts.ForceOCR && s.ocr == nil {
		return nil, domain.ErrOCRNotConfigured
	}

	page, err := s.acquireMarkup(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	product := &domain.ExtractedProduct{
		Meta: domain.ExtractionMetadata{
			ScrapingSource:    page.Source,
			SecondPass:        page.SecondPass,
			TitleSource:       domain.SourceNone,
			FactsSource:       domain.SourceNone,
			FactsKind:         domain.FactsKindNone,
			IngredientsSource: domain.SourceNone,
			OCRPicked:         -1,
		},
	}
	chain := page.Chain

	fields := s.extractText(page)
	applyFields(product, fields)

	rule := s.overrides.Lookup(parsed.Hostname())
	if rule != nil {
		if applied := s.applyOverride(product, rule, page.HTML); applied {
			chain = append(chain, "override:"+rule.Name)
		}
	}

	if s.shouldOCR(product, rule != nil, opts) {
		chain = append(chain, "ocr")
		s.mergeOCR(ctx, product, page.HTML, rawURL)
	}

	s.finalize(product, chain)

	if product.Empty() {
		s.log.Info().Str("url", rawURL).Str("chain", product.Meta.Chain).
			Msg("extraction produced nothing usable")
	}
	return product, nil
}

// acquireMarkup runs the scrape stages: primary main-content scrape, a
// second full-page pass when that comes back near-empty, then the
// JavaScript-rendering fallback backend. Exhausting all of it without any
// markup is terminal.
func (s *ExtractionService) acquireMarkup(ctx context.Context, rawURL string) (*pageMarkup, error) {
	page := &pageMarkup{Source: domain.ScrapingSourceNone}

	res, err := s.primary.Scrape(ctx, rawURL, domain.ScrapeModeMain)
	page.Chain = append(page.Chain, "primary:main")
	if err != nil {
		s.log.Warn().Err(err).Str("url", rawURL).Msg("primary main-content scrape failed")
	} else if res != nil {
		// keep even thin markup; later stages may fail and this can be
		// all the page ever yields
		page.HTML, page.Markdown = res.HTML, res.Markdown
		page.Source = domain.ScrapingSourcePrimary
		if !nearEmpty(res) {
			return page, nil
		}
	}

	// Second pass: some pages hide the facts panel outside the detected
	// main-content region.
	res, err = s.primary.Scrape(ctx, rawURL, domain.ScrapeModeFull)
	page.Chain = append(page.Chain, "primary:full")
	page.SecondPass = true
	if err != nil {
		s.log.Warn().Err(err).Str("url", rawURL).Msg("primary full-page scrape failed")
	} else if res != nil {
		if !nearEmpty(res) {
			page.HTML, page.Markdown = res.HTML, res.Markdown
			page.Source = domain.ScrapingSourcePrimary
			return page, nil
		}
		// both passes were thin; keep whichever carried more
		if len(res.HTML)+len(res.Markdown) > len(page.HTML)+len(page.Markdown) {
			page.HTML, page.Markdown = res.HTML, res.Markdown
			page.Source = domain.ScrapingSourcePrimary
		}
	}

	if s.fallback != nil {
		html, err := s.fallback.Scrape(ctx, rawURL)
		page.Chain = append(page.Chain, "fallback")
		if err != nil {
			s.log.Warn().Err(err).Str("url", rawURL).Msg("fallback scrape failed")
		} else if strings.TrimSpace(html) != "" {
			page.HTML, page.Markdown = html, ""
			page.Source = domain.ScrapingSourceFallback
			return page, nil
		}
	}

	if strings.TrimSpace(page.HTML) == "" && strings.TrimSpace(page.Markdown) == "" {
		return nil, domain.ErrPageUnreachable
	}
	return page, nil
}

func nearEmpty(res *domain.ScrapeResult) bool {
	if res == nil {
		return true
	}
	return CountTokens(res.Markdown)+CountTokens(stripTags(res.HTML)) < minMarkupWords
}

// extractText runs the pattern cascades over both representations of the
// page and merges them. HTML carries titles and embedded metadata; markdown
// carries clean line-oriented text the ingredient and facts patterns match
// far better.
func (s *ExtractionService) extractText(page *pageMarkup) Fields {
	md := page.Markdown
	if md == "" && page.HTML != "" {
		converted, err := htmltomarkdown.ConvertString(page.HTML)
		if err != nil {
			s.log.Debug().Err(err).Msg("markdown conversion failed, matching raw HTML only")
		} else {
			md = converted
		}
	}

	htmlFields := ExtractFields(page.HTML)
	mdFields := ExtractFields(md)
	return mergeFields(mdFields, htmlFields)
}

// mergeFields combines two pattern passes, preferring a's scalar values and
// whichever side found the richer ingredients/facts.
func mergeFields(a, b Fields) Fields {
	out := a
	if out.Title == "" {
		out.Title = b.Title
	}
	if out.Brand == "" {
		out.Brand = b.Brand
	}
	if out.PriceUSD == 0 {
		out.PriceUSD = b.PriceUSD
	}
	if out.ServingSize == "" {
		out.ServingSize = b.ServingSize
	}
	if out.ServingsPerContainer == "" {
		out.ServingsPerContainer = b.ServingsPerContainer
	}
	if len(b.Ingredients) > len(out.Ingredients) {
		out.Ingredients = b.Ingredients
		out.IngredientsRaw = b.IngredientsRaw
	}
	if len(b.FactsRaw) > len(out.FactsRaw) {
		out.FactsRaw = b.FactsRaw
		out.FactsKind = b.FactsKind
	}
	if len(b.Warnings) > len(out.Warnings) {
		out.Warnings = b.Warnings
	}
	return out
}

// applyFields moves pattern-extraction output onto the working record with
// html_pattern provenance.
func applyFields(p *domain.ExtractedProduct, f Fields) {
	if f.Title != "" {
		p.Title = f.Title
		p.Meta.TitleSource = domain.SourceHTMLPattern
	}
	p.Brand = f.Brand
	p.PriceUSD = f.PriceUSD
	p.ServingSize = f.ServingSize
	p.ServingsPerContainer = f.ServingsPerContainer
	if len(f.Ingredients) > 0 {
		p.Ingredients = f.Ingredients
		p.IngredientsRaw = f.IngredientsRaw
		p.Meta.IngredientsSource = domain.SourceHTMLPattern
	}
	if f.FactsRaw != "" {
		p.SupplementFacts = &domain.SupplementFacts{Raw: f.FactsRaw}
		p.Meta.FactsSource = domain.SourceHTMLPattern
		p.Meta.FactsKind = f.FactsKind
	}
	p.Warnings = f.Warnings
}

// applyOverride runs a site rule and merges whatever it recovered, keeping
// generic results that are already richer. Returns whether the rule
// contributed anything.
func (s *ExtractionService) applyOverride(p *domain.ExtractedProduct, rule *overrideRule, markup string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		s.log.Warn().Err(err).Str("rule", rule.Name).Msg("override markup parse failed")
		return false
	}

	res := rule.Apply(doc, markup)
	if res == nil {
		return false
	}

	source := domain.SourceSiteOverride
	if res.KnownFallback {
		source = domain.SourceKnownFallback
	}

	applied := false
	if res.Title != "" && p.Title == "" {
		p.Title = res.Title
		p.Meta.TitleSource = source
		applied = true
	}
	if res.Brand != "" && p.Brand == "" {
		p.Brand = res.Brand
		applied = true
	}
	if res.PriceUSD > 0 && p.PriceUSD == 0 {
		p.PriceUSD = res.PriceUSD
		applied = true
	}
	if len(res.Ingredients) > len(p.Ingredients) {
		p.Ingredients = res.Ingredients
		p.IngredientsRaw = res.IngredientsRaw
		p.Meta.IngredientsSource = source
		applied = true
	}
	if len(res.FactsRaw) > factsLen(p) {
		p.SupplementFacts = &domain.SupplementFacts{Raw: res.FactsRaw}
		p.Meta.FactsSource = source
		p.Meta.FactsKind = res.FactsKind
		applied = true
	}
	return applied
}

// shouldOCR is the explicit, inspectable OCR-worthiness decision. OCR is
// costly and slow, so it runs only when the page yielded too little, the
// site is known-problematic, or the caller forces it.
func (s *ExtractionService) shouldOCR(p *domain.ExtractedProduct, overrideSite bool, opts ExtractOptions) bool {
	if s.ocr == nil {
		return false
	}
	if opts.ForceOCR {
		return true
	}
	factsTokens := CountTokens(factsRaw(p))
	if factsTokens < s.cfg.MinFactsTokens {
		return true
	}
	if len(p.Ingredients) < s.cfg.MinIngredients {
		return true
	}
	return overrideSite
}

// mergeOCR runs the OCR adapter over ranked candidate images and merges its
// output, preferring OCR only where it found strictly more content than the
// page text did.
func (s *ExtractionService) mergeOCR(ctx context.Context, p *domain.ExtractedProduct, markup, pageURL string) {
	p.Meta.OCRTried = true

	images := LocateCandidateImages(markup, pageURL, s.cfg.MaxImages)
	if len(images) == 0 {
		return
	}

	outcome := s.runOCR(ctx, images)
	p.Meta.OCRImagesConsidered = outcome.ImagesConsidered
	p.Meta.OCRImagesUsed = outcome.ImagesUsed
	p.Meta.OCRDebug = outcome.Debug

	factsKept := len(outcome.FactsRaw) > factsLen(p)
	if factsKept {
		p.SupplementFacts = &domain.SupplementFacts{Raw: outcome.FactsRaw}
		p.Meta.FactsSource = domain.SourceOCR
		p.Meta.FactsKind = outcome.FactsKind
	}

	ingredientsKept := len(outcome.Ingredients) > len(p.Ingredients)
	if ingredientsKept {
		p.Ingredients = outcome.Ingredients
		p.IngredientsRaw = outcome.IngredientsRaw
		p.Meta.IngredientsSource = domain.SourceOCR
	}

	p.Meta.OCRPicked = outcome.pickedImage(factsKept, ingredientsKept)
}

// finalize recomputes the facts token count from the text actually being
// returned and freezes the strategy chain. The count must never be stale
// relative to the final block.
func (s *ExtractionService) finalize(p *domain.ExtractedProduct, chain []string) {
	p.Meta.Chain = strings.Join(chain, ">")
	p.Meta.FactsTokens = CountTokens(factsRaw(p))
	if len(p.Ingredients) == 0 {
		p.Meta.IngredientsSource = domain.SourceNone
	}
}

func factsRaw(p *domain.ExtractedProduct) string {
	if p.SupplementFacts == nil {
		return ""
	}
	return p.SupplementFacts.Raw
}

func factsLen(p *domain.ExtractedProduct) int {
	return len(factsRaw(p))
}
