package domain

// Source identifies which extraction strategy produced a field, so callers
// can make trust decisions (e.g. discount known_fallback data).
type Source string

const (
	SourceNone          Source = "none"
	SourceHTMLPattern   Source = "html_pattern"
	SourceOCR           Source = "ocr"
	SourceSiteOverride  Source = "site_override"
	SourceKnownFallback Source = "known_fallback"
)

// FactsKind distinguishes which label format the facts block came from.
type FactsKind string

const (
	FactsKindNone       FactsKind = "none"
	FactsKindNutrition  FactsKind = "nutrition_facts"
	FactsKindSupplement FactsKind = "supplement_facts"
)

// SupplementFacts holds the raw nutrition-label text. Source formatting is
// too variable for reliable field-level parsing, so no stricter schema is
// imposed.
type SupplementFacts struct {
	Raw string `json:"raw"`
}

// ExtractedProduct is the engine's output record. It is a value: once
// returned it is never mutated, and downstream consumers (scoring,
// alternatives ranking) operate on copies only. Absent fields are omitted
// from JSON rather than null.
type ExtractedProduct struct {
	Title                string             `json:"title,omitempty"`
	Brand                string             `json:"brand,omitempty"`
	PriceUSD             float64            `json:"priceUsd,omitempty"`
	ServingSize          string             `json:"servingSize,omitempty"`
	ServingsPerContainer string             `json:"servingsPerContainer,omitempty"`
	Ingredients          []string           `json:"ingredients,omitempty"`
	IngredientsRaw       string             `json:"ingredients_raw,omitempty"`
	SupplementFacts      *SupplementFacts   `json:"supplementFacts,omitempty"`
	Warnings             []string           `json:"warnings,omitempty"`
	Meta                 ExtractionMetadata `json:"_meta"`
}

// ExtractionMetadata records which strategy path produced the record. It is
// built up incrementally during extraction and frozen once the record is
// returned.
type ExtractionMetadata struct {
	// Chain lists the scrape/parse stages actually taken, e.g.
	// "primary:main>primary:full>ocr".
	Chain          string `json:"chain"`
	ScrapingSource string `json:"scrapingSource"`
	SecondPass     bool   `json:"secondPass"`

	FactsTokens int       `json:"factsTokens"`
	FactsSource Source    `json:"factsSource"`
	FactsKind   FactsKind `json:"facts_kind"`

	TitleSource       Source `json:"titleSource"`
	IngredientsSource Source `json:"ingredients_source"`

	OCRTried            bool `json:"ocrTried"`
	OCRImagesConsidered int  `json:"ocrImagesConsidered"`
	OCRImagesUsed       int  `json:"ocrImagesUsed"`
	// OCRPicked is the index of the candidate image whose data won the
	// merge, or -1 when no OCR data was kept.
	OCRPicked int      `json:"ocrPicked"`
	OCRDebug  []string `json:"ocrDebug,omitempty"`
}

// Scraping source values recorded in ExtractionMetadata.ScrapingSource.
const (
	ScrapingSourcePrimary  = "primary"
	ScrapingSourceFallback = "fallback"
	ScrapingSourceNone     = "none"
)

// Empty reports whether the extraction produced nothing usable: no title,
// no ingredients, and no facts block. This is a legitimate terminal outcome
// the caller must handle, not an error.
func (p *ExtractedProduct) Empty() bool {
	if p == nil {
		return true
	}
	return p.Title == "" && len(p.Ingredients) == 0 &&
		(p.SupplementFacts == nil || p.SupplementFacts.Raw == "")
}
