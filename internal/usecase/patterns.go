package usecase

import (
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/labelscan/backend/internal/domain"
)

// Fields is the partial result of running the pattern cascades over one text
// source (scraped markup, markdown, or OCR output). Absent fields stay zero;
// absence is a normal outcome, never an error.
type Fields struct {
	Title                string
	Brand                string
	PriceUSD             float64
	ServingSize          string
	ServingsPerContainer string
	Ingredients          []string
	IngredientsRaw       string
	FactsRaw             string
	FactsKind            domain.FactsKind
	Warnings             []string
}

// patternRule pairs a matcher with the minimum capture length it must yield
// to be accepted. Rules are evaluated in priority order; the first rule whose
// best match clears its minimum wins for that field.
type patternRule struct {
	re     *regexp.Regexp
	minLen int
}

// Ingredient length bounds after trimming; entries outside are extraction
// noise, not ingredients.
const (
	minIngredientLen = 3
	maxIngredientLen = 200
)

// minFactsBlockLen is the shortest facts window worth keeping.
const minFactsBlockLen = 50

// maxFactsWindow bounds how much text past a facts anchor is captured.
const maxFactsWindow = 1500

// factsCutMin keeps at least this much past the anchor before a paragraph
// break is allowed to end the window.
const factsCutMin = 40

var (
	tagRegex            = regexp.MustCompile(`<[^>]*>`)
	multipleSpacesRegex = regexp.MustCompile(`\s+`)
	parentheticalRegex  = regexp.MustCompile(`\([^()]*\)`)
	bracketedRegex      = regexp.MustCompile(`\[[^\[\]]*\]`)
	leadingAndRegex     = regexp.MustCompile(`(?i)^(?:and|or)\s+`)
	numericOnlyRegex    = regexp.MustCompile(`^[\d.,%\s]+$`)
)

// titleRules, highest specificity first. HTML <title> beats og:title beats
// first heading.
var titleRules = []patternRule{
	{regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`), 3},
	{regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]+content=["']([^"']+)["']`), 3},
	{regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']+)["'][^>]+property=["']og:title["']`), 3},
	{regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`), 3},
	{regexp.MustCompile(`(?m)^#\s+(.+)$`), 3},
}

var brandRules = []patternRule{
	{regexp.MustCompile(`(?i)"brand"\s*:\s*\{[^{}]*"name"\s*:\s*"([^"]+)"`), 2},
	{regexp.MustCompile(`(?i)"brand"\s*:\s*"([^"]+)"`), 2},
	{regexp.MustCompile(`(?i)\bbrand\s*:\s*([^\n<|,]{2,60})`), 2},
	{regexp.MustCompile(`(?i)\bvisit the ([A-Z][A-Za-z0-9&'. -]{2,40}) store`), 3},
	{regexp.MustCompile(`\bby ([A-Z][A-Za-z0-9&'. -]{2,40})\b`), 3},
}

var priceRules = []patternRule{
	{regexp.MustCompile(`(?i)"price"\s*:\s*"?(\d+(?:\.\d{1,2})?)"?`), 1},
	{regexp.MustCompile(`\$\s*(\d{1,4}(?:\.\d{2})?)\b`), 1},
}

var servingSizeRules = []patternRule{
	{regexp.MustCompile(`(?i)\bserving size\s*:?\s*([^\n<]{2,80})`), 2},
}

var servingsPerContainerRules = []patternRule{
	{regexp.MustCompile(`(?i)\bservings? per container\s*:?\s*([A-Za-z0-9. ]{1,40})`), 1},
}

// ingredientRules encode a deliberate preference order: an explicit
// "ingredients:" label is far more trustworthy than an allergen statement,
// which is the most false-positive-prone family.
var ingredientRules = []patternRule{
	// "Ingredients:" with colon, same line
	{regexp.MustCompile(`(?i)\bingredients\s*:\s*([^\n]{10,800})`), 10},
	// multi-line block under an "Ingredients" heading; the per-line bound
	// keeps the counted repetition inside RE2's expansion limit
	{regexp.MustCompile(`(?i)\bingredients\s*:?\s*\n((?:[^\n]{3,120}\n?){1,8})`), 15},
	// ingredients listed shortly after a facts panel
	{regexp.MustCompile(`(?is)(?:nutrition|supplement)\s*facts.{0,1000}?\bingredients\s*:?\s*([^\n]{10,800})`), 10},
	// other/active/inactive ingredient statements
	{regexp.MustCompile(`(?i)\b(?:other|active|inactive|medicinal|non-medicinal)\s+ingredients\s*:\s*([^\n]{5,800})`), 5},
	// proprietary-blend phrasing
	{regexp.MustCompile(`(?i)\b(?:proprietary |herbal |enzyme )?blend[^:\n]{0,40}:\s*([^\n]{10,800})`), 10},
	// contains/allergens, lowest specificity
	{regexp.MustCompile(`(?i)\b(?:contains|allergens?)\s*:\s*([^\n]{5,400})`), 5},
}

// factsAnchor marks the start of a nutrition-label-shaped block and records
// which label format the anchor implies.
type factsAnchor struct {
	re   *regexp.Regexp
	kind domain.FactsKind
}

var factsAnchors = []factsAnchor{
	{regexp.MustCompile(`(?i)supplement\s*facts`), domain.FactsKindSupplement},
	{regexp.MustCompile(`(?i)nutrition\s*facts`), domain.FactsKindNutrition},
	{regexp.MustCompile(`(?i)\bserving size\b`), domain.FactsKindNutrition},
	{regexp.MustCompile(`(?i)\b\d+\s*g\s+protein\b`), domain.FactsKindNutrition},
	{regexp.MustCompile(`(?i)\bcalories\b`), domain.FactsKindNutrition},
}

var warningRules = []patternRule{
	{regexp.MustCompile(`(?i)\bwarnings?\s*:?\s*([^\n]{10,300})`), 10},
	{regexp.MustCompile(`(?i)\bcautions?\s*:?\s*([^\n]{10,300})`), 10},
	{regexp.MustCompile(`(?i)(keep out of (?:the )?reach of children[^\n.]{0,200}\.?)`), 10},
	{regexp.MustCompile(`(?i)(consult (?:your|a) (?:physician|doctor|healthcare [a-z]+)[^\n.]{0,200}\.?)`), 10},
	{regexp.MustCompile(`(?i)(do not (?:use|exceed)[^\n.]{0,200}\.?)`), 10},
	{regexp.MustCompile(`(?i)(not intended to diagnose[^\n.]{0,250}\.?)`), 10},
}

// ExtractFields runs every field's pattern cascade over the given markup or
// plain text. It is a pure function of its input.
func ExtractFields(text string) Fields {
	f := Fields{FactsKind: domain.FactsKindNone}

	if title := firstAcceptable(titleRules, text); title != "" {
		f.Title = cleanTitle(title)
	}
	if brand := firstAcceptable(brandRules, text); brand != "" {
		f.Brand = cleanInline(brand)
	}
	f.PriceUSD = extractPrice(text)
	if ss := firstAcceptable(servingSizeRules, text); ss != "" {
		f.ServingSize = cleanInline(ss)
	}
	if spc := firstAcceptable(servingsPerContainerRules, text); spc != "" {
		f.ServingsPerContainer = cleanInline(spc)
	}

	if raw := firstAcceptable(ingredientRules, text); raw != "" {
		f.IngredientsRaw = strings.TrimSpace(raw)
		f.Ingredients = SplitIngredients(raw)
	}

	f.FactsRaw, f.FactsKind = extractFactsBlock(text)
	f.Warnings = extractWarnings(text)

	return f
}

// firstAcceptable evaluates rules in order, picks the longest capture per
// rule, and returns the first one clearing its minimum length.
func firstAcceptable(rules []patternRule, text string) string {
	for _, rule := range rules {
		best := ""
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			capture := m[0]
			if len(m) > 1 {
				capture = m[1]
			}
			capture = strings.TrimSpace(capture)
			if len(capture) > len(best) {
				best = capture
			}
		}
		if len(best) >= rule.minLen {
			return best
		}
	}
	return ""
}

// extractFactsBlock picks the longest nutrition-label-shaped contiguous block
// across all topic anchors. Source HTML is too heterogeneous for a strict
// grammar, so the block is kept as an opaque best-effort blob.
func extractFactsBlock(text string) (string, domain.FactsKind) {
	best := ""
	kind := domain.FactsKindNone

	for _, anchor := range factsAnchors {
		for _, loc := range anchor.re.FindAllStringIndex(text, -1) {
			window := factsWindow(text, loc[0])
			if len(window) > len(best) {
				best = window
				kind = anchor.kind
			}
		}
	}

	if len(best) <= minFactsBlockLen {
		return "", domain.FactsKindNone
	}
	return best, kind
}

// factsWindow takes the contiguous block starting at the anchor: up to
// maxFactsWindow characters, truncated at the first paragraph break past a
// minimum of label-shaped content.
func factsWindow(text string, start int) string {
	end := start + maxFactsWindow
	if end > len(text) {
		end = len(text)
	}
	// never split a multi-byte rune at the window edge
	if end < len(text) {
		for end > start && !utf8.RuneStart(text[end]) {
			end--
		}
	}
	window := text[start:end]

	from := minInt(factsCutMin, len(window))
	if cut := strings.Index(window[from:], "\n\n"); cut >= 0 {
		window = window[:from+cut]
	}
	window = stripTags(window)
	return strings.TrimSpace(window)
}

func extractWarnings(text string) []string {
	var out []string
	seen := make(map[string]bool)

	for _, rule := range warningRules {
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			capture := m[0]
			if len(m) > 1 {
				capture = m[1]
			}
			w := strings.TrimSpace(capture)
			// reject markup fragments and implausible sentence lengths
			if strings.ContainsAny(w, "<>") {
				continue
			}
			if len(w) < 15 || len(w) > 300 {
				continue
			}
			key := strings.ToLower(w)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, w)
		}
	}
	return out
}

func extractPrice(text string) float64 {
	for _, rule := range priceRules {
		for _, m := range rule.re.FindAllStringSubmatch(text, -1) {
			v, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			if v > 0 && v < 10000 {
				return v
			}
		}
	}
	return 0
}

// SplitIngredients turns raw ingredient text into a cleaned, deduplicated,
// ordered list. Parentheticals (sub-ingredients, percentages) are stripped
// before splitting so commas inside them do not create bogus entries.
func SplitIngredients(raw string) []string {
	s := stripTags(raw)
	s = parentheticalRegex.ReplaceAllString(s, "")
	s = bracketedRegex.ReplaceAllString(s, "")

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '•' || r == '\n'
	})

	var out []string
	seen := make(map[string]bool)
	for _, p := range parts {
		p = strings.Trim(p, " \t.·*-–—:\"'")
		p = leadingAndRegex.ReplaceAllString(p, "")
		p = multipleSpacesRegex.ReplaceAllString(p, " ")
		p = strings.TrimSpace(p)

		if len(p) < minIngredientLen || len(p) >= maxIngredientLen {
			continue
		}
		if numericOnlyRegex.MatchString(p) {
			continue
		}
		key := strings.ToLower(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// CountTokens is the whitespace token count used for facts-block
// completeness bookkeeping.
func CountTokens(s string) int {
	return len(strings.Fields(s))
}

func cleanTitle(s string) string {
	s = stripTags(s)
	s = html.UnescapeString(s)
	s = multipleSpacesRegex.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	// retailer titles often carry a site suffix
	for _, sep := range []string{" | ", " – ", " — "} {
		if idx := strings.Index(s, sep); idx > 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

func cleanInline(s string) string {
	s = stripTags(s)
	s = html.UnescapeString(s)
	s = multipleSpacesRegex.ReplaceAllString(s, " ")
	return strings.Trim(strings.TrimSpace(s), ".,;:")
}

func stripTags(s string) string {
	return tagRegex.ReplaceAllString(s, " ")
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
