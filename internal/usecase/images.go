package usecase

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultMaxCandidateImages bounds downstream OCR cost when no cap is
// configured.
const DefaultMaxCandidateImages = 10

// excludeImageTerms disqualify an image URL outright: icons, chrome, and
// tracking pixels never contain a readable label.
var excludeImageTerms = []string{
	"icon", "logo", "favicon", "sprite", "thumb", "badge",
	"avatar", "spinner", "loading", "placeholder", "pixel",
	"banner", "arrow", "cart", "star", "rating", "flag",
	"background",
}

// labelImageTerms are explicit nutrition-label cues: the highest tier.
var labelImageTerms = []string{
	"nutrition", "supplement", "facts", "ingredient", "label",
	"panel", "sfacts", "nfp", "back-of",
}

// productImageTerms are generic product-shot cues: the middle tier.
var productImageTerms = []string{
	"product", "bottle", "container", "jar", "tub", "pouch",
	"back-", "_back", "back.", "rear", "zoom", "large", "hires",
	"x1000", "x1500", "1500x", "2000x", "_xl", "_l_",
}

var tinyDimensionRegex = regexp.MustCompile(`\b(\d{1,3})x(\d{1,3})\b`)

// LocateCandidateImages scans raw page markup and returns absolute image
// URLs ranked most-likely-to-contain-a-label first, capped at max (or
// DefaultMaxCandidateImages when max <= 0). Pure text classification, no
// network I/O; returns an empty slice when nothing qualifies.
func LocateCandidateImages(markup, pageURL string, max int) []string {
	if max <= 0 {
		max = DefaultMaxCandidateImages
	}

	refs := collectImageRefs(markup)
	base, _ := url.Parse(pageURL)

	var tier1, tier2, tier3 []string
	seen := make(map[string]bool)

	for _, ref := range refs {
		abs := absoluteImageURL(ref, base)
		if abs == "" {
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		lower := strings.ToLower(abs)
		if isExcludedImage(lower) {
			continue
		}

		switch {
		case containsAnyTerm(lower, labelImageTerms):
			tier1 = append(tier1, abs)
		case containsAnyTerm(lower, productImageTerms):
			tier2 = append(tier2, abs)
		case base != nil && sameDomain(abs, base):
			tier3 = append(tier3, abs)
		}
	}

	ranked := append(append(tier1, tier2...), tier3...)
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// collectImageRefs pulls every image reference out of the markup: <img>
// src and lazy-load attributes, <source> srcset, and og:image metadata.
func collectImageRefs(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var refs []string

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if hasTinyDimensions(s) {
			return
		}
		for _, attr := range []string{"src", "data-src", "data-lazy-src", "data-old-hires"} {
			if v, ok := s.Attr(attr); ok && v != "" {
				refs = append(refs, v)
			}
		}
		if v, ok := s.Attr("srcset"); ok {
			refs = append(refs, firstSrcsetURL(v))
		}
	})

	doc.Find("source").Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("srcset"); ok {
			refs = append(refs, firstSrcsetURL(v))
		}
	})

	doc.Find(`meta[property="og:image"], meta[name="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok {
			refs = append(refs, v)
		}
	})

	return refs
}

// hasTinyDimensions rejects images with fixed tiny width/height attributes.
func hasTinyDimensions(s *goquery.Selection) bool {
	for _, attr := range []string{"width", "height"} {
		if v, ok := s.Attr(attr); ok {
			if n, err := strconv.Atoi(strings.TrimSuffix(v, "px")); err == nil && n > 0 && n < 100 {
				return true
			}
		}
	}
	return false
}

func firstSrcsetURL(srcset string) string {
	first := strings.Split(srcset, ",")[0]
	return strings.TrimSpace(strings.SplitN(strings.TrimSpace(first), " ", 2)[0])
}

func isExcludedImage(lower string) bool {
	if containsAnyTerm(lower, excludeImageTerms) {
		return true
	}
	if strings.HasSuffix(lower, ".svg") || strings.HasSuffix(lower, ".ico") {
		return true
	}
	// fixed tiny dimensions embedded in the URL, e.g. 50x50
	if m := tinyDimensionRegex.FindStringSubmatch(lower); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w < 100 && h < 100 {
			return true
		}
	}
	return false
}

// absoluteImageURL normalizes protocol-relative and page-relative
// references; anything that cannot resolve to http(s) is dropped.
func absoluteImageURL(ref string, base *url.URL) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	if strings.HasPrefix(ref, "//") {
		ref = "https:" + ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if !u.IsAbs() {
		if base == nil {
			return ""
		}
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

func sameDomain(abs string, base *url.URL) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	baseHost := strings.TrimPrefix(base.Hostname(), "www.")
	return host != "" && (host == baseHost || strings.HasSuffix(host, "."+baseHost))
}

func containsAnyTerm(s string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
