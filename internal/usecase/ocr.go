package usecase

import (
	"context"
	"fmt"

	"github.com/labelscan/backend/internal/domain"
)

// DefaultMaxOCRImages bounds OCR latency and cost per extraction request.
const DefaultMaxOCRImages = 8

// Early-termination thresholds: once a facts block this substantial and an
// ingredient list this long are both in hand, further images are unlikely to
// add value.
const (
	ocrFactsDoneLen       = 100
	ocrIngredientsDoneLen = 3
)

// ocrOutcome aggregates the best label data found across all OCR'd images.
// Facts and ingredients are tracked independently: they often appear on
// different photographs of the same product.
type ocrOutcome struct {
	FactsRaw         string
	FactsKind        domain.FactsKind
	FactsImage       int
	Ingredients      []string
	IngredientsRaw   string
	IngredientsImage int

	ImagesConsidered int
	ImagesUsed       int
	Debug            []string
}

// runOCR submits candidate images to the OCR service one at a time, in
// priority order, reapplying the same pattern families used for HTML text.
// A single failed image is logged and skipped, never aborting the batch.
func (s *ExtractionService) runOCR(ctx context.Context, images []string) ocrOutcome {
	out := ocrOutcome{
		FactsKind:        domain.FactsKindNone,
		FactsImage:       -1,
		IngredientsImage: -1,
	}

	max := s.cfg.MaxOCRImages
	if max <= 0 {
		max = DefaultMaxOCRImages
	}
	if len(images) > max {
		images = images[:max]
	}
	out.ImagesConsidered = len(images)

	for i, imageURL := range images {
		text, err := s.ocr.Recognize(ctx, imageURL)
		if err != nil {
			s.log.Warn().Err(err).Str("image", imageURL).Msg("OCR image failed, skipping")
			out.Debug = append(out.Debug, fmt.Sprintf("image %d: %v", i, err))
			continue
		}
		out.ImagesUsed++

		fields := ExtractFields(text)

		if len(fields.FactsRaw) > len(out.FactsRaw) {
			out.FactsRaw = fields.FactsRaw
			out.FactsKind = fields.FactsKind
			out.FactsImage = i
		}
		if len(fields.Ingredients) > len(out.Ingredients) {
			out.Ingredients = fields.Ingredients
			out.IngredientsRaw = fields.IngredientsRaw
			out.IngredientsImage = i
		}

		out.Debug = append(out.Debug, fmt.Sprintf(
			"image %d: %d facts chars, %d ingredients", i, len(fields.FactsRaw), len(fields.Ingredients)))

		if len(out.FactsRaw) > ocrFactsDoneLen && len(out.Ingredients) > ocrIngredientsDoneLen {
			out.Debug = append(out.Debug, fmt.Sprintf("early stop after image %d", i))
			break
		}
	}

	return out
}

// pickedImage is the index of the image whose data won the merge, preferring
// the facts source when both contributed.
func (o ocrOutcome) pickedImage(factsKept, ingredientsKept bool) int {
	if factsKept {
		return o.FactsImage
	}
	if ingredientsKept {
		return o.IngredientsImage
	}
	return -1
}
