package usecase

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labelscan/backend/internal/domain"
)

func TestExtractFields_IngredientsWithColon(t *testing.T) {
	markup := `Ingredients: Whey Protein Isolate, Cocoa Powder, Stevia.`

	fields := ExtractFields(markup)

	assert.Equal(t, []string{"Whey Protein Isolate", "Cocoa Powder", "Stevia"}, fields.Ingredients)
	assert.Equal(t, "Whey Protein Isolate, Cocoa Powder, Stevia.", fields.IngredientsRaw)
}

func TestExtractFields_IngredientsMultilineBlock(t *testing.T) {
	text := "Ingredients\nOrganic Pea Protein, Organic Brown Rice Protein\n" +
		"Sea Salt, Monk Fruit Extract\n\nDirections: mix one scoop with water"

	fields := ExtractFields(text)

	assert.Equal(t, []string{
		"Organic Pea Protein", "Organic Brown Rice Protein",
		"Sea Salt", "Monk Fruit Extract",
	}, fields.Ingredients)
}

func TestExtractFields_IngredientsMultilineBlockWithLongLines(t *testing.T) {
	line := "Vitamin A (as Beta-Carotene), Vitamin C (as Ascorbic Acid), Vitamin D3 (as Cholecalciferol), " +
		"Vitamin E (as d-Alpha Tocopheryl Succinate), Thiamin, Riboflavin, Niacin"
	text := "Ingredients\n" + line + "\n"

	fields := ExtractFields(text)

	assert.Contains(t, fields.Ingredients, "Thiamin")
	assert.Contains(t, fields.Ingredients, "Riboflavin")
}

func TestExtractFields_IngredientFamilyPriority(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "other ingredients statement",
			text: "Other Ingredients: Gelatin, Rice Flour, Magnesium Stearate",
			want: []string{"Gelatin", "Rice Flour", "Magnesium Stearate"},
		},
		{
			name: "proprietary blend phrasing",
			text: "Proprietary Energy Blend 500mg: Caffeine Anhydrous, Green Tea Extract, Guarana Seed",
			want: []string{"Caffeine Anhydrous", "Green Tea Extract", "Guarana Seed"},
		},
		{
			name: "contains statement as last resort",
			text: "Contains: Milk, Soy Lecithin",
			want: []string{"Milk", "Soy Lecithin"},
		},
		{
			name: "explicit label beats contains statement",
			text: "Contains: Milk, Soy\nIngredients: Creatine Monohydrate, Beta-Alanine, Citrulline Malate",
			want: []string{"Creatine Monohydrate", "Beta-Alanine", "Citrulline Malate"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fields := ExtractFields(tc.text)
			assert.Equal(t, tc.want, fields.Ingredients)
		})
	}
}

func TestExtractFields_Idempotent(t *testing.T) {
	markup := `<html><head><title>Gold Standard Whey</title></head><body>
	<p>Ingredients: Whey Protein Isolate (milk), Cocoa, Lecithin; Sucralose.</p>
	<p>Supplement Facts Serving Size: 1 Scoop (30g) Servings Per Container: 29
	Calories 120 Protein 24g Total Carbohydrate 3g Sodium 130mg</p>
	</body></html>`

	first := ExtractFields(markup)
	second := ExtractFields(markup)

	assert.Equal(t, first, second)
}

func TestExtractFields_TitleSources(t *testing.T) {
	testCases := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "html title tag",
			markup: `<html><head><title>Optimum Nutrition Gold Standard Whey | Amazon.com</title></head></html>`,
			want:   "Optimum Nutrition Gold Standard Whey",
		},
		{
			name:   "og title meta",
			markup: `<html><head><meta property="og:title" content="Creatine Monohydrate Powder"/></head></html>`,
			want:   "Creatine Monohydrate Powder",
		},
		{
			name:   "h1 with nested markup",
			markup: `<h1 class="product"><span>Vitamin D3</span> 5000 IU</h1>`,
			want:   "Vitamin D3 5000 IU",
		},
		{
			name:   "markdown heading",
			markup: "# Magnesium Glycinate 400mg\n\nHighly absorbable form.",
			want:   "Magnesium Glycinate 400mg",
		},
		{
			name:   "absent",
			markup: `<div>no title anywhere</div>`,
			want:   "",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fields := ExtractFields(tc.markup)
			assert.Equal(t, tc.want, fields.Title)
		})
	}
}

func TestExtractFields_FactsBlock(t *testing.T) {
	t.Run("supplement facts anchor sets kind", func(t *testing.T) {
		text := "Supplement Facts\nServing Size: 2 Capsules\nServings Per Container: 30\n" +
			"Vitamin C 500mg 556% DV\nZinc 15mg 136% DV\nElderberry Extract 100mg"

		fields := ExtractFields(text)

		require.NotEmpty(t, fields.FactsRaw)
		assert.Equal(t, domain.FactsKindSupplement, fields.FactsKind)
		assert.Contains(t, fields.FactsRaw, "Serving Size")
	})

	t.Run("nutrition facts anchor sets kind", func(t *testing.T) {
		text := "Nutrition Facts\nServing Size 1 Bar (60g)\nCalories 210\n" +
			"Total Fat 8g\nProtein 20g\nTotal Carbohydrate 23g\nDietary Fiber 10g"

		fields := ExtractFields(text)

		require.NotEmpty(t, fields.FactsRaw)
		assert.Equal(t, domain.FactsKindNutrition, fields.FactsKind)
	})

	t.Run("short blocks are rejected", func(t *testing.T) {
		fields := ExtractFields("Nutrition Facts blah")

		assert.Empty(t, fields.FactsRaw)
		assert.Equal(t, domain.FactsKindNone, fields.FactsKind)
	})

	t.Run("longest block across anchors wins", func(t *testing.T) {
		short := "Serving Size 1 scoop and then little else worth keeping here"
		long := "Supplement Facts\nServing Size: 1 Scoop (31g)\nServings Per Container: 29\n" +
			"Calories 120\nProtein 24g\nTotal Carbohydrate 3g\nSugars 1g\nSodium 130mg\n" +
			"Calcium 140mg\nPotassium 160mg"
		fields := ExtractFields(short + "\n\n\n" + long)

		assert.Equal(t, domain.FactsKindSupplement, fields.FactsKind)
		assert.Contains(t, fields.FactsRaw, "Protein 24g")
	})
}

func TestExtractFields_FactsWindowKeepsValidUTF8(t *testing.T) {
	// an accented run long enough that the window limit lands mid-text
	text := "Supplement Facts " + strings.Repeat("é", 800)

	fields := ExtractFields(text)

	require.NotEmpty(t, fields.FactsRaw)
	assert.True(t, utf8.ValidString(fields.FactsRaw))
}

func TestExtractFields_Warnings(t *testing.T) {
	text := `WARNING: Keep out of reach of children. Consult your physician before use if you are pregnant or nursing.
	<div class="warn">Do not exceed recommended dose</div>
	Warning: x`

	fields := ExtractFields(text)

	require.NotEmpty(t, fields.Warnings)
	for _, w := range fields.Warnings {
		assert.GreaterOrEqual(t, len(w), 15)
		assert.LessOrEqual(t, len(w), 300)
		assert.NotContains(t, w, "<")
		assert.NotContains(t, w, ">")
	}
}

func TestExtractFields_PriceAndServing(t *testing.T) {
	text := `Gold Standard Whey $54.99
	Serving Size: 1 Rounded Scoop (30.4g)
	Servings Per Container: 29`

	fields := ExtractFields(text)

	assert.Equal(t, 54.99, fields.PriceUSD)
	assert.Equal(t, "1 Rounded Scoop (30.4g)", fields.ServingSize)
	assert.Equal(t, "29", fields.ServingsPerContainer)
}

func TestExtractFields_AbsenceIsNotAnError(t *testing.T) {
	fields := ExtractFields("nothing relevant on this page at all")

	assert.Empty(t, fields.Title)
	assert.Empty(t, fields.Ingredients)
	assert.Empty(t, fields.FactsRaw)
	assert.Empty(t, fields.Warnings)
	assert.Zero(t, fields.PriceUSD)
}

func TestSplitIngredients(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "strips parentheticals before splitting",
			raw:  "Whey Protein Isolate (milk, soy lecithin), Cocoa Powder, Stevia",
			want: []string{"Whey Protein Isolate", "Cocoa Powder", "Stevia"},
		},
		{
			name: "semicolon separators",
			raw:  "Creatine Monohydrate; Beta-Alanine; L-Citrulline",
			want: []string{"Creatine Monohydrate", "Beta-Alanine", "L-Citrulline"},
		},
		{
			name: "deduplicates case-insensitively preserving order",
			raw:  "Cocoa Powder, Stevia, cocoa powder, Stevia",
			want: []string{"Cocoa Powder", "Stevia"},
		},
		{
			name: "drops short and numeric noise",
			raw:  "ab, 120, 45%, Magnesium Stearate",
			want: []string{"Magnesium Stearate"},
		},
		{
			name: "drops overlong fragments",
			raw:  strings.Repeat("x", 250) + ", Zinc Oxide",
			want: []string{"Zinc Oxide"},
		},
		{
			name: "strips leading conjunctions and wrapping punctuation",
			raw:  "Citric Acid, and Natural Flavors.",
			want: []string{"Citric Acid", "Natural Flavors"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitIngredients(tc.raw))
		})
	}
}

func TestSplitIngredients_WellFormedness(t *testing.T) {
	raw := "Whey (milk), , a, Cocoa Powder, Cocoa Powder, Natural & Artificial Flavors (contains soy), 99"

	got := SplitIngredients(raw)

	seen := make(map[string]bool)
	for _, ing := range got {
		assert.GreaterOrEqual(t, len(ing), 3)
		assert.Less(t, len(ing), 200)
		assert.NotContains(t, ing, "(")
		assert.NotContains(t, ing, ")")
		assert.False(t, seen[ing], "duplicate entry %q", ing)
		seen[ing] = true
	}
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens(""))
	assert.Equal(t, 0, CountTokens("   \n\t"))
	assert.Equal(t, 5, CountTokens("Serving Size 1 Scoop (30g)"))
}
