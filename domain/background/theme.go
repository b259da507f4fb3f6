package background

import "strings"

// Theme classifies the product pictured in an image so background prompts
// and placement can match it
type Theme string

const (
	ThemeVehicle   Theme = "vehicle"
	ThemeBeauty    Theme = "beauty"
	ThemeFashion   Theme = "fashion"
	ThemeFood      Theme = "food"
	ThemeTech      Theme = "tech"
	ThemeFurniture Theme = "furniture"
	ThemeGeneric   Theme = "generic"
)

// ImageMeta is the textual metadata themes are classified from
type ImageMeta struct {
	Title       string
	Description string
	Category    string
	Tags        []string
}

// themeKeywords is checked in order; the first theme with a keyword hit wins
var themeKeywords = []struct {
	theme    Theme
	keywords []string
}{
	{
		theme: ThemeVehicle,
		keywords: []string{
			"car", "vehicle", "automotive", "auto", "motorcycle", "bike",
			"truck", "suv", "sedan", "coupe", "roadster", "van", "convertible",
		},
	},
	{
		theme: ThemeBeauty,
		keywords: []string{
			"skin", "skincare", "cosmetic", "makeup", "beauty",
			"serum", "cream", "lotion", "perfume", "fragrance",
		},
	},
	{
		theme: ThemeFashion,
		keywords: []string{
			"shoe", "sneaker", "boot", "bag", "apparel",
			"jacket", "dress", "hoodie", "fashion", "wear",
		},
	},
	{
		theme: ThemeFood,
		keywords: []string{
			"food", "drink", "beverage", "coffee", "tea",
			"snack", "dessert", "kitchen", "plate",
		},
	},
	{
		theme: ThemeTech,
		keywords: []string{
			"phone", "laptop", "tablet", "speaker", "camera",
			"tech", "gadget", "console", "headphone", "monitor",
		},
	},
	{
		theme: ThemeFurniture,
		keywords: []string{
			"chair", "sofa", "table", "desk", "lamp", "bed", "stool", "couch", "shelf",
		},
	},
}

// ClassifyTheme inspects title, description, category and tags and returns
// the first matching theme. Matching is case-insensitive substring search,
// so "sports car" and "Automotive" both map to the vehicle theme.
func ClassifyTheme(meta ImageMeta) Theme {
	parts := make([]string, 0, 3+len(meta.Tags))
	if meta.Title != "" {
		parts = append(parts, meta.Title)
	}
	if meta.Description != "" {
		parts = append(parts, meta.Description)
	}
	if meta.Category != "" {
		parts = append(parts, meta.Category)
	}
	parts = append(parts, meta.Tags...)

	normalized := strings.ToLower(strings.Join(parts, " "))

	for _, matcher := range themeKeywords {
		for _, keyword := range matcher.keywords {
			if strings.Contains(normalized, keyword) {
				return matcher.theme
			}
		}
	}

	return ThemeGeneric
}
