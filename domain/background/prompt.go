package background

import "strings"

// PromptSource records where the positive prompt came from
type PromptSource string

const (
	PromptSourceUser       PromptSource = "user"
	PromptSourceAuto       PromptSource = "auto"
	PromptSourceVisionAuto PromptSource = "vision-auto"
	PromptSourceUserVision PromptSource = "user+vision"
)

// NegativeSource records where the negative prompt came from
type NegativeSource string

const (
	NegativeSourceUser   NegativeSource = "user"
	NegativeSourceVision NegativeSource = "vision"
	NegativeSourceAuto   NegativeSource = "auto"
)

// promptTemplate holds the three clauses an auto prompt is assembled from
type promptTemplate struct {
	opening string
	setting string
	details string
}

var themePrompts = map[Theme]promptTemplate{
	ThemeVehicle: {
		opening: "Cinematic automotive hero shot of {descriptor}",
		setting: "positioned on a modern rooftop parking deck with moody skyline bokeh",
		details: "wet asphalt reflections, dramatic rim lighting, no people, no signage, leave a clean empty parking bay ready for the hero product",
	},
	ThemeBeauty: {
		opening: "Premium beauty campaign still of {descriptor}",
		setting: "arranged on marble and glass vanity props with diffused daylight",
		details: "soft pastels, floating mist, no other product categories, hyperreal textures, maintain an empty pedestal pocket awaiting the hero product",
	},
	ThemeFashion: {
		opening: "Editorial fashion product scene for {descriptor}",
		setting: "styled on sculpted plinths inside a minimal studio with rim-lit gradients",
		details: "floating fabric motion, subtle shadow drop, no competing wardrobe, keep a vacant plinth for the foreground piece",
	},
	ThemeFood: {
		opening: "Gourmet food photography of {descriptor}",
		setting: "placed on rustic tabletop with natural window light and depth-rich props",
		details: "steam, crumbs, utensils, no packaged cosmetics or tech, leave a clean plating zone open for the hero dish",
	},
	ThemeTech: {
		opening: "Futuristic tech showcase for {descriptor}",
		setting: "on anodized aluminum surface with neon rim lighting and volumetric haze",
		details: "floating HUD elements, bokeh particles, no organic skincare items, reserve an empty illuminated pad where the product will sit",
	},
	ThemeFurniture: {
		opening: "Interior design lifestyle shot of {descriptor}",
		setting: "inside a curated living space with layered lighting and tactile materials",
		details: "area rug shadows, architectural light streaks, no unrelated cosmetics, keep a cleared zone on the floor or platform for the hero furnishing",
	},
	ThemeGeneric: {
		opening: "Lifestyle hero scene for {descriptor}",
		setting: "set on a premium stylized stage with cinematic depth",
		details: "soft studio lighting, DSLR depth of field, practical props that support the product, maintain a spotless open area awaiting the foreground item",
	},
}

var themeNegativePrompts = map[Theme]string{
	ThemeVehicle:   "skincare, cosmetics, perfume, makeup, hands, people, signage, text overlay",
	ThemeBeauty:    "cars, vehicles, engines, asphalt, tires, industrial machinery",
	ThemeFashion:   "cars, vehicles, crowded streets, skincare jars, phones, laptops",
	ThemeFood:      "cars, people, hands, skincare, laptops, text",
	ThemeTech:      "cars, food, skin, people, clutter, wrinkles",
	ThemeFurniture: "cars, food, faces, text overlay, clutter, crowd",
	ThemeGeneric:   "logos, text overlay, people, mismatched merchandise, clutter",
}

// stagingRequirement keeps generated backgrounds from painting a fake product
// into the space the real product will be composited into
const stagingRequirement = "Reserve a clean, unobstructed staging pocket that matches the product's perspective and lighting; never place placeholder hero objects or text in that space."

const (
	placementMarker = "foreground placement guidance:"
	stagingMarker   = "product staging requirement:"
)

// PromptPlan is the fully resolved generation prompt with provenance
type PromptPlan struct {
	Prompt          string
	NegativePrompt  string
	Theme           Theme
	Source          PromptSource
	NegativeSource  NegativeSource
	VisionSummary   string
	VisionPosition  string
	VisionScale     string
	BackgroundIdeas []string
}

// VisionAnalysis is what the vision model extracted from the source image
type VisionAnalysis struct {
	Prompt          string
	Summary         string
	NegativePrompt  string
	Attributes      []string
	BackgroundIdeas []string
	SizeHint        string
	PositionHint    string
}

// Descriptor derives a short product descriptor from image metadata.
// Title wins, then the first three tags, then the first six words of the
// description, defaulting to "product".
func Descriptor(meta ImageMeta) string {
	var sources []string
	if meta.Title != "" {
		sources = append(sources, meta.Title)
	}
	if len(meta.Tags) > 0 {
		n := len(meta.Tags)
		if n > 3 {
			n = 3
		}
		sources = append(sources, strings.Join(meta.Tags[:n], " "))
	}
	if len(sources) == 0 && meta.Description != "" {
		words := strings.Fields(meta.Description)
		if len(words) > 6 {
			words = words[:6]
		}
		sources = append(sources, strings.Join(words, " "))
	}

	descriptor := strings.TrimSpace(strings.Join(sources, " "))
	if descriptor == "" {
		return "product"
	}
	return descriptor
}

// BuildPrompt assembles the fallback positive prompt. A non-empty user
// prompt is used verbatim; otherwise the theme template is filled with the
// metadata descriptor.
func BuildPrompt(meta ImageMeta, userPrompt string) (string, Theme, PromptSource) {
	theme := ClassifyTheme(meta)
	if trimmed := strings.TrimSpace(userPrompt); trimmed != "" {
		return trimmed, theme, PromptSourceUser
	}

	descriptor := Descriptor(meta)
	template, ok := themePrompts[theme]
	if !ok {
		template = themePrompts[ThemeGeneric]
	}

	clauses := []string{template.opening, template.setting, template.details}
	for i, clause := range clauses {
		clauses[i] = strings.ReplaceAll(clause, "{descriptor}", descriptor)
	}

	return strings.Join(clauses, ". "), theme, PromptSourceAuto
}

// DefaultNegativePrompt returns the theme's negative prompt
func DefaultNegativePrompt(theme Theme) string {
	if neg, ok := themeNegativePrompts[theme]; ok {
		return neg
	}
	return themeNegativePrompts[ThemeGeneric]
}

// ResolvePrompt merges the user prompt, vision analysis and theme fallback
// into the final generation prompt. The result always carries exactly one
// staging clause so the provider leaves room for the composited product.
func ResolvePrompt(meta ImageMeta, userPrompt, userNegative string, vision *VisionAnalysis) PromptPlan {
	prompt, theme, source := BuildPrompt(meta, userPrompt)

	plan := PromptPlan{
		Prompt: prompt,
		Theme:  theme,
		Source: source,
	}

	trimmedUserNegative := strings.TrimSpace(userNegative)
	if trimmedUserNegative != "" {
		plan.NegativePrompt = trimmedUserNegative
		plan.NegativeSource = NegativeSourceUser
	} else {
		plan.NegativePrompt = DefaultNegativePrompt(theme)
		plan.NegativeSource = NegativeSourceAuto
	}

	appendedPlacement := false

	if vision != nil {
		var combined []string
		if trimmed := strings.TrimSpace(userPrompt); trimmed != "" {
			combined = append(combined, trimmed)
		}
		if trimmed := strings.TrimSpace(vision.Prompt); trimmed != "" {
			combined = append(combined, trimmed)
		}
		if len(combined) == 0 && plan.Prompt != "" {
			combined = append(combined, plan.Prompt)
		}

		if merged := strings.TrimSpace(strings.Join(combined, "\n\n")); merged != "" {
			plan.Prompt = merged
			if strings.TrimSpace(userPrompt) != "" {
				plan.Source = PromptSourceUserVision
			} else {
				plan.Source = PromptSourceVisionAuto
			}
		}

		if trimmedUserNegative == "" {
			if visionNegative := strings.TrimSpace(vision.NegativePrompt); visionNegative != "" {
				plan.NegativePrompt = visionNegative
				plan.NegativeSource = NegativeSourceVision
			}
		}

		plan.VisionSummary = strings.TrimSpace(vision.Summary)
		plan.VisionScale = strings.TrimSpace(vision.SizeHint)
		plan.VisionPosition = strings.TrimSpace(vision.PositionHint)
		for _, idea := range vision.BackgroundIdeas {
			if trimmed := strings.TrimSpace(idea); trimmed != "" {
				plan.BackgroundIdeas = append(plan.BackgroundIdeas, trimmed)
			}
		}

		guidance := []string{stagingRequirement}
		if plan.VisionScale != "" {
			guidance = append(guidance, "Product scale guidance: "+plan.VisionScale)
		}
		if plan.VisionPosition != "" {
			guidance = append(guidance, "Product placement guidance: "+plan.VisionPosition)
		}

		if !containsFold(plan.Prompt, placementMarker) {
			plan.Prompt = plan.Prompt + "\n\nForeground placement guidance: " + strings.Join(guidance, " | ") +
				". Align props, camera perspective, and horizon lines so the product feels naturally integrated."
			appendedPlacement = true
		}
	}

	if !appendedPlacement && !containsFold(plan.Prompt, stagingMarker) {
		plan.Prompt = plan.Prompt + "\n\nProduct staging requirement: " + stagingRequirement
	}

	return plan
}

// containsFold reports whether s contains substr, case-insensitively
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}
