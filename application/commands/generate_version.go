package commands

import "fmt"

// GenerationKind selects which edit pipeline a GenerateVersionCommand runs.
// All kinds produce a new child version of the source image; they differ in
// how the output pixels are made.
type GenerationKind string

const (
	// KindNewBackground generates a themed background and composites the
	// source product onto it
	KindNewBackground GenerationKind = "new-background"

	// KindSelectedBackground composites the source product onto an existing
	// background-only image chosen by the user
	KindSelectedBackground GenerationKind = "selected-background"

	// KindSuitableBackground generates a standalone background matched to
	// the product without compositing
	KindSuitableBackground GenerationKind = "suitable-background"

	// KindResize rescales the source image to exact dimensions
	KindResize GenerationKind = "resize"

	// KindBlurRegion blurs a rectangular region of the source image
	KindBlurRegion GenerationKind = "blur-region"

	// KindMergeLogo composites a logo image onto the source image
	KindMergeLogo GenerationKind = "merge-logo"

	// KindEnhance runs a quality enhancement pass on the source image
	KindEnhance GenerationKind = "enhance"

	// KindStyleChange restyles the source image from a style prompt
	KindStyleChange GenerationKind = "style-change"
)

// GenerateVersionCommand represents one edit request against a source image.
// Fields beyond the common ones apply only to specific kinds.
type GenerateVersionCommand struct {
	UserID  string         `json:"user_id" validate:"required"`
	ImageID string         `json:"image_id" validate:"required,uuid"`
	Kind    GenerationKind `json:"kind" validate:"required"`

	// Prompt controls
	Prompt         string `json:"prompt" validate:"max=4000"`
	NegativePrompt string `json:"negative_prompt" validate:"max=4000"`
	StylePreset    string `json:"style_preset" validate:"max=100"`
	Seed           *int64 `json:"seed"`

	// Output size (resize, background generation)
	Width  int `json:"width" validate:"omitempty,gt=0"`
	Height int `json:"height" validate:"omitempty,gt=0"`

	// KindSelectedBackground
	BackgroundID string `json:"background_id" validate:"omitempty,uuid"`

	// KindBlurRegion
	RegionX      int     `json:"region_x" validate:"gte=0"`
	RegionY      int     `json:"region_y" validate:"gte=0"`
	RegionWidth  int     `json:"region_width" validate:"omitempty,gt=0"`
	RegionHeight int     `json:"region_height" validate:"omitempty,gt=0"`
	BlurSigma    float64 `json:"blur_sigma"`

	// KindMergeLogo
	LogoID string `json:"logo_id" validate:"omitempty,uuid"`
}

// Validate validates the command beyond struct tags
func (c *GenerateVersionCommand) Validate() error {
	if c.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if c.ImageID == "" {
		return fmt.Errorf("image ID is required")
	}

	switch c.Kind {
	case KindNewBackground, KindSuitableBackground, KindEnhance:
		// No extra requirements
	case KindSelectedBackground:
		if c.BackgroundID == "" {
			return fmt.Errorf("background ID is required for %s", c.Kind)
		}
	case KindResize:
		if c.Width <= 0 || c.Height <= 0 {
			return fmt.Errorf("width and height are required for %s", c.Kind)
		}
	case KindBlurRegion:
		if c.RegionWidth <= 0 || c.RegionHeight <= 0 {
			return fmt.Errorf("region size is required for %s", c.Kind)
		}
	case KindMergeLogo:
		if c.LogoID == "" {
			return fmt.Errorf("logo ID is required for %s", c.Kind)
		}
	case KindStyleChange:
		if c.Prompt == "" && c.StylePreset == "" {
			return fmt.Errorf("style prompt or preset is required for %s", c.Kind)
		}
	default:
		return fmt.Errorf("unknown generation kind: %q", c.Kind)
	}

	return nil
}
