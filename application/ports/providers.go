package ports

import (
	"context"

	"imagio-backend/domain/background"
)

// GenerationRequest describes one image generation call
type GenerationRequest struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Seed           *int64
	StylePreset    string
	// SourceImage, when set, asks the provider to keep the pictured subject
	// and replace only the background
	SourceImage []byte
	SourceMime  string
}

// GeneratedImage is the provider's output plus provenance
type GeneratedImage struct {
	Data         []byte
	MimeType     string
	Model        string
	FallbackUsed bool
}

// GenerationProvider defines the interface for AI image generation services
type GenerationProvider interface {
	// Generate produces an image for the request. Implementations may fall
	// back to a simpler mode when the preferred endpoint is unavailable;
	// FallbackUsed reports that.
	Generate(ctx context.Context, req GenerationRequest) (*GeneratedImage, error)

	// RemoveBackground isolates the pictured subject and returns it on a
	// transparent background
	RemoveBackground(ctx context.Context, image []byte, mimeType string) (*GeneratedImage, error)

	// Name identifies the provider for edit provenance
	Name() string
}

// VisionAnalyzer extracts product understanding from a source image.
// Implementations degrade to (nil, nil) when the service is not configured
// or the call fails; vision input is an enhancement, never a requirement.
type VisionAnalyzer interface {
	AnalyzeProduct(ctx context.Context, image []byte, mimeType, metadataSummary, userPrompt string) (*background.VisionAnalysis, error)

	// ExtractText runs OCR over the image
	ExtractText(ctx context.Context, image []byte, mimeType string) (string, error)

	// RecognizeItems lists the objects visible in the image
	RecognizeItems(ctx context.Context, image []byte, mimeType string) ([]string, error)
}

// ImageProcessor defines local pixel operations
type ImageProcessor interface {
	// Probe decodes enough of the image to report its size and mime type
	Probe(data []byte) (background.Size, string, error)

	// Composite layers the product over the background at the placement
	// offset and returns the merged PNG
	Composite(background_, product []byte, placement background.Placement) ([]byte, error)

	// Resize scales an image to the exact target size
	Resize(data []byte, width, height int) ([]byte, error)

	// BlurRegion gaussian-blurs a rectangular region in place
	BlurRegion(data []byte, x, y, width, height int, sigma float64) ([]byte, error)

	// Thumbnail produces a small preview preserving aspect ratio
	Thumbnail(data []byte, maxEdge int) ([]byte, error)
}
