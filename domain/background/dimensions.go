package background

import "math"

// Size is a width/height pair in pixels
type Size struct {
	Width  int
	Height int
}

// allowedGenerationSizes are the output resolutions the generation provider
// accepts for text-to-image requests
var allowedGenerationSizes = []Size{
	{Width: 1024, Height: 1024},
	{Width: 1152, Height: 896},
	{Width: 1216, Height: 832},
	{Width: 1344, Height: 768},
	{Width: 1536, Height: 640},
	{Width: 640, Height: 1536},
	{Width: 768, Height: 1344},
	{Width: 832, Height: 1216},
	{Width: 896, Height: 1152},
}

// AllowedGenerationSizes returns a copy of the supported output resolutions
func AllowedGenerationSizes() []Size {
	sizes := make([]Size, len(allowedGenerationSizes))
	copy(sizes, allowedGenerationSizes)
	return sizes
}

// NormalizeSize snaps a requested size to the closest supported resolution.
// Candidates are scored on aspect-ratio distance (weighted double) plus the
// relative width and height deltas, with a 0.25 penalty when the candidate's
// orientation contradicts the requested one. Non-positive or degenerate
// requests fall back to 1024x1024.
func NormalizeSize(width, height int) Size {
	if width <= 0 || height <= 0 {
		return Size{Width: 1024, Height: 1024}
	}

	requestedRatio := float64(width) / float64(height)

	best := Size{Width: 1024, Height: 1024}
	bestScore := math.Inf(1)

	for _, option := range allowedGenerationSizes {
		optionRatio := float64(option.Width) / float64(option.Height)
		ratioDiff := math.Abs(optionRatio - requestedRatio)
		widthDiff := math.Abs(float64(option.Width-width)) / float64(option.Width)
		heightDiff := math.Abs(float64(option.Height-height)) / float64(option.Height)

		orientationPenalty := 0.0
		if requestedRatio > 1 && option.Width < option.Height {
			orientationPenalty = 0.25
		} else if requestedRatio < 1 && option.Width > option.Height {
			orientationPenalty = 0.25
		}

		score := ratioDiff*2 + widthDiff + heightDiff + orientationPenalty
		if score < bestScore {
			bestScore = score
			best = option
		}
	}

	return best
}
