package valueobjects

import (
	pkgerrors "imagio-backend/pkg/errors"
)

// Dimensions is a value object representing image width and height in pixels
type Dimensions struct {
	width  int
	height int
}

// NewDimensions creates Dimensions, rejecting non-positive sizes
func NewDimensions(width, height int) (Dimensions, error) {
	if width <= 0 || height <= 0 {
		return Dimensions{}, pkgerrors.NewValidationError("dimensions must be positive")
	}
	return Dimensions{width: width, height: height}, nil
}

// Width returns the width in pixels
func (d Dimensions) Width() int {
	return d.width
}

// Height returns the height in pixels
func (d Dimensions) Height() int {
	return d.height
}

// AspectRatio returns width divided by height
func (d Dimensions) AspectRatio() float64 {
	if d.height == 0 {
		return 0
	}
	return float64(d.width) / float64(d.height)
}

// IsLandscape reports whether width exceeds height
func (d Dimensions) IsLandscape() bool {
	return d.width > d.height
}

// IsPortrait reports whether height exceeds width
func (d Dimensions) IsPortrait() bool {
	return d.height > d.width
}

// IsZero checks if the Dimensions is the zero value
func (d Dimensions) IsZero() bool {
	return d.width == 0 && d.height == 0
}

// Equals checks if two Dimensions are equal
func (d Dimensions) Equals(other Dimensions) bool {
	return d.width == other.width && d.height == other.height
}

// Region is a rectangular area within an image, anchored at the top-left corner
type Region struct {
	x      int
	y      int
	width  int
	height int
}

// NewRegion creates a Region, rejecting negative offsets and non-positive sizes
func NewRegion(x, y, width, height int) (Region, error) {
	if x < 0 || y < 0 {
		return Region{}, pkgerrors.NewValidationError("region offsets cannot be negative")
	}
	if width <= 0 || height <= 0 {
		return Region{}, pkgerrors.NewValidationError("region size must be positive")
	}
	return Region{x: x, y: y, width: width, height: height}, nil
}

// X returns the left offset
func (r Region) X() int { return r.x }

// Y returns the top offset
func (r Region) Y() int { return r.y }

// Width returns the region width
func (r Region) Width() int { return r.width }

// Height returns the region height
func (r Region) Height() int { return r.height }

// Within reports whether the region fits entirely inside the given bounds
func (r Region) Within(bounds Dimensions) bool {
	return r.x+r.width <= bounds.Width() && r.y+r.height <= bounds.Height()
}
