package background

import "math"

// PlacementMode distinguishes plain centering from theme-adjusted positions
type PlacementMode string

const (
	PlacementCenter PlacementMode = "center"
	PlacementCustom PlacementMode = "custom"
)

// Placement is the computed top-left offset for compositing a product onto
// a generated background
type Placement struct {
	Mode PlacementMode
	Left int
	Top  int
}

// groundedThemes are product kinds that read better sitting on the ground
// plane than floating at the vertical center
var groundedThemes = map[Theme]bool{
	ThemeVehicle:   true,
	ThemeFashion:   true,
	ThemeFurniture: true,
	ThemeFood:      true,
}

// CalculatePlacement decides where the product lands on the background.
// Margins are 4% of the background width and 6% of its height. Grounded
// themes are pushed to the bottom margin, tall products are shifted right of
// center, and wide vehicles are re-centered horizontally. The result is
// always clamped inside the margins, and positions that end up within 8px of
// dead center collapse back to center mode.
func CalculatePlacement(bg, product Size, theme Theme) Placement {
	marginX := int(math.Round(float64(bg.Width) * 0.04))
	marginY := int(math.Round(float64(bg.Height) * 0.06))
	centerLeft := int(math.Round(float64(bg.Width-product.Width) / 2))
	centerTop := int(math.Round(float64(bg.Height-product.Height) / 2))

	left := centerLeft
	top := centerTop
	mode := PlacementCenter

	productRatio := float64(product.Width) / math.Max(float64(product.Height), 1)

	if groundedThemes[theme] {
		top = maxInt(marginY, bg.Height-product.Height-marginY)
		mode = PlacementCustom
	}

	if productRatio < 0.9 {
		left = int(math.Round(float64(bg.Width)*0.58 - float64(product.Width)/2))
		mode = PlacementCustom
	} else if productRatio > 1.4 && theme == ThemeVehicle {
		left = int(math.Round(float64(bg.Width)*0.5 - float64(product.Width)/2))
		mode = PlacementCustom
	}

	left = clampInt(left, marginX, bg.Width-product.Width-marginX)
	top = clampInt(top, marginY, bg.Height-product.Height-marginY)

	if absInt(left-centerLeft) < 8 && absInt(top-centerTop) < 8 {
		mode = PlacementCenter
	}

	return Placement{Mode: mode, Left: left, Top: top}
}

// clampInt bounds value to [min, max]. A collapsed range (max <= min) pins
// the value to min, which handles products larger than the background.
func clampInt(value, min, max int) int {
	if max <= min {
		return min
	}
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
