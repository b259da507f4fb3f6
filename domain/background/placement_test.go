package background

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculatePlacementCenterForGeneric(t *testing.T) {
	got := CalculatePlacement(Size{1024, 1024}, Size{200, 200}, ThemeGeneric)

	assert.Equal(t, PlacementCenter, got.Mode)
	assert.Equal(t, 412, got.Left)
	assert.Equal(t, 412, got.Top)
}

func TestCalculatePlacementGroundsVehicle(t *testing.T) {
	got := CalculatePlacement(Size{1024, 1024}, Size{400, 200}, ThemeVehicle)

	// Wide vehicle is re-centered horizontally and dropped to the bottom margin
	assert.Equal(t, PlacementCustom, got.Mode)
	assert.Equal(t, 312, got.Left)
	assert.Equal(t, 763, got.Top)
}

func TestCalculatePlacementGroundsFood(t *testing.T) {
	got := CalculatePlacement(Size{1000, 800}, Size{200, 100}, ThemeFood)

	assert.Equal(t, PlacementCustom, got.Mode)
	assert.Equal(t, 400, got.Left)
	assert.Equal(t, 652, got.Top)
}

func TestCalculatePlacementShiftsTallProducts(t *testing.T) {
	got := CalculatePlacement(Size{1024, 1024}, Size{300, 600}, ThemeGeneric)

	assert.Equal(t, PlacementCustom, got.Mode)
	assert.Equal(t, 444, got.Left)
	assert.Equal(t, 212, got.Top)
}

func TestCalculatePlacementClampsOversizedProduct(t *testing.T) {
	// Product larger than the background collapses to the top-left margin
	got := CalculatePlacement(Size{512, 512}, Size{600, 600}, ThemeGeneric)

	assert.Equal(t, 20, got.Left)
	assert.Equal(t, 31, got.Top)
}

func TestCalculatePlacementClampsFullHeightProduct(t *testing.T) {
	// Product as tall as the background: the vertical band degenerates and
	// the top clamps to the margin even though the product then overhangs
	got := CalculatePlacement(Size{800, 600}, Size{300, 600}, ThemeGeneric)

	assert.Equal(t, PlacementCustom, got.Mode)
	assert.Equal(t, 36, got.Top)
	assert.Equal(t, 314, got.Left)
}

func TestCalculatePlacementStaysInsideMargins(t *testing.T) {
	backgrounds := []Size{{1024, 1024}, {1536, 640}, {640, 1536}, {800, 600}}
	products := []Size{{100, 100}, {300, 600}, {600, 200}, {50, 400}}
	themes := []Theme{ThemeVehicle, ThemeBeauty, ThemeFashion, ThemeFood, ThemeTech, ThemeFurniture, ThemeGeneric}

	for _, bg := range backgrounds {
		marginX := int(math.Round(float64(bg.Width) * 0.04))
		marginY := int(math.Round(float64(bg.Height) * 0.06))
		for _, product := range products {
			// A product that cannot fit inside the margins clamps to them
			// instead; only in-margin fits are bounded by the background
			if product.Width+2*marginX > bg.Width || product.Height+2*marginY > bg.Height {
				continue
			}
			for _, theme := range themes {
				got := CalculatePlacement(bg, product, theme)
				assert.GreaterOrEqual(t, got.Left, 0, "bg=%+v product=%+v theme=%s", bg, product, theme)
				assert.GreaterOrEqual(t, got.Top, 0, "bg=%+v product=%+v theme=%s", bg, product, theme)
				assert.LessOrEqual(t, got.Left+product.Width, bg.Width, "bg=%+v product=%+v theme=%s", bg, product, theme)
				assert.LessOrEqual(t, got.Top+product.Height, bg.Height, "bg=%+v product=%+v theme=%s", bg, product, theme)
			}
		}
	}
}

func TestCalculatePlacementDeterministic(t *testing.T) {
	first := CalculatePlacement(Size{1024, 768}, Size{320, 240}, ThemeTech)
	second := CalculatePlacement(Size{1024, 768}, Size{320, 240}, ThemeTech)

	assert.Equal(t, first, second)
}
