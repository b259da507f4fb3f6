package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTheme(t *testing.T) {
	tests := []struct {
		name string
		meta ImageMeta
		want Theme
	}{
		{
			name: "vehicle from title",
			meta: ImageMeta{Title: "Red Sports Car"},
			want: ThemeVehicle,
		},
		{
			name: "beauty from tags",
			meta: ImageMeta{Tags: []string{"skincare", "routine"}},
			want: ThemeBeauty,
		},
		{
			name: "fashion from description",
			meta: ImageMeta{Description: "A leather jacket on display"},
			want: ThemeFashion,
		},
		{
			name: "food from keyword inside word",
			meta: ImageMeta{Title: "Morning coffee ritual"},
			want: ThemeFood,
		},
		{
			name: "tech from tags",
			meta: ImageMeta{Tags: []string{"laptop", "workspace"}},
			want: ThemeTech,
		},
		{
			name: "furniture from title",
			meta: ImageMeta{Title: "Mid-century lounge chair"},
			want: ThemeFurniture,
		},
		{
			name: "case insensitive",
			meta: ImageMeta{Title: "AUTOMOTIVE SHOWCASE"},
			want: ThemeVehicle,
		},
		{
			name: "no match falls back to generic",
			meta: ImageMeta{Title: "Untitled", Description: "misc upload"},
			want: ThemeGeneric,
		},
		{
			name: "empty metadata is generic",
			meta: ImageMeta{},
			want: ThemeGeneric,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyTheme(tt.meta))
		})
	}
}

func TestClassifyThemeOrderPrecedence(t *testing.T) {
	// Vehicle keywords are checked before beauty, so mixed metadata
	// resolves to vehicle
	meta := ImageMeta{Title: "car makeup tutorial"}
	assert.Equal(t, ThemeVehicle, ClassifyTheme(meta))
}

func TestClassifyThemeDeterministic(t *testing.T) {
	meta := ImageMeta{
		Title:       "Studio shoot",
		Description: "sneaker on a pedestal",
		Tags:        []string{"product", "hero"},
	}

	first := ClassifyTheme(meta)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ClassifyTheme(meta))
	}
	assert.Equal(t, ThemeFashion, first)
}
