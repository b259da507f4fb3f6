package background

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSize(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
		want   Size
	}{
		{
			name:  "exact square stays square",
			width: 1024, height: 1024,
			want: Size{Width: 1024, Height: 1024},
		},
		{
			name:  "near square snaps to square",
			width: 1000, height: 1000,
			want: Size{Width: 1024, Height: 1024},
		},
		{
			name:  "wide landscape",
			width: 2000, height: 1000,
			want: Size{Width: 1344, Height: 768},
		},
		{
			name:  "portrait",
			width: 800, height: 1200,
			want: Size{Width: 832, Height: 1216},
		},
		{
			name:  "zero width falls back",
			width: 0, height: 100,
			want: Size{Width: 1024, Height: 1024},
		},
		{
			name:  "negative falls back",
			width: -5, height: 100,
			want: Size{Width: 1024, Height: 1024},
		},
		{
			name:  "extreme panorama picks widest option",
			width: 5000, height: 1000,
			want: Size{Width: 1536, Height: 640},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSize(tt.width, tt.height))
		})
	}
}

func TestNormalizeSizeAlwaysAllowed(t *testing.T) {
	allowed := make(map[Size]bool)
	for _, s := range AllowedGenerationSizes() {
		allowed[s] = true
	}

	inputs := []Size{
		{3, 7}, {100, 100}, {4096, 4096}, {1, 10000}, {10000, 1}, {1920, 1080},
	}
	for _, in := range inputs {
		got := NormalizeSize(in.Width, in.Height)
		assert.True(t, allowed[got], "normalize(%d,%d) returned unsupported size %+v", in.Width, in.Height, got)
	}
}
