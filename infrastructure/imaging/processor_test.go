package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagio-backend/domain/background"
	appErrors "imagio-backend/pkg/errors"
)

func pngFill(t *testing.T, width, height int, c color.Color) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeSize(t *testing.T, data []byte) (int, int) {
	t.Helper()
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

func TestProcessor_Probe(t *testing.T) {
	p := NewProcessor()

	size, mime, err := p.Probe(pngFill(t, 320, 200, color.White))
	require.NoError(t, err)

	assert.Equal(t, background.Size{Width: 320, Height: 200}, size)
	assert.Equal(t, "image/png", mime)
}

func TestProcessor_ProbeRejectsGarbage(t *testing.T) {
	p := NewProcessor()

	_, _, err := p.Probe([]byte("definitely not an image"))
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}

func TestProcessor_Composite(t *testing.T) {
	p := NewProcessor()
	bg := pngFill(t, 100, 100, color.NRGBA{R: 255, A: 255})
	fg := pngFill(t, 20, 20, color.NRGBA{B: 255, A: 255})

	out, err := p.Composite(bg, fg, background.Placement{Left: 40, Top: 40})
	require.NoError(t, err)

	img, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())

	// The pasted region is blue, the surroundings stay red
	_, _, b, _ := img.At(50, 50).RGBA()
	assert.NotZero(t, b)
	r, _, b2, _ := img.At(10, 10).RGBA()
	assert.NotZero(t, r)
	assert.Zero(t, b2)
}

func TestProcessor_Resize(t *testing.T) {
	p := NewProcessor()

	out, err := p.Resize(pngFill(t, 400, 300, color.White), 200, 150)
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 200, w)
	assert.Equal(t, 150, h)
}

func TestProcessor_ResizeRejectsZero(t *testing.T) {
	p := NewProcessor()

	_, err := p.Resize(pngFill(t, 10, 10, color.White), 0, 150)
	require.Error(t, err)
	assert.True(t, appErrors.IsValidation(err))
}

func TestProcessor_BlurRegion(t *testing.T) {
	p := NewProcessor()

	// Checkerboard region blurs to mid tones while the solid area is untouched
	img := image.NewNRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			if x < 30 && (x+y)%2 == 0 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	out, err := p.BlurRegion(buf.Bytes(), 0, 0, 30, 60, 6)
	require.NoError(t, err)

	result, _, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 60, result.Bounds().Dx())

	r, _, _, _ := result.At(15, 30).RGBA()
	assert.Greater(t, r, uint32(0))
	assert.Less(t, r, uint32(0xffff))

	r2, _, _, _ := result.At(45, 30).RGBA()
	assert.Equal(t, uint32(0xffff), r2)
}

func TestProcessor_Thumbnail(t *testing.T) {
	p := NewProcessor()

	out, err := p.Thumbnail(pngFill(t, 1200, 600, color.White), 256)
	require.NoError(t, err)

	w, h := decodeSize(t, out)
	assert.Equal(t, 256, w)
	assert.Equal(t, 128, h)

	_, mime, err := p.Probe(out)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
}
