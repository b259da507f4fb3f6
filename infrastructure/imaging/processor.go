package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"imagio-backend/domain/background"
	appErrors "imagio-backend/pkg/errors"
)

// Processor implements local pixel operations on decoded images. All edit
// outputs are encoded as PNG so transparency survives the pipeline;
// thumbnails are JPEG for size.
type Processor struct {
	thumbnailQuality int
}

func NewProcessor() *Processor {
	return &Processor{thumbnailQuality: 80}
}

// Probe decodes the image header only
func (p *Processor) Probe(data []byte) (background.Size, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return background.Size{}, "", appErrors.NewValidationError(fmt.Sprintf("unrecognized image data: %v", err))
	}
	return background.Size{Width: cfg.Width, Height: cfg.Height}, mimeForFormat(format), nil
}

// Composite layers the product over the background at the placement offset
func (p *Processor) Composite(background_, product []byte, placement background.Placement) ([]byte, error) {
	bg, err := decode(background_)
	if err != nil {
		return nil, err
	}
	fg, err := decode(product)
	if err != nil {
		return nil, err
	}

	merged := imaging.Overlay(bg, fg, image.Pt(placement.Left, placement.Top), 1.0)
	return encodePNG(merged)
}

// Resize scales an image to the exact target size
func (p *Processor) Resize(data []byte, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, appErrors.NewValidationError("resize dimensions must be positive")
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}
	return encodePNG(imaging.Resize(img, width, height, imaging.Lanczos))
}

// BlurRegion gaussian-blurs a rectangular region, leaving the rest untouched
func (p *Processor) BlurRegion(data []byte, x, y, width, height int, sigma float64) ([]byte, error) {
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	region := image.Rect(x, y, x+width, y+height)
	patch := imaging.Blur(imaging.Crop(img, region), sigma)
	merged := imaging.Paste(imaging.Clone(img), patch, region.Min)
	return encodePNG(merged)
}

// Thumbnail produces a preview no larger than maxEdge on either side
func (p *Processor) Thumbnail(data []byte, maxEdge int) ([]byte, error) {
	if maxEdge <= 0 {
		maxEdge = 256
	}
	img, err := decode(data)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)

	// Thumbnails are always JPEG; flatten transparency onto white first
	flattened := imaging.New(thumb.Bounds().Dx(), thumb.Bounds().Dy(), image.White)
	flattened = imaging.Overlay(flattened, thumb, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flattened, &jpeg.Options{Quality: p.thumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, appErrors.NewValidationError(fmt.Sprintf("unrecognized image data: %v", err))
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func mimeForFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
