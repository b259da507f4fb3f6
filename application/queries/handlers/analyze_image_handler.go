package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"imagio-backend/application/ports"
	"imagio-backend/application/queries"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"
)

// AnalyzeImageHandler handles vision queries that inspect a stored image
// without creating a new version.
type AnalyzeImageHandler struct {
	images ports.ImageRepository
	blobs  ports.BlobStore
	vision ports.VisionAnalyzer
	logger *zap.Logger
}

// NewAnalyzeImageHandler creates a new analysis handler
func NewAnalyzeImageHandler(
	images ports.ImageRepository,
	blobs ports.BlobStore,
	vision ports.VisionAnalyzer,
	logger *zap.Logger,
) *AnalyzeImageHandler {
	return &AnalyzeImageHandler{images: images, blobs: blobs, vision: vision, logger: logger}
}

// HandleExtractText runs OCR over the stored image
func (h *AnalyzeImageHandler) HandleExtractText(ctx context.Context, query queries.ExtractTextQuery) (*queries.ExtractTextResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	data, mimeType, err := h.loadImage(ctx, query.UserID, query.ImageID)
	if err != nil {
		return nil, err
	}

	text, err := h.vision.ExtractText(ctx, data, mimeType)
	if err != nil {
		h.logger.Error("text extraction failed",
			zap.String("imageID", query.ImageID),
			zap.Error(err),
		)
		return nil, err
	}
	return &queries.ExtractTextResult{Text: text}, nil
}

// HandleRecognizeItems lists the objects visible in the stored image
func (h *AnalyzeImageHandler) HandleRecognizeItems(ctx context.Context, query queries.RecognizeItemsQuery) (*queries.RecognizeItemsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	data, mimeType, err := h.loadImage(ctx, query.UserID, query.ImageID)
	if err != nil {
		return nil, err
	}

	items, err := h.vision.RecognizeItems(ctx, data, mimeType)
	if err != nil {
		h.logger.Error("item recognition failed",
			zap.String("imageID", query.ImageID),
			zap.Error(err),
		)
		return nil, err
	}
	if items == nil {
		items = []string{}
	}
	return &queries.RecognizeItemsResult{Items: items}, nil
}

func (h *AnalyzeImageHandler) loadImage(ctx context.Context, userID, rawID string) ([]byte, string, error) {
	imageID, err := valueobjects.NewImageIDFromString(rawID)
	if err != nil {
		return nil, "", appErrors.NewValidationError("invalid image ID")
	}
	node, err := h.images.GetByID(ctx, userID, imageID)
	if err != nil {
		return nil, "", err
	}
	if node.IsDeleted() {
		return nil, "", appErrors.ErrImageDeleted
	}
	data, mimeType, err := h.blobs.Get(ctx, node.StorageKey())
	if err != nil {
		return nil, "", appErrors.Wrap(err, "failed to load image data")
	}
	return data, mimeType, nil
}
