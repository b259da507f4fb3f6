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

// GetImageHandler handles single image lookups
type GetImageHandler struct {
	images ports.ImageRepository
	logger *zap.Logger
}

// NewGetImageHandler creates a new image lookup handler
func NewGetImageHandler(images ports.ImageRepository, logger *zap.Logger) *GetImageHandler {
	return &GetImageHandler{images: images, logger: logger}
}

// Handle executes the image query. Reading an image counts as a view.
func (h *GetImageHandler) Handle(ctx context.Context, query queries.GetImageQuery) (*queries.GetImageResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}
	imageID, err := valueobjects.NewImageIDFromString(query.ImageID)
	if err != nil {
		return nil, appErrors.NewValidationError("invalid image ID")
	}

	node, err := h.images.GetByIDAndIncrementViews(ctx, query.UserID, imageID)
	if err != nil {
		return nil, err
	}

	result := &queries.GetImageResult{
		Image:    queries.BuildImageView(node),
		Children: []queries.ImageView{},
	}

	if parentID := node.ParentID(); parentID != nil {
		// Lineage stays visible even when the parent was soft deleted
		parent, err := h.images.GetByIDIncludingDeleted(ctx, query.UserID, *parentID)
		if err != nil {
			h.logger.Warn("parent lookup failed",
				zap.String("imageID", query.ImageID),
				zap.String("parentID", parentID.String()),
				zap.Error(err),
			)
		} else {
			view := queries.BuildImageView(parent)
			result.Parent = &view
		}
	}

	children, err := h.images.GetChildren(ctx, query.UserID, node.ID())
	if err != nil {
		h.logger.Warn("children lookup failed",
			zap.String("imageID", query.ImageID),
			zap.Error(err),
		)
	} else {
		for _, child := range children {
			if child.IsDeleted() {
				continue
			}
			result.Children = append(result.Children, queries.BuildImageView(child))
		}
	}

	return result, nil
}
