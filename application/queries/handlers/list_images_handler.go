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

const defaultPageSize = 50

// ListImagesHandler handles image listing queries
type ListImagesHandler struct {
	images ports.ImageRepository
	logger *zap.Logger
}

// NewListImagesHandler creates a new listing handler
func NewListImagesHandler(images ports.ImageRepository, logger *zap.Logger) *ListImagesHandler {
	return &ListImagesHandler{images: images, logger: logger}
}

// Handle executes the listing query
func (h *ListImagesHandler) Handle(ctx context.Context, query queries.ListImagesQuery) (*queries.ListImagesResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	limit := query.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	nodes, err := h.images.ListByUser(ctx, query.UserID, ports.ImageFilter{
		IsPublic:       query.IsPublic,
		Category:       query.Category,
		Tags:           query.Tags,
		BackgroundOnly: query.BackgroundOnly,
		Limit:          limit + 1,
		Offset:         query.Offset,
	})
	if err != nil {
		h.logger.Error("image listing failed",
			zap.String("userID", query.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	hasMore := len(nodes) > limit
	if hasMore {
		nodes = nodes[:limit]
	}

	views := make([]queries.ImageView, 0, len(nodes))
	for _, node := range nodes {
		views = append(views, queries.BuildImageView(node))
	}

	return &queries.ListImagesResult{
		Images:  views,
		Total:   len(views),
		Limit:   limit,
		Offset:  query.Offset,
		HasMore: hasMore,
	}, nil
}

// HandleBackgrounds executes the background listing query
func (h *ListImagesHandler) HandleBackgrounds(ctx context.Context, query queries.ListBackgroundsQuery) (*queries.ListBackgroundsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	excludeID := valueobjects.ImageID{}
	if query.ExcludeID != "" {
		parsed, err := valueobjects.NewImageIDFromString(query.ExcludeID)
		if err != nil {
			return nil, appErrors.NewValidationError("invalid exclude ID")
		}
		excludeID = parsed
	}

	nodes, err := h.images.ListBackgrounds(ctx, query.UserID, excludeID)
	if err != nil {
		return nil, err
	}

	views := make([]queries.ImageView, 0, len(nodes))
	for _, node := range nodes {
		views = append(views, queries.BuildImageView(node))
	}
	return &queries.ListBackgroundsResult{Backgrounds: views}, nil
}
