package handlers

import (
	"context"
	"time"

	"imagio-backend/application/commands"
	"imagio-backend/application/ports"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"
)

// DeleteImageHandler soft deletes an image. The blob is destroyed but the
// node record is kept so descendants stay reachable through the tree.
type DeleteImageHandler struct {
	images    ports.ImageRepository
	blobs     ports.BlobStore
	publisher ports.EventPublisher
	logger    Logger
}

// NewDeleteImageHandler creates a new delete handler with injected dependencies
func NewDeleteImageHandler(
	images ports.ImageRepository,
	blobs ports.BlobStore,
	publisher ports.EventPublisher,
	logger Logger,
) *DeleteImageHandler {
	return &DeleteImageHandler{
		images:    images,
		blobs:     blobs,
		publisher: publisher,
		logger:    logger,
	}
}

// Handle removes the stored blobs and marks the node deleted.
// Deleting an already deleted image is a no-op.
func (h *DeleteImageHandler) Handle(ctx context.Context, cmd commands.DeleteImageCommand) error {
	if err := cmd.Validate(); err != nil {
		return appErrors.Wrap(err, "invalid delete command")
	}
	imageID, err := valueobjects.NewImageIDFromString(cmd.ImageID)
	if err != nil {
		return appErrors.NewValidationError("invalid image ID")
	}

	node, err := h.images.GetByIDIncludingDeleted(ctx, cmd.UserID, imageID)
	if err != nil {
		return err
	}
	if node.IsDeleted() {
		return nil
	}

	// Destroy blobs first. A dangling record beats a dangling blob the user
	// believes is gone.
	if err := h.blobs.Delete(ctx, node.StorageKey()); err != nil {
		return appErrors.Wrap(err, "failed to delete image data")
	}
	if thumbKey := node.ThumbnailStorageKey(); thumbKey != "" {
		if err := h.blobs.Delete(ctx, thumbKey); err != nil {
			h.logger.Warn("thumbnail delete failed", "key", thumbKey, "error", err.Error())
		}
	}

	// Mark the entity first so the deletion event is captured, then persist.
	if err := node.SoftDelete(); err != nil {
		return err
	}
	if err := h.images.SoftDelete(ctx, cmd.UserID, imageID, time.Now()); err != nil {
		return appErrors.Wrap(err, "failed to mark image deleted")
	}

	if events := node.GetUncommittedEvents(); len(events) > 0 {
		if pubErr := h.publisher.PublishBatch(ctx, events); pubErr != nil {
			h.logger.Error("failed to publish events", "error", pubErr.Error(), "count", len(events))
		} else {
			node.MarkEventsAsCommitted()
		}
	}

	h.logger.Info("deleted image", "userId", cmd.UserID, "imageId", cmd.ImageID)
	return nil
}
