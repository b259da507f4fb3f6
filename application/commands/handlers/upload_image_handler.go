package handlers

import (
	"context"
	"fmt"
	"time"

	"imagio-backend/application/commands"
	"imagio-backend/application/ports"
	domainConfig "imagio-backend/domain/config"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"

	"github.com/google/uuid"
)

// UploadImageHandler ingests an original image and creates the root node of
// a new version tree.
type UploadImageHandler struct {
	images    ports.ImageRepository
	blobs     ports.BlobStore
	processor ports.ImageProcessor
	provider  ports.GenerationProvider
	publisher ports.EventPublisher
	config    *domainConfig.DomainConfig
	logger    Logger
}

// NewUploadImageHandler creates a new upload handler with injected dependencies
func NewUploadImageHandler(
	images ports.ImageRepository,
	blobs ports.BlobStore,
	processor ports.ImageProcessor,
	provider ports.GenerationProvider,
	publisher ports.EventPublisher,
	config *domainConfig.DomainConfig,
	logger Logger,
) *UploadImageHandler {
	return &UploadImageHandler{
		images:    images,
		blobs:     blobs,
		processor: processor,
		provider:  provider,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// Handle validates the payload, stores the blob, and persists the root node.
func (h *UploadImageHandler) Handle(ctx context.Context, cmd commands.UploadImageCommand) (*entities.ImageNode, error) {
	start := time.Now()

	// Step 1: Validate command and payload constraints
	if err := cmd.Validate(); err != nil {
		return nil, appErrors.Wrap(err, "invalid upload command")
	}
	if int64(len(cmd.Data)) > h.config.MaxUploadBytes {
		return nil, appErrors.NewValidationError(fmt.Sprintf("image exceeds the %d byte upload limit", h.config.MaxUploadBytes))
	}

	// Step 2: Decode the payload. The detected mime type wins over the
	// client-declared one.
	size, detectedMime, err := h.processor.Probe(cmd.Data)
	if err != nil {
		return nil, appErrors.NewValidationError("image payload is not a decodable image")
	}
	dims, err := valueobjects.NewDimensions(size.Width, size.Height)
	if err != nil {
		return nil, err
	}
	mimeType := detectedMime
	if mimeType == "" {
		mimeType = cmd.MimeType
	}
	if !h.config.IsMimeTypeAllowed(mimeType) {
		return nil, appErrors.NewValidationError(fmt.Sprintf("mime type '%s' is not allowed", mimeType))
	}

	// Step 3: Optionally strip the background before storing. The cutout
	// becomes the root image and carries a remove-background edit record.
	data := cmd.Data
	var cutoutEdit *entities.AIEdit
	if cmd.RemoveBackground {
		cutoutStart := time.Now()
		cutout, cutErr := h.provider.RemoveBackground(ctx, data, mimeType)
		if cutErr != nil {
			return nil, cutErr
		}
		data = cutout.Data
		mimeType = cutout.MimeType
		if cutSize, _, probeErr := h.processor.Probe(data); probeErr == nil {
			if cutDims, dimsErr := valueobjects.NewDimensions(cutSize.Width, cutSize.Height); dimsErr == nil {
				dims = cutDims
			}
		}
		cutoutEdit = &entities.AIEdit{
			Operation:      entities.OpRemoveBackground,
			Provider:       entities.Provider(h.provider.Name()),
			Parameters:     map[string]string{"model": cutout.Model},
			Timestamp:      time.Now(),
			ProcessingTime: time.Since(cutoutStart),
		}
	}

	// Step 4: Store the blob and its thumbnail
	key := fmt.Sprintf("users/%s/images/%s%s", cmd.UserID, uuid.New().String(), extensionFor(mimeType))
	url, err := h.blobs.Put(ctx, key, data, mimeType)
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to store uploaded image")
	}

	thumbKey, thumbnailURL := "", ""
	if thumb, thumbErr := h.processor.Thumbnail(data, 512); thumbErr == nil {
		thumbKey = fmt.Sprintf("users/%s/thumbnails/%s.jpg", cmd.UserID, uuid.New().String())
		if thumbnailURL, thumbErr = h.blobs.Put(ctx, thumbKey, thumb, "image/jpeg"); thumbErr != nil {
			h.logger.Warn("thumbnail upload failed", "error", thumbErr.Error())
			thumbKey, thumbnailURL = "", ""
		}
	} else {
		h.logger.Warn("thumbnail generation failed", "error", thumbErr.Error())
	}

	// Step 5: Create the root node
	blob := entities.BlobInfo{
		URL:              url,
		ThumbnailURL:     thumbnailURL,
		StorageKey:       key,
		ThumbnailKey:     thumbKey,
		Filename:         key,
		OriginalFilename: cmd.Filename,
		MimeType:         mimeType,
		Size:             int64(len(data)),
	}
	node, err := entities.NewOriginalImage(cmd.UserID, blob, dims)
	if err != nil {
		h.cleanup(ctx, key, thumbKey)
		return nil, err
	}
	if cutoutEdit != nil {
		if err := node.RecordEdit(*cutoutEdit); err != nil {
			h.cleanup(ctx, key, thumbKey)
			return nil, err
		}
	}

	if cmd.Title != "" || cmd.Description != "" || cmd.Category != "" {
		category := entities.Category(cmd.Category)
		if cmd.Category == "" {
			category = entities.CategoryOther
		}
		if err := node.SetMetadata(cmd.Title, cmd.Description, category); err != nil {
			h.cleanup(ctx, key, thumbKey)
			return nil, err
		}
	}
	for _, tag := range cmd.Tags {
		if tagErr := node.AddTagWithConfig(tag, h.config); tagErr != nil {
			h.cleanup(ctx, key, thumbKey)
			return nil, tagErr
		}
	}
	node.SetPublic(cmd.IsPublic)
	if cmd.IsBackgroundOnly {
		node.SetBackgroundOnly(true)
	}

	// Step 6: Persist the node
	if err := h.images.Save(ctx, node); err != nil {
		h.cleanup(ctx, key, thumbKey)
		return nil, appErrors.Wrap(err, "failed to save uploaded image")
	}

	// Step 7: Publish domain events (log errors but don't fail the operation)
	if events := node.GetUncommittedEvents(); len(events) > 0 {
		if err := h.publisher.PublishBatch(ctx, events); err != nil {
			h.logger.Error("failed to publish events", "error", err.Error(), "count", len(events))
		} else {
			node.MarkEventsAsCommitted()
		}
	}

	h.logger.Info("uploaded original image",
		"userId", cmd.UserID,
		"imageId", node.ID().String(),
		"mimeType", mimeType,
		"bytes", len(data),
		"durationMs", time.Since(start).Milliseconds())

	return node, nil
}

func (h *UploadImageHandler) cleanup(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := h.blobs.Delete(ctx, key); err != nil {
			h.logger.Error("blob cleanup failed", "key", key, "error", err.Error())
		}
	}
}
