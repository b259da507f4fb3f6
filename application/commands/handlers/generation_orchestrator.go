package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"imagio-backend/application/commands"
	"imagio-backend/application/ports"
	"imagio-backend/domain/background"
	domainConfig "imagio-backend/domain/config"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"

	"github.com/google/uuid"
)

// Logger interface for the orchestrator
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// GenerationOrchestrator coordinates the creation of derived image versions.
// Provider-backed kinds call the generation service and composite the result;
// local kinds transform pixels in-process. Either way the outcome is a child
// node linked under the source image, or no node at all.
type GenerationOrchestrator struct {
	images    ports.ImageRepository
	blobs     ports.BlobStore
	provider  ports.GenerationProvider
	vision    ports.VisionAnalyzer
	processor ports.ImageProcessor
	publisher ports.EventPublisher
	config    *domainConfig.DomainConfig
	logger    Logger
}

// NewGenerationOrchestrator creates a new orchestrator with injected dependencies
func NewGenerationOrchestrator(
	images ports.ImageRepository,
	blobs ports.BlobStore,
	provider ports.GenerationProvider,
	vision ports.VisionAnalyzer,
	processor ports.ImageProcessor,
	publisher ports.EventPublisher,
	config *domainConfig.DomainConfig,
	logger Logger,
) *GenerationOrchestrator {
	return &GenerationOrchestrator{
		images:    images,
		blobs:     blobs,
		provider:  provider,
		vision:    vision,
		processor: processor,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// generationResult carries the produced pixels and their provenance out of the
// per-kind dispatch.
type generationResult struct {
	data           []byte
	mimeType       string
	operation      entities.EditOperation
	prompt         string
	promptSource   background.PromptSource
	theme          background.Theme
	placement      *background.Placement
	parameters     map[string]string
	backgroundOnly bool
	fallbackUsed   bool
}

// GenerationOutcome pairs the new version with its source image. The source
// reflects the fresh child link.
type GenerationOutcome struct {
	Source *entities.ImageNode
	Image  *entities.ImageNode
}

// Handle orchestrates a single generation request end to end.
func (o *GenerationOrchestrator) Handle(ctx context.Context, cmd commands.GenerateVersionCommand) (*GenerationOutcome, error) {
	start := time.Now()

	// Step 1: Validate command
	if err := cmd.Validate(); err != nil {
		return nil, appErrors.Wrap(err, "invalid generation command")
	}
	imageID, err := valueobjects.NewImageIDFromString(cmd.ImageID)
	if err != nil {
		return nil, appErrors.NewValidationError("invalid image ID")
	}

	// Step 2: Load the source image. The lookup tolerates soft deletion so a
	// deleted source reports its state instead of vanishing.
	source, err := o.images.GetByIDIncludingDeleted(ctx, cmd.UserID, imageID)
	if err != nil {
		return nil, err
	}
	if source.IsDeleted() {
		return nil, appErrors.ErrImageDeleted
	}
	if source.Status() != entities.StatusCompleted {
		return nil, appErrors.ErrImageNotReady
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.GenerationTimeout)
	defer cancel()

	sourceData, sourceMime, err := o.blobs.Get(ctx, source.StorageKey())
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load source image data")
	}

	// Step 3: Produce the edited pixels for the requested kind
	result, err := o.dispatch(ctx, cmd, source, sourceData, sourceMime)
	if err != nil {
		return nil, err
	}

	// Step 4: Persist the blob before the node so a committed node always has data
	outSize, outMime, err := o.processor.Probe(result.data)
	if err != nil {
		return nil, appErrors.Wrap(err, "generated image is not decodable")
	}
	outDims, err := valueobjects.NewDimensions(outSize.Width, outSize.Height)
	if err != nil {
		return nil, err
	}
	if result.mimeType == "" {
		result.mimeType = outMime
	}

	key := fmt.Sprintf("users/%s/images/%s%s", cmd.UserID, uuid.New().String(), extensionFor(result.mimeType))

	var url, thumbKey, thumbnailURL string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		stored, putErr := o.blobs.Put(gctx, key, result.data, result.mimeType)
		if putErr != nil {
			return appErrors.Wrap(putErr, "failed to store generated image")
		}
		url = stored
		return nil
	})
	g.Go(func() error {
		thumbKey, thumbnailURL = o.storeThumbnail(gctx, cmd.UserID, result.data)
		return nil
	})
	if err := g.Wait(); err != nil {
		o.cleanupBlobs(ctx, key, thumbKey)
		return nil, err
	}

	// Step 5: Create and persist the child node
	blob := entities.BlobInfo{
		StorageKey:   key,
		ThumbnailKey: thumbKey,
		URL:          url,
		ThumbnailURL: thumbnailURL,
		MimeType:     result.mimeType,
		Size:         int64(len(result.data)),
	}
	edit := entities.AIEdit{
		Operation:      result.operation,
		Provider:       o.providerName(result.operation),
		Prompt:         result.prompt,
		Parameters:     provenanceParameters(result),
		Timestamp:      time.Now(),
		ProcessingTime: time.Since(start),
	}

	child, err := entities.NewDerivedImage(source, blob, outDims, edit)
	if err != nil {
		o.cleanupBlobs(ctx, key, thumbKey)
		return nil, err
	}
	for _, tag := range provenanceTags(result) {
		if tagErr := child.AddTagWithConfig(tag, o.config); tagErr != nil {
			o.logger.Debug("skipping provenance tag", "tag", tag, "error", tagErr.Error())
		}
	}
	if result.backgroundOnly {
		child.SetBackgroundOnly(true)
	}

	if err := o.images.Save(ctx, child); err != nil {
		o.cleanupBlobs(ctx, key, thumbKey)
		return nil, appErrors.Wrap(err, "failed to save generated version")
	}

	// Step 6: Link the child under its parent
	if err := o.images.AddChild(ctx, cmd.UserID, source.ID(), child.ID()); err != nil {
		// Roll back the orphaned node so the tree stays consistent
		if delErr := o.images.HardDelete(ctx, cmd.UserID, child.ID()); delErr != nil {
			o.logger.Error("rollback of orphaned version failed",
				"childId", child.ID().String(),
				"error", delErr.Error())
		}
		o.cleanupBlobs(ctx, key, thumbKey)
		return nil, appErrors.Wrap(err, "failed to link generated version")
	}

	source.RegisterChild(child.ID())

	// Step 7: Publish domain events (log errors but don't fail the operation)
	o.publishEvents(ctx, child)

	o.logger.Info("generated image version",
		"userId", cmd.UserID,
		"parentId", source.ID().String(),
		"childId", child.ID().String(),
		"kind", string(cmd.Kind),
		"version", child.Version(),
		"durationMs", time.Since(start).Milliseconds())

	return &GenerationOutcome{Source: source, Image: child}, nil
}

// provenanceParameters folds the staging decisions into the edit's parameter
// map so a version records how it was produced, not just with what model.
func provenanceParameters(result *generationResult) map[string]string {
	params := make(map[string]string, len(result.parameters)+5)
	for k, v := range result.parameters {
		params[k] = v
	}
	if result.theme != "" {
		params["theme"] = string(result.theme)
	}
	if result.promptSource != "" {
		params["promptSource"] = string(result.promptSource)
	}
	if result.placement != nil {
		params["placementMode"] = string(result.placement.Mode)
		params["placementLeft"] = fmt.Sprintf("%d", result.placement.Left)
		params["placementTop"] = fmt.Sprintf("%d", result.placement.Top)
	}
	return params
}

func (o *GenerationOrchestrator) dispatch(ctx context.Context, cmd commands.GenerateVersionCommand, source *entities.ImageNode, sourceData []byte, sourceMime string) (*generationResult, error) {
	switch cmd.Kind {
	case commands.KindNewBackground:
		return o.generateNewBackground(ctx, cmd, source, sourceData, sourceMime, true)
	case commands.KindSuitableBackground:
		return o.generateNewBackground(ctx, cmd, source, sourceData, sourceMime, false)
	case commands.KindSelectedBackground:
		return o.applySelectedBackground(ctx, cmd, source, sourceData)
	case commands.KindResize:
		return o.resize(cmd, sourceData, sourceMime)
	case commands.KindBlurRegion:
		return o.blurRegion(cmd, source, sourceData, sourceMime)
	case commands.KindMergeLogo:
		return o.mergeLogo(ctx, cmd, sourceData, sourceMime)
	case commands.KindEnhance:
		return o.enhance(ctx, cmd, source, sourceData, sourceMime)
	case commands.KindStyleChange:
		return o.styleChange(ctx, cmd, source, sourceData, sourceMime)
	default:
		return nil, appErrors.NewValidationError(fmt.Sprintf("unsupported generation kind '%s'", cmd.Kind))
	}
}

// generateNewBackground resolves a prompt, generates a scene and, when
// composite is true, places the product into it. With composite false the
// bare scene is kept as a reusable background.
func (o *GenerationOrchestrator) generateNewBackground(ctx context.Context, cmd commands.GenerateVersionCommand, source *entities.ImageNode, sourceData []byte, sourceMime string, composite bool) (*generationResult, error) {
	meta := metaFor(source)
	analysis := o.analyzeProduct(ctx, sourceData, sourceMime, meta, cmd.Prompt)

	plan := background.ResolvePrompt(meta, cmd.Prompt, cmd.NegativePrompt, analysis)

	srcDims := source.Dimensions()
	target := background.NormalizeSize(requestedOr(cmd.Width, srcDims.Width()), requestedOr(cmd.Height, srcDims.Height()))

	o.logger.Debug("resolved generation prompt",
		"theme", string(plan.Theme),
		"source", string(plan.Source),
		"width", target.Width,
		"height", target.Height)

	generated, err := o.provider.Generate(ctx, ports.GenerationRequest{
		Prompt:         plan.Prompt,
		NegativePrompt: plan.NegativePrompt,
		Width:          target.Width,
		Height:         target.Height,
		Seed:           cmd.Seed,
		StylePreset:    cmd.StylePreset,
		SourceImage:    sourceData,
		SourceMime:     sourceMime,
	})
	if err != nil {
		return nil, err
	}

	result := &generationResult{
		data:         generated.Data,
		mimeType:     generated.MimeType,
		operation:    entities.OpReplaceBackground,
		prompt:       plan.Prompt,
		promptSource: plan.Source,
		theme:        plan.Theme,
		fallbackUsed: generated.FallbackUsed,
		parameters: map[string]string{
			"width":  fmt.Sprintf("%d", target.Width),
			"height": fmt.Sprintf("%d", target.Height),
			"model":  generated.Model,
		},
	}
	if !composite {
		result.operation = entities.OpTextToImage
		result.backgroundOnly = true
		return result, nil
	}

	composed, placement, err := o.placeProduct(generated.Data, sourceData, plan.Theme)
	if err != nil {
		return nil, err
	}
	result.data = composed
	result.mimeType = ""
	result.placement = &placement
	return result, nil
}

// applySelectedBackground composites the product onto a background the user
// already owns. The chosen image must be a reusable background.
func (o *GenerationOrchestrator) applySelectedBackground(ctx context.Context, cmd commands.GenerateVersionCommand, source *entities.ImageNode, sourceData []byte) (*generationResult, error) {
	backgroundID, err := valueobjects.NewImageIDFromString(cmd.BackgroundID)
	if err != nil {
		return nil, appErrors.NewValidationError("invalid background ID")
	}
	bgNode, err := o.images.GetByIDIncludingDeleted(ctx, cmd.UserID, backgroundID)
	if err != nil {
		return nil, err
	}
	if !bgNode.IsBackgroundOnly() {
		return nil, appErrors.ErrNotBackgroundImage
	}
	if bgNode.IsDeleted() {
		return nil, appErrors.ErrImageDeleted
	}

	bgData, _, err := o.blobs.Get(ctx, bgNode.StorageKey())
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load background image data")
	}

	meta := metaFor(source)
	theme := background.ClassifyTheme(meta)

	composed, placement, err := o.placeProduct(bgData, sourceData, theme)
	if err != nil {
		return nil, err
	}

	return &generationResult{
		data:      composed,
		operation: entities.OpImageToImage,
		theme:     theme,
		placement: &placement,
		parameters: map[string]string{
			"backgroundId": cmd.BackgroundID,
		},
	}, nil
}

func (o *GenerationOrchestrator) resize(cmd commands.GenerateVersionCommand, sourceData []byte, sourceMime string) (*generationResult, error) {
	resized, err := o.processor.Resize(sourceData, cmd.Width, cmd.Height)
	if err != nil {
		return nil, appErrors.Wrap(err, "resize failed")
	}
	return &generationResult{
		data:      resized,
		mimeType:  sourceMime,
		operation: entities.OpCustom,
		parameters: map[string]string{
			"operation": "resize",
			"width":     fmt.Sprintf("%d", cmd.Width),
			"height":    fmt.Sprintf("%d", cmd.Height),
		},
	}, nil
}

func (o *GenerationOrchestrator) blurRegion(cmd commands.GenerateVersionCommand, source *entities.ImageNode, sourceData []byte, sourceMime string) (*generationResult, error) {
	region, err := valueobjects.NewRegion(cmd.RegionX, cmd.RegionY, cmd.RegionWidth, cmd.RegionHeight)
	if err != nil {
		return nil, err
	}
	if !region.Within(source.Dimensions()) {
		return nil, appErrors.ErrRegionOutOfBounds
	}

	sigma := cmd.BlurSigma
	if sigma <= 0 {
		sigma = 8
	}
	blurred, err := o.processor.BlurRegion(sourceData, region.X(), region.Y(), region.Width(), region.Height(), sigma)
	if err != nil {
		return nil, appErrors.Wrap(err, "blur failed")
	}
	return &generationResult{
		data:      blurred,
		mimeType:  sourceMime,
		operation: entities.OpCustom,
		parameters: map[string]string{
			"operation": "blur-region",
			"region":    fmt.Sprintf("%d,%d,%dx%d", region.X(), region.Y(), region.Width(), region.Height()),
		},
	}, nil
}

func (o *GenerationOrchestrator) mergeLogo(ctx context.Context, cmd commands.GenerateVersionCommand, sourceData []byte, sourceMime string) (*generationResult, error) {
	logoID, err := valueobjects.NewImageIDFromString(cmd.LogoID)
	if err != nil {
		return nil, appErrors.NewValidationError("invalid logo ID")
	}
	logoNode, err := o.images.GetByIDIncludingDeleted(ctx, cmd.UserID, logoID)
	if err != nil {
		return nil, err
	}
	if logoNode.IsDeleted() {
		return nil, appErrors.ErrImageDeleted
	}
	logoData, _, err := o.blobs.Get(ctx, logoNode.StorageKey())
	if err != nil {
		return nil, appErrors.Wrap(err, "failed to load logo image data")
	}

	baseSize, _, err := o.processor.Probe(sourceData)
	if err != nil {
		return nil, appErrors.Wrap(err, "source image is not decodable")
	}
	logoSize, _, err := o.processor.Probe(logoData)
	if err != nil {
		return nil, appErrors.Wrap(err, "logo image is not decodable")
	}

	// Pin the logo to the bottom-right corner with a 4% margin.
	marginX := baseSize.Width * 4 / 100
	marginY := baseSize.Height * 4 / 100
	placement := background.Placement{
		Mode: background.PlacementCustom,
		Left: maxOrZero(baseSize.Width - logoSize.Width - marginX),
		Top:  maxOrZero(baseSize.Height - logoSize.Height - marginY),
	}

	merged, err := o.processor.Composite(sourceData, logoData, placement)
	if err != nil {
		return nil, appErrors.Wrap(err, "logo merge failed")
	}
	return &generationResult{
		data:      merged,
		mimeType:  sourceMime,
		operation: entities.OpCustom,
		placement: &placement,
		parameters: map[string]string{
			"operation": "merge-logo",
			"logoId":    cmd.LogoID,
		},
	}, nil
}

func (o *GenerationOrchestrator) enhance(ctx context.Context, cmd commands.GenerateVersionCommand, source *entities.ImageNode, sourceData []byte, sourceMime string) (*generationResult, error) {
	prompt := strings.TrimSpace(cmd.Prompt)
	if prompt == "" {
		prompt = "Enhance sharpness, color fidelity, and lighting of this product photo while keeping the subject unchanged"
	}
	dims := source.Dimensions()
	target := background.NormalizeSize(dims.Width(), dims.Height())

	generated, err := o.provider.Generate(ctx, ports.GenerationRequest{
		Prompt:         prompt,
		NegativePrompt: cmd.NegativePrompt,
		Width:          target.Width,
		Height:         target.Height,
		Seed:           cmd.Seed,
		SourceImage:    sourceData,
		SourceMime:     sourceMime,
	})
	if err != nil {
		return nil, err
	}
	return &generationResult{
		data:         generated.Data,
		mimeType:     generated.MimeType,
		operation:    entities.OpEnhance,
		prompt:       prompt,
		fallbackUsed: generated.FallbackUsed,
		parameters:   map[string]string{"model": generated.Model},
	}, nil
}

func (o *GenerationOrchestrator) styleChange(ctx context.Context, cmd commands.GenerateVersionCommand, source *entities.ImageNode, sourceData []byte, sourceMime string) (*generationResult, error) {
	dims := source.Dimensions()
	target := background.NormalizeSize(dims.Width(), dims.Height())

	generated, err := o.provider.Generate(ctx, ports.GenerationRequest{
		Prompt:         cmd.Prompt,
		NegativePrompt: cmd.NegativePrompt,
		Width:          target.Width,
		Height:         target.Height,
		Seed:           cmd.Seed,
		StylePreset:    cmd.StylePreset,
		SourceImage:    sourceData,
		SourceMime:     sourceMime,
	})
	if err != nil {
		return nil, err
	}
	return &generationResult{
		data:         generated.Data,
		mimeType:     generated.MimeType,
		operation:    entities.OpStyleTransfer,
		prompt:       cmd.Prompt,
		fallbackUsed: generated.FallbackUsed,
		parameters: map[string]string{
			"stylePreset": cmd.StylePreset,
			"model":       generated.Model,
		},
	}, nil
}

// placeProduct composites the product onto a scene at its theme-appropriate
// position and reports where it landed.
func (o *GenerationOrchestrator) placeProduct(sceneData, productData []byte, theme background.Theme) ([]byte, background.Placement, error) {
	sceneSize, _, err := o.processor.Probe(sceneData)
	if err != nil {
		return nil, background.Placement{}, appErrors.Wrap(err, "scene image is not decodable")
	}
	productSize, _, err := o.processor.Probe(productData)
	if err != nil {
		return nil, background.Placement{}, appErrors.Wrap(err, "product image is not decodable")
	}

	placement := background.CalculatePlacement(sceneSize, productSize, theme)

	composed, err := o.processor.Composite(sceneData, productData, placement)
	if err != nil {
		return nil, background.Placement{}, appErrors.Wrap(err, "composite failed")
	}
	return composed, placement, nil
}

// analyzeProduct asks the vision service for staging guidance. The pipeline
// degrades to template prompts when the service is unavailable.
func (o *GenerationOrchestrator) analyzeProduct(ctx context.Context, data []byte, mimeType string, meta background.ImageMeta, userPrompt string) *background.VisionAnalysis {
	if o.vision == nil || !o.config.EnableVisionPrompts {
		return nil
	}
	visionCtx, cancel := context.WithTimeout(ctx, o.config.VisionTimeout)
	defer cancel()

	analysis, err := o.vision.AnalyzeProduct(visionCtx, data, mimeType, metaSummary(meta), userPrompt)
	if err != nil {
		o.logger.Warn("vision analysis unavailable, using template prompt", "error", err.Error())
		return nil
	}
	return analysis
}

// storeThumbnail is best effort. A missing thumbnail never fails generation.
func (o *GenerationOrchestrator) storeThumbnail(ctx context.Context, userID string, data []byte) (string, string) {
	thumb, err := o.processor.Thumbnail(data, 512)
	if err != nil {
		o.logger.Warn("thumbnail generation failed", "error", err.Error())
		return "", ""
	}
	key := fmt.Sprintf("users/%s/thumbnails/%s.jpg", userID, uuid.New().String())
	url, err := o.blobs.Put(ctx, key, thumb, "image/jpeg")
	if err != nil {
		o.logger.Warn("thumbnail upload failed", "error", err.Error())
		return "", ""
	}
	return key, url
}

func (o *GenerationOrchestrator) cleanupBlobs(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := o.blobs.Delete(ctx, key); err != nil {
			o.logger.Error("blob cleanup failed", "key", key, "error", err.Error())
		}
	}
}

func (o *GenerationOrchestrator) publishEvents(ctx context.Context, node *entities.ImageNode) {
	events := node.GetUncommittedEvents()
	if len(events) == 0 {
		return
	}
	if err := o.publisher.PublishBatch(ctx, events); err != nil {
		o.logger.Error("failed to publish events", "error", err.Error(), "count", len(events))
	} else {
		node.MarkEventsAsCommitted()
	}
}

func (o *GenerationOrchestrator) providerName(op entities.EditOperation) entities.Provider {
	switch op {
	case entities.OpCustom, entities.OpImageToImage:
		return entities.ProviderCustom
	default:
		return entities.Provider(o.provider.Name())
	}
}

func metaFor(node *entities.ImageNode) background.ImageMeta {
	return background.ImageMeta{
		Title:       node.Title(),
		Description: node.Description(),
		Category:    string(node.Category()),
		Tags:        node.Tags(),
	}
}

func metaSummary(meta background.ImageMeta) string {
	parts := make([]string, 0, 4)
	if meta.Title != "" {
		parts = append(parts, "Title: "+meta.Title)
	}
	if meta.Description != "" {
		parts = append(parts, "Description: "+meta.Description)
	}
	if meta.Category != "" {
		parts = append(parts, "Category: "+meta.Category)
	}
	if len(meta.Tags) > 0 {
		tags := meta.Tags
		if len(tags) > 8 {
			tags = tags[:8]
		}
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}
	return strings.Join(parts, " | ")
}

func provenanceTags(result *generationResult) []string {
	tags := []string{string(result.operation)}
	if result.theme != "" && result.theme != background.ThemeGeneric {
		tags = append(tags, string(result.theme))
	}
	switch result.promptSource {
	case background.PromptSourceUser:
		tags = append(tags, "custom-prompt")
	case background.PromptSourceUserVision:
		tags = append(tags, "custom-prompt", "vision-assisted")
	case background.PromptSourceVisionAuto:
		tags = append(tags, "vision-assisted")
	case background.PromptSourceAuto:
		tags = append(tags, "auto-prompt")
	}
	if result.fallbackUsed {
		tags = append(tags, "fallback-model")
	}
	return tags
}

func requestedOr(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

func maxOrZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
