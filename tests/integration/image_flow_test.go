package integration

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"imagio-backend/application/commands"
	"imagio-backend/application/commands/handlers"
	"imagio-backend/application/ports"
	"imagio-backend/application/queries"
	queryHandlers "imagio-backend/application/queries/handlers"
	"imagio-backend/domain/background"
	domainConfig "imagio-backend/domain/config"
	"imagio-backend/domain/events"
	"imagio-backend/infrastructure/imaging"
	"imagio-backend/infrastructure/persistence/memory"
)

// TestImageLifecycle drives the full flow through real application handlers:
// upload an original, derive versions from it, read the tree back, and
// delete. Storage is in-memory, pixel work is real.
func TestImageLifecycle(t *testing.T) {
	ctx := context.Background()

	repo := memory.NewImageRepository()
	blobs := newMemoryBlobStore()
	processor := imaging.NewProcessor()
	publisher := &capturingPublisher{}
	provider := &pngProvider{width: 1024, height: 768}
	vision := &staticVision{}
	cfg := domainConfig.DefaultDomainConfig()
	logger := nopLogger{}

	uploadHandler := handlers.NewUploadImageHandler(repo, blobs, processor, provider, publisher, cfg, logger)
	orchestrator := handlers.NewGenerationOrchestrator(repo, blobs, provider, vision, processor, publisher, cfg, logger)
	deleteHandler := handlers.NewDeleteImageHandler(repo, blobs, publisher, logger)

	// Upload an 800x600 original
	original, err := uploadHandler.Handle(ctx, commands.UploadImageCommand{
		UserID:   "user-1",
		Data:     solidPNG(800, 600, color.NRGBA{R: 200, G: 40, B: 40, A: 255}),
		Filename: "product.png",
		MimeType: "image/png",
		Title:    "Red mug",
		Category: "product",
		Tags:     []string{"mug"},
	})
	require.NoError(t, err)
	require.True(t, original.IsOriginal())
	assert.Equal(t, 800, original.Dimensions().Width())

	// Derive a resized version
	resizedOut, err := orchestrator.Handle(ctx, commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: original.ID().String(),
		Kind:    commands.KindResize,
		Width:   400,
		Height:  300,
	})
	require.NoError(t, err)
	resized := resizedOut.Image
	require.NotNil(t, resized.ParentID())
	assert.True(t, resized.ParentID().Equals(original.ID()))
	assert.Equal(t, 2, resized.Version())

	resizedData, _, err := blobs.Get(ctx, resized.StorageKey())
	require.NoError(t, err)
	size, mime, err := processor.Probe(resizedData)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	assert.Equal(t, 400, size.Width)
	assert.Equal(t, 300, size.Height)

	// Derive a generated background composite
	compositeOut, err := orchestrator.Handle(ctx, commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: original.ID().String(),
		Kind:    commands.KindNewBackground,
		Prompt:  "on a marble countertop",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, provider.calls)
	composite := compositeOut.Image
	assert.True(t, composite.ParentID().Equals(original.ID()))
	require.NotNil(t, compositeOut.Source)
	assert.Len(t, compositeOut.Source.Children(), 2, "returned source carries both derived versions")

	compositeData, _, err := blobs.Get(ctx, composite.StorageKey())
	require.NoError(t, err)
	_, _, err = image.Decode(bytes.NewReader(compositeData))
	require.NoError(t, err)

	// The tree now holds the original and two children
	versionsHandler := queryHandlers.NewGetVersionsHandler(repo, zap.NewNop())
	versions, err := versionsHandler.Handle(ctx, queries.GetVersionsQuery{
		UserID:  "user-1",
		ImageID: resized.ID().String(),
	})
	require.NoError(t, err)
	assert.Equal(t, original.ID().String(), versions.RootID)
	assert.Len(t, versions.Versions, 3)

	history, err := versionsHandler.HandleHistory(ctx, queries.GetHistoryQuery{
		UserID:  "user-1",
		ImageID: resized.ID().String(),
	})
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, original.ID().String(), history.History[0].ID)
	assert.Equal(t, resized.ID().String(), history.History[1].ID)

	// Reading a version counts a view
	getHandler := queryHandlers.NewGetImageHandler(repo, zap.NewNop())
	got, err := getHandler.Handle(ctx, queries.GetImageQuery{
		UserID:  "user-1",
		ImageID: original.ID().String(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Image.Views)
	assert.Len(t, got.Children, 2)

	// Delete the resized version; its blob goes, the record stays
	err = deleteHandler.Handle(ctx, commands.DeleteImageCommand{
		UserID:  "user-1",
		ImageID: resized.ID().String(),
	})
	require.NoError(t, err)

	_, _, err = blobs.Get(ctx, resized.StorageKey())
	assert.Error(t, err)

	afterDelete, err := versionsHandler.Handle(ctx, queries.GetVersionsQuery{
		UserID:         "user-1",
		ImageID:        original.ID().String(),
		IncludeDeleted: true,
	})
	require.NoError(t, err)
	assert.Len(t, afterDelete.Versions, 3)

	// Every step produced domain events
	types := publisher.eventTypes()
	assert.Contains(t, types, "image.uploaded")
	assert.Contains(t, types, "image.version_created")
	assert.Contains(t, types, "image.deleted")
}

// TestImageLifecycle_UserIsolation verifies one user cannot read or edit
// another user's images.
func TestImageLifecycle_UserIsolation(t *testing.T) {
	ctx := context.Background()

	repo := memory.NewImageRepository()
	blobs := newMemoryBlobStore()
	processor := imaging.NewProcessor()
	publisher := &capturingPublisher{}
	cfg := domainConfig.DefaultDomainConfig()

	uploadHandler := handlers.NewUploadImageHandler(repo, blobs, processor, &pngProvider{width: 512, height: 512}, publisher, cfg, nopLogger{})
	orchestrator := handlers.NewGenerationOrchestrator(repo, blobs, &pngProvider{width: 512, height: 512}, &staticVision{}, processor, publisher, cfg, nopLogger{})

	node, err := uploadHandler.Handle(ctx, commands.UploadImageCommand{
		UserID:   "owner",
		Data:     solidPNG(640, 480, color.NRGBA{G: 180, A: 255}),
		Filename: "private.png",
		MimeType: "image/png",
	})
	require.NoError(t, err)

	getHandler := queryHandlers.NewGetImageHandler(repo, zap.NewNop())
	_, err = getHandler.Handle(ctx, queries.GetImageQuery{UserID: "intruder", ImageID: node.ID().String()})
	assert.Error(t, err)

	_, err = orchestrator.Handle(ctx, commands.GenerateVersionCommand{
		UserID:  "intruder",
		ImageID: node.ID().String(),
		Kind:    commands.KindResize,
		Width:   100,
		Height:  100,
	})
	assert.Error(t, err)
}

func solidPNG(width, height int, c color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

type memoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	mimes map[string]string
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{blobs: make(map[string][]byte), mimes: make(map[string]string)}
}

func (b *memoryBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = data
	b.mimes[key] = contentType
	return "https://blobs.test/" + key, nil
}

func (b *memoryBlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, "", fmt.Errorf("blob %s not found", key)
	}
	return data, b.mimes[key], nil
}

func (b *memoryBlobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	delete(b.mimes, key)
	return nil
}

// pngProvider stands in for the generation service and returns a real,
// decodable scene image.
type pngProvider struct {
	width  int
	height int
	calls  int
}

func (p *pngProvider) Generate(ctx context.Context, req ports.GenerationRequest) (*ports.GeneratedImage, error) {
	p.calls++
	return &ports.GeneratedImage{
		Data:     solidPNG(p.width, p.height, color.NRGBA{B: 220, A: 255}),
		MimeType: "image/png",
		Model:    "sdxl-1.0",
	}, nil
}

func (p *pngProvider) RemoveBackground(ctx context.Context, data []byte, mimeType string) (*ports.GeneratedImage, error) {
	p.calls++
	return &ports.GeneratedImage{
		Data:     solidPNG(p.width, p.height, color.NRGBA{A: 0}),
		MimeType: "image/png",
		Model:    "stable-image-remove-background",
	}, nil
}

func (p *pngProvider) Name() string { return "stability-ai" }

type staticVision struct{}

func (v *staticVision) AnalyzeProduct(ctx context.Context, image []byte, mimeType, metadataSummary, userPrompt string) (*background.VisionAnalysis, error) {
	return nil, nil
}

func (v *staticVision) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	return "", nil
}

func (v *staticVision) RecognizeItems(ctx context.Context, image []byte, mimeType string) ([]string, error) {
	return nil, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *capturingPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, batch...)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.GetEventType())
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
