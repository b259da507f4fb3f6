package handlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"imagio-backend/application/ports"
	"imagio-backend/domain/background"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	"imagio-backend/domain/events"
	appErrors "imagio-backend/pkg/errors"
)

type fakeImageRepository struct {
	mu           sync.Mutex
	nodes        map[string]*entities.ImageNode
	failSave     bool
	failAddChild bool
}

func newFakeImageRepository() *fakeImageRepository {
	return &fakeImageRepository{nodes: make(map[string]*entities.ImageNode)}
}

func (r *fakeImageRepository) Save(ctx context.Context, node *entities.ImageNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failSave {
		return fmt.Errorf("save failed")
	}
	r.nodes[node.ID().String()] = node
	return nil
}

func (r *fakeImageRepository) GetByID(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	node, err := r.GetByIDIncludingDeleted(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if node.IsDeleted() {
		return nil, appErrors.ErrImageNotFound
	}
	return node, nil
}

func (r *fakeImageRepository) GetByIDIncludingDeleted(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id.String()]
	if !ok || node.UserID() != userID {
		return nil, appErrors.ErrImageNotFound
	}
	return node, nil
}

func (r *fakeImageRepository) GetByIDAndIncrementViews(ctx context.Context, userID string, id valueobjects.ImageID) (*entities.ImageNode, error) {
	return r.GetByID(ctx, userID, id)
}

func (r *fakeImageRepository) AddChild(ctx context.Context, userID string, parentID, childID valueobjects.ImageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAddChild {
		return fmt.Errorf("add child failed")
	}
	parent, ok := r.nodes[parentID.String()]
	if !ok {
		return appErrors.ErrImageNotFound
	}
	parent.RegisterChild(childID)
	return nil
}

func (r *fakeImageRepository) ListByUser(ctx context.Context, userID string, filter ports.ImageFilter) ([]*entities.ImageNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ImageNode
	for _, node := range r.nodes {
		if node.UserID() == userID {
			out = append(out, node)
		}
	}
	return out, nil
}

func (r *fakeImageRepository) ListBackgrounds(ctx context.Context, userID string, excludeID valueobjects.ImageID) ([]*entities.ImageNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ImageNode
	for _, node := range r.nodes {
		if node.UserID() == userID && node.IsBackgroundOnly() && !node.ID().Equals(excludeID) {
			out = append(out, node)
		}
	}
	return out, nil
}

func (r *fakeImageRepository) GetChildren(ctx context.Context, userID string, parentID valueobjects.ImageID) ([]*entities.ImageNode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.ImageNode
	for _, node := range r.nodes {
		if node.UserID() == userID && node.ParentID() != nil && node.ParentID().Equals(parentID) {
			out = append(out, node)
		}
	}
	return out, nil
}

func (r *fakeImageRepository) SoftDelete(ctx context.Context, userID string, id valueobjects.ImageID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[id.String()]
	if !ok || node.UserID() != userID {
		return appErrors.ErrImageNotFound
	}
	return node.SoftDelete()
}

func (r *fakeImageRepository) HardDelete(ctx context.Context, userID string, id valueobjects.ImageID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id.String())
	return nil
}

func (r *fakeImageRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	mimes   map[string]string
	failPut bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte), mimes: make(map[string]string)}
}

func (b *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return "", fmt.Errorf("put failed")
	}
	b.blobs[key] = data
	b.mimes[key] = contentType
	return "https://blobs.test/" + key, nil
}

func (b *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, "", fmt.Errorf("blob %s not found", key)
	}
	return data, b.mimes[key], nil
}

func (b *fakeBlobStore) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	delete(b.mimes, key)
	return nil
}

func (b *fakeBlobStore) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

type fakeProvider struct {
	mu       sync.Mutex
	calls    int
	fail     bool
	fallback bool
	lastReq  ports.GenerationRequest
}

func (p *fakeProvider) Generate(ctx context.Context, req ports.GenerationRequest) (*ports.GeneratedImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastReq = req
	if p.fail {
		return nil, appErrors.NewProviderError("stability-ai", fmt.Errorf("boom"))
	}
	return &ports.GeneratedImage{
		Data:         []byte("scene-png"),
		MimeType:     "image/png",
		Model:        "sdxl-1.0",
		FallbackUsed: p.fallback,
	}, nil
}

func (p *fakeProvider) RemoveBackground(ctx context.Context, image []byte, mimeType string) (*ports.GeneratedImage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return nil, appErrors.NewProviderError("stability-ai", fmt.Errorf("boom"))
	}
	return &ports.GeneratedImage{
		Data:     []byte("cutout-png"),
		MimeType: "image/png",
		Model:    "stable-image-remove-background",
	}, nil
}

func (p *fakeProvider) Name() string { return "stability-ai" }

type fakeVision struct {
	analysis *background.VisionAnalysis
	fail     bool
}

func (v *fakeVision) AnalyzeProduct(ctx context.Context, image []byte, mimeType, metadataSummary, userPrompt string) (*background.VisionAnalysis, error) {
	if v.fail {
		return nil, fmt.Errorf("vision unavailable")
	}
	return v.analysis, nil
}

func (v *fakeVision) ExtractText(ctx context.Context, image []byte, mimeType string) (string, error) {
	return "", nil
}

func (v *fakeVision) RecognizeItems(ctx context.Context, image []byte, mimeType string) ([]string, error) {
	return nil, nil
}

// fakeProcessor reports sizes registered per payload and produces marker
// outputs for transforms.
type fakeProcessor struct {
	sizes map[string]background.Size
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sizes: make(map[string]background.Size)}
}

func (p *fakeProcessor) register(data []byte, width, height int) {
	p.sizes[string(data)] = background.Size{Width: width, Height: height}
}

func (p *fakeProcessor) Probe(data []byte) (background.Size, string, error) {
	if size, ok := p.sizes[string(data)]; ok {
		return size, "image/png", nil
	}
	return background.Size{Width: 1024, Height: 1024}, "image/png", nil
}

func (p *fakeProcessor) Composite(background_, product []byte, placement background.Placement) ([]byte, error) {
	return []byte(fmt.Sprintf("composite(%s+%s@%d,%d)", background_, product, placement.Left, placement.Top)), nil
}

func (p *fakeProcessor) Resize(data []byte, width, height int) ([]byte, error) {
	return []byte(fmt.Sprintf("resized(%s:%dx%d)", data, width, height)), nil
}

func (p *fakeProcessor) BlurRegion(data []byte, x, y, width, height int, sigma float64) ([]byte, error) {
	return []byte(fmt.Sprintf("blurred(%s:%d,%d,%dx%d)", data, x, y, width, height)), nil
}

func (p *fakeProcessor) Thumbnail(data []byte, maxEdge int) ([]byte, error) {
	return []byte(fmt.Sprintf("thumb(%s)", data)), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, batch...)
	return nil
}

func (p *fakePublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.GetEventType())
	}
	return types
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
