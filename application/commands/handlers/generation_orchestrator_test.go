package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagio-backend/application/commands"
	domainConfig "imagio-backend/domain/config"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"
)

type orchestratorFixture struct {
	repo      *fakeImageRepository
	blobs     *fakeBlobStore
	provider  *fakeProvider
	vision    *fakeVision
	processor *fakeProcessor
	publisher *fakePublisher
	handler   *GenerationOrchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		repo:      newFakeImageRepository(),
		blobs:     newFakeBlobStore(),
		provider:  &fakeProvider{},
		vision:    &fakeVision{},
		processor: newFakeProcessor(),
		publisher: &fakePublisher{},
	}
	f.handler = NewGenerationOrchestrator(
		f.repo, f.blobs, f.provider, f.vision, f.processor, f.publisher,
		domainConfig.DefaultDomainConfig(), nopLogger{},
	)
	return f
}

// seedSource stores a completed original image plus its blob so generation
// commands have something to operate on.
func (f *orchestratorFixture) seedSource(t *testing.T, userID string, data []byte, width, height int) *entities.ImageNode {
	t.Helper()
	f.processor.register(data, width, height)
	key := "users/" + userID + "/images/source.png"
	_, err := f.blobs.Put(context.Background(), key, data, "image/png")
	require.NoError(t, err)

	dims, err := valueobjects.NewDimensions(width, height)
	require.NoError(t, err)
	node, err := entities.NewOriginalImage(userID, entities.BlobInfo{
		URL:        "https://blobs.test/" + key,
		StorageKey: key,
		MimeType:   "image/png",
		Size:       int64(len(data)),
	}, dims)
	require.NoError(t, err)
	node.MarkEventsAsCommitted()
	require.NoError(t, f.repo.Save(context.Background(), node))
	return node
}

func TestGenerationOrchestrator_NewBackground(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)

	res, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	child := res.Image

	assert.Equal(t, 2, child.Version())
	require.NotNil(t, child.ParentID())
	assert.True(t, child.ParentID().Equals(source.ID()))
	assert.False(t, child.IsOriginal())

	// Parent now references the child, both in storage and in the returned
	// source
	parent, err := f.repo.GetByID(context.Background(), "user-1", source.ID())
	require.NoError(t, err)
	require.Len(t, parent.Children(), 1)
	assert.True(t, parent.Children()[0].Equals(child.ID()))
	require.NotNil(t, res.Source)
	require.Len(t, res.Source.Children(), 1)
	assert.True(t, res.Source.Children()[0].Equals(child.ID()))

	// The composite reached the blob store
	data, _, err := f.blobs.Get(context.Background(), child.StorageKey())
	require.NoError(t, err)
	assert.Contains(t, string(data), "composite(")
	assert.Contains(t, string(data), "product-png")

	// Provenance: no user prompt and no vision analysis means auto prompt,
	// and the edit records how the product was staged
	require.Len(t, child.Edits(), 1)
	edit := child.Edits()[0]
	assert.Equal(t, entities.OpReplaceBackground, edit.Operation)
	assert.Contains(t, child.Tags(), "auto-prompt")
	assert.Equal(t, "generic", edit.Parameters["theme"])
	assert.Equal(t, "auto", edit.Parameters["promptSource"])
	assert.NotEmpty(t, edit.Parameters["placementMode"])
	assert.NotEmpty(t, edit.Parameters["placementLeft"])
	assert.NotEmpty(t, edit.Parameters["placementTop"])

	assert.Contains(t, f.publisher.eventTypes(), "image.version_created")
}

func TestGenerationOrchestrator_UserPromptTagging(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)

	res, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
		Prompt:  "on a marble table at sunset",
	})
	require.NoError(t, err)
	child := res.Image

	assert.Contains(t, child.Tags(), "custom-prompt")
	assert.Equal(t, "on a marble table at sunset", f.provider.lastReq.Prompt)
}

func TestGenerationOrchestrator_ProviderFailureCommitsNothing(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)
	f.provider.fail = true

	blobsBefore := f.blobs.count()

	_, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsProvider(err))

	assert.Equal(t, 1, f.repo.count(), "no child node may be committed")
	assert.Equal(t, blobsBefore, f.blobs.count(), "no blob may be left behind")

	parent, getErr := f.repo.GetByID(context.Background(), "user-1", source.ID())
	require.NoError(t, getErr)
	assert.Empty(t, parent.Children())
}

func TestGenerationOrchestrator_LinkFailureRollsBack(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)
	f.repo.failAddChild = true

	blobsBefore := f.blobs.count()

	_, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
	})
	require.Error(t, err)

	assert.Equal(t, 1, f.repo.count(), "orphaned child must be rolled back")
	assert.Equal(t, blobsBefore, f.blobs.count())
}

func TestGenerationOrchestrator_SuitableBackgroundIsBackgroundOnly(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)

	res, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindSuitableBackground,
	})
	require.NoError(t, err)
	child := res.Image

	assert.True(t, child.IsBackgroundOnly())
	require.Len(t, child.Edits(), 1)
	assert.Equal(t, entities.OpTextToImage, child.Edits()[0].Operation)

	// The bare scene is stored, not a composite
	data, _, err := f.blobs.Get(context.Background(), child.StorageKey())
	require.NoError(t, err)
	assert.Equal(t, "scene-png", string(data))
}

func TestGenerationOrchestrator_SelectedBackground(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 400, 300)

	bg := f.seedSource(t, "user-1", []byte("bg-png"), 1024, 1024)
	bg.SetBackgroundOnly(true)

	res, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:       "user-1",
		ImageID:      source.ID().String(),
		Kind:         commands.KindSelectedBackground,
		BackgroundID: bg.ID().String(),
	})
	require.NoError(t, err)
	child := res.Image

	require.NotNil(t, child.ParentID())
	assert.True(t, child.ParentID().Equals(source.ID()), "child hangs under the product, not the background")

	data, _, err := f.blobs.Get(context.Background(), child.StorageKey())
	require.NoError(t, err)
	assert.Contains(t, string(data), "bg-png")
	assert.Contains(t, string(data), "product-png")
	assert.Equal(t, 0, f.provider.calls, "local composite must not call the provider")
}

func TestGenerationOrchestrator_SelectedBackgroundRejectsNonBackground(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 400, 300)
	other := f.seedSource(t, "user-1", []byte("other-png"), 1024, 1024)

	_, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:       "user-1",
		ImageID:      source.ID().String(),
		Kind:         commands.KindSelectedBackground,
		BackgroundID: other.ID().String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrNotBackgroundImage)
}

func TestGenerationOrchestrator_Resize(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)

	res, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindResize,
		Width:   320,
		Height:  240,
	})
	require.NoError(t, err)
	child := res.Image

	data, _, err := f.blobs.Get(context.Background(), child.StorageKey())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "resized("))
	assert.Equal(t, 0, f.provider.calls)
	require.Len(t, child.Edits(), 1)
	assert.Equal(t, entities.OpCustom, child.Edits()[0].Operation)
	assert.Equal(t, entities.ProviderCustom, child.Edits()[0].Provider)
}

func TestGenerationOrchestrator_BlurRegionBounds(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)

	t.Run("inside bounds", func(t *testing.T) {
		res, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
			UserID:       "user-1",
			ImageID:      source.ID().String(),
			Kind:         commands.KindBlurRegion,
			RegionX:      10,
			RegionY:      10,
			RegionWidth:  100,
			RegionHeight: 100,
		})
		require.NoError(t, err)
		data, _, err := f.blobs.Get(context.Background(), res.Image.StorageKey())
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "blurred("))
	})

	t.Run("region exceeds image", func(t *testing.T) {
		_, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
			UserID:       "user-1",
			ImageID:      source.ID().String(),
			Kind:         commands.KindBlurRegion,
			RegionX:      700,
			RegionY:      500,
			RegionWidth:  200,
			RegionHeight: 200,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrRegionOutOfBounds)
	})
}

func TestGenerationOrchestrator_DeletedSourceRejected(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)
	require.NoError(t, source.SoftDelete())

	_, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrImageDeleted)
}

func TestGenerationOrchestrator_OtherUsersImageHidden(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)

	_, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-2",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrImageNotFound)
}

func TestGenerationOrchestrator_FallbackTagged(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 800, 600)
	f.provider.fallback = true

	res, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
	})
	require.NoError(t, err)
	assert.Contains(t, res.Image.Tags(), "fallback-model")
}

func TestGenerationOrchestrator_NormalizedProviderDimensions(t *testing.T) {
	f := newOrchestratorFixture(t)
	source := f.seedSource(t, "user-1", []byte("product-png"), 2000, 1000)

	_, err := f.handler.Handle(context.Background(), commands.GenerateVersionCommand{
		UserID:  "user-1",
		ImageID: source.ID().String(),
		Kind:    commands.KindNewBackground,
	})
	require.NoError(t, err)

	assert.Equal(t, 1344, f.provider.lastReq.Width)
	assert.Equal(t, 768, f.provider.lastReq.Height)
}
