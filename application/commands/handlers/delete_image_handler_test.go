package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagio-backend/application/commands"
	appErrors "imagio-backend/pkg/errors"
)

func TestDeleteImageHandler(t *testing.T) {
	repo := newFakeImageRepository()
	blobs := newFakeBlobStore()
	publisher := &fakePublisher{}
	handler := NewDeleteImageHandler(repo, blobs, publisher, nopLogger{})

	orch := &orchestratorFixture{repo: repo, blobs: blobs, processor: newFakeProcessor()}
	source := orch.seedSource(t, "user-1", []byte("product-png"), 800, 600)

	t.Run("deletes blob and marks node", func(t *testing.T) {
		err := handler.Handle(context.Background(), commands.DeleteImageCommand{
			UserID:  "user-1",
			ImageID: source.ID().String(),
		})
		require.NoError(t, err)

		// Blob is gone
		_, _, err = blobs.Get(context.Background(), source.StorageKey())
		require.Error(t, err)

		// Record survives with deleted status, hidden from default reads
		node, err := repo.GetByIDIncludingDeleted(context.Background(), "user-1", source.ID())
		require.NoError(t, err)
		assert.True(t, node.IsDeleted())

		_, err = repo.GetByID(context.Background(), "user-1", source.ID())
		assert.ErrorIs(t, err, appErrors.ErrImageNotFound)
	})

	t.Run("second delete is a no-op", func(t *testing.T) {
		err := handler.Handle(context.Background(), commands.DeleteImageCommand{
			UserID:  "user-1",
			ImageID: source.ID().String(),
		})
		require.NoError(t, err)
	})

	t.Run("unknown image", func(t *testing.T) {
		err := handler.Handle(context.Background(), commands.DeleteImageCommand{
			UserID:  "user-1",
			ImageID: "0b5e7f6a-4c2d-4f1e-9a3b-1c2d3e4f5a6b",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrImageNotFound)
	})

	t.Run("other user's image stays hidden", func(t *testing.T) {
		other := orch.seedSource(t, "user-2", []byte("theirs-png"), 100, 100)
		err := handler.Handle(context.Background(), commands.DeleteImageCommand{
			UserID:  "user-1",
			ImageID: other.ID().String(),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrImageNotFound)
	})
}
