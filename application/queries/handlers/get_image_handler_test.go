package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"imagio-backend/application/queries"
	"imagio-backend/infrastructure/persistence/memory"
	appErrors "imagio-backend/pkg/errors"
)

func TestGetImageHandler(t *testing.T) {
	repo := memory.NewImageRepository()
	handler := NewGetImageHandler(repo, zap.NewNop())

	root := seedOriginal(t, repo, "user-1")
	child := seedChild(t, repo, root)

	t.Run("returns image with relatives", func(t *testing.T) {
		result, err := handler.Handle(context.Background(), queries.GetImageQuery{
			UserID:  "user-1",
			ImageID: root.ID().String(),
		})
		require.NoError(t, err)

		assert.Equal(t, root.ID().String(), result.Image.ID)
		assert.Nil(t, result.Parent)
		require.Len(t, result.Children, 1)
		assert.Equal(t, child.ID().String(), result.Children[0].ID)
	})

	t.Run("child projects its parent", func(t *testing.T) {
		result, err := handler.Handle(context.Background(), queries.GetImageQuery{
			UserID:  "user-1",
			ImageID: child.ID().String(),
		})
		require.NoError(t, err)

		require.NotNil(t, result.Parent)
		assert.Equal(t, root.ID().String(), result.Parent.ID)
		assert.Empty(t, result.Children)
	})

	t.Run("each read counts a view", func(t *testing.T) {
		before, err := handler.Handle(context.Background(), queries.GetImageQuery{
			UserID:  "user-1",
			ImageID: root.ID().String(),
		})
		require.NoError(t, err)

		after, err := handler.Handle(context.Background(), queries.GetImageQuery{
			UserID:  "user-1",
			ImageID: root.ID().String(),
		})
		require.NoError(t, err)
		assert.Equal(t, before.Image.Views+1, after.Image.Views)
	})

	t.Run("unknown image", func(t *testing.T) {
		_, err := handler.Handle(context.Background(), queries.GetImageQuery{
			UserID:  "user-1",
			ImageID: "2d4c6b8a-0e1f-4a2b-8c3d-5e6f7a8b9c0d",
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrImageNotFound)
	})

	t.Run("deleted image is not found", func(t *testing.T) {
		gone := seedOriginal(t, repo, "user-1")
		require.NoError(t, repo.SoftDelete(context.Background(), "user-1", gone.ID(), time.Now()))

		_, err := handler.Handle(context.Background(), queries.GetImageQuery{
			UserID:  "user-1",
			ImageID: gone.ID().String(),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, appErrors.ErrImageNotFound)
	})
}
