package dynamodb

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
)

func TestImageItemMapping(t *testing.T) {
	dims, err := valueobjects.NewDimensions(800, 600)
	require.NoError(t, err)
	parent, err := entities.NewOriginalImage("user-1", entities.BlobInfo{
		URL:        "https://blobs.test/root.png",
		StorageKey: "root.png",
		MimeType:   "image/png",
		Size:       256,
	}, dims)
	require.NoError(t, err)

	child, err := entities.NewDerivedImage(parent, entities.BlobInfo{
		URL:        "https://blobs.test/child.png",
		StorageKey: "child.png",
		MimeType:   "image/png",
		Size:       512,
	}, dims, entities.AIEdit{
		Operation:      entities.OpReplaceBackground,
		Provider:       entities.ProviderStabilityAI,
		Prompt:         "marble table",
		Timestamp:      time.Now(),
		ProcessingTime: 3 * time.Second,
	})
	require.NoError(t, err)

	t.Run("root item has no parent index entry", func(t *testing.T) {
		item := toItem(parent)
		assert.Equal(t, "USER#user-1", item.PK)
		assert.Equal(t, "IMAGE#"+parent.ID().String(), item.SK)
		assert.Empty(t, item.GSI1PK)
		assert.True(t, item.IsOriginal)
	})

	t.Run("child item indexes under its parent", func(t *testing.T) {
		item := toItem(child)
		assert.Equal(t, "PARENT#"+parent.ID().String(), item.GSI1PK)
		assert.Equal(t, "IMAGE#"+child.ID().String(), item.GSI1SK)
		assert.Equal(t, parent.ID().String(), item.ParentID)
		assert.Equal(t, 2, item.Version)
	})

	t.Run("round trip preserves the entity", func(t *testing.T) {
		restored, err := fromItem(toItem(child))
		require.NoError(t, err)

		assert.True(t, restored.ID().Equals(child.ID()))
		require.NotNil(t, restored.ParentID())
		assert.True(t, restored.ParentID().Equals(parent.ID()))
		assert.Equal(t, child.Version(), restored.Version())
		require.Len(t, restored.Edits(), 1)
		assert.Equal(t, entities.OpReplaceBackground, restored.Edits()[0].Operation)
		assert.Equal(t, 3*time.Second, restored.Edits()[0].ProcessingTime)
		assert.False(t, restored.IsDeleted())
	})

	t.Run("deleted timestamp survives", func(t *testing.T) {
		require.NoError(t, child.SoftDelete())
		restored, err := fromItem(toItem(child))
		require.NoError(t, err)
		assert.True(t, restored.IsDeleted())
	})
}
