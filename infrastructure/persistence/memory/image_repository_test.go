package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagio-backend/application/ports"
	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
	appErrors "imagio-backend/pkg/errors"
)

func newTestNode(t *testing.T, userID string) *entities.ImageNode {
	t.Helper()
	dims, err := valueobjects.NewDimensions(800, 600)
	require.NoError(t, err)
	node, err := entities.NewOriginalImage(userID, entities.BlobInfo{
		URL:        "https://blobs.test/img.png",
		StorageKey: "img.png",
		MimeType:   "image/png",
		Size:       128,
	}, dims)
	require.NoError(t, err)
	return node
}

func TestImageRepository_SaveAndGet(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()
	node := newTestNode(t, "user-1")

	require.NoError(t, repo.Save(ctx, node))

	got, err := repo.GetByID(ctx, "user-1", node.ID())
	require.NoError(t, err)
	assert.True(t, got.ID().Equals(node.ID()))
	assert.Equal(t, 1, got.Version())
	assert.True(t, got.IsOriginal())

	// Scoped by owner
	_, err = repo.GetByID(ctx, "user-2", node.ID())
	assert.ErrorIs(t, err, appErrors.ErrImageNotFound)
}

func TestImageRepository_ReturnsCopies(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()
	node := newTestNode(t, "user-1")
	require.NoError(t, repo.Save(ctx, node))

	first, err := repo.GetByID(ctx, "user-1", node.ID())
	require.NoError(t, err)
	require.NoError(t, first.AddTag("scratch"))

	second, err := repo.GetByID(ctx, "user-1", node.ID())
	require.NoError(t, err)
	assert.NotContains(t, second.Tags(), "scratch")
}

func TestImageRepository_ViewsIncrement(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()
	node := newTestNode(t, "user-1")
	require.NoError(t, repo.Save(ctx, node))

	for i := 1; i <= 3; i++ {
		got, err := repo.GetByIDAndIncrementViews(ctx, "user-1", node.ID())
		require.NoError(t, err)
		assert.Equal(t, i, got.Views())
	}

	// Plain reads do not count
	got, err := repo.GetByID(ctx, "user-1", node.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Views())
}

func TestImageRepository_ConcurrentAddChild(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()
	parent := newTestNode(t, "user-1")
	require.NoError(t, repo.Save(ctx, parent))

	const workers = 16
	childIDs := make([]valueobjects.ImageID, workers)
	for i := range childIDs {
		childIDs[i] = valueobjects.NewImageID()
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id valueobjects.ImageID) {
			defer wg.Done()
			assert.NoError(t, repo.AddChild(ctx, "user-1", parent.ID(), id))
		}(childIDs[i])
	}
	wg.Wait()

	got, err := repo.GetByID(ctx, "user-1", parent.ID())
	require.NoError(t, err)
	assert.Len(t, got.Children(), workers, "every concurrent append must survive")
}

func TestImageRepository_AddChildIdempotent(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()
	parent := newTestNode(t, "user-1")
	require.NoError(t, repo.Save(ctx, parent))

	childID := valueobjects.NewImageID()
	require.NoError(t, repo.AddChild(ctx, "user-1", parent.ID(), childID))
	require.NoError(t, repo.AddChild(ctx, "user-1", parent.ID(), childID))

	got, err := repo.GetByID(ctx, "user-1", parent.ID())
	require.NoError(t, err)
	assert.Len(t, got.Children(), 1)
}

func TestImageRepository_ListByUserFilters(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		node := newTestNode(t, "user-1")
		require.NoError(t, node.AddTag(fmt.Sprintf("tag-%d", i)))
		if i == 0 {
			node.SetPublic(true)
		}
		require.NoError(t, repo.Save(ctx, node))
	}
	require.NoError(t, repo.Save(ctx, newTestNode(t, "user-2")))

	all, err := repo.ListByUser(ctx, "user-1", ports.ImageFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	isPublic := true
	public, err := repo.ListByUser(ctx, "user-1", ports.ImageFilter{IsPublic: &isPublic})
	require.NoError(t, err)
	assert.Len(t, public, 1)

	tagged, err := repo.ListByUser(ctx, "user-1", ports.ImageFilter{Tags: []string{"TAG-1"}})
	require.NoError(t, err)
	assert.Len(t, tagged, 1, "tag matching is case insensitive")

	limited, err := repo.ListByUser(ctx, "user-1", ports.ImageFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestImageRepository_SoftDeleteKeepsRecord(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()
	node := newTestNode(t, "user-1")
	require.NoError(t, repo.Save(ctx, node))

	require.NoError(t, repo.SoftDelete(ctx, "user-1", node.ID(), time.Now()))

	got, err := repo.GetByIDIncludingDeleted(ctx, "user-1", node.ID())
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	// Deleted nodes drop out of listings
	listed, err := repo.ListByUser(ctx, "user-1", ports.ImageFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestImageRepository_DeletedNodesNotFoundByDefault(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()
	node := newTestNode(t, "user-1")
	require.NoError(t, repo.Save(ctx, node))

	_, err := repo.GetByIDAndIncrementViews(ctx, "user-1", node.ID())
	require.NoError(t, err)

	require.NoError(t, repo.SoftDelete(ctx, "user-1", node.ID(), time.Now()))

	_, err = repo.GetByID(ctx, "user-1", node.ID())
	assert.ErrorIs(t, err, appErrors.ErrImageNotFound)

	_, err = repo.GetByIDAndIncrementViews(ctx, "user-1", node.ID())
	assert.ErrorIs(t, err, appErrors.ErrImageNotFound)

	// The failed view read must not have counted
	got, err := repo.GetByIDIncludingDeleted(ctx, "user-1", node.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views())
}

func TestImageRepository_ListBackgrounds(t *testing.T) {
	repo := NewImageRepository()
	ctx := context.Background()

	bg := newTestNode(t, "user-1")
	bg.SetBackgroundOnly(true)
	require.NoError(t, repo.Save(ctx, bg))

	other := newTestNode(t, "user-1")
	require.NoError(t, repo.Save(ctx, other))

	excluded := newTestNode(t, "user-1")
	excluded.SetBackgroundOnly(true)
	require.NoError(t, repo.Save(ctx, excluded))

	got, err := repo.ListBackgrounds(ctx, "user-1", excluded.ID())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].ID().Equals(bg.ID()))
}
