package aggregates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagio-backend/domain/core/entities"
	"imagio-backend/domain/core/valueobjects"
)

func makeNode(t *testing.T) *entities.ImageNode {
	t.Helper()
	dims, err := valueobjects.NewDimensions(800, 600)
	require.NoError(t, err)
	node, err := entities.NewOriginalImage("user-1", entities.BlobInfo{
		URL:        "https://cdn.example.com/a.png",
		StorageKey: "users/u1/a.png",
		Filename:   "a.png",
		MimeType:   "image/png",
		Size:       100,
	}, dims)
	require.NoError(t, err)
	return node
}

func deriveNode(t *testing.T, parent *entities.ImageNode) *entities.ImageNode {
	t.Helper()
	dims, err := valueobjects.NewDimensions(800, 600)
	require.NoError(t, err)
	child, err := entities.NewDerivedImage(parent, entities.BlobInfo{
		URL:        "https://cdn.example.com/b.png",
		StorageKey: "users/u1/b.png",
		Filename:   "b.png",
		MimeType:   "image/png",
		Size:       100,
	}, dims, entities.AIEdit{Operation: entities.OpEnhance, Provider: entities.ProviderStabilityAI})
	require.NoError(t, err)
	parent.RegisterChild(child.ID())
	return child
}

func TestBuildVersionTree(t *testing.T) {
	root := makeNode(t)
	child := deriveNode(t, root)
	grandchild := deriveNode(t, child)

	tree, err := BuildVersionTree([]*entities.ImageNode{root, child, grandchild})
	require.NoError(t, err)

	assert.Equal(t, root, tree.Root())
	assert.Equal(t, 3, tree.Size())
	assert.Equal(t, 3, tree.Depth())
}

func TestBuildVersionTreeRejectsNoRoot(t *testing.T) {
	root := makeNode(t)
	child := deriveNode(t, root)

	_, err := BuildVersionTree([]*entities.ImageNode{child})
	assert.Error(t, err)

	_, err = BuildVersionTree(nil)
	assert.Error(t, err)
}

func TestAllVersionsOrderedByCreation(t *testing.T) {
	root := makeNode(t)
	a := deriveNode(t, root)
	b := deriveNode(t, root)
	c := deriveNode(t, a)

	tree, err := BuildVersionTree([]*entities.ImageNode{root, a, b, c})
	require.NoError(t, err)

	all := tree.AllVersions()
	require.Len(t, all, 4)
	assert.Equal(t, root.ID(), all[0].ID())
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt().Before(all[i-1].CreatedAt()))
	}
}

func TestActiveVersionsExcludesDeleted(t *testing.T) {
	root := makeNode(t)
	child := deriveNode(t, root)
	require.NoError(t, child.SoftDelete())

	tree, err := BuildVersionTree([]*entities.ImageNode{root, child})
	require.NoError(t, err)

	// Deleted nodes stay traversable but drop out of the active view
	assert.Len(t, tree.AllVersions(), 2)
	active := tree.ActiveVersions()
	require.Len(t, active, 1)
	assert.Equal(t, root.ID(), active[0].ID())
}

func TestHistoryPath(t *testing.T) {
	root := makeNode(t)
	child := deriveNode(t, root)
	grandchild := deriveNode(t, child)

	tree, err := BuildVersionTree([]*entities.ImageNode{root, child, grandchild})
	require.NoError(t, err)

	path, err := tree.History(grandchild.ID())
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, root.ID(), path[0].ID())
	assert.Equal(t, child.ID(), path[1].ID())
	assert.Equal(t, grandchild.ID(), path[2].ID())

	_, err = tree.History(valueobjects.NewImageID())
	assert.Error(t, err)
}

func TestTraversalSurvivesDuplicateChildLinks(t *testing.T) {
	root := makeNode(t)
	child := deriveNode(t, root)
	// Duplicate registration must not duplicate traversal output
	root.RegisterChild(child.ID())

	tree, err := BuildVersionTree([]*entities.ImageNode{root, child})
	require.NoError(t, err)

	assert.Len(t, tree.AllVersions(), 2)
	assert.Equal(t, 2, tree.Depth())
}
