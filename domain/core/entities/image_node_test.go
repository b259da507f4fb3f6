package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagio-backend/domain/core/valueobjects"
	pkgerrors "imagio-backend/pkg/errors"
)

func testBlob() BlobInfo {
	return BlobInfo{
		URL:              "https://cdn.example.com/img/abc.png",
		StorageKey:       "users/u1/abc.png",
		Filename:         "abc.png",
		OriginalFilename: "holiday.png",
		MimeType:         "image/png",
		Size:             2048,
	}
}

func testDims(t *testing.T) valueobjects.Dimensions {
	t.Helper()
	dims, err := valueobjects.NewDimensions(1024, 768)
	require.NoError(t, err)
	return dims
}

func TestNewOriginalImage(t *testing.T) {
	node, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)

	assert.True(t, node.IsOriginal())
	assert.Nil(t, node.ParentID())
	assert.Equal(t, 1, node.Version())
	assert.Equal(t, StatusCompleted, node.Status())
	assert.Empty(t, node.Children())
	assert.Empty(t, node.Edits())
	assert.False(t, node.IsDeleted())

	events := node.GetUncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "image.uploaded", events[0].GetEventType())
}

func TestNewOriginalImageValidation(t *testing.T) {
	dims := testDims(t)

	_, err := NewOriginalImage("", testBlob(), dims)
	assert.Error(t, err)

	blob := testBlob()
	blob.StorageKey = ""
	_, err = NewOriginalImage("user-1", blob, dims)
	assert.Error(t, err)

	_, err = NewOriginalImage("user-1", testBlob(), valueobjects.Dimensions{})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidDimensions)
}

func TestNewDerivedImageVersionIncrement(t *testing.T) {
	parent, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)

	edit := AIEdit{Operation: OpTextToImage, Provider: ProviderStabilityAI, Prompt: "studio scene"}

	child, err := NewDerivedImage(parent, testBlob(), testDims(t), edit)
	require.NoError(t, err)

	assert.False(t, child.IsOriginal())
	require.NotNil(t, child.ParentID())
	assert.True(t, child.ParentID().Equals(parent.ID()))
	assert.Equal(t, parent.Version()+1, child.Version())
	assert.Equal(t, parent.UserID(), child.UserID())
	require.Len(t, child.Edits(), 1)
	assert.Equal(t, OpTextToImage, child.Edits()[0].Operation)
	assert.False(t, child.Edits()[0].Timestamp.IsZero())

	grandchild, err := NewDerivedImage(child, testBlob(), testDims(t), edit)
	require.NoError(t, err)
	assert.Equal(t, 3, grandchild.Version())
}

func TestNewDerivedImageRejectsBadParents(t *testing.T) {
	edit := AIEdit{Operation: OpEnhance, Provider: ProviderStabilityAI}

	_, err := NewDerivedImage(nil, testBlob(), testDims(t), edit)
	assert.ErrorIs(t, err, pkgerrors.ErrParentNotFound)

	deleted, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)
	require.NoError(t, deleted.SoftDelete())

	_, err = NewDerivedImage(deleted, testBlob(), testDims(t), edit)
	assert.ErrorIs(t, err, pkgerrors.ErrImageDeleted)

	failed, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)
	failed.MarkFailed("provider timeout")

	_, err = NewDerivedImage(failed, testBlob(), testDims(t), edit)
	assert.ErrorIs(t, err, pkgerrors.ErrImageNotReady)
}

func TestRegisterChildIdempotent(t *testing.T) {
	parent, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)

	childID := valueobjects.NewImageID()
	parent.RegisterChild(childID)
	parent.RegisterChild(childID)

	require.Len(t, parent.Children(), 1)
	assert.True(t, parent.Children()[0].Equals(childID))

	otherID := valueobjects.NewImageID()
	parent.RegisterChild(otherID)
	assert.Len(t, parent.Children(), 2)
}

func TestSoftDelete(t *testing.T) {
	node, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)
	node.MarkEventsAsCommitted()

	require.NoError(t, node.SoftDelete())

	assert.True(t, node.IsDeleted())
	assert.Equal(t, StatusDeleted, node.Status())
	require.NotNil(t, node.DeletedAt())
	assert.WithinDuration(t, time.Now(), *node.DeletedAt(), time.Second)

	events := node.GetUncommittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "image.deleted", events[0].GetEventType())

	// Deleting again is a no-op and raises no second event
	require.NoError(t, node.SoftDelete())
	assert.Len(t, node.GetUncommittedEvents(), 1)
}

func TestReconstructRoundTrip(t *testing.T) {
	parent, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)
	require.NoError(t, parent.AddTag("product"))
	require.NoError(t, parent.SetMetadata("Boots", "leather boots", CategoryProduct))

	rec := parent.Snapshot()
	rebuilt, err := ReconstructImageNode(rec)
	require.NoError(t, err)

	assert.Equal(t, parent.ID().String(), rebuilt.ID().String())
	assert.Equal(t, parent.Version(), rebuilt.Version())
	assert.Equal(t, parent.Tags(), rebuilt.Tags())
	assert.Equal(t, parent.Title(), rebuilt.Title())
	assert.Equal(t, parent.Category(), rebuilt.Category())
	assert.True(t, rebuilt.IsOriginal())
	assert.Empty(t, rebuilt.GetUncommittedEvents())
}

func TestReconstructEnforcesTreeInvariants(t *testing.T) {
	base, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)

	// Original with a parent is inconsistent
	rec := base.Snapshot()
	rec.ParentID = valueobjects.NewImageID().String()
	_, err = ReconstructImageNode(rec)
	assert.Error(t, err)

	// Derived without a parent is inconsistent
	rec = base.Snapshot()
	rec.IsOriginal = false
	_, err = ReconstructImageNode(rec)
	assert.Error(t, err)

	// Version below 1 is invalid
	rec = base.Snapshot()
	rec.Version = 0
	_, err = ReconstructImageNode(rec)
	assert.Error(t, err)
}

func TestMarkFailedThenCompleted(t *testing.T) {
	node, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)

	node.MarkFailed("upstream 502")
	assert.Equal(t, StatusFailed, node.Status())
	assert.Equal(t, "upstream 502", node.ProcessingError())

	require.NoError(t, node.MarkCompleted())
	assert.Equal(t, StatusCompleted, node.Status())
	assert.Empty(t, node.ProcessingError())
}

func TestAddTagLimits(t *testing.T) {
	node, err := NewOriginalImage("user-1", testBlob(), testDims(t))
	require.NoError(t, err)

	require.Error(t, node.AddTag(""))

	require.NoError(t, node.AddTag("hero"))
	require.NoError(t, node.AddTag("hero"))
	assert.Len(t, node.Tags(), 1)
}
