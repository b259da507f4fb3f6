package valueobjects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "imagio-backend/pkg/errors"
)

func TestNewDimensionsRejectsNonPositive(t *testing.T) {
	cases := []struct{ width, height int }{
		{0, 100},
		{100, 0},
		{-1, 100},
		{100, -1},
	}
	for _, tc := range cases {
		_, err := NewDimensions(tc.width, tc.height)
		require.Error(t, err, "width=%d height=%d", tc.width, tc.height)
		assert.True(t, pkgerrors.IsValidation(err), "want a validation error so the API answers 4xx")
	}
}

func TestNewDimensionsProperties(t *testing.T) {
	d, err := NewDimensions(1920, 1080)
	require.NoError(t, err)

	assert.Equal(t, 1920, d.Width())
	assert.Equal(t, 1080, d.Height())
	assert.True(t, d.IsLandscape())
	assert.False(t, d.IsPortrait())
	assert.InDelta(t, 16.0/9.0, d.AspectRatio(), 0.001)
}

func TestNewRegionRejectsInvalid(t *testing.T) {
	_, err := NewRegion(-1, 0, 10, 10)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = NewRegion(0, 0, 0, 10)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestRegionWithin(t *testing.T) {
	bounds, err := NewDimensions(800, 600)
	require.NoError(t, err)

	inside, err := NewRegion(700, 500, 100, 100)
	require.NoError(t, err)
	assert.True(t, inside.Within(bounds))

	overflowing, err := NewRegion(700, 500, 101, 100)
	require.NoError(t, err)
	assert.False(t, overflowing.Within(bounds))
}
