package altofs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryNumPages(t *testing.T) {
	assert.Equal(t, 4872, DefaultGeometry.NumPages())
}

func TestVDARDARoundTrip(t *testing.T) {
	dg := DefaultGeometry
	for vda := 0; vda < dg.NumPages(); vda += 37 {
		rda, err := dg.VDAToRDA(VDA(vda))
		require.NoError(t, err)
		back, err := dg.RDAToVDA(rda)
		require.NoError(t, err)
		assert.Equal(t, VDA(vda), back)
	}
}

func TestRDAVDARoundTrip(t *testing.T) {
	dg := DefaultGeometry
	for vda := 0; vda < dg.NumPages(); vda += 41 {
		rda, err := dg.VDAToRDA(VDA(vda))
		require.NoError(t, err)
		back, err := dg.RDAToVDA(rda)
		require.NoError(t, err)
		rda2, err := dg.VDAToRDA(back)
		require.NoError(t, err)
		assert.Equal(t, rda, rda2)
	}
}

func TestVDAToRDAOutOfRange(t *testing.T) {
	dg := DefaultGeometry
	_, err := dg.VDAToRDA(VDA(dg.NumPages()))
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidArgument, kind)
}

func TestRDAToVDAReservedBitsNonZero(t *testing.T) {
	dg := DefaultGeometry
	_, err := dg.RDAToVDA(RDA(0x0001))
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, ErrFormatViolation, kind)
}

func TestGeometryValidateBounds(t *testing.T) {
	require.NoError(t, Geometry{Cylinders: 0, Heads: 1, Sectors: 1}.Validate())
	require.Error(t, Geometry{Cylinders: 512, Heads: 1, Sectors: 1}.Validate())
	require.Error(t, Geometry{Cylinders: 1, Heads: 0, Sectors: 1}.Validate())
	require.Error(t, Geometry{Cylinders: 1, Heads: 3, Sectors: 1}.Validate())
	require.Error(t, Geometry{Cylinders: 1, Heads: 1, Sectors: 0}.Validate())
	require.Error(t, Geometry{Cylinders: 1, Heads: 1, Sectors: 16}.Validate())
}
