package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestValidate_Good(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Validate(square(0, 0, 1, 1)))
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		g    geom.T
	}{
		{
			"unclosed ring",
			geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1}, []int{8}),
		},
		{
			"too few vertices",
			geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 0, 0}, []int{6}),
		},
		{
			"bowtie",
			geom.NewPolygonFlat(geom.XY, []float64{0, 0, 2, 2, 2, 0, 0, 2, 0, 0}, []int{10}),
		},
		{
			"collinear",
			geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 2, 0, 0, 0}, []int{8}),
		},
		{
			"empty",
			geom.NewPolygon(geom.XY),
		},
		{
			"point",
			geom.NewPointFlat(geom.XY, []float64{1, 1}),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, Validate(tt.g))
		})
	}
}

func TestRepair_AlreadyValid(t *testing.T) {
	t.Parallel()

	g, repaired, err := Repair(square(0, 0, 1, 1))
	require.NoError(t, err)
	assert.False(t, repaired)
	assert.InDelta(t, 1.0, Area(g), 1e-12)
}

func TestRepair_ConsecutiveDuplicates(t *testing.T) {
	t.Parallel()

	src := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 0,
	}, []int{12})

	g, repaired, err := Repair(src)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.NoError(t, Validate(g))
	assert.InDelta(t, 1.0, Area(g), 1e-12)
}

func TestRepair_ClosesRing(t *testing.T) {
	t.Parallel()

	src := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 1, 0, 1, 1, 0, 1}, []int{8})

	g, repaired, err := Repair(src)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.NoError(t, Validate(g))
	assert.InDelta(t, 1.0, Area(g), 1e-12)
}

func TestRepair_DropsDegenerateHole(t *testing.T) {
	t.Parallel()

	src := geom.NewPolygonFlat(geom.XY, []float64{
		0, 0, 4, 0, 4, 4, 0, 4, 0, 0,
		1, 1, 2, 2, 1, 1, 1, 1,
	}, []int{10, 18})

	g, repaired, err := Repair(src)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.InDelta(t, 16.0, Area(g), 1e-9)
}

func TestRepair_BowtieStaysInvalid(t *testing.T) {
	t.Parallel()

	src := geom.NewPolygonFlat(geom.XY, []float64{0, 0, 2, 2, 2, 0, 0, 2, 0, 0}, []int{10})

	_, _, err := Repair(src)
	assert.Error(t, err)
}

func TestRepair_Empty(t *testing.T) {
	t.Parallel()

	_, _, err := Repair(geom.NewPolygon(geom.XY))
	assert.Error(t, err)
}

func TestRepair_MultiPolygonDropsEmptyMember(t *testing.T) {
	t.Parallel()

	src := geom.NewMultiPolygonFlat(geom.XY, []float64{
		0, 0, 1, 0, 1, 1, 0, 1, 0, 0,
		5, 5, 5, 5, 5, 5, 5, 5,
	}, [][]int{{10}, {18}})

	g, repaired, err := Repair(src)
	require.NoError(t, err)
	assert.True(t, repaired)
	assert.InDelta(t, 1.0, Area(g), 1e-12)
}

func TestIsEmpty(t *testing.T) {
	t.Parallel()

	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(geom.NewPolygon(geom.XY)))
	assert.False(t, IsEmpty(square(0, 0, 1, 1)))
}

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := Fingerprint(square(0, 0, 1, 1))
	require.NoError(t, err)
	b, err := Fingerprint(square(0, 0, 1, 1))
	require.NoError(t, err)
	c, err := Fingerprint(square(0, 0, 2, 2))
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
