package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/goleak"

	"github.com/terroirdata/coopaudit/internal/model"
)

// meterSquare builds a closed square in projected meter space.
func meterSquare(x, y, side float64) *geom.Polygon {
	return geom.NewPolygonFlat(geom.XY, []float64{
		x, y,
		x + side, y,
		x + side, y + side,
		x, y + side,
		x, y,
	}, []int{10})
}

func projectedParcel(code, producer, fingerprint string, g *geom.Polygon) model.Parcel {
	ha := 0.0
	if g != nil {
		b := g.Bounds()
		ha = (b.Max(0) - b.Min(0)) * (b.Max(1) - b.Min(1)) / 10000
	}
	return model.Parcel{
		CodePlantation:    code,
		CodeProducteur:    producer,
		Fingerprint:       fingerprint,
		Projected:         g,
		SurfaceCalculeeHa: &ha,
	}
}

func TestOverlapDetect_FindsPositivePairs(t *testing.T) {
	defer goleak.VerifyNone(t)

	parcels := []model.Parcel{
		projectedParcel("PL001", "P001", "f1", meterSquare(0, 0, 100)),
		// Half-covers PL001.
		projectedParcel("PL002", "P002", "f2", meterSquare(50, 0, 100)),
		// Disjoint.
		projectedParcel("PL003", "P003", "f3", meterSquare(500, 500, 100)),
		// Shares only an edge with PL003.
		projectedParcel("PL004", "P004", "f4", meterSquare(600, 500, 100)),
	}

	records, err := NewOverlapDetector(4).Detect(context.Background(), parcels)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "PL001", r.CodePlantationA)
	assert.Equal(t, "PL002", r.CodePlantationB)
	assert.InDelta(t, 0.5, r.OverlapAreaHa, 1e-9)
	assert.InDelta(t, 50.0, r.OverlapPctA, 1e-9)
	assert.InDelta(t, 50.0, r.OverlapPctB, 1e-9)
}

func TestOverlapDetect_PairOrderIsCanonical(t *testing.T) {
	// Same pair presented in reverse input order must come out identical.
	forward := []model.Parcel{
		projectedParcel("PL001", "P001", "f1", meterSquare(0, 0, 100)),
		projectedParcel("PL002", "P002", "f2", meterSquare(50, 0, 100)),
	}
	backward := []model.Parcel{forward[1], forward[0]}

	a, err := NewOverlapDetector(2).Detect(context.Background(), forward)
	require.NoError(t, err)
	b, err := NewOverlapDetector(2).Detect(context.Background(), backward)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestOverlapDetect_ExcludesExactDuplicates(t *testing.T) {
	shared := meterSquare(0, 0, 100)

	// Same fingerprint, same producer: a duplicate, not an overlap.
	dup := []model.Parcel{
		projectedParcel("PL001", "P001", "same", shared),
		projectedParcel("PL002", "P001", "same", shared),
	}
	records, err := NewOverlapDetector(1).Detect(context.Background(), dup)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Same fingerprint under different producers stays an overlap.
	cross := []model.Parcel{
		projectedParcel("PL001", "P001", "same", shared),
		projectedParcel("PL002", "P002", "same", shared),
	}
	records, err = NewOverlapDetector(1).Detect(context.Background(), cross)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.InDelta(t, 100.0, records[0].OverlapPctA, 1e-9)
	assert.InDelta(t, 100.0, records[0].OverlapPctB, 1e-9)
}

func TestOverlapDetect_SkipsParcelsWithoutGeometry(t *testing.T) {
	parcels := []model.Parcel{
		projectedParcel("PL001", "P001", "f1", meterSquare(0, 0, 100)),
		{CodePlantation: "PL002", CodeProducteur: "P002"},
	}
	records, err := NewOverlapDetector(2).Detect(context.Background(), parcels)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOverlapDetect_EmptyResultIsNotNil(t *testing.T) {
	records, err := NewOverlapDetector(1).Detect(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestOverlapDetect_ManyParcelsGridMatchesAllPairs(t *testing.T) {
	// A row of squares, each overlapping only its neighbor by 20 m.
	var parcels []model.Parcel
	for i := 0; i < 12; i++ {
		code := string(rune('A' + i))
		parcels = append(parcels, projectedParcel("PL"+code, "P"+code, "f"+code, meterSquare(float64(i)*80, 0, 100)))
	}

	records, err := NewOverlapDetector(3).Detect(context.Background(), parcels)
	require.NoError(t, err)
	require.Len(t, records, 11, "each square overlaps exactly its right neighbor")
	for _, r := range records {
		assert.InDelta(t, 0.2, r.OverlapAreaHa, 1e-9)
		assert.InDelta(t, 20.0, r.OverlapPctA, 1e-9)
	}
}
