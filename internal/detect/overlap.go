package detect

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terroirdata/coopaudit/internal/geometry"
	"github.com/terroirdata/coopaudit/internal/model"
)

// OverlapDetector finds unordered parcel pairs whose projected
// geometries intersect with positive area. Exact-duplicate pairs (same
// fingerprint, same producer) are excluded; those belong to the
// duplicate detector.
type OverlapDetector struct {
	workers int
}

// NewOverlapDetector bounds the pairwise intersection pool at workers.
func NewOverlapDetector(workers int) *OverlapDetector {
	if workers < 1 {
		workers = 1
	}
	return &OverlapDetector{workers: workers}
}

type bbox struct {
	minX, minY, maxX, maxY float64
}

func (b bbox) intersects(o bbox) bool {
	return b.minX <= o.maxX && o.minX <= b.maxX && b.minY <= o.maxY && o.minY <= b.maxY
}

// Detect runs the pair search over every parcel with a projected
// geometry. The bounding-box grid only prunes pairs that cannot
// intersect; the reported set is identical to the all-pairs scan, and
// each surviving pair is measured by exactly one worker.
func (d *OverlapDetector) Detect(ctx context.Context, parcels []model.Parcel) ([]model.OverlapRecord, error) {
	var idxs []int
	for i, p := range parcels {
		if p.Projected != nil && p.SurfaceCalculeeHa != nil && *p.SurfaceCalculeeHa > 0 {
			idxs = append(idxs, i)
		}
	}
	if len(idxs) < 2 {
		return []model.OverlapRecord{}, nil
	}

	boxes := make(map[int]bbox, len(idxs))
	for _, i := range idxs {
		b := parcels[i].Projected.Bounds()
		boxes[i] = bbox{minX: b.Min(0), minY: b.Min(1), maxX: b.Max(0), maxY: b.Max(1)}
	}

	exclude := DuplicatePairs(parcels)
	pairs := candidatePairs(idxs, boxes)

	checked := make([][2]int, 0, len(pairs))
	for _, pr := range pairs {
		if _, dup := exclude[pr]; dup {
			continue
		}
		if boxes[pr[0]].intersects(boxes[pr[1]]) {
			checked = append(checked, pr)
		}
	}

	areas := make([]float64, len(checked))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	chunk := (len(checked) + d.workers - 1) / d.workers
	if chunk < 1 {
		chunk = 1
	}
	for start := 0; start < len(checked); start += chunk {
		start := start
		end := start + chunk
		if end > len(checked) {
			end = len(checked)
		}
		g.Go(func() error {
			for k := start; k < end; k++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				a, b := checked[k][0], checked[k][1]
				areas[k] = geometry.IntersectionArea(parcels[a].Projected, parcels[b].Projected)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "detect: overlap search")
	}

	records := make([]model.OverlapRecord, 0)
	for k, pr := range checked {
		ha := geometry.AreaHectares(areas[k])
		if ha <= 0 {
			continue
		}
		a, b := parcels[pr[0]], parcels[pr[1]]
		if a.CodePlantation > b.CodePlantation {
			a, b = b, a
		}
		records = append(records, model.OverlapRecord{
			CodePlantationA: a.CodePlantation,
			CodePlantationB: b.CodePlantation,
			OverlapAreaHa:   ha,
			OverlapPctA:     ha / *a.SurfaceCalculeeHa * 100,
			OverlapPctB:     ha / *b.SurfaceCalculeeHa * 100,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CodePlantationA != records[j].CodePlantationA {
			return records[i].CodePlantationA < records[j].CodePlantationA
		}
		if records[i].CodePlantationB != records[j].CodePlantationB {
			return records[i].CodePlantationB < records[j].CodePlantationB
		}
		return records[i].OverlapAreaHa > records[j].OverlapAreaHa
	})

	zap.L().Info("detect: overlap search done",
		zap.String("component", "overlap"),
		zap.Int("parcels", len(idxs)),
		zap.Int("pairs_checked", len(checked)),
		zap.Int("overlaps", len(records)),
	)
	return records, nil
}

// candidatePairs hashes each bounding box onto a uniform grid sized by
// the largest box, so a box never spans more than four cells. Two
// intersecting boxes always share a cell, which makes the grid a pure
// pruning step.
func candidatePairs(idxs []int, boxes map[int]bbox) [][2]int {
	cell := 0.0
	for _, i := range idxs {
		b := boxes[i]
		if w := b.maxX - b.minX; w > cell {
			cell = w
		}
		if h := b.maxY - b.minY; h > cell {
			cell = h
		}
	}
	if cell <= 0 {
		cell = 1
	}

	grid := make(map[[2]int][]int)
	for _, i := range idxs {
		b := boxes[i]
		x0 := int(math.Floor(b.minX / cell))
		x1 := int(math.Floor(b.maxX / cell))
		y0 := int(math.Floor(b.minY / cell))
		y1 := int(math.Floor(b.maxY / cell))
		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				grid[[2]int{x, y}] = append(grid[[2]int{x, y}], i)
			}
		}
	}

	seen := make(map[[2]int]struct{})
	var pairs [][2]int
	for _, members := range grid {
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				i, j := members[a], members[b]
				if j < i {
					i, j = j, i
				}
				key := [2]int{i, j}
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				pairs = append(pairs, key)
			}
		}
	}
	sort.Slice(pairs, func(a, b int) bool {
		if pairs[a][0] != pairs[b][0] {
			return pairs[a][0] < pairs[b][0]
		}
		return pairs[a][1] < pairs[b][1]
	})
	return pairs
}
