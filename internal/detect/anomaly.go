// Package detect holds the reporting passes that run over the cleaned
// tables and the parcel snapshot: surface anomaly classification,
// duplicate grouping, geometric overlap search, business-range bounds
// checks, and cross-table referential integrity. Detectors report;
// they never mutate their inputs.
package detect

import (
	"math"

	"github.com/terroirdata/coopaudit/internal/model"
)

// CompareSurfaces joins the plantation table to the parcel snapshot on
// code_plantation and emits one comparison row per joined parcel with
// both a declared and a calculated area. Rows whose relative deviation
// exceeds thresholdPct (strictly) are flagged. A declared area of zero
// excludes the row rather than dividing by it.
func CompareSurfaces(plantations []model.Plantation, parcels []model.Parcel, thresholdPct float64) []model.AnomalyRecord {
	byCode := make(map[string][]int, len(parcels))
	for i, p := range parcels {
		if p.CodePlantation == "" {
			continue
		}
		byCode[p.CodePlantation] = append(byCode[p.CodePlantation], i)
	}

	records := make([]model.AnomalyRecord, 0, len(plantations))
	for _, pl := range plantations {
		if pl.SuperficieCacaoHa == nil || *pl.SuperficieCacaoHa == 0 {
			continue
		}
		for _, idx := range byCode[pl.CodePlantation] {
			parcel := parcels[idx]
			if parcel.SurfaceCalculeeHa == nil {
				continue
			}
			decl := *pl.SuperficieCacaoHa
			calc := *parcel.SurfaceCalculeeHa
			ecart := (calc - decl) / decl * 100
			records = append(records, model.AnomalyRecord{
				CodePlantation:    pl.CodePlantation,
				CodeProducteur:    pl.CodeProducteur,
				Cooperative:       pl.Cooperative,
				SuperficieCacaoHa: decl,
				SurfaceCalculeeHa: calc,
				EcartSurfacePct:   ecart,
				AnomalieSurface:   math.Abs(ecart) > thresholdPct,
			})
		}
	}
	return records
}

// CountAnomalies returns how many records carry the anomaly flag.
func CountAnomalies(records []model.AnomalyRecord) int {
	n := 0
	for _, r := range records {
		if r.AnomalieSurface {
			n++
		}
	}
	return n
}
