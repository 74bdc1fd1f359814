package detect

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/model"
)

// Integrity finding kinds, reused by the display summaries.
const (
	FindingNoPlantation    = "producteur_sans_plantation"
	FindingSurfaceGap      = "ecart_surface_declaree"
	FindingEstimationGap   = "ecart_estimation_declaree"
	FindingCoopMismatch    = "cooperative_incoherente"
	FindingNoGeometry      = "plantation_sans_geometrie"
	FindingUnknownPlanting = "geometrie_sans_plantation"
)

// CheckIntegrity runs the cross-table coherence checks. A plantation or
// parcel referencing a producer absent from the producer table breaks
// the key relation and is fatal; everything else is reported as a
// finding and the run continues. tolerancePct bounds the accepted gap
// between a producer's declared totals and the sums over their
// plantations.
func CheckIntegrity(producers []model.Producer, plantations []model.Plantation, parcels []model.Parcel, tolerancePct float64) ([]model.IntegrityFinding, error) {
	knownProducer := make(map[string]bool, len(producers))
	for _, p := range producers {
		knownProducer[p.CodeProducteur] = true
	}

	if err := checkOrphans(knownProducer, plantations, parcels); err != nil {
		return nil, err
	}

	findings := make([]model.IntegrityFinding, 0)

	// Producers with no plantation rows never reach the synthesis; they
	// are surfaced here instead.
	byProducer := make(map[string][]model.Plantation, len(producers))
	for _, pl := range plantations {
		byProducer[pl.CodeProducteur] = append(byProducer[pl.CodeProducteur], pl)
	}
	for _, p := range producers {
		if len(byProducer[p.CodeProducteur]) == 0 {
			findings = append(findings, model.IntegrityFinding{
				Kind:    FindingNoPlantation,
				Key:     p.CodeProducteur,
				Detail:  "aucune plantation associée au producteur",
				Dataset: "coop_producteurs",
			})
		}
	}

	for _, p := range producers {
		rows := byProducer[p.CodeProducteur]
		if len(rows) == 0 {
			continue
		}
		if f, bad := totalGap(p.CodeProducteur, p.SuperficieTotaleCacaoHa, sumSurface(rows), "superficie_totale_cacao_ha", FindingSurfaceGap, tolerancePct); bad {
			findings = append(findings, f)
		}
		if f, bad := totalGap(p.CodeProducteur, p.EstimationTotaleKg, sumEstimation(rows), "estimation_totale_kg", FindingEstimationGap, tolerancePct); bad {
			findings = append(findings, f)
		}
		if coop := rows[0].Cooperative; coop != "" && p.Cooperative != "" && coop != p.Cooperative {
			findings = append(findings, model.IntegrityFinding{
				Kind:    FindingCoopMismatch,
				Key:     p.CodeProducteur,
				Detail:  fmt.Sprintf("%s dans la table producteurs, %s dans la table plantations", p.Cooperative, coop),
				Dataset: "coop_producteurs",
			})
		}
	}

	// Join coverage between the plantation table and the geometry
	// snapshot, both directions.
	withGeometry := make(map[string]bool, len(parcels))
	for _, pc := range parcels {
		if pc.CodePlantation != "" {
			withGeometry[pc.CodePlantation] = true
		}
	}
	declared := make(map[string]bool, len(plantations))
	for _, pl := range plantations {
		declared[pl.CodePlantation] = true
		if !withGeometry[pl.CodePlantation] {
			findings = append(findings, model.IntegrityFinding{
				Kind:    FindingNoGeometry,
				Key:     pl.CodePlantation,
				Detail:  "plantation déclarée sans parcelle géométrique correspondante",
				Dataset: "coop_plantations",
			})
		}
	}
	for _, pc := range parcels {
		if pc.CodePlantation != "" && !declared[pc.CodePlantation] {
			findings = append(findings, model.IntegrityFinding{
				Kind:    FindingUnknownPlanting,
				Key:     pc.CodePlantation,
				Detail:  "parcelle géométrique sans plantation déclarée",
				Dataset: "parcelles",
			})
		}
	}

	zap.L().Info("detect: integrity checks done",
		zap.String("component", "integrity"),
		zap.Int("findings", len(findings)),
	)
	return findings, nil
}

func checkOrphans(knownProducer map[string]bool, plantations []model.Plantation, parcels []model.Parcel) error {
	orphans := 0
	first := ""
	note := func(dataset, key string) {
		orphans++
		if first == "" {
			first = dataset + ":" + key
		}
	}
	for _, pl := range plantations {
		if !knownProducer[pl.CodeProducteur] {
			note("coop_plantations", pl.CodePlantation)
		}
	}
	for _, pc := range parcels {
		if !knownProducer[pc.CodeProducteur] {
			note("parcelles", pc.CodePlantation)
		}
	}
	if orphans == 0 {
		return nil
	}
	schemaErr := &model.SchemaError{
		Dataset: "coop_producteurs",
		Reason:  fmt.Sprintf("%d records reference unknown producers (first: %s)", orphans, first),
	}
	return eris.Wrap(schemaErr, "detect: integrity")
}

// totalGap compares a declared total against the summed plantation
// values. Nil or zero declared totals and empty sums are skipped.
func totalGap(code string, declared *float64, sum float64, column, kind string, tolerancePct float64) (model.IntegrityFinding, bool) {
	if declared == nil || *declared == 0 || sum == 0 {
		return model.IntegrityFinding{}, false
	}
	gap := (sum - *declared) / *declared * 100
	if math.Abs(gap) <= tolerancePct {
		return model.IntegrityFinding{}, false
	}
	return model.IntegrityFinding{
		Kind:    kind,
		Key:     code,
		Detail:  fmt.Sprintf("%s déclaré %s, somme des plantations %s (écart %.2f%%)", column, formatHa(*declared), formatHa(sum), gap),
		Dataset: "coop_producteurs",
	}, true
}

func sumSurface(rows []model.Plantation) float64 {
	s := 0.0
	for _, r := range rows {
		if r.SuperficieCacaoHa != nil {
			s += *r.SuperficieCacaoHa
		}
	}
	return s
}

func sumEstimation(rows []model.Plantation) float64 {
	s := 0.0
	for _, r := range rows {
		if r.EstimationKg != nil {
			s += *r.EstimationKg
		}
	}
	return s
}

func formatHa(f float64) string {
	return fmt.Sprintf("%g", f)
}
