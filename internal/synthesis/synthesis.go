// Package synthesis rolls the per-parcel comparison results up to
// producer and cooperative level.
package synthesis

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/model"
)

// PerProducer aggregates plantations, joined surfaces, and anomaly
// counts for every producer present in the plantation table, sorted by
// producer code. A producer group with zero plantations cannot form
// here; if one ever does, it is an IntegrityError, not a zero row.
func PerProducer(plantations []model.Plantation, parcels []model.Parcel, anomalies []model.AnomalyRecord) ([]model.ProducerSynthesis, error) {
	surfaceByPlantation := make(map[string]*float64, len(parcels))
	for _, p := range parcels {
		if p.CodePlantation == "" || p.SurfaceCalculeeHa == nil {
			continue
		}
		if _, ok := surfaceByPlantation[p.CodePlantation]; !ok {
			surfaceByPlantation[p.CodePlantation] = p.SurfaceCalculeeHa
		}
	}

	anomaliesByProducer := make(map[string]int)
	for _, a := range anomalies {
		if a.AnomalieSurface {
			anomaliesByProducer[a.CodeProducteur]++
		}
	}

	grouped := make(map[string][]model.Plantation)
	var codes []string
	for _, pl := range plantations {
		if _, ok := grouped[pl.CodeProducteur]; !ok {
			codes = append(codes, pl.CodeProducteur)
		}
		grouped[pl.CodeProducteur] = append(grouped[pl.CodeProducteur], pl)
	}
	sort.Strings(codes)

	rows := make([]model.ProducerSynthesis, 0, len(codes))
	for _, code := range codes {
		group := grouped[code]
		if len(group) == 0 {
			intErr := &model.IntegrityError{Entity: "producteur", Key: code, Reason: "zero plantations in synthesis"}
			return nil, eris.Wrap(intErr, "synthesis: per producer")
		}

		s := model.ProducerSynthesis{
			CodeProducteur: code,
			Cooperative:    group[0].Cooperative,
		}
		for _, pl := range group {
			s.NbPlantationsTotal++
			if pl.SuperficieCacaoHa != nil {
				s.SuperficieDeclTotale += *pl.SuperficieCacaoHa
			}
			if surface := surfaceByPlantation[pl.CodePlantation]; surface != nil {
				s.NbJointes++
				s.SuperficieCalcTotale += *surface
			}
		}
		s.NbAnomalies = anomaliesByProducer[code]
		s.TauxCouvertureGeo = float64(s.NbJointes) / float64(s.NbPlantationsTotal) * 100
		s.TauxAnomalies = float64(s.NbAnomalies) / float64(s.NbPlantationsTotal) * 100
		s.EcartSurfaceTotalHa = s.SuperficieCalcTotale - s.SuperficieDeclTotale
		rows = append(rows, s)
	}

	zap.L().Info("synthesis: producer rollup done",
		zap.String("component", "synthesis"),
		zap.Int("producers", len(rows)),
	)
	return rows, nil
}

// PerCooperative averages producer syntheses per cooperative, unweighted,
// sorted by mean coverage descending. A cooperative with zero producers
// is an IntegrityError.
func PerCooperative(producers []model.ProducerSynthesis) ([]model.CoopSynthesis, error) {
	grouped := make(map[string][]model.ProducerSynthesis)
	var names []string
	for _, p := range producers {
		if _, ok := grouped[p.Cooperative]; !ok {
			names = append(names, p.Cooperative)
		}
		grouped[p.Cooperative] = append(grouped[p.Cooperative], p)
	}
	sort.Strings(names)

	rows := make([]model.CoopSynthesis, 0, len(names))
	for _, name := range names {
		group := grouped[name]
		if len(group) == 0 {
			intErr := &model.IntegrityError{Entity: "cooperative", Key: name, Reason: "zero producers in synthesis"}
			return nil, eris.Wrap(intErr, "synthesis: per cooperative")
		}

		c := model.CoopSynthesis{Cooperative: name, NbProducteurs: len(group)}
		for _, p := range group {
			c.CouvertureMoyenne += p.TauxCouvertureGeo
			c.TauxAnomaliesMoyen += p.TauxAnomalies
			c.EcartSurfaceMoyenHa += p.EcartSurfaceTotalHa
		}
		n := float64(len(group))
		c.CouvertureMoyenne /= n
		c.TauxAnomaliesMoyen /= n
		c.EcartSurfaceMoyenHa /= n
		rows = append(rows, c)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].CouvertureMoyenne > rows[j].CouvertureMoyenne
	})
	return rows, nil
}
