package artifact

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/terroirdata/coopaudit/internal/model"
)

// GlobalStats is the dashboard's headline card.
type GlobalStats struct {
	TotalProducteurs     int       `json:"total_producteurs"`
	TotalPlantations     int       `json:"total_plantations"`
	TotalAnomalies       int       `json:"total_anomalies"`
	TauxAnomaliesSurface float64   `json:"taux_anomalies_surface"`
	NbChevauchements     int       `json:"nb_chevauchements"`
	DateGeneration       time.Time `json:"date_generation"`
}

// ResumeEntry is the one-row run summary. Deviation statistics cover
// flagged parcels only and are null when the run flagged none.
type ResumeEntry struct {
	Timestamp             time.Time `json:"timestamp"`
	NbAnomaliesSurface    int       `json:"nb_anomalies_surface"`
	NbDoublonsProducteurs int       `json:"nb_doublons_producteurs"`
	NbDoublonsParcelles   int       `json:"nb_doublons_parcelles"`
	NbChevauchements      int       `json:"nb_chevauchements"`
	EcartMoyenPct         *float64  `json:"ecart_moyen_pct"`
	EcartMinPct           *float64  `json:"ecart_min_pct"`
	EcartMaxPct           *float64  `json:"ecart_max_pct"`
}

// TypeCount is one anomaly label with its row count.
type TypeCount struct {
	TypeAnomalie string `json:"type_anomalie"`
	Nb           int    `json:"nb"`
}

// BinCount is one histogram class of surface deviations.
type BinCount struct {
	Classe string `json:"classe"`
	Count  int    `json:"count"`
}

// TopProducer is one row of the worst-offenders table.
type TopProducer struct {
	CodeProducteur string `json:"code_producteur"`
	NbAnomalies    int    `json:"nb_anomalies"`
	Cooperative    string `json:"cooperative"`
}

// CoopAnomalies is the per-cooperative anomaly rate projection.
type CoopAnomalies struct {
	Cooperative        string  `json:"cooperative"`
	NbProducteurs      int     `json:"nb_producteurs"`
	TauxAnomaliesMoyen float64 `json:"taux_anomalies_moyen"`
}

// OverlapSummary condenses the pairwise overlap table. ParParcelle
// counts each parcel's total involvement across pairs.
type OverlapSummary struct {
	NbPaires        int                  `json:"nb_paires"`
	SurfaceTotaleHa float64              `json:"surface_totale_ha"`
	SurfaceMaxHa    float64              `json:"surface_max_ha"`
	ParParcelle     []ParcelOverlapCount `json:"par_parcelle"`
}

// ParcelOverlapCount is one parcel's overlap pair count.
type ParcelOverlapCount struct {
	CodePlantation   string `json:"code_plantation"`
	NbChevauchements int    `json:"nb_chevauchements"`
}

// ReportMetadata describes what one run produced and where.
type ReportMetadata struct {
	DateExecution time.Time            `json:"date_execution"`
	Datasets      map[string]int       `json:"datasets"`
	Artefacts     []string             `json:"artefacts"`
	Folders       model.FolderBindings `json:"folders"`
}

// BuildGlobalStats computes the headline indicators. The anomaly rate
// is flagged parcels over all compared parcels, zero when nothing was
// comparable.
func BuildGlobalStats(producers, plantations int, records []model.AnomalyRecord, overlaps int, at time.Time) GlobalStats {
	flagged := 0
	for _, r := range records {
		if r.AnomalieSurface {
			flagged++
		}
	}
	g := GlobalStats{
		TotalProducteurs: producers,
		TotalPlantations: plantations,
		TotalAnomalies:   flagged,
		NbChevauchements: overlaps,
		DateGeneration:   at.UTC(),
	}
	if len(records) > 0 {
		g.TauxAnomaliesSurface = float64(flagged) / float64(len(records)) * 100
	}
	return g
}

// BuildResume builds the single-row summary table. Duplicate counts
// are rows involved in duplication, not group counts, so they match
// the row counts of the duplicate artifacts.
func BuildResume(records []model.AnomalyRecord, producerDups, parcelDups []model.DuplicateGroup, overlaps int, at time.Time) []ResumeEntry {
	e := ResumeEntry{
		Timestamp:        at.UTC(),
		NbChevauchements: overlaps,
	}
	for _, g := range producerDups {
		e.NbDoublonsProducteurs += len(g.Rows)
	}
	for _, g := range parcelDups {
		e.NbDoublonsParcelles += len(g.Rows)
	}

	var sum, minPct, maxPct float64
	for _, r := range records {
		if !r.AnomalieSurface {
			continue
		}
		if e.NbAnomaliesSurface == 0 || r.EcartSurfacePct < minPct {
			minPct = r.EcartSurfacePct
		}
		if e.NbAnomaliesSurface == 0 || r.EcartSurfacePct > maxPct {
			maxPct = r.EcartSurfacePct
		}
		sum += r.EcartSurfacePct
		e.NbAnomaliesSurface++
	}
	if e.NbAnomaliesSurface > 0 {
		mean := sum / float64(e.NbAnomaliesSurface)
		e.EcartMoyenPct = &mean
		e.EcartMinPct = &minPct
		e.EcartMaxPct = &maxPct
	}
	return []ResumeEntry{e}
}

// CountAnomalyTypes aggregates bounds violations and duplicate groups
// into per-label counts, largest first, ties by label.
func CountAnomalyTypes(violations []model.BoundsViolation, producerDups, parcelDups []model.DuplicateGroup) []TypeCount {
	counts := make(map[string]int)
	for _, v := range violations {
		label := fmt.Sprintf("%s hors bornes [%g; %g]", v.Column, v.Min, v.Max)
		counts[label]++
	}
	for _, g := range producerDups {
		counts["Doublon sur coop_producteurs"] += len(g.Rows)
	}
	for _, g := range parcelDups {
		counts["Doublon sur parcelles"] += len(g.Rows)
	}

	out := make([]TypeCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, TypeCount{TypeAnomalie: label, Nb: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Nb != out[j].Nb {
			return out[i].Nb > out[j].Nb
		}
		return out[i].TypeAnomalie < out[j].TypeAnomalie
	})
	return out
}

// ecartBins are the fixed histogram classes: open tails around
// lower-exclusive, upper-inclusive interior intervals.
var ecartBins = []struct {
	label  string
	lo, hi float64
}{
	{"< -100%", math.Inf(-1), -100},
	{"-100% a -50%", -100, -50},
	{"-50% a -10%", -50, -10},
	{"-10% a +10%", -10, 10},
	{"+10% a +50%", 10, 50},
	{"+50% a +100%", 50, 100},
	{"> +100%", 100, math.Inf(1)},
}

// DistributeEcarts buckets every compared parcel's deviation into the
// fixed classes. All classes appear in bin order, zero counts kept.
func DistributeEcarts(records []model.AnomalyRecord) []BinCount {
	counts := make([]int, len(ecartBins))
	for _, r := range records {
		for i, b := range ecartBins {
			if r.EcartSurfacePct > b.lo && r.EcartSurfacePct <= b.hi {
				counts[i]++
				break
			}
		}
	}
	out := make([]BinCount, len(ecartBins))
	for i, b := range ecartBins {
		out[i] = BinCount{Classe: b.label, Count: counts[i]}
	}
	return out
}

// TopProducers returns the ten producers with the most flagged
// parcels, ties broken by producer code.
func TopProducers(rows []model.ProducerSynthesis) []TopProducer {
	sorted := make([]model.ProducerSynthesis, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].NbAnomalies != sorted[j].NbAnomalies {
			return sorted[i].NbAnomalies > sorted[j].NbAnomalies
		}
		return sorted[i].CodeProducteur < sorted[j].CodeProducteur
	})
	if len(sorted) > 10 {
		sorted = sorted[:10]
	}
	out := make([]TopProducer, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, TopProducer{
			CodeProducteur: r.CodeProducteur,
			NbAnomalies:    r.NbAnomalies,
			Cooperative:    r.Cooperative,
		})
	}
	return out
}

// CoopAnomalyRates projects the cooperative synthesis for display,
// keeping its order.
func CoopAnomalyRates(rows []model.CoopSynthesis) []CoopAnomalies {
	out := make([]CoopAnomalies, 0, len(rows))
	for _, r := range rows {
		out = append(out, CoopAnomalies{
			Cooperative:        r.Cooperative,
			NbProducteurs:      r.NbProducteurs,
			TauxAnomaliesMoyen: r.TauxAnomaliesMoyen,
		})
	}
	return out
}

// SummarizeOverlaps condenses the overlap pairs. Per-parcel counts
// include both sides of each pair, largest first, ties by code.
func SummarizeOverlaps(records []model.OverlapRecord) OverlapSummary {
	s := OverlapSummary{
		NbPaires:    len(records),
		ParParcelle: []ParcelOverlapCount{},
	}
	counts := make(map[string]int)
	for _, r := range records {
		s.SurfaceTotaleHa += r.OverlapAreaHa
		if r.OverlapAreaHa > s.SurfaceMaxHa {
			s.SurfaceMaxHa = r.OverlapAreaHa
		}
		counts[r.CodePlantationA]++
		counts[r.CodePlantationB]++
	}
	for code, n := range counts {
		s.ParParcelle = append(s.ParParcelle, ParcelOverlapCount{CodePlantation: code, NbChevauchements: n})
	}
	sort.Slice(s.ParParcelle, func(i, j int) bool {
		a, b := s.ParParcelle[i], s.ParParcelle[j]
		if a.NbChevauchements != b.NbChevauchements {
			return a.NbChevauchements > b.NbChevauchements
		}
		return a.CodePlantation < b.CodePlantation
	})
	return s
}
