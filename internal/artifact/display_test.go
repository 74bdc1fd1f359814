package artifact

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terroirdata/coopaudit/internal/model"
)

func TestBuildGlobalStats(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	records := []model.AnomalyRecord{
		{EcartSurfacePct: -31.3, AnomalieSurface: true},
		{EcartSurfacePct: 5.0},
		{EcartSurfacePct: -8.0},
	}

	g := BuildGlobalStats(3518, 3540, records, 37, at)

	assert.Equal(t, 3518, g.TotalProducteurs)
	assert.Equal(t, 3540, g.TotalPlantations)
	assert.Equal(t, 1, g.TotalAnomalies)
	assert.InDelta(t, 33.3333333333, g.TauxAnomaliesSurface, 1e-9)
	assert.Equal(t, 37, g.NbChevauchements)
	assert.Equal(t, at, g.DateGeneration)
}

func TestBuildGlobalStats_NoComparisons(t *testing.T) {
	g := BuildGlobalStats(10, 12, nil, 0, time.Now())
	assert.Zero(t, g.TotalAnomalies)
	assert.Zero(t, g.TauxAnomaliesSurface)
}

func TestBuildResume(t *testing.T) {
	records := []model.AnomalyRecord{
		{EcartSurfacePct: -31.3, AnomalieSurface: true},
		{EcartSurfacePct: 42.0, AnomalieSurface: true},
		{EcartSurfacePct: 5.0},
	}
	producerDups := []model.DuplicateGroup{
		{Key: "p001|aya brou", Rows: make([]map[string]any, 2)},
	}
	parcelDups := []model.DuplicateGroup{
		{Key: "aaaa|p001", Rows: make([]map[string]any, 3)},
	}
	at := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	rows := BuildResume(records, producerDups, parcelDups, 4, at)
	require.Len(t, rows, 1)

	e := rows[0]
	assert.Equal(t, at, e.Timestamp)
	assert.Equal(t, 2, e.NbAnomaliesSurface)
	assert.Equal(t, 2, e.NbDoublonsProducteurs)
	assert.Equal(t, 3, e.NbDoublonsParcelles)
	assert.Equal(t, 4, e.NbChevauchements)
	require.NotNil(t, e.EcartMoyenPct)
	assert.InDelta(t, 5.35, *e.EcartMoyenPct, 1e-9)
	require.NotNil(t, e.EcartMinPct)
	assert.Equal(t, -31.3, *e.EcartMinPct)
	require.NotNil(t, e.EcartMaxPct)
	assert.Equal(t, 42.0, *e.EcartMaxPct)
}

func TestBuildResume_NoAnomaliesNullStats(t *testing.T) {
	rows := BuildResume([]model.AnomalyRecord{{EcartSurfacePct: 3.0}}, nil, nil, 0, time.Now())
	require.Len(t, rows, 1)

	e := rows[0]
	assert.Zero(t, e.NbAnomaliesSurface)
	assert.Nil(t, e.EcartMoyenPct)
	assert.Nil(t, e.EcartMinPct)
	assert.Nil(t, e.EcartMaxPct)
}

func TestCountAnomalyTypes(t *testing.T) {
	violations := []model.BoundsViolation{
		{Dataset: "coop_producteurs", Key: "P002", Column: "annee_naissance", Value: 1920, Min: 1930, Max: 2005},
		{Dataset: "coop_producteurs", Key: "P003", Column: "superficie_totale_cacao_ha", Value: 120, Min: 0.1, Max: 50},
		{Dataset: "coop_producteurs", Key: "P004", Column: "superficie_totale_cacao_ha", Value: 0.05, Min: 0.1, Max: 50},
	}
	producerDups := []model.DuplicateGroup{
		{Key: "p001|aya brou", Rows: make([]map[string]any, 2)},
	}

	out := CountAnomalyTypes(violations, producerDups, nil)

	require.Len(t, out, 3)
	assert.Equal(t, TypeCount{TypeAnomalie: "Doublon sur coop_producteurs", Nb: 2}, out[0])
	assert.Equal(t, TypeCount{TypeAnomalie: "superficie_totale_cacao_ha hors bornes [0.1; 50]", Nb: 2}, out[1])
	assert.Equal(t, TypeCount{TypeAnomalie: "annee_naissance hors bornes [1930; 2005]", Nb: 1}, out[2])
}

func TestCountAnomalyTypes_Empty(t *testing.T) {
	out := CountAnomalyTypes(nil, nil, nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestDistributeEcarts(t *testing.T) {
	// Interior classes exclude their lower edge and include the upper
	// one; the tails are open.
	records := []model.AnomalyRecord{
		{EcartSurfacePct: -100},
		{EcartSurfacePct: -50},
		{EcartSurfacePct: -31.3},
		{EcartSurfacePct: -10},
		{EcartSurfacePct: 0},
		{EcartSurfacePct: 10},
		{EcartSurfacePct: 10.5},
		{EcartSurfacePct: 100},
		{EcartSurfacePct: 240},
	}

	out := DistributeEcarts(records)

	assert.Equal(t, []BinCount{
		{Classe: "< -100%", Count: 1},
		{Classe: "-100% a -50%", Count: 1},
		{Classe: "-50% a -10%", Count: 2},
		{Classe: "-10% a +10%", Count: 2},
		{Classe: "+10% a +50%", Count: 1},
		{Classe: "+50% a +100%", Count: 1},
		{Classe: "> +100%", Count: 1},
	}, out)
}

func TestDistributeEcarts_EmptyKeepsAllClasses(t *testing.T) {
	out := DistributeEcarts(nil)
	require.Len(t, out, 7)
	assert.Equal(t, "< -100%", out[0].Classe)
	assert.Equal(t, "> +100%", out[6].Classe)
	for _, b := range out {
		assert.Zero(t, b.Count)
	}
}

func TestTopProducers(t *testing.T) {
	rows := make([]model.ProducerSynthesis, 0, 12)
	for i := 0; i < 12; i++ {
		rows = append(rows, model.ProducerSynthesis{
			CodeProducteur: fmt.Sprintf("P%03d", i+1),
			Cooperative:    "COOPA",
			NbAnomalies:    i % 4,
		})
	}

	out := TopProducers(rows)

	require.Len(t, out, 10)
	codes := make([]string, len(out))
	for i, r := range out {
		codes[i] = r.CodeProducteur
	}
	assert.Equal(t, []string{
		"P004", "P008", "P012",
		"P003", "P007", "P011",
		"P002", "P006", "P010",
		"P001",
	}, codes)
	assert.Equal(t, "P001", rows[0].CodeProducteur, "input order must not change")
}

func TestTopProducers_FewerThanTen(t *testing.T) {
	rows := []model.ProducerSynthesis{
		{CodeProducteur: "P002", NbAnomalies: 1, Cooperative: "COOPB"},
		{CodeProducteur: "P001", NbAnomalies: 1, Cooperative: "COOPA"},
	}

	out := TopProducers(rows)

	require.Len(t, out, 2)
	assert.Equal(t, "P001", out[0].CodeProducteur, "ties break on producer code")
	assert.Equal(t, "COOPA", out[0].Cooperative)
}

func TestCoopAnomalyRates_KeepsOrder(t *testing.T) {
	rows := []model.CoopSynthesis{
		{Cooperative: "COOPB", NbProducteurs: 4, CouvertureMoyenne: 80, TauxAnomaliesMoyen: 25},
		{Cooperative: "COOPA", NbProducteurs: 2, CouvertureMoyenne: 50, TauxAnomaliesMoyen: 75},
	}

	out := CoopAnomalyRates(rows)

	require.Len(t, out, 2)
	assert.Equal(t, CoopAnomalies{Cooperative: "COOPB", NbProducteurs: 4, TauxAnomaliesMoyen: 25}, out[0])
	assert.Equal(t, CoopAnomalies{Cooperative: "COOPA", NbProducteurs: 2, TauxAnomaliesMoyen: 75}, out[1])
}

func TestSummarizeOverlaps(t *testing.T) {
	records := []model.OverlapRecord{
		{CodePlantationA: "PL001", CodePlantationB: "PL002", OverlapAreaHa: 0.5},
		{CodePlantationA: "PL001", CodePlantationB: "PL003", OverlapAreaHa: 0.2},
		{CodePlantationA: "PL002", CodePlantationB: "PL003", OverlapAreaHa: 0.1},
	}

	s := SummarizeOverlaps(records)

	assert.Equal(t, 3, s.NbPaires)
	assert.InDelta(t, 0.8, s.SurfaceTotaleHa, 1e-12)
	assert.Equal(t, 0.5, s.SurfaceMaxHa)
	assert.Equal(t, []ParcelOverlapCount{
		{CodePlantation: "PL001", NbChevauchements: 2},
		{CodePlantation: "PL002", NbChevauchements: 2},
		{CodePlantation: "PL003", NbChevauchements: 2},
	}, s.ParParcelle)
}

func TestSummarizeOverlaps_Empty(t *testing.T) {
	s := SummarizeOverlaps(nil)
	assert.Zero(t, s.NbPaires)
	assert.Zero(t, s.SurfaceTotaleHa)
	require.NotNil(t, s.ParParcelle)
	assert.Empty(t, s.ParParcelle)
}
