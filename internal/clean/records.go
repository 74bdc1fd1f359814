package clean

import (
	"github.com/terroirdata/coopaudit/internal/model"
	"github.com/terroirdata/coopaudit/internal/tabular"
)

// ProducersFromTable reads typed producer records out of the clean
// producer table.
func ProducersFromTable(t *tabular.Table) []model.Producer {
	out := make([]model.Producer, 0, len(t.Rows))
	for i := range t.Rows {
		out = append(out, model.Producer{
			CodeProducteur:          t.Cell(i, "code_producteur"),
			NomProducteur:           t.Cell(i, "nom_producteur"),
			Cooperative:             t.Cell(i, "cooperative"),
			SuperficieTotaleCacaoHa: cellFloat(t, i, "superficie_totale_cacao_ha"),
			EstimationTotaleKg:      cellFloat(t, i, "estimation_totale_kg"),
		})
	}
	return out
}

// PlantationsFromTable reads typed plantation records out of the clean
// plantation table.
func PlantationsFromTable(t *tabular.Table) []model.Plantation {
	out := make([]model.Plantation, 0, len(t.Rows))
	for i := range t.Rows {
		out = append(out, model.Plantation{
			CodePlantation:    t.Cell(i, "code_plantation"),
			CodeProducteur:    t.Cell(i, "code_producteur"),
			Cooperative:       t.Cell(i, "cooperative"),
			SuperficieCacaoHa: cellFloat(t, i, "superficie_cacao_ha"),
			EstimationKg:      cellFloat(t, i, "estimation_kg"),
		})
	}
	return out
}

func cellFloat(t *tabular.Table, row int, col string) *float64 {
	cell := t.Cell(row, col)
	if cell == "" {
		return nil
	}
	v, ok := tabular.ParseFloatSmart(cell)
	if !ok {
		return nil
	}
	return &v
}
