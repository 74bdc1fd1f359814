package model

import (
	"time"

	"github.com/twpayne/go-geom"
)

// Producer is one cooperative member row from the cleaned producer table.
type Producer struct {
	CodeProducteur          string   `json:"code_producteur"`
	NomProducteur           string   `json:"nom_producteur"`
	Cooperative             string   `json:"cooperative"`
	SuperficieTotaleCacaoHa *float64 `json:"superficie_totale_cacao_ha"`
	EstimationTotaleKg      *float64 `json:"estimation_totale_kg"`
}

// Plantation is one declared plantation row from the cleaned plantation table.
// Surface here is what the producer declared, not what the geometry measures.
type Plantation struct {
	CodePlantation    string   `json:"code_plantation"`
	CodeProducteur    string   `json:"code_producteur"`
	Cooperative       string   `json:"cooperative"`
	SuperficieCacaoHa *float64 `json:"superficie_cacao_ha"`
	EstimationKg      *float64 `json:"estimation_kg"`
}

// Parcel is one geometry-bearing feature from the parcel snapshot.
// Geometry is nil when the source feature was empty or unrepairable;
// such parcels keep their row but are excluded from surface-dependent
// outputs.
type Parcel struct {
	Index             int      // feature position in the source file
	CodePlantation    string   // joins Plantation.CodePlantation
	CodeProducteur    string
	Geometry          geom.T   // EPSG:4326, repaired if needed
	Projected         geom.T   // same geometry in the run's metric CRS
	Fingerprint       string   // hex SHA-256 over EWKB bytes, "" without geometry
	SurfaceCalculeeHa *float64 // nil when geometry is nil
	Repaired          bool
}

// AnomalyRecord is one parcel's surface comparison. Emitted for every
// parcel with both a declared and a calculated area; AnomalieSurface
// marks the ones past the tolerance threshold.
type AnomalyRecord struct {
	CodePlantation    string  `json:"code_plantation"`
	CodeProducteur    string  `json:"code_producteur"`
	Cooperative       string  `json:"cooperative"`
	SuperficieCacaoHa float64 `json:"superficie_cacao_ha"`
	SurfaceCalculeeHa float64 `json:"surface_calculee_ha"`
	EcartSurfacePct   float64 `json:"ecart_surface_pct"`
	AnomalieSurface   bool    `json:"anomalie_surface"`
}

// DuplicateGroup is a set of ≥2 raw rows sharing one matching key.
// Rows are retained verbatim; the detector reports, it never merges.
type DuplicateGroup struct {
	Key  string           `json:"cle"`
	Rows []map[string]any `json:"lignes"`
}

// OverlapRecord is one unordered pair of parcels whose geometries
// intersect with positive area. CodePlantationA sorts before
// CodePlantationB so each pair is stored exactly once.
type OverlapRecord struct {
	CodePlantationA string  `json:"code_plantation_a"`
	CodePlantationB string  `json:"code_plantation_b"`
	OverlapAreaHa   float64 `json:"overlap_area_ha"`
	OverlapPctA     float64 `json:"overlap_pct_a"`
	OverlapPctB     float64 `json:"overlap_pct_b"`
}

// ProducerSynthesis aggregates one producer's parcels.
type ProducerSynthesis struct {
	CodeProducteur       string  `json:"code_producteur"`
	Cooperative          string  `json:"cooperative"`
	NbPlantationsTotal   int     `json:"nb_plantations_total"`
	SuperficieDeclTotale float64 `json:"superficie_decl_totale"`
	NbJointes            int     `json:"nb_jointes"`
	SuperficieCalcTotale float64 `json:"superficie_calc_totale"`
	NbAnomalies          int     `json:"nb_anomalies"`
	TauxCouvertureGeo    float64 `json:"taux_couverture_geo"`
	TauxAnomalies        float64 `json:"taux_anomalies"`
	EcartSurfaceTotalHa  float64 `json:"ecart_surface_total_ha"`
}

// CoopSynthesis averages producer syntheses over one cooperative,
// unweighted.
type CoopSynthesis struct {
	Cooperative         string  `json:"cooperative"`
	NbProducteurs       int     `json:"nb_producteurs"`
	CouvertureMoyenne   float64 `json:"couverture_moyenne"`
	TauxAnomaliesMoyen  float64 `json:"taux_anomalies_moyen"`
	EcartSurfaceMoyenHa float64 `json:"ecart_surface_moyen_ha"`
}

// BoundsViolation is one cell outside its configured business range.
// Violations are reported, never dropped from the clean dataset.
type BoundsViolation struct {
	Dataset string  `json:"dataset"`
	Key     string  `json:"cle"`
	Column  string  `json:"colonne"`
	Value   float64 `json:"valeur"`
	Min     float64 `json:"borne_min"`
	Max     float64 `json:"borne_max"`
}

// IntegrityFinding is one non-fatal cross-table inconsistency, such as
// a cooperative label that differs between the producer and plantation
// tables for the same producer.
type IntegrityFinding struct {
	Kind    string `json:"type"`
	Key     string `json:"cle"`
	Detail  string `json:"detail"`
	Dataset string `json:"dataset"`
}

// TypeChange records a column whose inferred type label changed during
// normalization.
type TypeChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AuditEntry is the raw→clean diff for one logical dataset.
// PercentRetained is nil (serialized null) for an empty raw dataset.
type AuditEntry struct {
	Dataset                string                `json:"dataset"`
	RowsRaw                int                   `json:"rows_raw"`
	RowsClean              int                   `json:"rows_clean"`
	RowsRemoved            int                   `json:"rows_removed"`
	RowsRemovedPct         float64               `json:"rows_removed_pct"`
	PercentRetained        *float64              `json:"percent_retained"`
	ColumnsRaw             []string              `json:"columns_raw"`
	ColumnsClean           []string              `json:"columns_clean"`
	ColumnsAdded           []string              `json:"columns_added"`
	ColumnsRemoved         []string              `json:"columns_removed"`
	TypeChanges            map[string]TypeChange `json:"type_changes"`
	MissingValuesRaw       int                   `json:"missing_values_raw"`
	MissingValuesClean     int                   `json:"missing_values_clean"`
	MissingReduction       int                   `json:"missing_reduction"`
	SanityCheck            bool                  `json:"sanity_check"`
	DuplicatesRemoved      int                   `json:"duplicates_removed"`
	CRSRaw                 string                `json:"crs_raw,omitempty"`
	CRSClean               string                `json:"crs_clean,omitempty"`
	InvalidGeometriesFixed *int                  `json:"invalid_geometries_fixed,omitempty"`
	GeometryFailures       *int                  `json:"geometry_failures,omitempty"`
}

// AuditRecord is the full cleaning audit for one run.
type AuditRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	Datasets  []AuditEntry `json:"datasets"`
}

// FolderBindings names the directories one run read from and wrote to.
type FolderBindings struct {
	Raw     string `json:"raw"`
	Clean   string `json:"clean"`
	Outputs string `json:"outputs"`
	Display string `json:"display"`
}

// RunJournal is the orchestrator's user-facing record of one run.
type RunJournal struct {
	DateExecution   time.Time      `json:"date_execution"`
	ScriptsExecuted []string       `json:"scripts_executed"`
	Folders         FolderBindings `json:"folders"`
}

// PipelineRun is the process-wide state for a single execution. Created
// at orchestration start, threaded through every stage, discarded after
// the journal is written.
type PipelineRun struct {
	ID        string
	StartedAt time.Time
	Stages    []string
	Folders   FolderBindings
}

// RecordStage appends a completed stage name in execution order.
func (r *PipelineRun) RecordStage(name string) {
	r.Stages = append(r.Stages, name)
}
