// Package pipeline runs the cleaning and control stages in dependency
// order over one raw snapshot: normalize, bounds, geometry, integrity,
// anomaly, duplicate, overlap, synthesize, audit. Artifacts are staged
// and published atomically so a failed run never overwrites the
// previous good set.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/artifact"
	"github.com/terroirdata/coopaudit/internal/audit"
	"github.com/terroirdata/coopaudit/internal/clean"
	"github.com/terroirdata/coopaudit/internal/config"
	"github.com/terroirdata/coopaudit/internal/detect"
	"github.com/terroirdata/coopaudit/internal/ingest"
	"github.com/terroirdata/coopaudit/internal/model"
	"github.com/terroirdata/coopaudit/internal/schema"
	"github.com/terroirdata/coopaudit/internal/synthesis"
	"github.com/terroirdata/coopaudit/internal/tabular"
)

// Artifact names read back by the status command.
const (
	JournalFile = "journal_execution.json"
	AuditFile   = "data_cleaning_audit.json"
)

// outputArtifacts lists every file a successful run leaves in the
// output folder, in write order.
var outputArtifacts = []string{
	"controles_bornes.json",
	"controles_integrite.json",
	"anomalies_surface.json",
	"doublons_producteurs.json",
	"doublons_parcelles.json",
	"chevauchements_parcelles.json",
	"synthese_coherence_producteurs.json",
	"synthese_coherence_coop.json",
	AuditFile,
	JournalFile,
}

// Pipeline executes one full run against the configured folders.
type Pipeline struct {
	cfg *config.Config
	reg *schema.Registry
}

// New creates a Pipeline over a loaded configuration and dataset
// registry.
func New(cfg *config.Config, reg *schema.Registry) *Pipeline {
	return &Pipeline{cfg: cfg, reg: reg}
}

// Summary is what a completed run reports back to the CLI.
type Summary struct {
	RunID              string
	Stages             []string
	Producers          int
	Plantations        int
	Parcels            int
	BoundsViolations   int
	IntegrityFindings  int
	AnomaliesFlagged   int
	DuplicateProducers int
	DuplicateParcels   int
	Overlaps           int
	Duration           time.Duration
}

// runState carries each stage's output to the stages after it. One
// instance per run, never shared across runs.
type runState struct {
	prodDS, plantDS       *schema.Dataset
	prodTable, plantTable *tabular.Table
	prodDiff, plantDiff   *clean.Diff

	producers   []model.Producer
	plantations []model.Plantation

	parcels  []model.Parcel
	features []ingest.RawFeature
	geoDiff  *clean.GeoDiff

	violations []model.BoundsViolation
	findings   []model.IntegrityFinding
	anomalies  []model.AnomalyRecord
	prodDups   []model.DuplicateGroup
	parcelDups []model.DuplicateGroup
	overlaps   []model.OverlapRecord

	perProducer []model.ProducerSynthesis
	perCoop     []model.CoopSynthesis
}

// Run executes every stage once over the current raw snapshot. Clean
// tables, control artifacts and display exports are written to staging
// directories and swapped into place only after the last stage
// succeeds; on any failure the live folders keep the previous run's
// files. A second concurrent run against the same output location is
// refused via the lock file.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	run := &model.PipelineRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Folders: model.FolderBindings{
			Raw:     p.cfg.Data.RawDir,
			Clean:   p.cfg.Data.CleanDir,
			Outputs: p.cfg.Data.OutputDir,
			Display: p.cfg.Data.DisplayDir,
		},
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", run.ID))
	log.Info("pipeline: starting run",
		zap.String("raw_dir", p.cfg.Data.RawDir),
		zap.Int("workers", p.cfg.Pipeline.Workers),
		zap.Float64("threshold_pct", p.cfg.Pipeline.AnomalyThresholdPct),
	)

	lock, err := AcquireLock(LockPath(p.cfg.Data.OutputDir), run)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	stager := artifact.NewStager(run.ID)
	published := false
	defer func() {
		if !published {
			stager.Discard()
		}
	}()

	cleanDir, err := stager.Dir(p.cfg.Data.CleanDir)
	if err != nil {
		return nil, err
	}
	outDir, err := stager.Dir(p.cfg.Data.OutputDir)
	if err != nil {
		return nil, err
	}
	dispDir, err := stager.Dir(p.cfg.Data.DisplayDir)
	if err != nil {
		return nil, err
	}

	st := &runState{}
	trackStage := func(name string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return eris.Wrapf(err, "pipeline: stage %s", name)
		}
		start := time.Now()
		if err := fn(); err != nil {
			log.Error("pipeline: stage failed",
				zap.String("stage", name),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Error(err),
			)
			return eris.Wrapf(err, "pipeline: stage %s", name)
		}
		run.RecordStage(name)
		log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	stages := []struct {
		name string
		fn   func() error
	}{
		{"normalize", func() error { return p.normalize(st, cleanDir) }},
		{"bounds", func() error { return p.bounds(st, outDir) }},
		{"geometry", func() error { return p.geometry(ctx, st, cleanDir) }},
		{"integrity", func() error { return p.integrity(st, outDir) }},
		{"anomaly", func() error { return p.anomaly(st, outDir) }},
		{"duplicate", func() error { return p.duplicates(st, outDir) }},
		{"overlap", func() error { return p.overlap(ctx, st, outDir) }},
		{"synthesize", func() error { return p.synthesize(st, outDir) }},
		{"audit", func() error { return p.audit(st, run, outDir, dispDir) }},
	}
	for _, s := range stages {
		if err := trackStage(s.name, s.fn); err != nil {
			return nil, err
		}
	}

	journal := model.RunJournal{
		DateExecution:   run.StartedAt,
		ScriptsExecuted: run.Stages,
		Folders:         run.Folders,
	}
	if err := artifact.WriteJSON(filepath.Join(outDir, JournalFile), journal); err != nil {
		return nil, err
	}

	if err := stager.Publish(); err != nil {
		return nil, err
	}
	published = true

	sum := &Summary{
		RunID:              run.ID,
		Stages:             append([]string(nil), run.Stages...),
		Producers:          len(st.producers),
		Plantations:        len(st.plantations),
		Parcels:            len(st.parcels),
		BoundsViolations:   len(st.violations),
		IntegrityFindings:  len(st.findings),
		AnomaliesFlagged:   detect.CountAnomalies(st.anomalies),
		DuplicateProducers: len(st.prodDups),
		DuplicateParcels:   len(st.parcelDups),
		Overlaps:           len(st.overlaps),
		Duration:           time.Since(run.StartedAt),
	}
	log.Info("pipeline: run complete",
		zap.Int("stages", len(sum.Stages)),
		zap.Int("anomalies_flagged", sum.AnomaliesFlagged),
		zap.Int("overlaps", sum.Overlaps),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// normalize reads the raw producer and plantation tables, applies the
// dataset contracts and writes the clean CSVs.
func (p *Pipeline) normalize(st *runState, cleanDir string) error {
	norm := clean.NewNormalizer(p.reg)
	for _, name := range []string{"coop_producteurs", "coop_plantations"} {
		ds, err := p.reg.Dataset(name)
		if err != nil {
			return err
		}
		raw, err := tabular.ReadCSV(filepath.Join(p.cfg.Data.RawDir, name+".csv"))
		if err != nil {
			return err
		}
		tbl, diff, err := norm.Normalize(ds, raw)
		if err != nil {
			return err
		}
		if err := tabular.WriteCSV(filepath.Join(cleanDir, name+".csv"), tbl); err != nil {
			return err
		}
		if name == "coop_producteurs" {
			st.prodDS, st.prodTable, st.prodDiff = ds, tbl, diff
		} else {
			st.plantDS, st.plantTable, st.plantDiff = ds, tbl, diff
		}
	}
	st.producers = clean.ProducersFromTable(st.prodTable)
	st.plantations = clean.PlantationsFromTable(st.plantTable)
	return nil
}

func (p *Pipeline) bounds(st *runState, outDir string) error {
	st.violations = detect.CheckBounds(st.prodDS, st.prodTable)
	st.violations = append(st.violations, detect.CheckBounds(st.plantDS, st.plantTable)...)
	return artifact.WriteJSON(filepath.Join(outDir, "controles_bornes.json"), st.violations)
}

// geometry cleans the parcel snapshot and writes the clean GeoJSON.
// Deduplication only runs when the config invokes it; by default
// duplicates survive the clean snapshot and the duplicate stage
// reports them.
func (p *Pipeline) geometry(ctx context.Context, st *runState, cleanDir string) error {
	pc, err := ingest.ReadGeoJSON(filepath.Join(p.cfg.Data.RawDir, "parcelles.geojson"))
	if err != nil {
		return err
	}
	gc := clean.NewGeoCleaner(p.reg.Parcelles, p.cfg.Pipeline.Workers, p.cfg.Pipeline.DedupParcels)
	st.parcels, st.features, st.geoDiff, err = gc.Clean(ctx, pc)
	if err != nil {
		return err
	}
	return ingest.WriteGeoJSON(filepath.Join(cleanDir, "parcelles_clean.geojson"), st.features)
}

// integrity runs the cross-table checks. A broken key relation is
// fatal here, before any anomaly work starts.
func (p *Pipeline) integrity(st *runState, outDir string) error {
	findings, err := detect.CheckIntegrity(st.producers, st.plantations, st.parcels, p.cfg.Pipeline.AnomalyThresholdPct)
	if err != nil {
		return err
	}
	st.findings = findings
	return artifact.WriteJSON(filepath.Join(outDir, "controles_integrite.json"), findings)
}

func (p *Pipeline) anomaly(st *runState, outDir string) error {
	st.anomalies = detect.CompareSurfaces(st.plantations, st.parcels, p.cfg.Pipeline.AnomalyThresholdPct)
	return artifact.WriteJSON(filepath.Join(outDir, "anomalies_surface.json"), st.anomalies)
}

func (p *Pipeline) duplicates(st *runState, outDir string) error {
	rows := make([]map[string]any, len(st.prodTable.Rows))
	for i := range st.prodTable.Rows {
		rows[i] = st.prodTable.RowMap(i, st.prodDiff.TypesClean)
	}
	st.prodDups = detect.DuplicateProducers(rows)

	parcelRows := make([]map[string]any, len(st.features))
	for i, f := range st.features {
		parcelRows[i] = f.Properties
	}
	st.parcelDups = detect.DuplicateParcels(st.parcels, parcelRows)

	if err := artifact.WriteJSON(filepath.Join(outDir, "doublons_producteurs.json"), st.prodDups); err != nil {
		return err
	}
	return artifact.WriteJSON(filepath.Join(outDir, "doublons_parcelles.json"), st.parcelDups)
}

func (p *Pipeline) overlap(ctx context.Context, st *runState, outDir string) error {
	det := detect.NewOverlapDetector(p.cfg.Pipeline.Workers)
	overlaps, err := det.Detect(ctx, st.parcels)
	if err != nil {
		return err
	}
	st.overlaps = overlaps
	return artifact.WriteJSON(filepath.Join(outDir, "chevauchements_parcelles.json"), overlaps)
}

func (p *Pipeline) synthesize(st *runState, outDir string) error {
	perProducer, err := synthesis.PerProducer(st.plantations, st.parcels, st.anomalies)
	if err != nil {
		return err
	}
	perCoop, err := synthesis.PerCooperative(perProducer)
	if err != nil {
		return err
	}
	st.perProducer, st.perCoop = perProducer, perCoop

	if err := artifact.WriteJSON(filepath.Join(outDir, "synthese_coherence_producteurs.json"), perProducer); err != nil {
		return err
	}
	return artifact.WriteJSON(filepath.Join(outDir, "synthese_coherence_coop.json"), perCoop)
}

// audit assembles the cleaning audit from the stage diffs, then the
// display exports derived from everything upstream.
func (p *Pipeline) audit(st *runState, run *model.PipelineRun, outDir, dispDir string) error {
	rec := audit.NewRecorder()
	rec.RecordTable(st.prodDiff)
	rec.RecordTable(st.plantDiff)
	rec.RecordGeo("parcelles", st.geoDiff)
	if err := artifact.WriteJSON(filepath.Join(outDir, AuditFile), rec.Build(run.StartedAt)); err != nil {
		return err
	}
	return p.exportDisplay(st, run, dispDir)
}

func (p *Pipeline) exportDisplay(st *runState, run *model.PipelineRun, dispDir string) error {
	meta := artifact.ReportMetadata{
		DateExecution: run.StartedAt,
		Datasets: map[string]int{
			"coop_producteurs": len(st.producers),
			"coop_plantations": len(st.plantations),
			"parcelles":        len(st.parcels),
		},
		Artefacts: outputArtifacts,
		Folders:   run.Folders,
	}

	exports := []struct {
		name string
		v    any
	}{
		{"global_stats.json", artifact.BuildGlobalStats(len(st.producers), len(st.plantations), st.anomalies, len(st.overlaps), run.StartedAt)},
		{"resume_anomalies.json", artifact.BuildResume(st.anomalies, st.prodDups, st.parcelDups, len(st.overlaps), run.StartedAt)},
		{"anomalies_tabulaire.json", artifact.CountAnomalyTypes(st.violations, st.prodDups, st.parcelDups)},
		{"surfaces_distribution.json", artifact.DistributeEcarts(st.anomalies)},
		{"top_producteurs_anomalies.json", artifact.TopProducers(st.perProducer)},
		{"anomalies_par_coop.json", artifact.CoopAnomalyRates(st.perCoop)},
		{"chevauchements_summary.json", artifact.SummarizeOverlaps(st.overlaps)},
		{"report_metadata.json", meta},
	}
	for _, e := range exports {
		if err := artifact.WriteJSON(filepath.Join(dispDir, e.name), e.v); err != nil {
			return err
		}
	}
	return nil
}
