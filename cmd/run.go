package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/pipeline"
	"github.com/terroirdata/coopaudit/internal/schema"
)

var (
	runRawDir     string
	runCleanDir   string
	runOutputDir  string
	runDisplayDir string
	runWorkers    int
	runThreshold  float64
	runDedup      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full cleaning and control pipeline",
	Long:  "Normalizes the producer and plantation tables, cleans the parcel snapshot, runs every control, and publishes the clean data, control artifacts, audit trail and display exports in one atomic swap.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runRawDir != "" {
			cfg.Data.RawDir = runRawDir
		}
		if runCleanDir != "" {
			cfg.Data.CleanDir = runCleanDir
		}
		if runOutputDir != "" {
			cfg.Data.OutputDir = runOutputDir
		}
		if runDisplayDir != "" {
			cfg.Data.DisplayDir = runDisplayDir
		}
		if runWorkers > 0 {
			cfg.Pipeline.Workers = runWorkers
		}
		if runThreshold > 0 {
			cfg.Pipeline.AnomalyThresholdPct = runThreshold
		}
		if runDedup {
			cfg.Pipeline.DedupParcels = true
		}

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		reg, err := schema.Load()
		if err != nil {
			return eris.Wrap(err, "load schema registry")
		}

		sum, err := pipeline.New(cfg, reg).Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", sum.RunID),
			zap.Duration("duration", sum.Duration),
		)

		fmt.Println("=== Pipeline Run ===")
		fmt.Printf("Run ID:              %s\n", sum.RunID)
		fmt.Printf("Duration:            %s\n", sum.Duration.Round(time.Millisecond))
		fmt.Printf("Stages completed:    %d\n", len(sum.Stages))
		fmt.Println()
		fmt.Printf("Producers:           %d\n", sum.Producers)
		fmt.Printf("Plantations:         %d\n", sum.Plantations)
		fmt.Printf("Parcels:             %d\n", sum.Parcels)
		fmt.Println()
		fmt.Printf("Bounds violations:   %d\n", sum.BoundsViolations)
		fmt.Printf("Integrity findings:  %d\n", sum.IntegrityFindings)
		fmt.Printf("Surface anomalies:   %d\n", sum.AnomaliesFlagged)
		fmt.Printf("Duplicate producers: %d\n", sum.DuplicateProducers)
		fmt.Printf("Duplicate parcels:   %d\n", sum.DuplicateParcels)
		fmt.Printf("Parcel overlaps:     %d\n", sum.Overlaps)

		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runRawDir, "raw-dir", "", "raw input folder (default from config)")
	runCmd.Flags().StringVar(&runCleanDir, "clean-dir", "", "clean output folder (default from config)")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "control artifact folder (default from config)")
	runCmd.Flags().StringVar(&runDisplayDir, "display-dir", "", "display export folder (default from config)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "parallel geometry workers (default from config)")
	runCmd.Flags().Float64Var(&runThreshold, "threshold", 0, "surface anomaly threshold in percent (default from config)")
	runCmd.Flags().BoolVar(&runDedup, "dedup", false, "drop duplicate parcels from the clean snapshot, keeping the first of each group")
	rootCmd.AddCommand(runCmd)
}
