package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terroirdata/coopaudit/internal/ingest"
	"github.com/terroirdata/coopaudit/internal/schema"
	"github.com/terroirdata/coopaudit/internal/verify"
)

var verifyGeoJSON string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a parcel snapshot without modifying it",
	Long:  "Runs the read-only controls over a GeoJSON parcel snapshot: required columns, declared CRS, geometry validity and emptiness, centroid window, and duplicate detection. Exits nonzero when the snapshot has anomalies.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("verify"); err != nil {
			return err
		}

		path := verifyGeoJSON
		if path == "" {
			path = filepath.Join(cfg.Data.RawDir, "parcelles.geojson")
		}

		reg, err := schema.Load()
		if err != nil {
			return eris.Wrap(err, "load schema registry")
		}

		pc, err := ingest.ReadGeoJSON(path)
		if err != nil {
			return eris.Wrap(err, "read parcel snapshot")
		}

		rep := verify.Snapshot(pc, reg.Parcelles, verify.Window{
			LatMin: cfg.Region.LatMin,
			LatMax: cfg.Region.LatMax,
			LonMin: cfg.Region.LonMin,
			LonMax: cfg.Region.LonMax,
		})

		fmt.Println("=== Parcel Snapshot Verification ===")
		fmt.Printf("File: %s\n\n", path)
		for _, c := range rep.Checks {
			fmt.Printf("%-32s %s\n", c.Controle+":", c.Valeur)
		}

		if len(rep.Anomalies) > 0 {
			fmt.Println()
			fmt.Println("Anomalies:")
			for _, a := range rep.Anomalies {
				fmt.Printf("  %-24s %-40s %-12s %s\n",
					a.Identifiant, a.TypeAnomalie, a.ColonneConcernee, a.Valeur)
			}
			return eris.Errorf("verify: %d anomalies in %s", len(rep.Anomalies), path)
		}

		fmt.Println()
		fmt.Println("Snapshot passed all checks.")
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyGeoJSON, "geojson", "", "snapshot to verify (default: parcelles.geojson in the raw folder)")
	rootCmd.AddCommand(verifyCmd)
}
