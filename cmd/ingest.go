package main

import (
	"fmt"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/ingest"
	"github.com/terroirdata/coopaudit/internal/schema"
)

var (
	ingestWorkbook  string
	ingestShapefile string
	ingestSheetMap  map[string]string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract raw inputs from a survey workbook or shapefile",
	Long:  "Splits a survey workbook into one raw CSV per sheet and converts a parcel shapefile to the raw GeoJSON snapshot the pipeline reads. Sources already in the raw folder are left untouched.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if ingestWorkbook != "" {
			cfg.Ingest.Workbook = ingestWorkbook
		}
		if ingestShapefile != "" {
			cfg.Ingest.Shapefile = ingestShapefile
		}

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}

		reg, err := schema.Load()
		if err != nil {
			return eris.Wrap(err, "load schema registry")
		}

		if cfg.Ingest.Workbook != "" {
			exports, err := ingest.ExtractWorkbook(cfg.Ingest.Workbook, cfg.Data.RawDir, reg, ingestSheetMap)
			if err != nil {
				return eris.Wrap(err, "extract workbook")
			}

			fmt.Println("=== Workbook Extraction ===")
			for _, exp := range exports {
				dataset := exp.Dataset
				if dataset == "" {
					dataset = "(unmatched)"
				}
				fmt.Printf("  %-24s %-20s %6d rows %3d cols  %s\n",
					exp.Sheet, dataset, exp.Rows, exp.Cols, exp.Path)
			}
			zap.L().Info("workbook extracted",
				zap.String("workbook", cfg.Ingest.Workbook),
				zap.Int("sheets", len(exports)),
			)
		}

		if cfg.Ingest.Shapefile != "" {
			pc, err := ingest.ReadShapefile(cfg.Ingest.Shapefile)
			if err != nil {
				return eris.Wrap(err, "read shapefile")
			}

			out := filepath.Join(cfg.Data.RawDir, "parcelles.geojson")
			if err := ingest.WriteGeoJSON(out, pc.Features); err != nil {
				return eris.Wrap(err, "write parcel snapshot")
			}

			fmt.Println("=== Shapefile Conversion ===")
			fmt.Printf("  %-24s %6d features  %s\n", filepath.Base(cfg.Ingest.Shapefile), len(pc.Features), out)
			zap.L().Info("shapefile converted",
				zap.String("shapefile", cfg.Ingest.Shapefile),
				zap.Int("features", len(pc.Features)),
				zap.String("crs", pc.CRS),
			)
		}

		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestWorkbook, "workbook", "", "survey workbook to split into raw CSVs (default from config)")
	ingestCmd.Flags().StringVar(&ingestShapefile, "shapefile", "", "parcel shapefile to convert to raw GeoJSON")
	ingestCmd.Flags().StringToStringVar(&ingestSheetMap, "sheet-map", nil, "sheet name to dataset overrides, e.g. 'Feuille1=coop_producteurs'")
	rootCmd.AddCommand(ingestCmd)
}
