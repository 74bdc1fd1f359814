package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/terroirdata/coopaudit/internal/model"
	"github.com/terroirdata/coopaudit/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last published run",
	Long:  "Reads the execution journal and cleaning audit from the output folder and summarizes when the last run happened, what it executed, and how each dataset came through cleaning.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("status"); err != nil {
			return err
		}

		raw, err := os.ReadFile(filepath.Join(cfg.Data.OutputDir, pipeline.JournalFile))
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("No published run found in %s.\n", cfg.Data.OutputDir)
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "status: read journal")
		}
		var journal model.RunJournal
		if err := json.Unmarshal(raw, &journal); err != nil {
			return eris.Wrap(err, "status: decode journal")
		}

		raw, err = os.ReadFile(filepath.Join(cfg.Data.OutputDir, pipeline.AuditFile))
		if err != nil {
			return eris.Wrap(err, "status: read audit")
		}
		var audit model.AuditRecord
		if err := json.Unmarshal(raw, &audit); err != nil {
			return eris.Wrap(err, "status: decode audit")
		}

		fmt.Println("=== Last Published Run ===")
		fmt.Printf("Executed:   %s\n", journal.DateExecution.Format(time.RFC3339))
		fmt.Printf("Stages:     %s\n", strings.Join(journal.ScriptsExecuted, ", "))
		fmt.Printf("Raw:        %s\n", journal.Folders.Raw)
		fmt.Printf("Clean:      %s\n", journal.Folders.Clean)
		fmt.Printf("Outputs:    %s\n", journal.Folders.Outputs)
		fmt.Printf("Display:    %s\n", journal.Folders.Display)
		fmt.Println()

		fmt.Println("Datasets:")
		for _, ds := range audit.Datasets {
			retained := "n/a"
			if ds.PercentRetained != nil {
				retained = fmt.Sprintf("%.1f%%", *ds.PercentRetained)
			}
			line := fmt.Sprintf("  %-18s %6d -> %6d rows, %s retained",
				ds.Dataset, ds.RowsRaw, ds.RowsClean, retained)
			if ds.DuplicatesRemoved > 0 {
				line += fmt.Sprintf(", %d duplicates removed", ds.DuplicatesRemoved)
			}
			if ds.CRSClean != "" {
				line += fmt.Sprintf(", CRS %s", ds.CRSClean)
			}
			if !ds.SanityCheck {
				line += "  [sanity check failed]"
			}
			fmt.Println(line)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
