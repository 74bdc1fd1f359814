package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terroirdata/coopaudit/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "coopaudit",
	Short: "Cooperative parcel data cleaning and control pipeline",
	Long:  "Cleans cooperative survey tables and parcel geometries, runs bounds, integrity, anomaly, duplicate and overlap controls, and publishes the control artifacts, audit trail and display exports atomically.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
