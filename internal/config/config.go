package config

import (
	"runtime"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Data     DataConfig     `yaml:"data" mapstructure:"data"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Region   RegionConfig   `yaml:"region" mapstructure:"region"`
	Ingest   IngestConfig   `yaml:"ingest" mapstructure:"ingest"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DataConfig binds the four pipeline folders.
type DataConfig struct {
	RawDir     string `yaml:"raw_dir" mapstructure:"raw_dir"`
	CleanDir   string `yaml:"clean_dir" mapstructure:"clean_dir"`
	OutputDir  string `yaml:"output_dir" mapstructure:"output_dir"`
	DisplayDir string `yaml:"display_dir" mapstructure:"display_dir"`
}

// PipelineConfig configures run behavior. AnomalyThresholdPct is the
// single tolerance used for surface anomalies and for the integrity
// pass's declared-vs-summed gaps. DedupParcels turns on keep-first
// dropping of duplicate parcels in the clean snapshot; by default the
// duplicate detector only reports.
type PipelineConfig struct {
	Workers             int     `yaml:"workers" mapstructure:"workers"`
	AnomalyThresholdPct float64 `yaml:"anomaly_threshold_pct" mapstructure:"anomaly_threshold_pct"`
	DedupParcels        bool    `yaml:"dedup_parcels" mapstructure:"dedup_parcels"`
}

// RegionConfig is the expected geographic window for parcel centroids,
// checked by the read-only verifier.
type RegionConfig struct {
	LatMin float64 `yaml:"lat_min" mapstructure:"lat_min"`
	LatMax float64 `yaml:"lat_max" mapstructure:"lat_max"`
	LonMin float64 `yaml:"lon_min" mapstructure:"lon_min"`
	LonMax float64 `yaml:"lon_max" mapstructure:"lon_max"`
}

// IngestConfig configures raw extraction sources.
type IngestConfig struct {
	Workbook  string `yaml:"workbook" mapstructure:"workbook"`
	Shapefile string `yaml:"shapefile" mapstructure:"shapefile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("coopaudit")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COOPAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("data.raw_dir", "data_raw")
	v.SetDefault("data.clean_dir", "data_clean")
	v.SetDefault("data.output_dir", "outputs")
	v.SetDefault("data.display_dir", "display-data")
	v.SetDefault("pipeline.workers", runtime.NumCPU())
	v.SetDefault("pipeline.anomaly_threshold_pct", 10.0)
	v.SetDefault("pipeline.dedup_parcels", false)
	v.SetDefault("region.lat_min", 4.0)
	v.SetDefault("region.lat_max", 11.0)
	v.SetDefault("region.lon_min", -9.5)
	v.SetDefault("region.lon_max", -2.0)
	v.SetDefault("ingest.workbook", "data_raw/cooperatives_data.xlsx")
	v.SetDefault("ingest.shapefile", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a subcommand is about to rely on. Mode
// is the subcommand name.
func (c *Config) Validate(mode string) error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "run":
		check(c.Data.RawDir != "", "data.raw_dir is required")
		check(c.Data.CleanDir != "", "data.clean_dir is required")
		check(c.Data.OutputDir != "", "data.output_dir is required")
		check(c.Data.DisplayDir != "", "data.display_dir is required")
		check(c.Pipeline.Workers >= 1, "pipeline.workers must be >= 1")
		check(c.Pipeline.AnomalyThresholdPct > 0, "pipeline.anomaly_threshold_pct must be > 0")
	case "ingest":
		check(c.Data.RawDir != "", "data.raw_dir is required")
		check(c.Ingest.Workbook != "" || c.Ingest.Shapefile != "",
			"ingest.workbook or ingest.shapefile is required")
	case "verify":
		check(c.Region.LatMin < c.Region.LatMax, "region.lat_min must be below region.lat_max")
		check(c.Region.LonMin < c.Region.LonMax, "region.lon_min must be below region.lon_max")
	case "status":
		check(c.Data.OutputDir != "", "data.output_dir is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
