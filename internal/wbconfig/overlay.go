package wbconfig

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lcalzada-xor/waybackup/pkg/snapshot"
)

// fileOverlay is the shape of an optional --config YAML file. Only fields
// whose corresponding flag was not explicitly set on the command line are
// applied, mirroring the teacher's ConfigFile.ApplyToConfig fallback
// semantics (flags win; the file fills gaps).
type fileOverlay struct {
	Output  string   `mapstructure:"output"`
	Workers int      `mapstructure:"workers"`
	Retry   int      `mapstructure:"retry"`
	Delay   string   `mapstructure:"delay"`
	Mode    string   `mapstructure:"mode"`
	Keep    bool     `mapstructure:"keep"`
	FileExt []string `mapstructure:"filetype"`
}

// overlayFile loads path via Viper and applies any values whose flags
// weren't explicitly set on cmd.
func overlayFile(cfg Config, cmd *cobra.Command, path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("wbconfig: read config file: %w", err)
	}

	var overlay fileOverlay
	if err := v.Unmarshal(&overlay); err != nil {
		return Config{}, fmt.Errorf("wbconfig: parse config file: %w", err)
	}

	changed := cmd.Flags().Changed

	if !changed("output") && overlay.Output != "" {
		cfg.OutputDir = overlay.Output
	}
	if !changed("workers") && overlay.Workers > 0 {
		cfg.Workers = overlay.Workers
	}
	if !changed("retry") && overlay.Retry > 0 {
		cfg.Retry = overlay.Retry
	}
	if !changed("delay") && overlay.Delay != "" {
		if d, err := time.ParseDuration(overlay.Delay); err == nil {
			cfg.Delay = d
		}
	}
	if !changed("all") && !changed("last") && !changed("first") && overlay.Mode != "" {
		switch overlay.Mode {
		case "last":
			cfg.Mode = snapshot.ModeLast
		case "first":
			cfg.Mode = snapshot.ModeFirst
		case "all":
			cfg.Mode = snapshot.ModeAll
		}
	}
	if !changed("keep") && overlay.Keep {
		cfg.Keep = overlay.Keep
	}
	if !changed("filetype") && len(overlay.FileExt) > 0 {
		cfg.FileTypes = overlay.FileExt
	}

	// Recompute derived fields since the mode/output may have changed.
	cfg.JobKey = jobKey(cfg)
	cfg.MetadataDir = filepath.Join(cfg.OutputDir, ".waybackup", cfg.JobKey)

	return cfg, cfg.Validate()
}
