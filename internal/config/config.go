package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName  = "mediabatch"
	ConfigFileName = "config.yaml"
	EnvPrefix      = "MEDIABATCH"

	DefaultProjectName = "default.mbp"
)

func GetConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigDirName), nil
}

// ProjectsDir is where projects live when no path is configured.
func ProjectsDir(configDir string) string {
	return filepath.Join(configDir, "projects")
}

// LoadConfig loads the config from the user config directory.
// If the config file does not exist, it creates a default config and saves it to the config file
func LoadConfig() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("error getting config dir: %w", err)
	}
	return LoadConfigFrom(configDir)
}

// LoadConfigFrom loads configDir/config.yaml, applies MEDIABATCH_* environment
// overrides and publishes the result in the package variables.
func LoadConfigFrom(configDir string) error {
	configFile := filepath.Join(configDir, ConfigFileName)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config path: %w", err)
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		out, err := yaml.Marshal(DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling default config: %w", err)
		}
		if err := os.WriteFile(configFile, out, 0644); err != nil {
			return fmt.Errorf("error writing default config file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.Project == "" {
		cfg.Project = filepath.Join(ProjectsDir(configDir), DefaultProjectName)
	}
	apply(cfg)
	return nil
}

// setDefaults registers every key so environment variables can override keys
// missing from the file.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	a := d.Algorithms

	v.SetDefault("project", d.Project)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("max_concurrent_jobs", d.MaxConcurrentJobs)
	v.SetDefault("tick_interval_ms", d.TickIntervalMs)
	v.SetDefault("analysis_workers", d.AnalysisWorkers)
	v.SetDefault("analysis_queue_size", d.AnalysisQueueSize)
	v.SetDefault("takes_dir", d.TakesDir)

	v.SetDefault("algorithms.novelty_slice.kernel_size", a.NoveltySlice.KernelSize)
	v.SetDefault("algorithms.novelty_slice.threshold", a.NoveltySlice.Threshold)
	v.SetDefault("algorithms.novelty_slice.filter_size", a.NoveltySlice.FilterSize)
	v.SetDefault("algorithms.novelty_slice.min_slice_length", a.NoveltySlice.MinSliceLength)
	v.SetDefault("algorithms.onset_slice.threshold", a.OnsetSlice.Threshold)
	v.SetDefault("algorithms.onset_slice.min_slice_length", a.OnsetSlice.MinSliceLength)
	v.SetDefault("algorithms.transient_slice.threshold", a.TransientSlice.Threshold)
	v.SetDefault("algorithms.transient_slice.min_slice_length", a.TransientSlice.MinSliceLength)
	v.SetDefault("algorithms.amp_gate.on_threshold_db", a.AmpGate.OnThresholdDB)
	v.SetDefault("algorithms.amp_gate.off_threshold_db", a.AmpGate.OffThresholdDB)
	v.SetDefault("algorithms.amp_gate.min_slice_length", a.AmpGate.MinSliceLength)
	v.SetDefault("algorithms.transients.threshold", a.Transients.Threshold)
	v.SetDefault("algorithms.transients.release", a.Transients.Release)
	v.SetDefault("algorithms.hpss.harmonic_filter_size", a.HPSS.HarmonicFilterSize)
	v.SetDefault("algorithms.hpss.percussive_filter_size", a.HPSS.PercussiveFilterSize)
	v.SetDefault("algorithms.nmf.components", a.NMF.Components)
	v.SetDefault("algorithms.nmf.iterations", a.NMF.Iterations)
}

// apply copies cfg into the package variables, keeping defaults for values
// that make no sense.
func apply(cfg Config) {
	GlobalConfig = cfg

	ProjectPath = cfg.Project
	if cfg.LogLevel != "" {
		LogLevel = cfg.LogLevel
	}
	if cfg.MaxConcurrentJobs > 0 {
		MaxConcurrentJobs = cfg.MaxConcurrentJobs
	}
	if cfg.TickIntervalMs > 0 {
		TickInterval = time.Duration(cfg.TickIntervalMs) * time.Millisecond
	}
	if cfg.AnalysisWorkers > 0 {
		AnalysisWorkers = cfg.AnalysisWorkers
	}
	if cfg.AnalysisQueueSize > 0 {
		AnalysisQueueSize = cfg.AnalysisQueueSize
	}
	if cfg.TakesDir != "" {
		TakesDirName = cfg.TakesDir
	}
}

// SaveConfig writes cfg to the user config directory.
func SaveConfig(cfg Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	return SaveConfigTo(configDir, cfg)
}

// SaveConfigTo writes cfg to configDir/config.yaml.
func SaveConfigTo(configDir string, cfg Config) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("error creating config path: %w", err)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(configDir, ConfigFileName), out, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Effective returns the loaded config with the flag overrides applied.
func Effective() Config {
	cfg := GlobalConfig
	cfg.Project = ProjectPath
	cfg.LogLevel = LogLevel
	return cfg
}
