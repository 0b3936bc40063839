package config

import (
	"time"
)

// ProjectPath is the project file the commands operate on.
var ProjectPath string

var (
	LogLevel     = "info"
	GlobalConfig = DefaultConfig()

	// Batch scheduler
	MaxConcurrentJobs = 4 // Upper bound on simultaneously active jobs
	TickInterval      = 30 * time.Millisecond

	// Analysis worker pool configuration
	AnalysisWorkers   = 4  // Goroutines running analysis jobs (CPU intensive)
	AnalysisQueueSize = 64 // Size of the analysis queue buffer

	// TakesDirName is created next to a source file to hold rendered takes.
	TakesDirName = "mediabatch"
)

type Config struct {
	Project           string           `mapstructure:"project" yaml:"project"`
	LogLevel          string           `mapstructure:"log_level" yaml:"log_level"`
	MaxConcurrentJobs int              `mapstructure:"max_concurrent_jobs" yaml:"max_concurrent_jobs"`
	TickIntervalMs    int              `mapstructure:"tick_interval_ms" yaml:"tick_interval_ms"`
	AnalysisWorkers   int              `mapstructure:"analysis_workers" yaml:"analysis_workers"`
	AnalysisQueueSize int              `mapstructure:"analysis_queue_size" yaml:"analysis_queue_size"`
	TakesDir          string           `mapstructure:"takes_dir" yaml:"takes_dir"`
	Algorithms        AlgorithmsConfig `mapstructure:"algorithms" yaml:"algorithms"`
}

// AlgorithmsConfig holds the parameters of every analysis. Thresholds are
// relative to the detection function's own scale unless marked dB.
type AlgorithmsConfig struct {
	NoveltySlice   NoveltySliceParams   `mapstructure:"novelty_slice" yaml:"novelty_slice"`
	OnsetSlice     OnsetSliceParams     `mapstructure:"onset_slice" yaml:"onset_slice"`
	TransientSlice TransientSliceParams `mapstructure:"transient_slice" yaml:"transient_slice"`
	AmpGate        AmpGateParams        `mapstructure:"amp_gate" yaml:"amp_gate"`
	Transients     TransientsParams     `mapstructure:"transients" yaml:"transients"`
	HPSS           HPSSParams           `mapstructure:"hpss" yaml:"hpss"`
	NMF            NMFParams            `mapstructure:"nmf" yaml:"nmf"`
}

type NoveltySliceParams struct {
	KernelSize     int     `mapstructure:"kernel_size" yaml:"kernel_size"`
	Threshold      float64 `mapstructure:"threshold" yaml:"threshold"`
	FilterSize     int     `mapstructure:"filter_size" yaml:"filter_size"`
	MinSliceLength int     `mapstructure:"min_slice_length" yaml:"min_slice_length"` // frames
}

type OnsetSliceParams struct {
	Threshold      float64 `mapstructure:"threshold" yaml:"threshold"`
	MinSliceLength int     `mapstructure:"min_slice_length" yaml:"min_slice_length"`
}

type TransientSliceParams struct {
	Threshold      float64 `mapstructure:"threshold" yaml:"threshold"`
	MinSliceLength int     `mapstructure:"min_slice_length" yaml:"min_slice_length"`
}

type AmpGateParams struct {
	OnThresholdDB  float64 `mapstructure:"on_threshold_db" yaml:"on_threshold_db"`
	OffThresholdDB float64 `mapstructure:"off_threshold_db" yaml:"off_threshold_db"`
	MinSliceLength int     `mapstructure:"min_slice_length" yaml:"min_slice_length"`
}

type TransientsParams struct {
	Threshold float64 `mapstructure:"threshold" yaml:"threshold"`
	Release   int     `mapstructure:"release" yaml:"release"` // frames the gate stays open
}

// HPSSParams sizes the two median filters, in frames and bins. Even sizes
// are rounded up to the next odd one.
type HPSSParams struct {
	HarmonicFilterSize   int `mapstructure:"harmonic_filter_size" yaml:"harmonic_filter_size"`
	PercussiveFilterSize int `mapstructure:"percussive_filter_size" yaml:"percussive_filter_size"`
}

type NMFParams struct {
	Components int `mapstructure:"components" yaml:"components"` // 2..10
	Iterations int `mapstructure:"iterations" yaml:"iterations"` // 1..1000
}

func DefaultConfig() Config {
	return Config{
		LogLevel:          "info",
		MaxConcurrentJobs: 4,
		TickIntervalMs:    30,
		AnalysisWorkers:   4,
		AnalysisQueueSize: 64,
		TakesDir:          "mediabatch",
		Algorithms:        DefaultAlgorithms(),
	}
}

func DefaultAlgorithms() AlgorithmsConfig {
	return AlgorithmsConfig{
		NoveltySlice:   NoveltySliceParams{KernelSize: 16, Threshold: 0.3, FilterSize: 3, MinSliceLength: 4},
		OnsetSlice:     OnsetSliceParams{Threshold: 0.2, MinSliceLength: 4},
		TransientSlice: TransientSliceParams{Threshold: 0.25, MinSliceLength: 2},
		AmpGate:        AmpGateParams{OnThresholdDB: -30, OffThresholdDB: -40, MinSliceLength: 4},
		Transients:     TransientsParams{Threshold: 0.2, Release: 4},
		HPSS:           HPSSParams{HarmonicFilterSize: 17, PercussiveFilterSize: 31},
		NMF:            NMFParams{Components: 2, Iterations: 100},
	}
}
