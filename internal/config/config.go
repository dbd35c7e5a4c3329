// Package config loads scenecut settings from yaml, with environment
// overrides for the ffmpeg binaries.
package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// TempDir is where intermediate pipeline artifacts live.
	TempDir string `yaml:"temp_dir"`

	FFmpeg FFmpegConfig `yaml:"ffmpeg"`
	Trim   TrimConfig   `yaml:"trim"`
	Audio  AudioConfig  `yaml:"audio"`
	Merge  MergeConfig  `yaml:"merge"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

// TrimConfig holds dead-air removal defaults.
type TrimConfig struct {
	// NoiseFloorDB is the silence threshold; 0 derives it from measured
	// volume.
	NoiseFloorDB  float64 `yaml:"noise_floor_db"`
	MinSilenceSec float64 `yaml:"min_silence_sec"`
	PaddingSec    float64 `yaml:"padding_sec"`
}

// AudioConfig holds loudness defaults.
type AudioConfig struct {
	TargetLoudness float64 `yaml:"target_loudness"`
}

// MergeConfig holds multi-clip merge defaults.
type MergeConfig struct {
	// ExportBase is the short edge of the render canvas in pixels.
	ExportBase int `yaml:"export_base"`
	// Transition is the default transition kind between clips.
	Transition string `yaml:"transition"`
	// TransitionSec is the default transition duration in seconds.
	TransitionSec float64 `yaml:"transition_sec"`
	// TimeoutSec bounds a single merge render; 0 means no limit.
	TimeoutSec float64 `yaml:"timeout_sec"`
}

// Load reads configuration from file or returns defaults. Environment
// variables SCENECUT_FFMPEG, SCENECUT_FFPROBE, and SCENECUT_TEMP_DIR override
// the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		TempDir: os.TempDir(),
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			Threads:    0,
		},
		Trim: TrimConfig{
			NoiseFloorDB:  0,
			MinSilenceSec: 0.6,
			PaddingSec:    0.15,
		},
		Audio: AudioConfig{
			TargetLoudness: -16,
		},
		Merge: MergeConfig{
			ExportBase:    1080,
			Transition:    "hardCut",
			TransitionSec: 0.5,
			TimeoutSec:    0,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SCENECUT_FFMPEG"); v != "" {
		cfg.FFmpeg.BinaryPath = v
	}
	if v := os.Getenv("SCENECUT_FFPROBE"); v != "" {
		cfg.FFmpeg.ProbePath = v
	}
	if v := os.Getenv("SCENECUT_TEMP_DIR"); v != "" {
		cfg.TempDir = v
	}
	if v := os.Getenv("SCENECUT_THREADS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FFmpeg.Threads = n
		}
	}
}

func findConfigFile() string {
	candidates := []string{
		"./scenecut.yaml",
		"./scenecut.yml",
		filepath.Join(os.Getenv("HOME"), ".scenecut", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
