package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the flag surface for callers that prefer a config
// file. Any flag given explicitly on the command line wins over the file.
type fileConfig struct {
	Reference  string `yaml:"reference"`
	Distortion string `yaml:"distortion"`
	Method     string `yaml:"method"`
	StatsFile  string `yaml:"stats-file"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Format     string `yaml:"format"`
	FPS        string `yaml:"fps"`
	Output     string `yaml:"output"`
	QueueBound int    `yaml:"queue-bound"`
}

// applyConfigFile loads the YAML config and fills in every setting whose
// flag was not set explicitly.
func applyConfigFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	changed := func(name string) bool {
		f := pflag.Lookup(name)
		return f != nil && f.Changed
	}

	if cfg.Reference != "" && !changed("reference") {
		settings.referenceVideo = cfg.Reference
	}
	if cfg.Distortion != "" && !changed("distortion") {
		settings.distortionVideo = cfg.Distortion
	}
	if cfg.Method != "" && !changed("method") {
		settings.method = cfg.Method
	}
	if cfg.StatsFile != "" && !changed("stats-file") {
		settings.statsFile = cfg.StatsFile
	}
	if cfg.Width != 0 && !changed("width") {
		settings.width = cfg.Width
	}
	if cfg.Height != 0 && !changed("height") {
		settings.height = cfg.Height
	}
	if cfg.Format != "" && !changed("format") {
		settings.format = cfg.Format
	}
	if cfg.FPS != "" && !changed("fps") {
		settings.fps = cfg.FPS
	}
	if cfg.Output != "" && !changed("output") {
		settings.outputPath = cfg.Output
	}
	if cfg.QueueBound != 0 && !changed("queue-bound") {
		settings.queueBound = cfg.QueueBound
	}

	return nil
}
