package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// TargetManifest is the optional YAML description of a fuzzing target. It is
// a convenience over setting everything through the environment; any value
// already set via env wins over the manifest.
type TargetManifest struct {
	Source     string   `yaml:"source"`
	Name       string   `yaml:"name"`
	InputMode  string   `yaml:"input_mode"`
	RunTimeout string   `yaml:"run_timeout"`
	Seeds      []string `yaml:"seeds"`
	SeedDir    string   `yaml:"seed_dir"`
}

func applyManifest(config *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest TargetManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}

	if config.TargetSrc == "" {
		config.TargetSrc = manifest.Source
	}
	if config.TargetName == "" {
		config.TargetName = manifest.Name
	}
	if config.InputMode == "" {
		config.InputMode = InputMode(manifest.InputMode)
	}
	if manifest.RunTimeout != "" && os.Getenv("RUN_TIMEOUT") == "" {
		if d, err := time.ParseDuration(manifest.RunTimeout); err == nil {
			config.RunTimeout = d
		}
	}
	if config.SeedDir == "" {
		config.SeedDir = manifest.SeedDir
	}
	if len(config.Seeds) == 0 {
		for _, seed := range manifest.Seeds {
			if seed != "" {
				config.Seeds = append(config.Seeds, []byte(seed))
			}
		}
	}

	return nil
}
