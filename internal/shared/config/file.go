package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// LoadPipelineFile reads the pipeline section of a YAML config file.
func LoadPipelineFile(path string) (PipelineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PipelineConfig{}, fmt.Errorf("read %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return PipelineConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg.Pipeline, nil
}

// mergePipeline overlays non-zero values from override onto base. Weight
// tables are replaced as a whole so a partial table cannot mix with defaults.
func mergePipeline(base, override PipelineConfig) PipelineConfig {
	if strings.TrimSpace(override.StageTimeout) != "" {
		base.StageTimeout = override.StageTimeout
	}
	if override.ThesisWeights != (ThesisWeights{}) {
		base.ThesisWeights = override.ThesisWeights
	}
	if override.RiskWeights != (RiskWeights{}) {
		base.RiskWeights = override.RiskWeights
	}
	if strings.TrimSpace(override.LLM.Provider) != "" {
		base.LLM.Provider = override.LLM.Provider
	}
	if strings.TrimSpace(override.LLM.Model) != "" {
		base.LLM.Model = override.LLM.Model
	}
	return base
}
