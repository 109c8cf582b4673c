package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ATHENA_CONFIG", "")
	t.Setenv("STAGE_TIMEOUT", "")
	t.Setenv("LLM_PROVIDER", "")

	cfg := Load()
	if cfg.StageTimeout != 10*time.Minute {
		t.Fatalf("expected 10m stage timeout, got %s", cfg.StageTimeout)
	}
	if cfg.Pipeline.ThesisWeights.Team != 0.40 {
		t.Fatalf("expected default team weight 0.40, got %v", cfg.Pipeline.ThesisWeights.Team)
	}
	if cfg.LLMProvider != "gemini" {
		t.Fatalf("expected gemini provider, got %q", cfg.LLMProvider)
	}
}

func TestLoadAppliesYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "athena.yaml")
	body := `pipeline:
  stageTimeout: 2m
  thesisWeights:
    team: 0.25
    market: 0.25
    traction: 0.25
    moat: 0.25
  llm:
    provider: openai
    model: gpt-4o-mini
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ATHENA_CONFIG", path)
	t.Setenv("STAGE_TIMEOUT", "45s")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_MODEL", "")

	cfg := Load()
	if cfg.StageTimeout != 45*time.Second {
		t.Fatalf("expected env override 45s, got %s", cfg.StageTimeout)
	}
	if cfg.Pipeline.ThesisWeights.Moat != 0.25 {
		t.Fatalf("expected yaml moat weight, got %v", cfg.Pipeline.ThesisWeights.Moat)
	}
	if cfg.Pipeline.RiskWeights.Team != 0.25 {
		t.Fatalf("expected default risk weights to survive, got %v", cfg.Pipeline.RiskWeights.Team)
	}
	if cfg.LLMProvider != "openai" || cfg.LLMModel != "gpt-4o-mini" {
		t.Fatalf("unexpected llm selection: %q %q", cfg.LLMProvider, cfg.LLMModel)
	}
}

func TestParseEnvLine(t *testing.T) {
	tests := []struct {
		line   string
		key    string
		val    string
		wantOK bool
	}{
		{line: "PORT=9090", key: "PORT", val: "9090", wantOK: true},
		{line: `export SINK="postgres"`, key: "SINK", val: "postgres", wantOK: true},
		{line: "# comment", wantOK: false},
		{line: "novalue", wantOK: false},
	}
	for _, tt := range tests {
		key, val, ok := parseEnvLine(tt.line)
		if ok != tt.wantOK {
			t.Fatalf("parseEnvLine(%q) ok=%v, want %v", tt.line, ok, tt.wantOK)
		}
		if ok && (key != tt.key || val != tt.val) {
			t.Fatalf("parseEnvLine(%q) = %q=%q", tt.line, key, val)
		}
	}
}
