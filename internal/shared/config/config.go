package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const configPathEnv = "ATHENA_CONFIG"

// Config holds application configuration.
type Config struct {
	Port              string
	Env               string
	CORSAllowOrigin   []string
	DatabaseURL       string
	ObjectStoreType   string
	LocalStoreDir     string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	SSEKMSKeyID       string
	LLMProvider       string
	LLMModel          string
	OpenAIAPIKey      string
	GeminiAPIKey      string
	SinkType          string
	NewsSearchURL     string
	QueueURL          string
	WorkerConcurrency int
	StageTimeout      time.Duration
	Pipeline          PipelineConfig
}

// PipelineConfig is the tunable part of the analysis pipeline, usually loaded from YAML.
type PipelineConfig struct {
	StageTimeout  string        `yaml:"stageTimeout"`
	ThesisWeights ThesisWeights `yaml:"thesisWeights"`
	RiskWeights   RiskWeights   `yaml:"riskWeights"`
	LLM           LLMConfig     `yaml:"llm"`
}

// ThesisWeights are the investment thesis component weights.
type ThesisWeights struct {
	Team     float64 `yaml:"team"`
	Market   float64 `yaml:"market"`
	Traction float64 `yaml:"traction"`
	Moat     float64 `yaml:"moat"`
}

// RiskWeights are the per-category risk weights.
type RiskWeights struct {
	Team        float64 `yaml:"team"`
	Market      float64 `yaml:"market"`
	Financial   float64 `yaml:"financial"`
	Execution   float64 `yaml:"execution"`
	Competitive float64 `yaml:"competitive"`
	Technical   float64 `yaml:"technical"`
}

// LLMConfig selects the inference provider.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// Load reads configuration from environment variables with sensible defaults.
// When ATHENA_CONFIG points at a YAML file its pipeline section is applied
// first and environment variables override it.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	pipeline := DefaultPipeline()
	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		fileCfg, err := LoadPipelineFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			pipeline = mergePipeline(pipeline, fileCfg)
		}
	}

	provider := getEnv("LLM_PROVIDER", pipeline.LLM.Provider)
	model := getEnv("LLM_MODEL", pipeline.LLM.Model)

	return Config{
		Port:              getEnv("PORT", "8080"),
		Env:               env,
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DatabaseURL:       dbURL,
		ObjectStoreType:   normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:     getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:       getEnv("SSE_KMS_KEY_ID", ""),
		LLMProvider:       normalizeProvider(provider),
		LLMModel:          model,
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		SinkType:          normalizeSinkType(getEnv("SINK", "")),
		NewsSearchURL:     getEnv("NEWS_SEARCH_URL", ""),
		QueueURL:          getEnv("ATHENA_SQS_QUEUE_URL", ""),
		WorkerConcurrency: getEnvInt("ATHENA_WORKER_CONCURRENCY", 4),
		StageTimeout:      parseDuration(getEnv("STAGE_TIMEOUT", pipeline.StageTimeout), 10*time.Minute),
		Pipeline:          pipeline,
	}
}

// DefaultPipeline returns the built-in weights and timeouts.
func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		StageTimeout: "10m",
		ThesisWeights: ThesisWeights{
			Team:     0.40,
			Market:   0.30,
			Traction: 0.20,
			Moat:     0.10,
		},
		RiskWeights: RiskWeights{
			Team:        0.25,
			Market:      0.20,
			Financial:   0.20,
			Execution:   0.15,
			Competitive: 0.10,
			Technical:   0.10,
		},
		LLM: LLMConfig{Provider: "gemini", Model: "gemini-2.5-flash"},
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid int %q", key, raw)
		return def
	}
	return val
}

func parseDuration(raw string, def time.Duration) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("config: invalid duration %q", raw)
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "openai":
		return "openai"
	case "gemini", "google":
		return "gemini"
	default:
		return "none"
	}
}

func normalizeSinkType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "object", "s3", "local":
		return "object"
	case "none", "off":
		return "none"
	default:
		return ""
	}
}
