package bootstrap

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"athena-backend/internal/pipeline"
	"athena-backend/internal/shared/config"
	localstore "athena-backend/internal/shared/storage/object/local"
)

func devConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		LLMProvider:     "none",
		Pipeline:        config.DefaultPipeline(),
	}
}

func TestBuildDevUsesMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(devConfig(t))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.DB != nil || app.Queue != nil {
		t.Fatalf("expected no database and no queue in dev")
	}
	if _, ok := app.Checkpoints.(*pipeline.MemoryStore); !ok {
		t.Fatalf("expected memory checkpoint store, got %T", app.Checkpoints)
	}

	w := httptest.NewRecorder()
	app.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from health, got %d", w.Code)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := devConfig(t)
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestBuildRejectsInvalidWeights(t *testing.T) {
	cfg := devConfig(t)
	cfg.Pipeline.ThesisWeights.Team = 0.9
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected invalid thesis weights to fail")
	}
}

func TestBuildProviderRequiresKey(t *testing.T) {
	cfg := devConfig(t)
	cfg.LLMProvider = "openai"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected missing OpenAI key to fail")
	}
}

func TestBuildSinkSelection(t *testing.T) {
	t.Parallel()

	store := localstore.New(t.TempDir())
	tests := []struct {
		name string
		sink string
		want string
	}{
		{name: "none", sink: "none", want: "pipeline.NopSink"},
		{name: "object", sink: "object", want: "*pipeline.ObjectSink"},
		{name: "postgres without db", sink: "postgres", want: "pipeline.NopSink"},
		{name: "default without db", sink: "", want: "*pipeline.ObjectSink"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := buildSink(config.Config{SinkType: tt.sink}, nil, store)
			if name := fmt.Sprintf("%T", got); name != tt.want {
				t.Fatalf("buildSink(%q) = %s, want %s", tt.sink, name, tt.want)
			}
		})
	}
}
