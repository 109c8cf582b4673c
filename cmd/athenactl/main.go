// Command athenactl submits documents to the analysis pipeline and inspects runs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"athena-backend/internal/bootstrap"
	"athena-backend/internal/pipeline"
	"athena-backend/internal/shared/config"
	"athena-backend/internal/shared/storage/object"
	"athena-backend/internal/shared/telemetry"
)

// pipelineAPI is the part of the orchestrator the CLI drives.
type pipelineAPI interface {
	Run(ctx context.Context, sub pipeline.Submission) (pipeline.Run, error)
	Status(ctx context.Context, id string) (pipeline.Run, error)
	ListRecent(ctx context.Context, limit int) ([]pipeline.Summary, error)
	Results(ctx context.Context, id string) (pipeline.Results, error)
}

type deps struct {
	pipeline pipelineAPI
	store    object.ObjectStore
}

var (
	timeout time.Duration

	// loadDeps is replaced in tests.
	loadDeps = func() (deps, error) {
		app, err := bootstrap.Build(config.Load())
		if err != nil {
			return deps{}, err
		}
		return deps{pipeline: app.Orchestrator, store: app.Store}, nil
	}
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "athenactl",
		Short: "Run and inspect startup analyses",
		Long: `athenactl drives the analysis pipeline from the command line.

Configuration is read from the environment exactly like the API server,
so runs land in the same checkpoint store when DATABASE_URL is set.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", time.Hour, "Overall operation timeout")

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newRecentCmd())
	return root
}

func main() {
	defer telemetry.Sync()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
