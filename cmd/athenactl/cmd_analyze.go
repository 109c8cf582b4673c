package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"athena-backend/internal/ingest"
	"athena-backend/internal/pipeline"
)

func newAnalyzeCmd() *cobra.Command {
	var metadata, kindFlag string

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a document and print the results",
		Long: `Stores the document, runs every stage in-process and prints the
final results. On failure the failed run is printed and the command exits
non-zero.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			var (
				kind ingest.Kind
				err  error
			)
			if kindFlag != "" {
				kind, err = ingest.ParseKind(kindFlag)
			} else {
				kind, err = ingest.DetectKind(path, "")
			}
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(path), err)
			}
			meta := map[string]any{}
			if metadata != "" {
				if err := json.Unmarshal([]byte(metadata), &meta); err != nil {
					return fmt.Errorf("metadata must be a JSON object: %w", err)
				}
			}

			d, err := loadDeps()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open document: %w", err)
			}
			defer f.Close()

			id := uuid.NewString()
			key, _, _, err := d.store.Save(ctx, id, filepath.Base(path), f)
			if err != nil {
				return fmt.Errorf("store document: %w", err)
			}

			run, err := d.pipeline.Run(ctx, pipeline.Submission{
				ID:          id,
				DocumentRef: key,
				Kind:        kind,
				Metadata:    meta,
			})
			if err != nil {
				var stageErr *pipeline.StageError
				if errors.As(err, &stageErr) {
					_ = printJSON(cmd.OutOrStdout(), run)
				}
				return err
			}

			results, err := d.pipeline.Results(ctx, run.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		},
	}
	cmd.Flags().StringVar(&metadata, "metadata", "", "Submission metadata as a JSON object")
	cmd.Flags().StringVar(&kindFlag, "kind", "", "Override the detected kind (document, image, audio)")
	return cmd
}
