package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/go-cmp/cmp"

	"athena-backend/internal/pipeline"
)

type scriptedProcessor struct {
	errs map[string]error
}

func (s scriptedProcessor) Process(ctx context.Context, id, requestID string) (pipeline.Run, error) {
	if err := s.errs[id]; err != nil {
		return pipeline.Run{}, err
	}
	return pipeline.Run{ID: id, Status: pipeline.StatusCompleted}, nil
}

func TestProcessBatchReportsOnlyRetryableFailures(t *testing.T) {
	proc := scriptedProcessor{errs: map[string]error{
		"run-transient": errors.New("connection reset"),
		"run-failed":    &pipeline.StageError{Stage: pipeline.StageRisk, Code: pipeline.ErrorCodeLLM, Err: errors.New("boom")},
	}}
	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "ok", Body: `{"submissionId":"run-ok"}`},
		{MessageId: "transient", Body: `{"submissionId":"run-transient"}`},
		{MessageId: "failed", Body: `{"submissionId":"run-failed"}`},
		{MessageId: "garbage", Body: `{not json`},
	}}

	resp := processBatch(context.Background(), proc, event)

	var got []string
	for _, f := range resp.BatchItemFailures {
		got = append(got, f.ItemIdentifier)
	}
	if diff := cmp.Diff([]string{"transient"}, got); diff != "" {
		t.Fatalf("batch failures mismatch (-want +got):\n%s", diff)
	}
}
