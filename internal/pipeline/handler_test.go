package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	localstore "athena-backend/internal/shared/storage/object/local"
)

func newTestRouter(t *testing.T, q *fakeQueue) (*gin.Engine, *Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	orch := newTestOrchestrator(t, NewMemoryStore(), &fakeWorkers{}, nil, q)
	h := NewHandler(orch, localstore.New(t.TempDir()))
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))
	return r, orch
}

func multipartUpload(t *testing.T, fileName, contentType, body, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write([]byte(body)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if metadata != "" {
		if err := w.WriteField("metadata", metadata); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadAcceptsDocument(t *testing.T) {
	q := &fakeQueue{}
	r, orch := newTestRouter(t, q)

	body, ct := multipartUpload(t, "deck.pdf", "application/pdf", "%PDF-1.4 deck", `{"source":"demo day"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SubmissionID string `json:"submission_id"`
		Status       string `json:"status"`
		Message      string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SubmissionID == "" || resp.Status != "processing" {
		t.Fatalf("unexpected response %+v", resp)
	}

	run, err := orch.Status(context.Background(), resp.SubmissionID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if run.DocumentKind != "document" || run.Metadata["source"] != "demo day" {
		t.Fatalf("stored run = %+v", run)
	}
	if len(q.msgs) != 1 || q.msgs[0].SubmissionID != resp.SubmissionID {
		t.Fatalf("queued = %+v", q.msgs)
	}
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	r, _ := newTestRouter(t, &fakeQueue{})

	body, ct := multipartUpload(t, "notes.txt", "text/plain", "hello", "")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	r, _ := newTestRouter(t, &fakeQueue{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze/upload", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestParseMetadataIsLenient(t *testing.T) {
	t.Parallel()
	if got := parseMetadata(`{"a":1}`); got["a"] != float64(1) {
		t.Fatalf("parsed = %v", got)
	}
	for _, raw := range []string{"", "not json", "[1,2]", "null"} {
		if got := parseMetadata(raw); got == nil || len(got) != 0 {
			t.Fatalf("parseMetadata(%q) = %v, want empty map", raw, got)
		}
	}
}

func TestStatusAndResultsEndpoints(t *testing.T) {
	r, orch := newTestRouter(t, &fakeQueue{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyze/missing/status", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown status code = %d", rec.Code)
	}

	if _, err := orch.Submit(context.Background(), testSubmission()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyze/run-1/results", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("results before completion = %d, want 409", rec.Code)
	}

	if _, err := orch.Process(context.Background(), "run-1", ""); err != nil {
		t.Fatalf("Process: %v", err)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyze/run-1/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var status struct {
		Status          string   `json:"status"`
		CurrentStage    string   `json:"current_stage"`
		StagesCompleted []string `json:"stages_completed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "completed" || status.CurrentStage != "completed" || len(status.StagesCompleted) != 6 {
		t.Fatalf("status = %+v", status)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyze/run-1/results", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("results code = %d", rec.Code)
	}
	var results map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if results["submission_id"] != "run-1" || results["company_name"] != "Acme" || results["investment_memo"] != "memo" {
		t.Fatalf("results = %v", results)
	}
}

func TestLookupEndpointsMalformedIDIsNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, mock := newMockStore(t)
	orch := newTestOrchestrator(t, store, &fakeWorkers{}, nil, nil)
	h := NewHandler(orch, localstore.New(t.TempDir()))
	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"))

	tests := []struct {
		name string
		path string
	}{
		{name: "status", path: "/api/v1/analyze/abc/status"},
		{name: "results", path: "/api/v1/analyze/abc/results"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusNotFound {
				t.Fatalf("%s code = %d, want 404", tt.path, rec.Code)
			}
		})
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected query: %v", err)
	}
}

func TestRecentEndpoint(t *testing.T) {
	r, orch := newTestRouter(t, &fakeQueue{})
	for _, id := range []string{"a", "b", "c"} {
		sub := testSubmission()
		sub.ID = id
		if _, err := orch.Submit(context.Background(), sub); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analyses/recent?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var resp struct {
		Analyses []Summary `json:"analyses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Analyses) != 2 || resp.Analyses[0].ID != "c" {
		t.Fatalf("recent = %+v", resp.Analyses)
	}
}
