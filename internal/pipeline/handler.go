package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"athena-backend/internal/ingest"
	"athena-backend/internal/shared/server/middleware"
	"athena-backend/internal/shared/server/respond"
	"athena-backend/internal/shared/storage/object"
	"athena-backend/internal/shared/telemetry"
)

const maxUploadSize = 50 << 20 // 50MB

// Handler wires HTTP handlers to the orchestrator.
type Handler struct {
	Orch  *Orchestrator
	Store object.ObjectStore
}

// NewHandler constructs a Handler.
func NewHandler(orch *Orchestrator, store object.ObjectStore) *Handler {
	return &Handler{Orch: orch, Store: store}
}

// RegisterRoutes attaches the analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze/upload", h.upload)
	rg.GET("/analyze/:id/status", h.status)
	rg.GET("/analyze/:id/results", h.results)
	rg.GET("/analyses/recent", h.recent)
}

func (h *Handler) upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	kind, err := ingest.DetectKind(fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "unsupported_file_type", "unsupported file type", []map[string]string{
			{"field": "file", "issue": "unsupported_type"},
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	id := uuid.NewString()
	c.Set("runId", id)
	key, size, _, err := h.Store.Save(c.Request.Context(), id, fileHeader.Filename, file)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store upload", nil)
		return
	}

	run, err := h.Orch.Submit(c.Request.Context(), Submission{
		ID:          id,
		DocumentRef: key,
		Kind:        kind,
		Metadata:    parseMetadata(c.PostForm("metadata")),
		RequestID:   middleware.RequestIDFromContext(c),
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		return
	}
	telemetry.Info("run.submitted", map[string]any{
		"request_id": middleware.RequestIDFromContext(c),
		"run_id":     run.ID,
		"kind":       string(kind),
		"size_bytes": size,
	})

	respond.Accepted(c, gin.H{
		"submission_id": run.ID,
		"status":        run.Status,
		"message":       "Analysis started",
	})
}

// parseMetadata is lenient: anything that is not a JSON object becomes an empty map.
func parseMetadata(raw string) map[string]any {
	out := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

func (h *Handler) status(c *gin.Context) {
	id := c.Param("id")
	c.Set("runId", id)
	run, err := h.Orch.Status(c.Request.Context(), id)
	if err != nil {
		h.lookupError(c, err)
		return
	}

	resp := gin.H{
		"submission_id":    run.ID,
		"status":           run.Status,
		"current_stage":    run.CurrentStage,
		"stages_completed": run.CompletedStages(),
		"started_at":       run.StartedAt,
	}
	if run.CompletedAt != nil {
		resp["completed_at"] = run.CompletedAt
	}
	if run.FailedAt != nil {
		resp["failed_at"] = run.FailedAt
	}
	if run.Error != nil {
		resp["error"] = run.Error
	}
	respond.OK(c, resp)
}

func (h *Handler) results(c *gin.Context) {
	id := c.Param("id")
	c.Set("runId", id)
	res, err := h.Orch.Results(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotCompleted) {
			respond.Error(c, http.StatusConflict, "not_completed", "analysis not completed", nil)
			return
		}
		h.lookupError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) recent(c *gin.Context) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	summaries, err := h.Orch.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}
	respond.OK(c, gin.H{"analyses": summaries})
}

func (h *Handler) lookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
	}
}
