package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"clara-backend/internal/docproc"
	"clara-backend/internal/export"
	"clara-backend/internal/jobs"
	"clara-backend/internal/llm"
	"clara-backend/internal/shared/server/middleware"
	"clara-backend/internal/shared/server/respond"
	"clara-backend/internal/shared/telemetry"
)

// Counter answers how many results a query would return without
// fetching any of them.
type Counter interface {
	Count(ctx context.Context, query string) (int, error)
}

// Handler wires HTTP handlers to the analysis orchestrator.
type Handler struct {
	Orc             *Orchestrator
	Counts          Counter
	Runs            jobs.Repo
	UploadDir       string
	DefaultProvider llm.Provider

	mu      sync.RWMutex
	handles map[string]*JobHandle
}

// NewHandler constructs a Handler.
func NewHandler(orc *Orchestrator, counts Counter, runs jobs.Repo, uploadDir string, defaultProvider llm.Provider) *Handler {
	return &Handler{
		Orc:             orc,
		Counts:          counts,
		Runs:            runs,
		UploadDir:       uploadDir,
		DefaultProvider: defaultProvider,
		handles:         make(map[string]*JobHandle),
	}
}

// RegisterRoutes attaches analysis routes to the router group. Progress
// polling gets its own rate limit because frontends poll in a loop.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	pollLimit := middleware.RateLimit(middleware.NewRateLimiter(nil), middleware.RateLimitRule{Rate: 5, Burst: 10})

	rg.POST("/analyses/pubmed", h.startPubMed)
	rg.POST("/analyses/documents", h.startDocuments)
	rg.GET("/analyses", h.listRuns)
	rg.GET("/analyses/:id/progress", pollLimit, h.getProgress)
	rg.GET("/analyses/:id/results", h.getResults)
	rg.GET("/analyses/:id/export", h.exportResults)
	rg.GET("/pubmed/count", h.countPubMed)
}

type pubmedRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"maxResults"`
	UseFullText bool   `json:"useFullText"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
}

func (h *Handler) startPubMed(c *gin.Context) {
	var req pubmedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "query is required", nil)
		return
	}

	provider, err := h.resolveProvider(req.Provider)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	job := NewJob(Job{
		Kind:        SourceBibliographic,
		Query:       strings.TrimSpace(req.Query),
		MaxResults:  req.MaxResults,
		UseFullText: req.UseFullText,
		Provider:    provider,
		Model:       strings.TrimSpace(req.Model),
	})
	h.launch(c, job)
}

func (h *Handler) startDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "multipart form is required", nil)
		return
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "at least one file is required", nil)
		return
	}

	provider, err := h.resolveProvider(c.PostForm("provider"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	job := NewJob(Job{
		Kind:     SourceDocument,
		UseOCR:   parseBool(c.PostForm("useOcr")),
		Language: docproc.LanguageCode(c.PostForm("language")),
		Provider: provider,
		Model:    strings.TrimSpace(c.PostForm("model")),
	})

	dir := filepath.Join(h.UploadDir, job.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store uploads", nil)
		return
	}
	for _, upload := range uploads {
		name := filepath.Base(upload.Filename)
		dst := filepath.Join(dir, name)
		if err := c.SaveUploadedFile(upload, dst); err != nil {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store uploads", nil)
			return
		}
		job.Files = append(job.Files, FileRef{Name: name, Path: dst})
	}

	h.launch(c, job)
}

// launch starts the job in the background and answers 202 immediately.
// The request context dies with the response, so the job gets its own.
func (h *Handler) launch(c *gin.Context, job Job) {
	handle := h.Orc.Start(context.Background(), job)

	h.mu.Lock()
	h.handles[job.ID] = handle
	h.mu.Unlock()

	c.Set("jobId", job.ID)
	respond.JSON(c, http.StatusAccepted, gin.H{
		"jobId":  job.ID,
		"status": handle.Poll().Status,
	})
}

func (h *Handler) getProgress(c *gin.Context) {
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	if handle, ok := h.handle(jobID); ok {
		progress := handle.Poll()
		respond.OK(c, gin.H{
			"jobId":          jobID,
			"status":         progress.Status,
			"completedCount": progress.CompletedCount,
			"totalCount":     progress.TotalCount,
		})
		return
	}

	run, err := h.persistedRun(c, jobID)
	if err != nil {
		return
	}
	respond.OK(c, gin.H{
		"jobId":          run.ID,
		"status":         run.Status,
		"completedCount": run.CompletedCount,
		"totalCount":     run.TotalCount,
	})
}

func (h *Handler) getResults(c *gin.Context) {
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	records, status, err := h.results(c, jobID)
	if err != nil {
		return
	}
	switch status {
	case StatusPending, StatusRunning:
		respond.JSON(c, http.StatusAccepted, gin.H{"jobId": jobID, "status": status})
	case StatusFailed:
		respond.Error(c, http.StatusUnprocessableEntity, "analysis_failed", "analysis failed", nil)
	default:
		rows := make([]map[string]any, 0, len(records))
		for _, rec := range records {
			rows = append(rows, rec.ToMap())
		}
		respond.OK(c, gin.H{"jobId": jobID, "status": status, "results": rows})
	}
}

func (h *Handler) exportResults(c *gin.Context) {
	jobID := c.Param("id")
	c.Set("jobId", jobID)

	records, status, err := h.results(c, jobID)
	if err != nil {
		return
	}
	if status != StatusCompleted {
		respond.Error(c, http.StatusConflict, "not_ready", "analysis is not complete", nil)
		return
	}

	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if err := ValidateRecord(rec); err != nil {
			telemetry.Warn("analysis.record_suspect", map[string]any{
				"job_id": jobID,
				"pmid":   rec.PMID,
				"error":  err.Error(),
			})
		}
		rows = append(rows, rec.ToMap())
	}

	filename := fmt.Sprintf("analysis_%s_%s.xlsx", jobID, time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := export.WriteXLSX(c.Writer, FieldNames, rows); err != nil {
		telemetry.Error("analysis.export_failed", map[string]any{"job_id": jobID, "error": err.Error()})
	}
}

func (h *Handler) listRuns(c *gin.Context) {
	if h.Runs == nil {
		respond.OK(c, gin.H{"runs": []jobs.Run{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	runs, err := h.Runs.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list runs", nil)
		return
	}
	if runs == nil {
		runs = []jobs.Run{}
	}
	respond.OK(c, gin.H{"runs": runs})
}

func (h *Handler) countPubMed(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "query is required", nil)
		return
	}
	count, err := h.Counts.Count(c.Request.Context(), query)
	if err != nil {
		respond.Error(c, http.StatusBadGateway, "upstream_error", "failed to count results", nil)
		return
	}
	respond.OK(c, gin.H{"query": query, "count": count})
}

// results resolves a job's records from the live handle first, falling
// back to the persisted run for jobs that finished before a restart.
// On error it has already written the response.
func (h *Handler) results(c *gin.Context, jobID string) ([]Record, string, error) {
	if handle, ok := h.handle(jobID); ok {
		progress := handle.Poll()
		if progress.Status != StatusCompleted {
			return nil, progress.Status, nil
		}
		records, err := handle.Collect()
		if err != nil {
			return nil, StatusFailed, nil
		}
		return records, StatusCompleted, nil
	}

	run, err := h.persistedRun(c, jobID)
	if err != nil {
		return nil, "", err
	}
	if run.Status != StatusCompleted {
		return nil, run.Status, nil
	}
	records, err := decodeRunResults(run.Results)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "stored results are unreadable", nil)
		return nil, "", err
	}
	return records, StatusCompleted, nil
}

func (h *Handler) persistedRun(c *gin.Context, jobID string) (jobs.Run, error) {
	if h.Runs == nil {
		respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		return jobs.Run{}, ErrNotFound
	}
	run, err := h.Runs.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		} else {
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return jobs.Run{}, err
	}
	return run, nil
}

func (h *Handler) handle(jobID string) (*JobHandle, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	handle, ok := h.handles[jobID]
	return handle, ok
}

func (h *Handler) resolveProvider(raw string) (llm.Provider, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return h.DefaultProvider, nil
	}
	provider, err := llm.ParseProvider(raw)
	if err != nil {
		return "", err
	}
	return provider, nil
}

func parseBool(raw string) bool {
	val, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && val
}
