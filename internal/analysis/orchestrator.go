package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clara-backend/internal/docproc"
	"clara-backend/internal/jobs"
	"clara-backend/internal/llm"
	"clara-backend/internal/pubmed"
	"clara-backend/internal/shared/telemetry"
)

// Bibliographic is the literature-database boundary the orchestrator
// consumes.
type Bibliographic interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Fetch(ctx context.Context, ids []string) ([]pubmed.Article, error)
	FullText(ctx context.Context, pmid string) (string, error)
}

// DocumentExtractor is the document-processing boundary.
type DocumentExtractor interface {
	Process(ctx context.Context, file docproc.FileRef, useOCR bool, lang string) (docproc.Result, error)
}

// Orchestrator drives acquisition, prompting, provider calls, and
// extraction for a batch. One bad paper never prevents the rest of the
// batch from completing.
type Orchestrator struct {
	PubMed        Bibliographic
	Docs          DocumentExtractor
	Clients       map[llm.Provider]llm.Client
	DefaultModels map[llm.Provider]string
	MaxResults    int
	Runs          jobs.Repo // optional; terminal states are persisted when set
}

// Run executes a job synchronously and returns one record per item in
// item order. The returned error is non-nil only for job-level faults
// that happen before any item is attempted.
func (o *Orchestrator) Run(ctx context.Context, job Job) ([]Record, error) {
	job = NewJob(job)
	h := newJobHandle(job.ID)
	return o.run(ctx, job, h)
}

// Start launches a job in the background and returns its handle for
// polling and collection. Fire-and-forget from the caller's view.
func (o *Orchestrator) Start(ctx context.Context, job Job) *JobHandle {
	job = NewJob(job)
	h := newJobHandle(job.ID)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.Error("analysis.panic", map[string]any{"job_id": job.ID, "error": fmt.Sprintf("%v", rec)})
				h.fail(fmt.Errorf("panic: %v", rec))
			}
		}()
		o.run(ctx, job, h)
	}()
	return h
}

func (o *Orchestrator) run(ctx context.Context, job Job, h *JobHandle) ([]Record, error) {
	startedAt := time.Now().UTC()
	o.persistCreate(ctx, job, startedAt)

	client, model, err := o.resolveClient(job)
	if err != nil {
		return o.failJob(ctx, job, h, err)
	}

	h.setRunning(0)
	telemetry.Info("analysis.status", map[string]any{
		"job_id":            job.ID,
		"kind":              string(job.Kind),
		"provider":          string(job.Provider),
		"model":             model,
		"status":            StatusRunning,
		"status_transition": "pending->running",
	})

	var records []Record
	switch job.Kind {
	case SourceDocument:
		records, err = o.runDocuments(ctx, job, h, client, model)
	default:
		records, err = o.runBibliographic(ctx, job, h, client, model)
	}
	if err != nil {
		return o.failJob(ctx, job, h, err)
	}

	h.complete()
	o.persistFinish(ctx, job, h, StatusCompleted, "")
	telemetry.Info("analysis.status", map[string]any{
		"job_id":            job.ID,
		"status":            StatusCompleted,
		"status_transition": "running->completed",
		"total":             len(records),
		"duration_ms":       time.Since(startedAt).Milliseconds(),
	})
	return records, nil
}

// runBibliographic does the two-stage lookup (bounded ID list, then one
// batched fetch) and analyzes each article. A failure of the lookup
// itself is the one fatal case; zero identifiers is simply an empty run.
func (o *Orchestrator) runBibliographic(ctx context.Context, job Job, h *JobHandle, client llm.Client, model string) ([]Record, error) {
	limit := job.MaxResults
	if o.MaxResults > 0 && (limit <= 0 || limit > o.MaxResults) {
		limit = o.MaxResults
	}

	ids, err := o.PubMed.Search(ctx, job.Query, limit)
	if err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	if len(ids) == 0 {
		return []Record{}, nil
	}

	articles, err := o.PubMed.Fetch(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}

	h.setTotal(len(articles))
	records := make([]Record, 0, len(articles))
	for i, article := range articles {
		rec := o.analyzeArticle(ctx, job, client, model, article)
		h.appendRecord(rec)
		records = append(records, rec)
		telemetry.Info("analysis.item", map[string]any{
			"job_id": job.ID,
			"index":  i + 1,
			"total":  len(articles),
			"pmid":   article.PMID,
			"failed": rec.Error != "",
		})
	}
	return records, nil
}

func (o *Orchestrator) analyzeArticle(ctx context.Context, job Job, client llm.Client, model string, article pubmed.Article) Record {
	prompt := llm.BuildSystemPrompt(false, job.Provider)
	raw, err := client.Complete(ctx, prompt, article.PromptText(), model)
	if err != nil {
		return Record{
			Title:          "Error analyzing paper",
			PMID:           article.PMID,
			Error:          err.Error(),
			AnalysisSource: "Failed",
		}
	}

	rec := ExtractRecord(raw)
	rec.AnalysisSource = "Abstract"
	if rec.PMID == "" || rec.PMID == "NA" {
		rec.PMID = article.PMID
	}
	if rec.FullTextLink == "" || rec.FullTextLink == "NA" {
		rec.FullTextLink = article.DOIURL()
	}

	if job.UseFullText {
		if enriched, ok := o.tryFullText(ctx, job, client, model, article, rec); ok {
			rec = enriched
		}
	}
	return rec
}

// tryFullText attempts PMC full-text enrichment. Any failure here leaves
// the abstract-level record standing.
func (o *Orchestrator) tryFullText(ctx context.Context, job Job, client llm.Client, model string, article pubmed.Article, abstractRec Record) (Record, bool) {
	if article.PMID == "" {
		return Record{}, false
	}
	fullText, err := o.PubMed.FullText(ctx, article.PMID)
	if err != nil || fullText == "" {
		if err != nil && !errors.Is(err, pubmed.ErrFullTextUnavailable) {
			telemetry.Warn("analysis.fulltext_fetch_failed", map[string]any{"job_id": job.ID, "pmid": article.PMID, "error": err.Error()})
		}
		return Record{}, false
	}

	prompt := llm.BuildSystemPrompt(false, job.Provider)
	raw, err := client.Complete(ctx, prompt, fullText, model)
	if err != nil {
		telemetry.Warn("analysis.fulltext_analyze_failed", map[string]any{"job_id": job.ID, "pmid": article.PMID, "error": err.Error()})
		return Record{}, false
	}

	rec := ExtractRecord(raw)
	if rec.Error != "" {
		return Record{}, false
	}
	rec.PMID = abstractRec.PMID
	rec.FullTextLink = abstractRec.FullTextLink
	rec.AnalysisSource = "Full Text (PMC)"
	return rec, true
}

// runDocuments extracts and analyzes each uploaded file. Acquisition
// happens per item, so a single unreadable file costs only its own row.
func (o *Orchestrator) runDocuments(ctx context.Context, job Job, h *JobHandle, client llm.Client, model string) ([]Record, error) {
	h.setTotal(len(job.Files))
	records := make([]Record, 0, len(job.Files))
	for i, file := range job.Files {
		rec := o.analyzeDocument(ctx, job, client, model, file)
		h.appendRecord(rec)
		records = append(records, rec)
		telemetry.Info("analysis.item", map[string]any{
			"job_id":   job.ID,
			"index":    i + 1,
			"total":    len(job.Files),
			"filename": file.Name,
			"failed":   rec.Error != "",
		})
	}
	return records, nil
}

func (o *Orchestrator) analyzeDocument(ctx context.Context, job Job, client llm.Client, model string, file FileRef) Record {
	result, err := o.Docs.Process(ctx, docproc.FileRef{Name: file.Name, Path: file.Path}, job.UseOCR, job.Language)
	if err != nil {
		return Record{
			Title:    "Error processing " + file.Name,
			Filename: file.Name,
			Error:    err.Error(),
		}
	}

	prompt := llm.BuildSystemPrompt(true, job.Provider)
	raw, err := client.Complete(ctx, prompt, result.Text, model)
	if err != nil {
		return Record{
			Title:    "Error analyzing paper",
			Filename: file.Name,
			Error:    err.Error(),
		}
	}

	rec := ExtractRecord(raw)
	// Provenance the model cannot know: which upload this row came from.
	rec.Filename = file.Name
	if rec.AnalysisSource == "" {
		rec.AnalysisSource = "Full Text (PDF)"
	}
	return rec
}

func (o *Orchestrator) resolveClient(job Job) (llm.Client, string, error) {
	client, ok := o.Clients[job.Provider]
	if !ok || client == nil {
		return nil, "", fmt.Errorf("%w: %s", ErrNoClient, job.Provider)
	}
	model := job.Model
	if model == "" {
		model = o.DefaultModels[job.Provider]
	}
	if model == "" {
		return nil, "", fmt.Errorf("no model configured for provider %s", job.Provider)
	}
	return client, model, nil
}

func (o *Orchestrator) failJob(ctx context.Context, job Job, h *JobHandle, err error) ([]Record, error) {
	h.fail(err)
	o.persistFinish(ctx, job, h, StatusFailed, err.Error())
	telemetry.Error("analysis.status", map[string]any{
		"job_id":            job.ID,
		"status":            StatusFailed,
		"status_transition": "running->failed",
		"error":             err.Error(),
	})
	return nil, err
}

func (o *Orchestrator) persistCreate(ctx context.Context, job Job, createdAt time.Time) {
	if o.Runs == nil {
		return
	}
	run := jobs.Run{
		ID:        job.ID,
		Kind:      string(job.Kind),
		Query:     job.Query,
		Provider:  string(job.Provider),
		Model:     job.Model,
		Status:    StatusRunning,
		CreatedAt: createdAt,
	}
	if err := o.Runs.Create(ctx, run); err != nil {
		telemetry.Error("analysis.persist_create_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
	}
}

func (o *Orchestrator) persistFinish(ctx context.Context, job Job, h *JobHandle, status, errorMessage string) {
	if o.Runs == nil {
		return
	}
	progress := h.Poll()
	var payload json.RawMessage
	if status == StatusCompleted {
		rows := make([]map[string]any, 0, len(h.records))
		for _, rec := range h.records {
			rows = append(rows, rec.ToMap())
		}
		data, err := json.Marshal(rows)
		if err != nil {
			telemetry.Error("analysis.persist_marshal_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
		} else {
			payload = data
		}
	}
	if err := o.Runs.Finish(ctx, job.ID, status, progress.TotalCount, progress.CompletedCount, payload, errorMessage, time.Now().UTC()); err != nil {
		telemetry.Error("analysis.persist_finish_failed", map[string]any{"job_id": job.ID, "error": err.Error()})
	}
}
