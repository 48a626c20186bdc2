package docproc

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FileRef points at an uploaded file on disk. Name drives extension
// dispatch and error reporting; Path is where the bytes live.
type FileRef struct {
	Name string
	Path string
}

// Result carries the extracted text. Pages are merged into one blob in
// page order; the count is informational only.
type Result struct {
	Filename  string
	Text      string
	PageCount int
}

// ExtractionError marks an I/O or decode failure for a single file so
// the orchestrator can fail that item without failing the batch.
type ExtractionError struct {
	Name string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return "extract " + e.Name
	}
	return "extract " + e.Name + ": " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Config controls the external OCR toolchain.
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	DPI       int    // rasterization DPI for scanned PDFs, default 300
	MaxPages  int    // 0 = no limit
}

// Processor turns uploaded PDFs and images into plain text.
type Processor struct {
	cfg    Config
	runner Runner
}

// NewProcessor constructs a Processor with defaults filled in.
func NewProcessor(cfg Config) *Processor {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Processor{cfg: cfg, runner: execRunner{}}
}

// Process extracts text from a file, dispatching on extension. PDFs use
// the embedded text layer unless the caller asks for OCR; images always
// OCR since they have no text layer. lang is a tesseract language code
// ("eng"), not a display name.
func (p *Processor) Process(ctx context.Context, file FileRef, useOCR bool, lang string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &ExtractionError{Name: file.Name, Err: err}
	}
	if lang == "" {
		lang = "eng"
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Name), "."))
	switch ext {
	case "pdf":
		if useOCR {
			return p.ocrPDF(ctx, file, lang)
		}
		return p.textLayerPDF(file)
	case "png", "jpg", "jpeg":
		return p.ocrImage(ctx, file, lang)
	default:
		return Result{}, &ExtractionError{Name: file.Name, Err: fmt.Errorf("unsupported file type: %s", ext)}
	}
}

// textLayerPDF reads the embedded text layer page by page, joining pages
// with blank lines.
func (p *Processor) textLayerPDF(file FileRef) (Result, error) {
	f, reader, err := pdf.Open(file.Path)
	if err != nil {
		return Result{}, &ExtractionError{Name: file.Name, Err: err}
	}
	defer f.Close()

	total := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return Result{}, &ExtractionError{Name: file.Name, Err: fmt.Errorf("page %d: %w", i, err)}
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	return Result{Filename: file.Name, Text: b.String(), PageCount: total}, nil
}
