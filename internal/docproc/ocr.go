package docproc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ocrPDF rasterizes the PDF with pdftoppm and runs tesseract over each
// page image, joining page texts with blank lines.
func (p *Processor) ocrPDF(ctx context.Context, file FileRef, lang string) (Result, error) {
	tmpDir, err := os.MkdirTemp("", "clara-ocr-*")
	if err != nil {
		return Result{}, &ExtractionError{Name: file.Name, Err: err}
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	if _, errb, err := p.runner.Run(ctx, p.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", p.cfg.DPI), "-png", file.Path, prefix); err != nil {
		return Result{}, &ExtractionError{Name: file.Name, Err: fmt.Errorf("pdftoppm: %s: %w", strings.TrimSpace(string(errb)), err)}
	}

	// collect generated pngs (page-1.png, page-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if p.cfg.MaxPages > 0 && len(matches) > p.cfg.MaxPages {
		matches = matches[:p.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return Result{}, &ExtractionError{Name: file.Name, Err: fmt.Errorf("pdftoppm produced no page images")}
	}

	texts := make([]string, 0, len(matches))
	for _, img := range matches {
		text, err := p.tesseract(ctx, img, lang)
		if err != nil {
			return Result{}, &ExtractionError{Name: file.Name, Err: err}
		}
		texts = append(texts, text)
	}

	return Result{
		Filename:  file.Name,
		Text:      strings.Join(texts, "\n\n"),
		PageCount: len(matches),
	}, nil
}

// ocrImage runs tesseract on a single image; images have no embedded
// text layer so OCR is the only path.
func (p *Processor) ocrImage(ctx context.Context, file FileRef, lang string) (Result, error) {
	text, err := p.tesseract(ctx, file.Path, lang)
	if err != nil {
		return Result{}, &ExtractionError{Name: file.Name, Err: err}
	}
	return Result{Filename: file.Name, Text: text, PageCount: 1}, nil
}

func (p *Processor) tesseract(ctx context.Context, imagePath, lang string) (string, error) {
	out, errb, err := p.runner.Run(ctx, p.cfg.Tesseract, imagePath, "stdout", "-l", lang)
	if err != nil {
		return "", fmt.Errorf("tesseract: %s: %w", strings.TrimSpace(string(errb)), err)
	}
	return string(out), nil
}
