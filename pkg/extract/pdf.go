// Package extract pulls per-page paragraph text out of PDF files.
//
// Extraction shells out to pdftotext (poppler-utils) rather than linking a
// PDF parser; install it with `brew install poppler` or
// `apt install poppler-utils`.
package extract

import (
	"context"
	"os/exec"
	"strings"

	"github.com/docquery/docquery/internal/models"
)

// Runner executes an external command. It exists so tests can stub the
// pdftotext invocation.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// PDF extracts text from PDF files via pdftotext.
type PDF struct {
	runner Runner
}

func NewPDF() *PDF {
	return &PDF{runner: execRunner{}}
}

// NewPDFWithRunner builds an extractor with a custom command runner.
func NewPDFWithRunner(r Runner) *PDF {
	return &PDF{runner: r}
}

// Extract implements types.PageExtractor. pdftotext separates pages with
// form feeds; each page is further split on blank lines into paragraph
// units. Empty pages and paragraphs are skipped. Page numbers start at 1.
func (p *PDF) Extract(ctx context.Context, path string) ([]models.Page, error) {
	out, err := p.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		return nil, err
	}

	var units []models.Page
	for i, page := range strings.Split(string(out), "\f") {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		for _, para := range strings.Split(page, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			units = append(units, models.Page{Number: i + 1, Text: para})
		}
	}
	return units, nil
}
