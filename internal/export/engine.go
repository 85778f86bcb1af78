// Package export stamps resolved labels onto copies of a template PDF.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
	"github.com/Lllllllleong/pdfmailmerge/internal/templating"
)

// FailurePolicy decides what a batch does when a row fails.
type FailurePolicy string

const (
	// Isolate records the failure in the manifest and continues.
	Isolate FailurePolicy = "isolate"
	// FailFast stops the batch at the first failed row.
	FailFast FailurePolicy = "failfast"
)

// ParseFailurePolicy parses a policy name. The empty string is Isolate.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch FailurePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Isolate:
		return Isolate, nil
	case FailFast:
		return FailFast, nil
	default:
		return "", fmt.Errorf("unknown failure policy %q", s)
	}
}

// RowError is the failure of one row of a batch.
type RowError struct {
	Row int // 1-based
	Err error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Output is one generated document.
type Output struct {
	Row      int // 1-based
	FileName string
	Data     []byte
	Plan     Plan
}

// Batch is the result of ExportAll. Outputs holds successful rows in row
// order; Manifest has one entry per attempted row.
type Batch struct {
	Outputs  []Output
	Manifest []models.ManifestEntry
}

// Failed returns the number of failed rows.
func (b Batch) Failed() int {
	n := 0
	for _, m := range b.Manifest {
		if m.Status == models.RowFailed {
			n++
		}
	}
	return n
}

// Config configures an Engine.
type Config struct {
	Stamper       Stamper
	FailurePolicy FailurePolicy
	Logger        *slog.Logger
}

// Engine runs export pipelines. It holds no per-document state.
type Engine struct {
	stamper Stamper
	policy  FailurePolicy
	logger  *slog.Logger
}

// NewEngine creates an engine. Zero values select the pdfcpu stamper, the
// Isolate policy and the default logger.
func NewEngine(cfg Config) *Engine {
	e := &Engine{stamper: cfg.Stamper, policy: cfg.FailurePolicy, logger: cfg.Logger}
	if e.stamper == nil {
		e.stamper = PDFStamper{}
	}
	if e.policy == "" {
		e.policy = Isolate
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// ExportOne produces the document for a single row. template is only read.
func (e *Engine) ExportOne(ctx context.Context, template []byte, labels []models.Label, row models.Row, vars templating.Variables, fileNameTemplate string) (Output, error) {
	pages, err := e.stamper.PageDims(ctx, template)
	if err != nil {
		return Output{}, fmt.Errorf("failed to load template: %w", err)
	}

	plan := BuildPlan(labels, row, pages)
	fonts := make(fontCache)
	stamps := make([]Stamp, 0, len(plan.Placements))
	for _, p := range plan.Placements {
		face, err := fonts.face(models.Label{FontFamily: p.FontFamily, FontWeight: p.FontWeight, FontStyle: p.FontStyle})
		if err != nil {
			return Output{}, fmt.Errorf("failed to resolve font for label %s: %w", p.LabelID, err)
		}
		stamps = append(stamps, Stamp{Placement: p, Face: face})
	}

	data, err := e.stamper.Stamp(ctx, template, stamps)
	if err != nil {
		return Output{}, err
	}

	return Output{
		FileName: FileName(fileNameTemplate, vars),
		Data:     data,
		Plan:     plan,
	}, nil
}

// ExportAll exports every row in order. varsPerRow must match rows. Under
// FailFast the first failure is returned as a *RowError together with the
// rows completed so far.
func (e *Engine) ExportAll(ctx context.Context, template []byte, labels []models.Label, rows []models.Row, varsPerRow []templating.Variables, fileNameTemplate string) (Batch, error) {
	if len(varsPerRow) != len(rows) {
		return Batch{}, fmt.Errorf("got %d variable sets for %d rows", len(varsPerRow), len(rows))
	}
	logCtx := e.logger.With("rowCount", len(rows), "labelCount", len(labels), "failurePolicy", string(e.policy))
	logCtx.Info("Starting batch export.")

	var batch Batch
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		n := i + 1

		out, err := e.ExportOne(ctx, template, labels, row, varsPerRow[i], fileNameTemplate)
		if err != nil {
			logCtx.Error("Failed to export row.", "row", n, "error", err)
			batch.Manifest = append(batch.Manifest, models.ManifestEntry{
				Row:      n,
				FileName: FileName(fileNameTemplate, varsPerRow[i]),
				Status:   models.RowFailed,
				Error:    err.Error(),
			})
			if e.policy == FailFast {
				return batch, &RowError{Row: n, Err: err}
			}
			continue
		}

		out.Row = n
		batch.Outputs = append(batch.Outputs, out)
		batch.Manifest = append(batch.Manifest, models.ManifestEntry{
			Row:      n,
			FileName: out.FileName,
			Status:   models.RowSucceeded,
		})
	}

	logCtx.Info("Batch export complete.", "succeeded", len(batch.Outputs), "failed", batch.Failed())
	return batch, nil
}

var unsafeNameChars = strings.NewReplacer("/", "_", `\`, "_", "\x00", "", "\r", "", "\n", " ")

// FileName resolves the file name template for one row and appends the
// .pdf suffix. An empty template uses the default.
func FileName(fileNameTemplate string, vars templating.Variables) string {
	if strings.TrimSpace(fileNameTemplate) == "" {
		fileNameTemplate = templating.DefaultFileNameTemplate
	}
	name := strings.TrimSpace(unsafeNameChars.Replace(templating.Resolve(fileNameTemplate, vars)))
	if name == "" {
		name = "document"
	}
	return name + ".pdf"
}
