// Package workspace is an editing session on one template: its identity,
// labels, rendered page, saved state and exports.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/geometry"
	"github.com/Lllllllleong/pdfmailmerge/internal/identity"
	"github.com/Lllllllleong/pdfmailmerge/internal/labels"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
	"github.com/Lllllllleong/pdfmailmerge/internal/persistence"
	"github.com/Lllllllleong/pdfmailmerge/internal/templating"
	"github.com/Lllllllleong/pdfmailmerge/internal/viewer"
)

var (
	// ErrNotLoaded is returned by operations that need a fully opened template.
	ErrNotLoaded = errors.New("no template loaded")
	// ErrNoRenderedPage is returned when placing by pixels with no page on screen.
	ErrNoRenderedPage = errors.New("no rendered page")
)

// Document is the opened template.
type Document struct {
	ID    string // content hash
	Name  string
	Data  []byte
	Pages []models.PageSize
}

// OpenResult summarises a completed Open.
type OpenResult struct {
	Document Document
	Restored int   // labels restored from storage
	Dropped  int   // stored labels that did not fit the document
	Purged   []int // pages whose stored records were invalid
	Reused   bool  // the template was already open
}

// Config configures a Workspace.
type Config struct {
	Adapter  *persistence.Adapter
	Engine   *export.Engine
	Renderer viewer.Renderer
	Logger   *slog.Logger
	Now      func() time.Time
}

// Workspace is safe for concurrent use.
type Workspace struct {
	adapter *persistence.Adapter
	engine  *export.Engine
	viewer  *viewer.Viewer
	store   *labels.Store
	logger  *slog.Logger
	now     func() time.Time

	mu               sync.Mutex
	gen              uint64
	loading          uint64 // generation of an Open still reading storage
	doc              *Document
	fileNameTemplate string
	email            *models.EmailTemplates
}

// New creates an empty workspace.
func New(cfg Config) *Workspace {
	w := &Workspace{
		adapter: cfg.Adapter,
		engine:  cfg.Engine,
		logger:  cfg.Logger,
		now:     cfg.Now,
		store:   labels.NewStore(0),
	}
	if w.engine == nil {
		w.engine = export.NewEngine(export.Config{Logger: cfg.Logger})
	}
	if cfg.Renderer == nil {
		cfg.Renderer = viewer.GeometryRenderer{}
	}
	w.viewer = viewer.New(cfg.Renderer)
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Store returns the label store.
func (w *Workspace) Store() *labels.Store { return w.store }

// Viewer returns the page viewer.
func (w *Workspace) Viewer() *viewer.Viewer { return w.viewer }

// Document returns the opened template.
func (w *Workspace) Document() (Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.doc == nil {
		return Document{}, false
	}
	return *w.doc, true
}

// Open makes data the current template and restores its saved labels.
// Opening the template that is already open keeps the session as it is.
// Until Open returns, Save refuses to write, so a half loaded session can
// never overwrite stored labels. A failed Open leaves the previous session
// in place.
func (w *Workspace) Open(ctx context.Context, name string, data []byte) (OpenResult, error) {
	id, err := identity.HashBytes(data)
	if err != nil {
		return OpenResult{}, fmt.Errorf("failed to identify template: %w", err)
	}
	logCtx := w.logger.With("documentId", id, "templateName", name)

	if doc, ok := w.Document(); ok && doc.ID == id {
		return OpenResult{Document: doc, Reused: true}, nil
	}

	// An unreadable template leaves the current session untouched.
	pages, err := export.PageDims(ctx, data)
	if err != nil {
		return OpenResult{}, fmt.Errorf("failed to read template: %w", err)
	}

	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.loading = gen
	w.mu.Unlock()

	var snap persistence.Snapshot
	var email models.EmailTemplates
	var hasEmail bool
	if w.adapter != nil {
		if snap, err = w.adapter.LoadSnapshot(ctx, id); err != nil {
			w.endLoad(gen)
			return OpenResult{}, fmt.Errorf("failed to load saved labels: %w", err)
		}
		if email, hasEmail, err = w.adapter.LoadEmailTemplates(ctx, id); err != nil {
			w.endLoad(gen)
			return OpenResult{}, err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.gen {
		return OpenResult{}, viewer.ErrSuperseded
	}
	w.loading = 0

	w.store.Reset(len(pages))
	dropped := w.store.Replace(snap.Labels)
	w.viewer.Load(data)
	w.fileNameTemplate = snap.FileNameTemplate
	w.email = nil
	if hasEmail {
		w.email = &email
	}
	doc := Document{ID: id, Name: name, Data: data, Pages: pages}
	w.doc = &doc

	logCtx.Info("Template opened.", "pageCount", len(pages), "restored", w.store.Len(), "dropped", dropped)
	return OpenResult{
		Document: doc,
		Restored: w.store.Len(),
		Dropped:  dropped,
		Purged:   snap.Purged,
	}, nil
}

// endLoad clears the loading mark of generation gen, unless a newer Open
// has taken over.
func (w *Workspace) endLoad(gen uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.loading == gen {
		w.loading = 0
	}
}

// Save persists the labels, file name template and email templates.
func (w *Workspace) Save(ctx context.Context) error {
	w.mu.Lock()
	if w.doc == nil || w.loading != 0 {
		w.mu.Unlock()
		return ErrNotLoaded
	}
	id := w.doc.ID
	tpl := w.fileNameTemplate
	email := w.email
	w.mu.Unlock()

	if w.adapter == nil {
		return nil
	}
	if err := w.adapter.SaveSnapshot(ctx, id, w.store.All(), tpl); err != nil {
		return err
	}
	if email != nil {
		return w.adapter.SaveEmailTemplates(ctx, id, *email)
	}
	return nil
}

// FileNameTemplate returns the file name template, or the default when none
// is set.
func (w *Workspace) FileNameTemplate() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fileNameTemplate == "" {
		return templating.DefaultFileNameTemplate
	}
	return w.fileNameTemplate
}

// SetFileNameTemplate sets the file name template used by exports.
func (w *Workspace) SetFileNameTemplate(tpl string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fileNameTemplate = tpl
}

// EmailTemplates returns the email templates, if any are set.
func (w *Workspace) EmailTemplates() (models.EmailTemplates, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.email == nil {
		return models.EmailTemplates{}, false
	}
	return *w.email, true
}

// SetEmailTemplates sets the email templates. Empty templates clear them.
func (w *Workspace) SetEmailTemplates(t models.EmailTemplates) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if templating.IsZero(t) {
		w.email = nil
		return
	}
	w.email = &t
}

// Navigate renders a page of the open template.
func (w *Workspace) Navigate(ctx context.Context, pageIndex int, availableWidth float64) (models.RenderContext, error) {
	if _, ok := w.Document(); !ok {
		return models.RenderContext{}, ErrNotLoaded
	}
	return w.viewer.Navigate(ctx, pageIndex, availableWidth)
}

// PlaceAt adds a label at a device pixel position of the rendered page.
func (w *Workspace) PlaceAt(px, py float64) (models.Label, error) {
	rc, ok := w.viewer.Current()
	if !ok {
		return models.Label{}, ErrNoRenderedPage
	}
	x, y := geometry.ToNormalized(px, py, rc)
	return w.store.Add(rc.PageIndex, labels.Position{X: x, Y: y})
}

// MoveTo moves a label to a device pixel position of the rendered page.
// Without a rendered page for the label the move is dropped.
func (w *Workspace) MoveTo(id string, px, py float64) {
	rc, ok := w.viewer.Current()
	if !ok {
		return
	}
	w.store.Update(id, labels.Patch{X: &px, Y: &py}, &rc)
}

// Variables returns the template variables of a row. index is 1-based.
func (w *Workspace) Variables(row models.Row, index int) (templating.Variables, error) {
	doc, ok := w.Document()
	if !ok {
		return nil, ErrNotLoaded
	}
	return templating.RowVariables(row, index, doc.Name, w.now()), nil
}

// Export generates the document of one row. index is 1-based.
func (w *Workspace) Export(ctx context.Context, row models.Row, index int) (export.Output, *models.EmailDraft, error) {
	doc, ok := w.Document()
	if !ok {
		return export.Output{}, nil, ErrNotLoaded
	}
	vars := templating.RowVariables(row, index, doc.Name, w.now())
	out, err := w.engine.ExportOne(ctx, doc.Data, w.store.All(), row, vars, w.FileNameTemplate())
	if err != nil {
		return export.Output{}, nil, err
	}
	out.Row = index

	var draft *models.EmailDraft
	if t, ok := w.EmailTemplates(); ok {
		draft = templating.Draft(t, vars)
	}
	return out, draft, nil
}

// ExportAll generates one document per row. Manifest entries carry the
// row's email draft when email templates are set.
func (w *Workspace) ExportAll(ctx context.Context, rows []models.Row) (export.Batch, error) {
	doc, ok := w.Document()
	if !ok {
		return export.Batch{}, ErrNotLoaded
	}
	date := w.now()
	vars := make([]templating.Variables, len(rows))
	for i, row := range rows {
		vars[i] = templating.RowVariables(row, i+1, doc.Name, date)
	}

	batch, err := w.engine.ExportAll(ctx, doc.Data, w.store.All(), rows, vars, w.FileNameTemplate())
	if t, ok := w.EmailTemplates(); ok {
		for i := range batch.Manifest {
			batch.Manifest[i].Email = templating.Draft(t, vars[batch.Manifest[i].Row-1])
		}
	}
	return batch, err
}
