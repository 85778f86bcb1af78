// Package viewer tracks the rendered page and its render context.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/labels"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// ErrSuperseded is returned by a render that a later navigation replaced.
// It is not a user facing error.
var ErrSuperseded = errors.New("render superseded")

// Renderer renders one page at a given surface width.
type Renderer interface {
	Render(ctx context.Context, template []byte, pageIndex int, availableWidth float64) (models.RenderContext, error)
}

// GeometryRenderer computes render contexts from page sizes without
// rasterizing anything.
type GeometryRenderer struct {
	// PixelRatio is device pixels per layout pixel. Zero means 1.
	PixelRatio float64
}

// Verify interface compliance
var _ Renderer = GeometryRenderer{}

func (g GeometryRenderer) Render(ctx context.Context, template []byte, pageIndex int, availableWidth float64) (models.RenderContext, error) {
	if availableWidth <= 0 {
		return models.RenderContext{}, fmt.Errorf("invalid surface width %v", availableWidth)
	}
	pages, err := export.PageDims(ctx, template)
	if err != nil {
		return models.RenderContext{}, err
	}
	if pageIndex < 0 || pageIndex >= len(pages) {
		return models.RenderContext{}, fmt.Errorf("%w: %d not in [0,%d)", labels.ErrPageOutOfRange, pageIndex, len(pages))
	}
	if err := ctx.Err(); err != nil {
		return models.RenderContext{}, err
	}

	ratio := g.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	page := pages[pageIndex]
	width := availableWidth * ratio
	scale := width / page.Width
	return models.RenderContext{
		PageIndex:     pageIndex,
		Width:         width,
		Height:        page.Height * scale,
		Scale:         scale,
		PDFPageWidth:  page.Width,
		PDFPageHeight: page.Height,
	}, nil
}

// Viewer holds the render context of the page on screen. Navigating away
// discards the context before the new page is rendered, so nothing can be
// placed against a stale page.
type Viewer struct {
	renderer Renderer

	mu       sync.Mutex
	template []byte
	gen      uint64
	cancel   context.CancelFunc
	current  *models.RenderContext
}

// New creates a viewer rendering with r.
func New(r Renderer) *Viewer {
	return &Viewer{renderer: r}
}

// Load switches to a new template. Any render in flight is superseded.
func (v *Viewer) Load(template []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.supersedeLocked()
	v.template = template
}

// Navigate renders pageIndex. Only the latest navigation's result becomes
// current; earlier ones are cancelled and return ErrSuperseded.
func (v *Viewer) Navigate(ctx context.Context, pageIndex int, availableWidth float64) (models.RenderContext, error) {
	v.mu.Lock()
	v.supersedeLocked()
	gen := v.gen
	template := v.template
	rctx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.mu.Unlock()

	rc, err := v.renderer.Render(rctx, template, pageIndex, availableWidth)

	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		return models.RenderContext{}, ErrSuperseded
	}
	cancel()
	v.cancel = nil
	if err != nil {
		return models.RenderContext{}, fmt.Errorf("failed to render page %d: %w", pageIndex+1, err)
	}
	v.current = &rc
	return rc, nil
}

// Current returns the render context of the page on screen, if one is ready.
func (v *Viewer) Current() (models.RenderContext, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.current == nil {
		return models.RenderContext{}, false
	}
	return *v.current, true
}

func (v *Viewer) supersedeLocked() {
	v.gen++
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.current = nil
}
