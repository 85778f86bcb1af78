package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

var ErrTemplateLoad = errors.New("template could not be loaded")

// Stamp is a placement with its face resolved.
type Stamp struct {
	Placement
	Face string
}

// Stamper reads page geometry from a template and draws stamps onto a copy
// of it. Implementations must never modify template.
type Stamper interface {
	PageDims(ctx context.Context, template []byte) ([]models.PageSize, error)
	Stamp(ctx context.Context, template []byte, stamps []Stamp) ([]byte, error)
}

var configDirOnce sync.Once

// NewConfiguration returns a fresh relaxed pdfcpu configuration. pdfcpu
// mutates its configuration during a command, so every call gets its own.
func NewConfiguration() *model.Configuration {
	configDirOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PDFStamper stamps text with pdfcpu text watermarks.
type PDFStamper struct{}

// Verify interface compliance
var _ Stamper = PDFStamper{}

// PageDims returns the size in points of every page of template.
func (PDFStamper) PageDims(ctx context.Context, template []byte) ([]models.PageSize, error) {
	return PageDims(ctx, template)
}

// PageDims reads the size in points of every page of a PDF.
func PageDims(ctx context.Context, pdf []byte) ([]models.PageSize, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrTemplateLoad)
	}
	dims, err := api.PageDims(bytes.NewReader(pdf), NewConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateLoad, err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrTemplateLoad)
	}
	sizes := make([]models.PageSize, len(dims))
	for i, d := range dims {
		sizes[i] = models.PageSize{Width: d.Width, Height: d.Height}
	}
	return sizes, nil
}

// Stamp draws every stamp onto a fresh copy of template.
func (PDFStamper) Stamp(ctx context.Context, template []byte, stamps []Stamp) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byPage := make(map[int][]*model.Watermark)
	for _, s := range stamps {
		wm, err := api.TextWatermark(s.Text, watermarkDescription(s), true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to build text stamp for label %s: %w", s.LabelID, err)
		}
		byPage[s.PageIndex+1] = append(byPage[s.PageIndex+1], wm)
	}

	var out bytes.Buffer
	if len(byPage) == 0 {
		if err := api.Optimize(bytes.NewReader(template), &out, NewConfiguration()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTemplateLoad, err)
		}
		return out.Bytes(), nil
	}
	if err := api.AddWatermarksSliceMap(bytes.NewReader(template), &out, byPage, NewConfiguration()); err != nil {
		return nil, fmt.Errorf("failed to stamp document: %w", err)
	}
	return out.Bytes(), nil
}

// watermarkDescription places a bottom-left anchored text box so the glyph
// baseline lands on s.Y. pdfcpu draws the baseline ceil(descent) above the
// bottom of the box, so the offset is lowered by that amount. An absolute
// scale factor of 1 keeps the drawn size equal to the whole point size.
func watermarkDescription(s Stamp) string {
	size := pointSize(s.FontSize)
	return fmt.Sprintf("fontname:%s, points:%d, position:bl, offset:%s %s, scalefactor:1 abs, rotation:0, fillcolor:#000000, opacity:1",
		s.Face, size, formatPoints(s.X), formatPoints(s.Y-baselineLift(s.Face, size)))
}

// baselineLift is the distance pdfcpu leaves between the bottom of a text
// stamp's box and its baseline.
func baselineLift(face string, size int) float64 {
	return math.Ceil(font.Descent(face, size))
}

// pointSize rounds to the whole point sizes pdfcpu text stamps accept, so a
// drawn size differs from the requested one by at most half a point. The
// baseline and x position are not affected by the rounding.
func pointSize(size float64) int {
	n := int(math.Round(size))
	if n < 1 {
		n = 1
	}
	return n
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
