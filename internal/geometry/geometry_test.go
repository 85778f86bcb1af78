package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{1.7, 1},
		{math.NaN(), 0},
		{math.Inf(1), 1},
		{math.Inf(-1), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Clamp01(tt.in), "Clamp01(%v)", tt.in)
	}
}

func TestToNormalized(t *testing.T) {
	rc := models.RenderContext{Width: 800, Height: 1000, Scale: 1.5}

	x, y := ToNormalized(200, 250, rc)
	assert.InDelta(t, 0.25, x, 1e-12)
	assert.InDelta(t, 0.25, y, 1e-12)

	// Outside the surface clamps.
	x, y = ToNormalized(-40, 5000, rc)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 1.0, y)

	x, y = ToNormalized(10, 10, models.RenderContext{})
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 0.0, y)
}

func TestToDevicePixelsInvertsToNormalized(t *testing.T) {
	rc := models.RenderContext{Width: 612 * 1.3, Height: 792 * 1.3, Scale: 1.3}
	for _, p := range [][2]float64{{0, 0}, {1, 1}, {0.1, 0.9}, {0.5, 0.33}} {
		px, py := ToDevicePixels(p[0], p[1], rc)
		rx, ry := ToNormalized(px, py, rc)
		assert.InDelta(t, p[0], rx, 1e-12)
		assert.InDelta(t, p[1], ry, 1e-12)
	}
}

func TestToPdfPointsFlipsY(t *testing.T) {
	x, y := ToPdfPoints(0, 0, 612, 792)
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 792.0, y)

	x, y = ToPdfPoints(1, 1, 612, 792)
	assert.Equal(t, 612.0, x)
	assert.Equal(t, 0.0, y)

	x, y = ToPdfPoints(0.5, 0.25, 600, 800)
	assert.Equal(t, 300.0, x)
	assert.Equal(t, 600.0, y)
}

func TestPdfPointRoundTrip(t *testing.T) {
	sizes := [][2]float64{{612, 792}, {595.27559, 841.88976}, {1, 1}, {1684, 2384}, {200.5, 90.25}}
	steps := []float64{0, 0.001, 0.1, 0.25, 0.3333333333, 0.5, 0.75, 0.999, 1}

	for _, size := range sizes {
		for _, rx := range steps {
			for _, ry := range steps {
				ptX, ptY := ToPdfPoints(rx, ry, size[0], size[1])
				gotX, gotY := FromPdfPoints(ptX, ptY, size[0], size[1])
				assert.InDelta(t, rx, gotX, 1e-9)
				assert.InDelta(t, ry, gotY, 1e-9)
			}
		}
	}
}

func TestPdfPointsIgnoreRenderScale(t *testing.T) {
	// The same normalized label placed at two zoom levels lands on the same point.
	small := models.RenderContext{Width: 306, Height: 396, Scale: 0.5}
	large := models.RenderContext{Width: 1224, Height: 1584, Scale: 2}

	rx1, ry1 := ToNormalized(153, 99, small)
	rx2, ry2 := ToNormalized(612, 396, large)

	x1, y1 := ToPdfPoints(rx1, ry1, 612, 792)
	x2, y2 := ToPdfPoints(rx2, ry2, 612, 792)
	assert.InDelta(t, x1, x2, 1e-9)
	assert.InDelta(t, y1, y2, 1e-9)
	assert.InDelta(t, 306.0, x1, 1e-9)
	assert.InDelta(t, 594.0, y1, 1e-9)
}

func TestFontSizes(t *testing.T) {
	rc := models.RenderContext{Scale: 2.5}
	assert.Equal(t, 30.0, DisplayFontSize(12, rc))
	assert.Equal(t, 12.0, DisplayFontSize(12, models.RenderContext{}))
	assert.Equal(t, 12.0, ExportFontSize(12))
	assert.Equal(t, 688.0, Baseline(700, 12))
}
