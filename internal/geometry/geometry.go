// Package geometry converts label positions between device pixels, normalized
// page coordinates and PDF points.
//
// Normalized coordinates are fractions of the rendered page with the origin at
// the top-left corner and Y pointing down. PDF content space has its origin at
// the bottom-left with Y pointing up, so the conversion to points flips Y.
package geometry

import (
	"math"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// Clamp01 limits v to [0,1]. NaN clamps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ToNormalized converts a device pixel position on the rendered surface into
// a clamped normalized position.
func ToNormalized(px, py float64, rc models.RenderContext) (float64, float64) {
	if rc.Width <= 0 || rc.Height <= 0 {
		return 0, 0
	}
	return Clamp01(px / rc.Width), Clamp01(py / rc.Height)
}

// ToDevicePixels places a normalized position on the rendered surface.
func ToDevicePixels(rx, ry float64, rc models.RenderContext) (float64, float64) {
	return rx * rc.Width, ry * rc.Height
}

// ToPdfPoints converts a normalized position into absolute PDF points using
// only the page's true size. The render scale plays no part here.
func ToPdfPoints(rx, ry, pageWidth, pageHeight float64) (float64, float64) {
	return rx * pageWidth, pageHeight - ry*pageHeight
}

// FromPdfPoints is the inverse of ToPdfPoints.
func FromPdfPoints(ptX, ptY, pageWidth, pageHeight float64) (float64, float64) {
	if pageWidth <= 0 || pageHeight <= 0 {
		return 0, 0
	}
	return ptX / pageWidth, (pageHeight - ptY) / pageHeight
}

// DisplayFontSize scales a point size for on-screen drawing.
func DisplayFontSize(points float64, rc models.RenderContext) float64 {
	if rc.Scale <= 0 {
		return points
	}
	return points * rc.Scale
}

// ExportFontSize returns the size used when stamping the PDF. Labels are
// drawn at their native point size; the render scale must never be applied.
func ExportFontSize(points float64) float64 {
	return points
}

// Baseline returns the PDF baseline for a label whose stored position marks
// the visual top of its glyph box.
func Baseline(ptY, fontSize float64) float64 {
	return ptY - fontSize
}
