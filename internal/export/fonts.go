package export

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/font"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

var ErrFontUnavailable = errors.New("font unavailable")

// FontSet holds the four standard faces of one family.
type FontSet struct {
	Family     string
	Regular    string
	Bold       string
	Italic     string
	BoldItalic string
}

var (
	helvetica = FontSet{Family: "Helvetica", Regular: "Helvetica", Bold: "Helvetica-Bold", Italic: "Helvetica-Oblique", BoldItalic: "Helvetica-BoldOblique"}
	times     = FontSet{Family: "Times", Regular: "Times-Roman", Bold: "Times-Bold", Italic: "Times-Italic", BoldItalic: "Times-BoldItalic"}
	courier   = FontSet{Family: "Courier", Regular: "Courier", Bold: "Courier-Bold", Italic: "Courier-Oblique", BoldItalic: "Courier-BoldOblique"}
)

var familyAliases = map[string]FontSet{
	"helvetica":       helvetica,
	"arial":           helvetica,
	"sans-serif":      helvetica,
	"times":           times,
	"times-roman":     times,
	"times new roman": times,
	"serif":           times,
	"courier":         courier,
	"courier new":     courier,
	"monospace":       courier,
}

// FontSetFor maps a label font family onto standard PDF faces. Unknown
// families use Helvetica.
func FontSetFor(family string) FontSet {
	if fs, ok := familyAliases[strings.ToLower(strings.TrimSpace(family))]; ok {
		return fs
	}
	return helvetica
}

// ResolveFontSet returns the faces for family after checking that every one
// of them can be drawn without embedding.
func ResolveFontSet(family string) (FontSet, error) {
	fs := FontSetFor(family)
	for _, face := range []string{fs.Regular, fs.Bold, fs.Italic, fs.BoldItalic} {
		if !font.IsCoreFont(face) {
			return FontSet{}, fmt.Errorf("%w: %s", ErrFontUnavailable, face)
		}
	}
	return fs, nil
}

// SelectFace picks the face for a weight and style.
func SelectFace(fs FontSet, weight models.FontWeight, style models.FontStyle) string {
	bold := weight == models.WeightBold
	italic := style == models.StyleItalic
	switch {
	case bold && italic:
		return fs.BoldItalic
	case bold:
		return fs.Bold
	case italic:
		return fs.Italic
	default:
		return fs.Regular
	}
}

// fontCache resolves each family once per document.
type fontCache map[string]FontSet

func (c fontCache) face(l models.Label) (string, error) {
	fs, ok := c[l.FontFamily]
	if !ok {
		var err error
		if fs, err = ResolveFontSet(l.FontFamily); err != nil {
			return "", err
		}
		c[l.FontFamily] = fs
	}
	return SelectFace(fs, l.FontWeight, l.FontStyle), nil
}
