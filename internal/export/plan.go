package export

import (
	"sort"
	"strings"

	"github.com/Lllllllleong/pdfmailmerge/internal/geometry"
	"github.com/Lllllllleong/pdfmailmerge/internal/labels"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
	"github.com/Lllllllleong/pdfmailmerge/internal/templating"
)

// Placement is one label resolved for one row, in PDF points.
type Placement struct {
	LabelID   string
	PageIndex int
	Text      string
	// X and Y locate the left end of the baseline, origin bottom-left.
	X          float64
	Y          float64
	FontSize   float64
	FontFamily string
	FontWeight models.FontWeight
	FontStyle  models.FontStyle
}

// Skip records a label that produced no placement.
type Skip struct {
	LabelID string
	Reason  string
}

// Plan lists placements in page order, then store order within a page.
type Plan struct {
	Placements []Placement
	Skipped    []Skip
}

// FieldText resolves the text drawn for a label. A column missing from the
// row is drawn as the label text wrapped in braces.
func FieldText(l models.Label, row models.Row) string {
	v, ok := row[l.Text]
	if !ok || v == nil {
		return "{" + l.Text + "}"
	}
	return templating.Stringify(v)
}

// BuildPlan computes where and what to draw for one row. pages holds the
// true size of every page of the template.
func BuildPlan(ls []models.Label, row models.Row, pages []models.PageSize) Plan {
	ordered := make([]models.Label, len(ls))
	copy(ordered, ls)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PageIndex < ordered[j].PageIndex
	})

	var plan Plan
	for _, l := range ordered {
		if l.PageIndex < 0 || l.PageIndex >= len(pages) {
			plan.Skipped = append(plan.Skipped, Skip{LabelID: l.ID, Reason: "page not in document"})
			continue
		}
		text := singleLine(FieldText(l, row))
		if strings.TrimSpace(text) == "" {
			plan.Skipped = append(plan.Skipped, Skip{LabelID: l.ID, Reason: "empty value"})
			continue
		}

		page := pages[l.PageIndex]
		x, y := geometry.ToPdfPoints(l.RelativeX, l.RelativeY, page.Width, page.Height)
		size := l.FontSize
		if size <= 0 {
			size = labels.DefaultFontSize
		}
		size = geometry.ExportFontSize(size)
		plan.Placements = append(plan.Placements, Placement{
			LabelID:    l.ID,
			PageIndex:  l.PageIndex,
			Text:       text,
			X:          x,
			Y:          geometry.Baseline(y, size),
			FontSize:   size,
			FontFamily: l.FontFamily,
			FontWeight: l.FontWeight,
			FontStyle:  l.FontStyle,
		})
	}
	return plan
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func singleLine(s string) string {
	return lineBreaks.Replace(s)
}
