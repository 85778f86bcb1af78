package models

// FontWeight is either normal or bold.
type FontWeight string

// FontStyle is either normal or italic.
type FontStyle string

const (
	WeightNormal FontWeight = "normal"
	WeightBold   FontWeight = "bold"

	StyleNormal FontStyle = "normal"
	StyleItalic FontStyle = "italic"
)

// Label is a page-anchored, styled placeholder bound to a data column.
// Positions are fractions of the rendered page, origin top-left, Y downward.
// The JSON names are the persisted record format and must not change.
type Label struct {
	ID         string     `json:"id" yaml:"id"`
	PageIndex  int        `json:"pageIndex" yaml:"pageIndex"`
	Text       string     `json:"text" yaml:"text"`
	RelativeX  float64    `json:"relativeX" yaml:"relativeX"`
	RelativeY  float64    `json:"relativeY" yaml:"relativeY"`
	FontFamily string     `json:"fontFamily" yaml:"fontFamily"`
	FontSize   float64    `json:"fontSize" yaml:"fontSize"` // PDF points
	FontWeight FontWeight `json:"fontWeight" yaml:"fontWeight"`
	FontStyle  FontStyle  `json:"fontStyle" yaml:"fontStyle"`
}

// IsBold reports whether the label uses the bold weight.
func (l Label) IsBold() bool { return l.FontWeight == WeightBold }

// IsItalic reports whether the label uses the italic style.
func (l Label) IsItalic() bool { return l.FontStyle == StyleItalic }

// RenderContext describes one rendered page instance. It is only valid for
// the page it was produced for and must be discarded on navigation.
type RenderContext struct {
	PageIndex     int     `json:"pageIndex"`
	Width         float64 `json:"width"`  // device pixels
	Height        float64 `json:"height"` // device pixels
	Scale         float64 `json:"scale"`  // device pixels per PDF point
	PDFPageWidth  float64 `json:"pdfPageWidth"`
	PDFPageHeight float64 `json:"pdfPageHeight"`
}

// Row is one record of tabular data, column name to scalar value.
type Row map[string]any
