// Package labels holds the authoritative collection of placed labels.
package labels

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Lllllllleong/pdfmailmerge/internal/geometry"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// Defaults applied to new labels.
const (
	DefaultText       = "Drop Column Here"
	DefaultFontFamily = "Helvetica"
	DefaultFontSize   = 12.0
)

var ErrPageOutOfRange = errors.New("page index out of range")

// Position is a normalized page position.
type Position struct {
	X float64
	Y float64
}

// Patch is a partial label update. Nil fields are left unchanged.
// X and Y are device pixels on the current render surface; RelativeX and
// RelativeY are normalized positions.
type Patch struct {
	Text       *string
	X          *float64
	Y          *float64
	RelativeX  *float64
	RelativeY  *float64
	FontFamily *string
	FontSize   *float64
	FontWeight *models.FontWeight
	FontStyle  *models.FontStyle
}

// Store keeps labels in insertion order across all pages.
type Store struct {
	mu        sync.RWMutex
	pageCount int
	order     []string
	byID      map[string]*models.Label
	selected  string
}

// NewStore creates an empty store for a document with pageCount pages.
// A pageCount of 0 leaves the page range unchecked.
func NewStore(pageCount int) *Store {
	return &Store{
		pageCount: pageCount,
		byID:      make(map[string]*models.Label),
	}
}

// PageCount returns the page bound of the store.
func (s *Store) PageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pageCount
}

// Add places a new label with the default style and selects it.
func (s *Store) Add(pageIndex int, initial Position) (models.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkPage(pageIndex); err != nil {
		return models.Label{}, err
	}

	l := &models.Label{
		ID:         uuid.NewString(),
		PageIndex:  pageIndex,
		Text:       DefaultText,
		RelativeX:  geometry.Clamp01(initial.X),
		RelativeY:  geometry.Clamp01(initial.Y),
		FontFamily: DefaultFontFamily,
		FontSize:   DefaultFontSize,
		FontWeight: models.WeightNormal,
		FontStyle:  models.StyleNormal,
	}
	s.byID[l.ID] = l
	s.order = append(s.order, l.ID)
	s.selected = l.ID
	return *l, nil
}

// Update applies p to the label with the given id. Pixel coordinates are
// converted with rc; without a render context for the label's page the
// pixel part of the patch is dropped. Unknown ids are ignored.
func (s *Store) Update(id string, p Patch, rc *models.RenderContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.byID[id]
	if !ok {
		return
	}

	if p.Text != nil {
		l.Text = *p.Text
	}
	if p.FontFamily != nil && *p.FontFamily != "" {
		l.FontFamily = *p.FontFamily
	}
	if p.FontSize != nil && *p.FontSize > 0 {
		l.FontSize = *p.FontSize
	}
	if p.FontWeight != nil {
		l.FontWeight = *p.FontWeight
	}
	if p.FontStyle != nil {
		l.FontStyle = *p.FontStyle
	}
	if p.RelativeX != nil {
		l.RelativeX = geometry.Clamp01(*p.RelativeX)
	}
	if p.RelativeY != nil {
		l.RelativeY = geometry.Clamp01(*p.RelativeY)
	}

	if (p.X != nil || p.Y != nil) && rc != nil && rc.PageIndex == l.PageIndex {
		px, py := geometry.ToDevicePixels(l.RelativeX, l.RelativeY, *rc)
		if p.X != nil {
			px = *p.X
		}
		if p.Y != nil {
			py = *p.Y
		}
		l.RelativeX, l.RelativeY = geometry.ToNormalized(px, py, *rc)
	}
}

// Remove deletes the label. Unknown ids are ignored.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.selected == id {
		s.selected = ""
	}
}

// Get returns a copy of the label.
func (s *Store) Get(id string) (models.Label, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.byID[id]
	if !ok {
		return models.Label{}, false
	}
	return *l, true
}

// ListForPage returns the page's labels in insertion order.
func (s *Store) ListForPage(pageIndex int) []models.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Label
	for _, id := range s.order {
		if l := s.byID[id]; l.PageIndex == pageIndex {
			out = append(out, *l)
		}
	}
	return out
}

// All returns every label in insertion order.
func (s *Store) All() []models.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Label, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.byID[id])
	}
	return out
}

// Len returns the number of labels.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Replace swaps the whole collection, as after loading a snapshot.
// Positions are clamped and duplicate ids keep their first occurrence.
// Labels outside the page range are dropped and counted in the returned value.
func (s *Store) Replace(labels []models.Label) (dropped int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.byID = make(map[string]*models.Label, len(labels))
	s.selected = ""

	for _, l := range labels {
		if l.ID == "" || s.checkPage(l.PageIndex) != nil {
			dropped++
			continue
		}
		if _, dup := s.byID[l.ID]; dup {
			dropped++
			continue
		}
		l := l
		l.RelativeX = geometry.Clamp01(l.RelativeX)
		l.RelativeY = geometry.Clamp01(l.RelativeY)
		s.byID[l.ID] = &l
		s.order = append(s.order, l.ID)
	}
	return dropped
}

// Reset empties the store and rebinds it to a new page count.
func (s *Store) Reset(pageCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageCount = pageCount
	s.order = nil
	s.byID = make(map[string]*models.Label)
	s.selected = ""
}

// SelectExclusiveOrToggle selects id, or clears the selection when id is
// already selected. Switching between two labels never passes through an
// empty selection.
func (s *Store) SelectExclusiveOrToggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return
	}
	if s.selected == id {
		s.selected = ""
		return
	}
	s.selected = id
}

// Select makes id the only selected label.
func (s *Store) Select(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; ok {
		s.selected = id
	}
}

// Deselect clears the selection.
func (s *Store) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = ""
}

// Selected returns the selected label id.
func (s *Store) Selected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, s.selected != ""
}

func (s *Store) checkPage(pageIndex int) error {
	if pageIndex < 0 || (s.pageCount > 0 && pageIndex >= s.pageCount) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrPageOutOfRange, pageIndex, s.pageCount)
	}
	return nil
}
