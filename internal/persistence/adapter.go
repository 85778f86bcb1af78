package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// Snapshot is what was saved for one document.
type Snapshot struct {
	Labels           []models.Label
	FileNameTemplate string // empty when none was saved
	Purged           []int  // pages whose records failed validation and were removed
}

// PageError is a failed write of a single page record.
type PageError struct {
	PageIndex int
	Err       error
}

func (e PageError) Error() string {
	return fmt.Sprintf("could not save labels for page %d: %v", e.PageIndex+1, e.Err)
}

func (e PageError) Unwrap() error { return e.Err }

// SaveError collects every unit that failed during SaveSnapshot. Units that
// are not listed were written successfully.
type SaveError struct {
	Pages    []PageError
	FileName error
}

func (e *SaveError) Error() string {
	msgs := make([]string, 0, len(e.Pages)+1)
	if e.FileName != nil {
		msgs = append(msgs, fmt.Sprintf("could not save file name template: %v", e.FileName))
	}
	for _, p := range e.Pages {
		msgs = append(msgs, p.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e *SaveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Pages)+1)
	if e.FileName != nil {
		errs = append(errs, e.FileName)
	}
	for _, p := range e.Pages {
		errs = append(errs, p)
	}
	return errs
}

// FailedPages lists the page indices that were not saved.
func (e *SaveError) FailedPages() []int {
	out := make([]int, 0, len(e.Pages))
	for _, p := range e.Pages {
		out = append(out, p.PageIndex)
	}
	return out
}

// Adapter groups, keys and validates label snapshots on top of a KV.
type Adapter struct {
	kv     KV
	logger *slog.Logger

	mu    sync.Mutex
	known map[string]map[int]bool // pages per document that may hold a record
}

// NewAdapter creates an adapter writing through kv.
func NewAdapter(kv KV, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{kv: kv, logger: logger, known: make(map[string]map[int]bool)}
}

// stalePages returns the pages without labels whose records must be removed.
// Without a prior load or save of the document every page is a candidate.
func (a *Adapter) stalePages(documentID string, byPage map[int][]models.Label) []int {
	a.mu.Lock()
	known, ok := a.known[documentID]
	a.mu.Unlock()

	var stale []int
	if !ok {
		for page := 0; page < MaxPages; page++ {
			if _, used := byPage[page]; !used {
				stale = append(stale, page)
			}
		}
		return stale
	}
	for page := range known {
		if _, used := byPage[page]; !used {
			stale = append(stale, page)
		}
	}
	sort.Ints(stale)
	return stale
}

func (a *Adapter) setKnown(documentID string, pages map[int]bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.known[documentID] = pages
}

// SaveSnapshot writes one record per page holding labels, replacing any
// earlier record for that page, removes stale records of pages that no
// longer hold labels, and stores the file name template. Only pages this
// adapter has seen holding a record are pruned once the document has been
// loaded or saved through it. Writes are not
// transactional: a failed page is reported in a *SaveError and the remaining
// pages are still written.
func (a *Adapter) SaveSnapshot(ctx context.Context, documentID string, labels []models.Label, fileNameTemplate string) error {
	if documentID == "" {
		return ErrNoDocument
	}
	logCtx := a.logger.With("documentId", documentID)

	byPage := make(map[int][]models.Label)
	for _, l := range labels {
		byPage[l.PageIndex] = append(byPage[l.PageIndex], l)
	}
	pages := make([]int, 0, len(byPage))
	for p := range byPage {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	stale := a.stalePages(documentID, byPage)
	written := make(map[int]bool, len(pages))

	saveErr := &SaveError{}
	for _, page := range pages {
		if page < 0 || page >= MaxPages {
			saveErr.Pages = append(saveErr.Pages, PageError{PageIndex: page, Err: fmt.Errorf("page index outside the %d persisted pages", MaxPages)})
			continue
		}
		written[page] = true
		data, err := EncodePageRecord(byPage[page])
		if err == nil {
			err = a.kv.Set(ctx, LabelsKey(documentID, page), data)
		}
		if err != nil {
			logCtx.Error("Failed to save page labels.", "pageIndex", page, "error", err)
			saveErr.Pages = append(saveErr.Pages, PageError{PageIndex: page, Err: err})
		}
	}

	for _, page := range stale {
		if err := a.kv.Remove(ctx, LabelsKey(documentID, page)); err != nil {
			logCtx.Error("Failed to remove stale page labels.", "pageIndex", page, "error", err)
			saveErr.Pages = append(saveErr.Pages, PageError{PageIndex: page, Err: err})
			written[page] = true
		}
	}
	a.setKnown(documentID, written)

	if err := a.kv.Set(ctx, FileNameKey(documentID), fileNameTemplate); err != nil {
		logCtx.Error("Failed to save file name template.", "error", err)
		saveErr.FileName = err
	}

	if len(saveErr.Pages) > 0 || saveErr.FileName != nil {
		return saveErr
	}
	logCtx.Debug("Saved label snapshot.", "labelCount", len(labels), "pageCount", len(pages))
	return nil
}

// LoadSnapshot reads page records 0..MaxPages-1 in ascending order. Records
// failing validation are removed and skipped. The page index of every loaded
// label is taken from its record key.
func (a *Adapter) LoadSnapshot(ctx context.Context, documentID string) (Snapshot, error) {
	if documentID == "" {
		return Snapshot{}, ErrNoDocument
	}
	logCtx := a.logger.With("documentId", documentID)

	var snap Snapshot
	present := make(map[int]bool)
	tpl, found, err := a.kv.Get(ctx, FileNameKey(documentID))
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load file name template: %w", err)
	}
	if found {
		snap.FileNameTemplate = tpl
	}

	for page := 0; page < MaxPages; page++ {
		key := LabelsKey(documentID, page)
		raw, found, err := a.kv.Get(ctx, key)
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to load labels for page %d: %w", page+1, err)
		}
		if !found {
			continue
		}
		pageLabels, err := DecodePageRecord(raw)
		if err != nil {
			logCtx.Warn("Invalid page record found. Removing it.", "key", key, "error", err)
			if rmErr := a.kv.Remove(ctx, key); rmErr != nil {
				logCtx.Error("Failed to remove invalid page record.", "key", key, "error", rmErr)
				present[page] = true
			}
			snap.Purged = append(snap.Purged, page)
			continue
		}
		present[page] = true
		for i := range pageLabels {
			pageLabels[i].PageIndex = page
		}
		snap.Labels = append(snap.Labels, pageLabels...)
	}
	a.setKnown(documentID, present)

	logCtx.Debug("Loaded label snapshot.", "labelCount", len(snap.Labels))
	return snap, nil
}

// SaveEmailTemplates stores the email templates of a document.
func (a *Adapter) SaveEmailTemplates(ctx context.Context, documentID string, t models.EmailTemplates) error {
	if documentID == "" {
		return ErrNoDocument
	}
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal email templates: %w", err)
	}
	if err := a.kv.Set(ctx, EmailKey(documentID), string(b)); err != nil {
		return fmt.Errorf("failed to save email templates: %w", err)
	}
	return nil
}

// LoadEmailTemplates reads the email templates of a document. A malformed
// record is removed and reported as absent.
func (a *Adapter) LoadEmailTemplates(ctx context.Context, documentID string) (models.EmailTemplates, bool, error) {
	if documentID == "" {
		return models.EmailTemplates{}, false, ErrNoDocument
	}
	key := EmailKey(documentID)
	raw, found, err := a.kv.Get(ctx, key)
	if err != nil {
		return models.EmailTemplates{}, false, fmt.Errorf("failed to load email templates: %w", err)
	}
	if !found {
		return models.EmailTemplates{}, false, nil
	}
	var t models.EmailTemplates
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		a.logger.Warn("Invalid email template record found. Removing it.", "key", key, "error", err)
		if rmErr := a.kv.Remove(ctx, key); rmErr != nil {
			a.logger.Error("Failed to remove invalid email template record.", "key", key, "error", rmErr)
		}
		return models.EmailTemplates{}, false, nil
	}
	return t, true, nil
}
