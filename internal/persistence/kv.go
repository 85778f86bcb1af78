// Package persistence snapshots label sets and templates keyed by document
// identity onto an injected key/value store.
package persistence

import (
	"context"
	"errors"
	"fmt"
)

// KV is the storage capability the adapter writes through. Get reports a
// missing key with found == false and a nil error.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Key prefixes. Together with the document id and page index they form the
// durable key format and must stay readable by older snapshots.
const (
	LabelsPrefix   = "pdfTemplateLabels"
	FileNamePrefix = "pdfTemplate_fileName"
	EmailPrefix    = "pdfTemplate_email"
)

// MaxPages is the number of page records probed on load.
const MaxPages = 50

var (
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrNoDocument    = errors.New("document id is required")
)

// LabelsKey is the record key of one page's labels.
func LabelsKey(documentID string, pageIndex int) string {
	return fmt.Sprintf("%s_%s_%d", LabelsPrefix, documentID, pageIndex)
}

// FileNameKey is the record key of the file name template.
func FileNameKey(documentID string) string {
	return FileNamePrefix + "_" + documentID
}

// EmailKey is the record key of the email templates.
func EmailKey(documentID string) string {
	return EmailPrefix + "_" + documentID
}
