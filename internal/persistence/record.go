package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// RecordVersion is the current page record schema version.
const RecordVersion = 1

var ErrSchemaMismatch = errors.New("page record does not match schema")

// PageRecord is the stored form of one page's labels:
//
//	{"version":1,"labels":[{"id":"...", ...}, ...]}
//
// A bare JSON array of labels is the legacy form and is still accepted on read.
type PageRecord struct {
	Version int            `json:"version"`
	Labels  []models.Label `json:"labels"`
}

// EncodePageRecord serializes labels in the current schema.
func EncodePageRecord(labels []models.Label) (string, error) {
	if labels == nil {
		labels = []models.Label{}
	}
	b, err := json.Marshal(PageRecord{Version: RecordVersion, Labels: labels})
	if err != nil {
		return "", fmt.Errorf("failed to marshal page record: %w", err)
	}
	return string(b), nil
}

// DecodePageRecord parses and validates a stored page record. Every label
// must carry a non-empty id.
func DecodePageRecord(raw string) ([]models.Label, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty record", ErrSchemaMismatch)
	}

	var labels []models.Label
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &labels); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
	case '{':
		var rec struct {
			Version int             `json:"version"`
			Labels  json.RawMessage `json:"labels"`
		}
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
		if rec.Version != RecordVersion {
			return nil, fmt.Errorf("%w: unsupported version %d", ErrSchemaMismatch, rec.Version)
		}
		if len(rec.Labels) == 0 || rec.Labels[0] != '[' {
			return nil, fmt.Errorf("%w: labels is not a list", ErrSchemaMismatch)
		}
		if err := json.Unmarshal(rec.Labels, &labels); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
		}
	default:
		return nil, fmt.Errorf("%w: not a list", ErrSchemaMismatch)
	}

	for i, l := range labels {
		if l.ID == "" {
			return nil, fmt.Errorf("%w: label %d has no id", ErrSchemaMismatch, i)
		}
	}
	return labels, nil
}
