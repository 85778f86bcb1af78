package models

import "time"

// TemplateDocument is the registry record for an uploaded template PDF in Firestore.
// It is keyed by FileHash, so a renamed copy of the same file maps to the same record.
type TemplateDocument struct {
	FileHash         string     `firestore:"fileHash,omitempty"`
	OriginalFilename string     `firestore:"originalFilename,omitempty"`
	Status           string     `firestore:"status,omitempty"`
	ErrorDetails     string     `firestore:"errorDetails,omitempty"`
	PageCount        int        `firestore:"pageCount,omitempty"`
	PageSizes        []PageSize `firestore:"pageSizes,omitempty"`
	CreatedAt        time.Time  `firestore:"createdAt,omitempty"`
}

// PageSize is a page's true size in PDF points.
type PageSize struct {
	Width  float64 `firestore:"width" json:"width"`
	Height float64 `firestore:"height" json:"height"`
}

// Template registry statuses.
const (
	StatusValidating = "VALIDATING"
	StatusReady      = "READY"
	StatusFailed     = "FAILED"
)
