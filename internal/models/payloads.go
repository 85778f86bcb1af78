package models

// These structs define the JSON payloads of the pdf-exporter HTTP function.

// ExportRequest is the input for the pdf-exporter function.
type ExportRequest struct {
	DocumentID       string          `json:"documentId"`
	TemplateGCSUri   string          `json:"templateGcsUri"`
	TemplateName     string          `json:"templateName,omitempty"`
	Rows             []Row           `json:"rows"`
	FileNameTemplate string          `json:"fileNameTemplate,omitempty"`
	Email            *EmailTemplates `json:"email,omitempty"`
	FailurePolicy    string          `json:"failurePolicy,omitempty"`   // "isolate" | "failfast"
	CollisionPolicy  string          `json:"collisionPolicy,omitempty"` // "overwrite" | "suffix"
}

// EmailTemplates holds the per-row email templates.
type EmailTemplates struct {
	To      string `json:"to" yaml:"to"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
}

// ExportResponse is the output of the pdf-exporter function.
type ExportResponse struct {
	Status       string          `json:"status"`
	ExportID     string          `json:"exportId"`
	BundleGCSUri string          `json:"bundleGcsUri"`
	Rows         []ManifestEntry `json:"rows"`
}

// ManifestEntry records the outcome of one exported row.
type ManifestEntry struct {
	Row       int         `json:"row"` // 1-based
	FileName  string      `json:"fileName"`
	Status    string      `json:"status"`
	Error     string      `json:"error,omitempty"`
	GCSUri    string      `json:"gcsUri,omitempty"`
	Email     *EmailDraft `json:"email,omitempty"`
	Overwrote bool        `json:"overwrote,omitempty"`
}

// EmailDraft is a resolved email for one row.
type EmailDraft struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
	Mailto  string   `json:"mailto"`
}

// Manifest entry statuses.
const (
	RowSucceeded = "success"
	RowFailed    = "failed"
)
