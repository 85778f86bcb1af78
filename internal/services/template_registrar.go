package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/gcp"
	"github.com/Lllllllleong/pdfmailmerge/internal/identity"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

type TemplateRegistrarConfig struct {
	ProjectID      string
	CollectionName string
}

// TemplateRegistrar records uploaded template PDFs in Firestore, keyed by
// content hash.
type TemplateRegistrar struct {
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	config          TemplateRegistrarConfig
}

// GCSEvent is the payload of a storage object finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

func NewTemplateRegistrar(ctx context.Context) (*TemplateRegistrar, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}

	config := TemplateRegistrarConfig{
		ProjectID:      projectID,
		CollectionName: gcp.GetEnv("FIRESTORE_COLLECTION", "templates"),
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := &TemplateRegistrar{
		firestoreClient: firestoreClient,
		storageClient:   storageClient,
		config:          config,
	}
	slog.Info("Template registrar initialized.", "collection", config.CollectionName)
	return f, nil
}

func (f *TemplateRegistrar) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".pdf") {
		logCtx.Info("Object is not a PDF. Skipping.")
		return nil
	}
	logCtx.Info("Processing new template.")

	data, err := gcp.ReadGCSObject(ctx, f.storageClient.Bucket(e.Bucket), e.Name)
	if err != nil {
		logCtx.Error("Failed to download template", "error", err)
		return err
	}

	fileHash, err := identity.HashBytes(data)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("documentId", fileHash)

	docRef := f.firestoreClient.Collection(f.config.CollectionName).Doc(fileHash)
	_, err = docRef.Create(ctx, models.TemplateDocument{
		FileHash:         fileHash,
		OriginalFilename: e.Name,
		Status:           models.StatusValidating,
		CreatedAt:        time.Now(),
	})
	if gcp.IsAlreadyExists(err) {
		logCtx.Info("Template already registered. Skipping.")
		return nil
	}
	if err != nil {
		logCtx.Error("Failed to create template document", "error", err)
		return fmt.Errorf("failed to create template document: %w", err)
	}
	logCtx.Info("Created template document in Firestore.")

	pages, err := inspectTemplate(ctx, data)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to validate template", err)
	}

	updates := []firestore.Update{
		{Path: "status", Value: models.StatusReady},
		{Path: "pageCount", Value: len(pages)},
		{Path: "pageSizes", Value: pages},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to update status to READY", err)
	}
	logCtx.Info("Template registered.", "pageCount", len(pages))
	return nil
}

// inspectTemplate validates a template and returns its page sizes.
func inspectTemplate(ctx context.Context, data []byte) ([]models.PageSize, error) {
	if err := api.Validate(bytes.NewReader(data), export.NewConfiguration()); err != nil {
		return nil, fmt.Errorf("%w: %v", export.ErrTemplateLoad, err)
	}
	return export.PageDims(ctx, data)
}

func (f *TemplateRegistrar) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := updateStatus(ctx, docRef, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s", fullError)
}

func updateStatus(ctx context.Context, docRef *firestore.DocumentRef, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	_, err := docRef.Update(ctx, updates)
	return err
}
