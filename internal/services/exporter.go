package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"github.com/felixgeelhaar/fortify/retry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/gcp"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
	"github.com/Lllllllleong/pdfmailmerge/internal/persistence"
	"github.com/Lllllllleong/pdfmailmerge/internal/workspace"
)

// ErrInvalidRequest marks an export request the caller has to fix.
var ErrInvalidRequest = errors.New("invalid export request")

// Export response statuses.
const (
	ExportCompleted           = "COMPLETED"
	ExportCompletedWithErrors = "COMPLETED_WITH_ERRORS"
)

const bundleObjectName = "bundle.zip"

type ExporterConfig struct {
	ProjectID          string
	OutputBucket       string
	SnapshotCollection string
	UploadConcurrency  int
	UploadAttempts     int
}

// Exporter runs a mail merge for a registered template and uploads the
// generated documents and their bundle.
type Exporter struct {
	storageClient *storage.Client
	adapter       *persistence.Adapter
	uploader      retry.Retry[string]
	config        ExporterConfig
}

func NewExporter(ctx context.Context) (*Exporter, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	concurrency, err := strconv.Atoi(gcp.GetEnv("UPLOAD_CONCURRENCY", "10"))
	if err != nil || concurrency < 1 {
		return nil, fmt.Errorf("UPLOAD_CONCURRENCY must be a positive integer")
	}

	config := ExporterConfig{
		ProjectID:          projectID,
		OutputBucket:       gcp.GetEnv("OUTPUT_BUCKET", ""),
		SnapshotCollection: gcp.GetEnv("SNAPSHOT_COLLECTION", "labelSnapshots"),
		UploadConcurrency:  concurrency,
		UploadAttempts:     4,
	}
	if config.OutputBucket == "" {
		return nil, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}

	f := &Exporter{
		storageClient: storageClient,
		adapter:       persistence.NewAdapter(persistence.NewFirestoreStore(firestoreClient, config.SnapshotCollection), nil),
		uploader: retry.New[string](retry.Config{
			MaxAttempts:   config.UploadAttempts,
			InitialDelay:  time.Second,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    2.0,
		}),
		config: config,
	}
	slog.Info("PDF exporter initialized.", "outputBucket", config.OutputBucket, "snapshotCollection", config.SnapshotCollection)
	return f, nil
}

// exportPlan is a validated request.
type exportPlan struct {
	templateBucket string
	templateObject string
	templateName   string
	failure        export.FailurePolicy
	collision      export.CollisionPolicy
}

func validateRequest(req *models.ExportRequest) (exportPlan, error) {
	var p exportPlan
	if req == nil {
		return p, fmt.Errorf("%w: empty body", ErrInvalidRequest)
	}
	if req.DocumentID == "" {
		return p, fmt.Errorf("%w: documentId is required", ErrInvalidRequest)
	}
	if len(req.Rows) == 0 {
		return p, fmt.Errorf("%w: at least one row is required", ErrInvalidRequest)
	}
	var err error
	if p.templateBucket, p.templateObject, err = gcp.ParseGCSUri(req.TemplateGCSUri); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if p.failure, err = export.ParseFailurePolicy(req.FailurePolicy); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if p.collision, err = export.ParseCollisionPolicy(req.CollisionPolicy); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	p.templateName = req.TemplateName
	if p.templateName == "" {
		p.templateName = path.Base(p.templateObject)
	}
	return p, nil
}

func (f *Exporter) Process(ctx context.Context, req *models.ExportRequest) (*models.ExportResponse, error) {
	plan, err := validateRequest(req)
	if err != nil {
		slog.Warn("Rejected export request.", "error", err)
		return nil, err
	}
	exportID := uuid.NewString()
	logCtx := slog.With("documentId", req.DocumentID, "exportId", exportID, "rowCount", len(req.Rows))
	logCtx.Info("Starting export.")

	data, err := gcp.ReadGCSObject(ctx, f.storageClient.Bucket(plan.templateBucket), plan.templateObject)
	if err != nil {
		logCtx.Error("Failed to download template", "error", err)
		return nil, err
	}

	ws := workspace.New(workspace.Config{
		Adapter: f.adapter,
		Engine:  export.NewEngine(export.Config{FailurePolicy: plan.failure, Logger: logCtx}),
		Logger:  logCtx,
	})
	opened, err := ws.Open(ctx, plan.templateName, data)
	if err != nil {
		logCtx.Error("Failed to open template", "error", err)
		return nil, err
	}
	if opened.Document.ID != req.DocumentID {
		logCtx.Warn("Template content does not match documentId.", "templateHash", opened.Document.ID)
		return nil, fmt.Errorf("%w: template at %s does not match documentId", ErrInvalidRequest, req.TemplateGCSUri)
	}
	if req.FileNameTemplate != "" {
		ws.SetFileNameTemplate(req.FileNameTemplate)
	}
	if req.Email != nil {
		ws.SetEmailTemplates(*req.Email)
	}
	if ws.Store().Len() == 0 {
		logCtx.Warn("No labels saved for this template. Documents will be plain copies.")
	}

	batch, err := ws.ExportAll(ctx, req.Rows)
	if err != nil {
		logCtx.Error("Export aborted", "error", err)
		return nil, err
	}
	files, manifest := export.Arrange(batch, plan.collision)

	prefix := path.Join(req.DocumentID, exportID)
	uris, err := f.uploadOutputs(ctx, logCtx, prefix, files)
	if err != nil {
		return nil, err
	}
	for i := range manifest {
		if uri, ok := uris[manifest[i].FileName]; ok && manifest[i].Status == models.RowSucceeded && !manifest[i].Overwrote {
			manifest[i].GCSUri = uri
		}
	}

	var bundle bytes.Buffer
	if err := export.WriteBundle(&bundle, files, manifest); err != nil {
		logCtx.Error("Failed to build bundle", "error", err)
		return nil, err
	}
	bundleURI, err := f.upload(ctx, path.Join(prefix, bundleObjectName), "application/zip", bundle.Bytes())
	if err != nil {
		logCtx.Error("Failed to upload bundle", "error", err)
		return nil, err
	}

	status := ExportCompleted
	if batch.Failed() > 0 {
		status = ExportCompletedWithErrors
	}
	logCtx.Info("Export complete.", "status", status, "fileCount", len(files), "failed", batch.Failed())
	return &models.ExportResponse{
		Status:       status,
		ExportID:     exportID,
		BundleGCSUri: bundleURI,
		Rows:         manifest,
	}, nil
}

// uploadOutputs uploads every file concurrently and returns their URIs by name.
func (f *Exporter) uploadOutputs(ctx context.Context, logCtx *slog.Logger, prefix string, files []export.File) (map[string]string, error) {
	logCtx.Info("Starting concurrent upload of documents.", "fileCount", len(files))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.config.UploadConcurrency)

	uris := make([]string, len(files))
	for i, file := range files {
		eg.Go(func() error {
			uri, err := f.upload(gctx, path.Join(prefix, file.Name), "application/pdf", file.Data)
			if err != nil {
				return fmt.Errorf("row %d: %w", file.Row, err)
			}
			uris[i] = uri
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("One or more documents failed to upload", "error", err)
		return nil, fmt.Errorf("failed to upload documents: %w", err)
	}

	byName := make(map[string]string, len(files))
	for i, file := range files {
		byName[file.Name] = uris[i]
	}
	logCtx.Info("All documents uploaded successfully.")
	return byName, nil
}

func (f *Exporter) upload(ctx context.Context, objectName, contentType string, content []byte) (string, error) {
	bucket := f.storageClient.Bucket(f.config.OutputBucket)
	return f.uploader.Do(ctx, func(ctx context.Context) (string, error) {
		writeCtx, cancel := context.WithTimeout(ctx, 50*time.Second)
		defer cancel()
		if err := gcp.WriteGCSObject(writeCtx, bucket, objectName, contentType, content); err != nil {
			slog.Warn("Upload failed, will retry.", "gcsObject", objectName, "error", err)
			return "", err
		}
		return fmt.Sprintf("gs://%s/%s", f.config.OutputBucket, objectName), nil
	})
}
