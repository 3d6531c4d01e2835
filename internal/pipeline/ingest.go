package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docpulse/docpulse/internal/config"
	"github.com/docpulse/docpulse/internal/extract"
	"github.com/docpulse/docpulse/internal/model"
	"github.com/docpulse/docpulse/internal/store"
)

// ErrUnsupportedFileType is returned for uploads outside the accepted set.
var ErrUnsupportedFileType = eris.New("pipeline: unsupported file type")

// ErrFileTooLarge is returned when an upload exceeds the configured limit.
var ErrFileTooLarge = eris.New("pipeline: file too large")

// supportedFileTypes is the accepted upload extension set.
var supportedFileTypes = map[string]bool{
	"pdf":  true,
	"txt":  true,
	"csv":  true,
	"doc":  true,
	"docx": true,
}

// Ingestor validates uploads, persists them to disk and runs content
// classification. Plain-text types classify synchronously; binary types are
// dispatched in the background so upload requests return immediately.
type Ingestor struct {
	store store.Store
	cfg   config.IngestConfig
}

// NewIngestor creates an Ingestor.
func NewIngestor(st store.Store, cfg config.IngestConfig) *Ingestor {
	return &Ingestor{store: st, cfg: cfg}
}

// Ingest stores an uploaded file under a batch and kicks off extraction.
// The returned document reflects the extraction state at return time:
// already extracted for txt/csv, pending for binary formats.
func (in *Ingestor) Ingest(ctx context.Context, batchID, filename string, data []byte) (*model.Document, error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if !supportedFileTypes[ext] {
		return nil, eris.Wrapf(ErrUnsupportedFileType, "%q", filename)
	}
	if in.cfg.MaxUploadBytes > 0 && int64(len(data)) > in.cfg.MaxUploadBytes {
		return nil, eris.Wrapf(ErrFileTooLarge, "%q is %d bytes, limit %d", filename, len(data), in.cfg.MaxUploadBytes)
	}

	if _, err := in.store.GetBatch(ctx, batchID); err != nil {
		return nil, eris.Wrapf(err, "ingest into batch %s", batchID)
	}

	id := uuid.New().String()
	path := filepath.Join(in.cfg.UploadDir, id+"-"+filepath.Base(filename))
	if err := os.MkdirAll(in.cfg.UploadDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "ingest: create upload dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, eris.Wrapf(err, "ingest: write %s", path)
	}

	doc := &model.Document{
		ID:         id,
		BatchID:    batchID,
		Filename:   filename,
		FileType:   ext,
		FilePath:   path,
		Extraction: model.ExtractionStatusPending,
	}
	if err := in.store.CreateDocument(ctx, doc); err != nil {
		return nil, eris.Wrapf(err, "ingest: create document %s", filename)
	}

	switch ext {
	case "txt", "csv":
		res := extract.Classify(data, ext, filename, id)
		if err := in.store.SetDocumentExtraction(ctx, id, model.ExtractionStatusExtracted, res.Kind, res.Text); err != nil {
			return nil, eris.Wrapf(err, "ingest: store extraction for %s", id)
		}
		doc.Extraction = model.ExtractionStatusExtracted
		doc.Kind = res.Kind
		doc.ExtractedText = res.Text
	default:
		// The background extraction must survive the upload request's
		// cancellation, hence WithoutCancel.
		go in.extractAsync(context.WithoutCancel(ctx), id, filename, ext, data)
	}

	return doc, nil
}

func (in *Ingestor) extractAsync(ctx context.Context, id, filename, ext string, data []byte) {
	if err := in.store.SetDocumentExtraction(ctx, id, model.ExtractionStatusExtracting, "", ""); err != nil {
		zap.L().Warn("extract: mark extracting failed", zap.String("document_id", id), zap.Error(err))
	}

	res := extract.Classify(data, ext, filename, id)
	if err := in.store.SetDocumentExtraction(ctx, id, model.ExtractionStatusExtracted, res.Kind, res.Text); err != nil {
		zap.L().Error("extract: store result failed", zap.String("document_id", id), zap.Error(err))
		if err := in.store.SetDocumentExtraction(ctx, id, model.ExtractionStatusFailed, "", ""); err != nil {
			zap.L().Error("extract: mark failed failed", zap.String("document_id", id), zap.Error(err))
		}
	}
}
