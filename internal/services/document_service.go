package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var (
	// ErrInvalidUpload is returned for uploads missing a name, a session or content.
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrInvalidQuery is returned for an empty search query.
	ErrInvalidQuery = errors.New("query text is required")

	// ErrDocumentNotFound is returned for unknown uploads and uploads of another user.
	ErrDocumentNotFound = errors.New("document not found")
)

// Enqueuer accepts ingestion jobs for background processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, job ingestion_engine.Job) error
}

// DocumentService accepts uploads and exposes the stored chunks.
type DocumentService struct {
	db     core.DbClient
	store  core.StoreSink
	queue  Enqueuer
	logger *slog.Logger
}

func NewDocumentService(db core.DbClient, store core.StoreSink, queue Enqueuer, logger *slog.Logger) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentService{db: db, store: store, queue: queue, logger: logger.With("component", "document-service")}
}

// Accept records the upload as processing and queues it for ingestion.
// Unsupported mimetypes are refused before anything is recorded.
func (s *DocumentService) Accept(ctx context.Context, userID, sessionID string, file models.UploadedFile) (*models.Document, error) {
	file.Filename = cleanFilename(file.Filename)
	if file.Filename == "" || sessionID == "" || len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: filename, session_id and content are required", ErrInvalidUpload)
	}
	if ingestion_engine.DetectFormat(file.MimeType) == ingestion_engine.FormatUnknown {
		return nil, fmt.Errorf("%w: %q", ingestion_engine.ErrUnsupportedFormat, file.MimeType)
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:          uuid.NewString(),
		UserID:      userID,
		SessionID:   sessionID,
		FileName:    file.Filename,
		ContentType: file.MimeType,
		Size:        int64(len(file.Data)),
		Status:      models.StatusProcessing,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}

	job := ingestion_engine.Job{DocumentID: doc.ID, SessionID: sessionID, File: file}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		if uerr := s.db.UpdateDocumentStatus(context.WithoutCancel(ctx), doc.ID, models.StatusError, err.Error()); uerr != nil {
			s.logger.Error("failed to mark unqueued document", "document", doc.ID, "error", uerr)
		}
		return nil, fmt.Errorf("queue document: %w", err)
	}

	s.logger.Info("upload accepted", "document", doc.ID, "filename", doc.FileName, "session", sessionID, "bytes", doc.Size)
	return doc, nil
}

// Get returns one upload record owned by userID.
func (s *DocumentService) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrDocumentNotFound
	}
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.UserID != userID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *DocumentService) ListBySession(ctx context.Context, userID, sessionID string) ([]models.Document, error) {
	return s.db.ListDocumentsBySession(ctx, userID, sessionID)
}

// Forget removes every stored chunk of filename.
func (s *DocumentService) Forget(ctx context.Context, filename string) error {
	filename = cleanFilename(filename)
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidUpload)
	}
	return s.store.DeleteByFilename(ctx, filename)
}

// Search returns the chunks most relevant to query.
func (s *DocumentService) Search(ctx context.Context, query string, topK int) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	if topK <= 0 || topK > 50 {
		topK = 5
	}
	return s.store.QueryRelevant(ctx, query, topK)
}

// cleanFilename drops any client-side directory from the name.
func cleanFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
