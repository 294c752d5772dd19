package core

import (
	"context"
	"io"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// DbClient defines the upload bookkeeping the HTTP layer and workers need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsBySession(ctx context.Context, userID, sessionID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id, status, errMsg string) error

	AddSessionMessage(ctx context.Context, msg *models.SessionMessage) error
}

// StoreSink is the vector store contract the ingestion pipeline writes to.
// chunks and meta must have the same length; index i of one describes index i of the other.
type StoreSink interface {
	WriteMany(ctx context.Context, chunks []string, meta []models.ChunkMetadata) error
	// ReplaceMany atomically swaps the chunks stored for meta's file and session for this batch.
	ReplaceMany(ctx context.Context, chunks []string, meta []models.ChunkMetadata) error
	DeleteByFilename(ctx context.Context, filename string) error
	QueryRelevant(ctx context.Context, query string, topK int) ([]string, error)
}

// Archiver stores the original upload durably and returns a shareable link.
type Archiver interface {
	UploadAndShare(ctx context.Context, file models.UploadedFile) (string, error)
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so you can replace AWS with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data io.Reader, contentType string) (url string, err error)
	PresignGet(ctx context.Context, bucket, key string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
