package objectclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var _ core.Archiver = (*Archiver)(nil)

// ErrEmptyUpload is returned when there are no bytes to archive.
var ErrEmptyUpload = errors.New("empty upload")

// Archiver keeps a copy of each original upload under {prefix}/{uuid}/{filename}
// and shares it through a presigned link.
type Archiver struct {
	objects core.ObjectClient
	bucket  string
	prefix  string
	logger  *slog.Logger
	newID   func() string
}

func NewArchiver(objects core.ObjectClient, bucket, prefix string, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		objects: objects,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		logger:  logger.With("component", "archiver"),
		newID:   uuid.NewString,
	}
}

// UploadAndShare stores the file and returns a presigned download link.
func (a *Archiver) UploadAndShare(ctx context.Context, file models.UploadedFile) (string, error) {
	if len(file.Data) == 0 {
		return "", ErrEmptyUpload
	}

	key := path.Join(a.prefix, a.newID(), objectName(file.Filename))
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if _, err := a.objects.UploadFile(ctx, a.bucket, key, bytes.NewReader(file.Data), contentType); err != nil {
		return "", fmt.Errorf("archive %q: %w", file.Filename, err)
	}
	link, err := a.objects.PresignGet(ctx, a.bucket, key)
	if err != nil {
		// an unshareable copy is never referenced again
		if delErr := a.objects.DeleteFile(ctx, a.bucket, key); delErr != nil {
			a.logger.Warn("could not remove unshared original", "key", key, "error", delErr)
		}
		return "", fmt.Errorf("share %q: %w", file.Filename, err)
	}

	a.logger.Debug("original archived", "key", key, "bytes", len(file.Data))
	return link, nil
}

// Fetch downloads an archived original so it can be ingested again.
// key is the object key inside the bucket, as found in the shared link.
func (a *Archiver) Fetch(ctx context.Context, key string) (models.UploadedFile, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return models.UploadedFile{}, fmt.Errorf("%w: object key is required", ErrEmptyUpload)
	}

	data, err := a.objects.GetFile(ctx, a.bucket, key)
	if err != nil {
		return models.UploadedFile{}, fmt.Errorf("fetch %q: %w", key, err)
	}
	if len(data) == 0 {
		return models.UploadedFile{}, fmt.Errorf("fetch %q: %w", key, ErrEmptyUpload)
	}
	return models.UploadedFile{Data: data, Filename: objectName(key)}, nil
}

// objectName keeps only the last path element of a client-supplied filename.
func objectName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "upload"
	}
	return name
}
