package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	middleware "github.com/markdave123-py/contexta-ingest/internal/api/middlewares"
	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/models"
	"github.com/markdave123-py/contexta-ingest/internal/services"
)

// MaxUploadBytes bounds one multipart upload.
const MaxUploadBytes = 50 << 20

// DocumentService is what the document routes need from the service layer.
type DocumentService interface {
	Accept(ctx context.Context, userID, sessionID string, file models.UploadedFile) (*models.Document, error)
	Get(ctx context.Context, userID, id string) (*models.Document, error)
	ListBySession(ctx context.Context, userID, sessionID string) ([]models.Document, error)
	Forget(ctx context.Context, filename string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// UploadDocument reads the multipart "file" part and queues it for ingestion.
// It answers 202 with the upload record; progress is reported through the record and the session.
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file")
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	upload := models.UploadedFile{
		Data:     buf.Bytes(),
		Filename: header.Filename,
		MimeType: uploadMimeType(header.Header.Get("Content-Type"), header.Filename),
	}

	doc, err := h.svc.Accept(r.Context(), userID, r.FormValue("session_id"), upload)
	switch {
	case errors.Is(err, ingestion_engine.ErrUnsupportedFormat):
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return
	case errors.Is(err, services.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("upload failed", "filename", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

// GetDocuments lists the caller's uploads in one session.
func (h *DocumentHandler) GetDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	documents, err := h.svc.ListBySession(r.Context(), userID, sessionID)
	if err != nil {
		slog.Error("list documents failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list documents")
		return
	}
	if documents == nil {
		documents = []models.Document{}
	}
	writeJSON(w, http.StatusOK, documents)
}

// GetDocument returns one of the caller's upload records, used to poll ingestion status.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "user_id not found in context")
		return
	}
	id := chi.URLParam(r, "id")

	doc, err := h.svc.Get(r.Context(), userID, id)
	switch {
	case errors.Is(err, services.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "document not found")
		return
	case err != nil:
		slog.Error("get document failed", "document", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument removes the stored chunks of one filename.
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	err := h.svc.Forget(r.Context(), filename)
	switch {
	case errors.Is(err, services.ErrInvalidUpload):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("delete chunks failed", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadMimeType trusts the part's declared type unless it is missing or generic.
func uploadMimeType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
