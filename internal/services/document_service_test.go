package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core/ingestion_engine"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type fakeDB struct {
	created []*models.Document
	updates map[string]string
	getErr  error
}

func (d *fakeDB) CreateDocument(_ context.Context, doc *models.Document) error {
	d.created = append(d.created, doc)
	return nil
}

func (d *fakeDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	if d.getErr != nil {
		return nil, d.getErr
	}
	for _, doc := range d.created {
		if doc.ID == id {
			return doc, nil
		}
	}
	return nil, nil
}

func (d *fakeDB) ListDocumentsBySession(context.Context, string, string) ([]models.Document, error) {
	return nil, nil
}

func (d *fakeDB) UpdateDocumentStatus(_ context.Context, id, status, _ string) error {
	if d.updates == nil {
		d.updates = map[string]string{}
	}
	d.updates[id] = status
	return nil
}

func (d *fakeDB) AddSessionMessage(context.Context, *models.SessionMessage) error { return nil }

type fakeStore struct {
	deleted []string
	query   string
	topK    int
}

func (s *fakeStore) WriteMany(context.Context, []string, []models.ChunkMetadata) error { return nil }

func (s *fakeStore) ReplaceMany(context.Context, []string, []models.ChunkMetadata) error { return nil }

func (s *fakeStore) DeleteByFilename(_ context.Context, filename string) error {
	s.deleted = append(s.deleted, filename)
	return nil
}

func (s *fakeStore) QueryRelevant(_ context.Context, query string, topK int) ([]string, error) {
	s.query, s.topK = query, topK
	return []string{"chunk"}, nil
}

type fakeQueue struct {
	jobs []ingestion_engine.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job ingestion_engine.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func TestAccept_QueuesSupportedUpload(t *testing.T) {
	db, queue := &fakeDB{}, &fakeQueue{}
	svc := NewDocumentService(db, &fakeStore{}, queue, nil)

	file := models.UploadedFile{Data: []byte("%PDF"), Filename: "C:\\docs\\report.pdf", MimeType: "application/pdf"}
	doc, err := svc.Accept(context.Background(), "u1", "s1", file)
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", doc.FileName)
	assert.Equal(t, models.StatusProcessing, doc.Status)
	assert.Equal(t, int64(4), doc.Size)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, doc.ID, queue.jobs[0].DocumentID)
	assert.Equal(t, "report.pdf", queue.jobs[0].File.Filename)
	assert.Equal(t, "s1", queue.jobs[0].SessionID)
}

func TestAccept_RejectsUnsupported(t *testing.T) {
	db, queue := &fakeDB{}, &fakeQueue{}
	svc := NewDocumentService(db, &fakeStore{}, queue, nil)

	_, err := svc.Accept(context.Background(), "u1", "s1", models.UploadedFile{Data: []byte("x"), Filename: "a.png", MimeType: "image/png"})
	assert.ErrorIs(t, err, ingestion_engine.ErrUnsupportedFormat)
	assert.Empty(t, db.created)
	assert.Empty(t, queue.jobs)
}

func TestAccept_RejectsIncompleteUpload(t *testing.T) {
	svc := NewDocumentService(&fakeDB{}, &fakeStore{}, &fakeQueue{}, nil)

	_, err := svc.Accept(context.Background(), "u1", "", models.UploadedFile{Data: []byte("x"), Filename: "a.txt", MimeType: "text/plain"})
	assert.ErrorIs(t, err, ErrInvalidUpload)

	_, err = svc.Accept(context.Background(), "u1", "s1", models.UploadedFile{Filename: "a.txt", MimeType: "text/plain"})
	assert.ErrorIs(t, err, ErrInvalidUpload)
}

func TestAccept_QueueFailureMarksRecord(t *testing.T) {
	db := &fakeDB{}
	svc := NewDocumentService(db, &fakeStore{}, &fakeQueue{err: errors.New("closed")}, nil)

	_, err := svc.Accept(context.Background(), "u1", "s1", models.UploadedFile{Data: []byte("x"), Filename: "a.txt", MimeType: "text/plain"})
	require.Error(t, err)
	require.Len(t, db.created, 1)
	assert.Equal(t, models.StatusError, db.updates[db.created[0].ID])
}

func TestSearchAndForget(t *testing.T) {
	store := &fakeStore{}
	svc := NewDocumentService(&fakeDB{}, store, &fakeQueue{}, nil)

	_, err := svc.Search(context.Background(), "  ", 3)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	chunks, err := svc.Search(context.Background(), " refund policy ", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk"}, chunks)
	assert.Equal(t, "refund policy", store.query)
	assert.Equal(t, 5, store.topK)

	require.NoError(t, svc.Forget(context.Background(), "dir/a.txt"))
	assert.Equal(t, []string{"a.txt"}, store.deleted)
	assert.ErrorIs(t, svc.Forget(context.Background(), ""), ErrInvalidUpload)
}

func TestGet_OnlyReturnsOwnUploads(t *testing.T) {
	db := &fakeDB{}
	svc := NewDocumentService(db, &fakeStore{}, &fakeQueue{}, nil)

	doc, err := svc.Accept(context.Background(), "u1", "s1", models.UploadedFile{Data: []byte("x"), Filename: "a.txt", MimeType: "text/plain"})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", got.FileName)

	_, err = svc.Get(context.Background(), "u2", doc.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = svc.Get(context.Background(), "u1", "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	_, err = svc.Get(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestGet_PropagatesLookupFailure(t *testing.T) {
	boom := errors.New("connection reset")
	svc := NewDocumentService(&fakeDB{getErr: boom}, &fakeStore{}, &fakeQueue{}, nil)

	_, err := svc.Get(context.Background(), "u1", "doc-1")
	assert.ErrorIs(t, err, boom)
}
