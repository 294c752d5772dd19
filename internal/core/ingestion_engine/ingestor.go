package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var _ Ingestor = (*DocumentIngestor)(nil)

// Ingestor is the synchronous pipeline entry point.
type Ingestor interface {
	Ingest(ctx context.Context, file models.UploadedFile, sessionID string) error
}

// ErrQueueClosed is returned by Enqueue once the workers stopped.
var ErrQueueClosed = errors.New("ingestion queue closed")

// Job is one accepted upload waiting for ingestion.
type Job struct {
	DocumentID string
	SessionID  string
	File       models.UploadedFile
}

// Queue runs uploads through an Ingestor in the background and keeps the upload record
// and the session informed.
type Queue struct {
	ingestor Ingestor
	db       core.DbClient
	jobs     chan Job
	timeout  time.Duration
	logger   *slog.Logger

	wg sync.WaitGroup
	// senders hold the read lock while handing a job over; shutdown takes the write lock
	// so no send can land after the buffer was drained.
	sendMu   sync.RWMutex
	stopping chan struct{}
	done     chan struct{}
}

// NewQueue builds a queue holding up to size pending jobs.
// timeout bounds one ingestion call (0 = no bound besides the worker context).
func NewQueue(ingestor Ingestor, db core.DbClient, size int, timeout time.Duration, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		ingestor: ingestor,
		db:       db,
		jobs:     make(chan Job, size),
		timeout:  timeout,
		logger:   logger.With("component", "ingest-queue"),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches numWorkers goroutines that run until ctx is cancelled.
// Jobs still buffered at that point are marked failed rather than left processing.
func (q *Queue) Start(ctx context.Context, numWorkers int) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	for w := 1; w <= numWorkers; w++ {
		q.wg.Add(1)
		go func(w int) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					q.logger.Debug("worker shutting down", "worker", w)
					return
				case job := <-q.jobs:
					q.process(ctx, w, job)
				}
			}
		}(w)
	}

	go func() {
		q.wg.Wait()
		close(q.stopping)
		q.sendMu.Lock()
		q.abandonPending(context.WithoutCancel(ctx))
		q.sendMu.Unlock()
		close(q.done)
	}()
}

// Enqueue schedules a job. It blocks while the queue is full.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()

	select {
	case <-q.stopping:
		return ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job:
		q.logger.Debug("job queued", "document", job.DocumentID, "pending", len(q.jobs))
		return nil
	case <-q.stopping:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every worker has returned and the buffer was drained.
func (q *Queue) Wait() {
	<-q.done
}

// abandonPending fails every job left in the buffer after the workers stopped.
func (q *Queue) abandonPending(ctx context.Context) {
	for {
		select {
		case job := <-q.jobs:
			log := q.logger.With("document", job.DocumentID, "filename", job.File.Filename, "session", job.SessionID)
			log.Warn("job dropped at shutdown")
			q.setStatus(ctx, log, job.DocumentID, models.StatusError, ErrQueueClosed.Error())
			q.notify(ctx, log, job.SessionID, failureNotice(job.File.Filename))
		default:
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, worker int, job Job) {
	log := q.logger.With("worker", worker, "document", job.DocumentID, "filename", job.File.Filename, "session", job.SessionID)

	runCtx := ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	// status and notices are written even after ctx is cancelled
	bk := context.WithoutCancel(ctx)
	q.setStatus(bk, log, job.DocumentID, models.StatusProcessing, "")

	err := q.ingestor.Ingest(runCtx, job.File, job.SessionID)
	if err != nil {
		// the record keeps the cause; the session only sees a generic notice
		q.setStatus(bk, log, job.DocumentID, models.StatusError, err.Error())
		q.notify(bk, log, job.SessionID, failureNotice(job.File.Filename))
		return
	}

	q.setStatus(bk, log, job.DocumentID, models.StatusCompleted, "")
	q.notify(bk, log, job.SessionID, fmt.Sprintf("%q has been processed and is ready for questions.", job.File.Filename))
}

func (q *Queue) setStatus(ctx context.Context, log *slog.Logger, id, status, cause string) {
	if q.db == nil || id == "" {
		return
	}
	if err := q.db.UpdateDocumentStatus(ctx, id, status, cause); err != nil {
		log.Error("failed to update document status", "status", status, "error", err)
	}
}

func (q *Queue) notify(ctx context.Context, log *slog.Logger, sessionID, content string) {
	if q.db == nil || sessionID == "" {
		return
	}
	msg := &models.SessionMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      "system",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.db.AddSessionMessage(ctx, msg); err != nil {
		log.Error("failed to post session notice", "error", err)
	}
}

func failureNotice(filename string) string {
	return fmt.Sprintf("Processing failed for %q. Please try again or upload a different file.", filename)
}
