package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

// NewDocumentIngestor builds the pipeline. The store is required; archiver may be nil.
func NewDocumentIngestor(store core.StoreSink, archiver core.Archiver, analyzer *PageAnalyzer, converters Converters, cfg IngestConfig, logger *slog.Logger) (*DocumentIngestor, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.PageConcurrency <= 0 {
		cfg.PageConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentIngestor{
		store:      store,
		archiver:   archiver,
		analyzer:   analyzer,
		converters: converters,
		chunker:    NewTextChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		cfg:        cfg,
		logger:     logger.With("component", "ingestor"),
	}, nil
}

// Ingest converts file into chunks and writes them to the store with their metadata.
// Any failure is returned as *IngestionError; every scratch file of the call is removed before returning.
func (i *DocumentIngestor) Ingest(ctx context.Context, file models.UploadedFile, sessionID string) error {
	start := time.Now()
	log := i.logger.With("filename", file.Filename, "session", sessionID, "mime", file.MimeType)

	fail := func(err error) error {
		log.Error("ingestion failed", "error", err, "elapsed", time.Since(start))
		return &IngestionError{Filename: file.Filename, Err: err}
	}

	format := DetectFormat(file.MimeType)
	if format == FormatUnknown {
		return fail(fmt.Errorf("%w: %q", ErrUnsupportedFormat, file.MimeType))
	}

	link := i.archive(ctx, file, log)

	work, err := newScratch(i.cfg.ScratchDir, log)
	if err != nil {
		return fail(err)
	}
	defer work.cleanup()

	chunks, err := i.extractChunks(ctx, file, format, work.dir, log)
	if err != nil {
		return fail(err)
	}
	if len(chunks) == 0 {
		return fail(ErrNoContentExtracted)
	}

	meta := make([]models.ChunkMetadata, len(chunks))
	for idx := range meta {
		meta[idx] = models.ChunkMetadata{Filename: file.Filename, FileLink: link, Session: sessionID}
	}

	write := i.store.WriteMany
	if i.cfg.ReplaceExisting {
		write = i.store.ReplaceMany
	}
	if err := write(ctx, chunks, meta); err != nil {
		return fail(fmt.Errorf("%w: %w", ErrStoreWriteFailed, err))
	}

	log.Info("document ingested", "format", format, "chunks", len(chunks), "archived", link != "", "elapsed", time.Since(start))
	return nil
}

// archive uploads the original file; failures only cost the file link.
func (i *DocumentIngestor) archive(ctx context.Context, file models.UploadedFile, log *slog.Logger) string {
	if i.archiver == nil {
		return ""
	}
	link, err := i.archiver.UploadAndShare(ctx, file)
	if err != nil {
		log.Warn("archive upload failed, continuing without file link", "error", err)
		return ""
	}
	return link
}

func (i *DocumentIngestor) extractChunks(ctx context.Context, file models.UploadedFile, format Format, workDir string, log *slog.Logger) ([]string, error) {
	switch format {
	case FormatText:
		chunks, charset := i.chunker.ChunkBytes(file.Data)
		log.Debug("text decoded", "charset", charset, "chunks", len(chunks))
		return chunks, nil
	case FormatCSV:
		return CSVChunks(file.Data, file.Filename)
	case FormatXLSX:
		return XLSXChunks(file.Data, file.Filename)
	case FormatXLS:
		return XLSChunks(file.Data, file.Filename)
	}

	conv := i.converters.forFormat(format)
	if conv == nil {
		return nil, fmt.Errorf("%w: no converter for %s", ErrRuntimeUnavailable, format)
	}

	images, err := conv.ToImages(ctx, file.Data, workDir)
	if err != nil {
		if i.canFallback(format, err) {
			log.Warn("office runtime unavailable, extracting text directly", "error", err)
			return i.fallbackChunks(ctx, file, format)
		}
		return nil, err
	}
	log.Debug("document rendered", "pages", len(images))

	return i.analyzePages(ctx, images, log)
}

func (i *DocumentIngestor) canFallback(format Format, err error) bool {
	return i.cfg.OfficeTextFallback &&
		i.converters.Fallback != nil &&
		(format == FormatDOCX || format == FormatPPTX) &&
		errors.Is(err, ErrRuntimeUnavailable)
}

func (i *DocumentIngestor) fallbackChunks(ctx context.Context, file models.UploadedFile, format Format) ([]string, error) {
	mimeType := MimeDOCX
	if format == FormatPPTX {
		mimeType = MimePPTX
	}
	text, err := i.converters.Fallback.ExtractText(ctx, file.Data, mimeType)
	if err != nil {
		return nil, err
	}
	return i.chunker.Chunk(text), nil
}

// analyzePages runs the analyzer over every page on a bounded pool.
// Results keep page order; pages that yield no text are dropped. One failed page fails the document.
func (i *DocumentIngestor) analyzePages(ctx context.Context, images []string, log *slog.Logger) ([]string, error) {
	if i.analyzer == nil {
		return nil, fmt.Errorf("%w: no page analyzer configured", ErrAnalysisFailed)
	}

	texts := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(i.cfg.PageConcurrency)

	for idx, img := range images {
		g.Go(func() error {
			text, err := i.analyzer.analyzePage(gctx, img, idx+1)
			if err != nil {
				return err
			}
			texts[idx] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	chunks := make([]string, 0, len(texts))
	for idx, text := range texts {
		if strings.TrimSpace(text) == "" {
			log.Warn("page produced no text", "page", idx+1)
			continue
		}
		chunks = append(chunks, text)
	}
	return chunks, nil
}

// scratch is the private directory of one ingestion call. Every conversion artifact lives under it.
type scratch struct {
	dir    string
	logger *slog.Logger
}

func newScratch(parent string, logger *slog.Logger) (*scratch, error) {
	dir, err := os.MkdirTemp(parent, "ingest-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &scratch{dir: dir, logger: logger}, nil
}

// cleanup removes the scratch directory. Failures are logged, never returned.
func (s *scratch) cleanup() {
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn("failed to remove scratch dir", "path", s.dir, "error", err)
	}
}
