package ingestion_engine

import (
	"log/slog"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

// IngestConfig tunes the ingestion pipeline.
//
// ChunkSize:          maximum runes per plain-text chunk (e.g., 500).
// ChunkOverlap:       runes of the previous chunk carried into the next (e.g., 80).
// PageConcurrency:    page images analyzed at once.
// ReplaceExisting:    atomically swap the chunks stored for the same filename and session.
// OfficeTextFallback: read DOCX/PPTX text with docconv when the office runtime is missing.
// ScratchDir:         parent of the per-call scratch directories ("" = os.TempDir()).
type IngestConfig struct {
	ChunkSize          int
	ChunkOverlap       int
	PageConcurrency    int
	ReplaceExisting    bool
	OfficeTextFallback bool
	ScratchDir         string
}

// DefaultIngestConfig returns the production defaults.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:       DefaultChunkSize,
		ChunkOverlap:    DefaultChunkOverlap,
		PageConcurrency: 4,
		ReplaceExisting: true,
	}
}

// Converters holds one page-image converter per rendered format.
// A nil entry makes that format fail with ErrRuntimeUnavailable.
type Converters struct {
	PDF  core.DocumentConverter
	PPTX core.DocumentConverter
	PPT  core.DocumentConverter
	DOCX core.DocumentConverter

	// Fallback extracts DOCX/PPTX text when the office runtime is missing; used only with OfficeTextFallback.
	Fallback core.TextExtractor
}

func (c Converters) forFormat(f Format) core.DocumentConverter {
	switch f {
	case FormatPDF:
		return c.PDF
	case FormatPPTX:
		return c.PPTX
	case FormatPPT:
		return c.PPT
	case FormatDOCX:
		return c.DOCX
	}
	return nil
}

// ToolConfig locates the external tools behind the converters.
type ToolConfig struct {
	PdftoppmBin    string
	RasterDPI      int
	MaxPages       int
	SofficeBin     string
	OfficeProbeCmd string
	Timeout        time.Duration
}

// NewToolConverters wires pdftoppm and LibreOffice through an ExecRunner, plus the docconv fallback.
func NewToolConverters(tc ToolConfig, logger *slog.Logger) Converters {
	runner := ExecRunner{Timeout: tc.Timeout}
	pdf := NewPDFRasterizer(runner, tc.PdftoppmBin, tc.RasterDPI, tc.MaxPages, logger)
	return Converters{
		PDF:      pdf,
		PPTX:     NewOfficeConverter(runner, tc.SofficeBin, tc.OfficeProbeCmd, ".pptx", pdf, logger),
		PPT:      NewOfficeConverter(runner, tc.SofficeBin, tc.OfficeProbeCmd, ".ppt", pdf, logger),
		DOCX:     NewOfficeConverter(runner, tc.SofficeBin, tc.OfficeProbeCmd, ".docx", pdf, logger),
		Fallback: NewDocconvExtractor(false),
	}
}

// DocumentIngestor turns one uploaded file into stored chunks:
//
// store:      vector store the chunks are written to.
// archiver:   optional side channel keeping the original file (nil skips it).
// analyzer:   page image -> text.
// converters: page-image converters per format.
// chunker:    plain-text packing.
// cfg:        runtime tuning knobs for the pipeline.
type DocumentIngestor struct {
	store      core.StoreSink
	archiver   core.Archiver
	analyzer   *PageAnalyzer
	converters Converters
	chunker    TextChunker
	cfg        IngestConfig
	logger     *slog.Logger
}
