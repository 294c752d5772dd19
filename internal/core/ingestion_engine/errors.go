package ingestion_engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when the declared mimetype has no conversion path.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrRuntimeUnavailable is returned when an external tool or runtime is missing.
	ErrRuntimeUnavailable = errors.New("runtime unavailable")

	// ErrConversionFailed is returned when an external conversion exits non-zero or yields nothing.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrAnalysisFailed is returned when a page could not be turned into text.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrRateLimited marks an analysis failure caused by repeated throttling.
	ErrRateLimited = errors.New("rate limited")

	// ErrNoContentExtracted is returned when conversion succeeded but produced zero chunks.
	ErrNoContentExtracted = errors.New("no content extracted")

	// ErrStoreWriteFailed is returned when the store sink rejected the chunk batch.
	ErrStoreWriteFailed = errors.New("store write failed")

	// ErrStoreRequired is returned when a DocumentIngestor is built without a store sink.
	ErrStoreRequired = errors.New("store sink required")
)

// IngestionError is the single failure returned by Ingest.
type IngestionError struct {
	Filename string
	Err      error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingest %q: %v", e.Filename, e.Err)
}

func (e *IngestionError) Unwrap() error { return e.Err }

// AnalysisError describes a page that could not be analyzed.
// It matches ErrAnalysisFailed, and ErrRateLimited when throttling exhausted the retries.
type AnalysisError struct {
	Page        int
	Attempts    int
	RateLimited bool
	Err         error
}

func (e *AnalysisError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("page %d: rate limited after %d attempts: %v", e.Page, e.Attempts, e.Err)
	}
	return fmt.Sprintf("page %d: extraction call errored: %v", e.Page, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

func (e *AnalysisError) Is(target error) bool {
	switch target {
	case ErrAnalysisFailed:
		return true
	case ErrRateLimited:
		return e.RateLimited
	}
	return false
}
