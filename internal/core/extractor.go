package core

import (
	"context"
)

// DocumentConverter turns a source document into page images.
// Images are written under workDir and returned in page order; the caller owns them.
type DocumentConverter interface {
	ToImages(ctx context.Context, src []byte, workDir string) ([]string, error)
}

// TextExtractor pulls plain text out of a document without rendering it.
// The `contentType` hint helps the extractor choose the right parsing strategy.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte, contentType string) (string, error)
}
