package core

import (
	"context"
	"fmt"
	"time"
)

type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VisionProvider extracts text from a single image with a model instruction.
// maxTokens bounds the length of the answer.
type VisionProvider interface {
	ExtractImageText(ctx context.Context, image []byte, mimeType, instruction string, maxTokens int32) (string, error)
}

// RateLimitError is returned by providers when the remote service throttled the call.
// RetryAfter is zero when the service did not send a hint.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error { return e.Err }
