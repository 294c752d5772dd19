package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

// pageInstruction is sent with every page image. %s is the target language.
const pageInstruction = `You are given one page of a document as an image.
Extract the content of the page and write it in %s.
Keep the original meaning: do not add facts, opinions or commentary.
Preserve headings, list structure and table values. Describe charts and figures briefly.
Leave out headers, footers and page numbers.
Return only the extracted content.`

// PageAnalyzer turns one page image into text through a VisionProvider.
type PageAnalyzer struct {
	vision    core.VisionProvider
	policy    RetryPolicy
	language  string
	maxTokens int32
	logger    *slog.Logger
}

// NewPageAnalyzer builds an analyzer. An empty language defaults to Japanese.
func NewPageAnalyzer(vision core.VisionProvider, policy RetryPolicy, language string, maxTokens int, logger *slog.Logger) *PageAnalyzer {
	if language == "" {
		language = "Japanese"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PageAnalyzer{
		vision:    vision,
		policy:    policy,
		language:  language,
		maxTokens: int32(maxTokens),
		logger:    logger.With("component", "page-analyzer"),
	}
}

// Analyze extracts the text of the page image at imagePath.
// Rate-limited calls are retried per the policy; any other failure is returned at once.
func (a *PageAnalyzer) Analyze(ctx context.Context, imagePath string) (string, error) {
	return a.analyzePage(ctx, imagePath, 0)
}

func (a *PageAnalyzer) analyzePage(ctx context.Context, imagePath string, page int) (string, error) {
	img, err := os.ReadFile(imagePath)
	if err != nil {
		return "", &AnalysisError{Page: page, Err: fmt.Errorf("read page image: %w", err)}
	}

	instruction := fmt.Sprintf(pageInstruction, a.language)
	mimeType := imageMimeType(imagePath)

	policy := a.policy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		a.logger.Debug("rate limited, backing off", "page", page, "attempt", attempt, "maxRetries", policy.MaxRetries, "wait", wait, "error", err)
	}

	var text string
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		out, callErr := a.vision.ExtractImageText(ctx, img, mimeType, instruction, a.maxTokens)
		if callErr != nil {
			return callErr
		}
		text = out
		return nil
	})
	if err != nil {
		var rl *core.RateLimitError
		aerr := &AnalysisError{Page: page, Attempts: attempts, RateLimited: errors.As(err, &rl), Err: err}
		a.logger.Error("page analysis failed", "page", page, "attempts", attempts, "rateLimited", aerr.RateLimited, "error", err)
		return "", aerr
	}

	if attempts > 1 {
		a.logger.Info("page analyzed after retries", "page", page, "attempts", attempts)
	}
	return strings.TrimSpace(text), nil
}

func imageMimeType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
