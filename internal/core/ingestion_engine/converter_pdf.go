package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

var _ core.DocumentConverter = (*PDFRasterizer)(nil)

var disablePdfcpuConfig sync.Once

// PDFRasterizer renders every PDF page to a PNG with pdftoppm.
type PDFRasterizer struct {
	runner   CommandRunner
	bin      string
	dpi      int
	maxPages int
	logger   *slog.Logger

	// pageCount reads the page count from the PDF bytes; nil skips the check.
	pageCount func(src []byte) (int, error)
}

// NewPDFRasterizer builds a rasterizer. maxPages <= 0 disables the page ceiling.
func NewPDFRasterizer(runner CommandRunner, bin string, dpi, maxPages int, logger *slog.Logger) *PDFRasterizer {
	if bin == "" {
		bin = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 150
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PDFRasterizer{
		runner:    runner,
		bin:       bin,
		dpi:       dpi,
		maxPages:  maxPages,
		logger:    logger.With("component", "pdf-rasterizer"),
		pageCount: pdfPageCount,
	}
}

// ToImages writes src to a scratch file under workDir and rasterizes it there.
// The returned PNG paths are sorted lexically, which is page order for pdftoppm's zero-padded names.
func (r *PDFRasterizer) ToImages(ctx context.Context, src []byte, workDir string) ([]string, error) {
	if _, err := r.runner.LookPath(r.bin); err != nil {
		return nil, fmt.Errorf("%w: pdf rasterizer %q not found: %v", ErrRuntimeUnavailable, r.bin, err)
	}

	pages := r.countPages(src)
	if r.maxPages > 0 && pages > r.maxPages {
		return nil, fmt.Errorf("%w: document has %d pages, limit is %d", ErrConversionFailed, pages, r.maxPages)
	}

	pageDir, err := os.MkdirTemp(workDir, "pages-*")
	if err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}

	srcPath := filepath.Join(pageDir, "source.pdf")
	if err := os.WriteFile(srcPath, src, 0o600); err != nil {
		return nil, fmt.Errorf("write source pdf: %w", err)
	}
	defer func() {
		if err := os.Remove(srcPath); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("failed to remove source pdf", "path", srcPath, "error", err)
		}
	}()

	prefix := filepath.Join(pageDir, "page")
	out, err := r.runner.Run(ctx, r.bin, "-png", "-r", strconv.Itoa(r.dpi), srcPath, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrConversionFailed, r.bin, err, strings.TrimSpace(string(out)))
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, fmt.Errorf("list page images: %w", err)
	}
	sort.Strings(images)

	if len(images) == 0 {
		return nil, fmt.Errorf("%w: %s produced no page images", ErrConversionFailed, r.bin)
	}
	if pages > 0 && pages != len(images) {
		r.logger.Warn("rendered image count differs from page count", "pages", pages, "images", len(images))
	}

	r.logger.Debug("pdf rasterized", "images", len(images), "dir", pageDir)
	return images, nil
}

// countPages returns 0 when the count is unavailable; pdftoppm stays the authority.
func (r *PDFRasterizer) countPages(src []byte) int {
	if r.pageCount == nil {
		return 0
	}
	n, err := r.pageCount(src)
	if err != nil {
		r.logger.Warn("could not read pdf page count", "error", err)
		return 0
	}
	return n
}

func pdfPageCount(src []byte) (int, error) {
	disablePdfcpuConfig.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(src), conf)
}
