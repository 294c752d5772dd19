package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

var _ core.DocumentConverter = (*OfficeConverter)(nil)

// OfficeConverter converts PPTX/PPT/DOCX to PDF with LibreOffice, then rasterizes the PDF.
type OfficeConverter struct {
	runner CommandRunner
	bin    string
	probe  []string
	ext    string
	pdf    core.DocumentConverter
	logger *slog.Logger
}

// NewOfficeConverter builds a converter for sources with extension ext (".pptx", ".ppt", ".docx").
// probe is the command checked before every conversion, e.g. "soffice --version".
func NewOfficeConverter(runner CommandRunner, bin, probe, ext string, pdf core.DocumentConverter, logger *slog.Logger) *OfficeConverter {
	if bin == "" {
		bin = "soffice"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OfficeConverter{
		runner: runner,
		bin:    bin,
		probe:  strings.Fields(probe),
		ext:    ext,
		pdf:    pdf,
		logger: logger.With("component", "office-converter", "ext", ext),
	}
}

// ToImages converts src to PDF in a private directory and hands the PDF to the rasterizer.
// The source copy, the PDF and the LibreOffice profile are removed before returning.
func (c *OfficeConverter) ToImages(ctx context.Context, src []byte, workDir string) ([]string, error) {
	if err := c.checkRuntime(ctx); err != nil {
		return nil, err
	}

	convDir, err := os.MkdirTemp(workDir, "office-*")
	if err != nil {
		return nil, fmt.Errorf("create conversion dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(convDir); err != nil {
			c.logger.Warn("failed to remove conversion dir", "path", convDir, "error", err)
		}
	}()

	srcPath := filepath.Join(convDir, "source"+c.ext)
	if err := os.WriteFile(srcPath, src, 0o600); err != nil {
		return nil, fmt.Errorf("write source document: %w", err)
	}

	profile := "-env:UserInstallation=file://" + filepath.ToSlash(filepath.Join(convDir, "profile"))
	out, err := c.runner.Run(ctx, c.bin, profile, "--headless", "--norestore",
		"--convert-to", "pdf", "--outdir", convDir, srcPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrConversionFailed, c.bin, err, strings.TrimSpace(string(out)))
	}

	pdfPath := filepath.Join(convDir, "source.pdf")
	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s produced no pdf: %v", ErrConversionFailed, c.bin, err)
	}
	if len(pdf) == 0 {
		return nil, fmt.Errorf("%w: %s produced an empty pdf", ErrConversionFailed, c.bin)
	}

	c.logger.Debug("office document converted to pdf", "bytes", len(pdf))
	return c.pdf.ToImages(ctx, pdf, workDir)
}

func (c *OfficeConverter) checkRuntime(ctx context.Context) error {
	if _, err := c.runner.LookPath(c.bin); err != nil {
		return fmt.Errorf("%w: office converter %q not found: %v", ErrRuntimeUnavailable, c.bin, err)
	}
	if len(c.probe) == 0 {
		return nil
	}
	if _, err := c.runner.LookPath(c.probe[0]); err != nil {
		return fmt.Errorf("%w: %q not found: %v", ErrRuntimeUnavailable, c.probe[0], err)
	}
	if out, err := c.runner.Run(ctx, c.probe[0], c.probe[1:]...); err != nil {
		return fmt.Errorf("%w: probe %q failed: %v: %s", ErrRuntimeUnavailable,
			strings.Join(c.probe, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
