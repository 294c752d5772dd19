package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/markdave123-py/contexta-ingest/internal/app"
	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/logging"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "contexta-ingest",
		Usage: "Ingest documents into the Contexta vector store and query them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "Log output format (text, json)",
				Value: "text",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Convert, analyze, chunk and store one document",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Path of the document to ingest",
					},
					&cli.StringFlag{
						Name:  "archive-key",
						Usage: "Object key of an archived original to ingest again",
					},
					&cli.StringFlag{
						Name:  "mime",
						Usage: "Declared MIME type (guessed from the extension when empty)",
					},
					&cli.StringFlag{
						Name:  "session",
						Usage: "Chat session the upload belongs to",
						Value: "cli",
					},
				},
			},
			{
				Name:   "query",
				Usage:  "Print the stored chunks closest to a query",
				Action: queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "text",
						Aliases:  []string{"t"},
						Usage:    "Query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Number of chunks to return",
						Value: 5,
					},
				},
			},
			{
				Name:   "show",
				Usage:  "Print the stored chunks of a filename in position order",
				Action: showCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "filename",
						Usage:    "Filename the chunks were stored under",
						Required: true,
					},
				},
			},
			{
				Name:   "purge",
				Usage:  "Delete every stored chunk of a filename",
				Action: purgeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "filename",
						Usage:    "Filename the chunks were stored under",
						Required: true,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	logging.New(c.String("log-level"), c.String("log-format"))
	return nil
}

// withPipeline loads the configuration, connects the pipeline and runs fn with a signal-aware context.
func withPipeline(c *cli.Context, fn func(ctx context.Context, p *app.Pipeline) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := app.NewPipeline(ctx, cfg, slog.Default())
	if err != nil {
		return err
	}
	defer pipeline.Close()

	return fn(ctx, pipeline)
}

func ingestCommand(c *cli.Context) error {
	path, key := c.String("file"), c.String("archive-key")
	switch {
	case path == "" && key == "":
		return errors.New("one of --file or --archive-key is required")
	case path != "" && key != "":
		return errors.New("--file and --archive-key are mutually exclusive")
	}

	var file models.UploadedFile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		file = models.UploadedFile{
			Data:     data,
			Filename: filepath.Base(path),
			MimeType: mimeFor(c.String("mime"), path),
		}
	}

	return withPipeline(c, func(ctx context.Context, p *app.Pipeline) error {
		if key != "" {
			if p.Archive == nil {
				return errors.New("object storage is not configured")
			}
			fetched, err := p.Archive.Fetch(ctx, key)
			if err != nil {
				return err
			}
			fetched.MimeType = mimeFor(c.String("mime"), fetched.Filename)
			file = fetched
		}

		slog.Info("ingesting", "filename", file.Filename, "mime", file.MimeType, "bytes", len(file.Data))
		if err := p.Ingestor.Ingest(ctx, file, c.String("session")); err != nil {
			return err
		}
		slog.Info("ingest complete", "filename", file.Filename)
		return nil
	})
}

func queryCommand(c *cli.Context) error {
	return withPipeline(c, func(ctx context.Context, p *app.Pipeline) error {
		chunks, err := p.DB.QueryRelevant(ctx, c.String("text"), c.Int("top-k"))
		if err != nil {
			return err
		}
		for i, chunk := range chunks {
			fmt.Fprintf(c.App.Writer, "[%d] %s\n\n", i+1, chunk)
		}
		return nil
	})
}

func showCommand(c *cli.Context) error {
	return withPipeline(c, func(ctx context.Context, p *app.Pipeline) error {
		chunks, err := p.DB.ChunksByFilename(ctx, c.String("filename"))
		if err != nil {
			return err
		}
		printChunks(c.App.Writer, chunks)
		return nil
	})
}

func printChunks(w io.Writer, chunks []models.DocumentChunk) {
	if len(chunks) == 0 {
		fmt.Fprintln(w, "no chunks stored")
		return
	}
	for _, ch := range chunks {
		fmt.Fprintf(w, "[%s #%d] %s\n\n", ch.SessionID, ch.Position, ch.Text)
	}
}

func purgeCommand(c *cli.Context) error {
	return withPipeline(c, func(ctx context.Context, p *app.Pipeline) error {
		return p.DB.DeleteByFilename(ctx, c.String("filename"))
	})
}

// mimeFor prefers the declared type and falls back to the file extension.
func mimeFor(declared, path string) string {
	if declared != "" {
		return declared
	}
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
