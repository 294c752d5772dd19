package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/contexta-ingest/internal/config"
	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var (
	_ core.DbClient  = (*DatabaseClient)(nil)
	_ core.StoreSink = (*DatabaseClient)(nil)
)

// ErrDocumentNotFound is returned when an upload record does not exist.
var ErrDocumentNotFound = errors.New("document not found")

// DatabaseClient keeps upload records, session notices and the chunk vectors in Postgres/pgvector.
type DatabaseClient struct {
	db        *sql.DB
	embedder  core.EmbeddingProvider
	batchSize int
	dim       int
	logger    *slog.Logger
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config, embedder core.EmbeddingProvider, logger *slog.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbedDim, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{
		db:        db,
		embedder:  embedder,
		batchSize: cfg.EmbedBatchSize,
		dim:       cfg.EmbedDim,
		logger:    logger.With("component", "pgvector"),
	}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (c *DatabaseClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Upload records

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, session_id, file_name, content_type, size, status, error, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()), COALESCE($10, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		doc.ID, doc.UserID, doc.SessionID, doc.FileName, doc.ContentType, doc.Size, doc.Status, doc.Error,
		nullTime(doc.CreatedAt), nullTime(doc.UpdatedAt))
	return err
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, user_id, session_id, file_name, content_type, size, status, error, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.UserID, &d.SessionID, &d.FileName, &d.ContentType, &d.Size, &d.Status, &d.Error, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsBySession(ctx context.Context, userID, sessionID string) ([]models.Document, error) {
	const q = `
		SELECT id, user_id, session_id, file_name, content_type, size, status, error, created_at, updated_at
		FROM documents
		WHERE user_id = $1 AND session_id = $2
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.SessionID, &d.FileName, &d.ContentType, &d.Size, &d.Status, &d.Error, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id, status, errMsg string) error {
	const q = `
		UPDATE documents
		SET status = $2, error = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status, errMsg)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	return nil
}

// Session notices

func (c *DatabaseClient) AddSessionMessage(ctx context.Context, msg *models.SessionMessage) error {
	if msg == nil {
		return errors.New("nil session message")
	}
	const q = `
		INSERT INTO session_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`
	_, err := c.db.ExecContext(ctx, q, msg.ID, msg.SessionID, msg.Role, msg.Content, nullTime(msg.CreatedAt))
	return err
}

// nullTime lets COALESCE fill in now() for zero timestamps.
func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
