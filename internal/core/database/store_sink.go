package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var (
	// ErrMisalignedBatch is returned when chunks and metadata differ in length.
	ErrMisalignedBatch = errors.New("chunks and metadata differ in length")

	// ErrMixedBatch is returned when a replacement batch spans more than one file or session.
	ErrMixedBatch = errors.New("replacement batch spans several documents")

	// ErrNoEmbedder is returned when vectors are needed but no embedding provider was configured.
	ErrNoEmbedder = errors.New("no embedding provider configured")
)

// WriteMany embeds the chunks and inserts them with their metadata in one transaction.
// Position is the chunk's index within this call.
func (c *DatabaseClient) WriteMany(ctx context.Context, chunks []string, meta []models.ChunkMetadata) error {
	return c.writeChunks(ctx, chunks, meta, false)
}

// ReplaceMany swaps the stored chunks of one file in one session for the new batch.
// Embedding happens before the transaction opens; any failure leaves the previous chunks in place.
// Every metadata entry must name the same file and session.
func (c *DatabaseClient) ReplaceMany(ctx context.Context, chunks []string, meta []models.ChunkMetadata) error {
	return c.writeChunks(ctx, chunks, meta, true)
}

func (c *DatabaseClient) writeChunks(ctx context.Context, chunks []string, meta []models.ChunkMetadata, replace bool) error {
	if len(chunks) != len(meta) {
		return fmt.Errorf("%w: %d chunks, %d metadata", ErrMisalignedBatch, len(chunks), len(meta))
	}
	if len(chunks) == 0 {
		return nil
	}
	if replace {
		if err := sameDocument(meta); err != nil {
			return err
		}
	}

	vectors, err := c.embedAll(ctx, chunks)
	if err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	if replace {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM document_chunks WHERE file_name = $1 AND session_id = $2`,
			meta[0].Filename, meta[0].Session)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("delete previous chunks: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			c.logger.Debug("previous chunks replaced", "count", n, "filename", meta[0].Filename, "session", meta[0].Session)
		}
	}

	const q = `
		INSERT INTO document_chunks
			(id, file_name, session_id, file_link, position, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range chunks {
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), meta[i].Filename, meta[i].Session, meta[i].FileLink, i, chunks[i], pgvector.NewVector(vectors[i]),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	c.logger.Debug("chunks stored", "count", len(chunks), "filename", meta[0].Filename)
	return nil
}

// sameDocument checks that a replacement batch describes exactly one file in one session.
func sameDocument(meta []models.ChunkMetadata) error {
	first := meta[0]
	if first.Filename == "" {
		return fmt.Errorf("%w: empty filename", ErrMixedBatch)
	}
	for i, m := range meta[1:] {
		if m.Filename != first.Filename || m.Session != first.Session {
			return fmt.Errorf("%w: entry %d is %q/%q, want %q/%q", ErrMixedBatch, i+1, m.Filename, m.Session, first.Filename, first.Session)
		}
	}
	return nil
}

// DeleteByFilename removes every chunk stored for filename.
func (c *DatabaseClient) DeleteByFilename(ctx context.Context, filename string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM document_chunks WHERE file_name = $1`, filename)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		c.logger.Debug("chunks deleted", "count", n, "filename", filename)
	}
	return nil
}

// QueryRelevant returns the text of the topK chunks closest to query by cosine distance.
func (c *DatabaseClient) QueryRelevant(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 5
	}
	vectors, err := c.embedAll(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	const q = `
		SELECT text
		FROM document_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, pgvector.NewVector(vectors[0]), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		out = append(out, text)
	}
	return out, rows.Err()
}

// ChunksByFilename lists the stored chunks of one file, grouped by session in position order.
func (c *DatabaseClient) ChunksByFilename(ctx context.Context, filename string) ([]models.DocumentChunk, error) {
	const q = `
		SELECT id, file_name, session_id, file_link, position, text, embedding, created_at
		FROM document_chunks
		WHERE file_name = $1
		ORDER BY session_id, position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, filename)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DocumentChunk
	for rows.Next() {
		var (
			ch  models.DocumentChunk
			emb pgvector.Vector
		)
		if err := rows.Scan(&ch.ID, &ch.FileName, &ch.SessionID, &ch.FileLink, &ch.Position, &ch.Text, &emb, &ch.CreatedAt); err != nil {
			return nil, err
		}
		ch.Embedding = emb.Slice()
		out = append(out, ch)
	}
	return out, rows.Err()
}

// embedAll embeds texts in batches of batchSize and checks every vector's dimension.
func (c *DatabaseClient) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if c.embedder == nil {
		return nil, ErrNoEmbedder
	}
	size := c.batchSize
	if size <= 0 {
		size = len(texts)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := c.embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed chunks %d-%d: got %d vectors", start, end-1, len(vecs))
		}
		for i, v := range vecs {
			if c.dim > 0 && len(v) != c.dim {
				return nil, fmt.Errorf("embed chunk %d: dimension %d, want %d", start+i, len(v), c.dim)
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}
