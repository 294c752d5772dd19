package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

// schemaVersion is the contexta_meta row written by scripts/initdb.sql.
const schemaVersion = 1

// dimPlaceholder in initdb.sql is replaced by the configured embedding dimension.
const dimPlaceholder = "{{EMBED_DIM}}"

// maxIndexedDim is the largest vector pgvector's hnsw index accepts.
const maxIndexedDim = 2000

// ErrDimensionMismatch is returned when the stored embedding column disagrees with EMBED_DIM.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// bootstrapLockID keys the advisory lock that serializes concurrent bootstraps.
const bootstrapLockID = 0x636f6e74

// EnsureBootstrapped applies scripts/initdb.sql once per schema version with the embedding
// column sized to dim, then checks that the existing column has that size.
// The check and apply run under a session advisory lock.
func EnsureBootstrapped(ctx context.Context, db *sql.DB, dim int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire bootstrap conn: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, bootstrapLockID); err != nil {
		return fmt.Errorf("bootstrap lock: %w", err)
	}
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, bootstrapLockID); err != nil {
			logger.Warn("failed to release bootstrap lock", "error", err)
		}
	}()

	current, err := schemaCurrent(ctx, conn)
	if err != nil {
		return err
	}
	if current {
		logger.Debug("database schema up to date", "version", schemaVersion)
		return verifyDimension(ctx, conn, dim)
	}

	script, err := renderSchema(dim)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}

	logger.Info("database schema bootstrapped", "version", schemaVersion, "embedDim", dim)
	return verifyDimension(ctx, conn, dim)
}

// renderSchema returns initdb.sql with the embedding column sized to dim.
func renderSchema(dim int) (string, error) {
	if dim <= 0 || dim > maxIndexedDim {
		return "", fmt.Errorf("embedding dimension %d outside 1..%d", dim, maxIndexedDim)
	}
	script, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	return strings.ReplaceAll(string(script), dimPlaceholder, strconv.Itoa(dim)), nil
}

// verifyDimension compares the document_chunks.embedding column with dim.
// pgvector stores the declared dimension as the column's type modifier.
func verifyDimension(ctx context.Context, conn *sql.Conn, dim int) error {
	var typmod int
	err := conn.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'`).Scan(&typmod)
	if err != nil {
		return fmt.Errorf("embedding column check: %w", err)
	}
	return checkDimension(typmod, dim)
}

func checkDimension(stored, want int) error {
	if stored != want {
		return fmt.Errorf("%w: column is vector(%d), EMBED_DIM is %d", ErrDimensionMismatch, stored, want)
	}
	return nil
}

// schemaCurrent reports whether contexta_meta exists and records schemaVersion.
func schemaCurrent(ctx context.Context, conn *sql.Conn) (bool, error) {
	var hasMeta bool
	if err := conn.QueryRowContext(ctx, `SELECT to_regclass('contexta_meta') IS NOT NULL`).Scan(&hasMeta); err != nil {
		return false, fmt.Errorf("meta table check: %w", err)
	}
	if !hasMeta {
		return false, nil
	}

	var hasVersion bool
	if err := conn.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM contexta_meta WHERE version = $1)`, schemaVersion).Scan(&hasVersion); err != nil {
		return false, fmt.Errorf("meta version check: %w", err)
	}
	return hasVersion, nil
}
