package db

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/models"
)

type fakeEmbedder struct {
	dim   int
	calls [][]string
	err   error
	short bool
}

func (e *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls = append(e.calls, texts)
	if e.err != nil {
		return nil, e.err
	}
	n := len(texts)
	if e.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, e.dim)
	}
	return out, nil
}

func newTestClient(emb *fakeEmbedder, batch, dim int) *DatabaseClient {
	c := &DatabaseClient{batchSize: batch, dim: dim, logger: slog.Default()}
	if emb != nil {
		c.embedder = emb
	}
	return c
}

func TestWriteMany_RejectsMisalignedBatch(t *testing.T) {
	emb := &fakeEmbedder{dim: 3}
	c := newTestClient(emb, 2, 3)

	err := c.WriteMany(context.Background(), []string{"a", "b"}, []models.ChunkMetadata{{Filename: "x"}})
	assert.ErrorIs(t, err, ErrMisalignedBatch)
	assert.Empty(t, emb.calls, "nothing is embedded for a rejected batch")
}

func TestWriteMany_EmptyIsNoop(t *testing.T) {
	assert.NoError(t, newTestClient(nil, 2, 3).WriteMany(context.Background(), nil, nil))
}

func TestEmbedAll_Batches(t *testing.T) {
	emb := &fakeEmbedder{dim: 3}
	c := newTestClient(emb, 2, 3)

	vecs, err := c.embedAll(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, emb.calls)
}

func TestEmbedAll_DimensionMismatch(t *testing.T) {
	c := newTestClient(&fakeEmbedder{dim: 4}, 8, 3)
	_, err := c.embedAll(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "dimension 4, want 3")
}

func TestEmbedAll_ShortResponse(t *testing.T) {
	c := newTestClient(&fakeEmbedder{dim: 3, short: true}, 8, 3)
	_, err := c.embedAll(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "got 1 vectors")
}

func TestEmbedAll_ProviderError(t *testing.T) {
	boom := errors.New("quota")
	c := newTestClient(&fakeEmbedder{dim: 3, err: boom}, 8, 3)
	_, err := c.embedAll(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, boom)
}

func TestEmbedAll_NoEmbedder(t *testing.T) {
	_, err := newTestClient(nil, 8, 3).embedAll(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrNoEmbedder)
}

func TestReplaceMany_EmbedFailureTouchesNothing(t *testing.T) {
	boom := errors.New("embed: 429 quota")
	emb := &fakeEmbedder{dim: 3, err: boom}
	c := newTestClient(emb, 8, 3) // no *sql.DB: any statement would panic

	meta := []models.ChunkMetadata{{Filename: "a.txt", Session: "s1"}}
	err := c.ReplaceMany(context.Background(), []string{"new"}, meta)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, emb.calls, 1)
}

func TestReplaceMany_RejectsMixedBatch(t *testing.T) {
	emb := &fakeEmbedder{dim: 3}
	c := newTestClient(emb, 8, 3)

	tests := []struct {
		name string
		meta []models.ChunkMetadata
	}{
		{"two files", []models.ChunkMetadata{{Filename: "a.txt", Session: "s1"}, {Filename: "b.txt", Session: "s1"}}},
		{"two sessions", []models.ChunkMetadata{{Filename: "a.txt", Session: "s1"}, {Filename: "a.txt", Session: "s2"}}},
		{"no filename", []models.ChunkMetadata{{Session: "s1"}, {Session: "s1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.ReplaceMany(context.Background(), []string{"x", "y"}[:len(tt.meta)], tt.meta)
			assert.ErrorIs(t, err, ErrMixedBatch)
		})
	}
	assert.Empty(t, emb.calls, "nothing is embedded for a rejected batch")
}

func TestBootstrapScriptEmbedded(t *testing.T) {
	script, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	require.NoError(t, err)
	assert.Contains(t, string(script), "CREATE EXTENSION IF NOT EXISTS vector")
	assert.Contains(t, string(script), "document_chunks")
	assert.Contains(t, string(script), "INSERT INTO contexta_meta (version) VALUES (1)")
}

func TestRenderSchema_SizesEmbeddingColumn(t *testing.T) {
	script, err := renderSchema(1536)
	require.NoError(t, err)
	assert.Contains(t, script, "embedding  vector(1536) NOT NULL")
	assert.NotContains(t, script, dimPlaceholder)

	for _, dim := range []int{0, -1, maxIndexedDim + 1} {
		_, err := renderSchema(dim)
		assert.Error(t, err, "dim %d", dim)
	}
}

func TestCheckDimension(t *testing.T) {
	assert.NoError(t, checkDimension(768, 768))
	err := checkDimension(768, 1536)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorContains(t, err, "vector(768)")
}
