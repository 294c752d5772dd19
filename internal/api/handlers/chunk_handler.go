package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/markdave123-py/contexta-ingest/internal/services"
)

// ChunkSearcher finds stored chunks relevant to a query.
type ChunkSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]string, error)
}

type ChunkHandler struct {
	searcher ChunkSearcher
}

func NewChunkHandler(searcher ChunkSearcher) *ChunkHandler {
	return &ChunkHandler{searcher: searcher}
}

type QueryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type QueryResponse struct {
	Chunks []string `json:"chunks"`
}

// QueryChunks returns the chunks closest to the query text.
func (h *ChunkHandler) QueryChunks(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	chunks, err := h.searcher.Search(r.Context(), req.Query, req.TopK)
	switch {
	case errors.Is(err, services.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("chunk query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if chunks == nil {
		chunks = []string{}
	}
	writeJSON(w, http.StatusOK, QueryResponse{Chunks: chunks})
}
