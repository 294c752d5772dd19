package models

import (
	"time"
)

// Upload statuses recorded on a Document while it moves through ingestion.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// UploadedFile is the in-memory upload handed to the ingestion pipeline.
// It is owned by the caller and not modified by the pipeline.
type UploadedFile struct {
	Data     []byte
	Filename string
	MimeType string
}

// ChunkMetadata travels with every chunk written to the store.
// FileLink is empty when the archive upload did not succeed.
// Session scopes re-upload replacement to the uploading chat session.
type ChunkMetadata struct {
	Filename string `json:"filename"`
	FileLink string `json:"filelink,omitempty"`
	Session  string `json:"session,omitempty"`
}

// Document represents a user upload and its ingestion status.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	ContentType string    `db:"content_type" json:"content_type"`
	Size        int64     `db:"size" json:"size"`
	Status      string    `db:"status" json:"status"` // processing | completed | error
	Error       string    `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DocumentChunk represents one stored text chunk.
type DocumentChunk struct {
	ID        string    `db:"id" json:"id"`
	FileName  string    `db:"file_name" json:"file_name"`
	SessionID string    `db:"session_id" json:"session_id"`
	FileLink  string    `db:"file_link" json:"file_link,omitempty"`
	Position  int       `db:"position" json:"position"`
	Text      string    `db:"text" json:"text"`
	Embedding []float32 `db:"embedding" json:"-"` // pgvector column
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SessionMessage is a chat-visible message, used to notify users about uploads.
type SessionMessage struct {
	ID        string    `db:"id" json:"id"`
	SessionID string    `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"` // "system" for pipeline notices
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
