package store

import (
	"context"
	"errors"
	"time"

	"docchat/internal/models"
)

var (
	// ErrUnavailable wraps any persistence failure. Background
	// re-processing may be retried by the scheduler; query-path callers
	// see it directly.
	ErrUnavailable = errors.New("store unavailable")

	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
)

// Candidate pairs a stored chunk with its owning document, the shape the
// retriever ranks against a query vector.
type Candidate struct {
	Chunk    models.Chunk
	Document models.Document
}

// Store is the persistence contract the pipeline depends on. All
// operations are synchronous from the core's perspective.
type Store interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	DocumentByID(ctx context.Context, id string) (*models.Document, error)
	// DocumentByHash is the idempotency check for re-ingestion: same
	// content hash means the document is already known.
	DocumentByHash(ctx context.Context, hash string) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	// DeleteDocument cascades to the document's chunks.
	DeleteDocument(ctx context.Context, id string) error

	// ListChunks returns all chunks matching the language, optionally
	// narrowed by the owning document's category.
	ListChunks(ctx context.Context, language, category string) ([]Candidate, error)
	// SaveChunks persists a document's chunk set atomically: either all
	// chunks are saved or none.
	SaveChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	MarkProcessed(ctx context.Context, documentID string, at time.Time) error

	SaveQueryRecord(ctx context.Context, rec *models.QueryRecord) error
	ListQueryRecords(ctx context.Context, limit int) ([]models.QueryRecord, error)
	UpdateFeedback(ctx context.Context, queryID string, score int) error
}
