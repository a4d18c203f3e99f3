// Package graph defines the knowledge-graph mirror collaborator. The
// mirror is auxiliary visualization off the query-answer critical path:
// the pipeline emits upsert events best-effort and never depends on the
// mirror responding or existing.
package graph

import (
	"context"

	"docchat/internal/models"
)

type Mirror interface {
	UpsertDocument(ctx context.Context, doc models.Document) error
	UpsertChunks(ctx context.Context, doc models.Document, chunks []models.Chunk) error
	DeleteDocument(ctx context.Context, documentID string) error
}

// Nop is the default mirror when none is configured.
type Nop struct{}

var _ Mirror = Nop{}

func (Nop) UpsertDocument(context.Context, models.Document) error { return nil }

func (Nop) UpsertChunks(context.Context, models.Document, []models.Chunk) error { return nil }

func (Nop) DeleteDocument(context.Context, string) error { return nil }
