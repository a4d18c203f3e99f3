package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/chunker"
	"docchat/internal/embedding"
	"docchat/internal/extract"
	"docchat/internal/graph"
	"docchat/internal/helper"
	"docchat/internal/models"
	"docchat/internal/store"
	"docchat/internal/vectorindex"
)

// Status is the outcome variant of one ingestion step. Every step returns
// an inspectable Result so the scheduler decides retry policy instead of
// the pipeline swallowing failures.
type Status string

const (
	// StatusCreated: the document record is durably created and awaits
	// processing.
	StatusCreated Status = "created"
	// StatusDuplicate: a document with the same content hash already
	// exists; the ingestion was a no-op.
	StatusDuplicate Status = "duplicate"
	// StatusProcessed: the document's chunks are persisted and the record
	// is marked processed.
	StatusProcessed Status = "processed"
	// StatusFailed: the step failed; Err carries the cause.
	StatusFailed Status = "failed"
)

// Result reports the outcome of Ingest or Process for one document.
type Result struct {
	DocumentID string
	Status     Status
	Chunks     int
	Err        error
}

func failed(documentID string, err error) Result {
	return Result{DocumentID: documentID, Status: StatusFailed, Err: err}
}

// Input is one raw document at the pipeline boundary.
type Input struct {
	Content  []byte
	Filename string
	Category string
	Language string
}

// Options configure the ingestion pipeline.
type Options struct {
	ChunkSizeWords   int
	ChunkOverlapWord int
	DefaultLanguage  string
	DocumentsPath    string
	MaxFileSize      int64
}

// Pipeline turns raw documents into persisted, embedded chunks. All
// collaborators are injected at construction; there is no ambient global
// state.
type Pipeline struct {
	store     store.Store
	extractor *extract.Extractor
	embedder  *embedding.Service
	index     *vectorindex.Index // optional mirror, may be nil
	mirror    graph.Mirror
	opts      Options
}

func NewPipeline(st store.Store, extractor *extract.Extractor, embedder *embedding.Service, index *vectorindex.Index, mirror graph.Mirror, opts Options) *Pipeline {
	if mirror == nil {
		mirror = graph.Nop{}
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = models.LanguageHR
	}
	return &Pipeline{
		store:     st,
		extractor: extractor,
		embedder:  embedder,
		index:     index,
		mirror:    mirror,
		opts:      opts,
	}
}

// Ingest registers a document: hash, idempotency check, file save and
// record creation. Chunking and embedding happen in Process, which a
// scheduler invokes after the record is durable. Re-ingesting identical
// content returns the existing document's identity and creates nothing.
func (p *Pipeline) Ingest(ctx context.Context, in Input) Result {
	if !extract.Supported(in.Filename) {
		return failed("", fmt.Errorf("%w: %s", extract.ErrUnsupportedFormat, filepath.Ext(in.Filename)))
	}
	if p.opts.MaxFileSize > 0 && int64(len(in.Content)) > p.opts.MaxFileSize {
		return failed("", fmt.Errorf("file too large: %d bytes (max %d)", len(in.Content), p.opts.MaxFileSize))
	}

	hash := helper.HashContent(in.Content)
	existing, err := p.store.DocumentByHash(ctx, hash)
	if err == nil {
		log.Info().Str("document_id", existing.ID).Str("filename", in.Filename).Msg("Document already exists")
		return Result{DocumentID: existing.ID, Status: StatusDuplicate}
	}
	if !errors.Is(err, store.ErrNotFound) {
		return failed("", err)
	}

	language := in.Language
	if !models.SupportedLanguage(language) {
		language = p.opts.DefaultLanguage
	}
	category := in.Category
	if category == "" {
		category = "general"
	}

	filePath := filepath.Join(p.opts.DocumentsPath, category, in.Filename)
	if err := helper.CreateFolder(filepath.Dir(filePath)); err != nil {
		return failed("", err)
	}
	if err := os.WriteFile(filePath, in.Content, 0o644); err != nil {
		return failed("", fmt.Errorf("saving document file: %w", err))
	}

	doc := &models.Document{
		ID:         helper.NewID(),
		Filename:   in.Filename,
		Category:   category,
		FileHash:   hash,
		Language:   language,
		FileSize:   int64(len(in.Content)),
		FilePath:   filePath,
		UploadDate: time.Now().UTC(),
	}
	if err := p.store.CreateDocument(ctx, doc); err != nil {
		return failed("", err)
	}

	if err := p.mirror.UpsertDocument(ctx, *doc); err != nil {
		log.Warn().Err(err).Str("document_id", doc.ID).Msg("Graph mirror upsert failed")
	}

	log.Info().Str("document_id", doc.ID).Str("filename", doc.Filename).Str("language", language).Msg("Document created")
	return Result{DocumentID: doc.ID, Status: StatusCreated}
}

// Process extracts, chunks, embeds and persists one document's chunk set.
// Idempotent: an already processed document is a no-op. Either all chunks
// are saved or none; a failure aborts only this document.
func (p *Pipeline) Process(ctx context.Context, documentID string) Result {
	doc, err := p.store.DocumentByID(ctx, documentID)
	if err != nil {
		return failed(documentID, err)
	}
	if doc.LastProcessed != nil {
		return Result{DocumentID: documentID, Status: StatusProcessed}
	}

	text, err := p.extractor.ExtractFile(doc.FilePath)
	if err != nil {
		return failed(documentID, err)
	}

	pieces := chunker.Split(text, doc.Language, p.opts.ChunkSizeWords, p.opts.ChunkOverlapWord)

	chunks := make([]models.Chunk, len(pieces))
	if len(pieces) > 0 {
		texts := make([]string, len(pieces))
		for i, piece := range pieces {
			texts[i] = piece.Content
		}
		vectors, err := p.embedder.EmbedPassages(ctx, texts, doc.Language)
		if err != nil {
			return failed(documentID, fmt.Errorf("embedding chunks: %w", err))
		}
		now := time.Now().UTC()
		for i, piece := range pieces {
			chunks[i] = models.Chunk{
				ID:         helper.NewID(),
				DocumentID: doc.ID,
				Index:      piece.Index,
				Content:    piece.Content,
				Language:   piece.Language,
				WordCount:  piece.WordCount,
				Embedding:  vectors[i],
				CreatedAt:  now,
			}
		}
	}

	if err := p.store.SaveChunks(ctx, doc.ID, chunks); err != nil {
		return failed(documentID, err)
	}
	processedAt := time.Now().UTC()
	if err := p.store.MarkProcessed(ctx, doc.ID, processedAt); err != nil {
		return failed(documentID, err)
	}

	if p.index != nil {
		if err := p.index.Add(ctx, *doc, chunks); err != nil {
			log.Warn().Err(err).Str("document_id", doc.ID).Msg("Vector index mirror failed")
		}
	}
	if err := p.mirror.UpsertChunks(ctx, *doc, chunks); err != nil {
		log.Warn().Err(err).Str("document_id", doc.ID).Msg("Graph mirror upsert failed")
	}

	log.Info().Str("document_id", doc.ID).Str("filename", doc.Filename).Int("chunks", len(chunks)).Msg("Document processed")
	return Result{DocumentID: doc.ID, Status: StatusProcessed, Chunks: len(chunks)}
}

// Delete removes the document, its chunks (cascade), its file and its
// mirror entries.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	doc, err := p.store.DocumentByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", doc.FilePath).Msg("Removing document file failed")
		}
	}
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if p.index != nil {
		if err := p.index.DeleteDocument(ctx, documentID); err != nil {
			log.Warn().Err(err).Str("document_id", documentID).Msg("Vector index delete failed")
		}
	}
	if err := p.mirror.DeleteDocument(ctx, documentID); err != nil {
		log.Warn().Err(err).Str("document_id", documentID).Msg("Graph mirror delete failed")
	}
	return nil
}
