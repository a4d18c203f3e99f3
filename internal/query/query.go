package query

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"docchat/internal/embedding"
	"docchat/internal/generate"
	"docchat/internal/helper"
	"docchat/internal/models"
	"docchat/internal/store"
)

// Retriever ranks stored chunks against a query vector. Satisfied by the
// store-snapshot retriever and by the chromem-backed index.
type Retriever interface {
	Retrieve(ctx context.Context, queryVec []float32, language, category string) ([]models.RetrievalResult, error)
}

// Service is the per-request query pipeline: embed the query, retrieve,
// generate, record history. Requests are independent; retrieval only
// reads, so concurrent queries against the same store and model are safe.
type Service struct {
	store           store.Store
	embedder        *embedding.Service
	retriever       Retriever
	generator       *generate.Generator
	defaultLanguage string
}

func NewService(st store.Store, embedder *embedding.Service, retriever Retriever, generator *generate.Generator, defaultLanguage string) *Service {
	if defaultLanguage == "" {
		defaultLanguage = models.LanguageHR
	}
	return &Service{
		store:           st,
		embedder:        embedder,
		retriever:       retriever,
		generator:       generator,
		defaultLanguage: defaultLanguage,
	}
}

// Process answers one query and persists the history record. Retrieval
// coming back empty is not an error: the generator's "don't know" path
// produces the answer and the sources list stays empty.
func (s *Service) Process(ctx context.Context, queryText, language, category string) (*models.QueryResponse, error) {
	start := time.Now()
	if !models.SupportedLanguage(language) {
		language = s.defaultLanguage
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, queryText, language)
	if err != nil {
		return nil, err
	}

	results, err := s.retriever.Retrieve(ctx, queryVec, language, category)
	if err != nil {
		return nil, err
	}

	answer := s.generator.Generate(ctx, queryText, results, language)
	latency := time.Since(start).Milliseconds()

	sources := make([]models.Source, len(results))
	for i, r := range results {
		sources[i] = models.Source{
			DocumentID: r.Document.ID,
			Filename:   r.Document.Filename,
			ChunkIndex: r.Chunk.Index,
			Similarity: r.Similarity,
		}
	}

	rec := &models.QueryRecord{
		ID:           helper.NewID(),
		QueryText:    queryText,
		ResponseText: answer,
		Language:     language,
		LatencyMs:    latency,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.SaveQueryRecord(ctx, rec); err != nil {
		// answer is already generated, history is best-effort
		log.Warn().Err(err).Msg("Saving query record failed")
	}

	return &models.QueryResponse{
		Query:     queryText,
		Answer:    answer,
		Sources:   sources,
		LatencyMs: latency,
		Language:  language,
	}, nil
}

// Stream answers one query as an ordered sequence of answer fragments.
// The concatenation of fragments matches the non-streaming answer
// best-effort. Pre-generation failures surface as a single terminal
// fragment so a consumer never needs a separate failure channel.
func (s *Service) Stream(ctx context.Context, queryText, language, category string) <-chan string {
	if !models.SupportedLanguage(language) {
		language = s.defaultLanguage
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, queryText, language)
	if err != nil {
		return errorStream(ctx, err)
	}

	results, err := s.retriever.Retrieve(ctx, queryVec, language, category)
	if err != nil {
		return errorStream(ctx, err)
	}

	return s.generator.Stream(ctx, queryText, results, language)
}

func errorStream(ctx context.Context, err error) <-chan string {
	out := make(chan string, 1)
	log.Error().Err(err).Msg("Streaming query failed before generation")
	select {
	case out <- "Error: " + err.Error():
	case <-ctx.Done():
	}
	close(out)
	return out
}

// History returns the most recent query records, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]models.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListQueryRecords(ctx, limit)
}

// Feedback sets the feedback score on an answered query, the only
// mutation a query record permits.
func (s *Service) Feedback(ctx context.Context, queryID string, score int) error {
	return s.store.UpdateFeedback(ctx, queryID, score)
}
