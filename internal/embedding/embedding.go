package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"docchat/internal/config"
)

const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// ModelLoadError means the embedding backend could not be initialized.
// Fatal at startup; the process should not accept traffic.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("loading embedding model %s: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// Service produces role-prefixed, L2-normalized embeddings over a shared
// backend client. The client is stateless at inference; concurrent calls
// are safe.
type Service struct {
	embedder embeddings.Embedder
}

// New constructs the backend client once and verifies it with a probe
// embedding. A failure here is a ModelLoadError and is not recoverable
// per-request.
func New(ctx context.Context, cfg *config.EmbeddingConfig) (*Service, error) {
	var (
		embedder embeddings.Embedder
		err      error
	)
	switch cfg.Provider {
	case "openai":
		embedder, err = newOpenAIEmbedder(cfg)
	default:
		embedder, err = newOllamaEmbedder(cfg)
	}
	if err != nil {
		return nil, &ModelLoadError{Model: cfg.Model, Err: err}
	}

	svc := &Service{embedder: embedder}
	if _, err := svc.EmbedQuery(ctx, "ping", ""); err != nil {
		return nil, &ModelLoadError{Model: cfg.Model, Err: err}
	}
	log.Info().Str("model", cfg.Model).Str("provider", cfg.Provider).Msg("Embedding model loaded")
	return svc, nil
}

// NewWithEmbedder wraps an already constructed backend. Used by callers
// that manage the client themselves and by tests.
func NewWithEmbedder(embedder embeddings.Embedder) *Service {
	return &Service{embedder: embedder}
}

func newOllamaEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

func newOpenAIEmbedder(cfg *config.EmbeddingConfig) (embeddings.Embedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return embeddings.NewEmbedder(llm)
}

// EmbedQuery embeds a single query text. Retrieval models are trained with
// asymmetric query/passage framings, so the query prefix is applied here
// and the passage prefix in EmbedPassages; mixing them up degrades ranking
// silently. The language tag is part of the contract so a backend with
// per-language models can be swapped in without touching callers; the
// current multilingual backend embeds both supported languages the same
// way and ignores it.
func (s *Service) EmbedQuery(ctx context.Context, text, language string) ([]float32, error) {
	vecs, err := s.embed(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedPassages embeds a batch of passage texts. Batching is a performance
// path only: a batch of one produces the same vector as a single call.
// The language tag follows the same contract as EmbedQuery.
func (s *Service) EmbedPassages(ctx context.Context, texts []string, language string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = passagePrefix + t
	}
	return s.embed(ctx, prefixed)
}

// embed funnels single and batch requests through the same backend call so
// both paths produce identical vectors for identical input.
func (s *Service) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	for _, v := range vecs {
		Normalize(v)
	}
	return vecs, nil
}

// Normalize scales v to unit L2 norm in place. Zero vectors are left
// untouched.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// Similarity is the cosine similarity of two vectors, in [-1, 1]. Returns
// 0 when either vector is zero.
func Similarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, x := range a {
		normA += float64(x) * float64(x)
	}
	for _, x := range b {
		normB += float64(x) * float64(x)
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
