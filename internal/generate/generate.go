package generate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"docchat/internal/config"
	"docchat/internal/models"
)

// Generator assembles a grounded prompt from retrieved chunks and calls
// the chat model, whole or streamed. A missing backend is a valid
// configuration state: both modes then return a fixed informational
// answer, never an error.
type Generator struct {
	llm             llms.Model
	temperature     float64
	maxTokens       int
	timeout         time.Duration
	defaultLanguage string
}

// New builds the backend client once at startup. Without an API key the
// generator runs in not-configured mode.
func New(cfg *config.InferenceConfig, defaultLanguage string) (*Generator, error) {
	g := &Generator{
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		timeout:         cfg.Timeout(),
		defaultLanguage: defaultLanguage,
	}
	if cfg.Key == "" {
		log.Warn().Msg("Inference API key not provided, query answers will be limited")
		return g, nil
	}

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing inference client: %w", err)
	}
	g.llm = llm
	return g, nil
}

// NewWithModel wraps an existing chat model. Used by tests.
func NewWithModel(llm llms.Model, timeout time.Duration, defaultLanguage string) *Generator {
	return &Generator{
		llm:             llm,
		temperature:     0.7,
		maxTokens:       2000,
		timeout:         timeout,
		defaultLanguage: defaultLanguage,
	}
}

// Configured reports whether a generation backend is available.
func (g *Generator) Configured() bool { return g.llm != nil }

// Generate returns the complete answer for the query grounded in the
// ranked chunks. With zero chunks the context is empty but the query is
// still sent; the system prompt's "say you don't know" clause is the
// designed fallback. Upstream failures are converted into a user-visible
// message, not an error.
func (g *Generator) Generate(ctx context.Context, query string, chunks []models.RetrievalResult, language string) string {
	if g.llm == nil {
		return models.NotConfiguredAnswer
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.llm.GenerateContent(ctx, g.messages(query, chunks, language),
		llms.WithTemperature(g.temperature),
		llms.WithMaxTokens(g.maxTokens),
	)
	if err != nil {
		log.Error().Err(err).Msg("Upstream generation failed")
		return models.GenerationErrorPrefix + err.Error()
	}
	if len(resp.Choices) == 0 {
		return models.GenerationErrorPrefix + "empty response"
	}
	return resp.Choices[0].Content
}

// Stream issues a streaming request and forwards each fragment in arrival
// order. The channel closes when the model signals completion; if the
// upstream call fails, one terminal fragment carries the error message.
// Cancelling ctx stops fragment production promptly.
func (g *Generator) Stream(ctx context.Context, query string, chunks []models.RetrievalResult, language string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		if g.llm == nil {
			emit(ctx, out, models.NotConfiguredAnswer)
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		_, err := g.llm.GenerateContent(callCtx, g.messages(query, chunks, language),
			llms.WithTemperature(g.temperature),
			llms.WithMaxTokens(g.maxTokens),
			llms.WithStreamingFunc(func(ctx context.Context, fragment []byte) error {
				if len(fragment) == 0 {
					return nil
				}
				if !emit(ctx, out, string(fragment)) {
					return ctx.Err()
				}
				return nil
			}),
		)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Upstream generation failed mid-stream")
			emit(ctx, out, models.GenerationErrorPrefix+err.Error())
		}
	}()

	return out
}

// emit delivers one fragment unless the consumer is gone.
func emit(ctx context.Context, out chan<- string, fragment string) bool {
	select {
	case out <- fragment:
		return true
	case <-ctx.Done():
		return false
	}
}

// messages builds the system + user message pair: a language-keyed system
// instruction and the grounding context followed by the question.
func (g *Generator) messages(query string, chunks []models.RetrievalResult, language string) []llms.MessageContent {
	systemPrompt, ok := models.SystemPrompts[language]
	if !ok {
		systemPrompt = models.SystemPrompts[g.defaultLanguage]
	}
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			fmt.Sprintf(models.UserPromptTemplate, groundingContext(chunks), query)),
	}
}

// groundingContext concatenates, in retrieval order, each chunk's
// owning-document label and content, separated by blank lines.
func groundingContext(chunks []models.RetrievalResult) string {
	entries := make([]string, len(chunks))
	for i, c := range chunks {
		entries[i] = fmt.Sprintf(models.ContextEntryTemplate, c.Document.Filename, c.Chunk.Content)
	}
	return strings.Join(entries, "\n\n")
}
