package retriever

import (
	"context"
	"sort"

	"docchat/internal/embedding"
	"docchat/internal/models"
	"docchat/internal/store"
)

// ChunkSource yields the candidate chunks for one retrieval. Each call
// reads a fresh snapshot; there is no shared in-memory index.
type ChunkSource interface {
	ListChunks(ctx context.Context, language, category string) ([]store.Candidate, error)
}

// Retriever ranks stored chunks against a query vector and applies the
// similarity threshold and result cap. Thresholding before truncation is a
// precision-over-recall policy: irrelevant chunks must not reach the
// generator.
type Retriever struct {
	source     ChunkSource
	maxResults int
	threshold  float64
}

func New(source ChunkSource, maxResults int, threshold float64) *Retriever {
	return &Retriever{source: source, maxResults: maxResults, threshold: threshold}
}

// Retrieve returns at most maxResults chunks with similarity >= threshold,
// ordered by descending similarity. Ties break by ascending chunk index,
// then ascending document ID, so the ordering is reproducible. An empty
// result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, queryVec []float32, language, category string) ([]models.RetrievalResult, error) {
	candidates, err := r.source.ListChunks(ctx, language, category)
	if err != nil {
		return nil, err
	}

	var results []models.RetrievalResult
	for _, c := range candidates {
		sim := embedding.Similarity(queryVec, c.Chunk.Embedding)
		if sim < r.threshold {
			continue
		}
		results = append(results, models.RetrievalResult{
			Chunk:      c.Chunk,
			Document:   c.Document,
			Similarity: sim,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		if results[i].Chunk.Index != results[j].Chunk.Index {
			return results[i].Chunk.Index < results[j].Chunk.Index
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > r.maxResults {
		results = results[:r.maxResults]
	}
	return results, nil
}
