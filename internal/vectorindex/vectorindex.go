// Package vectorindex mirrors persisted chunks into a local chromem-go
// collection and answers retrievals from it. It is an optional
// acceleration path: the store-snapshot retriever remains the source of
// truth and correctness never depends on the mirror.
package vectorindex

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"docchat/internal/config"
	"docchat/internal/models"
)

type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	maxResults int
	threshold  float64
}

const compress = false

// Open creates or reopens the persistent index at the configured path.
func Open(cfg *config.VectorIndexConfig, maxResults int, threshold float64) (*Index, error) {
	db, err := chromem.NewPersistentDB(cfg.Path, compress)
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}
	collection, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("opening collection %s: %w", cfg.Collection, err)
	}
	return &Index{
		db:         db,
		collection: collection,
		maxResults: maxResults,
		threshold:  threshold,
	}, nil
}

// Add mirrors a document's chunk set into the collection. Embeddings are
// already normalized, so chromem's cosine ranking matches the retriever's.
func (ix *Index) Add(ctx context.Context, doc models.Document, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata: map[string]string{
				"document_id": doc.ID,
				"filename":    doc.Filename,
				"category":    doc.Category,
				"language":    c.Language,
				"chunk_index": strconv.Itoa(c.Index),
				"word_count":  strconv.Itoa(c.WordCount),
			},
		}
	}
	if err := ix.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents to vector index: %w", err)
	}
	return nil
}

// DeleteDocument drops all mirrored chunks belonging to the document.
func (ix *Index) DeleteDocument(ctx context.Context, documentID string) error {
	return ix.collection.Delete(ctx, map[string]string{"document_id": documentID}, nil)
}

// Retrieve satisfies the same contract as the snapshot retriever:
// threshold then cap, descending similarity with index/document
// tie-breaks.
func (ix *Index) Retrieve(ctx context.Context, queryVec []float32, language, category string) ([]models.RetrievalResult, error) {
	where := map[string]string{"language": language}
	if category != "" {
		where["category"] = category
	}
	n := ix.maxResults
	if count := ix.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	found, err := ix.collection.QueryEmbedding(ctx, queryVec, n, where, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	var results []models.RetrievalResult
	for _, res := range found {
		sim := float64(res.Similarity)
		if sim < ix.threshold {
			continue
		}
		index, _ := strconv.Atoi(res.Metadata["chunk_index"])
		wordCount, _ := strconv.Atoi(res.Metadata["word_count"])
		results = append(results, models.RetrievalResult{
			Chunk: models.Chunk{
				ID:         res.ID,
				DocumentID: res.Metadata["document_id"],
				Index:      index,
				Content:    res.Content,
				Language:   res.Metadata["language"],
				WordCount:  wordCount,
				Embedding:  res.Embedding,
			},
			Document: models.Document{
				ID:       res.Metadata["document_id"],
				Filename: res.Metadata["filename"],
				Category: res.Metadata["category"],
				Language: res.Metadata["language"],
			},
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
	return results, nil
}
