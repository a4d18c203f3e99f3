// Package memstore is an in-memory store.Store used for tests and local
// dry runs. Retrieval only reads, so a RWMutex is enough.
package memstore

import (
	"context"
	"sync"
	"time"

	"docchat/internal/models"
	"docchat/internal/store"
)

type Store struct {
	mu      sync.RWMutex
	docs    map[string]models.Document
	chunks  map[string][]models.Chunk // keyed by document ID
	queries map[string]models.QueryRecord
	order   []string // query IDs in insertion order
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:    make(map[string]models.Document),
		chunks:  make(map[string][]models.Chunk),
		queries: make(map[string]models.QueryRecord),
	}
}

func (s *Store) CreateDocument(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = *doc
	return nil
}

func (s *Store) DocumentByID(_ context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &doc, nil
}

func (s *Store) DocumentByHash(_ context.Context, hash string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.docs {
		if doc.FileHash == hash {
			d := doc
			return &d, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListDocuments(_ context.Context) ([]models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]models.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.docs, id)
	delete(s.chunks, id)
	return nil
}

func (s *Store) ListChunks(_ context.Context, language, category string) ([]store.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Candidate
	for docID, chunks := range s.chunks {
		doc := s.docs[docID]
		if category != "" && doc.Category != category {
			continue
		}
		for _, c := range chunks {
			if c.Language != language {
				continue
			}
			out = append(out, store.Candidate{Chunk: c, Document: doc})
		}
	}
	return out, nil
}

func (s *Store) SaveChunks(_ context.Context, documentID string, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[documentID]; !ok {
		return store.ErrNotFound
	}
	saved := make([]models.Chunk, len(chunks))
	copy(saved, chunks)
	s.chunks[documentID] = saved
	return nil
}

func (s *Store) MarkProcessed(_ context.Context, documentID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return store.ErrNotFound
	}
	doc.LastProcessed = &at
	s.docs[documentID] = doc
	return nil
}

func (s *Store) SaveQueryRecord(_ context.Context, rec *models.QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries[rec.ID] = *rec
	s.order = append(s.order, rec.ID)
	return nil
}

func (s *Store) ListQueryRecords(_ context.Context, limit int) ([]models.QueryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.QueryRecord
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.queries[s.order[i]])
	}
	return out, nil
}

func (s *Store) UpdateFeedback(_ context.Context, queryID string, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.queries[queryID]
	if !ok {
		return store.ErrNotFound
	}
	rec.FeedbackScore = &score
	s.queries[queryID] = rec
	return nil
}

// Chunks returns the saved chunk set for a document. Test helper.
func (s *Store) Chunks(documentID string) []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks[documentID]
}
