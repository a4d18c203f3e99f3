package ingest

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/embedding"
	"docchat/internal/extract"
	"docchat/internal/models"
	"docchat/internal/store"
	"docchat/internal/store/memstore"
)

type fakeEmbedder struct {
	fail bool
}

func (f *fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, errors.New("embedding backend down")
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		h := fnv.New32a()
		h.Write([]byte(t))
		seed := h.Sum32()
		vecs[i] = []float32{float32(seed%97) + 1, float32(seed%89) + 1}
	}
	return vecs, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func newPipeline(t *testing.T, st store.Store, embedder *fakeEmbedder) *Pipeline {
	t.Helper()
	return NewPipeline(st, extract.New(), embedding.NewWithEmbedder(embedder), nil, nil, Options{
		ChunkSizeWords:   10,
		ChunkOverlapWord: 2,
		DefaultLanguage:  models.LanguageHR,
		DocumentsPath:    t.TempDir(),
		MaxFileSize:      1 << 20,
	})
}

func TestIngestUnsupportedFormat(t *testing.T) {
	p := newPipeline(t, memstore.New(), &fakeEmbedder{})

	res := p.Ingest(context.Background(), Input{Content: []byte("a,b"), Filename: "table.xlsx"})
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, extract.ErrUnsupportedFormat)
}

func TestIngestFileTooLarge(t *testing.T) {
	st := memstore.New()
	p := NewPipeline(st, extract.New(), embedding.NewWithEmbedder(&fakeEmbedder{}), nil, nil, Options{
		DocumentsPath: t.TempDir(),
		MaxFileSize:   4,
	})

	res := p.Ingest(context.Background(), Input{Content: []byte("too large"), Filename: "big.txt"})
	assert.Equal(t, StatusFailed, res.Status)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "too large")
}

func TestIngestCreatesDocumentAndFile(t *testing.T) {
	st := memstore.New()
	p := newPipeline(t, st, &fakeEmbedder{})
	ctx := context.Background()

	res := p.Ingest(ctx, Input{
		Content:  []byte("Pozdrav iz Zagreba."),
		Filename: "pozdrav.txt",
		Category: "travel",
		Language: models.LanguageHR,
	})
	require.NoError(t, res.Err)
	assert.Equal(t, StatusCreated, res.Status)
	require.NotEmpty(t, res.DocumentID)

	doc, err := st.DocumentByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "pozdrav.txt", doc.Filename)
	assert.Equal(t, "travel", doc.Category)
	assert.Equal(t, models.LanguageHR, doc.Language)
	assert.Equal(t, int64(len("Pozdrav iz Zagreba.")), doc.FileSize)
	assert.Nil(t, doc.LastProcessed)

	// file saved under category subfolder
	assert.Equal(t, "travel", filepath.Base(filepath.Dir(doc.FilePath)))
	saved, err := os.ReadFile(doc.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "Pozdrav iz Zagreba.", string(saved))
}

func TestIngestDefaultsLanguageAndCategory(t *testing.T) {
	st := memstore.New()
	p := newPipeline(t, st, &fakeEmbedder{})
	ctx := context.Background()

	res := p.Ingest(ctx, Input{Content: []byte("hello"), Filename: "h.txt", Language: "xx"})
	require.Equal(t, StatusCreated, res.Status)

	doc, err := st.DocumentByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, models.LanguageHR, doc.Language)
	assert.Equal(t, "general", doc.Category)
}

func TestIngestDuplicateContentIsNoOp(t *testing.T) {
	st := memstore.New()
	p := newPipeline(t, st, &fakeEmbedder{})
	ctx := context.Background()

	content := []byte("Same bytes twice.")
	first := p.Ingest(ctx, Input{Content: content, Filename: "one.txt"})
	require.Equal(t, StatusCreated, first.Status)

	// same content under a different name still collides on the hash
	second := p.Ingest(ctx, Input{Content: content, Filename: "two.txt"})
	assert.Equal(t, StatusDuplicate, second.Status)
	assert.Equal(t, first.DocumentID, second.DocumentID)

	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestProcessPersistsChunksAndMarksProcessed(t *testing.T) {
	st := memstore.New()
	p := newPipeline(t, st, &fakeEmbedder{})
	ctx := context.Background()

	text := "The quick brown fox jumps over the lazy dog. A cat sleeps. Birds fly south."
	res := p.Ingest(ctx, Input{Content: []byte(text), Filename: "animals.txt", Language: models.LanguageEN})
	require.Equal(t, StatusCreated, res.Status)

	proc := p.Process(ctx, res.DocumentID)
	require.NoError(t, proc.Err)
	assert.Equal(t, StatusProcessed, proc.Status)
	assert.Equal(t, 2, proc.Chunks)

	chunks := st.Chunks(res.DocumentID)
	require.Len(t, chunks, 2)
	for i, c := range chunks {
		assert.Equal(t, res.DocumentID, c.DocumentID)
		assert.Equal(t, i, c.Index)
		assert.Equal(t, models.LanguageEN, c.Language)
		assert.NotEmpty(t, c.Embedding)
		assert.Equal(t, len(strings.Fields(c.Content)), c.WordCount)
	}

	doc, err := st.DocumentByID(ctx, res.DocumentID)
	require.NoError(t, err)
	require.NotNil(t, doc.LastProcessed)
}

func TestProcessIsIdempotent(t *testing.T) {
	st := memstore.New()
	p := newPipeline(t, st, &fakeEmbedder{})
	ctx := context.Background()

	res := p.Ingest(ctx, Input{Content: []byte("One sentence only."), Filename: "s.txt"})
	require.Equal(t, StatusCreated, res.Status)
	require.Equal(t, StatusProcessed, p.Process(ctx, res.DocumentID).Status)

	chunksBefore := st.Chunks(res.DocumentID)
	again := p.Process(ctx, res.DocumentID)
	assert.Equal(t, StatusProcessed, again.Status)
	assert.Equal(t, 0, again.Chunks)
	assert.Equal(t, chunksBefore, st.Chunks(res.DocumentID))
}

func TestProcessEmbeddingFailureSavesNothing(t *testing.T) {
	st := memstore.New()
	embedder := &fakeEmbedder{}
	p := newPipeline(t, st, embedder)
	ctx := context.Background()

	res := p.Ingest(ctx, Input{Content: []byte("Some text to chunk."), Filename: "fail.txt"})
	require.Equal(t, StatusCreated, res.Status)

	embedder.fail = true
	proc := p.Process(ctx, res.DocumentID)
	assert.Equal(t, StatusFailed, proc.Status)
	require.Error(t, proc.Err)

	// all-or-nothing: no partial chunk set, document stays unprocessed
	assert.Empty(t, st.Chunks(res.DocumentID))
	doc, err := st.DocumentByID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Nil(t, doc.LastProcessed)

	// retry after the backend recovers
	embedder.fail = false
	retry := p.Process(ctx, res.DocumentID)
	assert.Equal(t, StatusProcessed, retry.Status)
	assert.NotEmpty(t, st.Chunks(res.DocumentID))
}

func TestProcessUnknownDocument(t *testing.T) {
	p := newPipeline(t, memstore.New(), &fakeEmbedder{})
	res := p.Process(context.Background(), "no-such-id")
	assert.Equal(t, StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, store.ErrNotFound)
}

func TestDeleteRemovesDocumentFileAndChunks(t *testing.T) {
	st := memstore.New()
	p := newPipeline(t, st, &fakeEmbedder{})
	ctx := context.Background()

	res := p.Ingest(ctx, Input{Content: []byte("Delete me soon."), Filename: "gone.txt"})
	require.Equal(t, StatusCreated, res.Status)
	require.Equal(t, StatusProcessed, p.Process(ctx, res.DocumentID).Status)

	doc, err := st.DocumentByID(ctx, res.DocumentID)
	require.NoError(t, err)

	require.NoError(t, p.Delete(ctx, res.DocumentID))

	_, err = st.DocumentByID(ctx, res.DocumentID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, st.Chunks(res.DocumentID))
	_, err = os.Stat(doc.FilePath)
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteUnknownDocument(t *testing.T) {
	p := newPipeline(t, memstore.New(), &fakeEmbedder{})
	err := p.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
