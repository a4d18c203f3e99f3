package memstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/models"
	"docchat/internal/store"
)

func seed(t *testing.T, st *Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.CreateDocument(ctx, &models.Document{ID: "doc-1", Filename: "a.txt", Category: "science", Language: "en", FileHash: "hash-1"}))
	require.NoError(t, st.CreateDocument(ctx, &models.Document{ID: "doc-2", Filename: "b.txt", Category: "history", Language: "hr", FileHash: "hash-2"}))
	require.NoError(t, st.SaveChunks(ctx, "doc-1", []models.Chunk{
		{ID: "c1", DocumentID: "doc-1", Index: 0, Content: "alpha", Language: "en"},
		{ID: "c2", DocumentID: "doc-1", Index: 1, Content: "beta", Language: "en"},
	}))
	require.NoError(t, st.SaveChunks(ctx, "doc-2", []models.Chunk{
		{ID: "c3", DocumentID: "doc-2", Index: 0, Content: "gama", Language: "hr"},
	}))
}

func TestDocumentLookup(t *testing.T) {
	st := New()
	seed(t, st)
	ctx := context.Background()

	doc, err := st.DocumentByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", doc.Filename)

	_, err = st.DocumentByID(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)

	byHash, err := st.DocumentByHash(ctx, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, "doc-2", byHash.ID)

	_, err = st.DocumentByHash(ctx, "hash-x")
	assert.ErrorIs(t, err, store.ErrNotFound)

	docs, err := st.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDeleteCascadesToChunks(t *testing.T) {
	st := New()
	seed(t, st)
	ctx := context.Background()

	require.NoError(t, st.DeleteDocument(ctx, "doc-1"))
	_, err := st.DocumentByID(ctx, "doc-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, st.Chunks("doc-1"))

	// other documents untouched
	assert.Len(t, st.Chunks("doc-2"), 1)

	assert.ErrorIs(t, st.DeleteDocument(ctx, "doc-1"), store.ErrNotFound)
}

func TestListChunksFilters(t *testing.T) {
	st := New()
	seed(t, st)
	ctx := context.Background()

	en, err := st.ListChunks(ctx, "en", "")
	require.NoError(t, err)
	assert.Len(t, en, 2)
	for _, c := range en {
		assert.Equal(t, "doc-1", c.Document.ID)
	}

	hr, err := st.ListChunks(ctx, "hr", "")
	require.NoError(t, err)
	require.Len(t, hr, 1)
	assert.Equal(t, "c3", hr[0].Chunk.ID)

	none, err := st.ListChunks(ctx, "en", "history")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSaveChunksRequiresDocument(t *testing.T) {
	st := New()
	err := st.SaveChunks(context.Background(), "ghost", []models.Chunk{{ID: "c"}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMarkProcessed(t *testing.T) {
	st := New()
	seed(t, st)
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.MarkProcessed(ctx, "doc-1", at))

	doc, err := st.DocumentByID(ctx, "doc-1")
	require.NoError(t, err)
	require.NotNil(t, doc.LastProcessed)
	assert.Equal(t, at, *doc.LastProcessed)

	assert.ErrorIs(t, st.MarkProcessed(ctx, "ghost", at), store.ErrNotFound)
}

func TestQueryRecordsNewestFirstWithLimit(t *testing.T) {
	st := New()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, st.SaveQueryRecord(ctx, &models.QueryRecord{
			ID:        fmt.Sprintf("q%d", i),
			QueryText: fmt.Sprintf("question %d", i),
		}))
	}

	records, err := st.ListQueryRecords(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "q4", records[0].ID)
	assert.Equal(t, "q3", records[1].ID)
	assert.Equal(t, "q2", records[2].ID)
}

func TestUpdateFeedback(t *testing.T) {
	st := New()
	ctx := context.Background()
	require.NoError(t, st.SaveQueryRecord(ctx, &models.QueryRecord{ID: "q1", QueryText: "q"}))

	require.NoError(t, st.UpdateFeedback(ctx, "q1", 4))
	records, err := st.ListQueryRecords(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, records[0].FeedbackScore)
	assert.Equal(t, 4, *records[0].FeedbackScore)

	// score is the only mutable field and can be overwritten
	require.NoError(t, st.UpdateFeedback(ctx, "q1", 1))
	records, _ = st.ListQueryRecords(ctx, 1)
	assert.Equal(t, 1, *records[0].FeedbackScore)

	assert.ErrorIs(t, st.UpdateFeedback(ctx, "ghost", 3), store.ErrNotFound)
}
