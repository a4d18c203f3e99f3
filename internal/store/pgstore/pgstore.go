// Package pgstore implements the store contract on Postgres via bun.
// Embedding vectors live in a pgvector column, never a string encoding.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docchat/internal/config"
	"docchat/internal/models"
	"docchat/internal/store"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`

	ID            string     `bun:"id,pk"`
	Filename      string     `bun:"filename,notnull"`
	Category      string     `bun:"category"`
	FileHash      string     `bun:"file_hash,unique"`
	Language      string     `bun:"language,notnull"`
	FileSize      int64      `bun:"file_size"`
	FilePath      string     `bun:"file_path"`
	UploadDate    time.Time  `bun:"upload_date,nullzero,notnull,default:current_timestamp"`
	LastProcessed *time.Time `bun:"last_processed"`
}

type chunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID         string    `bun:"id,pk"`
	DocumentID string    `bun:"document_id,notnull"`
	ChunkIndex int       `bun:"chunk_index,notnull"`
	Content    string    `bun:"content,notnull"`
	Language   string    `bun:"language,notnull"`
	WordCount  int       `bun:"word_count"`
	Embedding  []float32 `bun:"embedding,notnull,type:vector(768)"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`

	Document *documentRow `bun:"rel:belongs-to,join:document_id=id"`
}

type queryRow struct {
	bun.BaseModel `bun:"table:query_history,alias:q"`

	ID            string    `bun:"id,pk"`
	QueryText     string    `bun:"query_text,notnull"`
	ResponseText  string    `bun:"response_text"`
	Language      string    `bun:"language,notnull"`
	LatencyMs     int64     `bun:"latency_ms"`
	FeedbackScore *int      `bun:"feedback_score"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Store is the bun-backed implementation of store.Store.
type Store struct {
	db *bun.DB
}

var _ store.Store = (*Store)(nil)

// Connect opens the Postgres connection described by the config.
func Connect(cfg *config.DatabaseConfig) *Store {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN),
		pgdriver.WithPassword(cfg.Password),
	))
	db := bun.NewDB(sqldb, pgdialect.New())
	if cfg.Debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return &Store{db: db}
}

// NewWithDB wraps an existing bun handle. Used by tests.
func NewWithDB(db *bun.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// Init creates the schema if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*documentRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return wrap(err)
	}
	if _, err := s.db.NewCreateTable().Model((*chunkRow)(nil)).IfNotExists().
		ForeignKey(`("document_id") REFERENCES "documents" ("id") ON DELETE CASCADE`).
		Exec(ctx); err != nil {
		return wrap(err)
	}
	if _, err := s.db.NewCreateTable().Model((*queryRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	row := documentToRow(doc)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) DocumentByID(ctx context.Context, id string) (*models.Document, error) {
	row := new(documentRow)
	err := s.db.NewSelect().Model(row).Where("d.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrap(err)
	}
	return rowToDocument(row), nil
}

func (s *Store) DocumentByHash(ctx context.Context, hash string) (*models.Document, error) {
	row := new(documentRow)
	err := s.db.NewSelect().Model(row).Where("d.file_hash = ?", hash).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrap(err)
	}
	return rowToDocument(row), nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var rows []documentRow
	if err := s.db.NewSelect().Model(&rows).Order("upload_date DESC").Scan(ctx); err != nil {
		return nil, wrap(err)
	}
	docs := make([]models.Document, len(rows))
	for i := range rows {
		docs[i] = *rowToDocument(&rows[i])
	}
	return docs, nil
}

// DeleteDocument removes the document and its chunks in one transaction;
// the cascade also holds at the schema level.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*chunkRow)(nil)).Where("document_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		res, err := tx.NewDelete().Model((*documentRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return wrap(err)
}

func (s *Store) ListChunks(ctx context.Context, language, category string) ([]store.Candidate, error) {
	var rows []chunkRow
	q := s.db.NewSelect().Model(&rows).
		Relation("Document").
		Where("c.language = ?", language).
		Order("c.document_id ASC", "c.chunk_index ASC")
	if category != "" {
		q = q.Where("document.category = ?", category)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, wrap(err)
	}

	candidates := make([]store.Candidate, 0, len(rows))
	for i := range rows {
		c := store.Candidate{Chunk: rowToChunk(&rows[i])}
		if rows[i].Document != nil {
			c.Document = *rowToDocument(rows[i].Document)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Store) SaveChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]chunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = chunkRow{
			ID:         c.ID,
			DocumentID: documentID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Language:   c.Language,
			WordCount:  c.WordCount,
			Embedding:  c.Embedding,
			CreatedAt:  c.CreatedAt,
		}
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	return wrap(err)
}

func (s *Store) MarkProcessed(ctx context.Context, documentID string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*documentRow)(nil)).
		Set("last_processed = ?", at).
		Where("id = ?", documentID).
		Exec(ctx)
	if err != nil {
		return wrap(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) SaveQueryRecord(ctx context.Context, rec *models.QueryRecord) error {
	row := &queryRow{
		ID:            rec.ID,
		QueryText:     rec.QueryText,
		ResponseText:  rec.ResponseText,
		Language:      rec.Language,
		LatencyMs:     rec.LatencyMs,
		FeedbackScore: rec.FeedbackScore,
		CreatedAt:     rec.CreatedAt,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *Store) ListQueryRecords(ctx context.Context, limit int) ([]models.QueryRecord, error) {
	var rows []queryRow
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC").Limit(limit).Scan(ctx); err != nil {
		return nil, wrap(err)
	}
	recs := make([]models.QueryRecord, len(rows))
	for i, r := range rows {
		recs[i] = models.QueryRecord{
			ID:            r.ID,
			QueryText:     r.QueryText,
			ResponseText:  r.ResponseText,
			Language:      r.Language,
			LatencyMs:     r.LatencyMs,
			FeedbackScore: r.FeedbackScore,
			CreatedAt:     r.CreatedAt,
		}
	}
	return recs, nil
}

func (s *Store) UpdateFeedback(ctx context.Context, queryID string, score int) error {
	res, err := s.db.NewUpdate().Model((*queryRow)(nil)).
		Set("feedback_score = ?", score).
		Where("id = ?", queryID).
		Exec(ctx)
	if err != nil {
		return wrap(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func documentToRow(doc *models.Document) *documentRow {
	return &documentRow{
		ID:            doc.ID,
		Filename:      doc.Filename,
		Category:      doc.Category,
		FileHash:      doc.FileHash,
		Language:      doc.Language,
		FileSize:      doc.FileSize,
		FilePath:      doc.FilePath,
		UploadDate:    doc.UploadDate,
		LastProcessed: doc.LastProcessed,
	}
}

func rowToDocument(row *documentRow) *models.Document {
	return &models.Document{
		ID:            row.ID,
		Filename:      row.Filename,
		Category:      row.Category,
		FileHash:      row.FileHash,
		Language:      row.Language,
		FileSize:      row.FileSize,
		FilePath:      row.FilePath,
		UploadDate:    row.UploadDate,
		LastProcessed: row.LastProcessed,
	}
}

func rowToChunk(row *chunkRow) models.Chunk {
	return models.Chunk{
		ID:         row.ID,
		DocumentID: row.DocumentID,
		Index:      row.ChunkIndex,
		Content:    row.Content,
		Language:   row.Language,
		WordCount:  row.WordCount,
		Embedding:  row.Embedding,
		CreatedAt:  row.CreatedAt,
	}
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
