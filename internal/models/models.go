package models

import "time"

const (
	LanguageHR = "hr"
	LanguageEN = "en"
)

// SupportedLanguage reports whether the tag is one of the two languages
// the system serves.
func SupportedLanguage(lang string) bool {
	return lang == LanguageHR || lang == LanguageEN
}

// Document is the ingestion-side record of an uploaded or scanned file.
// Immutable after creation except for LastProcessed, which is set once the
// document's chunks have been persisted.
type Document struct {
	ID            string
	Filename      string
	Category      string
	FileHash      string
	Language      string
	FileSize      int64
	FilePath      string
	UploadDate    time.Time
	LastProcessed *time.Time
}

// Chunk is a bounded, overlap-linked segment of a document's text, the
// unit of retrieval. Chunk indices within a document are contiguous
// starting at 0 and never reordered.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Language   string
	WordCount  int
	Embedding  []float32
	CreatedAt  time.Time
}

// RetrievalResult is an ephemeral per-query ranking entry; it is never
// persisted.
type RetrievalResult struct {
	Chunk      Chunk
	Document   Document
	Similarity float64
}

// Source identifies where a retrieved chunk came from, for citation in
// query responses.
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
}

// QueryResponse is the full answer to one query.
type QueryResponse struct {
	Query     string   `json:"query"`
	Answer    string   `json:"answer"`
	Sources   []Source `json:"sources"`
	LatencyMs int64    `json:"latency_ms"`
	Language  string   `json:"language"`
}

// QueryRecord is the persisted history entry for one answered query.
// FeedbackScore is the only field mutable after creation.
type QueryRecord struct {
	ID            string
	QueryText     string
	ResponseText  string
	Language      string
	LatencyMs     int64
	FeedbackScore *int
	CreatedAt     time.Time
}
