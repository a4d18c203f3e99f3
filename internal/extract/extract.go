package extract

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ErrUnsupportedFormat is returned for any extension outside the supported
// set (.pdf, .docx, .txt, .md).
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ExtractionError wraps the original cause of a failed extraction (corrupt
// file, I/O error). Retry policy belongs to the caller, not this layer.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting text from %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

var (
	htmlTagRe  = regexp.MustCompile(`<[^<]+?>`)
	docxParaRe = regexp.MustCompile(`</w:p>`)
	xmlTagRe   = regexp.MustCompile(`<[^>]+>`)
)

// SupportedExtensions lists the extractable formats, lowercase with dot.
var SupportedExtensions = []string{".pdf", ".docx", ".txt", ".md"}

// Supported reports whether the filename's extension is one of the
// extractable formats.
func Supported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Extractor converts raw document bytes plus a declared format into plain
// text. Stateless, safe for concurrent use.
type Extractor struct {
	md goldmark.Markdown
}

func New() *Extractor {
	return &Extractor{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Extract dispatches on the filename's extension and returns the plain
// text of the document.
func (e *Extractor) Extract(content []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return e.extractPDF(content, filename)
	case ".docx":
		return e.extractDOCX(content, filename)
	case ".txt":
		return e.extractText(content), nil
	case ".md":
		return e.extractMarkdown(content, filename)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// ExtractFile reads the file and extracts its text.
func (e *Extractor) ExtractFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", &ExtractionError{Filename: filepath.Base(path), Err: err}
	}
	return e.Extract(content, path)
}

// extractPDF concatenates per-page text with newline separators, in page
// order.
func (e *Extractor) extractPDF(content []byte, filename string) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{Filename: filepath.Base(filename), Err: err}
	}

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", &ExtractionError{Filename: filepath.Base(filename), Err: err}
		}
		pages = append(pages, pageText)
	}
	return strings.TrimSpace(strings.Join(pages, "\n")), nil
}

// extractDOCX concatenates paragraph texts in document order with newline
// separators.
func (e *Extractor) extractDOCX(content []byte, filename string) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{Filename: filepath.Base(filename), Err: err}
	}
	defer r.Close()

	raw := r.Editable().GetContent()
	var paragraphs []string
	for _, para := range docxParaRe.Split(raw, -1) {
		text := html.UnescapeString(xmlTagRe.ReplaceAllString(para, ""))
		text = strings.TrimSpace(text)
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// extractText decodes UTF-8, falling back to Latin-1 so legacy-encoded
// documents still produce best-effort text.
func (e *Extractor) extractText(content []byte) string {
	if utf8.Valid(content) {
		return strings.TrimSpace(string(content))
	}
	runes := make([]rune, len(content))
	for i, b := range content {
		runes[i] = rune(b)
	}
	return strings.TrimSpace(string(runes))
}

// extractMarkdown renders to HTML, then strips the markup tags.
func (e *Extractor) extractMarkdown(content []byte, filename string) (string, error) {
	var buf bytes.Buffer
	if err := e.md.Convert(content, &buf); err != nil {
		return "", &ExtractionError{Filename: filepath.Base(filename), Err: err}
	}
	text := htmlTagRe.ReplaceAllString(buf.String(), "")
	return strings.TrimSpace(html.UnescapeString(text)), nil
}
