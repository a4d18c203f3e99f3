// Package scanner walks the documents folder and feeds supported files
// into the ingestion pipeline; watch mode picks up new files as they
// appear.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"docchat/internal/extract"
	"docchat/internal/ingest"
	"docchat/internal/worker"
)

type Scanner struct {
	pipeline *ingest.Pipeline
	pool     *worker.Pool
	root     string
}

func New(pipeline *ingest.Pipeline, pool *worker.Pool, root string) *Scanner {
	return &Scanner{pipeline: pipeline, pool: pool, root: root}
}

// Scan walks the folder, ingests supported files that are not already
// known (content hash skip) and schedules their processing. The directory
// relative to the root is the category; files at the root fall into
// "general". Returns the number of newly created documents.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(s.root, 0o755); err != nil {
			return 0, err
		}
		return 0, nil
	}

	created := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !extract.Supported(d.Name()) {
			return nil
		}
		if s.ingestFile(ctx, path) {
			created++
		}
		return nil
	})
	return created, err
}

// Watch blocks, ingesting supported files created under the root until
// the context is cancelled.
func (s *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(s.root); err != nil {
		return err
	}
	// watch existing category subdirectories too
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := watcher.Add(filepath.Join(s.root, e.Name())); err != nil {
				log.Warn().Err(err).Str("dir", e.Name()).Msg("Watching category folder failed")
			}
		}
	}

	log.Info().Str("root", s.root).Msg("Watching documents folder")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if err := watcher.Add(event.Name); err != nil {
					log.Warn().Err(err).Str("dir", event.Name).Msg("Watching new folder failed")
				}
				continue
			}
			if extract.Supported(event.Name) {
				s.ingestFile(ctx, event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

// ingestFile reads one file and runs it through the pipeline; reports
// whether a new document was created.
func (s *Scanner) ingestFile(ctx context.Context, path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Reading document failed")
		return false
	}

	category := "general"
	if rel, err := filepath.Rel(s.root, path); err == nil {
		if dir := filepath.Dir(rel); dir != "." {
			category = filepath.Base(dir)
		}
	}

	result := s.pipeline.Ingest(ctx, ingest.Input{
		Content:  content,
		Filename: filepath.Base(path),
		Category: category,
		Language: extract.DetectLanguage(string(content)),
	})
	switch result.Status {
	case ingest.StatusCreated:
		if err := s.pool.Submit(ctx, result.DocumentID); err != nil {
			log.Error().Err(err).Str("document_id", result.DocumentID).Msg("Scheduling processing failed")
		}
		return true
	case ingest.StatusFailed:
		log.Error().Err(result.Err).Str("path", path).Msg("Ingesting document failed")
	}
	return false
}
