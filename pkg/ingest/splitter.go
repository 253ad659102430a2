// Package ingest turns source files and database rows into embedded chunks
// stored in a vector collection.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanlin8901/special-happiness/pkg/config"
	"github.com/alanlin8901/special-happiness/pkg/document"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/utils"
)

var (
	// ErrNoInputFiles is returned when the source directory holds no file
	// with a configured extension.
	ErrNoInputFiles = errors.New("no input files")

	// ErrNoChunks is returned when there is nothing to index.
	ErrNoChunks = errors.New("no chunks to index")
)

// Splitter loads and chunks every matching file of a directory, one
// goroutine per file.
type Splitter struct {
	extensions []string
	chunker    Chunker
	loaders    map[string]Loader
	metrics    *observability.Metrics
}

// SplitterOption customizes a Splitter.
type SplitterOption func(*Splitter)

// WithLoader registers fn for ext, replacing any built-in loader.
func WithLoader(ext string, fn Loader) SplitterOption {
	return func(s *Splitter) {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.loaders[ext] = fn
	}
}

// WithSplitterMetrics records failed files on m.
func WithSplitterMetrics(m *observability.Metrics) SplitterOption {
	return func(s *Splitter) {
		s.metrics = m
	}
}

// NewSplitter creates a splitter from cfg. cfg should have defaults applied.
func NewSplitter(cfg config.IngestConfig, opts ...SplitterOption) *Splitter {
	s := &Splitter{
		extensions: cfg.Extensions,
		chunker:    Chunker{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap},
		loaders:    DefaultLoaders(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SplitAll returns the chunks of every matching file directly inside dir.
// A file that fails to load is logged and contributes no chunks. The order
// of the result is not significant.
func (s *Splitter) SplitAll(ctx context.Context, dir string) ([]document.Document, error) {
	files, err := utils.ListFiles(dir, s.extensions)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s (extensions: %s)", ErrNoInputFiles, dir, strings.Join(s.extensions, ", "))
	}

	start := time.Now()
	results := make([][]document.Document, len(files))

	var g errgroup.Group
	for i, path := range files {
		g.Go(func() error {
			chunks, err := s.splitFile(ctx, path)
			if err != nil {
				slog.Warn("Skipping file", "file", path, "error", err)
				s.metrics.RecordIngestFailure(ctx, strings.ToLower(filepath.Ext(path)))
				return nil
			}
			results[i] = chunks
			return nil
		})
	}
	_ = g.Wait()

	var all []document.Document
	failed := 0
	for _, chunks := range results {
		if chunks == nil {
			failed++
		}
		all = append(all, chunks...)
	}

	slog.Info("Split source files",
		"dir", dir,
		"files", len(files),
		"empty_or_failed", failed,
		"chunks", len(all),
		"duration", time.Since(start))
	return all, nil
}

func (s *Splitter) splitFile(ctx context.Context, path string) (chunks []document.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("loader panicked: %v", r)
		}
	}()

	ext := strings.ToLower(filepath.Ext(path))
	load, ok := s.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("no loader for extension %q", ext)
	}

	pages, err := load(ctx, path)
	if err != nil {
		return nil, err
	}
	chunks = s.chunker.Chunk(pages)
	slog.Debug("Split file", "file", filepath.Base(path), "pages", len(pages), "chunks", len(chunks))
	return chunks, nil
}
