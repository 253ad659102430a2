package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alanlin8901/special-happiness/pkg/document"
	"github.com/alanlin8901/special-happiness/pkg/embedder"
	"github.com/alanlin8901/special-happiness/pkg/observability"
	"github.com/alanlin8901/special-happiness/pkg/vector"
)

// ChunkID derives a stable point ID from a chunk's source and index, so
// re-ingesting the same file replaces its points instead of duplicating them.
func ChunkID(source string, index string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+index)).String()
}

// chunkID derives the point ID of a document without one. The source falls
// back from file_path to file_name; when either the source or the chunk
// index is missing, the content joins the seed so distinct chunks never share
// an ID.
func chunkID(d document.Document) string {
	source := d.Metadata[document.MetaFilePath]
	if source == "" {
		source = d.Metadata[document.MetaFileName]
	}
	index := d.Metadata[document.MetaChunkIndex]
	if source == "" || index == "" {
		index += "#" + d.Content
	}
	return ChunkID(source, index)
}

// Pipeline embeds documents and writes them to a vector collection.
type Pipeline struct {
	embedder  embedder.Embedder
	store     vector.Provider
	batchSize int
	metrics   *observability.Metrics
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithBatchSize sets how many chunks are embedded and upserted together.
func WithBatchSize(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithPipelineMetrics records indexed chunks on m.
func WithPipelineMetrics(m *observability.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates a pipeline writing through store.
func NewPipeline(emb embedder.Embedder, store vector.Provider, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{embedder: emb, store: store, batchSize: 64}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IndexOptions controls one Index call.
type IndexOptions struct {
	Collection string

	// Recreate drops the collection before writing.
	Recreate bool
}

// Index normalizes and unifies docs, embeds them in batches and upserts them
// into the collection. It returns the number of points written.
func (p *Pipeline) Index(ctx context.Context, docs []document.Document, opts IndexOptions) (n int, err error) {
	if len(docs) == 0 {
		return 0, ErrNoChunks
	}
	if opts.Collection == "" {
		return 0, fmt.Errorf("collection is required")
	}

	ctx, span := observability.Tracer(observability.ScopeIngest).Start(ctx, "ingest.index",
		trace.WithAttributes(
			attribute.String("ingest.collection", opts.Collection),
			attribute.Int("ingest.documents", len(docs)),
			attribute.Bool("ingest.recreate", opts.Recreate),
		),
	)
	defer func() {
		span.SetAttributes(attribute.Int("ingest.points", n))
		observability.EndSpan(span, err)
	}()

	start := time.Now()
	docs = document.Unify(document.NormalizeAll(docs))
	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = chunkID(docs[i])
		}
	}

	if opts.Recreate {
		slog.Info("Recreating collection", "collection", opts.Collection, "store", p.store.Name())
		if err := p.store.DropCollection(ctx, opts.Collection); err != nil {
			return 0, fmt.Errorf("failed to drop collection: %w", err)
		}
	}
	if err := p.store.EnsureCollection(ctx, opts.Collection, p.embedder.Dimension()); err != nil {
		return 0, fmt.Errorf("failed to prepare collection: %w", err)
	}

	for lo := 0; lo < len(docs); lo += p.batchSize {
		hi := min(lo+p.batchSize, len(docs))
		batch := docs[lo:hi]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return n, fmt.Errorf("failed to embed chunks %d-%d: %w", lo, hi-1, err)
		}

		points := make([]vector.Point, len(batch))
		for i, d := range batch {
			points[i] = vector.Point{ID: d.ID, Vector: vectors[i], Content: d.Content, Metadata: d.Metadata}
		}
		if err := p.store.Upsert(ctx, opts.Collection, points); err != nil {
			return n, fmt.Errorf("failed to upsert chunks %d-%d: %w", lo, hi-1, err)
		}
		n += len(points)
		slog.Debug("Indexed batch", "collection", opts.Collection, "points", n, "total", len(docs))
	}

	p.metrics.RecordIngest(ctx, opts.Collection, n)
	slog.Info("Indexed collection",
		"collection", opts.Collection,
		"points", n,
		"store", p.store.Name(),
		"duration", time.Since(start))
	return n, nil
}

// IndexDirectory splits dir with s and indexes the chunks.
func (p *Pipeline) IndexDirectory(ctx context.Context, s *Splitter, dir string, opts IndexOptions) (int, error) {
	docs, err := s.SplitAll(ctx, dir)
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("%w: every file in %s failed or was empty", ErrNoChunks, dir)
	}
	return p.Index(ctx, docs, opts)
}
