package chunking

import (
	"context"
	"fmt"
	"strings"

	"github.com/namanjain27/EchoPilot/internal/domain"
	"github.com/namanjain27/EchoPilot/internal/logger"
)

// Extractor turns a file into text segments. It returns nil when the file
// cannot be read.
type Extractor interface {
	Extract(path string) []domain.TextSegment
}

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Indexer stores embedded chunks.
type Indexer interface {
	Upsert(ctx context.Context, chunks []domain.DocumentChunk) error
}

// Pipeline extracts, chunks, embeds and indexes files.
type Pipeline struct {
	chunker   *Chunker
	extractor Extractor
	embedder  Embedder
	indexer   Indexer
	log       *logger.Logger
}

// NewPipeline wires an ingestion pipeline.
func NewPipeline(chunker *Chunker, extractor Extractor, embedder Embedder, indexer Indexer, log *logger.Logger) *Pipeline {
	return &Pipeline{chunker: chunker, extractor: extractor, embedder: embedder, indexer: indexer, log: log}
}

// IngestFile indexes every chunk of the file at path and returns how many
// chunks were stored. A file with no extractable text stores nothing.
func (p *Pipeline) IngestFile(ctx context.Context, path string, tags Tags) (int, error) {
	if strings.TrimSpace(tags.TenantID) == "" {
		return 0, fmt.Errorf("tenant_id is required for ingestion")
	}
	segments := p.extractor.Extract(path)
	if len(segments) == 0 {
		p.log.Warn("no text extracted", "path", path)
		return 0, nil
	}

	var chunks []domain.DocumentChunk
	for _, seg := range segments {
		segTags := tags
		if len(seg.Metadata) > 0 {
			segTags.Extra = mergeExtra(tags.Extra, seg.Metadata)
		}
		source := seg.SourceID
		if source == "" {
			source = path
		}
		chunks = append(chunks, p.chunker.Split(source, seg.Text, segTags)...)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	for i := range chunks {
		vec, err := p.embedder.Embed(ctx, chunks[i].Content)
		if err != nil {
			return 0, domain.NewExternalCallError("embeddings", "embed_chunk", err)
		}
		chunks[i].Vector = vec
	}
	if err := p.indexer.Upsert(ctx, chunks); err != nil {
		return 0, domain.NewExternalCallError("vectorstore", "upsert", err)
	}

	p.log.Info("document ingested", "path", path, "chunks", len(chunks), "tenant_id", tags.TenantID)
	return len(chunks), nil
}

func mergeExtra(base, over map[string]string) map[string]string {
	out := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
