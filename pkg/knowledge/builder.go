package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"careassist/internal/observability"
	"careassist/pkg/artifact"
	"careassist/pkg/language"
)

// Context is the reusable grounding context built from one artifact.
// Exactly one of Index or Table is set, depending on the artifact kind.
// Language is the detected source language of a document, empty when
// detection was unreliable or the artifact is tabular.
type Context struct {
	Kind     artifact.Kind
	Language string
	Index    *Index
	Table    *TableSummary
}

// Close releases any resources the context holds.
func (c *Context) Close() error {
	if c.Index != nil {
		return c.Index.Destroy()
	}
	return nil
}

// BuilderConfig controls chunking and retrieval parameters.
type BuilderConfig struct {
	ChunkSize    int
	ChunkOverlap int
	HeadRows     int
	IndexDir     string
}

// Builder turns raw artifacts into grounding contexts. Document
// artifacts become a chunk index, tabular artifacts become a structural
// summary.
type Builder struct {
	cfg      BuilderConfig
	embedder EmbeddingProvider
	logger   zerolog.Logger
}

// NewBuilder creates a Builder. embedder may be nil, in which case
// document indexes are keyword-only.
func NewBuilder(cfg BuilderConfig, embedder EmbeddingProvider, logger zerolog.Logger) (*Builder, error) {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.HeadRows <= 0 {
		cfg.HeadRows = 5
	}
	if cfg.IndexDir == "" {
		cfg.IndexDir = os.TempDir()
	}

	if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	return &Builder{cfg: cfg, embedder: embedder, logger: logger}, nil
}

// Build constructs the context for art. Returns ErrEmptyContent when the
// artifact yields no usable content.
func (b *Builder) Build(ctx context.Context, art *artifact.Artifact) (*Context, error) {
	start := time.Now()
	defer func() {
		observability.RecordContextBuild(string(art.Kind), time.Since(start))
	}()

	switch art.Kind {
	case artifact.KindTable:
		return b.buildTable(art)
	default:
		return b.buildDocument(ctx, art)
	}
}

func (b *Builder) buildDocument(ctx context.Context, art *artifact.Artifact) (*Context, error) {
	text, err := ExtractText(art.Bytes, art.MIME)
	if err != nil {
		return nil, err
	}

	chunks := SplitText(text, b.cfg.ChunkSize, b.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrEmptyContent
	}

	lang := ""
	if detected, reliable := language.Detect(text); reliable {
		lang = detected
	}

	indexPath := filepath.Join(b.cfg.IndexDir, uuid.New().String()+".db")
	idx, err := NewIndex(indexPath, b.embedder, b.logger)
	if err != nil {
		return nil, err
	}

	if err := idx.Add(ctx, chunks); err != nil {
		idx.Destroy()
		return nil, err
	}

	b.logger.Debug().
		Str("filename", art.Filename).
		Int("chunks", len(chunks)).
		Str("language", lang).
		Msg("Built document index")

	return &Context{Kind: artifact.KindDocument, Language: lang, Index: idx}, nil
}

func (b *Builder) buildTable(art *artifact.Artifact) (*Context, error) {
	summary, err := BuildTableSummary(art.Bytes, b.cfg.HeadRows)
	if err != nil {
		return nil, err
	}

	b.logger.Debug().
		Str("filename", art.Filename).
		Int("rows", summary.Rows).
		Int("cols", summary.Cols).
		Msg("Built table summary")

	return &Context{Kind: artifact.KindTable, Table: summary}, nil
}
