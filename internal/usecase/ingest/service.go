// Package ingest turns source documents into stored passages: normalize,
// chunk, extract keywords, embed, bulk upsert.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	"github.com/marysss1/QiAIchemy-backend/internal/textutil"
)

const (
	// DefaultChunkSize is the chunk window in runes.
	DefaultChunkSize = 480
	// DefaultChunkOverlap is the rune overlap between consecutive chunks.
	DefaultChunkOverlap = 80
)

// Section is a titled span of source text, typically one markdown heading.
type Section struct {
	Title string
	Text  string
}

// Source is one ingestable document.
type Source struct {
	ID       string
	Title    string
	Path     string
	Sections []Section
}

// Result summarizes one source ingestion.
type Result struct {
	SourceID    string
	Chunks      int
	Deleted     int
	TotalTokens int
}

// Service ingests source documents into the passage store.
type Service struct {
	store        store
	embed        Embedder
	logger       *zap.Logger
	chunkSize    int
	chunkOverlap int
	now          func() time.Time
}

// New creates an ingest service. embed may be nil; passages are then stored
// without embeddings and retrieval runs in lexical-only mode.
func New(s store, embed Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:        s,
		embed:        embed,
		logger:       logger,
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		now:          time.Now,
	}
}

// WithChunking overrides the chunk window and overlap.
func (s *Service) WithChunking(size, overlap int) *Service {
	if size > 0 {
		s.chunkSize = size
	}
	if overlap >= 0 && overlap < s.chunkSize {
		s.chunkOverlap = overlap
	}
	return s
}

type chunk struct {
	sectionTitle string
	text         string
}

// IngestSource replaces all stored passages of a source with freshly chunked
// and embedded ones. An embedding failure aborts the whole source so the
// store never holds a half-embedded document.
func (s *Service) IngestSource(ctx context.Context, src Source) (Result, error) {
	if src.ID == "" {
		return Result{}, fmt.Errorf("%w: source id is required", domain.ErrInvalidRequest)
	}

	chunks := s.cutChunks(src.Sections)

	if len(chunks) == 0 {
		deleted, err := s.store.DeleteBySource(ctx, src.ID)
		if err != nil {
			return Result{}, fmt.Errorf("delete empty source: %w", err)
		}
		s.logger.Info("Source emptied",
			zap.String("source_id", src.ID),
			zap.Int("deleted", deleted),
		)
		return Result{SourceID: src.ID, Deleted: deleted}, nil
	}

	embeddings, tokens, err := s.embedChunks(ctx, chunks)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	passages := make([]dompas.Passage, 0, len(chunks))
	for i, c := range chunks {
		p, err := dompas.New(
			src.ID, src.Title, src.Path, c.sectionTitle,
			i, c.text,
			embeddingAt(embeddings, i), textutil.TokenizeForSearch(c.text),
			now,
		)
		if err != nil {
			return Result{}, fmt.Errorf("build passage %s:%d: %w", src.ID, i, err)
		}
		passages = append(passages, p)
	}

	deleted, err := s.store.DeleteBySource(ctx, src.ID)
	if err != nil {
		return Result{}, fmt.Errorf("delete stale passages: %w", err)
	}
	if err := s.store.UpsertBatch(ctx, passages); err != nil {
		return Result{}, fmt.Errorf("upsert passages: %w", err)
	}

	s.logger.Info("Source ingested",
		zap.String("source_id", src.ID),
		zap.Int("chunks", len(passages)),
		zap.Int("deleted", deleted),
		zap.Int("total_tokens", tokens),
	)

	return Result{
		SourceID:    src.ID,
		Chunks:      len(passages),
		Deleted:     deleted,
		TotalTokens: tokens,
	}, nil
}

// cutChunks normalizes and windows every section, keeping the owning section
// title with each chunk. Chunk indices run across the whole source.
func (s *Service) cutChunks(sections []Section) []chunk {
	var chunks []chunk
	for _, sec := range sections {
		for _, text := range textutil.SplitIntoChunks(sec.Text, s.chunkSize, s.chunkOverlap) {
			chunks = append(chunks, chunk{sectionTitle: sec.Title, text: text})
		}
	}
	return chunks
}

func (s *Service) embedChunks(ctx context.Context, chunks []chunk) ([][]float32, int, error) {
	if s.embed == nil {
		return nil, 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}

	res, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(res.Embeddings) != len(chunks) {
		return nil, 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(res.Embeddings), len(chunks))
	}
	return res.Embeddings, res.TotalTokens, nil
}

func embeddingAt(embeddings [][]float32, i int) []float32 {
	if i < len(embeddings) {
		return embeddings[i]
	}
	return nil
}
