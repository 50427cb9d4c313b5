// Package qialchemy embeds the TCM question-answering retrieval engine in a
// Go program: connect to a Redis-compatible store, wire the three retrieval
// channels and the ingest pipeline, and query without running the HTTP server.
package qialchemy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/db"
	dbRedis "github.com/marysss1/QiAIchemy-backend/internal/db/redis"
	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	"github.com/marysss1/QiAIchemy-backend/internal/graph"
	passagerepo "github.com/marysss1/QiAIchemy-backend/internal/repository/passage"
	ingestuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/ingest"
	retrievaluc "github.com/marysss1/QiAIchemy-backend/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// EmbeddingResult is the outcome of embedding one text.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Embedder vectorizes text. Implementations typically call an external
// embedding API.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Scores breaks a passage's ranking down by retrieval channel.
type Scores struct {
	Lexical   float64
	Embedding float64
	Graph     float64
	RRF       float64
	Final     float64
}

// Passage is one retrieved chunk of corpus text.
type Passage struct {
	SourceID     string
	SourceTitle  string
	SectionTitle string
	ChunkIndex   int
	Text         string
	Scores       Scores
}

// Section is a titled span of a source document.
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

// IngestResult summarizes one source ingestion.
type IngestResult struct {
	SourceID    string
	Chunks      int
	Deleted     int
	TotalTokens int
}

// Option configures the Engine.
type Option func(*engineConfig)

type engineConfig struct {
	addrs        []string
	username     string
	password     string
	db           int
	embedder     Embedder
	graphPath    string
	logger       *zap.Logger
	chunkSize    int
	chunkOverlap int
}

// WithRedis sets the Redis-compatible database addresses.
func WithRedis(addrs ...string) Option {
	return func(c *engineConfig) { c.addrs = addrs }
}

// WithAuth sets database credentials.
func WithAuth(username, password string) Option {
	return func(c *engineConfig) {
		c.username = username
		c.password = password
	}
}

// WithDB selects the logical database number.
func WithDB(n int) Option {
	return func(c *engineConfig) { c.db = n }
}

// WithEmbedder enables the embedding retrieval channel. Without it the
// engine runs lexical + graph only.
func WithEmbedder(e Embedder) Option {
	return func(c *engineConfig) { c.embedder = e }
}

// WithGraph sets the concept graph file path. A missing file degrades the
// graph channel to zero-confidence features instead of failing.
func WithGraph(path string) Option {
	return func(c *engineConfig) { c.graphPath = path }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// WithChunking overrides the ingest chunk window and overlap (runes).
func WithChunking(size, overlap int) Option {
	return func(c *engineConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	}
}

// Engine is the embedded retrieval entry point.
type Engine struct {
	store        db.Store
	retrievalSvc *retrievaluc.Service
	ingestSvc    *ingestuc.Service
}

// New connects to the database, ensures the passage index, and wires the
// retrieval and ingest pipelines.
func New(opts ...Option) (*Engine, error) {
	cfg := &engineConfig{logger: zap.NewNop()}
	for _, o := range opts {
		o(cfg)
	}

	if len(cfg.addrs) == 0 {
		return nil, errors.New("qialchemy: database address required (use WithRedis)")
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.addrs,
		Username: cfg.username,
		Password: cfg.password,
		DB:       cfg.db,
	})
	if err != nil {
		return nil, fmt.Errorf("qialchemy: create store: %w", err)
	}

	ctx := context.Background()
	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("qialchemy: database not ready: %w", err)
	}

	engine, err := wireEngine(store, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return engine, nil
}

func wireEngine(store db.Store, cfg *engineConfig) (*Engine, error) {
	passages := passagerepo.New(store)
	if err := passages.EnsureIndex(context.Background()); err != nil {
		return nil, fmt.Errorf("qialchemy: ensure passage index: %w", err)
	}

	var domEmb domain.Embedder
	if cfg.embedder != nil {
		domEmb = &embedderAdapter{inner: cfg.embedder}
	}

	graphs := graph.NewAnalyzer(graph.NewRepository(), cfg.graphPath, graph.DefaultParams(), cfg.logger)

	var retrievalEmb retrievaluc.Embedder
	if domEmb != nil {
		retrievalEmb = domEmb
	}
	retrievalSvc := retrievaluc.New(passages, retrievalEmb, graphs, cfg.logger)

	var ingestEmb ingestuc.Embedder
	if domEmb != nil {
		ingestEmb = batchAdapter{domEmb}
	}
	ingestSvc := ingestuc.New(passages, ingestEmb, cfg.logger)
	if cfg.chunkSize > 0 {
		ingestSvc = ingestSvc.WithChunking(cfg.chunkSize, cfg.chunkOverlap)
	}

	return &Engine{
		store:        store,
		retrievalSvc: retrievalSvc,
		ingestSvc:    ingestSvc,
	}, nil
}

// Close releases the database connection.
func (e *Engine) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// Ping checks database connectivity.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Retrieve runs the fused three-channel retrieval for a query.
// conversation may carry prior turns for context-aware concept matching;
// topK <= 0 uses the default.
func (e *Engine) Retrieve(ctx context.Context, query, conversation string, topK int) ([]Passage, error) {
	ranked, err := e.retrievalSvc.Retrieve(ctx, query, conversation, topK)
	if err != nil {
		return nil, err
	}
	return toPassages(ranked), nil
}

// Ingest replaces the stored passages of a source with freshly chunked and
// embedded ones.
func (e *Engine) Ingest(ctx context.Context, src Source) (IngestResult, error) {
	sections := make([]ingestuc.Section, len(src.Sections))
	for i, s := range src.Sections {
		sections[i] = ingestuc.Section{Title: s.Title, Text: s.Text}
	}

	res, err := e.ingestSvc.IngestSource(ctx, ingestuc.Source{
		ID:       src.ID,
		Title:    src.Title,
		Path:     src.Path,
		Sections: sections,
	})
	if err != nil {
		return IngestResult{}, err
	}
	return IngestResult{
		SourceID:    res.SourceID,
		Chunks:      res.Chunks,
		Deleted:     res.Deleted,
		TotalTokens: res.TotalTokens,
	}, nil
}

func toPassages(ranked []dompas.Ranked) []Passage {
	out := make([]Passage, len(ranked))
	for i := range ranked {
		r := &ranked[i]
		p := r.Passage()
		out[i] = Passage{
			SourceID:     p.SourceID(),
			SourceTitle:  p.SourceTitle(),
			SectionTitle: p.SectionTitle(),
			ChunkIndex:   p.ChunkIndex(),
			Text:         p.Text(),
			Scores: Scores{
				Lexical:   r.LexicalScore(),
				Embedding: r.EmbeddingScore(),
				Graph:     r.GraphScore(),
				RRF:       r.RRFScore(),
				Final:     r.FinalScore(),
			},
		}
	}
	return out
}

// embedderAdapter wraps the public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// batchAdapter gives the ingest pipeline a batch contract over a
// single-text embedder.
type batchAdapter struct {
	inner domain.Embedder
}

func (b batchAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := b.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, b.inner, texts)
}
