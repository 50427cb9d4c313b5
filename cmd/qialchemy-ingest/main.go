// Corpus ingest pipeline for the QiAIchemy knowledge base.
// Reads .md/.txt files from a corpus directory, splits them into titled
// sections, chunks and embeds the text, and bulk-upserts the passages
// into the store. Re-running replaces each source atomically.
//
// Usage:
//
//	qialchemy-ingest -corpus ./corpus
//	qialchemy-ingest -corpus ./corpus -source tizhi
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/config"
	"github.com/marysss1/QiAIchemy-backend/internal/db"
	dbRedis "github.com/marysss1/QiAIchemy-backend/internal/db/redis"
	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	logpkg "github.com/marysss1/QiAIchemy-backend/internal/logger"
	"github.com/marysss1/QiAIchemy-backend/internal/metrics"
	"github.com/marysss1/QiAIchemy-backend/internal/repository/embcache"
	passagerepo "github.com/marysss1/QiAIchemy-backend/internal/repository/passage"
	openaiProvider "github.com/marysss1/QiAIchemy-backend/internal/transport/openai"
	embeddinguc "github.com/marysss1/QiAIchemy-backend/internal/usecase/embedding"
	ingestuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/ingest"
	"github.com/marysss1/QiAIchemy-backend/internal/version"
)

type flags struct {
	corpusDir string
	sourceID  string
	dryRun    bool
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.corpusDir, "corpus", "./corpus", "directory with .md/.txt source files")
	flag.StringVar(&f.sourceID, "source", "", "ingest only this source id (filename without extension)")
	flag.BoolVar(&f.dryRun, "dry-run", false, "parse and chunk without touching the store")
	flag.Parse()
	return f
}

func main() {
	f := parseFlags()

	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGTERM, syscall.SIGINT,
	)
	defer cancel()

	if err := run(ctx, f); err != nil {
		cancel()
		fmt.Fprintln(os.Stderr, "ingest failed:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, f flags) error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	sources, err := loadCorpus(f.corpusDir, f.sourceID)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no .md/.txt files found in %s", f.corpusDir)
	}
	logger.Info("Corpus loaded",
		zap.String("build", version.String()),
		zap.String("dir", f.corpusDir),
		zap.Int("sources", len(sources)),
	)

	if f.dryRun {
		svc := ingestuc.New(dryRunStore{}, nil, logger).
			WithChunking(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
		return ingestAll(ctx, svc, sources, logger)
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	defer store.Close()

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()

	passages := passagerepo.New(store)
	if err := passages.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("ensure passage index: %w", err)
	}

	var embedder ingestuc.Embedder
	if cfg.Embedding.APIKey != "" {
		embedder = buildDocEmbedder(cfg.Embedding, store, logger)
	} else {
		logger.Warn("No embedding provider configured, passages are stored lexical-only")
	}

	svc := ingestuc.New(passages, embedder, logger).
		WithChunking(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)

	return ingestAll(ctx, svc, sources, logger)
}

func ingestAll(ctx context.Context, svc *ingestuc.Service, sources []ingestuc.Source, logger *zap.Logger) error {
	start := time.Now()
	var chunks, tokens int

	for _, src := range sources {
		res, err := svc.IngestSource(ctx, src)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", src.ID, err)
		}
		chunks += res.Chunks
		tokens += res.TotalTokens
	}

	logger.Info("Ingest finished",
		zap.Int("sources", len(sources)),
		zap.Int("chunks", chunks),
		zap.Int("total_tokens", tokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// loadCorpus reads every .md/.txt file under dir (non-recursive) into a
// Source. The source id is the filename without extension.
func loadCorpus(dir, onlyID string) ([]ingestuc.Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var sources []ingestuc.Source
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		id := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if onlyID != "" && id != onlyID {
			continue
		}

		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		title, sections := parseSections(string(data))
		if title == "" {
			title = id
		}
		sources = append(sources, ingestuc.Source{
			ID:       id,
			Title:    title,
			Path:     path,
			Sections: sections,
		})
	}

	sort.Slice(sources, func(i, j int) bool { return sources[i].ID < sources[j].ID })
	return sources, nil
}

// parseSections splits markdown text on headings. The first H1 becomes the
// source title; every other heading starts a new section. Text before the
// first heading forms an untitled section.
func parseSections(text string) (string, []ingestuc.Section) {
	var (
		title    string
		sections []ingestuc.Section
		current  ingestuc.Section
		body     strings.Builder
	)

	flush := func() {
		current.Text = body.String()
		if strings.TrimSpace(current.Text) != "" || current.Title != "" {
			sections = append(sections, current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if heading, level, ok := parseHeading(trimmed); ok {
			if level == 1 && title == "" {
				title = heading
				continue
			}
			flush()
			current = ingestuc.Section{Title: heading}
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()

	return title, sections
}

func parseHeading(line string) (string, int, bool) {
	if !strings.HasPrefix(line, "#") {
		return "", 0, false
	}
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	rest := strings.TrimSpace(line[level:])
	if rest == "" {
		return "", 0, false
	}
	return rest, level, true
}

// buildDocEmbedder assembles the document-side embedder chain:
// OpenAI -> Cached -> Instrumented -> Instruction.
func buildDocEmbedder(embCfg config.EmbeddingConfig, store db.Store, logger *zap.Logger) ingestuc.Embedder {
	base := openaiProvider.NewEmbedder(&openaiProvider.Config{
		APIKey:     embCfg.APIKey,
		BaseURL:    embCfg.BaseURL,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		Provider:   embCfg.Provider,
		Logger:     logger,
	})

	var embedder domain.Embedder = embcache.New(base, store, metrics.EmbeddingCacheTotal, logger)
	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, embCfg.Provider, embCfg.Model, logger)
	if embCfg.DocumentInstruction != "" {
		embedder = domain.NewInstructionEmbedder(embedder, embCfg.DocumentInstruction)
	}
	return embeddingBatcher{embedder}
}

// embeddingBatcher adapts a domain.Embedder to the ingest batch contract.
type embeddingBatcher struct {
	inner domain.Embedder
}

func (b embeddingBatcher) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if be, ok := b.inner.(domain.BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}
	return domain.BatchFallback(ctx, b.inner, texts)
}

// dryRunStore counts what would be written without a database.
type dryRunStore struct{}

func (dryRunStore) DeleteBySource(context.Context, string) (int, error) { return 0, nil }

func (dryRunStore) UpsertBatch(context.Context, []dompas.Passage) error { return nil }
