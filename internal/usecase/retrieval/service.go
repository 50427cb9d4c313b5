package retrieval

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	"github.com/marysss1/QiAIchemy-backend/internal/graph"
	"github.com/marysss1/QiAIchemy-backend/internal/metrics"
	"github.com/marysss1/QiAIchemy-backend/internal/textutil"
)

// Default pool and result sizing.
const (
	DefaultCandidateLimit = 60
	DefaultTopK           = 5
	MaxTopK               = 20
)

// Service ranks corpus passages against a query by fusing lexical overlap,
// embedding similarity, and concept-graph relevance.
type Service struct {
	store  PassageStore
	embed  Embedder
	graphs GraphAnalyzer
	policy FusionPolicy
	logger *zap.Logger

	candidateLimit int
	defaultTopK    int
	maxTopK        int
}

// New creates a retrieval service with the default fusion policy and sizing.
// embed may be nil, which pins the pipeline to lexical+graph mode.
func New(store PassageStore, embed Embedder, graphs GraphAnalyzer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:          store,
		embed:          embed,
		graphs:         graphs,
		policy:         DefaultFusionPolicy(),
		logger:         logger,
		candidateLimit: DefaultCandidateLimit,
		defaultTopK:    DefaultTopK,
		maxTopK:        MaxTopK,
	}
}

// WithPolicy overrides the fusion policy.
func (s *Service) WithPolicy(p FusionPolicy) *Service {
	s.policy = p
	return s
}

// WithLimits overrides candidate pool size and top-K bounds. Non-positive
// values keep the current setting.
func (s *Service) WithLimits(candidateLimit, defaultTopK, maxTopK int) *Service {
	if candidateLimit > 0 {
		s.candidateLimit = candidateLimit
	}
	if defaultTopK > 0 {
		s.defaultTopK = defaultTopK
	}
	if maxTopK > 0 {
		s.maxTopK = maxTopK
	}
	return s
}

// Retrieve returns the topK highest-scoring passages for the query, best
// first. conversation is optional recent dialogue used to widen graph seeding.
// A blank query yields an empty result, not an error. Embedding and graph
// failures degrade the respective channel; storage failures are returned.
func (s *Service) Retrieve(
	ctx context.Context, query, conversation string, topK int,
) ([]passage.Ranked, error) {
	query = textutil.NormalizeText(query)
	tokens := textutil.TokenizeForSearch(query)
	if len(tokens) == 0 {
		return []passage.Ranked{}, nil
	}

	if topK <= 0 {
		topK = s.defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}

	graphStart := time.Now()
	feats := s.graphs.Analyze(query, conversation)
	metrics.RetrievalStageDuration.WithLabelValues("graph").Observe(time.Since(graphStart).Seconds())
	metrics.RetrievalGraphConfidence.Observe(feats.Confidence)
	if len(feats.TokenBoosts) == 0 {
		metrics.RetrievalDegradedTotal.WithLabelValues("graph").Inc()
	}

	candStart := time.Now()
	candidates, err := s.fetchCandidates(ctx, tokens)
	metrics.RetrievalStageDuration.WithLabelValues("candidates").Observe(time.Since(candStart).Seconds())
	if err != nil {
		metrics.RetrievalRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.RetrievalCandidates.Observe(float64(len(candidates)))
	if len(candidates) == 0 {
		metrics.RetrievalRequestsTotal.WithLabelValues("ok").Inc()
		return []passage.Ranked{}, nil
	}

	queryEmbedding, embeddingAvailable := s.embedQuery(ctx, query)

	fuseStart := time.Now()
	ranked := s.fuse(tokens, queryEmbedding, embeddingAvailable, candidates, feats)
	metrics.RetrievalStageDuration.WithLabelValues("fuse").Observe(time.Since(fuseStart).Seconds())

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	metrics.RetrievalRequestsTotal.WithLabelValues("ok").Inc()
	return ranked, nil
}

// embedQuery vectorizes the query, degrading to lexical+graph mode on any
// provider failure. The retrieval path must survive an embedding outage.
func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, bool) {
	if s.embed == nil {
		return nil, false
	}

	start := time.Now()
	res, err := s.embed.Embed(ctx, query)
	metrics.RetrievalStageDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RetrievalDegradedTotal.WithLabelValues("embedding").Inc()
		s.logger.Warn("query embedding failed, degrading to lexical+graph",
			zap.Error(err),
		)
		return nil, false
	}
	if len(res.Embedding) == 0 {
		metrics.RetrievalDegradedTotal.WithLabelValues("embedding").Inc()
		return nil, false
	}
	return res.Embedding, true
}

// fuse scores every candidate on all three channels and blends them into a
// final ranking. The ordering is deterministic: stable sorts everywhere, with
// candidate input order as the tiebreak.
func (s *Service) fuse(
	queryTokens []string, queryEmbedding []float32, embeddingAvailable bool,
	candidates []passage.Passage, feats graph.Features,
) []passage.Ranked {
	n := len(candidates)
	lexical := make([]float64, n)
	embedding := make([]float64, n)
	graphScores := make([]float64, n)

	for i := range candidates {
		p := &candidates[i]
		docTokens := p.Keywords()
		if len(docTokens) == 0 {
			docTokens = textutil.TokenizeForSearch(p.Text())
		}

		lexical[i] = textutil.LexicalSimilarity(queryTokens, docTokens)
		if embeddingAvailable {
			embedding[i] = textutil.CosineSimilarity(queryEmbedding, p.Embedding())
			if embedding[i] < 0 {
				embedding[i] = 0
			}
		}

		raw := textutil.GraphTokenSimilarity(docTokens, feats.TokenBoosts)
		graphScores[i] = s.policy.gateGraph(raw, lexical[i], embedding[i])
	}

	w := s.policy.weights(feats.Confidence, embeddingAvailable)
	rrf := s.policy.rrfScores(lexical, embedding, graphScores, feats.Confidence, embeddingAvailable)

	ranked := make([]passage.Ranked, n)
	for i := range candidates {
		combined := w.lexical*lexical[i] + w.embedding*embedding[i] + w.graph*graphScores[i]
		final := s.policy.CombinedShare*combined + s.policy.RRFShare*rrf[i]
		ranked[i] = passage.NewRanked(
			candidates[i], lexical[i], embedding[i], graphScores[i], rrf[i], final,
		)
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].FinalScore() > ranked[b].FinalScore()
	})
	return ranked
}
