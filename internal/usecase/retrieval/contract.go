package retrieval

import (
	"context"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	"github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	"github.com/marysss1/QiAIchemy-backend/internal/graph"
)

// PassageStore defines the storage contract for candidate retrieval.
type PassageStore interface {
	// FindByTokens returns passages whose indexed text matches any of the
	// given search tokens, most relevant first.
	FindByTokens(ctx context.Context, tokens []string, limit int) ([]passage.Passage, error)

	// FindRecent returns the most recently ingested passages, excluding the
	// given passage IDs.
	FindRecent(ctx context.Context, excludeIDs []string, limit int) ([]passage.Passage, error)
}

// GraphAnalyzer computes concept-graph features for a query. Implementations
// degrade to zero-confidence features instead of returning errors: the graph
// channel is optional.
type GraphAnalyzer interface {
	Analyze(query, conversation string) graph.Features
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
