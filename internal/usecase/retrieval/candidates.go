package retrieval

import (
	"context"
	"fmt"

	"github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
)

// maxSearchTokens caps the number of query tokens sent to the store. Long
// queries degrade FT.SEARCH throughput without improving candidate recall.
const maxSearchTokens = 8

// fetchCandidates pulls the lexical candidate pool for the query tokens and
// tops it up with recent passages when matches run short. The fallback keeps
// the pool full for embedding and graph scoring even when the query shares no
// tokens with the corpus.
func (s *Service) fetchCandidates(ctx context.Context, tokens []string) ([]passage.Passage, error) {
	if len(tokens) > maxSearchTokens {
		tokens = tokens[:maxSearchTokens]
	}

	matched, err := s.store.FindByTokens(ctx, tokens, s.candidateLimit)
	if err != nil {
		return nil, fmt.Errorf("find by tokens: %w", err)
	}
	if len(matched) >= s.candidateLimit {
		return matched, nil
	}

	exclude := make([]string, 0, len(matched))
	for i := range matched {
		exclude = append(exclude, matched[i].ID())
	}

	recent, err := s.store.FindRecent(ctx, exclude, s.candidateLimit-len(matched))
	if err != nil {
		return nil, fmt.Errorf("find recent: %w", err)
	}
	return append(matched, recent...), nil
}
