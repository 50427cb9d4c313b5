package ingest

import (
	"context"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
)

// store is the consumer interface for passage persistence (ISP).
type store interface {
	DeleteBySource(ctx context.Context, sourceID string) (int, error)
	UpsertBatch(ctx context.Context, passages []dompas.Passage) error
}

// Embedder vectorizes chunk texts in batches.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
