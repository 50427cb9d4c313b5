package answer

import (
	"context"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
)

// retriever produces ranked supporting passages for a question.
type retriever interface {
	Retrieve(ctx context.Context, query, conversation string, topK int) ([]dompas.Ranked, error)
}

// completer generates the answer text from a grounded prompt.
type completer interface {
	Complete(ctx context.Context, system, user string) (domain.CompletionResult, error)
}
