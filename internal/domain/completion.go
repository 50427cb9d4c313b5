package domain

import "context"

// Completer is the chat-completion contract used for answer generation.
type Completer interface {
	Complete(ctx context.Context, system, user string) (CompletionResult, error)
}

// CompletionResult carries the generated text and token usage.
type CompletionResult struct {
	Text         string
	PromptTokens int
	TotalTokens  int
}
