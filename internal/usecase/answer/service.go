// Package answer turns retrieved passages into a grounded, cited response.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marysss1/QiAIchemy-backend/internal/domain"
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
)

const systemPrompt = "你是一名中医知识问答助手。仅依据提供的资料回答问题，" +
	"引用资料时标注编号，如 [1]。资料不足以回答时明确说明，不要编造。"

// Result is a generated answer with its supporting passages.
type Result struct {
	Text        string
	Passages    []dompas.Ranked
	TotalTokens int
}

// Service orchestrates retrieve-then-generate.
type Service struct {
	retriever retriever
	completer completer
	logger    *zap.Logger
}

// New creates an answer service.
func New(r retriever, c completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{retriever: r, completer: c, logger: logger}
}

// Ask retrieves supporting passages and generates a cited answer. With no
// matching passages the completion runs without excerpts and must say so.
func (s *Service) Ask(ctx context.Context, question, conversation string, topK int) (Result, error) {
	if strings.TrimSpace(question) == "" {
		return Result{}, fmt.Errorf("%w: question is required", domain.ErrInvalidRequest)
	}

	ranked, err := s.retriever.Retrieve(ctx, question, conversation, topK)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve passages: %w", err)
	}

	completion, err := s.completer.Complete(ctx, systemPrompt, buildUserPrompt(question, ranked))
	if err != nil {
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}

	s.logger.Debug("Answer generated",
		zap.Int("passages", len(ranked)),
		zap.Int("total_tokens", completion.TotalTokens),
	)

	return Result{
		Text:        completion.Text,
		Passages:    ranked,
		TotalTokens: completion.TotalTokens,
	}, nil
}

// buildUserPrompt lays out numbered excerpts followed by the question. The
// numbering matches the citation markers the system prompt asks for.
func buildUserPrompt(question string, ranked []dompas.Ranked) string {
	var b strings.Builder

	if len(ranked) == 0 {
		b.WriteString("（无相关资料）\n\n")
	} else {
		b.WriteString("资料：\n")
		for i := range ranked {
			p := ranked[i].Passage()
			b.WriteString(fmt.Sprintf("[%d] ", i+1))
			if title := excerptTitle(&p); title != "" {
				b.WriteString(title)
				b.WriteString("：")
			}
			b.WriteString(p.Text())
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("问题：")
	b.WriteString(question)
	return b.String()
}

func excerptTitle(p *dompas.Passage) string {
	switch {
	case p.SourceTitle() != "" && p.SectionTitle() != "":
		return p.SourceTitle() + " · " + p.SectionTitle()
	case p.SourceTitle() != "":
		return p.SourceTitle()
	default:
		return p.SectionTitle()
	}
}
