package chi

import (
	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	ingestuc "github.com/marysss1/QiAIchemy-backend/internal/usecase/ingest"
)

// errorCode is a machine-readable error discriminator in error bodies.
type errorCode string

const (
	codeBadRequest       errorCode = "bad_request"
	codeValidationFailed errorCode = "validation_failed"
	codeProviderAuth     errorCode = "provider_auth_failed"
	codeQuotaExceeded    errorCode = "embedding_quota_exceeded"
	codeRateLimited      errorCode = "rate_limited"
	codeProviderError    errorCode = "provider_error"
	codeNotConfigured    errorCode = "not_configured"
	codeUnauthorized     errorCode = "unauthorized"
	codeInternalError    errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

type askRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

type askResponse struct {
	Answer      string          `json:"answer"`
	Passages    []passageResult `json:"passages"`
	TotalTokens int             `json:"total_tokens,omitempty"`
}

type retrieveRequest struct {
	Query   string `json:"query"`
	Context string `json:"context,omitempty"`
	TopK    int    `json:"top_k,omitempty"`
}

type retrieveResponse struct {
	Passages []passageResult `json:"passages"`
}

type passageScores struct {
	Lexical   float64 `json:"lexical"`
	Embedding float64 `json:"embedding"`
	Graph     float64 `json:"graph"`
	RRF       float64 `json:"rrf"`
	Final     float64 `json:"final"`
}

type passageResult struct {
	SourceID     string        `json:"source_id"`
	SourceTitle  string        `json:"source_title,omitempty"`
	SectionTitle string        `json:"section_title,omitempty"`
	ChunkIndex   int           `json:"chunk_index"`
	Text         string        `json:"text"`
	Scores       passageScores `json:"scores"`
}

type ingestSection struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

type ingestSource struct {
	ID       string          `json:"id"`
	Title    string          `json:"title,omitempty"`
	Path     string          `json:"path,omitempty"`
	Sections []ingestSection `json:"sections"`
}

type ingestRequest struct {
	Sources []ingestSource `json:"sources"`
}

type ingestResultItem struct {
	SourceID    string `json:"source_id"`
	Chunks      int    `json:"chunks"`
	Deleted     int    `json:"deleted"`
	TotalTokens int    `json:"total_tokens,omitempty"`
}

type ingestResponse struct {
	Results []ingestResultItem `json:"results"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func rankedToResults(ranked []dompas.Ranked) []passageResult {
	items := make([]passageResult, len(ranked))
	for i := range ranked {
		p := ranked[i].Passage()
		items[i] = passageResult{
			SourceID:     p.SourceID(),
			SourceTitle:  p.SourceTitle(),
			SectionTitle: p.SectionTitle(),
			ChunkIndex:   p.ChunkIndex(),
			Text:         p.Text(),
			Scores: passageScores{
				Lexical:   ranked[i].LexicalScore(),
				Embedding: ranked[i].EmbeddingScore(),
				Graph:     ranked[i].GraphScore(),
				RRF:       ranked[i].RRFScore(),
				Final:     ranked[i].FinalScore(),
			},
		}
	}
	return items
}

func sourceFromRequest(src ingestSource) ingestuc.Source {
	sections := make([]ingestuc.Section, len(src.Sections))
	for i, sec := range src.Sections {
		sections[i] = ingestuc.Section{Title: sec.Title, Text: sec.Text}
	}
	return ingestuc.Source{
		ID:       src.ID,
		Title:    src.Title,
		Path:     src.Path,
		Sections: sections,
	}
}
