package passage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	dompas "github.com/marysss1/QiAIchemy-backend/internal/domain/passage"
	"github.com/marysss1/QiAIchemy-backend/internal/textutil"
)

// passageDoc is the JSON storage shape. search_text joins the chunk keywords
// with the tokenized source and section titles into one space-separated
// string, so the FT TEXT index tokenizes it on whitespace and a query token
// that appears only in a title still produces a candidate.
type passageDoc struct {
	SourceID     string    `json:"source_id"`
	SourceTitle  string    `json:"source_title,omitempty"`
	SourcePath   string    `json:"source_path,omitempty"`
	SectionTitle string    `json:"section_title,omitempty"`
	ChunkIndex   int       `json:"chunk_index"`
	Text         string    `json:"text"`
	CharCount    int       `json:"char_count"`
	Embedding    []float32 `json:"embedding,omitempty"`
	Keywords     []string  `json:"keywords,omitempty"`
	SearchText   string    `json:"search_text"`
	UpdatedAt    int64     `json:"updated_at"`
}

func buildDoc(p *dompas.Passage) passageDoc {
	return passageDoc{
		SourceID:     p.SourceID(),
		SourceTitle:  p.SourceTitle(),
		SourcePath:   p.SourcePath(),
		SectionTitle: p.SectionTitle(),
		ChunkIndex:   p.ChunkIndex(),
		Text:         p.Text(),
		CharCount:    p.CharCount(),
		Embedding:    p.Embedding(),
		Keywords:     p.Keywords(),
		SearchText:   strings.Join(searchTokens(p), " "),
		UpdatedAt:    p.UpdatedAt().Unix(),
	}
}

// searchTokens merges the chunk keywords with the source and section title
// tokens, de-duplicated in first-seen order. Keywords stay untouched; they
// feed lexical scoring, which is defined over chunk text only.
func searchTokens(p *dompas.Passage) []string {
	tokens := append([]string(nil), p.Keywords()...)
	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		seen[tok] = struct{}{}
	}
	for _, title := range []string{p.SourceTitle(), p.SectionTitle()} {
		for _, tok := range textutil.TokenizeForSearch(title) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func (d *passageDoc) toDomain() dompas.Passage {
	return dompas.Reconstruct(
		d.SourceID, d.SourceTitle, d.SourcePath, d.SectionTitle,
		d.ChunkIndex, d.Text, d.CharCount,
		d.Embedding, d.Keywords,
		time.Unix(d.UpdatedAt, 0).UTC(),
	)
}

// parseEntryDoc decodes the "$" field of an FT.SEARCH hit. Depending on the
// query Redis returns either the bare object or a one-element array.
func parseEntryDoc(raw string) (dompas.Passage, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var docs []passageDoc
		if err := json.Unmarshal([]byte(raw), &docs); err != nil {
			return dompas.Passage{}, fmt.Errorf("unmarshal passage array: %w", err)
		}
		if len(docs) == 0 {
			return dompas.Passage{}, fmt.Errorf("empty passage array")
		}
		return docs[0].toDomain(), nil
	}

	var doc passageDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return dompas.Passage{}, fmt.Errorf("unmarshal passage: %w", err)
	}
	return doc.toDomain(), nil
}
