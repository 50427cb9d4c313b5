package passage

// Ranked is a passage annotated with the score components produced by the
// fusion pipeline. Component scores live in [0,1]; Final is a weighted
// composite and may slightly exceed 1.
type Ranked struct {
	passage   Passage
	lexical   float64
	embedding float64
	graph     float64
	rrf       float64
	final     float64
}

// NewRanked creates a ranked passage.
func NewRanked(p Passage, lexical, embedding, graph, rrf, final float64) Ranked {
	return Ranked{
		passage:   p,
		lexical:   lexical,
		embedding: embedding,
		graph:     graph,
		rrf:       rrf,
		final:     final,
	}
}

// Passage returns the underlying passage.
func (r *Ranked) Passage() Passage { return r.passage }

// LexicalScore returns the token-overlap score.
func (r *Ranked) LexicalScore() float64 { return r.lexical }

// EmbeddingScore returns the cosine similarity with the query embedding.
func (r *Ranked) EmbeddingScore() float64 { return r.embedding }

// GraphScore returns the gated concept-graph relevance score.
func (r *Ranked) GraphScore() float64 { return r.graph }

// RRFScore returns the reciprocal-rank-fusion component.
func (r *Ranked) RRFScore() float64 { return r.rrf }

// FinalScore returns the composite used for ordering.
func (r *Ranked) FinalScore() float64 { return r.final }
