package retrieval

// FusionPolicy groups the empirically tuned scoring constants so the fusion
// formula can be tested and tuned in one place. The defaults are a tuning
// surface, not a correctness contract; changing them changes ranking quality,
// not pipeline behavior.
type FusionPolicy struct {
	// MinGraphConfidence disables the graph channel entirely below this
	// confidence. Range [0,1].
	MinGraphConfidence float64
	// MaxGraphWeight caps the graph channel's share of the weighted blend.
	MaxGraphWeight float64
	// MinGraphWeight floors the graph share once the channel is enabled.
	MinGraphWeight float64

	// Graph weight grows linearly with confidence: offset + confidence*slope.
	// Separate curves for embedding-available and lexical-only modes, since
	// without vectors the graph signal carries more of the load.
	GraphOffsetEmbedding float64
	GraphSlopeEmbedding  float64
	GraphOffsetLexical   float64
	GraphSlopeLexical    float64

	// Embedding weight starts at EmbeddingWeightBase and trades off against
	// the graph share; clamped to [EmbeddingWeightMin, EmbeddingWeightBase].
	EmbeddingWeightBase    float64
	EmbeddingGraphTradeoff float64
	EmbeddingWeightMin     float64

	// Lexical weight absorbs the remainder, clamped to
	// [LexicalWeightMin, LexicalWeightMax] when embeddings are available.
	LexicalWeightMin float64
	LexicalWeightMax float64

	// The graph score is gated by lexical/embedding support to suppress
	// graph-only drift matches: gate = clamp(lex*GateLexical +
	// emb*GateEmbedding + GateFloor, 0, 1).
	GraphGateLexical   float64
	GraphGateEmbedding float64
	GraphGateFloor     float64

	// RRFK is the reciprocal-rank-fusion constant (Cormack et al. 2009).
	RRFK float64
	// RRFGraphWeight scales the graph list's RRF contribution before the
	// per-query confidence multiplier.
	RRFGraphWeight float64

	// Final score blend: CombinedShare*weighted + RRFShare*rrf.
	CombinedShare float64
	RRFShare      float64
}

// DefaultFusionPolicy returns the production scoring constants.
func DefaultFusionPolicy() FusionPolicy {
	return FusionPolicy{
		MinGraphConfidence: 0.35,
		MaxGraphWeight:     0.3,
		MinGraphWeight:     0.08,

		GraphOffsetEmbedding: 0.02,
		GraphSlopeEmbedding:  0.25,
		GraphOffsetLexical:   0.06,
		GraphSlopeLexical:    0.34,

		EmbeddingWeightBase:    0.76,
		EmbeddingGraphTradeoff: 0.85,
		EmbeddingWeightMin:     0.58,

		LexicalWeightMin: 0.16,
		LexicalWeightMax: 0.34,

		GraphGateLexical:   2.4,
		GraphGateEmbedding: 0.9,
		GraphGateFloor:     0.08,

		RRFK:           60,
		RRFGraphWeight: 0.9,

		CombinedShare: 0.82,
		RRFShare:      0.18,
	}
}
