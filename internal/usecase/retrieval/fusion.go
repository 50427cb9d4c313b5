package retrieval

import "sort"

// channelWeights is the per-query weight split across the three raw signals.
// Each weight is clamped independently, so the sum hovers near 1 rather than
// hitting it exactly.
type channelWeights struct {
	lexical   float64
	embedding float64
	graph     float64
}

// weights derives the channel split from graph confidence and embedding
// availability. The graph share grows linearly with confidence once it clears
// the gate threshold; the embedding share yields part of its budget to the
// graph; lexical absorbs the remainder. Without embeddings the lexical channel
// takes the whole non-graph budget.
func (p FusionPolicy) weights(confidence float64, embeddingAvailable bool) channelWeights {
	var graphW float64
	if confidence >= p.MinGraphConfidence {
		offset, slope := p.GraphOffsetLexical, p.GraphSlopeLexical
		if embeddingAvailable {
			offset, slope = p.GraphOffsetEmbedding, p.GraphSlopeEmbedding
		}
		graphW = clamp(offset+confidence*slope, p.MinGraphWeight, p.MaxGraphWeight)
	}

	if !embeddingAvailable {
		return channelWeights{lexical: 1 - graphW, graph: graphW}
	}

	embW := clamp(p.EmbeddingWeightBase-graphW*p.EmbeddingGraphTradeoff,
		p.EmbeddingWeightMin, p.EmbeddingWeightBase)
	lexW := clamp(1-embW-graphW, p.LexicalWeightMin, p.LexicalWeightMax)
	return channelWeights{lexical: lexW, embedding: embW, graph: graphW}
}

// gateGraph suppresses graph relevance for candidates with no lexical or
// embedding support. A passage that only the graph likes is usually a concept
// drift, not an answer.
func (p FusionPolicy) gateGraph(raw, lexical, embedding float64) float64 {
	if raw == 0 {
		return 0
	}
	gate := clamp(lexical*p.GraphGateLexical+embedding*p.GraphGateEmbedding+p.GraphGateFloor, 0, 1)
	return raw * gate
}

// rrfRanks converts a score slice into 1-based ranks, descending by score.
// Every candidate appears in every list, zero scores included, so the rank
// is always the position in the sorted order; equal scores keep input order.
func rrfRanks(scores []float64) []int {
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranks := make([]int, len(scores))
	for pos, idx := range order {
		ranks[idx] = pos + 1
	}
	return ranks
}

// rrfScores fuses the three per-candidate score slices by reciprocal rank.
// The embedding list participates only when embeddings are available; the
// graph list's contribution is scaled by the per-query graph confidence.
func (p FusionPolicy) rrfScores(
	lexical, embedding, graphScores []float64,
	confidence float64, embeddingAvailable bool,
) []float64 {
	lexRanks := rrfRanks(lexical)
	graphRanks := rrfRanks(graphScores)

	var embRanks []int
	if embeddingAvailable {
		embRanks = rrfRanks(embedding)
	}

	graphShare := clamp(confidence*p.RRFGraphWeight, 0, 1)

	out := make([]float64, len(lexical))
	for i := range out {
		s := 1 / (p.RRFK + float64(lexRanks[i]))
		if embRanks != nil {
			s += 1 / (p.RRFK + float64(embRanks[i]))
		}
		s += graphShare / (p.RRFK + float64(graphRanks[i]))
		out[i] = s
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
