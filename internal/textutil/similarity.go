package textutil

import "math"

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector is empty, the lengths differ, or either norm
// is zero. Never returns NaN.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// LexicalSimilarity computes cosine similarity over binary bags of tokens:
// the size of the token-set intersection divided by sqrt(|query| * |doc|).
// Returns 0 for empty inputs.
func LexicalSimilarity(queryTokens, docTokens []string) float64 {
	qSet := uniqueSet(queryTokens)
	dSet := uniqueSet(docTokens)
	if len(qSet) == 0 || len(dSet) == 0 {
		return 0
	}

	var shared int
	for tok := range qSet {
		if _, ok := dSet[tok]; ok {
			shared++
		}
	}
	return float64(shared) / math.Sqrt(float64(len(qSet))*float64(len(dSet)))
}

// GraphTokenSimilarity scores a document against a token boost map: the sum
// of boosts over unique document tokens, normalized by
// sqrt(|docTokens| * max(|boosts|, 1)).
func GraphTokenSimilarity(docTokens []string, boosts map[string]float64) float64 {
	dSet := uniqueSet(docTokens)
	if len(dSet) == 0 || len(boosts) == 0 {
		return 0
	}

	var sum float64
	for tok := range dSet {
		sum += boosts[tok]
	}
	if sum == 0 {
		return 0
	}

	denom := math.Sqrt(float64(len(dSet)) * math.Max(float64(len(boosts)), 1))
	return sum / denom
}

func uniqueSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
