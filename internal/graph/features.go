package graph

import (
	"math"
	"strings"
	"unicode"

	"github.com/marysss1/QiAIchemy-backend/internal/textutil"
)

// Params are the tunable PPR parameters, adapted per query by complexity.
type Params struct {
	BaseAlpha    float64 // restart probability upper bound, domain [0.5, 0.99]
	BaseTopNodes int     // top-node count upper bound, max 40
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{BaseAlpha: 0.85, BaseTopNodes: 12}
}

// Features is what the graph channel hands to the scorer for one query.
type Features struct {
	// TokenBoosts maps search tokens to IDF-weighted PPR boosts.
	TokenBoosts map[string]float64
	// Confidence in [0,1] gates how much the scorer trusts this channel.
	Confidence float64
	// Complexity is the query complexity estimate in [0,1].
	Complexity float64
	// Alpha is the adaptive restart probability actually used.
	Alpha float64
	// TopNodes is the adaptive top-node count actually used.
	TopNodes int
	// SeedCoverage is the fraction of query tokens that matched a node.
	SeedCoverage float64
}

// multiHopCues are phrasing patterns that suggest a query spans several
// concepts and benefits from a broader graph walk.
var multiHopCues = []string{
	"and", "relationship", "why", "how", "combined", "together",
	"为什么", "怎么", "如何", "关系", "同时", "并且", "一起",
}

// Analyze seeds the graph from the query (plus optional conversational
// context), runs personalized PageRank with adaptive parameters, and distills
// the walk into token boosts and a confidence estimate. A query that touches
// no node yields zero confidence and no boosts.
func (g *Graph) Analyze(query, context string, p Params) Features {
	complexity := estimateComplexity(query)
	alpha := adaptiveAlpha(p.BaseAlpha, complexity)
	topN := adaptiveTopNodes(p.BaseTopNodes, complexity)

	feats := Features{
		Complexity: complexity,
		Alpha:      alpha,
		TopNodes:   topN,
	}

	seedText := query
	if context != "" {
		seedText += "\n" + context
	}
	seedVec := g.seed(textutil.TokenizeForSearch(seedText))
	if len(seedVec) == 0 {
		return feats
	}

	queryTokens := textutil.TokenizeForSearch(query)
	feats.SeedCoverage = tokenCoverage(queryTokens, g.tokenIndex)

	scores := g.personalizedPageRank(seedVec, alpha)
	top := g.topNodesByScore(scores, topN)

	feats.TokenBoosts = g.tokenBoosts(top, scores)
	feats.Confidence = clamp(
		0.45*feats.SeedCoverage+0.35*massConcentration(top, scores)+0.2*complexity,
		0, 1,
	)
	return feats
}

// tokenBoosts spreads the top nodes' PPR mass onto their label tokens,
// IDF-weighted. Per token the maximum contribution wins, not the sum, so a
// common token cannot dominate through many mid-scoring nodes.
func (g *Graph) tokenBoosts(top []string, scores map[string]float64) map[string]float64 {
	boosts := make(map[string]float64)
	for _, id := range top {
		node := g.nodes[id]
		score := scores[id]
		for _, tok := range nodeTokens(node) {
			if b := score * g.idf(tok); b > boosts[tok] {
				boosts[tok] = b
			}
		}
	}
	return boosts
}

// massConcentration measures how much of the top-N PPR mass sits in the top
// three nodes: a proxy for "one clear topic" vs diffuse activation.
func massConcentration(top []string, scores map[string]float64) float64 {
	var topNMass, top3Mass float64
	for i, id := range top {
		topNMass += scores[id]
		if i < 3 {
			top3Mass += scores[id]
		}
	}
	if topNMass == 0 {
		return 0
	}
	return top3Mass / topNMass
}

func tokenCoverage(tokens []string, index map[string][]string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var matched int
	for _, tok := range tokens {
		if len(index[tok]) > 0 {
			matched++
		}
	}
	return float64(matched) / float64(len(tokens))
}

// estimateComplexity blends three cues into [0,1]: multi-hop phrasing, query
// length, and the amount of Han text. Simple single-fact queries score low
// and get a tighter, more local walk.
func estimateComplexity(query string) float64 {
	lower := strings.ToLower(query)

	var hints int
	for _, cue := range multiHopCues {
		hints += strings.Count(lower, cue)
	}
	if hints > 4 {
		hints = 4
	}
	hintScore := float64(hints) / 4

	runes := []rune(query)
	lengthScore := math.Min(float64(len(runes))/60, 1)

	var hanCount int
	for _, r := range runes {
		if unicode.Is(unicode.Han, r) {
			hanCount++
		}
	}
	bigramScore := math.Min(math.Max(float64(hanCount-1), 0)/24, 1)

	return 0.5*hintScore + 0.25*lengthScore + 0.25*bigramScore
}

func adaptiveAlpha(base, complexity float64) float64 {
	return clamp(base-(1-complexity)*0.18, 0.6, base)
}

func adaptiveTopNodes(base int, complexity float64) int {
	n := int(math.Round(float64(base) * (0.45 + 0.55*complexity)))
	if n < 4 {
		n = 4
	}
	if n > base {
		n = base
	}
	return n
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
