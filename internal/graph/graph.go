// Package graph implements the concept-graph relevance channel: a small
// domain graph is seeded from query tokens, walked with personalized
// PageRank, and distilled into a token boost map plus a confidence estimate
// for the downstream scorer.
package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/marysss1/QiAIchemy-backend/internal/textutil"
)

// Node is a domain concept (constitution, symptom, herb, treatment, ...).
type Node struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Aliases     []string `json:"aliases,omitempty"`
	SourceHints []string `json:"sourceHints,omitempty"`
}

// Edge is a weighted relation between two concepts.
type Edge struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Relation   string  `json:"relation"`
	Weight     float64 `json:"weight,omitempty"`
	Undirected bool    `json:"undirected,omitempty"`
}

const (
	minEdgeWeight = 0.01
	maxEdgeWeight = 10
)

type neighbor struct {
	id     string
	weight float64
}

// Graph is a parsed, indexed relevance graph. Read-only after Parse.
type Graph struct {
	nodes   map[string]Node
	nodeIDs []string // insertion order, for deterministic iteration
	out     map[string][]neighbor

	// tokenIndex maps a search token to the ids of nodes whose label or
	// aliases contain it. tokenDF is the per-token node frequency used for
	// IDF weighting of boosts.
	tokenIndex map[string][]string
	tokenDF    map[string]int
}

type document struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Parse builds an indexed graph from a JSON document {nodes: [], edges: []}.
// Edges referencing unknown nodes are dropped; undirected edges are expanded
// into both directions with the same weight.
func Parse(data []byte) (*Graph, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse graph document: %w", err)
	}
	if doc.Nodes == nil || doc.Edges == nil {
		return nil, fmt.Errorf("graph document missing nodes or edges array")
	}

	g := &Graph{
		nodes:      make(map[string]Node, len(doc.Nodes)),
		out:        make(map[string][]neighbor),
		tokenIndex: make(map[string][]string),
		tokenDF:    make(map[string]int),
	}

	for _, n := range doc.Nodes {
		if n.ID == "" {
			continue
		}
		if _, ok := g.nodes[n.ID]; ok {
			continue
		}
		g.nodes[n.ID] = n
		g.nodeIDs = append(g.nodeIDs, n.ID)

		for _, tok := range nodeTokens(n) {
			g.tokenIndex[tok] = append(g.tokenIndex[tok], n.ID)
			g.tokenDF[tok]++
		}
	}

	for _, e := range doc.Edges {
		if _, ok := g.nodes[e.From]; !ok {
			continue
		}
		if _, ok := g.nodes[e.To]; !ok {
			continue
		}
		w := e.Weight
		if w == 0 {
			w = 1
		}
		if w < minEdgeWeight {
			w = minEdgeWeight
		}
		if w > maxEdgeWeight {
			w = maxEdgeWeight
		}
		g.out[e.From] = append(g.out[e.From], neighbor{id: e.To, weight: w})
		if e.Undirected {
			g.out[e.To] = append(g.out[e.To], neighbor{id: e.From, weight: w})
		}
	}

	return g, nil
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int { return len(g.nodeIDs) }

// idf weights a token by how rare it is across node labels.
func (g *Graph) idf(token string) float64 {
	df := g.tokenDF[token]
	if df == 0 {
		return 0
	}
	return math.Log(1 + float64(len(g.nodeIDs))/float64(df))
}

// nodeTokens tokenizes a node's label and aliases into search tokens.
func nodeTokens(n Node) []string {
	parts := make([]string, 0, 1+len(n.Aliases))
	parts = append(parts, n.Label)
	parts = append(parts, n.Aliases...)
	return textutil.TokenizeForSearch(strings.Join(parts, " "))
}

// seed distributes unit weight from each matching query token across the
// nodes it maps to, then normalizes by the maximum so the strongest seed is
// 1. An empty map means no token touched the graph.
func (g *Graph) seed(tokens []string) map[string]float64 {
	weights := make(map[string]float64)
	for _, tok := range tokens {
		ids := g.tokenIndex[tok]
		if len(ids) == 0 {
			continue
		}
		share := 1 / float64(len(ids))
		for _, id := range ids {
			weights[id] += share
		}
	}
	if len(weights) == 0 {
		return weights
	}

	var maxW float64
	for _, w := range weights {
		if w > maxW {
			maxW = w
		}
	}
	for id := range weights {
		weights[id] /= maxW
	}
	return weights
}

// topNodesByScore returns up to n node ids ordered by descending score, ties
// broken by graph insertion order for determinism.
func (g *Graph) topNodesByScore(scores map[string]float64, n int) []string {
	order := make(map[string]int, len(g.nodeIDs))
	for i, id := range g.nodeIDs {
		order[id] = i
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si != sj {
			return si > sj
		}
		return order[ids[i]] < order[ids[j]]
	})

	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}
