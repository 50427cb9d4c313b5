package graph

import "math"

const (
	pprMaxIterations = 30
	pprDeltaEpsilon  = 1e-6
)

// personalizedPageRank runs a power iteration with restart to the seed
// distribution. Each step a node passes alpha of its mass to outgoing
// neighbors proportionally to edge weight (dangling nodes keep their mass),
// and every node receives (1-alpha) of its normalized seed weight. Iteration
// stops after pprMaxIterations or when the total absolute change drops below
// pprDeltaEpsilon.
func (g *Graph) personalizedPageRank(seed map[string]float64, alpha float64) map[string]float64 {
	if len(seed) == 0 {
		return nil
	}

	// Restart term wants the seed as a probability distribution.
	var seedSum float64
	for _, w := range seed {
		seedSum += w
	}
	restart := make(map[string]float64, len(seed))
	for id, w := range seed {
		restart[id] = w / seedSum
	}

	scores := make(map[string]float64, len(restart))
	for id, w := range restart {
		scores[id] = w
	}

	for iter := 0; iter < pprMaxIterations; iter++ {
		next := make(map[string]float64, len(scores))
		for id, w := range restart {
			next[id] = (1 - alpha) * w
		}

		// Deterministic propagation order; map iteration never feeds output.
		for _, id := range g.nodeIDs {
			score := scores[id]
			if score == 0 {
				continue
			}
			outgoing := g.out[id]
			if len(outgoing) == 0 {
				next[id] += alpha * score
				continue
			}
			var totalWeight float64
			for _, nb := range outgoing {
				totalWeight += nb.weight
			}
			for _, nb := range outgoing {
				next[nb.id] += alpha * score * nb.weight / totalWeight
			}
		}

		var delta float64
		for id, w := range next {
			delta += math.Abs(w - scores[id])
		}
		for id := range scores {
			if _, ok := next[id]; !ok {
				delta += scores[id]
			}
		}

		scores = next
		if delta < pprDeltaEpsilon {
			break
		}
	}

	return scores
}
