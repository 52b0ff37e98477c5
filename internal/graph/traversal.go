package graph

import (
	"sort"

	"github.com/moolen-fork/changeintel/internal/models"
)

// DefaultMaxDepth is the default bound for getUpstreamImpact/getDownstreamImpact.
const DefaultMaxDepth = 3

// direction selects which adjacency index a traversal walks.
type direction int

const (
	directionUpstream direction = iota
	directionDownstream
)

// GetUpstreamImpact walks incoming edges (consumers) from v, bounded by
// maxDepth, producing one ImpactPath per reachable node.
func (g *ServiceGraph) GetUpstreamImpact(v string, maxDepth int) []models.ImpactPath {
	return g.impact(v, maxDepth, directionUpstream)
}

// GetDownstreamImpact walks outgoing edges (providers) from v, bounded by
// maxDepth, producing one ImpactPath per reachable node.
func (g *ServiceGraph) GetDownstreamImpact(v string, maxDepth int) []models.ImpactPath {
	return g.impact(v, maxDepth, directionDownstream)
}

func (g *ServiceGraph) impact(v string, maxDepth int, dir direction) []models.ImpactPath {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[v]; !ok {
		return nil
	}

	var results []models.ImpactPath
	visited := map[string]bool{v: true}

	var walk func(node string, path []string, criticality models.Criticality, confidence float64, sources map[models.EdgeSource]bool, depth int)
	walk = func(node string, path []string, criticality models.Criticality, confidence float64, sources map[models.EdgeSource]bool, depth int) {
		if depth >= maxDepth {
			return
		}
		adj := g.in[node]
		if dir == directionDownstream {
			adj = g.out[node]
		}
		edgeIDs := make([]string, 0, len(adj))
		for id := range adj {
			edgeIDs = append(edgeIDs, id)
		}
		sort.Strings(edgeIDs)

		for _, edgeID := range edgeIDs {
			edge := g.edges[edgeID]
			next := edge.Source
			if dir == directionDownstream {
				next = edge.Target
			}
			if visited[next] {
				continue
			}

			nextCriticality := models.WeakestCriticality(criticality, edge.Criticality)
			nextConfidence := confidence
			if edge.Confidence < nextConfidence {
				nextConfidence = edge.Confidence
			}
			nextSources := cloneSourceSet(sources)
			nextSources[edge.EdgeSource] = true
			nextPath := append(append([]string{}, path...), next)

			results = append(results, models.ImpactPath{
				Source:      v,
				Affected:    next,
				Path:        nextPath,
				Hops:        len(nextPath),
				Criticality: nextCriticality,
				Confidence:  nextConfidence,
				EdgeSources: sourceSetToSlice(nextSources),
			})

			visited[next] = true
			walk(next, nextPath, nextCriticality, nextConfidence, nextSources, depth+1)
		}
	}

	walk(v, []string{v}, models.CriticalityCritical, 1.0, map[models.EdgeSource]bool{}, 0)

	sort.SliceStable(results, func(i, j int) bool { return results[i].Hops < results[j].Hops })
	return results
}

func cloneSourceSet(src map[models.EdgeSource]bool) map[models.EdgeSource]bool {
	out := make(map[models.EdgeSource]bool, len(src))
	for k := range src {
		out[k] = true
	}
	return out
}

func sourceSetToSlice(src map[models.EdgeSource]bool) []models.EdgeSource {
	out := make([]models.EdgeSource, 0, len(src))
	for k := range src {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
