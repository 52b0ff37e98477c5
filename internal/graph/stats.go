package graph

import (
	"sort"

	"github.com/moolen-fork/changeintel/internal/models"
)

// ListServices returns every service node, sorted by id.
func (g *ServiceGraph) ListServices() []models.ServiceNode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.ServiceNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// GetStats summarizes the graph's current contents.
func (g *ServiceGraph) GetStats() models.GraphStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := models.GraphStats{
		NodeCount: len(g.nodes),
		EdgeCount: len(g.edges),
		ByType:    make(map[models.NodeType]int),
		ByTeam:    make(map[string]int),
	}
	for _, n := range g.nodes {
		stats.ByType[n.Type]++
		if n.Team != "" {
			stats.ByTeam[n.Team]++
		}
		if n.Tier == models.TierCritical {
			stats.CriticalTierCount++
		}
	}
	if stats.NodeCount > 0 {
		stats.AverageOutDegree = float64(len(g.edges)) / float64(stats.NodeCount)
	}
	return stats
}
