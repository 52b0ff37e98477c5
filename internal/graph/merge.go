package graph

import "github.com/moolen-fork/changeintel/internal/models"

// Merge folds incoming into g: for every node in incoming not already
// present in g, it is added stamped with metadata.source = provenanceTag;
// for every edge with no existing edge between the same ordered pair, it
// is added. Existing nodes and edges are never overwritten — base
// precedence, so merges are commutative at the identity level even though
// attributes are not reconciled.
func (g *ServiceGraph) Merge(incoming *ServiceGraph, provenanceTag string) {
	incoming.mu.RLock()
	incomingNodes := make([]models.ServiceNode, 0, len(incoming.nodes))
	for _, n := range incoming.nodes {
		incomingNodes = append(incomingNodes, *n)
	}
	incomingEdges := make([]models.DependencyEdge, 0, len(incoming.edges))
	for _, e := range incoming.edges {
		incomingEdges = append(incomingEdges, *e)
	}
	incoming.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, n := range incomingNodes {
		if _, ok := g.nodes[n.ID]; ok {
			continue
		}
		stamped := n
		if stamped.Metadata == nil {
			stamped.Metadata = make(map[string]interface{})
		}
		stamped.Metadata["source"] = provenanceTag
		g.nodes[n.ID] = &stamped
	}

	for _, e := range incomingEdges {
		id := models.EdgeID(e.Source, e.Target)
		if _, ok := g.edges[id]; ok {
			continue
		}
		if _, ok := g.nodes[e.Source]; !ok {
			continue
		}
		if _, ok := g.nodes[e.Target]; !ok {
			continue
		}
		added := e
		added.ID = id
		g.edges[id] = &added
		if g.out[added.Source] == nil {
			g.out[added.Source] = make(map[string]bool)
		}
		g.out[added.Source][id] = true
		if g.in[added.Target] == nil {
			g.in[added.Target] = make(map[string]bool)
		}
		g.in[added.Target][id] = true
	}
}
