// Package graph implements the ServiceGraph: an in-memory, mutex-guarded
// directed multigraph of services and their dependency edges, with bounded
// traversal for blast-radius analysis.
package graph

import (
	"sort"
	"sync"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/models"
)

// ServiceGraph holds the dependency graph and its bidirectional adjacency
// indices. A single sync.RWMutex guards all state: the graph is expected
// to be read far more often than written (traversals on every blast-radius
// and correlation call, writes only on graphImport or discovery updates),
// so one RWMutex is the idiomatic boring choice over per-node locking.
type ServiceGraph struct {
	mu sync.RWMutex

	nodes map[string]*models.ServiceNode
	edges map[string]*models.DependencyEdge // keyed by EdgeID(source, target)

	// out[source] holds the EdgeIDs of every edge leaving source; in[target]
	// holds the EdgeIDs of every edge arriving at target. Both are kept in
	// lockstep with edges by every mutating method.
	out map[string]map[string]bool
	in  map[string]map[string]bool

	logger *logging.Logger
}

// New returns an empty ServiceGraph.
func New() *ServiceGraph {
	return &ServiceGraph{
		nodes:  make(map[string]*models.ServiceNode),
		edges:  make(map[string]*models.DependencyEdge),
		out:    make(map[string]map[string]bool),
		in:     make(map[string]map[string]bool),
		logger: logging.GetLogger("graph"),
	}
}

// AddService inserts or replaces a ServiceNode by id.
func (g *ServiceGraph) AddService(node models.ServiceNode) error {
	if node.ID == "" {
		return coreerrors.NewValidation("service node id must not be empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n := node
	g.nodes[node.ID] = &n
	return nil
}

// RemoveService deletes node id and every edge touching it.
func (g *ServiceGraph) RemoveService(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[id]; !ok {
		return coreerrors.NewNotFound("service %q not found", id)
	}
	delete(g.nodes, id)

	for edgeID := range g.out[id] {
		g.removeEdgeLocked(edgeID)
	}
	for edgeID := range g.in[id] {
		g.removeEdgeLocked(edgeID)
	}
	delete(g.out, id)
	delete(g.in, id)
	return nil
}

func (g *ServiceGraph) removeEdgeLocked(edgeID string) {
	edge, ok := g.edges[edgeID]
	if !ok {
		return
	}
	delete(g.edges, edgeID)
	if g.out[edge.Source] != nil {
		delete(g.out[edge.Source], edgeID)
	}
	if g.in[edge.Target] != nil {
		delete(g.in[edge.Target], edgeID)
	}
}

// AddDependency inserts or replaces a DependencyEdge. Both endpoints must
// already exist as service nodes.
func (g *ServiceGraph) AddDependency(edge models.DependencyEdge) error {
	if edge.Source == "" || edge.Target == "" {
		return coreerrors.NewValidation("dependency edge requires source and target")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[edge.Source]; !ok {
		return coreerrors.NewNotFound("dependency source %q not found", edge.Source)
	}
	if _, ok := g.nodes[edge.Target]; !ok {
		return coreerrors.NewNotFound("dependency target %q not found", edge.Target)
	}

	e := edge
	e.ID = models.EdgeID(edge.Source, edge.Target)
	if e.Confidence <= 0 || e.Confidence > 1 {
		e.Confidence = 1.0
	}
	if e.EdgeSource == "" {
		if src, ok := e.Metadata["source"].(string); ok && src != "" {
			e.EdgeSource = models.EdgeSource(src)
		} else {
			e.EdgeSource = models.EdgeSourceManual
		}
	}
	g.edges[e.ID] = &e

	if g.out[e.Source] == nil {
		g.out[e.Source] = make(map[string]bool)
	}
	g.out[e.Source][e.ID] = true
	if g.in[e.Target] == nil {
		g.in[e.Target] = make(map[string]bool)
	}
	g.in[e.Target][e.ID] = true
	return nil
}

// GetService returns the node for id, or NotFound.
func (g *ServiceGraph) GetService(id string) (*models.ServiceNode, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, coreerrors.NewNotFound("service %q not found", id)
	}
	cp := *n
	return &cp, nil
}

// GetDependencies returns the services id directly depends on (outgoing
// edge targets), sorted by id for deterministic output.
func (g *ServiceGraph) GetDependencies(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for edgeID := range g.out[id] {
		out = append(out, g.edges[edgeID].Target)
	}
	sort.Strings(out)
	return out
}

// GetDependents returns the services that directly depend on id
// (incoming edge sources), sorted by id.
func (g *ServiceGraph) GetDependents(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []string
	for edgeID := range g.in[id] {
		out = append(out, g.edges[edgeID].Source)
	}
	sort.Strings(out)
	return out
}

// GetOutgoingEdges returns the DependencyEdges leaving id, sorted by target.
func (g *ServiceGraph) GetOutgoingEdges(id string) []models.DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgesLocked(g.out[id])
}

// GetIncomingEdges returns the DependencyEdges arriving at id, sorted by source.
func (g *ServiceGraph) GetIncomingEdges(id string) []models.DependencyEdge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgesLocked(g.in[id])
}

func (g *ServiceGraph) edgesLocked(ids map[string]bool) []models.DependencyEdge {
	out := make([]models.DependencyEdge, 0, len(ids))
	for edgeID := range ids {
		out = append(out, *g.edges[edgeID])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].Target < out[j].Target
	})
	return out
}

// FindPath returns the shortest directed path from source to target by hop
// count (BFS), or nil if no such path exists.
func (g *ServiceGraph) FindPath(source, target string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if source == target {
		return []string{source}
	}
	if _, ok := g.nodes[source]; !ok {
		return nil
	}

	visited := map[string]bool{source: true}
	prev := map[string]string{}
	queue := []string{source}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		targets := make([]string, 0, len(g.out[cur]))
		for edgeID := range g.out[cur] {
			targets = append(targets, g.edges[edgeID].Target)
		}
		sort.Strings(targets)
		for _, next := range targets {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == target {
				return reconstructPath(prev, source, target)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func reconstructPath(prev map[string]string, source, target string) []string {
	path := []string{target}
	cur := target
	for cur != source {
		cur = prev[cur]
		path = append(path, cur)
	}
	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
