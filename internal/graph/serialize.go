package graph

import (
	"encoding/json"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// ToJSON emits the graph's nodes and edges as {nodes, edges}.
func (g *ServiceGraph) ToJSON() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	export := models.GraphExport{
		Nodes: make([]models.ServiceNode, 0, len(g.nodes)),
		Edges: make([]models.DependencyEdge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		export.Nodes = append(export.Nodes, *n)
	}
	for _, e := range g.edges {
		export.Edges = append(export.Edges, *e)
	}
	b, err := json.Marshal(export)
	if err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindInvariantViolation, err, "marshal graph")
	}
	return b, nil
}

// FromJSON reconstructs a fresh ServiceGraph from the {nodes, edges} form
// produced by ToJSON, preserving edge metadata.
func FromJSON(data []byte) (*ServiceGraph, error) {
	var export models.GraphExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, coreerrors.Wrap(coreerrors.KindValidation, err, "unmarshal graph")
	}
	g := New()
	for _, n := range export.Nodes {
		if err := g.AddService(n); err != nil {
			return nil, err
		}
	}
	for _, e := range export.Edges {
		if err := g.AddDependency(e); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// LoadImportFile merges the services and dependencies described by a
// GraphImportFile (the shape used by the config-driven graph file and by
// the graphImport operation) into g, tagging new nodes with provenanceTag.
func (g *ServiceGraph) LoadImportFile(file models.GraphImportFile, provenanceTag string) {
	incoming := New()
	for _, n := range file.Services {
		_ = incoming.AddService(n)
	}
	for _, e := range file.Dependencies {
		_ = incoming.AddDependency(e)
	}
	g.Merge(incoming, provenanceTag)
}
