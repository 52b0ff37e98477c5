package service

import (
	"encoding/json"

	"github.com/moolen-fork/changeintel/internal/coreerrors"
	"github.com/moolen-fork/changeintel/internal/models"
)

// GraphImport merges a config-driven graph file ({services, dependencies})
// into the live graph. raw may be either that shape or a graph export
// ({nodes, edges}); both are tried.
func (s *Service) GraphImport(raw json.RawMessage, provenanceTag string) error {
	if provenanceTag == "" {
		provenanceTag = "import"
	}

	var file models.GraphImportFile
	if err := json.Unmarshal(raw, &file); err == nil && (len(file.Services) > 0 || len(file.Dependencies) > 0) {
		s.graph.LoadImportFile(file, provenanceTag)
		s.invalidateImpactCache()
		return nil
	}

	var export models.GraphExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return coreerrors.Wrap(coreerrors.KindValidation, err, "graphImport: unrecognized payload shape")
	}
	s.graph.LoadImportFile(models.GraphImportFile{Services: export.Nodes, Dependencies: export.Edges}, provenanceTag)
	s.invalidateImpactCache()
	return nil
}

// invalidateImpactCache drops every cached traversal after a graph mutation.
// A no-op when the service was constructed without caching enabled.
func (s *Service) invalidateImpactCache() {
	if s.impactCache != nil {
		s.impactCache.Invalidate()
	}
}

// ListServices returns every known service node, sorted by id.
func (s *Service) ListServices() []models.ServiceNode {
	return s.graph.ListServices()
}

// Dependencies returns the DependencyEdges leaving serviceID.
func (s *Service) Dependencies(serviceID string) ([]models.DependencyEdge, error) {
	if serviceID == "" {
		return nil, coreerrors.NewValidation("serviceId must not be empty")
	}
	if _, err := s.graph.GetService(serviceID); err != nil {
		return nil, err
	}
	return s.graph.GetOutgoingEdges(serviceID), nil
}
