package changeset

import (
	"regexp"

	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/models"
)

var (
	runbookPattern    = regexp.MustCompile(`(?i)runbook|playbook|docs/runbooks?|oncall`)
	monitoringPattern = regexp.MustCompile(`(?i)alert|monitor|grafana|dashboard|prometheus|sli|slo`)
)

// computeReadinessDelta assesses whether the union of files touched across
// a group's events, and the ownership data known about its services,
// leaves an operator ready to respond to the group's own fallout.
func computeReadinessDelta(files []string, services []string, g *graph.ServiceGraph) models.ReadinessDelta {
	delta := models.ReadinessDelta{
		RunbookUpdated:    matchStatus(files, runbookPattern),
		MonitoringUpdated: matchStatus(files, monitoringPattern),
		OwnershipKnown:    ownershipStatus(services, g),
	}
	if delta.RunbookUpdated != models.ReadinessUpdated {
		delta.Notes = append(delta.Notes, "no runbook or playbook change detected")
	}
	if delta.MonitoringUpdated != models.ReadinessUpdated {
		delta.Notes = append(delta.Notes, "no monitoring or alerting change detected")
	}
	if delta.OwnershipKnown != models.ReadinessUpdated {
		delta.Notes = append(delta.Notes, "one or more services have no known team or owner")
	}
	return delta
}

func matchStatus(files []string, pattern *regexp.Regexp) models.ReadinessStatus {
	if len(files) == 0 {
		return models.ReadinessUnknown
	}
	for _, f := range files {
		if pattern.MatchString(f) {
			return models.ReadinessUpdated
		}
	}
	return models.ReadinessMissing
}

func ownershipStatus(services []string, g *graph.ServiceGraph) models.ReadinessStatus {
	if len(services) == 0 {
		return models.ReadinessUnknown
	}
	if g == nil {
		return models.ReadinessUnknown
	}
	for _, svc := range services {
		node, err := g.GetService(svc)
		if err != nil {
			return models.ReadinessMissing
		}
		if node.Team == "" && node.Owner == "" {
			return models.ReadinessMissing
		}
	}
	return models.ReadinessUpdated
}
