// Package changeset implements the ChangeSetGrouper: clustering related
// change events into ChangeSets for triage summarization, and ranking
// those clusters against an incident.
package changeset

import (
	"fmt"
	"sort"

	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/models"
	"github.com/moolen-fork/changeintel/internal/provenance"
)

const maxGroupEvidence = 25

// Grouper clusters ChangeEvents into ChangeSets, optionally consulting a
// ServiceGraph for ownership data used by readiness deltas.
type Grouper struct {
	graph         *graph.ServiceGraph
	bucketMinutes int
	logger        *logging.Logger
}

// New returns a Grouper. bucketMinutes <= 0 uses the default fallback
// bucket width (15 minutes). g may be nil; ownership-readiness then reads
// as unknown.
func New(g *graph.ServiceGraph, bucketMinutes int) *Grouper {
	return &Grouper{graph: g, bucketMinutes: bucketMinutes, logger: logging.GetLogger("analysis.changeset")}
}

// Group clusters events into ChangeSets by the key-derivation priority
// list, each sorted internally by timestamp.
func (g *Grouper) Group(events []models.ChangeEvent) []models.ChangeSet {
	type bucket struct {
		key        string
		confidence float64
		events     []models.ChangeEvent
	}
	order := make([]string, 0)
	buckets := make(map[string]*bucket)

	for _, e := range events {
		key, confidence := deriveKey(e, g.bucketMinutes)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, confidence: confidence}
			buckets[key] = b
			order = append(order, key)
		}
		b.events = append(b.events, e)
	}

	out := make([]models.ChangeSet, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, g.buildChangeSet(b.key, b.confidence, b.events))
	}
	return out
}

func (g *Grouper) buildChangeSet(key string, confidence float64, events []models.ChangeEvent) models.ChangeSet {
	sort.Slice(events, func(i, j int) bool { return events[i].Timestamp.Before(events[j].Timestamp) })

	services := dedupeStrings(flatMap(events, func(e models.ChangeEvent) []string {
		return append([]string{e.Service}, e.AdditionalServices...)
	}))
	repositories := dedupeStrings(flatMap(events, func(e models.ChangeEvent) []string {
		if e.Repository == "" {
			return nil
		}
		return []string{e.Repository}
	}))
	files := flatMap(events, func(e models.ChangeEvent) []string { return e.FilesChanged })

	changeTypes := dedupeChangeTypes(events)
	initiators := dedupeInitiators(events)
	authorTypes := dedupeAuthorTypes(events)
	environment := uniformEnvironment(events)

	var evidence []models.EvidenceLink
	for _, e := range events {
		evidence = append(evidence, provenance.ExtractEventEvidence(e)...)
	}
	evidence = models.DedupeEvidence(evidence, maxGroupEvidence)

	eventIDs := make([]string, len(events))
	for i, e := range events {
		eventIDs[i] = e.ID
	}

	return models.ChangeSet{
		ID:             models.NewID(),
		Key:            key,
		Title:          title(key, services, len(events)),
		EventCount:     len(events),
		EventIDs:       eventIDs,
		Events:         events,
		Services:       services,
		Repositories:   repositories,
		Environment:    environment,
		WindowStart:    events[0].Timestamp,
		WindowEnd:      events[len(events)-1].Timestamp,
		ChangeTypes:    changeTypes,
		Initiators:     initiators,
		AuthorTypes:    authorTypes,
		Evidence:       evidence,
		ReadinessDelta: computeReadinessDelta(files, services, g.graph),
		Confidence:     confidence,
	}
}

func title(key string, services []string, count int) string {
	if len(services) == 0 {
		return fmt.Sprintf("%d change(s)", count)
	}
	if len(services) == 1 {
		return fmt.Sprintf("%d change(s) to %s", count, services[0])
	}
	return fmt.Sprintf("%d change(s) across %d services", count, len(services))
}

func flatMap(events []models.ChangeEvent, f func(models.ChangeEvent) []string) []string {
	var out []string
	for _, e := range events {
		out = append(out, f(e)...)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func dedupeChangeTypes(events []models.ChangeEvent) []models.ChangeType {
	seen := make(map[models.ChangeType]bool)
	var out []models.ChangeType
	for _, e := range events {
		if seen[e.ChangeType] {
			continue
		}
		seen[e.ChangeType] = true
		out = append(out, e.ChangeType)
	}
	return out
}

func dedupeInitiators(events []models.ChangeEvent) []models.Initiator {
	seen := make(map[models.Initiator]bool)
	var out []models.Initiator
	for _, e := range events {
		if seen[e.Initiator] {
			continue
		}
		seen[e.Initiator] = true
		out = append(out, e.Initiator)
	}
	return out
}

func dedupeAuthorTypes(events []models.ChangeEvent) []models.AuthorType {
	seen := make(map[models.AuthorType]bool)
	var out []models.AuthorType
	for _, e := range events {
		if e.AuthorType == "" || seen[e.AuthorType] {
			continue
		}
		seen[e.AuthorType] = true
		out = append(out, e.AuthorType)
	}
	return out
}

func uniformEnvironment(events []models.ChangeEvent) string {
	if len(events) == 0 {
		return ""
	}
	env := events[0].Environment
	for _, e := range events[1:] {
		if e.Environment != env {
			return "mixed"
		}
	}
	return env
}

// dominantChangeType returns the most frequent change type across events,
// breaking ties by first occurrence.
func dominantChangeType(events []models.ChangeEvent) models.ChangeType {
	counts := make(map[models.ChangeType]int)
	order := make([]models.ChangeType, 0)
	for _, e := range events {
		if counts[e.ChangeType] == 0 {
			order = append(order, e.ChangeType)
		}
		counts[e.ChangeType]++
	}
	best := models.ChangeType("")
	bestCount := 0
	for _, t := range order {
		if counts[t] > bestCount {
			best = t
			bestCount = counts[t]
		}
	}
	return best
}
