// Package provenance derives human-followable links from a ChangeEvent:
// the pull request, commit, and pipeline/run URLs that justify why the
// event is being surfaced to an operator.
package provenance

import (
	"fmt"
	"strings"

	"github.com/moolen-fork/changeintel/internal/models"
)

// metadataURLKeys is the fixed priority order used both to emit typed links
// from recognized metadata URL keys and to pick inferEventCanonicalUrl's
// metadata fallback.
var metadataURLKeys = []string{
	"run_url", "pipeline_url", "deployment_url", "workflow_url", "mr_url", "pr_url", "compare_url",
}

func metadataURLType(event models.ChangeEvent, key string) models.EvidenceType {
	switch key {
	case "run_url":
		if event.Source == models.SourceTerraform {
			return models.EvidenceTerraformRun
		}
		return models.EvidenceDeploymentRun
	case "pipeline_url":
		return models.EvidencePipelineRun
	case "deployment_url", "workflow_url":
		return models.EvidenceDeploymentRun
	case "mr_url", "pr_url":
		return models.EvidencePullRequest
	case "compare_url":
		return models.EvidenceOther
	default:
		return models.EvidenceOther
	}
}

func metadataURL(event models.ChangeEvent, key string) (string, bool) {
	v, ok := event.Metadata[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// commitURL synthesizes a commit URL from repository and commitSha.
// repository may be a full URL or an "org/repo" shorthand; GitLab sources
// use the "-/commit/" path segment, everything else GitHub's "commit/".
func commitURL(event models.ChangeEvent) (string, bool) {
	if event.CommitSha == "" || event.Repository == "" {
		return "", false
	}
	base := event.Repository
	if !strings.Contains(base, "://") {
		base = "https://github.com/" + base
	}
	base = strings.TrimSuffix(base, "/")
	if event.Source == models.SourceGitLab {
		return fmt.Sprintf("%s/-/commit/%s", base, event.CommitSha), true
	}
	return fmt.Sprintf("%s/commit/%s", base, event.CommitSha), true
}

// ExtractEventEvidence builds the ordered, deduplicated evidence trail for
// event: the event's own resource link, then PR, commit, canonical URL,
// and any recognized metadata links.
func ExtractEventEvidence(event models.ChangeEvent) []models.EvidenceLink {
	var links []models.EvidenceLink

	links = append(links, models.EvidenceLink{
		Type:  models.EvidenceEvent,
		URL:   "/events/" + event.ID,
		Label: fmt.Sprintf("Change event: %s", event.Summary),
	})

	if event.PRUrl != "" {
		links = append(links, models.EvidenceLink{
			Type:  models.EvidencePullRequest,
			URL:   event.PRUrl,
			Label: "Pull request",
		})
	}

	if url, ok := commitURL(event); ok {
		links = append(links, models.EvidenceLink{
			Type:  models.EvidenceCommit,
			URL:   url,
			Label: "Commit " + shortSha(event.CommitSha),
		})
	}

	if event.CanonicalURL != "" {
		links = append(links, models.EvidenceLink{
			Type:  models.EvidenceOther,
			URL:   event.CanonicalURL,
			Label: "Canonical source",
		})
	}

	for _, key := range metadataURLKeys {
		url, ok := metadataURL(event, key)
		if !ok {
			continue
		}
		links = append(links, models.EvidenceLink{
			Type:  metadataURLType(event, key),
			URL:   url,
			Label: metadataLabel(key),
		})
	}

	return models.DedupeEvidence(links, 0)
}

func metadataLabel(key string) string {
	switch key {
	case "run_url":
		return "Run"
	case "pipeline_url":
		return "Pipeline run"
	case "deployment_url":
		return "Deployment run"
	case "workflow_url":
		return "Workflow run"
	case "mr_url", "pr_url":
		return "Pull request"
	case "compare_url":
		return "Diff comparison"
	default:
		return key
	}
}

func shortSha(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

// InferEventCanonicalUrl picks the best single link for event: the
// explicit canonicalUrl if set, else prUrl, else a synthesized commit URL,
// else the first populated metadata URL in the fixed key order.
func InferEventCanonicalUrl(event models.ChangeEvent) string {
	if event.CanonicalURL != "" {
		return event.CanonicalURL
	}
	if event.PRUrl != "" {
		return event.PRUrl
	}
	if url, ok := commitURL(event); ok {
		return url
	}
	for _, key := range metadataURLKeys {
		if url, ok := metadataURL(event, key); ok {
			return url
		}
	}
	return ""
}
