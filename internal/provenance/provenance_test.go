package provenance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moolen-fork/changeintel/internal/models"
)

func TestExtractEventEvidenceOrdersAndDeduplicates(t *testing.T) {
	event := models.ChangeEvent{
		ID:         "evt-1",
		Summary:    "deploy checkout",
		PRUrl:      "https://github.com/acme/checkout/pull/42",
		CommitSha:  "abc1234567",
		Repository: "acme/checkout",
		Source:     models.SourceGitHub,
		Metadata: map[string]interface{}{
			"pipeline_url": "https://ci.acme.dev/runs/99",
			"pr_url":       "https://github.com/acme/checkout/pull/42",
		},
	}

	links := ExtractEventEvidence(event)
	assert.Len(t, links, 4)
	assert.Equal(t, models.EvidenceEvent, links[0].Type)
	assert.Equal(t, models.EvidencePullRequest, links[1].Type)
	assert.Equal(t, models.EvidenceCommit, links[2].Type)
	assert.Equal(t, "https://github.com/acme/checkout/commit/abc1234567", links[2].URL)
	assert.Equal(t, models.EvidencePipelineRun, links[3].Type)
}

func TestExtractEventEvidenceGitLabCommitURL(t *testing.T) {
	event := models.ChangeEvent{
		ID:         "evt-2",
		CommitSha:  "deadbeef",
		Repository: "https://gitlab.com/acme/billing",
		Source:     models.SourceGitLab,
	}
	links := ExtractEventEvidence(event)
	var commit *models.EvidenceLink
	for i := range links {
		if links[i].Type == models.EvidenceCommit {
			commit = &links[i]
		}
	}
	assert := assert.New(t)
	assert.NotNil(commit)
	assert.Equal("https://gitlab.com/acme/billing/-/commit/deadbeef", commit.URL)
}

func TestInferEventCanonicalUrlPrefersExplicit(t *testing.T) {
	event := models.ChangeEvent{CanonicalURL: "https://example.com/a", PRUrl: "https://example.com/b"}
	assert.Equal(t, "https://example.com/a", InferEventCanonicalUrl(event))
}

func TestInferEventCanonicalUrlFallsBackToMetadata(t *testing.T) {
	event := models.ChangeEvent{
		Metadata: map[string]interface{}{"deployment_url": "https://example.com/deploy/7"},
	}
	assert.Equal(t, "https://example.com/deploy/7", InferEventCanonicalUrl(event))
}

func TestInferEventCanonicalUrlEmptyWhenNoSignal(t *testing.T) {
	assert.Equal(t, "", InferEventCanonicalUrl(models.ChangeEvent{}))
}
