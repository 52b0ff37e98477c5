package changeset

import (
	"fmt"

	"github.com/moolen-fork/changeintel/internal/models"
)

// defaultBucketMinutes is the fallback-key time bucket width when none is
// supplied.
const defaultBucketMinutes = 15

// runIDMetadataKeys is the fixed priority order checked for a shared
// pipeline/run identifier, per the key-derivation rule's second tier.
var runIDMetadataKeys = []string{
	"pipeline_id", "pipeline_run_id", "workflow_run_id", "run_id", "deployment_id", "session_id", "parent_event_id",
}

// deriveKey returns the grouping key and its confidence for event, trying
// each tier of the key-derivation priority list in order; the first match
// wins.
func deriveKey(event models.ChangeEvent, bucketMinutes int) (string, float64) {
	if event.ChangeSetID != "" {
		return fmt.Sprintf("explicit:%s", event.ChangeSetID), 1.0
	}

	for _, mk := range runIDMetadataKeys {
		if v, ok := event.Metadata[mk]; ok {
			if s := fmt.Sprint(v); s != "" {
				return fmt.Sprintf("run:%s:%s", event.Source, s), 0.92
			}
		}
	}

	if event.Repository != "" && event.PRNumber != 0 {
		return fmt.Sprintf("pr:%s:%d", event.Repository, event.PRNumber), 0.90
	}

	if event.Repository != "" && event.CommitSha != "" {
		return fmt.Sprintf("commit:%s:%s", event.Repository, event.CommitSha), 0.86
	}

	if bucketMinutes <= 0 {
		bucketMinutes = defaultBucketMinutes
	}
	scope := event.Repository
	if scope == "" {
		scope = event.Service
	}
	bucket := event.Timestamp.Unix() / 60 / int64(bucketMinutes)
	return fmt.Sprintf("bucket:%s:%s:%d", event.Environment, scope, bucket), 0.62
}
