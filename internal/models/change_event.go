// Package models holds the data model shared by the event store, the
// service graph, and the analytical engine: ChangeEvent, ServiceNode,
// DependencyEdge, ImpactPath, BlastRadiusPrediction, ChangeCorrelation,
// ChangeSet, and their supporting enums.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType enumerates the kinds of change an event can represent.
type ChangeType string

const (
	ChangeTypeDeployment        ChangeType = "deployment"
	ChangeTypeConfigChange      ChangeType = "config_change"
	ChangeTypeInfraModification ChangeType = "infra_modification"
	ChangeTypeFeatureFlag       ChangeType = "feature_flag"
	ChangeTypeDBMigration       ChangeType = "db_migration"
	ChangeTypeCodeChange        ChangeType = "code_change"
	ChangeTypeRollback          ChangeType = "rollback"
	ChangeTypeScaling           ChangeType = "scaling"
	ChangeTypeSecurityPatch     ChangeType = "security_patch"
)

// ValidChangeType reports whether t is one of the enumerated change kinds.
func ValidChangeType(t ChangeType) bool {
	switch t {
	case ChangeTypeDeployment, ChangeTypeConfigChange, ChangeTypeInfraModification,
		ChangeTypeFeatureFlag, ChangeTypeDBMigration, ChangeTypeCodeChange,
		ChangeTypeRollback, ChangeTypeScaling, ChangeTypeSecurityPatch:
		return true
	}
	return false
}

// ChangeSource enumerates the enumerated origin systems.
type ChangeSource string

const (
	SourceGitHub         ChangeSource = "github"
	SourceGitLab         ChangeSource = "gitlab"
	SourceAWSCodePipe    ChangeSource = "aws_codepipeline"
	SourceAWSECS         ChangeSource = "aws_ecs"
	SourceAWSLambda      ChangeSource = "aws_lambda"
	SourceKubernetes     ChangeSource = "kubernetes"
	SourceClaudeHook     ChangeSource = "claude_hook"
	SourceAgentHook      ChangeSource = "agent_hook"
	SourceManual         ChangeSource = "manual"
	SourceTerraform      ChangeSource = "terraform"
)

// Initiator enumerates who/what triggered a change.
type Initiator string

const (
	InitiatorHuman      Initiator = "human"
	InitiatorAgent      Initiator = "agent"
	InitiatorAutomation Initiator = "automation"
	InitiatorUnknown    Initiator = "unknown"
)

// AuthorType distinguishes the change's authorship, orthogonal to Initiator.
type AuthorType string

const (
	AuthorTypeHuman          AuthorType = "human"
	AuthorTypeAIAssisted     AuthorType = "ai_assisted"
	AuthorTypeAutonomousAgent AuthorType = "autonomous_agent"
)

// ChangeStatus enumerates the lifecycle status of a change.
type ChangeStatus string

const (
	StatusInProgress ChangeStatus = "in_progress"
	StatusCompleted  ChangeStatus = "completed"
	StatusFailed     ChangeStatus = "failed"
	StatusRolledBack ChangeStatus = "rolled_back"
)

// ChangeEvent is a single logical mutation observed in the environment.
type ChangeEvent struct {
	ID                 string         `json:"id"`
	Timestamp          time.Time      `json:"timestamp"`
	Service            string         `json:"service"`
	AdditionalServices []string       `json:"additionalServices"`
	ChangeType         ChangeType     `json:"changeType"`
	Source             ChangeSource   `json:"source"`
	Initiator          Initiator      `json:"initiator"`
	InitiatorIdentity  string         `json:"initiatorIdentity,omitempty"`
	AuthorType         AuthorType     `json:"authorType,omitempty"`
	Status             ChangeStatus   `json:"status"`
	Environment        string         `json:"environment"`
	Summary            string         `json:"summary"`

	CommitSha  string `json:"commitSha,omitempty"`
	PRNumber   int    `json:"prNumber,omitempty"`
	PRUrl      string `json:"prUrl,omitempty"`
	Repository string `json:"repository,omitempty"`
	Branch     string `json:"branch,omitempty"`

	Diff            string   `json:"diff,omitempty"`
	FilesChanged    []string `json:"filesChanged"`
	ConfigKeys      []string `json:"configKeys"`
	PreviousVersion string   `json:"previousVersion,omitempty"`
	NewVersion      string   `json:"newVersion,omitempty"`

	BlastRadius *BlastRadiusPrediction `json:"blastRadius,omitempty"`

	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	ChangeSetID    string `json:"changeSetId,omitempty"`
	CanonicalURL   string `json:"canonicalUrl,omitempty"`

	Tags     []string               `json:"tags"`
	Metadata map[string]interface{} `json:"metadata"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PartialChangeEvent carries the caller-provided subset of ChangeEvent
// fields for insert/update. Pointer/nil-able fields distinguish "absent"
// from "explicitly empty" where the store's contract requires it.
type PartialChangeEvent struct {
	Timestamp          *time.Time
	Service            *string
	AdditionalServices []string
	ChangeType         *ChangeType
	Source             *ChangeSource
	Initiator          *Initiator
	InitiatorIdentity  *string
	AuthorType         *AuthorType
	Status             *ChangeStatus
	Environment        *string
	Summary            *string

	CommitSha  *string
	PRNumber   *int
	PRUrl      *string
	Repository *string
	Branch     *string

	Diff            *string
	FilesChanged    []string
	ConfigKeys      []string
	PreviousVersion *string
	NewVersion      *string

	BlastRadius *BlastRadiusPrediction

	IdempotencyKey *string
	ChangeSetID    *string
	CanonicalURL   *string

	Tags     []string
	Metadata map[string]interface{}
}

// NewID generates a fresh event identifier.
func NewID() string {
	return uuid.NewString()
}

// VelocityMetric is the result of EventStore.getVelocity / getVelocityTrend.
type VelocityMetric struct {
	Service                string             `json:"service"`
	WindowMinutes          int                `json:"windowMinutes"`
	WindowStart            time.Time          `json:"windowStart"`
	WindowEnd              time.Time          `json:"windowEnd"`
	ChangeCount            int                `json:"changeCount"`
	ChangeTypes            map[ChangeType]int `json:"changeTypes"`
	AverageIntervalMinutes float64            `json:"averageIntervalMinutes"`
}

// StoreStats summarizes the event store contents (EventStore.getStats).
type StoreStats struct {
	Total         int                    `json:"total"`
	ByType        map[ChangeType]int     `json:"byType"`
	BySource      map[ChangeSource]int   `json:"bySource"`
	ByEnvironment map[string]int         `json:"byEnvironment"`
}

// QueryOptions are the recognized, AND-combined filters for EventStore.query.
type QueryOptions struct {
	Services    []string
	ChangeTypes []ChangeType
	Sources     []ChangeSource
	Environment string
	Since       *time.Time
	Until       *time.Time
	Initiator   *Initiator
	Status      *ChangeStatus
	Limit       int
}
