package models

import "time"

// RiskLevel enumerates the blast-radius risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ConfidenceSummary buckets the dependents of a blast-radius prediction by
// how confident the graph is in the relationship.
type ConfidenceSummary struct {
	HighConfidenceCount int `json:"highConfidenceCount"`
	PossibleCount       int `json:"possibleCount"`
}

// BlastRadiusPrediction is the attached or on-demand prediction produced
// by the BlastRadiusAnalyzer.
type BlastRadiusPrediction struct {
	DirectServices           []string          `json:"directServices"`
	DownstreamServices       []string          `json:"downstreamServices"`
	HighConfidenceDependents []string          `json:"highConfidenceDependents"`
	PossibleDependents       []string          `json:"possibleDependents"`
	CriticalPathAffected     bool              `json:"criticalPathAffected"`
	RiskLevel                RiskLevel         `json:"riskLevel"`
	ImpactPaths              []ImpactPath      `json:"impactPaths"`
	ConfidenceSummary        ConfidenceSummary `json:"confidenceSummary"`
	Evidence                 []EvidenceLink    `json:"evidence"`
	Rationale                []string          `json:"rationale"`
}

// ConfidenceFactors breaks down a correlation's confidence score into its
// weighted contributions.
type ConfidenceFactors struct {
	TimeProximity     float64 `json:"timeProximity"`
	ServiceAdjacency  float64 `json:"serviceAdjacency"`
	ChangeRisk        float64 `json:"changeRisk"`
	ChangeType        float64 `json:"changeType"`
	EnvironmentMatch  float64 `json:"environmentMatch"`
}

// Confidence wraps the overall score and its per-factor breakdown.
type Confidence struct {
	Overall float64           `json:"overall"`
	Factors ConfidenceFactors `json:"factors"`
}

// ChangeCorrelation is a single scored candidate returned by the
// ChangeCorrelator, ranking a stored event against an incident.
type ChangeCorrelation struct {
	ChangeEvent        ChangeEvent    `json:"changeEvent"`
	CorrelationScore   float64        `json:"correlationScore"`
	CorrelationReasons []string       `json:"correlationReasons"`
	WhyRelevant        []string       `json:"whyRelevant"`
	ServiceOverlap     []string       `json:"serviceOverlap"`
	TimeDeltaMinutes   float64        `json:"timeDeltaMinutes"`
	Confidence         Confidence     `json:"confidence"`
	Evidence           []EvidenceLink `json:"evidence"`
}

// Incident describes the affected services, timing, and environment that
// correlate/triage reason about.
type Incident struct {
	AffectedServices    []string
	IncidentTime        time.Time
	WindowMinutes       int
	IncidentEnvironment string
}

// CorrelateOptions are the tunable parameters of ChangeCorrelator.correlate.
type CorrelateOptions struct {
	MaxResults          int
	MinScore            float64
	IncludeChangeSets    bool
}

// ReadinessStatus enumerates whether an operational artifact is present.
type ReadinessStatus string

const (
	ReadinessUpdated ReadinessStatus = "updated"
	ReadinessMissing ReadinessStatus = "missing"
	ReadinessUnknown ReadinessStatus = "unknown"
)

// ReadinessDelta assesses whether a change set carries the operational
// artifacts needed to respond to its own fallout.
type ReadinessDelta struct {
	RunbookUpdated    ReadinessStatus `json:"runbookUpdated"`
	MonitoringUpdated ReadinessStatus `json:"monitoringUpdated"`
	OwnershipKnown    ReadinessStatus `json:"ownershipKnown"`
	Notes             []string        `json:"notes"`
}

// ChangeSet is a clustering of related events assembled for triage.
type ChangeSet struct {
	ID            string         `json:"id"`
	Key           string         `json:"key"`
	Title         string         `json:"title"`
	EventCount    int            `json:"eventCount"`
	EventIDs      []string       `json:"eventIds"`
	Events        []ChangeEvent  `json:"events"`
	Services      []string       `json:"services"`
	Repositories  []string       `json:"repositories"`
	Environment   string         `json:"environment"`
	WindowStart   time.Time      `json:"windowStart"`
	WindowEnd     time.Time      `json:"windowEnd"`
	ChangeTypes   []ChangeType   `json:"changeTypes"`
	Initiators    []Initiator    `json:"initiators"`
	AuthorTypes   []AuthorType   `json:"authorTypes"`
	Evidence      []EvidenceLink `json:"evidence"`
	ReadinessDelta ReadinessDelta `json:"readinessDelta"`
	Confidence    float64        `json:"confidence"`
}

// RankedChangeSet augments a ChangeSet with the per-incident ranking
// produced by rankChangeSetsForIncident: the group score, a merged
// whyRelevant list, aggregated correlation confidence, and the blast
// radius predicted for the group as a whole.
type RankedChangeSet struct {
	ChangeSet            ChangeSet              `json:"changeSet"`
	Score                float64                `json:"score"`
	WhyRelevant          []string               `json:"whyRelevant"`
	Confidence           Confidence             `json:"confidence"`
	SuggestedBlastRadius *BlastRadiusPrediction `json:"suggestedBlastRadius,omitempty"`
}
