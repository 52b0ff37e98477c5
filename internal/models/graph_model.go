package models

import "time"

// NodeType enumerates the kinds of participant in the service graph.
type NodeType string

const (
	NodeTypeService        NodeType = "service"
	NodeTypeDatabase        NodeType = "database"
	NodeTypeCache           NodeType = "cache"
	NodeTypeQueue           NodeType = "queue"
	NodeTypeExternal        NodeType = "external"
	NodeTypeInfrastructure  NodeType = "infrastructure"
)

// Tier enumerates the business criticality of a service node.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
)

// ServiceNode is a participant in the dependency graph.
type ServiceNode struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       NodeType               `json:"type"`
	Tier       Tier                   `json:"tier,omitempty"`
	Team       string                 `json:"team,omitempty"`
	Owner      string                 `json:"owner,omitempty"`
	Repository string                 `json:"repository,omitempty"`
	Tags       []string               `json:"tags,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// EdgeType enumerates the kind of runtime relationship an edge encodes.
type EdgeType string

const (
	EdgeTypeSync     EdgeType = "sync"
	EdgeTypeAsync    EdgeType = "async"
	EdgeTypeDatabase EdgeType = "database"
	EdgeTypeCache    EdgeType = "cache"
	EdgeTypeQueue    EdgeType = "queue"
	EdgeTypeExternal EdgeType = "external"
)

// Criticality enumerates how load-bearing a dependency edge is, ordered
// weakest-link: Critical is the strongest requirement, Optional the
// weakest. Weakest-link aggregation moves toward Optional.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityDegraded Criticality = "degraded"
	CriticalityOptional Criticality = "optional"
)

// criticalityRank orders criticalities from strongest (0) to weakest (2)
// so that weakest-link aggregation is `max(rank)`.
var criticalityRank = map[Criticality]int{
	CriticalityCritical: 0,
	CriticalityDegraded: 1,
	CriticalityOptional: 2,
}

// WeakestCriticality returns the weaker (more permissive) of a and b.
func WeakestCriticality(a, b Criticality) Criticality {
	ra, oka := criticalityRank[a]
	rb, okb := criticalityRank[b]
	if !oka {
		return b
	}
	if !okb {
		return a
	}
	if rb > ra {
		return b
	}
	return a
}

// EdgeSource enumerates the provenance of a dependency edge.
type EdgeSource string

const (
	EdgeSourceConfig     EdgeSource = "config"
	EdgeSourceManual     EdgeSource = "manual"
	EdgeSourceBackstage  EdgeSource = "backstage"
	EdgeSourceOTel       EdgeSource = "otel"
	EdgeSourceKubeLabels EdgeSource = "kube-labels"
	EdgeSourceInferred   EdgeSource = "inferred"
	EdgeSourceDiscovered EdgeSource = "discovered"
	EdgeSourceImport     EdgeSource = "import"
	EdgeSourceMCPImport  EdgeSource = "mcp-import"
)

// DependencyEdge is a directed relation source->target within the graph.
type DependencyEdge struct {
	ID          string                 `json:"id"`
	Source      string                 `json:"source"`
	Target      string                 `json:"target"`
	Type        EdgeType               `json:"type"`
	Protocol    string                 `json:"protocol,omitempty"`
	Criticality Criticality            `json:"criticality,omitempty"`
	EdgeSource  EdgeSource             `json:"edgeSource,omitempty"`
	Confidence  float64                `json:"confidence"`
	LastSeen    time.Time              `json:"lastSeen"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// EdgeID derives the canonical, stable id for an edge between source and
// target: edges between the same ordered pair collapse to one.
func EdgeID(source, target string) string {
	return source + "->" + target
}

// ImpactPath is the result of a single bounded graph traversal.
type ImpactPath struct {
	Source      string      `json:"source"`
	Affected    string      `json:"affected"`
	Path        []string    `json:"path"`
	Hops        int         `json:"hops"`
	Criticality Criticality `json:"criticality"`
	Confidence  float64     `json:"confidence"`
	EdgeSources []EdgeSource `json:"edgeSources"`
}

// GraphStats summarizes the graph's contents (ServiceGraph.getStats).
type GraphStats struct {
	NodeCount      int                `json:"nodeCount"`
	EdgeCount      int                `json:"edgeCount"`
	ByType         map[NodeType]int   `json:"byType"`
	ByTeam         map[string]int     `json:"byTeam"`
	AverageOutDegree float64          `json:"averageOutDegree"`
	CriticalTierCount int             `json:"criticalTierCount"`
}

// GraphExport is the JSON-serializable form of a ServiceGraph, as produced
// by ServiceGraph.toJSON and consumed by ServiceGraph.fromJSON.
type GraphExport struct {
	Nodes []ServiceNode    `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
}

// GraphImportFile is the schema of the config-driven graph file (YAML or
// JSON): `{ services: [...], dependencies: [...] }`. It is the shape
// used by graphImport and by the on-disk graph file the host
// loads at startup — distinct from GraphExport's {nodes, edges} shape,
// which is the graph's own self-serialization.
type GraphImportFile struct {
	Services     []ServiceNode    `yaml:"services" json:"services"`
	Dependencies []DependencyEdge `yaml:"dependencies" json:"dependencies"`
}
