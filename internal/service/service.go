// Package service implements the Service facade: createEvent, batchCreate,
// getEvent, updateEvent, deleteEvent, queryEvents, searchEvents, correlate,
// blastRadius, velocity, triage, graphImport, listServices, dependencies,
// and health, realized on top of the EventStore, ServiceGraph, and
// analysis packages. This is the seam transport code (internal/api) calls
// into; it never imports net/http or any transport-specific type.
package service

import (
	"context"

	"github.com/moolen-fork/changeintel/internal/analysis/blastradius"
	"github.com/moolen-fork/changeintel/internal/analysis/changeset"
	"github.com/moolen-fork/changeintel/internal/analysis/correlate"
	"github.com/moolen-fork/changeintel/internal/graph"
	"github.com/moolen-fork/changeintel/internal/logging"
	"github.com/moolen-fork/changeintel/internal/metrics"
	"github.com/moolen-fork/changeintel/internal/models"
)

// EventStore is the subset of store.Store the facade depends on.
type EventStore interface {
	Insert(ctx context.Context, partial *models.PartialChangeEvent) (*models.ChangeEvent, bool, error)
	Get(ctx context.Context, id string) (*models.ChangeEvent, error)
	Update(ctx context.Context, id string, patch *models.PartialChangeEvent) (*models.ChangeEvent, error)
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, opts models.QueryOptions) ([]*models.ChangeEvent, error)
	Search(ctx context.Context, q string, opts models.QueryOptions) ([]*models.ChangeEvent, error)
	GetRecentForServices(ctx context.Context, services []string, windowMinutes int) ([]*models.ChangeEvent, error)
	GetVelocity(ctx context.Context, service string, windowMinutes int) (*models.VelocityMetric, error)
	GetVelocityTrend(ctx context.Context, service string, windowMinutes, periods int) ([]*models.VelocityMetric, error)
	GetStats(ctx context.Context) (*models.StoreStats, error)
}

// Service wires the store, graph, and analyzers into the callable list
// transports invoke. The zero value is not usable; construct with New.
type Service struct {
	store       EventStore
	graph       *graph.ServiceGraph
	impactCache *graph.ImpactCache
	analyzer    *blastradius.Analyzer
	correlator  *correlate.Correlator
	grouper     *changeset.Grouper
	logger      *logging.Logger
	metrics     *metrics.Metrics
}

// Config is New's constructor input. Graph must not be nil; a fresh
// graph.New() is a valid, empty choice. Metrics is optional; a nil value
// disables instrumentation rather than panicking.
type Config struct {
	Store         EventStore
	Graph         *graph.ServiceGraph
	BucketMinutes int
	Metrics       *metrics.Metrics

	// ImpactCacheConfig bounds the LRU cache Predict's upstream-impact
	// traversals sit behind. The zero value disables caching: blast-radius
	// and correlate calls hit the graph directly.
	ImpactCacheConfig graph.ImpactCacheConfig
}

// New wires a Service from its dependencies. It constructs the analyzer,
// correlator, and grouper over graph and store, so callers never assemble
// those themselves.
func New(cfg Config) *Service {
	var cache *graph.ImpactCache
	var analyzerSource interface {
		GetUpstreamImpact(node string, maxDepth int) []models.ImpactPath
	} = cfg.Graph
	if cfg.ImpactCacheConfig.Enabled {
		c, err := graph.NewImpactCache(cfg.Graph, cfg.ImpactCacheConfig)
		if err == nil {
			cache = c
			analyzerSource = c
		}
	}

	return &Service{
		store:       cfg.Store,
		graph:       cfg.Graph,
		impactCache: cache,
		analyzer:    blastradius.New(analyzerSource),
		correlator:  correlate.New(cfg.Store, cfg.Graph),
		grouper:     changeset.New(cfg.Graph, cfg.BucketMinutes),
		logger:      logging.GetLogger("service"),
		metrics:     cfg.Metrics,
	}
}
