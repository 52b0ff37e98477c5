package api

import (
	"context"
	"encoding/json"

	"github.com/moolen-fork/changeintel/internal/models"
	"github.com/moolen-fork/changeintel/internal/service"
)

// Facade is the subset of *service.Service the HTTP layer calls into. It
// exists so handlers can be tested against a fake without a real store or
// graph.
type Facade interface {
	CreateEvent(ctx context.Context, partial *models.PartialChangeEvent, idempotencyKey string) (*models.ChangeEvent, bool, error)
	BatchCreate(ctx context.Context, partials []*models.PartialChangeEvent) ([]*models.ChangeEvent, error)
	GetEvent(ctx context.Context, id string) (*models.ChangeEvent, error)
	UpdateEvent(ctx context.Context, id string, patch *models.PartialChangeEvent) (*models.ChangeEvent, error)
	DeleteEvent(ctx context.Context, id string) error
	QueryEvents(ctx context.Context, opts models.QueryOptions) ([]*models.ChangeEvent, error)
	SearchEvents(ctx context.Context, q string, limit int) ([]*models.ChangeEvent, error)
	Velocity(ctx context.Context, svc string, windowMinutes, periods int) ([]*models.VelocityMetric, error)

	Correlate(ctx context.Context, req service.CorrelateRequest) (*service.CorrelateResult, error)
	BlastRadius(services []string, changeType models.ChangeType, maxDepth int) (*models.BlastRadiusPrediction, error)
	Triage(ctx context.Context, req service.TriageRequest) (*service.TriageResult, error)

	GraphImport(raw json.RawMessage, provenanceTag string) error
	ListServices() []models.ServiceNode
	Dependencies(serviceID string) ([]models.DependencyEdge, error)

	HealthCheck(ctx context.Context) *service.Health
}

var _ Facade = (*service.Service)(nil)
