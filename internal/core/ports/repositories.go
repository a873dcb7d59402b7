package ports

import (
	"context"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// ShapeRepository persists committed shapes per incident.
type ShapeRepository interface {
	Upsert(ctx context.Context, incidentID string, shape *domain.Shape) error
	Delete(ctx context.Context, incidentID, shapeID string) error
	DeleteAll(ctx context.Context, incidentID string) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Shape, error)
}

// TraceRepository persists imported traces.
type TraceRepository interface {
	Insert(ctx context.Context, incidentID string, trace *domain.ImportedTrace) error
	Delete(ctx context.Context, incidentID, traceID string) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.ImportedTrace, error)
}

// AssignmentRepository persists zone to team assignments.
type AssignmentRepository interface {
	Assign(ctx context.Context, incidentID string, a domain.SearchZoneAssignment) error
	Unassign(ctx context.Context, incidentID, polygonID string) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.SearchZoneAssignment, error)
}

// PointZeroRepository persists the last-known-location marker.
type PointZeroRepository interface {
	Save(ctx context.Context, incidentID string, pz *domain.PointZero) error
	// Get returns nil, nil when the incident has no PointZero.
	Get(ctx context.Context, incidentID string) (*domain.PointZero, error)
}

// TeamRepository reads the incident roster.
type TeamRepository interface {
	Upsert(ctx context.Context, incidentID string, team *domain.Team) error
	ListByIncident(ctx context.Context, incidentID string) ([]domain.Team, error)
}
