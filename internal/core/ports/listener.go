package ports

import (
	"context"

	"github.com/samirrijal/sarmap/internal/core/domain"
)

// AnnotationListener receives the engine's outbound notifications. Errors are
// logged by the engine and never retried.
type AnnotationListener interface {
	OnShapeCreated(ctx context.Context, shape domain.Shape) error
	OnShapeDeleted(ctx context.Context, shapeID string) error
	OnShapesCleared(ctx context.Context) error
	OnMeasurement(ctx context.Context, m domain.Measurement) error
	OnPointZeroUpdate(ctx context.Context, u domain.PointZeroUpdate) error
	OnZoneAssign(ctx context.Context, polygonID, teamID string) error
	OnZoneUnassign(ctx context.Context, polygonID string) error
	OnTraceImported(ctx context.Context, trace domain.ImportedTrace) error
	OnTraceDeleted(ctx context.Context, traceID string) error
}
