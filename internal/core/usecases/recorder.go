package usecases

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
	"github.com/samirrijal/sarmap/internal/pkg/telemetry"
)

// RecorderService persists annotation events so a workspace can be restored
// later. It is the caller-side record keeper the engine reports to.
type RecorderService struct {
	store  WorkspaceStore
	logger *slog.Logger
}

// NewRecorderService creates a new RecorderService.
func NewRecorderService(store WorkspaceStore, logger *slog.Logger) *RecorderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecorderService{store: store, logger: logger}
}

// Record applies one event to the store. Measurement events carry nothing
// to persist.
func (s *RecorderService) Record(ctx context.Context, ev *domain.AnnotationEvent) error {
	ctx, span := telemetry.Tracer("sarmap/usecases").Start(ctx, telemetry.SpanRecordEvent)
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrIncidentID, ev.IncidentID),
		attribute.String(telemetry.AttrEventType, string(ev.Type)),
	)

	if ev.IncidentID == "" {
		return fmt.Errorf("event %s has no incident id", ev.Type)
	}

	var err error
	switch ev.Type {
	case domain.EventShapeCreated:
		if ev.Shape == nil {
			return fmt.Errorf("event %s has no shape", ev.Type)
		}
		err = s.store.Shapes.Upsert(ctx, ev.IncidentID, ev.Shape)
	case domain.EventShapeDeleted:
		err = s.store.Shapes.Delete(ctx, ev.IncidentID, ev.ShapeID)
	case domain.EventShapesCleared:
		err = s.store.Shapes.DeleteAll(ctx, ev.IncidentID)
	case domain.EventZoneAssigned:
		err = s.store.Assignments.Assign(ctx, ev.IncidentID, domain.SearchZoneAssignment{PolygonID: ev.PolygonID, TeamID: ev.TeamID})
	case domain.EventZoneUnassigned:
		err = s.store.Assignments.Unassign(ctx, ev.IncidentID, ev.PolygonID)
	case domain.EventPointZeroUpdate:
		if ev.PointZero == nil {
			return fmt.Errorf("event %s has no position", ev.Type)
		}
		pz := domain.PointZero{
			Position: domain.Coordinate{Lat: ev.PointZero.Lat, Lng: ev.PointZero.Lng},
			Locked:   true,
			Address:  ev.PointZero.Address,
		}
		err = s.store.PointZero.Save(ctx, ev.IncidentID, &pz)
	case domain.EventTraceImported:
		if ev.Trace == nil {
			return fmt.Errorf("event %s has no trace", ev.Type)
		}
		err = s.store.Traces.Insert(ctx, ev.IncidentID, ev.Trace)
	case domain.EventTraceDeleted:
		err = s.store.Traces.Delete(ctx, ev.IncidentID, ev.TraceID)
	case domain.EventMeasurement:
		return nil
	default:
		s.logger.Warn("unknown annotation event", "type", ev.Type)
		return nil
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", ev.Type, err)
	}

	metrics.EventsRecorded.WithLabelValues(string(ev.Type)).Inc()
	return nil
}
