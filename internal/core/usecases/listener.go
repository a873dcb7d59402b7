package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
)

// NopListener ignores every notification. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) OnShapeCreated(context.Context, domain.Shape) error              { return nil }
func (NopListener) OnShapeDeleted(context.Context, string) error                    { return nil }
func (NopListener) OnShapesCleared(context.Context) error                           { return nil }
func (NopListener) OnMeasurement(context.Context, domain.Measurement) error         { return nil }
func (NopListener) OnPointZeroUpdate(context.Context, domain.PointZeroUpdate) error { return nil }
func (NopListener) OnZoneAssign(context.Context, string, string) error              { return nil }
func (NopListener) OnZoneUnassign(context.Context, string) error                    { return nil }
func (NopListener) OnTraceImported(context.Context, domain.ImportedTrace) error     { return nil }
func (NopListener) OnTraceDeleted(context.Context, string) error                    { return nil }

// Listeners fans each notification out to every listener in order.
type Listeners []ports.AnnotationListener

func (ls Listeners) each(fn func(l ports.AnnotationListener) error) error {
	var errs []error
	for _, l := range ls {
		if err := fn(l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (ls Listeners) OnShapeCreated(ctx context.Context, s domain.Shape) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnShapeCreated(ctx, s) })
}

func (ls Listeners) OnShapeDeleted(ctx context.Context, id string) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnShapeDeleted(ctx, id) })
}

func (ls Listeners) OnShapesCleared(ctx context.Context) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnShapesCleared(ctx) })
}

func (ls Listeners) OnMeasurement(ctx context.Context, m domain.Measurement) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnMeasurement(ctx, m) })
}

func (ls Listeners) OnPointZeroUpdate(ctx context.Context, u domain.PointZeroUpdate) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnPointZeroUpdate(ctx, u) })
}

func (ls Listeners) OnZoneAssign(ctx context.Context, polygonID, teamID string) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnZoneAssign(ctx, polygonID, teamID) })
}

func (ls Listeners) OnZoneUnassign(ctx context.Context, polygonID string) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnZoneUnassign(ctx, polygonID) })
}

func (ls Listeners) OnTraceImported(ctx context.Context, t domain.ImportedTrace) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnTraceImported(ctx, t) })
}

func (ls Listeners) OnTraceDeleted(ctx context.Context, id string) error {
	return ls.each(func(l ports.AnnotationListener) error { return l.OnTraceDeleted(ctx, id) })
}

// emitter delivers notifications and swallows listener failures after
// logging them.
type emitter struct {
	listener ports.AnnotationListener
	logger   *slog.Logger
}

func (e emitter) emit(ctx context.Context, event domain.EventType, fn func(l ports.AnnotationListener) error) {
	if e.listener == nil {
		return
	}
	if err := fn(e.listener); err != nil {
		metrics.ListenerErrors.WithLabelValues(string(event)).Inc()
		e.logger.Warn("annotation listener failed", "event", event, "error", err)
	}
}

// EventBridge is an AnnotationListener that publishes every notification as
// an AnnotationEvent for one incident.
type EventBridge struct {
	incidentID string
	publisher  ports.EventPublisher
	now        func() time.Time
}

// NewEventBridge creates a new EventBridge.
func NewEventBridge(incidentID string, publisher ports.EventPublisher) *EventBridge {
	return &EventBridge{incidentID: incidentID, publisher: publisher, now: time.Now}
}

func (b *EventBridge) publish(ctx context.Context, ev domain.AnnotationEvent) error {
	if b.publisher == nil {
		return nil
	}
	ev.IncidentID = b.incidentID
	ev.Time = b.now().UTC()
	return b.publisher.PublishAnnotationEvent(ctx, &ev)
}

func (b *EventBridge) OnShapeCreated(ctx context.Context, s domain.Shape) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventShapeCreated, Shape: &s, ShapeID: s.ID})
}

func (b *EventBridge) OnShapeDeleted(ctx context.Context, id string) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventShapeDeleted, ShapeID: id})
}

func (b *EventBridge) OnShapesCleared(ctx context.Context) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventShapesCleared})
}

func (b *EventBridge) OnMeasurement(ctx context.Context, m domain.Measurement) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventMeasurement, Measurement: &m})
}

func (b *EventBridge) OnPointZeroUpdate(ctx context.Context, u domain.PointZeroUpdate) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventPointZeroUpdate, PointZero: &u})
}

func (b *EventBridge) OnZoneAssign(ctx context.Context, polygonID, teamID string) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventZoneAssigned, PolygonID: polygonID, TeamID: teamID})
}

func (b *EventBridge) OnZoneUnassign(ctx context.Context, polygonID string) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventZoneUnassigned, PolygonID: polygonID})
}

func (b *EventBridge) OnTraceImported(ctx context.Context, t domain.ImportedTrace) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventTraceImported, Trace: &t, TraceID: t.ID})
}

func (b *EventBridge) OnTraceDeleted(ctx context.Context, id string) error {
	return b.publish(ctx, domain.AnnotationEvent{Type: domain.EventTraceDeleted, TraceID: id})
}
