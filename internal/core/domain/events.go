package domain

import "time"

// EventType names an annotation event on the wire.
type EventType string

const (
	EventShapeCreated    EventType = "shape.created"
	EventShapeDeleted    EventType = "shape.deleted"
	EventShapesCleared   EventType = "shapes.cleared"
	EventMeasurement     EventType = "measurement"
	EventPointZeroUpdate EventType = "point_zero.updated"
	EventZoneAssigned    EventType = "zone.assigned"
	EventZoneUnassigned  EventType = "zone.unassigned"
	EventTraceImported   EventType = "trace.imported"
	EventTraceDeleted    EventType = "trace.deleted"
)

// AnnotationEvent is the serialized form of a listener callback, published
// for the incident record keeper and connected browsers.
type AnnotationEvent struct {
	Type        EventType        `json:"type"`
	IncidentID  string           `json:"incident_id"`
	Time        time.Time        `json:"time"`
	Shape       *Shape           `json:"shape,omitempty"`
	ShapeID     string           `json:"shape_id,omitempty"`
	Measurement *Measurement     `json:"measurement,omitempty"`
	PointZero   *PointZeroUpdate `json:"point_zero,omitempty"`
	PolygonID   string           `json:"polygon_id,omitempty"`
	TeamID      string           `json:"team_id,omitempty"`
	Trace       *ImportedTrace   `json:"trace,omitempty"`
	TraceID     string           `json:"trace_id,omitempty"`
}
