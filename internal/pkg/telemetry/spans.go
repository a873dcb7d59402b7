package telemetry

// Span names used for instrumentation.
const (
	SpanImportTrace   = "ingest.import_trace"
	SpanExportGeoJSON = "export.geojson"
	SpanRestore       = "workspace.restore"
	SpanRecordEvent   = "recorder.record_event"
)

// Span attribute keys.
const (
	AttrIncidentID = "sarmap.incident_id"
	AttrFileName   = "sarmap.file_name"
	AttrFormat     = "sarmap.format"
	AttrFeatures   = "sarmap.features"
	AttrEventType  = "sarmap.event_type"
)
