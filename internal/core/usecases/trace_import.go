package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/pkg/geospatial"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
	"github.com/samirrijal/sarmap/internal/pkg/telemetry"
	"github.com/samirrijal/sarmap/internal/pkg/traceformat"
)

// TraceImportRequest carries an uploaded trace file and its team tag.
type TraceImportRequest struct {
	FileName string
	Data     []byte
	TeamID   string
	TeamName string
	Label    string
	// Fit overrides the importer default for fitting the view.
	Fit *bool
}

// BuildTrace parses a trace file into an ImportedTrace. Nothing is built
// when parsing fails.
func BuildTrace(ctx context.Context, req TraceImportRequest, id string, now time.Time) (*domain.ImportedTrace, domain.Bounds, error) {
	_, span := telemetry.Tracer("sarmap/usecases").Start(ctx, telemetry.SpanImportTrace)
	defer span.End()
	span.SetAttributes(attribute.String(telemetry.AttrFileName, req.FileName))

	format, _ := traceformat.DetectFormat(req.FileName)
	start := time.Now()
	fc, err := traceformat.Parse(req.FileName, req.Data)
	if err != nil {
		var pe *domain.ParseError
		if errors.As(err, &pe) {
			metrics.TraceParseErrors.WithLabelValues(string(pe.Kind)).Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, domain.EmptyBounds(), err
	}
	metrics.TraceParseDuration.WithLabelValues(string(format)).Observe(time.Since(start).Seconds())
	metrics.TracesImported.WithLabelValues(string(format)).Inc()
	span.SetAttributes(
		attribute.String(telemetry.AttrFormat, string(format)),
		attribute.Int(telemetry.AttrFeatures, len(fc.Features)),
	)

	label := req.Label
	if label == "" {
		label = req.FileName
	}
	return &domain.ImportedTrace{
		ID:             id,
		TeamID:         req.TeamID,
		TeamName:       req.TeamName,
		Label:          label,
		SourceFileName: req.FileName,
		UploadedAt:     now.UTC(),
		Geometry:       fc,
		Visible:        true,
		Color:          geospatial.ColorFromID(req.TeamID),
	}, traceformat.Bounds(fc), nil
}

// TraceImporter adds parsed trace files to an OverlayRegistry.
type TraceImporter struct {
	registry *OverlayRegistry
	zones    *ZoneAssignmentModel
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
	fit      bool
}

// NewTraceImporter creates a new TraceImporter.
func NewTraceImporter(registry *OverlayRegistry, zones *ZoneAssignmentModel, logger *slog.Logger, newID func() string, now func() time.Time, fit bool) *TraceImporter {
	return &TraceImporter{registry: registry, zones: zones, logger: logger, newID: newID, now: now, fit: fit}
}

// Import parses and registers one file. On a parse error the registry is
// left unchanged.
func (t *TraceImporter) Import(ctx context.Context, req TraceImportRequest) (*domain.ImportedTrace, error) {
	if req.TeamName == "" && req.TeamID != "" {
		req.TeamName = t.zones.TeamName(req.TeamID)
	}

	trace, bounds, err := BuildTrace(ctx, req, t.newID(), t.now())
	if err != nil {
		t.logger.Warn("trace import rejected", "file", req.FileName, "error", err)
		return nil, err
	}

	fit := t.fit
	if req.Fit != nil {
		fit = *req.Fit
	}
	t.registry.AddTrace(ctx, *trace, fit, bounds)
	t.logger.Info("trace imported", "file", req.FileName, "trace_id", trace.ID, "team_id", trace.TeamID, "features", len(trace.Geometry.Features))
	return trace, nil
}
