package usecases

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
)

// invalid builds a ValidationError and counts it.
func invalid(op string, err error) error {
	metrics.ValidationFailures.WithLabelValues(op).Inc()
	return domain.Invalid(op, err)
}

// EngineOption customizes an Engine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	logger *slog.Logger
	newID  func() string
	now    func() time.Time
	fit    bool
}

// WithLogger sets the logger used by every component.
func WithLogger(l *slog.Logger) EngineOption {
	return func(c *engineConfig) { c.logger = l }
}

// WithIDGenerator replaces the UUID generator for shapes and traces.
func WithIDGenerator(fn func() string) EngineOption {
	return func(c *engineConfig) { c.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) EngineOption {
	return func(c *engineConfig) { c.now = fn }
}

// WithFitOnImport sets whether imported traces fit the view by default.
func WithFitOnImport(fit bool) EngineOption {
	return func(c *engineConfig) { c.fit = fit }
}

// Engine wires the annotation components around one map surface. It is not
// safe for concurrent use; a Workspace serializes access to it.
type Engine struct {
	Registry  *OverlayRegistry
	Session   *DrawingSession
	PointZero *PointZeroController
	Zones     *ZoneAssignmentModel
	Traces    *TraceImporter

	logger *slog.Logger
}

// NewEngine creates an Engine drawing on surface and reporting to listener.
func NewEngine(surface ports.MapSurface, listener ports.AnnotationListener, opts ...EngineOption) *Engine {
	cfg := engineConfig{
		logger: slog.Default(),
		newID:  func() string { return uuid.NewString() },
		now:    time.Now,
		fit:    true,
	}
	for _, o := range opts {
		o(&cfg)
	}

	emit := emitter{listener: listener, logger: cfg.logger}
	registry := NewOverlayRegistry(surface, emit)
	pz := NewPointZeroController(registry, surface, emit)
	zones := NewZoneAssignmentModel(registry, surface, emit, cfg.logger)

	return &Engine{
		Registry:  registry,
		Session:   NewDrawingSession(surface, registry, pz, cfg.newID, cfg.now),
		PointZero: pz,
		Zones:     zones,
		Traces:    NewTraceImporter(registry, zones, cfg.logger, cfg.newID, cfg.now, cfg.fit),
		logger:    cfg.logger,
	}
}

// DeleteShape removes a shape and closes its menu if open.
func (e *Engine) DeleteShape(ctx context.Context, id string) error {
	if err := e.Registry.DeleteShape(ctx, id); err != nil {
		return err
	}
	e.Zones.forget(id)
	return nil
}

// ClearAll removes every shape and closes the menu.
func (e *Engine) ClearAll(ctx context.Context) {
	e.Registry.ClearAll(ctx)
	e.Zones.forget("")
}

// OpenMenu opens the zone menu. Rejected while a gesture is in progress.
func (e *Engine) OpenMenu(polygonID string, at ScreenPoint) (*ContextMenu, error) {
	if e.Session.Drawing() {
		return nil, invalid("open_menu", domain.ErrSessionBusy)
	}
	return e.Zones.OpenMenu(polygonID, at)
}

// KeyEvent is a keyboard press forwarded from the client.
type KeyEvent struct {
	Key              string `json:"key"`
	Ctrl             bool   `json:"ctrl"`
	Meta             bool   `json:"meta"`
	TextInputFocused bool   `json:"text_input_focused"`
}

// KeyAction reports what a key press did.
type KeyAction string

const (
	KeyNone      KeyAction = "none"
	KeyCloseMenu KeyAction = "close_menu"
	KeyCancel    KeyAction = "cancel"
	KeyFinish    KeyAction = "finish"
	KeyUndo      KeyAction = "undo"
)

// HandleKey applies the drawing shortcuts: Escape closes the menu or cancels,
// Enter finishes, Ctrl/Meta+Z and Backspace undo. Keys typed into a text
// input are ignored.
func (e *Engine) HandleKey(ctx context.Context, ev KeyEvent) (KeyAction, *domain.Shape, error) {
	if ev.TextInputFocused {
		return KeyNone, nil, nil
	}

	switch {
	case ev.Key == "Escape":
		if e.Zones.CloseMenu() {
			return KeyCloseMenu, nil, nil
		}
		if e.Session.Drawing() {
			return KeyCancel, nil, e.Session.Cancel()
		}
	case ev.Key == "Enter":
		if e.Session.Drawing() {
			shape, err := e.Session.Finish(ctx)
			return KeyFinish, shape, err
		}
	case ev.Key == "Backspace", strings.EqualFold(ev.Key, "z") && (ev.Ctrl || ev.Meta):
		if e.Session.Drawing() {
			return KeyUndo, nil, e.Session.UndoLastPoint()
		}
	}
	return KeyNone, nil, nil
}

// Restore loads persisted state without notifying the listener.
func (e *Engine) Restore(state RestoreState) {
	e.Zones.SetTeams(state.Teams)
	e.Registry.RestoreShapes(state.Shapes)
	e.Registry.RestoreAssignments(state.Assignments)
	e.Registry.RestoreTraces(state.Traces)
	if state.PointZero != nil {
		e.PointZero.Restore(*state.PointZero)
	}
}

// RestoreState is the persisted content of an incident map.
type RestoreState struct {
	Shapes      []domain.Shape
	Traces      []domain.ImportedTrace
	Assignments []domain.SearchZoneAssignment
	PointZero   *domain.PointZero
	Teams       []domain.Team
}
