package usecases

import (
	"context"
	"log/slog"
	"math"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
)

// Context menu footprint in screen pixels.
const (
	MenuWidth  = 220
	MenuHeight = 180
)

// Menu actions.
const (
	ActionAssignTeam = "assign_team"
	ActionUnassign   = "unassign"
)

// ScreenPoint is a position in viewport pixels.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ContextMenu is the zone menu as currently shown.
type ContextMenu struct {
	PolygonID        string        `json:"polygon_id"`
	Anchor           ScreenPoint   `json:"anchor"`
	Width            int           `json:"width"`
	Height           int           `json:"height"`
	AssignedTeamID   string        `json:"assigned_team_id,omitempty"`
	AssignedTeamName string        `json:"assigned_team_name,omitempty"`
	Actions          []string      `json:"actions"`
	PickerOpen       bool          `json:"picker_open"`
	Teams            []domain.Team `json:"teams,omitempty"`
}

func (m *ContextMenu) contains(p ScreenPoint) bool {
	return p.X >= m.Anchor.X && p.X <= m.Anchor.X+float64(m.Width) &&
		p.Y >= m.Anchor.Y && p.Y <= m.Anchor.Y+float64(m.Height)
}

// ZoneAssignmentModel joins drawn zones to response teams and drives the
// per-zone context menu. Team ids are not checked against the roster.
type ZoneAssignmentModel struct {
	registry *OverlayRegistry
	surface  ports.MapSurface
	emit     emitter
	logger   *slog.Logger

	teams     map[string]domain.Team
	teamOrder []string
	menu      *ContextMenu
}

// NewZoneAssignmentModel creates a new ZoneAssignmentModel.
func NewZoneAssignmentModel(registry *OverlayRegistry, surface ports.MapSurface, emit emitter, logger *slog.Logger) *ZoneAssignmentModel {
	return &ZoneAssignmentModel{
		registry: registry,
		surface:  surface,
		emit:     emit,
		logger:   logger,
		teams:    map[string]domain.Team{},
	}
}

// SetTeams replaces the known roster.
func (z *ZoneAssignmentModel) SetTeams(teams []domain.Team) {
	z.teams = make(map[string]domain.Team, len(teams))
	z.teamOrder = z.teamOrder[:0]
	for _, t := range teams {
		if _, dup := z.teams[t.ID]; !dup {
			z.teamOrder = append(z.teamOrder, t.ID)
		}
		z.teams[t.ID] = t
	}
	if z.menu != nil && z.menu.PickerOpen {
		z.menu.Teams = z.Teams()
	}
}

// Teams returns the roster in the order it was supplied.
func (z *ZoneAssignmentModel) Teams() []domain.Team {
	out := make([]domain.Team, 0, len(z.teamOrder))
	for _, id := range z.teamOrder {
		out = append(out, z.teams[id])
	}
	return out
}

// TeamName returns the roster name for a team id.
func (z *ZoneAssignmentModel) TeamName(teamID string) string {
	return z.teams[teamID].Name
}

func (z *ZoneAssignmentModel) zone(op, polygonID string) (domain.Shape, error) {
	s, ok := z.registry.Shape(polygonID)
	if !ok {
		return domain.Shape{}, invalid(op, domain.ErrShapeNotFound)
	}
	if !s.Kind.IsZone() {
		return domain.Shape{}, invalid(op, domain.ErrNotZone)
	}
	return s, nil
}

// Assign sets the team for a zone, overwriting any previous one.
func (z *ZoneAssignmentModel) Assign(ctx context.Context, polygonID, teamID string) error {
	if teamID == "" {
		return invalid("assign", domain.ErrTeamRequired)
	}
	if _, err := z.zone("assign", polygonID); err != nil {
		return err
	}
	if _, known := z.teams[teamID]; !known {
		z.logger.Warn("assigning zone to team not in roster", "polygon_id", polygonID, "team_id", teamID)
	}

	z.registry.setAssignment(polygonID, teamID)
	metrics.ZoneAssignments.Inc()
	z.emit.emit(ctx, domain.EventZoneAssigned, func(l ports.AnnotationListener) error {
		return l.OnZoneAssign(ctx, polygonID, teamID)
	})
	return nil
}

// Unassign clears the team of a zone.
func (z *ZoneAssignmentModel) Unassign(ctx context.Context, polygonID string) error {
	s, err := z.zone("unassign", polygonID)
	if err != nil {
		return err
	}
	if s.AssignedTeamID == "" {
		return invalid("unassign", domain.ErrNotAssigned)
	}

	z.registry.setAssignment(polygonID, "")
	z.emit.emit(ctx, domain.EventZoneUnassigned, func(l ports.AnnotationListener) error {
		return l.OnZoneUnassign(ctx, polygonID)
	})
	return nil
}

// Assignment returns the team assigned to a zone.
func (z *ZoneAssignmentModel) Assignment(polygonID string) (string, bool) {
	s, ok := z.registry.Shape(polygonID)
	if !ok || s.AssignedTeamID == "" {
		return "", false
	}
	return s.AssignedTeamID, true
}

// Assignments lists all joins in shape order.
func (z *ZoneAssignmentModel) Assignments() []domain.SearchZoneAssignment {
	return z.registry.Assignments()
}

// OpenMenu shows the context menu for a zone, anchored at the pointer and
// kept inside the viewport. Any previous menu is replaced.
func (z *ZoneAssignmentModel) OpenMenu(polygonID string, at ScreenPoint) (*ContextMenu, error) {
	s, err := z.zone("open_menu", polygonID)
	if err != nil {
		return nil, err
	}

	w, h := z.surface.ViewportSize()
	m := &ContextMenu{
		PolygonID: polygonID,
		Anchor: ScreenPoint{
			X: clamp(at.X, 0, float64(w-MenuWidth)),
			Y: clamp(at.Y, 0, float64(h-MenuHeight)),
		},
		Width:   MenuWidth,
		Height:  MenuHeight,
		Actions: []string{ActionAssignTeam},
	}
	if s.AssignedTeamID != "" {
		m.AssignedTeamID = s.AssignedTeamID
		m.AssignedTeamName = z.TeamName(s.AssignedTeamID)
		m.Actions = append(m.Actions, ActionUnassign)
	}
	z.menu = m
	return z.Menu(), nil
}

// Menu returns a copy of the open menu, or nil.
func (z *ZoneAssignmentModel) Menu() *ContextMenu {
	if z.menu == nil {
		return nil
	}
	m := *z.menu
	m.Actions = append([]string(nil), z.menu.Actions...)
	m.Teams = append([]domain.Team(nil), z.menu.Teams...)
	return &m
}

// OpenTeamPicker expands the menu into the team list.
func (z *ZoneAssignmentModel) OpenTeamPicker() (*ContextMenu, error) {
	if z.menu == nil {
		return nil, invalid("open_team_picker", domain.ErrMenuClosed)
	}
	z.menu.PickerOpen = true
	z.menu.Teams = z.Teams()
	return z.Menu(), nil
}

// SelectTeam assigns the picked team to the menu's zone and closes the menu.
func (z *ZoneAssignmentModel) SelectTeam(ctx context.Context, teamID string) error {
	if z.menu == nil {
		return invalid("select_team", domain.ErrMenuClosed)
	}
	if !z.menu.PickerOpen {
		return invalid("select_team", domain.ErrPickerClosed)
	}
	if err := z.Assign(ctx, z.menu.PolygonID, teamID); err != nil {
		return err
	}
	z.menu = nil
	return nil
}

// UnassignFromMenu clears the menu zone's team and closes the menu.
func (z *ZoneAssignmentModel) UnassignFromMenu(ctx context.Context) error {
	if z.menu == nil {
		return invalid("unassign_from_menu", domain.ErrMenuClosed)
	}
	if err := z.Unassign(ctx, z.menu.PolygonID); err != nil {
		return err
	}
	z.menu = nil
	return nil
}

// CloseMenu hides the menu. It reports whether one was open.
func (z *ZoneAssignmentModel) CloseMenu() bool {
	open := z.menu != nil
	z.menu = nil
	return open
}

// ClickAt closes the menu when the click lands outside it and reports
// whether it did.
func (z *ZoneAssignmentModel) ClickAt(p ScreenPoint) bool {
	if z.menu == nil || z.menu.contains(p) {
		return false
	}
	z.menu = nil
	return true
}

// forget closes the menu when its zone disappears.
func (z *ZoneAssignmentModel) forget(polygonID string) {
	if z.menu != nil && (polygonID == "" || z.menu.PolygonID == polygonID) {
		z.menu = nil
	}
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Max(lo, math.Min(v, hi))
}
