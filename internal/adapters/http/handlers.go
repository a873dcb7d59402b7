package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/usecases"
)

var (
	errInvalidIncident = errors.New("incident id must be 1-64 characters of letters, digits, '-' or '_'")
	incidentIDPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
)

// incidentView is the full state of an incident map.
type incidentView struct {
	ID                 string                        `json:"id"`
	Revision           uint64                        `json:"revision"`
	Shapes             []domain.Shape                `json:"shapes"`
	Traces             []domain.ImportedTrace        `json:"traces"`
	PointZero          *domain.PointZero             `json:"point_zero,omitempty"`
	Assignments        []domain.SearchZoneAssignment `json:"assignments"`
	Visibility         domain.LayerVisibility        `json:"visibility"`
	CurrentMeasurement *domain.Measurement           `json:"current_measurement,omitempty"`
	Teams              []domain.Team                 `json:"teams"`
	Session            usecases.SessionView          `json:"session"`
	Menu               *usecases.ContextMenu         `json:"menu,omitempty"`
}

func buildIncidentView(id string, e *usecases.Engine) incidentView {
	snap := e.Registry.Snapshot()
	return incidentView{
		ID:                 id,
		Revision:           snap.Revision,
		Shapes:             snap.Shapes,
		Traces:             snap.Traces,
		PointZero:          snap.PointZero,
		Assignments:        snap.Assignments,
		Visibility:         snap.Visibility,
		CurrentMeasurement: snap.CurrentMeasurement,
		Teams:              e.Zones.Teams(),
		Session:            e.Session.View(),
		Menu:               e.Zones.Menu(),
	}
}

// drawingResponse is returned by every drawing gesture.
type drawingResponse struct {
	Session usecases.SessionView `json:"session"`
	Shape   *domain.Shape        `json:"shape,omitempty"`
}

type coordinateRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (r coordinateRequest) coordinate() (domain.Coordinate, error) {
	if r.Lat == nil || r.Lng == nil {
		return domain.Coordinate{}, errors.New("lat and lng are required")
	}
	return domain.Coordinate{Lat: *r.Lat, Lng: *r.Lng}, nil
}

// parseCoordinate reads a {"lat":..,"lng":..} body.
func parseCoordinate(c *fiber.Ctx) (domain.Coordinate, error) {
	var req coordinateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.Coordinate{}, errors.New("invalid request body")
	}
	return req.coordinate()
}

// withEngine runs fn on the incident's workspace goroutine.
func withEngine(c *fiber.Ctx, deps *Dependencies, fn func(ctx context.Context, e *usecases.Engine) error) error {
	id := c.Params("id")
	if !incidentIDPattern.MatchString(id) {
		return errInvalidIncident
	}
	return deps.Workspaces.Do(c.UserContext(), id, fn)
}

// ---- Incident ----

// GetIncidentHandler returns the full incident state.
func GetIncidentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var view incidentView
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			view = buildIncidentView(c.Params("id"), e)
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(view)
	}
}

// EvictIncidentHandler unloads an incident workspace from memory.
func EvictIncidentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !incidentIDPattern.MatchString(id) {
			return respondError(c, errInvalidIncident)
		}
		if !deps.Workspaces.Evict(id) {
			return errNotFound(c, "incident workspace not loaded")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SceneHandler returns the render scene for clients joining mid-session.
func SceneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !incidentIDPattern.MatchString(id) {
			return respondError(c, errInvalidIncident)
		}
		// loads the workspace so a first visit still gets a scene
		if err := withEngine(c, deps, func(context.Context, *usecases.Engine) error { return nil }); err != nil {
			return respondError(c, err)
		}
		scene, ok := deps.Scenes.Scene(id)
		if !ok {
			return errNotFound(c, "scene not available")
		}
		c.Set("Cache-Control", "no-store")
		return c.JSON(scene)
	}
}

// ---- Drawing ----

// StartDrawingHandler enters a drawing mode. Body: {"mode":"polygon"}.
func StartDrawingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			Mode string `json:"mode"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		var resp drawingResponse
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			if err := e.Session.StartDrawing(domain.DrawMode(req.Mode)); err != nil {
				return err
			}
			resp.Session = e.Session.View()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resp)
	}
}

// PointerClickHandler feeds a map click into the drawing session.
func PointerClickHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		at, err := parseCoordinate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		var resp drawingResponse
		err = withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			shape, err := e.Session.PointerClick(ctx, at)
			if err != nil {
				return err
			}
			resp = drawingResponse{Session: e.Session.View(), Shape: shape}
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resp)
	}
}

// PointerMoveHandler updates the live preview of the shape being drawn.
func PointerMoveHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		at, err := parseCoordinate(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		err = withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			e.Session.PointerMove(at)
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// FinishDrawingHandler completes a polygon, polyline or measurement.
func FinishDrawingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var resp drawingResponse
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			shape, err := e.Session.Finish(ctx)
			if err != nil {
				return err
			}
			resp = drawingResponse{Session: e.Session.View(), Shape: shape}
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resp)
	}
}

// CancelDrawingHandler discards the shape in progress.
func CancelDrawingHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(e *usecases.Engine) error { return e.Session.Cancel() })
}

// UndoPointHandler removes the last placed vertex.
func UndoPointHandler(deps *Dependencies) fiber.Handler {
	return sessionHandler(deps, func(e *usecases.Engine) error { return e.Session.UndoLastPoint() })
}

func sessionHandler(deps *Dependencies, op func(e *usecases.Engine) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var resp drawingResponse
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			if err := op(e); err != nil {
				return err
			}
			resp.Session = e.Session.View()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resp)
	}
}

// KeyHandler applies a keyboard shortcut (Escape, Enter, Ctrl/Cmd+Z).
func KeyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var ev usecases.KeyEvent
		if err := c.BodyParser(&ev); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		var resp struct {
			Action  usecases.KeyAction   `json:"action"`
			Session usecases.SessionView `json:"session"`
			Shape   *domain.Shape        `json:"shape,omitempty"`
		}
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			action, shape, err := e.HandleKey(ctx, ev)
			if err != nil {
				return err
			}
			resp.Action, resp.Shape, resp.Session = action, shape, e.Session.View()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resp)
	}
}

// ---- Shapes & layers ----

// ListShapesHandler returns the committed shapes.
func ListShapesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var shapes []domain.Shape
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			shapes = e.Registry.Shapes()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(shapes)
	}
}

// DeleteShapeHandler removes one shape.
func DeleteShapeHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		shapeID := c.Params("shapeId")
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			return e.DeleteShape(ctx, shapeID)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ClearShapesHandler removes every drawn shape. PointZero and traces stay.
func ClearShapesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			e.ClearAll(ctx)
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

type visibilityRequest struct {
	Visible *bool `json:"visible"`
}

// SetLayerVisibilityHandler shows or hides a layer. Body: {"visible":false}.
func SetLayerVisibilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req visibilityRequest
		if err := c.BodyParser(&req); err != nil || req.Visible == nil {
			return errBadRequest(c, "visible is required")
		}
		layer := domain.Layer(c.Params("layer"))
		var vis domain.LayerVisibility
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			if err := e.Registry.SetLayerVisible(layer, *req.Visible); err != nil {
				return err
			}
			vis = e.Registry.Visibility()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(vis)
	}
}

// ---- Traces ----

// traceSummary is a trace without its geometry.
type traceSummary struct {
	ID             string `json:"id"`
	TeamID         string `json:"team_id,omitempty"`
	TeamName       string `json:"team_name,omitempty"`
	Label          string `json:"label,omitempty"`
	SourceFileName string `json:"source_file_name"`
	UploadedAt     string `json:"uploaded_at"`
	Visible        bool   `json:"visible"`
	Color          string `json:"color"`
	Features       int    `json:"features"`
}

func summarize(t domain.ImportedTrace) traceSummary {
	n := 0
	if t.Geometry != nil {
		n = len(t.Geometry.Features)
	}
	return traceSummary{
		ID:             t.ID,
		TeamID:         t.TeamID,
		TeamName:       t.TeamName,
		Label:          t.Label,
		SourceFileName: t.SourceFileName,
		UploadedAt:     t.UploadedAt.Format(time.RFC3339),
		Visible:        t.Visible,
		Color:          t.Color,
		Features:       n,
	}
}

// ImportTraceHandler ingests a GPX, KML, KMZ or GeoJSON upload.
// Multipart fields: file (required), team_id, label, fit.
func ImportTraceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return errBadRequest(c, "multipart field 'file' is required")
		}
		if deps.MaxUploadBytes > 0 && fh.Size > int64(deps.MaxUploadBytes) {
			return errTooLarge(c, fmt.Sprintf("file exceeds %d bytes", deps.MaxUploadBytes))
		}
		f, err := fh.Open()
		if err != nil {
			return errBadRequest(c, "cannot read upload")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return errBadRequest(c, "cannot read upload")
		}

		req := usecases.TraceImportRequest{
			FileName: fh.Filename,
			Data:     data,
			TeamID:   c.FormValue("team_id"),
			Label:    c.FormValue("label"),
		}
		if raw := c.FormValue("fit"); raw != "" {
			fit, err := strconv.ParseBool(raw)
			if err != nil {
				return errBadRequest(c, "fit must be a boolean")
			}
			req.Fit = &fit
		}

		id := c.Params("id")
		if !incidentIDPattern.MatchString(id) {
			return respondError(c, errInvalidIncident)
		}
		trace, err := deps.Workspaces.ImportTrace(c.UserContext(), id, req)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(trace)
	}
}

// ListTracesHandler returns imported traces, paginated. Geometry is only
// included with ?geometry=true.
func ListTracesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var traces []domain.ImportedTrace
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			traces = e.Registry.Traces()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}

		page, pg := paginate(c, traces)
		SetLinkHeaders(c, pg)
		if c.QueryBool("geometry", false) {
			return c.JSON(PaginatedResponse{Data: page, Pagination: pg})
		}
		out := make([]traceSummary, len(page))
		for i, t := range page {
			out[i] = summarize(t)
		}
		return c.JSON(PaginatedResponse{Data: out, Pagination: pg})
	}
}

// GetTraceHandler returns one trace with its geometry.
func GetTraceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Params("traceId")
		var trace domain.ImportedTrace
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			t, ok := e.Registry.Trace(traceID)
			if !ok {
				return domain.ErrTraceNotFound
			}
			trace = t
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(trace)
	}
}

// SetTraceVisibilityHandler shows or hides one trace.
func SetTraceVisibilityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req visibilityRequest
		if err := c.BodyParser(&req); err != nil || req.Visible == nil {
			return errBadRequest(c, "visible is required")
		}
		traceID := c.Params("traceId")
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			return e.Registry.SetTraceVisible(traceID, *req.Visible)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteTraceHandler removes an imported trace.
func DeleteTraceHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		traceID := c.Params("traceId")
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			return e.Registry.DeleteTrace(ctx, traceID)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Teams ----

// ListTeamsHandler returns the incident roster.
func ListTeamsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var teams []domain.Team
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			teams = e.Zones.Teams()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(teams)
	}
}

// SetTeamsHandler replaces the roster the zone menu offers.
func SetTeamsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var teams []domain.Team
		if err := c.BodyParser(&teams); err != nil {
			return errBadRequest(c, "body must be an array of teams")
		}
		for _, t := range teams {
			if t.ID == "" || t.Name == "" {
				return errBadRequest(c, "every team needs an id and a name")
			}
		}
		id := c.Params("id")
		if !incidentIDPattern.MatchString(id) {
			return respondError(c, errInvalidIncident)
		}
		if err := deps.Workspaces.SetTeams(c.UserContext(), id, teams); err != nil {
			return respondError(c, err)
		}
		return c.JSON(teams)
	}
}

// ---- PointZero ----

// GetPointZeroHandler returns the last known location.
func GetPointZeroHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var pz domain.PointZero
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			p, ok := e.PointZero.Get()
			if !ok {
				return domain.ErrNoPointZero
			}
			pz = p
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(pz)
	}
}

// pointZeroHandler runs op then returns the resulting PointZero.
func pointZeroHandler(deps *Dependencies, op func(ctx context.Context, e *usecases.Engine, c *fiber.Ctx) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var pz domain.PointZero
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			if err := op(ctx, e, c); err != nil {
				return err
			}
			pz, _ = e.PointZero.Get()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(pz)
	}
}

// PlacePointZeroHandler places PointZero at a coordinate. It is locked
// immediately.
func PlacePointZeroHandler(deps *Dependencies) fiber.Handler {
	return pointZeroHandler(deps, func(ctx context.Context, e *usecases.Engine, c *fiber.Ctx) error {
		at, err := parseCoordinate(c)
		if err != nil {
			return bodyError(err.Error())
		}
		return e.PointZero.Place(ctx, at)
	})
}

// LockPointZeroHandler sets the lock. Body {"locked":true}; an empty body
// toggles.
func LockPointZeroHandler(deps *Dependencies) fiber.Handler {
	return pointZeroHandler(deps, func(_ context.Context, e *usecases.Engine, c *fiber.Ctx) error {
		var req struct {
			Locked *bool `json:"locked"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return bodyError("locked must be a boolean")
			}
		}
		if req.Locked == nil {
			_, err := e.PointZero.ToggleLock()
			return err
		}
		return e.PointZero.SetLocked(*req.Locked)
	})
}

// DragPointZeroHandler ends a marker drag at a coordinate.
func DragPointZeroHandler(deps *Dependencies) fiber.Handler {
	return pointZeroHandler(deps, func(ctx context.Context, e *usecases.Engine, c *fiber.Ctx) error {
		at, err := parseCoordinate(c)
		if err != nil {
			return bodyError(err.Error())
		}
		return e.PointZero.Drag(ctx, at)
	})
}

// SyncPointZeroHandler mirrors a PointZero set outside the map.
// Body: {"lat":..,"lng":..,"address":".."}.
func SyncPointZeroHandler(deps *Dependencies) fiber.Handler {
	return pointZeroHandler(deps, func(_ context.Context, e *usecases.Engine, c *fiber.Ctx) error {
		var req struct {
			coordinateRequest
			Address string `json:"address"`
		}
		if err := c.BodyParser(&req); err != nil {
			return bodyError("invalid request body")
		}
		at, err := req.coordinate()
		if err != nil {
			return bodyError(err.Error())
		}
		return e.PointZero.SyncFromCaller(at, req.Address)
	})
}

// PointZeroQRHandler renders a geo: URI QR code. Query: size (pixels).
func PointZeroQRHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !incidentIDPattern.MatchString(id) {
			return respondError(c, errInvalidIncident)
		}
		size := c.QueryInt("size", 256)
		if size < 64 || size > 1024 {
			return errBadRequest(c, "size must be between 64 and 1024")
		}
		png, err := deps.Workspaces.PointZeroQR(c.UserContext(), id, size)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, "image/png")
		c.Set("Cache-Control", "private, max-age=60")
		return c.Send(png)
	}
}

// ---- Zones ----

// ListAssignmentsHandler returns zone to team assignments.
func ListAssignmentsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var out []domain.SearchZoneAssignment
		err := withEngine(c, deps, func(_ context.Context, e *usecases.Engine) error {
			out = e.Zones.Assignments()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(out)
	}
}

// AssignZoneHandler assigns a zone to a team. Body: {"team_id":".."}.
func AssignZoneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req struct {
			TeamID string `json:"team_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		polygonID := c.Params("polygonId")
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			return e.Zones.Assign(ctx, polygonID, req.TeamID)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(domain.SearchZoneAssignment{PolygonID: polygonID, TeamID: req.TeamID})
	}
}

// UnassignZoneHandler clears a zone's team.
func UnassignZoneHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		polygonID := c.Params("polygonId")
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			return e.Zones.Unassign(ctx, polygonID)
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ---- Zone context menu ----

type menuResponse struct {
	Menu *usecases.ContextMenu `json:"menu"`
}

// menuHandler runs op and returns the menu as it stands afterwards.
func menuHandler(deps *Dependencies, op func(ctx context.Context, e *usecases.Engine, c *fiber.Ctx) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var resp menuResponse
		err := withEngine(c, deps, func(ctx context.Context, e *usecases.Engine) error {
			if err := op(ctx, e, c); err != nil {
				return err
			}
			resp.Menu = e.Zones.Menu()
			return nil
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(resp)
	}
}

// GetMenuHandler returns the open context menu, if any.
func GetMenuHandler(deps *Dependencies) fiber.Handler {
	return menuHandler(deps, func(context.Context, *usecases.Engine, *fiber.Ctx) error { return nil })
}

// OpenMenuHandler opens the zone context menu at a screen point.
// Body: {"polygon_id":"..","x":..,"y":..}.
func OpenMenuHandler(deps *Dependencies) fiber.Handler {
	return menuHandler(deps, func(_ context.Context, e *usecases.Engine, c *fiber.Ctx) error {
		var req struct {
			PolygonID string  `json:"polygon_id"`
			X         float64 `json:"x"`
			Y         float64 `json:"y"`
		}
		if err := c.BodyParser(&req); err != nil {
			return bodyError("invalid request body")
		}
		_, err := e.OpenMenu(req.PolygonID, usecases.ScreenPoint{X: req.X, Y: req.Y})
		return err
	})
}

// OpenTeamPickerHandler swaps the menu to the team list.
func OpenTeamPickerHandler(deps *Dependencies) fiber.Handler {
	return menuHandler(deps, func(_ context.Context, e *usecases.Engine, _ *fiber.Ctx) error {
		_, err := e.Zones.OpenTeamPicker()
		return err
	})
}

// SelectTeamHandler assigns the menu's zone to a team and closes the menu.
func SelectTeamHandler(deps *Dependencies) fiber.Handler {
	return menuHandler(deps, func(ctx context.Context, e *usecases.Engine, c *fiber.Ctx) error {
		var req struct {
			TeamID string `json:"team_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return bodyError("invalid request body")
		}
		return e.Zones.SelectTeam(ctx, req.TeamID)
	})
}

// MenuUnassignHandler clears the menu's zone assignment.
func MenuUnassignHandler(deps *Dependencies) fiber.Handler {
	return menuHandler(deps, func(ctx context.Context, e *usecases.Engine, _ *fiber.Ctx) error {
		return e.Zones.UnassignFromMenu(ctx)
	})
}

// CloseMenuHandler dismisses the menu.
func CloseMenuHandler(deps *Dependencies) fiber.Handler {
	return menuHandler(deps, func(_ context.Context, e *usecases.Engine, _ *fiber.Ctx) error {
		e.Zones.CloseMenu()
		return nil
	})
}

// MenuClickHandler reports a map click; clicks outside the menu close it.
func MenuClickHandler(deps *Dependencies) fiber.Handler {
	return menuHandler(deps, func(_ context.Context, e *usecases.Engine, c *fiber.Ctx) error {
		var p usecases.ScreenPoint
		if err := c.BodyParser(&p); err != nil {
			return bodyError("invalid request body")
		}
		e.Zones.ClickAt(p)
		return nil
	})
}

// ---- Export ----

// ExportGeoJSONHandler downloads the drawn shapes as a FeatureCollection.
func ExportGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !incidentIDPattern.MatchString(id) {
			return respondError(c, errInvalidIncident)
		}
		data, version, err := deps.Workspaces.ExportGeoJSON(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.geojson"`, id))
		c.Set(fiber.HeaderETag, versionETag(id, version))
		c.Set("Cache-Control", "private, no-cache")
		return c.Send(data)
	}
}

func versionETag(incidentID, version string) string {
	return fmt.Sprintf(`"%s-%s"`, incidentID, version)
}
