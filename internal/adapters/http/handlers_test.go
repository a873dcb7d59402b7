package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/sarmap/internal/adapters/http"
	"github.com/samirrijal/sarmap/internal/adapters/mapsurface"
	"github.com/samirrijal/sarmap/internal/adapters/qrcode"
	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/usecases"
)

// ---- Mock repositories ----

type mockShapeRepo struct {
	listFn func(ctx context.Context, incidentID string) ([]domain.Shape, error)
}

func (m *mockShapeRepo) Upsert(ctx context.Context, incidentID string, s *domain.Shape) error {
	return nil
}
func (m *mockShapeRepo) Delete(ctx context.Context, incidentID, shapeID string) error { return nil }
func (m *mockShapeRepo) DeleteAll(ctx context.Context, incidentID string) error       { return nil }
func (m *mockShapeRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.Shape, error) {
	if m.listFn != nil {
		return m.listFn(ctx, incidentID)
	}
	return nil, nil
}

type mockTeamRepo struct {
	upserted []domain.Team
}

func (m *mockTeamRepo) Upsert(ctx context.Context, incidentID string, t *domain.Team) error {
	m.upserted = append(m.upserted, *t)
	return nil
}
func (m *mockTeamRepo) ListByIncident(ctx context.Context, incidentID string) ([]domain.Team, error) {
	return nil, nil
}

// ---- Test helpers ----

type testEnv struct {
	app   *fiber.App
	deps  *handler.Dependencies
	teams *mockTeamRepo
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func newEnv(t *testing.T, store ...func(*usecases.WorkspaceStore)) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	teams := &mockTeamRepo{}
	st := usecases.WorkspaceStore{Teams: teams}
	for _, o := range store {
		o(&st)
	}

	hub := mapsurface.NewHub(1280, 800, nil)
	svc := usecases.NewWorkspaceService(ctx, usecases.WorkspaceServiceDeps{
		Surfaces: hub.Surface,
		Store:    st,
		QR:       qrcode.New(),
		OnEvict:  hub.Drop,
	})
	t.Cleanup(func() {
		svc.Close()
		cancel()
	})

	deps := &handler.Dependencies{Workspaces: svc, Scenes: hub, MaxUploadBytes: 1 << 20}
	return &testEnv{app: setupApp(deps), deps: deps, teams: teams}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func expectCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	expectStatus(t, resp, status)
	apiErr := decode[handler.APIError](t, resp)
	if apiErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, apiErr.Code, apiErr.Message)
	}
}

type drawing struct {
	Session usecases.SessionView `json:"session"`
	Shape   *domain.Shape        `json:"shape"`
}

func pt(lat, lng float64) map[string]float64 { return map[string]float64{"lat": lat, "lng": lng} }

// drawRectangle commits a rectangle through the REST surface and returns it.
func (e *testEnv) drawRectangle(t *testing.T, incident string) domain.Shape {
	t.Helper()
	base := "/v1/incidents/" + incident
	expectStatus(t, e.do(t, "POST", base+"/drawing", map[string]string{"mode": "rectangle"}), 200)
	expectStatus(t, e.do(t, "POST", base+"/drawing/click", pt(43.00, -2.80)), 200)
	resp := e.do(t, "POST", base+"/drawing/click", pt(43.01, -2.79))
	expectStatus(t, resp, 200)
	d := decode[drawing](t, resp)
	if d.Shape == nil {
		t.Fatal("second corner did not commit a rectangle")
	}
	return *d.Shape
}

const gpxTrack = `<?xml version="1.0"?>
<gpx version="1.1" creator="test">
  <trk><name>Alpha sweep</name><trkseg>
    <trkpt lat="43.010" lon="-2.800"/>
    <trkpt lat="43.012" lon="-2.798"/>
    <trkpt lat="43.015" lon="-2.795"/>
  </trkseg></trk>
</gpx>`

func uploadTrace(t *testing.T, e *testEnv, incident, fileName, content string, fields map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		_ = w.WriteField(k, v)
	}
	fw, err := w.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(content))
	_ = w.Close()

	req := httptest.NewRequest("POST", "/v1/incidents/"+incident+"/traces", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// ---- Drawing ----

func TestDrawPolygon_Success(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	expectStatus(t, e.do(t, "POST", base+"/drawing", map[string]string{"mode": "polygon"}), 200)
	for _, p := range [][2]float64{{43.0, -2.8}, {43.0, -2.79}, {43.01, -2.79}} {
		expectStatus(t, e.do(t, "POST", base+"/drawing/click", pt(p[0], p[1])), 200)
	}
	expectStatus(t, e.do(t, "POST", base+"/drawing/move", pt(43.005, -2.8)), 204)

	resp := e.do(t, "POST", base+"/drawing/finish", nil)
	expectStatus(t, resp, 200)
	d := decode[drawing](t, resp)
	if d.Shape == nil || d.Shape.Kind != domain.ShapePolygon {
		t.Fatalf("expected committed polygon, got %+v", d.Shape)
	}
	if d.Shape.Measurement == nil || d.Shape.Measurement.AreaHa == nil || *d.Shape.Measurement.AreaHa <= 0 {
		t.Errorf("expected positive area, got %+v", d.Shape.Measurement)
	}
	if d.Session.State != usecases.StateIdle {
		t.Errorf("expected idle session, got %s", d.Session.State)
	}

	shapes := decode[[]domain.Shape](t, e.do(t, "GET", base+"/shapes", nil))
	if len(shapes) != 1 {
		t.Errorf("expected 1 shape, got %d", len(shapes))
	}
}

func TestDrawPolygon_FinishTooEarlyStaysDrawing(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	e.do(t, "POST", base+"/drawing", map[string]string{"mode": "polygon"})
	e.do(t, "POST", base+"/drawing/click", pt(43.0, -2.8))
	e.do(t, "POST", base+"/drawing/click", pt(43.0, -2.79))

	expectCode(t, e.do(t, "POST", base+"/drawing/finish", nil), 422, "validation_failed")

	view := decode[struct {
		Session usecases.SessionView `json:"session"`
	}](t, e.do(t, "GET", base, nil))
	if view.Session.State != usecases.StateDrawingPolygon || len(view.Session.Pending) != 2 {
		t.Errorf("unexpected session after rejected finish: %+v", view.Session)
	}
}

func TestStartDrawing_Rejections(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	expectCode(t, e.do(t, "POST", base+"/drawing", map[string]string{"mode": "hexagon"}), 422, "validation_failed")

	expectStatus(t, e.do(t, "POST", base+"/drawing", map[string]string{"mode": "marker"}), 200)
	expectCode(t, e.do(t, "POST", base+"/drawing", map[string]string{"mode": "polygon"}), 422, "validation_failed")

	expectCode(t, e.do(t, "POST", base+"/drawing/click", map[string]string{"lat": "x"}), 400, "bad_request")
	expectCode(t, e.do(t, "POST", base+"/drawing/click", pt(95, 0)), 422, "validation_failed")
}

func TestInvalidIncidentID(t *testing.T) {
	e := newEnv(t)
	expectCode(t, e.do(t, "GET", "/v1/incidents/"+strings.Repeat("x", 65), nil), 400, "bad_request")
	expectCode(t, e.do(t, "GET", "/v1/incidents/bad.id/shapes", nil), 400, "bad_request")
}

func TestKeys_EscapeCancels(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	e.do(t, "POST", base+"/drawing", map[string]string{"mode": "polyline"})
	e.do(t, "POST", base+"/drawing/click", pt(43.0, -2.8))

	resp := e.do(t, "POST", base+"/keys", map[string]interface{}{"key": "Escape"})
	expectStatus(t, resp, 200)
	out := decode[struct {
		Action  usecases.KeyAction   `json:"action"`
		Session usecases.SessionView `json:"session"`
	}](t, resp)
	if out.Action != usecases.KeyCancel || out.Session.State != usecases.StateIdle {
		t.Errorf("unexpected key result: %+v", out)
	}
}

func TestDeleteAndClearShapes(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	first := e.drawRectangle(t, "inc-1")
	e.drawRectangle(t, "inc-1")

	expectStatus(t, e.do(t, "DELETE", base+"/shapes/"+first.ID, nil), 204)
	expectCode(t, e.do(t, "DELETE", base+"/shapes/"+first.ID, nil), 404, "not_found")

	expectStatus(t, e.do(t, "DELETE", base+"/shapes", nil), 204)
	shapes := decode[[]domain.Shape](t, e.do(t, "GET", base+"/shapes", nil))
	if len(shapes) != 0 {
		t.Errorf("expected no shapes after clear, got %d", len(shapes))
	}
}

func TestLayerVisibility(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	resp := e.do(t, "PUT", base+"/layers/pois", map[string]bool{"visible": false})
	expectStatus(t, resp, 200)
	vis := decode[domain.LayerVisibility](t, resp)
	if vis.POIs || !vis.Polygons {
		t.Errorf("unexpected visibility: %+v", vis)
	}

	expectCode(t, e.do(t, "PUT", base+"/layers/roads", map[string]bool{"visible": false}), 422, "validation_failed")
	expectCode(t, e.do(t, "PUT", base+"/layers/pois", map[string]string{}), 400, "bad_request")
}

// ---- Traces ----

func TestImportTrace_GPX(t *testing.T) {
	e := newEnv(t)

	resp := uploadTrace(t, e, "inc-1", "alpha.gpx", gpxTrack, map[string]string{"team_id": "team-a", "label": "Alpha"})
	expectStatus(t, resp, 201)
	trace := decode[domain.ImportedTrace](t, resp)
	if trace.Label != "Alpha" || trace.TeamID != "team-a" || !trace.Visible {
		t.Errorf("unexpected trace: %+v", trace)
	}
	if trace.Geometry == nil || len(trace.Geometry.Features) != 1 {
		t.Fatalf("expected one feature")
	}

	list := decode[struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination handler.Pagination       `json:"pagination"`
	}](t, e.do(t, "GET", "/v1/incidents/inc-1/traces", nil))
	if list.Pagination.Total != 1 || len(list.Data) != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	if _, ok := list.Data[0]["geometry"]; ok {
		t.Error("summary list should not include geometry")
	}
	if list.Data[0]["features"].(float64) != 1 {
		t.Errorf("expected features=1, got %v", list.Data[0]["features"])
	}

	expectStatus(t, e.do(t, "PUT", "/v1/incidents/inc-1/traces/"+trace.ID+"/visibility", map[string]bool{"visible": false}), 204)
	got := decode[domain.ImportedTrace](t, e.do(t, "GET", "/v1/incidents/inc-1/traces/"+trace.ID, nil))
	if got.Visible {
		t.Error("trace still visible")
	}

	expectStatus(t, e.do(t, "DELETE", "/v1/incidents/inc-1/traces/"+trace.ID, nil), 204)
	expectCode(t, e.do(t, "GET", "/v1/incidents/inc-1/traces/"+trace.ID, nil), 404, "not_found")
}

func TestImportTrace_InvalidGeoJSONLeavesCountUnchanged(t *testing.T) {
	e := newEnv(t)

	expectStatus(t, uploadTrace(t, e, "inc-1", "alpha.gpx", gpxTrack, nil), 201)
	expectCode(t, uploadTrace(t, e, "inc-1", "broken.geojson", `{"type":"FeatureCollection","features":[`, nil), 400, "parse_error")
	expectCode(t, uploadTrace(t, e, "inc-1", "notes.txt", "hello", nil), 400, "parse_error")

	list := decode[struct {
		Pagination handler.Pagination `json:"pagination"`
	}](t, e.do(t, "GET", "/v1/incidents/inc-1/traces", nil))
	if list.Pagination.Total != 1 {
		t.Errorf("expected 1 trace, got %d", list.Pagination.Total)
	}
}

func TestImportTrace_MissingFile(t *testing.T) {
	e := newEnv(t)
	expectCode(t, e.do(t, "POST", "/v1/incidents/inc-1/traces", map[string]string{}), 400, "bad_request")
}

func TestImportTrace_TooLarge(t *testing.T) {
	e := newEnv(t)
	e.deps.MaxUploadBytes = 16
	expectCode(t, uploadTrace(t, e, "inc-1", "alpha.gpx", gpxTrack, nil), 413, "payload_too_large")
}

func TestListTraces_Pagination(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		expectStatus(t, uploadTrace(t, e, "inc-1", fmt.Sprintf("t%d.gpx", i), gpxTrack, nil), 201)
	}

	resp := e.do(t, "GET", "/v1/incidents/inc-1/traces?offset=2&limit=2", nil)
	expectStatus(t, resp, 200)
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) || !strings.Contains(link, `rel="prev"`) {
		t.Errorf("unexpected Link header: %s", link)
	}
	page := decode[struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination handler.Pagination       `json:"pagination"`
	}](t, resp)
	if len(page.Data) != 2 || page.Pagination.Total != 5 || page.Pagination.Offset != 2 {
		t.Errorf("unexpected page: %+v", page.Pagination)
	}
	if page.Data[0]["source_file_name"] != "t2.gpx" {
		t.Errorf("expected t2.gpx first, got %v", page.Data[0]["source_file_name"])
	}
}

// ---- PointZero ----

func TestPointZero_PlaceLockDrag(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	expectCode(t, e.do(t, "GET", base+"/point-zero", nil), 404, "not_found")

	resp := e.do(t, "POST", base+"/point-zero", pt(43.1, -2.9))
	expectStatus(t, resp, 200)
	pz := decode[domain.PointZero](t, resp)
	if !pz.Locked || pz.Address != "43.100000, -2.900000" {
		t.Errorf("unexpected point zero: %+v", pz)
	}

	expectCode(t, e.do(t, "POST", base+"/point-zero/drag", pt(43.2, -2.9)), 422, "validation_failed")
	expectCode(t, e.do(t, "POST", base+"/point-zero", pt(43.2, -2.9)), 422, "validation_failed")

	pz = decode[domain.PointZero](t, e.do(t, "POST", base+"/point-zero/lock", nil))
	if pz.Locked {
		t.Fatal("toggle did not unlock")
	}
	pz = decode[domain.PointZero](t, e.do(t, "POST", base+"/point-zero/drag", pt(43.2, -2.9)))
	if pz.Position.Lat != 43.2 {
		t.Errorf("drag did not move point zero: %+v", pz)
	}
	pz = decode[domain.PointZero](t, e.do(t, "POST", base+"/point-zero/lock", map[string]bool{"locked": true}))
	if !pz.Locked {
		t.Error("explicit lock failed")
	}
}

func TestPointZero_Sync(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "POST", "/v1/incidents/inc-1/point-zero/sync", map[string]interface{}{
		"lat": 43.3, "lng": -2.95, "address": "Gorbea car park",
	})
	expectStatus(t, resp, 200)
	pz := decode[domain.PointZero](t, resp)
	if pz.Address != "Gorbea car park" {
		t.Errorf("unexpected address %q", pz.Address)
	}
}

func TestPointZeroQR(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	expectCode(t, e.do(t, "GET", base+"/point-zero/qr.png", nil), 404, "not_found")
	e.do(t, "POST", base+"/point-zero", pt(43.1, -2.9))

	resp := e.do(t, "GET", base+"/point-zero/qr.png?size=128", nil)
	expectStatus(t, resp, 200)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(body, []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	expectCode(t, e.do(t, "GET", base+"/point-zero/qr.png?size=5000", nil), 400, "bad_request")
}

// ---- Zones ----

func TestZoneAssignment_AssignOverwriteUnassign(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"
	zone := e.drawRectangle(t, "inc-1")

	expectStatus(t, e.do(t, "PUT", base+"/zones/"+zone.ID+"/team", map[string]string{"team_id": "team-a"}), 200)
	expectStatus(t, e.do(t, "PUT", base+"/zones/"+zone.ID+"/team", map[string]string{"team_id": "team-b"}), 200)

	list := decode[[]domain.SearchZoneAssignment](t, e.do(t, "GET", base+"/zones", nil))
	if len(list) != 1 || list[0].TeamID != "team-b" {
		t.Fatalf("unexpected assignments: %+v", list)
	}

	expectCode(t, e.do(t, "PUT", base+"/zones/"+zone.ID+"/team", map[string]string{"team_id": ""}), 422, "validation_failed")
	expectCode(t, e.do(t, "PUT", base+"/zones/nope/team", map[string]string{"team_id": "team-a"}), 404, "not_found")

	expectStatus(t, e.do(t, "DELETE", base+"/zones/"+zone.ID+"/team", nil), 204)
	expectCode(t, e.do(t, "DELETE", base+"/zones/"+zone.ID+"/team", nil), 422, "validation_failed")
}

func TestZoneMenu_Flow(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"

	teams := []domain.Team{{ID: "team-a", Name: "Alpha"}, {ID: "team-b", Name: "Bravo"}}
	expectStatus(t, e.do(t, "PUT", base+"/teams", teams), 200)
	if len(e.teams.upserted) != 2 {
		t.Errorf("expected 2 teams persisted, got %d", len(e.teams.upserted))
	}

	zone := e.drawRectangle(t, "inc-1")

	resp := e.do(t, "POST", base+"/menu", map[string]interface{}{"polygon_id": zone.ID, "x": 1270, "y": 790})
	expectStatus(t, resp, 200)
	menu := decode[struct {
		Menu *usecases.ContextMenu `json:"menu"`
	}](t, resp).Menu
	if menu == nil || menu.Anchor.X != 1280-usecases.MenuWidth || menu.Anchor.Y != 800-usecases.MenuHeight {
		t.Fatalf("menu not clamped to viewport: %+v", menu)
	}

	expectCode(t, e.do(t, "POST", base+"/menu/select", map[string]string{"team_id": "team-a"}), 422, "validation_failed")

	picker := decode[struct {
		Menu *usecases.ContextMenu `json:"menu"`
	}](t, e.do(t, "POST", base+"/menu/picker", nil)).Menu
	if picker == nil || !picker.PickerOpen || len(picker.Teams) != 2 {
		t.Fatalf("picker not open with teams: %+v", picker)
	}

	after := decode[struct {
		Menu *usecases.ContextMenu `json:"menu"`
	}](t, e.do(t, "POST", base+"/menu/select", map[string]string{"team_id": "team-b"})).Menu
	if after != nil {
		t.Error("menu should close after selecting a team")
	}

	list := decode[[]domain.SearchZoneAssignment](t, e.do(t, "GET", base+"/zones", nil))
	if len(list) != 1 || list[0].TeamID != "team-b" {
		t.Errorf("unexpected assignments: %+v", list)
	}

	e.do(t, "POST", base+"/menu", map[string]interface{}{"polygon_id": zone.ID, "x": 10, "y": 10})
	closed := decode[struct {
		Menu *usecases.ContextMenu `json:"menu"`
	}](t, e.do(t, "POST", base+"/menu/click", map[string]float64{"x": 900, "y": 700})).Menu
	if closed != nil {
		t.Error("click outside should close the menu")
	}
}

func TestZoneMenu_RejectedWhileDrawing(t *testing.T) {
	e := newEnv(t)
	base := "/v1/incidents/inc-1"
	zone := e.drawRectangle(t, "inc-1")

	e.do(t, "POST", base+"/drawing", map[string]string{"mode": "polygon"})
	expectCode(t, e.do(t, "POST", base+"/menu", map[string]interface{}{"polygon_id": zone.ID, "x": 10, "y": 10}), 422, "validation_failed")
}

func TestSetTeams_Validation(t *testing.T) {
	e := newEnv(t)
	expectCode(t, e.do(t, "PUT", "/v1/incidents/inc-1/teams", []domain.Team{{ID: "a"}}), 400, "bad_request")
}

// ---- Export, scene, state ----

func TestExportGeoJSON_ETag(t *testing.T) {
	e := newEnv(t)
	e.drawRectangle(t, "inc-1")

	resp := e.do(t, "GET", "/v1/incidents/inc-1/export.geojson", nil)
	expectStatus(t, resp, 200)
	if ct := resp.Header.Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("unexpected content type %s", ct)
	}
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	fc := decode[struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
		} `json:"features"`
	}](t, resp)
	if fc.Type != "FeatureCollection" || len(fc.Features) != 1 || fc.Features[0].Geometry.Type != "Polygon" {
		t.Errorf("unexpected export: %+v", fc)
	}

	req := httptest.NewRequest("GET", "/v1/incidents/inc-1/export.geojson", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp2.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp2.StatusCode)
	}
}

func TestExportGeoJSON_ETagChangesAfterReload(t *testing.T) {
	e := newEnv(t)
	e.drawRectangle(t, "inc-1")

	resp := e.do(t, "GET", "/v1/incidents/inc-1/export.geojson", nil)
	expectStatus(t, resp, 200)
	etag := resp.Header.Get("ETag")

	expectStatus(t, e.do(t, "DELETE", "/v1/incidents/inc-1/workspace", nil), 204)
	base := "/v1/incidents/inc-1"
	expectStatus(t, e.do(t, "POST", base+"/drawing", map[string]string{"mode": "rectangle"}), 200)
	expectStatus(t, e.do(t, "POST", base+"/drawing/click", pt(-20.00, 30.00)), 200)
	expectStatus(t, e.do(t, "POST", base+"/drawing/click", pt(-20.01, 30.01)), 200)

	req := httptest.NewRequest("GET", base+"/export.geojson", nil)
	req.Header.Set("If-None-Match", etag)
	resp2, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp2.StatusCode != 200 {
		t.Fatalf("reloaded incident answered %d for a stale ETag", resp2.StatusCode)
	}
	if resp2.Header.Get("ETag") == etag {
		t.Errorf("ETag %s reused after reload", etag)
	}
}

func TestScene_ReflectsDrawing(t *testing.T) {
	e := newEnv(t)
	e.drawRectangle(t, "inc-1")

	resp := e.do(t, "GET", "/v1/incidents/inc-1/scene", nil)
	expectStatus(t, resp, 200)
	scene := decode[mapsurface.Scene](t, resp)

	var rects int
	for _, el := range scene.Elements {
		if el.Kind == mapsurface.KindRectangle && !el.Style.Preview {
			rects++
		}
	}
	if rects != 1 {
		t.Errorf("expected 1 committed rectangle in scene, got %d", rects)
	}
	if scene.Width != 1280 || scene.Height != 800 {
		t.Errorf("unexpected viewport %dx%d", scene.Width, scene.Height)
	}
}

func TestIncident_RestoredFromStore(t *testing.T) {
	area := 3.0
	e := newEnv(t, func(st *usecases.WorkspaceStore) {
		st.Shapes = &mockShapeRepo{
			listFn: func(ctx context.Context, incidentID string) ([]domain.Shape, error) {
				return []domain.Shape{{
					ID:          "zone-1",
					Kind:        domain.ShapePolygon,
					Points:      []domain.Coordinate{{Lat: 43, Lng: -2}, {Lat: 43, Lng: -1.99}, {Lat: 43.01, Lng: -1.99}},
					Measurement: &domain.Measurement{AreaHa: &area},
				}}, nil
			},
		}
	})

	resp := e.do(t, "GET", "/v1/incidents/inc-7", nil)
	expectStatus(t, resp, 200)
	view := decode[struct {
		ID     string         `json:"id"`
		Shapes []domain.Shape `json:"shapes"`
	}](t, resp)
	if view.ID != "inc-7" || len(view.Shapes) != 1 || view.Shapes[0].ID != "zone-1" {
		t.Errorf("unexpected restored view: %+v", view)
	}

	expectStatus(t, e.do(t, "DELETE", "/v1/incidents/inc-7/workspace", nil), 204)
	expectCode(t, e.do(t, "DELETE", "/v1/incidents/inc-7/workspace", nil), 404, "not_found")
	if _, ok := e.deps.Scenes.Scene("inc-7"); ok {
		t.Error("scene should be dropped with the workspace")
	}
}

// ---- GraphQL & health ----

func TestGraphQL_IncidentQuery(t *testing.T) {
	e := newEnv(t)
	e.drawRectangle(t, "inc-1")

	resp := e.do(t, "POST", "/graphql", map[string]string{
		"query": `{ incident(id: "inc-1") { id revision shapes { id kind measurement { area_ha } } session { state } } loadedIncidents }`,
	})
	expectStatus(t, resp, 200)
	out := decode[struct {
		Data struct {
			Incident struct {
				ID     string `json:"id"`
				Shapes []struct {
					Kind        string `json:"kind"`
					Measurement struct {
						AreaHa float64 `json:"area_ha"`
					} `json:"measurement"`
				} `json:"shapes"`
				Session struct {
					State string `json:"state"`
				} `json:"session"`
			} `json:"incident"`
			LoadedIncidents []string `json:"loadedIncidents"`
		} `json:"data"`
		Errors []interface{} `json:"errors"`
	}](t, resp)
	if len(out.Errors) > 0 {
		t.Fatalf("graphql errors: %v", out.Errors)
	}
	inc := out.Data.Incident
	if inc.ID != "inc-1" || len(inc.Shapes) != 1 || inc.Shapes[0].Kind != "rectangle" || inc.Shapes[0].Measurement.AreaHa <= 0 {
		t.Errorf("unexpected incident: %+v", inc)
	}
	if inc.Session.State != "idle" {
		t.Errorf("unexpected session state %s", inc.Session.State)
	}
	if len(out.Data.LoadedIncidents) != 1 {
		t.Errorf("expected one loaded incident, got %v", out.Data.LoadedIncidents)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "GET", "/v1/health", nil)
	expectStatus(t, resp, 200)
	body := decode[map[string]interface{}](t, resp)
	if body["status"] != "healthy" {
		t.Errorf("unexpected health: %v", body)
	}
}

func TestReady_WithoutDatabase(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "GET", "/v1/ready", nil)
	expectStatus(t, resp, 503)
}

func TestSecurityHeaders(t *testing.T) {
	e := newEnv(t)
	resp := e.do(t, "GET", "/v1/health", nil)
	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "X-API-Version", "X-Request-Id"} {
		if resp.Header.Get(h) == "" {
			t.Errorf("missing header %s", h)
		}
	}
}
