package mapsurface

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
)

func TestRecorder_AddUpdateRemove(t *testing.T) {
	var cmds []Command
	r := NewRecorder(1280, 800, func(c Command) { cmds = append(cmds, c) })

	poly := r.DrawPolygon([]domain.Coordinate{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 1, Lng: 1}}, ports.Style{Color: "#3388ff"})
	marker := r.PlaceMarker(domain.Coordinate{Lat: 43, Lng: -2}, ports.MarkerOptions{Label: "PLS", Draggable: true})
	r.MoveMarker(marker, domain.Coordinate{Lat: 43.1, Lng: -2.1})
	r.SetStyle(poly, ports.Style{Color: "#aa0000"})
	r.SetVisible(poly, false)
	r.Remove(marker)

	wantOps := []Op{OpAdd, OpAdd, OpUpdate, OpUpdate, OpUpdate, OpRemove}
	if len(cmds) != len(wantOps) {
		t.Fatalf("got %d commands, want %d", len(cmds), len(wantOps))
	}
	for i, op := range wantOps {
		if cmds[i].Op != op {
			t.Errorf("cmd %d op = %s, want %s", i, cmds[i].Op, op)
		}
		if cmds[i].Seq != uint64(i+1) {
			t.Errorf("cmd %d seq = %d, want %d", i, cmds[i].Seq, i+1)
		}
	}
	if got := cmds[2].Element.Points[0]; got.Lat != 43.1 {
		t.Errorf("moved marker lat = %v", got.Lat)
	}

	scene := r.Scene()
	if len(scene.Elements) != 1 {
		t.Fatalf("scene has %d elements, want 1", len(scene.Elements))
	}
	e := scene.Elements[0]
	if e.Handle != poly || e.Visible || e.Style.Color != "#aa0000" {
		t.Errorf("unexpected polygon element: %+v", e)
	}
	if scene.Seq != 6 {
		t.Errorf("scene seq = %d, want 6", scene.Seq)
	}
}

func TestRecorder_UnknownHandleIsIgnored(t *testing.T) {
	n := 0
	r := NewRecorder(100, 100, func(Command) { n++ })
	r.Remove("nope")
	r.SetVisible("nope", false)
	r.MoveMarker("nope", domain.Coordinate{})
	if n != 0 {
		t.Errorf("emitted %d commands for unknown handles", n)
	}
}

func TestRecorder_SceneIsDetached(t *testing.T) {
	r := NewRecorder(100, 100, nil)
	r.DrawPolyline([]domain.Coordinate{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, ports.Style{})
	scene := r.Scene()
	scene.Elements[0].Points[0].Lat = 99

	if got := r.Scene().Elements[0].Points[0].Lat; got != 1 {
		t.Errorf("scene mutation leaked into recorder: lat = %v", got)
	}
}

func TestRecorder_PointerViewAndDistance(t *testing.T) {
	r := NewRecorder(640, 480, nil)
	r.SetPointerMode(ports.PointerCrosshair)
	r.SetPanning(false)
	r.FitBounds(domain.Bounds{MinLat: 1, MinLng: 2, MaxLat: 3, MaxLng: 4})

	scene := r.Scene()
	if scene.PointerMode != ports.PointerCrosshair || scene.Panning {
		t.Errorf("pointer/panning not recorded: %+v", scene)
	}
	if scene.View.Bounds == nil || scene.View.Bounds.MaxLng != 4 {
		t.Errorf("view bounds = %+v", scene.View.Bounds)
	}

	r.PanTo(domain.Coordinate{Lat: 5, Lng: 6})
	if v := r.Scene().View; v.Bounds != nil || v.Center == nil {
		t.Errorf("pan did not replace view: %+v", v)
	}

	if w, h := r.ViewportSize(); w != 640 || h != 480 {
		t.Errorf("viewport = %dx%d", w, h)
	}
	d := r.Distance(domain.Coordinate{Lat: 0, Lng: 0}, domain.Coordinate{Lat: 1, Lng: 0})
	if math.Abs(d-111195) > 100 {
		t.Errorf("distance = %v, want ~111195", d)
	}
}

type renderPublisher struct {
	incident string
	payloads [][]byte
	err      error
}

func (p *renderPublisher) PublishAnnotationEvent(context.Context, *domain.AnnotationEvent) error {
	return nil
}

func (p *renderPublisher) PublishRender(_ context.Context, incidentID string, data []byte) error {
	p.incident = incidentID
	p.payloads = append(p.payloads, data)
	return p.err
}

func TestHub_PublishesPerIncident(t *testing.T) {
	pub := &renderPublisher{}
	hub := NewHub(800, 600, PublisherSink(pub, nil))

	surface := hub.Surface("inc-1")
	surface.DrawCircle(domain.Coordinate{Lat: 43, Lng: -2}, 500, ports.Style{})

	if pub.incident != "inc-1" || len(pub.payloads) != 1 {
		t.Fatalf("publisher got incident=%q payloads=%d", pub.incident, len(pub.payloads))
	}
	var cmd Command
	if err := json.Unmarshal(pub.payloads[0], &cmd); err != nil {
		t.Fatalf("decode command: %v", err)
	}
	if cmd.Op != OpAdd || cmd.Element == nil || cmd.Element.Kind != KindCircle || cmd.Element.RadiusM != 500 {
		t.Errorf("unexpected command: %+v", cmd)
	}

	scene, ok := hub.Scene("inc-1")
	if !ok || len(scene.Elements) != 1 {
		t.Errorf("scene missing element: ok=%v %+v", ok, scene)
	}
	if _, ok := hub.Scene("inc-2"); ok {
		t.Error("unexpected scene for unknown incident")
	}

	hub.Drop("inc-1")
	if _, ok := hub.Scene("inc-1"); ok {
		t.Error("scene still present after Drop")
	}
}

func TestHub_PublishFailureDoesNotPanic(t *testing.T) {
	pub := &renderPublisher{err: errors.New("nats down")}
	hub := NewHub(800, 600, PublisherSink(pub, nil))
	hub.Surface("inc-1").PlaceMarker(domain.Coordinate{}, ports.MarkerOptions{})
	if len(pub.payloads) != 1 {
		t.Errorf("payloads = %d", len(pub.payloads))
	}
}
