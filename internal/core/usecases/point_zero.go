package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/core/ports"
)

const pointZeroLabel = "Point Zero"

// PointZeroController manages the single last-known-location marker. A
// placed PointZero starts locked: it cannot be dragged or re-placed until the
// operator unlocks it.
type PointZeroController struct {
	registry *OverlayRegistry
	surface  ports.MapSurface
	emit     emitter

	centered bool
}

// NewPointZeroController creates a new PointZeroController.
func NewPointZeroController(registry *OverlayRegistry, surface ports.MapSurface, emit emitter) *PointZeroController {
	return &PointZeroController{registry: registry, surface: surface, emit: emit}
}

// FormatAddress renders a position the way PointZero updates report it.
func FormatAddress(c domain.Coordinate) string {
	return fmt.Sprintf("%.6f, %.6f", c.Lat, c.Lng)
}

// Get returns the current PointZero, if placed.
func (p *PointZeroController) Get() (domain.PointZero, bool) {
	if p.registry.pointZero == nil {
		return domain.PointZero{}, false
	}
	return p.registry.pointZero.pz, true
}

// Place creates PointZero at the given position, or moves an unlocked one
// there. The result is always locked.
func (p *PointZeroController) Place(ctx context.Context, at domain.Coordinate) error {
	if !at.Valid() {
		return invalid("place_point_zero", domain.ErrInvalidCoordinate)
	}
	if e := p.registry.pointZero; e != nil && e.pz.Locked {
		return invalid("place_point_zero", domain.ErrPointZeroLocked)
	}

	pz := domain.PointZero{Position: at, Locked: true, Address: FormatAddress(at)}
	p.store(pz)
	p.notify(ctx, pz)
	return nil
}

// ToggleLock flips the lock and returns the new state.
func (p *PointZeroController) ToggleLock() (bool, error) {
	e := p.registry.pointZero
	if e == nil {
		return false, invalid("toggle_lock", domain.ErrNoPointZero)
	}
	return p.setLocked(!e.pz.Locked), nil
}

// SetLocked forces the lock state. Locking is always allowed.
func (p *PointZeroController) SetLocked(locked bool) error {
	if p.registry.pointZero == nil {
		return invalid("set_lock", domain.ErrNoPointZero)
	}
	p.setLocked(locked)
	return nil
}

func (p *PointZeroController) setLocked(locked bool) bool {
	e := p.registry.pointZero
	if e.pz.Locked != locked {
		e.pz.Locked = locked
		p.surface.SetDraggable(e.handle, !locked)
		p.registry.touch()
	}
	return locked
}

// Drag moves an unlocked PointZero. A rejected drag snaps the marker back to
// its stored position.
func (p *PointZeroController) Drag(ctx context.Context, to domain.Coordinate) error {
	e := p.registry.pointZero
	if e == nil {
		return invalid("drag_point_zero", domain.ErrNoPointZero)
	}
	if e.pz.Locked || !to.Valid() {
		p.surface.MoveMarker(e.handle, e.pz.Position)
		if !to.Valid() {
			return invalid("drag_point_zero", domain.ErrInvalidCoordinate)
		}
		return invalid("drag_point_zero", domain.ErrPointZeroLocked)
	}

	e.pz.Position = to
	e.pz.Address = FormatAddress(to)
	p.surface.MoveMarker(e.handle, to)
	p.registry.touch()
	p.notify(ctx, e.pz)
	return nil
}

// SyncFromCaller applies a position owned by the caller. The marker is
// created when absent and the view is centered on the first sync only.
// Nothing is reported back to the listener.
func (p *PointZeroController) SyncFromCaller(pos domain.Coordinate, address string) error {
	if !pos.Valid() {
		return invalid("sync_point_zero", domain.ErrInvalidCoordinate)
	}
	if address == "" {
		address = FormatAddress(pos)
	}

	if e := p.registry.pointZero; e != nil {
		e.pz.Position, e.pz.Address = pos, address
		p.surface.MoveMarker(e.handle, pos)
		p.registry.touch()
	} else {
		p.store(domain.PointZero{Position: pos, Locked: true, Address: address})
	}

	if !p.centered {
		p.surface.PanTo(pos)
		p.centered = true
	}
	return nil
}

// Restore loads a persisted PointZero without notifying or re-centering.
func (p *PointZeroController) Restore(pz domain.PointZero) {
	p.store(pz)
}

func (p *PointZeroController) store(pz domain.PointZero) {
	if e := p.registry.pointZero; e != nil {
		e.pz = pz
		p.surface.MoveMarker(e.handle, pz.Position)
		p.surface.SetDraggable(e.handle, !pz.Locked)
	} else {
		h := p.surface.PlaceMarker(pz.Position, ports.MarkerOptions{
			Label:     pointZeroLabel,
			Color:     PointZeroColor,
			Draggable: !pz.Locked,
		})
		if !p.registry.visibility.PointZero {
			p.surface.SetVisible(h, false)
		}
		p.registry.pointZero = &pointZeroEntry{pz: pz, handle: h}
	}
	p.registry.touch()
}

func (p *PointZeroController) notify(ctx context.Context, pz domain.PointZero) {
	u := domain.PointZeroUpdate{Lat: pz.Position.Lat, Lng: pz.Position.Lng, Address: pz.Address}
	p.emit.emit(ctx, domain.EventPointZeroUpdate, func(l ports.AnnotationListener) error {
		return l.OnPointZeroUpdate(ctx, u)
	})
}
