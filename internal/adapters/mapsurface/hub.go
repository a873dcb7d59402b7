package mapsurface

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/samirrijal/sarmap/internal/core/ports"
)

// Sink receives the render commands of an incident.
type Sink func(incidentID string, cmd Command)

// PublisherSink forwards commands to the event publisher's render channel.
// Failures are logged; live rendering is best effort and clients resync
// from Scene on a sequence gap.
func PublisherSink(pub ports.EventPublisher, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return func(incidentID string, cmd Command) {
		data, err := json.Marshal(cmd)
		if err != nil {
			logger.Error("encode render command", "incident_id", incidentID, "error", err)
			return
		}
		if err := pub.PublishRender(context.Background(), incidentID, data); err != nil {
			logger.Warn("publish render command", "incident_id", incidentID, "op", cmd.Op, "error", err)
		}
	}
}

// Hub owns one Recorder per loaded incident.
type Hub struct {
	width, height int
	sink          Sink

	mu        sync.RWMutex
	recorders map[string]*Recorder
}

// NewHub creates a hub whose recorders share the viewport size and sink.
func NewHub(width, height int, sink Sink) *Hub {
	return &Hub{width: width, height: height, sink: sink, recorders: map[string]*Recorder{}}
}

// Surface creates a fresh recorder for the incident, replacing any previous
// one. It satisfies usecases.SurfaceFactory.
func (h *Hub) Surface(incidentID string) ports.MapSurface {
	var emit func(Command)
	if h.sink != nil {
		emit = func(cmd Command) { h.sink(incidentID, cmd) }
	}
	r := NewRecorder(h.width, h.height, emit)

	h.mu.Lock()
	h.recorders[incidentID] = r
	h.mu.Unlock()
	return r
}

// Scene returns the incident's current scene.
func (h *Hub) Scene(incidentID string) (Scene, bool) {
	h.mu.RLock()
	r, ok := h.recorders[incidentID]
	h.mu.RUnlock()
	if !ok {
		return Scene{}, false
	}
	return r.Scene(), true
}

// Drop forgets an incident's recorder.
func (h *Hub) Drop(incidentID string) {
	h.mu.Lock()
	delete(h.recorders, incidentID)
	h.mu.Unlock()
}
