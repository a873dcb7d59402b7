package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/sarmap/internal/adapters/nats"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to an incident.
type wsMessage struct {
	Action   string `json:"action"`   // "subscribe" | "unsubscribe"
	Incident string `json:"incident"` // incident id
	Channel  string `json:"channel"`  // "events" | "render" (default: both)
}

// wsSubjects resolves a channel to the NATS subjects it covers.
func wsSubjects(incident, channel string) ([]string, bool) {
	switch channel {
	case "":
		return []string{natsadapter.EventsSubject(incident), natsadapter.RenderSubject(incident)}, true
	case "events":
		return []string{natsadapter.EventsSubject(incident)}, true
	case "render":
		return []string{natsadapter.RenderSubject(incident)}, true
	}
	return nil, false
}

// WebSocketHandler relays an incident's annotation events and render
// commands to a browser. Connect with /ws?incident=<id> to subscribe on
// open, or send {"action":"subscribe","incident":"<id>","channel":"render"}.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		logger := slog.Default().With("remote", c.RemoteAddr().String())
		logger.Info("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(subject string) error {
			if _, exists := subs[subject]; exists {
				return nil
			}
			if nc == nil {
				return nats.ErrConnectionClosed
			}
			s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				return err
			}
			subs[subject] = s
			return nil
		}

		if incident := c.Query("incident"); incident != "" {
			if !incidentIDPattern.MatchString(incident) {
				_ = writeJSON(map[string]string{"error": errInvalidIncident.Error()})
				return
			}
			subjects, _ := wsSubjects(incident, c.Query("channel"))
			for _, subject := range subjects {
				if err := subscribe(subject); err != nil {
					logger.Warn("ws subscribe failed", "subject", subject, "error", err)
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					return
				}
			}
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if !incidentIDPattern.MatchString(m.Incident) {
				_ = writeJSON(map[string]string{"error": errInvalidIncident.Error()})
				continue
			}
			subjects, ok := wsSubjects(m.Incident, m.Channel)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				for _, subject := range subjects {
					if err := subscribe(subject); err != nil {
						_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
						continue
					}
					_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})
				}

			case "unsubscribe":
				for _, subject := range subjects {
					if s, exists := subs[subject]; exists {
						_ = s.Unsubscribe()
						delete(subs, subject)
						_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
					}
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		logger.Info("ws client disconnected")
	}
}
