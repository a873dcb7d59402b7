package natsadapter

import "strings"

// Subject layout:
//
//	sar.events.<incident>.<event type>   JetStream, persisted by the recorder
//	sar.render.<incident>                core NATS, live map render commands
const (
	eventsRoot = "sar.events"
	renderRoot = "sar.render"
)

// subjectToken makes an id safe to use as a single subject token.
func subjectToken(id string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
}

// EventsSubject returns the wildcard subject carrying every annotation event
// of an incident.
func EventsSubject(incidentID string) string {
	return eventsRoot + "." + subjectToken(incidentID) + ".>"
}

// RenderSubject returns the render command subject of an incident.
func RenderSubject(incidentID string) string {
	return renderRoot + "." + subjectToken(incidentID)
}

func eventSubject(incidentID, eventType string) string {
	return eventsRoot + "." + subjectToken(incidentID) + "." + eventType
}
