// Package domain provides core business rules for the leads bounded context.
package domain

import "fmt"

// Status is the lifecycle state of a lead. Values are the stored representation.
type Status string

const (
	StatusNew           Status = "nuevo"
	StatusInProgress    Status = "en_progreso"
	StatusCompleted     Status = "completado"
	StatusInvestigated  Status = "investigado"
	StatusEmailSent     Status = "email_enviado"
	StatusReplyReceived Status = "respuesta_recibida"
	StatusError         Status = "error"
)

var knownStatuses = map[Status]struct{}{
	StatusNew:           {},
	StatusInProgress:    {},
	StatusCompleted:     {},
	StatusInvestigated:  {},
	StatusEmailSent:     {},
	StatusReplyReceived: {},
	StatusError:         {},
}

// AllStatuses lists every defined status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusNew, StatusInProgress, StatusCompleted, StatusInvestigated,
		StatusEmailSent, StatusReplyReceived, StatusError,
	}
}

func (s Status) Valid() bool {
	_, ok := knownStatuses[s]
	return ok
}

// ParseStatus returns the Status for raw or an error when it is not a defined state.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown lead status %q", raw)
	}
	return s, nil
}

// LifecycleEvent is a sanctioned trigger that moves a lead between states.
type LifecycleEvent string

const (
	EventScrapeCompleted LifecycleEvent = "scrape_completed"
	EventScrapeFailed    LifecycleEvent = "scrape_failed"
	EventInvestigated    LifecycleEvent = "investigated"
	EventEmailSent       LifecycleEvent = "email_sent"
	EventReplyReceived   LifecycleEvent = "reply_received"
)

// transitions maps each event to the state it produces. Events are orthogonal:
// the target does not depend on the current state.
var transitions = map[LifecycleEvent]Status{
	EventScrapeCompleted: StatusCompleted,
	EventScrapeFailed:    StatusError,
	EventInvestigated:    StatusInvestigated,
	EventEmailSent:       StatusEmailSent,
	EventReplyReceived:   StatusReplyReceived,
}

// ParseLifecycleEvent validates raw against the closed event set.
func ParseLifecycleEvent(raw string) (LifecycleEvent, error) {
	ev := LifecycleEvent(raw)
	if _, ok := transitions[ev]; !ok {
		return "", fmt.Errorf("unknown lifecycle event %q", raw)
	}
	return ev, nil
}

// ApplyLifecycleEvent returns the status a lead in current moves to when event fires.
// Dispatching a scrape job is deliberately not an event; only its callback is.
func ApplyLifecycleEvent(current Status, event LifecycleEvent) (Status, error) {
	next, ok := transitions[event]
	if !ok {
		return current, fmt.Errorf("unknown lifecycle event %q", event)
	}
	return next, nil
}

// SetStatusDirect is the manual override: any defined status is accepted
// without consulting the transition table.
func SetStatusDirect(status Status) (Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("unknown lead status %q", status)
	}
	return status, nil
}
