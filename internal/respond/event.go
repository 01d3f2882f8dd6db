package respond

import (
	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/conversation"
)

// EventType discriminates the events a turn emits.
type EventType string

const (
	// EventIndicator signals that answer preparation has started. It is
	// always the first event of a turn.
	EventIndicator EventType = "indicator"

	// EventToken carries one incremental answer fragment.
	EventToken EventType = "token"

	// EventCitation carries one source citation. Citations follow the
	// last token in ascending index order.
	EventCitation EventType = "citation"

	// EventError reports a provider failure. It is terminal.
	EventError EventType = "error"

	// EventDone marks successful completion. It is terminal.
	EventDone EventType = "done"
)

// Event is one item in a turn's ordered stream. Exactly one of the
// payload fields is meaningful, selected by Type.
type Event struct {
	Type EventType `json:"type"`

	// Status and Icon describe an indicator.
	Status string `json:"status,omitempty"`
	Icon   string `json:"icon,omitempty"`

	// Delta is a token fragment.
	Delta string `json:"delta,omitempty"`

	// Citation is set for citation events.
	Citation *conversation.Citation `json:"citation,omitempty"`

	// Message is the user-facing error text.
	Message string `json:"message,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func indicatorEvent() Event {
	return Event{Type: EventIndicator, Status: config.IndicatorStatus, Icon: config.IndicatorIcon}
}

func tokenEvent(delta string) Event {
	return Event{Type: EventToken, Delta: delta}
}

func citationEvent(c conversation.Citation) Event {
	return Event{Type: EventCitation, Citation: &c}
}

func errorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

func doneEvent() Event {
	return Event{Type: EventDone}
}
