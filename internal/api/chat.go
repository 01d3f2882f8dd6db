package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/respond"
)

// maxRequestBytes bounds the chat request body.
const maxRequestBytes = 1024 * 1024

// invalidRequestMessage is the fixed client-facing text for rejected
// requests; the rejection detail is logged, never sent.
const invalidRequestMessage = "invalid request"

// Responder produces the event stream for a turn. *respond.Responder
// satisfies it.
type Responder interface {
	Respond(ctx context.Context, chat conversation.Chat) (<-chan respond.Event, error)
}

// ChatRequest is the streaming endpoint's request body. The last message
// must be the new user turn; earlier entries are history.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ChatMessage is one conversation entry on the wire.
type ChatMessage struct {
	Role      string                  `json:"role"`
	Content   string                  `json:"content"`
	Citations []conversation.Citation `json:"citations,omitempty"`
}

// indicatorPayload is the SSE data payload for the preparation indicator.
type indicatorPayload struct {
	Status string `json:"status"`
	Icon   string `json:"icon"`
}

// tokenPayload is the SSE data payload for one answer fragment.
type tokenPayload struct {
	Delta string `json:"delta"`
}

// errorPayload is the SSE data payload for a failed turn.
type errorPayload struct {
	Message string `json:"message"`
}

// chatHandler serves the SSE streaming endpoint.
type chatHandler struct {
	responder Responder
	logger    log.Logger
}

// stream handles POST /api/chat/stream. It relays the turn's events to
// the client one SSE event each, in producer order, and closes the
// stream when the turn ends or the client disconnects.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var req ChatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = writeEvent(w, flusher, respond.EventError, errorPayload{Message: "invalid request body"})
		return
	}

	chat := toChat(req)
	ctx := r.Context()

	events, err := h.responder.Respond(ctx, chat)
	if err != nil {
		// Validation detail stays in the log; clients only ever see
		// fixed messages.
		h.logger.Debug("rejected chat request", "error", err)
		_ = writeEvent(w, flusher, respond.EventError, errorPayload{Message: invalidRequestMessage})
		return
	}

	for ev := range events {
		if err := h.writeTurnEvent(w, flusher, ev); err != nil {
			// Write failure usually means the client went away. Drain so
			// the producer can finish and release its resources.
			h.logger.Debug("SSE write failed, draining", "error", err)
			for range events {
			}
			return
		}
	}
}

// writeTurnEvent maps one turn event to its SSE representation.
func (h *chatHandler) writeTurnEvent(w io.Writer, f http.Flusher, ev respond.Event) error {
	switch ev.Type {
	case respond.EventIndicator:
		return writeEvent(w, f, ev.Type, indicatorPayload{Status: ev.Status, Icon: ev.Icon})
	case respond.EventToken:
		return writeEvent(w, f, ev.Type, tokenPayload{Delta: ev.Delta})
	case respond.EventCitation:
		return writeEvent(w, f, ev.Type, ev.Citation)
	case respond.EventError:
		return writeEvent(w, f, ev.Type, errorPayload{Message: ev.Message})
	case respond.EventDone:
		return writeEvent(w, f, ev.Type, struct{}{})
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// toChat converts the wire request into the domain chat.
func toChat(req ChatRequest) conversation.Chat {
	messages := make([]conversation.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = conversation.Message{
			Role:      conversation.Role(m.Role),
			Content:   m.Content,
			Citations: m.Citations,
		}
	}
	return conversation.Chat{Messages: messages}
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n".
func writeEvent[T any](w io.Writer, flusher http.Flusher, event respond.EventType, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
