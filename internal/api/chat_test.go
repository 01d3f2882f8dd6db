package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beatsync/beatsync/internal/config"
	"github.com/beatsync/beatsync/internal/conversation"
	"github.com/beatsync/beatsync/internal/log"
	"github.com/beatsync/beatsync/internal/respond"
	"github.com/beatsync/beatsync/internal/testutil"
)

// fakeResponder replays a scripted event sequence.
type fakeResponder struct {
	events   []respond.Event
	err      error
	lastChat conversation.Chat
}

func (f *fakeResponder) Respond(_ context.Context, chat conversation.Chat) (<-chan respond.Event, error) {
	f.lastChat = chat
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan respond.Event, len(f.events))
	for _, ev := range f.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func newTestServer(t *testing.T, responder Responder) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{Logger: log.NewNop(), Responder: responder})
	require.NoError(t, err)
	return srv
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStream_RelaysEventsInOrder(t *testing.T) {
	responder := &fakeResponder{events: []respond.Event{
		{Type: respond.EventIndicator, Status: config.IndicatorStatus, Icon: config.IndicatorIcon},
		{Type: respond.EventToken, Delta: "hello "},
		{Type: respond.EventToken, Delta: "world"},
		{Type: respond.EventCitation, Citation: &conversation.Citation{Index: 1, SourceRef: "doc-a", Snippet: "snip"}},
		{Type: respond.EventDone},
	}}
	srv := newTestServer(t, responder)

	rec := postChat(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	events := testutil.ParseSSEEvents(t, rec.Body.String())
	require.Len(t, events, 5)

	assert.Equal(t, "indicator", events[0].Type)
	var ind indicatorPayload
	require.NoError(t, json.Unmarshal([]byte(events[0].Data), &ind))
	assert.Equal(t, config.IndicatorStatus, ind.Status)
	assert.Equal(t, config.IndicatorIcon, ind.Icon)

	assert.Equal(t, "token", events[1].Type)
	assert.JSONEq(t, `{"delta":"hello "}`, events[1].Data)

	assert.Equal(t, "citation", events[3].Type)
	var cit conversation.Citation
	require.NoError(t, json.Unmarshal([]byte(events[3].Data), &cit))
	assert.Equal(t, 1, cit.Index)
	assert.Equal(t, "doc-a", cit.SourceRef)

	assert.Equal(t, "done", events[4].Type)
}

func TestStream_MapsRequestToChat(t *testing.T) {
	responder := &fakeResponder{events: []respond.Event{{Type: respond.EventDone}}}
	srv := newTestServer(t, responder)

	postChat(t, srv, `{"messages":[
		{"role":"assistant","content":"earlier answer","citations":[{"index":1,"sourceRef":"doc","snippet":"s"}]},
		{"role":"user","content":"next question"}
	]}`)

	require.Len(t, responder.lastChat.Messages, 2)
	assert.Equal(t, conversation.RoleAssistant, responder.lastChat.Messages[0].Role)
	require.Len(t, responder.lastChat.Messages[0].Citations, 1)
	assert.Equal(t, "next question", responder.lastChat.Messages[1].Content)
}

func TestStream_ErrorEvent(t *testing.T) {
	responder := &fakeResponder{events: []respond.Event{
		{Type: respond.EventIndicator, Status: config.IndicatorStatus, Icon: config.IndicatorIcon},
		{Type: respond.EventToken, Delta: "partial"},
		{Type: respond.EventError, Message: config.DefaultResponseMessage},
	}}
	srv := newTestServer(t, responder)

	rec := postChat(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "error", events[2].Type)
	var payload errorPayload
	require.NoError(t, json.Unmarshal([]byte(events[2].Data), &payload))
	assert.Equal(t, config.DefaultResponseMessage, payload.Message)
}

func TestStream_InvalidBody(t *testing.T) {
	responder := &fakeResponder{}
	srv := newTestServer(t, responder)

	rec := postChat(t, srv, `{not json`)

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)
	assert.Empty(t, responder.lastChat.Messages)
}

func TestStream_ResponderRejection(t *testing.T) {
	responder := &fakeResponder{err: conversation.ErrInvalidChat}
	srv := newTestServer(t, responder)

	rec := postChat(t, srv, `{"messages":[{"role":"user","content":"hi"}]}`)

	events := testutil.ParseSSEEvents(t, rec.Body.String())
	require.Len(t, events, 1)
	assert.Equal(t, "error", events[0].Type)

	// The rejection reason never reaches the client.
	assert.JSONEq(t, `{"message":"invalid request"}`, events[0].Data)
	assert.NotContains(t, events[0].Data, conversation.ErrInvalidChat.Error())
}

func TestStream_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet, "/api/chat/stream", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &fakeResponder{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestNewServer_RequiresCollaborators(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	assert.Error(t, err)
	_, err = NewServer(ServerConfig{Responder: &fakeResponder{}})
	assert.Error(t, err)
}
