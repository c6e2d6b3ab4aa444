package calendar_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxbridge/internal/server"
	"github.com/teemow/inboxbridge/internal/server/servertest"
	"github.com/teemow/inboxbridge/internal/tools/common"
)

const eventsPath = "/calendars/primary/events"

// fakeCalendar serves list and insert on the primary calendar.
type fakeCalendar struct {
	mu         sync.Mutex
	items      []map[string]any
	failInsert bool
	listQuery  url.Values
	inserted   []map[string]any
	requests   int
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++

	w.Header().Set("Content-Type", "application/json")
	if !strings.HasSuffix(r.URL.Path, eventsPath) {
		writeAPIError(w, http.StatusNotFound, "unexpected path "+r.URL.Path)
		return
	}

	switch r.Method {
	case http.MethodGet:
		f.listQuery = r.URL.Query()
		items := f.items
		if items == nil {
			items = []map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"kind": "calendar#events", "items": items})

	case http.MethodPost:
		if f.failInsert {
			writeAPIError(w, http.StatusForbidden, "Insufficient Permission")
			return
		}
		var ev map[string]any
		_ = json.NewDecoder(r.Body).Decode(&ev)
		f.inserted = append(f.inserted, ev)
		ev["id"] = "evt-1"
		ev["htmlLink"] = "https://calendar.example.com/evt-1"
		_ = json.NewEncoder(w).Encode(ev)

	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "unexpected method")
	}
}

func (f *fakeCalendar) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func writeAPIError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": code, "message": message}})
}

type toolResult struct {
	IsError  bool
	Envelope common.Envelope
}

func newMCPServer(t *testing.T, sc *server.ServerContext, readOnly bool) *mcpserver.MCPServer {
	t.Helper()
	s := mcpserver.NewMCPServer("test", "1.0.0", mcpserver.WithToolCapabilities(true))
	require.NoError(t, RegisterCalendarTools(s, sc, readOnly))
	return s
}

func rpc(t *testing.T, s *mcpserver.MCPServer, method string, params any) json.RawMessage {
	t.Helper()
	msg, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": 1, "method": method, "params": params})
	require.NoError(t, err)

	out, err := json.Marshal(s.HandleMessage(context.Background(), msg))
	require.NoError(t, err)

	var decoded struct {
		Result json.RawMessage  `json:"result"`
		Error  *json.RawMessage `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Nil(t, decoded.Error, "rpc error")
	return decoded.Result
}

func callTool(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]any) toolResult {
	t.Helper()
	var result struct {
		IsError bool `json:"isError"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args}), &result))
	require.Len(t, result.Content, 1)

	var env common.Envelope
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &env))
	return toolResult{IsError: result.IsError, Envelope: env}
}

func events(t *testing.T, env common.Envelope) []map[string]any {
	t.Helper()
	items, ok := env.Data.([]any)
	require.True(t, ok, "data is %T", env.Data)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.(map[string]any))
	}
	return out
}

func TestRegisterCalendarTools(t *testing.T) {
	sc := servertest.NewServerContext(t, nil, false)

	for _, tt := range []struct {
		readOnly bool
		want     []string
	}{
		{false, []string{ToolListUpcomingEvents, ToolSearchEvents, ToolCreateEvent}},
		{true, []string{ToolListUpcomingEvents, ToolSearchEvents}},
	} {
		var list struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		}
		require.NoError(t, json.Unmarshal(rpc(t, newMCPServer(t, sc, tt.readOnly), "tools/list", map[string]any{}), &list))

		var names []string
		for _, tool := range list.Tools {
			names = append(names, tool.Name)
		}
		assert.ElementsMatch(t, tt.want, names, "readOnly=%v", tt.readOnly)
	}
}

func TestListUpcomingEvents(t *testing.T) {
	backend := &fakeCalendar{items: []map[string]any{
		{
			"id":      "e1",
			"summary": "Standup",
			"start":   map[string]any{"dateTime": "2024-03-11T09:00:00Z"},
			"end":     map[string]any{"dateTime": "2024-03-11T09:15:00Z"},
		},
		{
			"id":    "e2",
			"start": map[string]any{"date": "2024-03-12"},
			"end":   map[string]any{"date": "2024-03-13"},
		},
	}}
	s := newMCPServer(t, servertest.NewServerContext(t, backend, false), false)

	res := callTool(t, s, ToolListUpcomingEvents, map[string]any{})
	require.False(t, res.IsError, res.Envelope.Message)
	assert.Equal(t, "Found 2 upcoming events", res.Envelope.Message)

	got := events(t, res.Envelope)
	require.Len(t, got, 2)
	assert.Equal(t, "Standup", got[0]["summary"])
	assert.Equal(t, "2024-03-11T09:00:00Z", got[0]["start"])
	assert.Equal(t, "No title", got[1]["summary"])
	assert.Equal(t, "2024-03-12", got[1]["start"])
	assert.Equal(t, "2024-03-13", got[1]["end"])

	assert.Equal(t, "5", backend.listQuery.Get("maxResults"))
	assert.Equal(t, "startTime", backend.listQuery.Get("orderBy"))
}

func TestSearchEvents(t *testing.T) {
	backend := &fakeCalendar{}
	s := newMCPServer(t, servertest.NewServerContext(t, backend, false), false)

	res := callTool(t, s, ToolSearchEvents, map[string]any{
		"query":      "dentist",
		"maxResults": 2,
		"timeMin":    "2024-03-01",
	})
	require.False(t, res.IsError, res.Envelope.Message)
	assert.Empty(t, events(t, res.Envelope))

	assert.Equal(t, "dentist", backend.listQuery.Get("q"))
	assert.Equal(t, "2", backend.listQuery.Get("maxResults"))
	assert.Equal(t, "2024-03-01T00:00:00Z", backend.listQuery.Get("timeMin"))
}

func TestSearchEvents_InvalidTimeMin(t *testing.T) {
	backend := &fakeCalendar{}
	s := newMCPServer(t, servertest.NewServerContext(t, backend, false), false)

	res := callTool(t, s, ToolSearchEvents, map[string]any{"timeMin": "next tuesday"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Envelope.Message, "timeMin")
	assert.Zero(t, backend.requestCount())
}

func TestSearchEvents_RemoteError(t *testing.T) {
	s := newMCPServer(t, servertest.NewServerContext(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIError(w, http.StatusInternalServerError, "backend error")
	}), false), false)

	res := callTool(t, s, ToolSearchEvents, map[string]any{"query": "x"})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Envelope.Message, "Google API error")
}

func TestCreateEvent(t *testing.T) {
	backend := &fakeCalendar{}
	s := newMCPServer(t, servertest.NewServerContext(t, backend, false), false)

	res := callTool(t, s, ToolCreateEvent, map[string]any{
		"summary":  "Review",
		"start":    "2024-03-11T14:00:00Z",
		"end":      "2024-03-11T15:00:00Z",
		"location": "Room 1",
	})
	require.False(t, res.IsError, res.Envelope.Message)
	assert.Equal(t, "Event created successfully: Review", res.Envelope.Message)
	assert.Equal(t, map[string]any{"event_id": "evt-1", "htmlLink": "https://calendar.example.com/evt-1"}, res.Envelope.Data)

	require.Len(t, backend.inserted, 1)
	ev := backend.inserted[0]
	assert.Equal(t, "Review", ev["summary"])
	assert.Equal(t, "Room 1", ev["location"])
	assert.Equal(t, map[string]any{"dateTime": "2024-03-11T14:00:00Z", "timeZone": "UTC"}, ev["start"])
}

func TestCreateEvent_SummaryTooLongMakesNoCall(t *testing.T) {
	backend := &fakeCalendar{}
	s := newMCPServer(t, servertest.NewServerContext(t, backend, false), false)

	res := callTool(t, s, ToolCreateEvent, map[string]any{
		"summary": strings.Repeat("x", 61),
		"start":   "2024-03-11T14:00:00Z",
		"end":     "2024-03-11T15:00:00Z",
	})
	assert.True(t, res.IsError)
	assert.Equal(t, common.StatusError, res.Envelope.Status)
	assert.Contains(t, res.Envelope.Message, "exceeds 60 characters limit (got 61)")
	assert.Zero(t, backend.requestCount())
}

func TestCreateEvent_ValidatedBeforeAuthentication(t *testing.T) {
	backend := &fakeCalendar{}
	s := newMCPServer(t, servertest.NewUnauthenticated(t, backend), false)

	res := callTool(t, s, ToolCreateEvent, map[string]any{
		"summary": strings.Repeat("x", 61),
		"start":   "2024-03-11",
		"end":     "2024-03-12",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Envelope.Message, "summary")
	assert.NotContains(t, res.Envelope.Message, "Configuration error")
}

func TestCreateEvent_RemoteFailure(t *testing.T) {
	backend := &fakeCalendar{failInsert: true}
	s := newMCPServer(t, servertest.NewServerContext(t, backend, false), false)

	res := callTool(t, s, ToolCreateEvent, map[string]any{
		"summary": "Review",
		"start":   "2024-03-11T14:00:00Z",
		"end":     "2024-03-11T15:00:00Z",
	})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Envelope.Message, "Failed to create event")
	assert.Empty(t, backend.inserted)
}

func TestCalendarTools_Unauthenticated(t *testing.T) {
	backend := &fakeCalendar{}
	s := newMCPServer(t, servertest.NewUnauthenticated(t, backend), false)

	res := callTool(t, s, ToolListUpcomingEvents, map[string]any{})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Envelope.Message, "Configuration error")
	assert.Zero(t, backend.requestCount())
}
