package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxbridge/internal/google"
)

const messagesPath = "/gmail/v1/users/me/messages"

// fakeGmail is a minimal Gmail API backend.
type fakeGmail struct {
	mu sync.Mutex

	messages map[string]*gmail.Message
	listIDs  []string
	failGet  map[string]bool
	failSend bool

	listQueries []map[string][]string
	sentRaw     []string
}

func newFakeGmail() *fakeGmail {
	return &fakeGmail{
		messages: make(map[string]*gmail.Message),
		failGet:  make(map[string]bool),
	}
}

func (f *fakeGmail) add(msg *gmail.Message) {
	f.messages[msg.Id] = msg
	f.listIDs = append(f.listIDs, msg.Id)
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/users/me/profile"):
		writeJSON(w, http.StatusOK, &gmail.Profile{EmailAddress: "me@example.com"})

	case strings.HasSuffix(path, messagesPath+"/send") && r.Method == http.MethodPost:
		if f.failSend {
			writeAPIError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		var msg gmail.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeAPIError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.sentRaw = append(f.sentRaw, msg.Raw)
		writeJSON(w, http.StatusOK, &gmail.Message{Id: "sent-1"})

	case strings.HasSuffix(path, messagesPath):
		f.listQueries = append(f.listQueries, r.URL.Query())
		res := &gmail.ListMessagesResponse{}
		for _, id := range f.listIDs {
			res.Messages = append(res.Messages, &gmail.Message{Id: id})
		}
		writeJSON(w, http.StatusOK, res)

	case strings.Contains(path, messagesPath+"/"):
		id := path[strings.LastIndex(path, "/")+1:]
		msg, ok := f.messages[id]
		if !ok || f.failGet[id] {
			writeAPIError(w, http.StatusNotFound, "Requested entity was not found.")
			return
		}
		writeJSON(w, http.StatusOK, msg)

	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{"code": status, "message": message},
	})
}

func newTestClient(t *testing.T, backend http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), nil, nil,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func headers(from, subject, date string) []*gmail.MessagePartHeader {
	var hs []*gmail.MessagePartHeader
	if from != "" {
		hs = append(hs, &gmail.MessagePartHeader{Name: "From", Value: from})
	}
	if subject != "" {
		hs = append(hs, &gmail.MessagePartHeader{Name: "Subject", Value: subject})
	}
	if date != "" {
		hs = append(hs, &gmail.MessagePartHeader{Name: "Date", Value: date})
	}
	return hs
}

func TestClampMaxResults(t *testing.T) {
	tests := []struct {
		in   int
		want int64
	}{
		{-1, 10},
		{0, 10},
		{1, 1},
		{7, 7},
		{10, 10},
		{11, 10},
		{500, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampMaxResults(tt.in), "ClampMaxResults(%d)", tt.in)
	}
}

func TestClient_ListRecent(t *testing.T) {
	backend := newFakeGmail()
	backend.add(&gmail.Message{Id: "m1", Payload: &gmail.MessagePart{
		Headers: headers("Alice <alice@example.com>", "Lunch", "Mon, 1 Jan 2024 12:00:00 +0000"),
	}})
	backend.add(&gmail.Message{Id: "m2", Payload: &gmail.MessagePart{}})

	client := newTestClient(t, backend)
	got, err := client.ListRecent(context.Background(), 50)
	require.NoError(t, err)

	assert.Equal(t, []EmailSummary{
		{ID: "m1", From: "Alice <alice@example.com>", Subject: "Lunch", Date: "Mon, 1 Jan 2024 12:00:00 +0000"},
		{ID: "m2", From: DefaultFrom, Subject: DefaultSubject, Date: DefaultDate},
	}, got)

	require.Len(t, backend.listQueries, 1)
	q := backend.listQueries[0]
	assert.Equal(t, []string{"10"}, q["maxResults"])
	assert.Equal(t, []string{"INBOX"}, q["labelIds"])
}

func TestClient_ListRecent_EmptyInbox(t *testing.T) {
	client := newTestClient(t, newFakeGmail())

	got, err := client.ListRecent(context.Background(), 5)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClient_ListRecent_SkipsFailedMessages(t *testing.T) {
	backend := newFakeGmail()
	backend.add(&gmail.Message{Id: "ok", Payload: &gmail.MessagePart{Headers: headers("a@example.com", "one", "")}})
	backend.add(&gmail.Message{Id: "broken"})
	backend.failGet["broken"] = true

	client := newTestClient(t, backend)
	got, err := client.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ok", got[0].ID)
}

func TestClient_Search(t *testing.T) {
	backend := newFakeGmail()
	backend.add(&gmail.Message{Id: "m1", Payload: &gmail.MessagePart{Headers: headers("bob@example.com", "Invoice", "")}})

	client := newTestClient(t, backend)
	got, err := client.Search(context.Background(), "from:bob has:attachment", 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Invoice", got[0].Subject)

	q := backend.listQueries[0]
	assert.Equal(t, []string{"from:bob has:attachment"}, q["q"])
	assert.Equal(t, []string{"3"}, q["maxResults"])
	assert.Empty(t, q["labelIds"])
}

func TestClient_ListError(t *testing.T) {
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(w, http.StatusInternalServerError, "backend error")
	})
	client := newTestClient(t, srv)

	_, err := client.ListRecent(context.Background(), 5)
	var apiErr *google.RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, google.ServiceGmail, apiErr.Service)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode())
}

func TestClient_GetContent(t *testing.T) {
	const text = "Hallo Welt,\r\nÜbermorgen um 10?"

	backend := newFakeGmail()
	backend.add(&gmail.Message{Id: "m1", Payload: &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Headers:  headers("carol@example.com", "Termin", "Tue, 2 Jan 2024 08:00:00 +0000"),
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(text))}},
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte("<b>html</b>"))}},
		},
	}})

	client := newTestClient(t, backend)
	got, err := client.GetContent(context.Background(), "m1")
	require.NoError(t, err)

	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "carol@example.com", got.From)
	assert.Equal(t, "Termin", got.Subject)
	assert.Equal(t, text, got.Body)
}

func TestClient_GetContent_NotFound(t *testing.T) {
	client := newTestClient(t, newFakeGmail())

	_, err := client.GetContent(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "missing")
}

func TestClient_GetContent_MissingPayload(t *testing.T) {
	backend := newFakeGmail()
	backend.add(&gmail.Message{Id: "bare"})

	client := newTestClient(t, backend)
	_, err := client.GetContent(context.Background(), "bare")

	var schemaErr *google.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "payload", schemaErr.Field)
}

func TestClient_Send(t *testing.T) {
	backend := newFakeGmail()
	client := newTestClient(t, backend)

	resp := client.Send(context.Background(), SendEmailRequest{
		To:      "dave@example.com",
		Subject: "Hi",
		Body:    "See you soon",
		Cc:      "erin@example.com",
	})
	assert.Equal(t, SendEmailResponse{Status: StatusSuccess, Message: "Email sent successfully", EmailID: "sent-1"}, resp)

	require.Len(t, backend.sentRaw, 1)
	raw, err := base64.URLEncoding.DecodeString(backend.sentRaw[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), "To: dave@example.com\r\n")
	assert.Contains(t, string(raw), "Cc: erin@example.com\r\n")
	assert.True(t, strings.HasSuffix(string(raw), "\r\n\r\nSee you soon"))
}

func TestClient_Send_RemoteFailure(t *testing.T) {
	backend := newFakeGmail()
	backend.failSend = true
	client := newTestClient(t, backend)

	resp := client.Send(context.Background(), SendEmailRequest{To: "a@example.com", Subject: "s", Body: "b"})
	assert.Equal(t, StatusError, resp.Status)
	assert.True(t, strings.HasPrefix(resp.Message, "Failed to send email: "))
	assert.Empty(t, resp.EmailID)
}

func TestClient_Send_InvalidRequestMakesNoCall(t *testing.T) {
	var calls int
	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, http.StatusOK, &gmail.Message{Id: "x"})
	})
	client := newTestClient(t, srv)

	resp := client.Send(context.Background(), SendEmailRequest{Subject: "s", Body: "b"})
	assert.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Message, "to")
	assert.Zero(t, calls)
}

func TestClient_Profile(t *testing.T) {
	client := newTestClient(t, newFakeGmail())

	addr, err := client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", addr)
}

type recordedCall struct {
	service, operation, status string
}

type fakeAPIMetrics struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (m *fakeAPIMetrics) RecordGoogleAPIOperation(_ context.Context, service, operation, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{service, operation, status})
}

func TestClient_RecordsMetrics(t *testing.T) {
	backend := newFakeGmail()
	srv := httptest.NewServer(backend)
	defer srv.Close()

	metrics := &fakeAPIMetrics{}
	client, err := NewClient(context.Background(), nil, metrics,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	_, err = client.GetContent(context.Background(), "missing")
	require.Error(t, err)

	require.Len(t, metrics.calls, 1)
	assert.Equal(t, recordedCall{google.ServiceGmail, "messages.get", "error"}, metrics.calls[0])
}
