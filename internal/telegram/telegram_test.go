package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"grievedesk/internal/api"
	"grievedesk/internal/api/apitest"
	"grievedesk/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	Method string
	Body   map[string]any
}

// fakeBot is a Bot API server that records calls.
type fakeBot struct {
	server *httptest.Server

	mu      sync.Mutex
	calls   []call
	updates [][]Update
	failing int
	edited  chan struct{}
}

func newFakeBot(t *testing.T) *fakeBot {
	t.Helper()
	b := &fakeBot{edited: make(chan struct{}, 10)}

	r := chi.NewRouter()
	r.Post("/bot{token}/{method}", func(w http.ResponseWriter, r *http.Request) {
		method := chi.URLParam(r, "method")
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		b.mu.Lock()
		b.calls = append(b.calls, call{Method: method, Body: body})
		failing := b.failing > 0 && method == "getUpdates"
		if failing {
			b.failing--
		}
		var batch []Update
		if method == "getUpdates" && !failing && len(b.updates) > 0 {
			batch, b.updates = b.updates[0], b.updates[1:]
		}
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case failing:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 502, "description": "Bad Gateway"})
		case method == "sendMessage":
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 321}})
		case method == "getUpdates":
			if batch == nil {
				// Simulate an idle long poll
				select {
				case <-r.Context().Done():
				case <-time.After(20 * time.Millisecond):
				}
				batch = []Update{}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": batch})
		default:
			if method == "editMessageText" {
				b.edited <- struct{}{}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
		}
	})

	b.server = httptest.NewServer(r)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBot) client(t *testing.T) *Client {
	c := NewClient("TOKEN", "42", nil,
		WithBaseURL(b.server.URL),
		WithRateLimit(time.Millisecond),
		WithPollRetry(time.Millisecond, time.Millisecond),
	)
	require.NotNil(t, c)
	return c
}

func (b *fakeBot) callsTo(method string) []call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []call
	for _, c := range b.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func TestNewClientDisabledWithoutCredentials(t *testing.T) {
	assert.Nil(t, NewClient("", "42", nil))
	assert.Nil(t, NewClient("TOKEN", "", nil))

	var c *Client
	id, err := c.SendComplaintMessage(context.Background(), api.Complaint{})
	assert.NoError(t, err)
	assert.Empty(t, id)
	assert.NoError(t, c.SendCriticalAlert(context.Background(), "x", "y", 1))
	assert.NoError(t, c.EditMessageText(context.Background(), "1", "z", nil))
	c.HandleUpdates(context.Background(), nil, nil)
}

func TestSendComplaintMessage(t *testing.T) {
	bot := newFakeBot(t)
	c := bot.client(t)

	id, err := c.SendComplaintMessage(context.Background(), api.Complaint{
		TicketNumber: "TKT-0001",
		UserName:     "Asha <admin>",
		Department:   "Water Supply",
		Description:  "No water",
		Status:       api.StatusPending,
	})
	require.NoError(t, err)
	assert.Equal(t, "321", id)

	sent := bot.callsTo("sendMessage")
	require.Len(t, sent, 1)
	assert.Equal(t, "42", sent[0].Body["chat_id"])
	assert.Equal(t, "HTML", sent[0].Body["parse_mode"])
	text := sent[0].Body["text"].(string)
	assert.Contains(t, text, "📋 Complaint : TKT-0001")
	assert.Contains(t, text, "Asha &lt;admin&gt;")
	assert.Contains(t, text, "📍 No address provided")

	markup := sent[0].Body["reply_markup"].(map[string]any)
	row := markup["inline_keyboard"].([]any)[0].([]any)
	require.Len(t, row, 2)
	assert.Equal(t, "progress:TKT-0001", row[0].(map[string]any)["callback_data"])
	assert.Equal(t, "resolve:TKT-0001", row[1].(map[string]any)["callback_data"])
}

func TestAPIErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error_code": 400, "description": "chat not found"})
	}))
	defer srv.Close()

	c := NewClient("TOKEN", "42", nil, WithBaseURL(srv.URL))
	err := c.SendCriticalAlert(context.Background(), "Login Failure", "bad password", 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.Code)
	assert.Equal(t, "sendMessage", apiErr.Method)
}

func TestEditWithoutMessageIDIsSkipped(t *testing.T) {
	bot := newFakeBot(t)
	require.NoError(t, bot.client(t).EditMessageText(context.Background(), "", "text", nil))
	assert.Empty(t, bot.callsTo("editMessageText"))
}

func TestDebugModeSendsNothing(t *testing.T) {
	bot := newFakeBot(t)
	c := NewClient("TOKEN", "42", nil, WithBaseURL(bot.server.URL), WithDebug(true))

	_, err := c.SendComplaintMessage(context.Background(), api.Complaint{TicketNumber: "TKT-1"})
	require.NoError(t, err)
	c.HandleUpdates(context.Background(), nil, nil)
	assert.Empty(t, bot.callsTo("sendMessage"))
	assert.Empty(t, bot.callsTo("getUpdates"))
}

func TestStatusKeyboard(t *testing.T) {
	assert.Len(t, StatusKeyboard("T", api.StatusPending).InlineKeyboard[0], 2)
	assert.Equal(t, "resolve:T", StatusKeyboard("T", api.StatusInProgress).InlineKeyboard[0][0].CallbackData)
	assert.Empty(t, StatusKeyboard("T", api.StatusResolved).InlineKeyboard)
}

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data   string
		status string
		ticket string
		ok     bool
	}{
		{"resolve:TKT-1", api.StatusResolved, "TKT-1", true},
		{"progress:TKT-1", api.StatusInProgress, "TKT-1", true},
		{"resolve:", "", "", false},
		{"delete:TKT-1", "", "", false},
		{"garbage", "", "", false},
	}
	for _, tt := range tests {
		status, ticket, ok := parseCallback(tt.data)
		assert.Equal(t, tt.ok, ok, tt.data)
		assert.Equal(t, tt.status, status, tt.data)
		assert.Equal(t, tt.ticket, ticket, tt.data)
	}
}

func TestResolvedText(t *testing.T) {
	at := time.Date(2025, 3, 1, 15, 4, 0, 0, time.UTC)
	text := ResolvedText("TKT-1", "", at)
	assert.True(t, strings.HasPrefix(text, "✅ <b>RESOLVED</b>"))
	assert.Contains(t, text, "👤 Unknown")
	assert.Contains(t, text, "01 Mar 2025, 03:04 PM")
}

type updateHarness struct {
	bot    *fakeBot
	portal *apitest.Portal
	client *api.Client
	store  storage.Store
}

func newUpdateHarness(t *testing.T) *updateHarness {
	t.Helper()
	portal := apitest.NewPortal(t)
	client := portal.Client(t)
	_, err := client.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	store, err := storage.NewCSVStore(filepath.Join(t.TempDir(), "tickets.csv"), nil)
	require.NoError(t, err)

	c := portal.AddComplaint(api.Complaint{UserName: "Asha", Department: "Water Supply", Description: "No water"})
	require.NoError(t, store.SaveMultiple(context.Background(), []storage.Record{
		{Ticket: c.TicketNumber, ComplaintID: c.ID, Status: c.Status, MessageID: "321"},
	}))
	return &updateHarness{bot: newFakeBot(t), portal: portal, client: client, store: store}
}

func (h *updateHarness) run(t *testing.T, updates ...Update) {
	t.Helper()
	h.bot.mu.Lock()
	h.bot.updates = append(h.bot.updates, updates)
	h.bot.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.bot.client(t).HandleUpdates(ctx, h.client, h.store)
		close(done)
	}()

	select {
	case <-h.bot.edited:
	case <-time.After(5 * time.Second):
		t.Fatal("no message edit")
	}
	// Let the handler finish the callback before stopping it
	require.Eventually(t, func() bool { return len(h.bot.callsTo("answerCallbackQuery")) > 0 }, 5*time.Second, 5*time.Millisecond)
	want := float64(updates[len(updates)-1].UpdateID + 1)
	require.Eventually(t, func() bool {
		polls := h.bot.callsTo("getUpdates")
		return polls[len(polls)-1].Body["offset"] == want
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestHandleUpdatesResolve(t *testing.T) {
	h := newUpdateHarness(t)
	h.run(t, Update{UpdateID: 7, CallbackQuery: &CallbackQuery{
		ID: "cb1", From: User{ID: 1, FirstName: "Ravi"}, Data: "resolve:TKT-0001",
	}})

	c, _ := h.portal.ComplaintByID(1)
	assert.Equal(t, api.StatusResolved, c.Status)

	edit := h.bot.callsTo("editMessageText")[0].Body
	assert.Equal(t, "321", edit["message_id"])
	assert.Contains(t, edit["text"], "RESOLVED")
	assert.Contains(t, edit["text"], "👤 Asha")

	isNew, err := h.store.IsNew(context.Background(), "TKT-0001")
	require.NoError(t, err)
	assert.True(t, isNew, "resolved tickets leave the store")

	answer := h.bot.callsTo("answerCallbackQuery")[0].Body
	assert.Equal(t, "Complaint status updated to Resolved", answer["text"])

	polls := h.bot.callsTo("getUpdates")
	require.GreaterOrEqual(t, len(polls), 2)
	assert.EqualValues(t, 8, polls[len(polls)-1].Body["offset"], "offset acknowledges the update")
}

func TestHandleUpdatesInProgressAfterPollFailures(t *testing.T) {
	h := newUpdateHarness(t)
	h.bot.failing = 2
	h.run(t, Update{UpdateID: 1, CallbackQuery: &CallbackQuery{
		ID: "cb2", From: User{ID: 1, FirstName: "Ravi"}, Data: "progress:TKT-0001",
	}})

	c, _ := h.portal.ComplaintByID(1)
	assert.Equal(t, api.StatusInProgress, c.Status)

	edit := h.bot.callsTo("editMessageText")[0].Body
	assert.Contains(t, edit["text"], "In Progress")
	row := edit["reply_markup"].(map[string]any)["inline_keyboard"].([]any)[0].([]any)
	require.Len(t, row, 1)
	assert.Equal(t, "resolve:TKT-0001", row[0].(map[string]any)["callback_data"])

	rec, ok, err := h.store.Get(context.Background(), "TKT-0001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, api.StatusInProgress, rec.Status)
}

func TestHandleCallbackUnknownTicket(t *testing.T) {
	h := newUpdateHarness(t)
	c := h.bot.client(t)

	c.handleCallbackQuery(context.Background(), &CallbackQuery{ID: "cb3", Data: "resolve:TKT-9999"}, h.client, h.store)
	c.handleCallbackQuery(context.Background(), &CallbackQuery{ID: "cb4", Data: "bogus"}, h.client, h.store)

	answers := h.bot.callsTo("answerCallbackQuery")
	require.Len(t, answers, 2)
	assert.Equal(t, "Complaint was already resolved", answers[0].Body["text"])
	assert.Equal(t, "Invalid action", answers[1].Body["text"])
	assert.Empty(t, h.bot.callsTo("editMessageText"))
}

func TestHandleCallbackPortalFailure(t *testing.T) {
	h := newUpdateHarness(t)
	h.portal.ExpireSessions()
	c := h.bot.client(t)

	c.handleCallbackQuery(context.Background(), &CallbackQuery{ID: "cb5", Data: "resolve:TKT-0001"}, h.client, h.store)

	assert.Equal(t, "Failed to update status", h.bot.callsTo("answerCallbackQuery")[0].Body["text"])
	sent := h.bot.callsTo("sendMessage")
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body["text"], "Failed to mark complaint <b>TKT-0001</b>")

	isNew, err := h.store.IsNew(context.Background(), "TKT-0001")
	require.NoError(t, err)
	assert.False(t, isNew)
}
