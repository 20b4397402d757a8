package admin

import (
	"context"
	"net/http"
	"testing"
	"time"

	"grievedesk/internal/api"
	"grievedesk/internal/api/apitest"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/view"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	portal    *apitest.Portal
	client    *api.Client
	clock     *view.ManualClock
	toaster   *view.Toaster
	dashboard *Dashboard
	session   *SessionController
}

func newHarness(t *testing.T, slots view.Slots) *harness {
	t.Helper()
	portal := apitest.NewPortal(t)
	client := portal.Client(t)
	clock := view.NewManualClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	toaster := view.NewToaster(clock, 3*time.Second)

	opts := Options{
		Clock:      clock,
		Toaster:    toaster,
		Slots:      slots,
		LoginFade:  300 * time.Millisecond,
		RowStagger: 100 * time.Millisecond,
	}
	dash := NewDashboard(client, opts)
	return &harness{
		portal:    portal,
		client:    client,
		clock:     clock,
		toaster:   toaster,
		dashboard: dash,
		session:   NewSessionController(client, dash, opts),
	}
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	_, err := h.client.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
}

func (h *harness) seed() {
	h.portal.AddComplaint(api.Complaint{UserName: "Asha", Department: "Water Supply", Description: "No water"})
	h.portal.AddComplaint(api.Complaint{UserName: "Ravi", Department: "Public Works", Description: "Pothole", Status: api.StatusInProgress})
	h.portal.AddComplaint(api.Complaint{UserName: "Meera", Department: "Water Supply", Description: "Leak", Address: "4 Hill St", ImagePath: "uploads/TKT-0003.jpg"})
}

func messages(toasts []view.Toast) []string {
	out := make([]string, len(toasts))
	for i, t := range toasts {
		out[i] = t.Message
	}
	return out
}

func TestCheckWithoutSessionShowsLogin(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, ViewLogin, h.session.Check(context.Background()))
	assert.Equal(t, ViewLogin, h.session.View())
}

func TestCheckWithSessionLoadsDashboard(t *testing.T) {
	h := newHarness(t, nil)
	h.portal.Department = ""
	h.seed()
	h.login(t)

	assert.Equal(t, ViewDashboard, h.session.Check(context.Background()))
	assert.Equal(t, Identity{Username: "admin", Department: "No Department"}, h.session.Identity())
	assert.Equal(t, SectionComplaints, h.dashboard.Section())
	assert.Len(t, h.dashboard.Complaints.Rows(), 3)
	assert.Len(t, h.dashboard.Departments.Cards(), 3)
	assert.Equal(t, 3, h.dashboard.Reports.Counters().Total)
	assert.Equal(t, 1, h.portal.Count("/api/admin/complaints"), "the list is fetched once")
}

func TestCheckNetworkErrorShowsLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.portal.Server.Close()
	assert.Equal(t, ViewLogin, h.session.Check(context.Background()))
}

func TestLoginBlankFieldsSendNothing(t *testing.T) {
	h := newHarness(t, nil)

	err := h.session.Login(context.Background(), "  ", "secret")
	assert.True(t, apperrors.IsValidation(err))
	assert.Zero(t, h.portal.Count("/api/admin/login"))

	le := h.session.LoginError()
	assert.Equal(t, "Please enter both username and password", le.Message)
	assert.True(t, le.Visible)
	assert.True(t, le.Shake)

	h.clock.Advance(500 * time.Millisecond)
	assert.False(t, h.session.LoginError().Shake, "shake clears after 500ms")
	assert.True(t, h.session.LoginError().Visible)
}

func TestLoginRejectedShowsServerMessage(t *testing.T) {
	h := newHarness(t, nil)

	err := h.session.Login(context.Background(), "admin", "nope")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", h.session.LoginError().Message)
	assert.Equal(t, ViewLogin, h.session.View())
}

func TestLoginRejectedWithoutMessage(t *testing.T) {
	h := newHarness(t, nil)
	h.portal.Override("/api/admin/login", func(w http.ResponseWriter, r *http.Request) {
		apitest.Reply(w, http.StatusOK, map[string]any{"success": false})
	})

	require.Error(t, h.session.Login(context.Background(), "admin", "secret"))
	assert.Equal(t, "Login failed", h.session.LoginError().Message)
}

func TestLoginConnectionError(t *testing.T) {
	h := newHarness(t, nil)
	h.portal.Server.Close()

	require.Error(t, h.session.Login(context.Background(), "admin", "secret"))
	assert.Equal(t, "Connection error. Please try again.", h.session.LoginError().Message)
}

func TestLoginWaitsForFadeThenLoads(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()

	done := make(chan error, 1)
	go func() {
		done <- h.session.Login(context.Background(), " admin ", "secret")
	}()

	h.clock.BlockUntil(1)
	assert.Equal(t, ViewLogin, h.session.View(), "still fading")
	assert.Equal(t, "Public Works", h.session.Identity().Department)

	h.clock.Advance(300 * time.Millisecond)
	require.NoError(t, <-done)

	assert.Equal(t, ViewDashboard, h.session.View())
	assert.Len(t, h.dashboard.Complaints.Rows(), 3)
}

func TestLoginCancelledDuringFade(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.session.Login(ctx, "admin", "secret") }()
	h.clock.BlockUntil(1)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, ViewLogin, h.session.View())
}

func TestLogoutAlwaysShowsLogin(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)
	h.session.Check(context.Background())
	require.Equal(t, ViewDashboard, h.session.View())

	h.portal.Server.Close()
	h.session.Logout(context.Background())
	assert.Equal(t, ViewLogin, h.session.View())
}

func TestDashboardLoadStopsAtFirstFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()
	h.login(t)
	h.portal.Override("/api/admin/departments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	})

	err := h.dashboard.Load(context.Background())
	require.Error(t, err)

	assert.Equal(t, []string{"Error loading dashboard data"}, messages(h.toaster.History()))
	assert.Len(t, h.dashboard.Complaints.Rows(), 3, "completed stage keeps its rows")
	assert.Zero(t, h.portal.Count("/api/admin/reports"), "later stages never run")
}

func TestActivateSections(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()
	h.login(t)
	ctx := context.Background()

	require.NoError(t, h.dashboard.Activate(ctx, SectionReports))
	assert.Equal(t, SectionReports, h.dashboard.Section())
	assert.Equal(t, 1, h.dashboard.Resizes())
	assert.Equal(t, 2, h.dashboard.Reports.Charts().Live())
	assert.Equal(t, Counters{Total: 3, Pending: 2, InProgress: 1}, h.dashboard.Reports.Counters())

	require.NoError(t, h.dashboard.Activate(ctx, SectionDepartments))
	assert.Equal(t, SectionDepartments, h.dashboard.Section())

	assert.Error(t, h.dashboard.Activate(ctx, Section("settings")))
	assert.Equal(t, SectionDepartments, h.dashboard.Section())
}

func TestComplaintTableRender(t *testing.T) {
	h := newHarness(t, nil)
	table := h.dashboard.Complaints
	assert.True(t, table.PlaceholderVisible())

	h.seed()
	h.login(t)
	require.NoError(t, table.Load(context.Background()))

	rows := table.Rows()
	require.Len(t, rows, 3)
	assert.False(t, table.PlaceholderVisible())
	assert.Equal(t, "TKT-0002", rows[1].Ticket)
	assert.Equal(t, "status-in-progress", rows[1].StatusClass)
	assert.Equal(t, "2025-03-01", rows[0].Date)
	assert.Equal(t, 200*time.Millisecond, rows[2].RevealDelay)

	assert.Equal(t, []Option{
		{Value: "", Label: "All Departments"},
		{Value: "Water Supply", Label: "Water Supply"},
		{Value: "Public Works", Label: "Public Works"},
	}, table.DepartmentOptions())

	require.NoError(t, table.Filter(context.Background(), api.Filter{Search: "nothing matches"}))
	assert.Empty(t, table.Rows())
	assert.True(t, table.PlaceholderVisible())
	assert.Len(t, table.DepartmentOptions(), 3, "filtering keeps the options")
}

func TestStatusClassReplacesFirstSpaceOnly(t *testing.T) {
	assert.Equal(t, "status-pending", StatusClass("Pending"))
	assert.Equal(t, "status-in-progress", StatusClass("In Progress"))
	assert.Equal(t, "status-a-b c", StatusClass("A B C"))
}

func TestFilterSendsOnlySetCriteria(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()
	h.login(t)

	err := h.dashboard.Complaints.Filter(context.Background(), api.Filter{Status: api.StatusPending, Search: "  leak "})
	require.NoError(t, err)

	reqs := h.portal.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "leak", last.Query.Get("search"))
	assert.Equal(t, api.StatusPending, last.Query.Get("status"))
	assert.False(t, last.Query.Has("department"))

	rows := h.dashboard.Complaints.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "Meera", rows[0].User)
}

func TestFilterDropsStaleResponse(t *testing.T) {
	h := newHarness(t, nil)
	arrived := make(chan struct{})
	release := make(chan struct{})

	h.portal.Override("/api/admin/complaints", func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		if search == "slow" {
			close(arrived)
			<-release
			apitest.Reply(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "database busy"})
			return
		}
		apitest.Reply(w, http.StatusOK, map[string]any{
			"success": true,
			"complaints": []map[string]any{{
				"id": 1, "ticket_number": "TKT-" + search, "status": "Pending",
				"department": "Water Supply", "created_at": "2025-03-01T10:30:00",
			}},
		})
	})

	table := h.dashboard.Complaints
	slow := make(chan error, 1)
	go func() { slow <- table.Filter(context.Background(), api.Filter{Search: "slow"}) }()
	<-arrived

	busy, label := table.SearchState()
	assert.True(t, busy)
	assert.Equal(t, "Searching...", label)

	require.NoError(t, table.Filter(context.Background(), api.Filter{Search: "fast"}))

	busy, label = table.SearchState()
	assert.True(t, busy, "the slow filter is still in flight")
	assert.Equal(t, "Searching...", label)

	close(release)
	require.NoError(t, <-slow, "a superseded failure is dropped")

	rows := table.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "TKT-fast", rows[0].Ticket)

	busy, label = table.SearchState()
	assert.False(t, busy)
	assert.Equal(t, "Search", label)
	assert.Empty(t, h.toaster.History())
}

func TestFilterFailureShowsToast(t *testing.T) {
	h := newHarness(t, nil)
	h.portal.Server.Close()

	err := h.dashboard.Complaints.Filter(context.Background(), api.Filter{Search: "x"})
	require.Error(t, err)
	assert.Equal(t, []string{"Error filtering complaints"}, messages(h.toaster.History()))

	busy, label := h.dashboard.Complaints.SearchState()
	assert.False(t, busy)
	assert.Equal(t, "Search", label)
}

func TestDepartmentDrillDownAndBack(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()
	h.login(t)
	ctx := context.Background()
	deps := h.dashboard.Departments

	require.NoError(t, deps.Load(ctx))
	assert.Equal(t, ModeGrid, deps.Mode())
	assert.Equal(t, "Departments", deps.Header())
	assert.False(t, deps.BackVisible())

	require.NoError(t, deps.Select(ctx, "Water Supply"))
	assert.Equal(t, ModeDrillDown, deps.Mode())
	assert.Equal(t, "Water Supply Complaints", deps.Header())
	assert.True(t, deps.BackVisible())
	assert.Equal(t, "Water Supply", deps.Selected())

	rows := deps.Table().Rows()
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Equal(t, "Water Supply", r.Department)
	}

	before := h.portal.Count("/api/admin/departments")
	require.NoError(t, deps.Back(ctx))
	assert.Equal(t, ModeGrid, deps.Mode())
	assert.Equal(t, "Departments", deps.Header())
	assert.False(t, deps.BackVisible())
	assert.Equal(t, before+1, h.portal.Count("/api/admin/departments"))
}

func TestDetailOpenFillsSlots(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()
	h.login(t)
	modal := h.dashboard.Detail

	require.NoError(t, modal.Open(context.Background(), 1))
	assert.True(t, modal.IsOpen())
	assert.Equal(t, api.StatusPending, modal.SelectedStatus())

	loc, ok := modal.Field(SlotLocation)
	assert.True(t, ok)
	assert.Equal(t, "No address provided", loc)
	visible, _ := modal.Image()
	assert.False(t, visible)
	assert.False(t, modal.ShowFullscreen())

	require.NoError(t, modal.Open(context.Background(), 3))
	loc, _ = modal.Field(SlotLocation)
	assert.Equal(t, "4 Hill St", loc)
	visible, url := modal.Image()
	assert.True(t, visible)
	assert.Equal(t, h.portal.URL()+"/uploads/TKT-0003.jpg", url)

	assert.True(t, modal.ShowFullscreen())
	assert.True(t, modal.Fullscreen())
	modal.CloseFullscreen()
	assert.False(t, modal.Fullscreen())
}

func TestDetailOpenSkipsMissingSlots(t *testing.T) {
	h := newHarness(t, view.NewSlots(SlotTicket, SlotStatus))
	h.seed()
	h.login(t)
	modal := h.dashboard.Detail

	require.NoError(t, modal.Open(context.Background(), 3))
	ticket, ok := modal.Field(SlotTicket)
	assert.True(t, ok)
	assert.Equal(t, "TKT-0003", ticket)

	_, ok = modal.Field(SlotEmail)
	assert.False(t, ok)
	visible, _ := modal.Image()
	assert.False(t, visible, "no image slot")
	assert.True(t, modal.IsOpen())
}

func TestDetailOpenFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.login(t)

	require.Error(t, h.dashboard.Detail.Open(context.Background(), 42))
	assert.False(t, h.dashboard.Detail.IsOpen())
	assert.Equal(t, []string{"Error loading complaint details"}, messages(h.toaster.History()))
}

func TestDetailUpdateStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()
	h.login(t)
	ctx := context.Background()
	modal := h.dashboard.Detail

	t.Run("nothing selected", func(t *testing.T) {
		err := modal.UpdateStatus(ctx, api.StatusResolved)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "No complaint selected", lastToast(h))
		assert.Zero(t, h.portal.Count("/api/admin/update_status"))
	})

	t.Run("invalid status never sent", func(t *testing.T) {
		require.NoError(t, modal.Open(ctx, 1))
		err := modal.UpdateStatus(ctx, "Closed")
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, "Invalid status. Status must be Pending, In Progress, or Resolved.", lastToast(h))
		assert.Zero(t, h.portal.Count("/api/admin/update_status"))
		assert.Equal(t, api.StatusPending, modal.SelectedStatus())
	})

	t.Run("success closes and reloads", func(t *testing.T) {
		require.NoError(t, h.dashboard.Activate(ctx, SectionReports))
		reports := h.portal.Count("/api/admin/reports")
		lists := h.portal.Count("/api/admin/complaints")

		require.NoError(t, modal.UpdateStatus(ctx, api.StatusResolved))
		assert.Equal(t, "Status updated successfully", lastToast(h))
		assert.False(t, modal.IsOpen())

		c, _ := h.portal.ComplaintByID(1)
		assert.Equal(t, api.StatusResolved, c.Status)
		assert.Equal(t, lists+1, h.portal.Count("/api/admin/complaints"))
		assert.Equal(t, reports+1, h.portal.Count("/api/admin/reports"))
		assert.Equal(t, 1, h.dashboard.Reports.Counters().Resolved)
	})

	t.Run("server rejection", func(t *testing.T) {
		require.NoError(t, modal.Open(ctx, 2))
		h.portal.Override("/api/admin/update_status", func(w http.ResponseWriter, r *http.Request) {
			apitest.Reply(w, http.StatusOK, map[string]any{"success": false, "message": "Complaint is locked"})
		})
		require.Error(t, modal.UpdateStatus(ctx, api.StatusResolved))
		assert.Equal(t, "Complaint is locked", lastToast(h))
		assert.True(t, modal.IsOpen())
	})

	t.Run("connection failure", func(t *testing.T) {
		h.portal.Server.Close()
		require.Error(t, modal.UpdateStatus(ctx, api.StatusResolved))
		assert.Equal(t, "Error updating status", lastToast(h))
	})
}

func TestReportsWithoutChartDataKeepsCharts(t *testing.T) {
	h := newHarness(t, nil)
	h.seed()
	h.login(t)
	ctx := context.Background()
	reports := h.dashboard.Reports

	require.NoError(t, reports.Load(ctx))
	require.Equal(t, 2, reports.Charts().Live())
	bar := reports.Charts().Bar()

	h.portal.Override("/api/admin/reports", func(w http.ResponseWriter, r *http.Request) {
		apitest.Reply(w, http.StatusOK, map[string]any{
			"success":    true,
			"statistics": map[string]any{"total_complaints": "7", "pending_complaints": 7},
		})
	})
	require.NoError(t, reports.Load(ctx))
	assert.Equal(t, 7, reports.Counters().Total)
	assert.Same(t, bar, reports.Charts().Bar())
	assert.Equal(t, 2, reports.Charts().Live())
}

func lastToast(h *harness) string {
	t, ok := h.toaster.Last()
	if !ok {
		return ""
	}
	return t.Message
}
