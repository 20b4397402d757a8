// Package apitest runs an in-memory grievance portal for tests.
//
// The fake keeps real state (complaints, sessions, statuses) so controller
// tests can drive whole flows. Any route can be replaced with Override to
// inject failures or delays.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"grievedesk/internal/api"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionCookie = "session"

// Request is one call the portal received.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      map[string]any
	RequestID string
}

// Portal is a fake portal backend.
type Portal struct {
	Server *httptest.Server

	Username   string
	Password   string
	Department string

	// ChatFunc decides the assistant reply. The default classifies
	// greetings as casual and everything else as a complaint.
	ChatFunc func(message string) api.ChatReply

	mu          sync.Mutex
	complaints  []api.Complaint
	departments []api.Department
	sessions    map[string]bool
	requests    []Request
	overrides   map[string]http.HandlerFunc
	nextID      int
}

// NewPortal starts a portal seeded with three departments and shuts it
// down when the test ends.
func NewPortal(t testing.TB) *Portal {
	t.Helper()

	p := &Portal{
		Username:   "admin",
		Password:   "secret",
		Department: "Public Works",
		departments: []api.Department{
			{ID: 1, Name: "Public Works"},
			{ID: 2, Name: "Water Supply"},
			{ID: 3, Name: "Electricity"},
		},
		sessions:  make(map[string]bool),
		overrides: make(map[string]http.HandlerFunc),
		nextID:    1,
	}
	p.ChatFunc = defaultChat

	r := chi.NewRouter()
	r.Use(p.record)
	r.Post("/api/admin/login", p.route("/api/admin/login", p.login))
	r.Post("/api/admin/logout", p.route("/api/admin/logout", p.logout))
	r.Get("/api/admin/session", p.route("/api/admin/session", p.session))
	r.Get("/api/admin/complaints", p.route("/api/admin/complaints", p.authed(p.listComplaints)))
	r.Get("/api/admin/complaints/{id}", p.route("/api/admin/complaints/{id}", p.authed(p.getComplaint)))
	r.Post("/api/admin/update_status", p.route("/api/admin/update_status", p.authed(p.updateStatus)))
	r.Get("/api/admin/departments", p.route("/api/admin/departments", p.authed(p.listDepartments)))
	r.Get("/api/admin/reports", p.route("/api/admin/reports", p.reports))
	r.Post("/api/chat", p.route("/api/chat", p.chat))
	r.Post("/api/submit_complaint", p.route("/api/submit_complaint", p.submit))
	r.Post("/api/track_complaint", p.route("/api/track_complaint", p.track))

	p.Server = httptest.NewServer(r)
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the portal base URL.
func (p *Portal) URL() string {
	return p.Server.URL
}

// Client returns an api.Client pointed at the portal with its own cookie jar.
func (p *Portal) Client(t testing.TB) *api.Client {
	t.Helper()
	c, err := api.NewClient(p.URL(), api.NewHTTPClient(5*time.Second), zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

// AddComplaint stores c, assigning an ID and ticket when missing.
func (p *Portal) AddComplaint(c api.Complaint) api.Complaint {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.ID == 0 {
		c.ID = p.nextID
	}
	if c.ID >= p.nextID {
		p.nextID = c.ID + 1
	}
	if c.TicketNumber == "" {
		c.TicketNumber = fmt.Sprintf("TKT-%04d", c.ID)
	}
	if c.Status == "" {
		c.Status = api.StatusPending
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = api.Timestamp{Time: time.Date(2025, 3, 1, 10, 30, 0, 0, time.Local)}
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	p.complaints = append(p.complaints, c)
	return c
}

// ComplaintByID returns the stored complaint, for assertions.
func (p *Portal) ComplaintByID(id int) (api.Complaint, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.complaints {
		if c.ID == id {
			return c, true
		}
	}
	return api.Complaint{}, false
}

// SetStatus changes a stored complaint's status.
func (p *Portal) SetStatus(id int, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.complaints {
		if p.complaints[i].ID == id {
			p.complaints[i].Status = status
		}
	}
}

// ExpireSessions drops every session, as a server restart would.
func (p *Portal) ExpireSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessions = make(map[string]bool)
}

// Override replaces the handler for a route pattern such as
// "/api/admin/complaints/{id}".
func (p *Portal) Override(pattern string, h http.HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrides[pattern] = h
}

// Requests returns the calls received so far.
func (p *Portal) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Count returns how many calls hit path.
func (p *Portal) Count(path string) int {
	n := 0
	for _, r := range p.Requests() {
		if r.Path == path {
			n++
		}
	}
	return n
}

// Reply writes a JSON body with the given status.
func Reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (p *Portal) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.Query(),
			RequestID: r.Header.Get("X-Request-ID"),
		}
		if r.Body != nil && r.ContentLength != 0 {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				req.Body = body
			}
		}
		p.mu.Lock()
		p.requests = append(p.requests, req)
		p.mu.Unlock()

		// Body was consumed above; handlers read req.Body through context
		next.ServeHTTP(w, r.WithContext(withBody(r.Context(), req.Body)))
	})
}

func (p *Portal) route(pattern string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		override := p.overrides[pattern]
		p.mu.Unlock()
		if override != nil {
			override(w, r)
			return
		}
		h(w, r)
	}
}

func (p *Portal) authed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !p.hasSession(r) {
			Reply(w, http.StatusOK, map[string]any{"success": false, "message": "Please login first"})
			return
		}
		h(w, r)
	}
}

func (p *Portal) hasSession(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[c.Value]
}

func (p *Portal) login(w http.ResponseWriter, r *http.Request) {
	body := BodyOf(r)
	if body["username"] != p.Username || body["password"] != p.Password {
		Reply(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
		return
	}

	token := uuid.NewString()
	p.mu.Lock()
	p.sessions[token] = true
	p.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, Path: "/"})
	Reply(w, http.StatusOK, map[string]any{
		"success":         true,
		"message":         "Login successful",
		"username":        p.Username,
		"department_name": p.Department,
	})
}

func (p *Portal) logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		p.mu.Lock()
		delete(p.sessions, c.Value)
		p.mu.Unlock()
	}
	Reply(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully"})
}

func (p *Portal) session(w http.ResponseWriter, r *http.Request) {
	if !p.hasSession(r) {
		Reply(w, http.StatusOK, map[string]any{"success": false, "message": "No active session"})
		return
	}
	Reply(w, http.StatusOK, map[string]any{
		"success":         true,
		"admin_username":  p.Username,
		"department_name": p.Department,
	})
}

func (p *Portal) listComplaints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	department, status, search := q.Get("department"), q.Get("status"), strings.ToLower(q.Get("search"))

	p.mu.Lock()
	out := make([]map[string]any, 0, len(p.complaints))
	for _, c := range p.complaints {
		if department != "" && c.Department != department {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(c.TicketNumber), search) &&
			!strings.Contains(strings.ToLower(c.UserName), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			continue
		}
		out = append(out, listJSON(c))
	}
	p.mu.Unlock()

	Reply(w, http.StatusOK, map[string]any{"success": true, "complaints": out})
}

func (p *Portal) getComplaint(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	c, ok := p.ComplaintByID(id)
	if !ok {
		Reply(w, http.StatusNotFound, map[string]any{"success": false, "message": "Complaint not found"})
		return
	}
	detail := listJSON(c)
	detail["address"] = nullable(c.Address)
	detail["image_path"] = nullable(c.ImagePath)
	Reply(w, http.StatusOK, map[string]any{"success": true, "complaint": detail})
}

func (p *Portal) updateStatus(w http.ResponseWriter, r *http.Request) {
	body := BodyOf(r)
	status, _ := body["status"].(string)
	if !api.ValidStatus(status) {
		Reply(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "Invalid status. Status must be Pending, In Progress, or Resolved.",
		})
		return
	}
	id, _ := body["complaint_id"].(float64)
	p.SetStatus(int(id), status)
	Reply(w, http.StatusOK, map[string]any{"success": true, "message": "Complaint status updated to " + status})
}

func (p *Portal) listDepartments(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	deps := append([]api.Department(nil), p.departments...)
	p.mu.Unlock()
	Reply(w, http.StatusOK, map[string]any{"success": true, "departments": deps})
}

func (p *Portal) reports(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := map[string]int{}
	byDept := map[string]int{}
	var deptOrder []string
	byStatus := map[string]int{}
	var statusOrder []string
	for _, c := range p.complaints {
		stats["total_complaints"]++
		switch c.Status {
		case api.StatusPending:
			stats["pending_complaints"]++
		case api.StatusInProgress:
			stats["in_progress_complaints"]++
		case api.StatusResolved:
			stats["resolved_complaints"]++
		}
		if _, seen := byDept[c.Department]; !seen {
			deptOrder = append(deptOrder, c.Department)
		}
		byDept[c.Department]++
		if _, seen := byStatus[c.Status]; !seen {
			statusOrder = append(statusOrder, c.Status)
		}
		byStatus[c.Status]++
	}

	chartData := make([]map[string]any, 0, len(deptOrder))
	for _, d := range deptOrder {
		chartData = append(chartData, map[string]any{"department": d, "total": byDept[d]})
	}
	statusData := make([]map[string]any, 0, len(statusOrder))
	for _, s := range statusOrder {
		statusData = append(statusData, map[string]any{"status": s, "count": byStatus[s]})
	}

	Reply(w, http.StatusOK, map[string]any{
		"success":    true,
		"statistics": stats,
		"chartData":  chartData,
		"statusData": statusData,
	})
}

func (p *Portal) chat(w http.ResponseWriter, r *http.Request) {
	message, _ := BodyOf(r)["message"].(string)
	if message == "" {
		Reply(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Message is required"})
		return
	}
	reply := p.ChatFunc(message)
	Reply(w, http.StatusOK, map[string]any{
		"success":    true,
		"type":       reply.Type,
		"department": reply.Department,
		"reply":      reply.Reply,
	})
}

func (p *Portal) submit(w http.ResponseWriter, r *http.Request) {
	body := BodyOf(r)
	description, _ := body["complaint"].(string)
	name, _ := body["name"].(string)
	email, _ := body["email"].(string)
	address, _ := body["address"].(string)

	c := p.AddComplaint(api.Complaint{
		UserName:    name,
		UserEmail:   email,
		Department:  p.Department,
		Description: description,
		Address:     address,
	})
	Reply(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Complaint submitted successfully.",
		"ticket_number": c.TicketNumber,
		"department":    c.Department,
	})
}

func (p *Portal) track(w http.ResponseWriter, r *http.Request) {
	ticket, _ := BodyOf(r)["ticket_number"].(string)
	if ticket == "" {
		Reply(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Ticket number is required"})
		return
	}

	p.mu.Lock()
	var found *api.Complaint
	for i := range p.complaints {
		if p.complaints[i].TicketNumber == ticket {
			c := p.complaints[i]
			found = &c
			break
		}
	}
	p.mu.Unlock()

	if found == nil {
		Reply(w, http.StatusNotFound, map[string]any{"success": false, "message": "Ticket number not found. Please check and try again."})
		return
	}
	Reply(w, http.StatusOK, map[string]any{"success": true, "complaint": map[string]any{
		"ticket_number": found.TicketNumber,
		"description":   found.Description,
		"status":        found.Status,
		"created_at":    isoformat(found.CreatedAt.Time),
		"updated_at":    isoformat(found.UpdatedAt.Time),
		"address":       nullable(found.Address),
		"department":    found.Department,
	}})
}

func defaultChat(message string) api.ChatReply {
	lower := strings.ToLower(message)
	if strings.HasPrefix(lower, "hello") || strings.HasPrefix(lower, "hi") {
		return api.ChatReply{Type: api.ReplyCasual, Reply: "Hello! How can I help you today?"}
	}
	return api.ChatReply{
		Type:       api.ReplyComplaint,
		Department: "Public Works",
		Reply:      "I understand. Please fill in the form below with your details.",
	}
}

func listJSON(c api.Complaint) map[string]any {
	return map[string]any{
		"id":            c.ID,
		"ticket_number": c.TicketNumber,
		"description":   c.Description,
		"status":        c.Status,
		"created_at":    isoformat(c.CreatedAt.Time),
		"updated_at":    isoformat(c.UpdatedAt.Time),
		"department":    c.Department,
		"user_name":     c.UserName,
		"user_email":    c.UserEmail,
	}
}

// isoformat renders t without a zone, as the portal does.
func isoformat(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
