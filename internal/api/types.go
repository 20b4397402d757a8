package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Complaint statuses accepted by the portal.
const (
	StatusPending    = "Pending"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
)

// Statuses lists every valid status in display order.
var Statuses = []string{StatusPending, StatusInProgress, StatusResolved}

// ValidStatus reports whether s is one of the three portal statuses.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Chat reply types.
const (
	ReplyComplaint  = "complaint"
	ReplyCasual     = "casual"
	ReplyOutOfScope = "out_of_scope"
)

// Complaint is a single grievance as the admin and tracking endpoints return it.
// The list endpoint leaves Address and ImagePath empty; tracking leaves the
// user fields and ID empty.
type Complaint struct {
	ID           int       `json:"id"`
	TicketNumber string    `json:"ticket_number"`
	UserName     string    `json:"user_name"`
	UserEmail    string    `json:"user_email"`
	Department   string    `json:"department"`
	Description  string    `json:"description"`
	Address      string    `json:"address"`
	ImagePath    string    `json:"image_path"`
	Status       string    `json:"status"`
	CreatedAt    Timestamp `json:"created_at"`
	UpdatedAt    Timestamp `json:"updated_at"`
}

// HasImage reports whether the complaint has an uploaded photo.
func (c Complaint) HasImage() bool {
	return c.ImagePath != ""
}

type Department struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Session describes the admin session bound to the cookie jar.
type Session struct {
	Authenticated  bool
	AdminUsername  string
	DepartmentName string
}

// LoginResult is what a successful login returns.
type LoginResult struct {
	Username       string `json:"username"`
	DepartmentName string `json:"department_name"`
	Message        string `json:"message"`
}

// Statistics are the four report counters.
type Statistics struct {
	Total      Count `json:"total_complaints"`
	Pending    Count `json:"pending_complaints"`
	InProgress Count `json:"in_progress_complaints"`
	Resolved   Count `json:"resolved_complaints"`
}

type DepartmentTotal struct {
	Department string `json:"department"`
	Total      Count  `json:"total"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  Count  `json:"count"`
}

// Report backs the reports section. A nil ChartData or StatusData means the
// portal omitted that key, which is different from an empty list.
type Report struct {
	Statistics Statistics        `json:"statistics"`
	ChartData  []DepartmentTotal `json:"chartData"`
	StatusData []StatusCount     `json:"statusData"`
}

// ChatReply is the assistant's answer to one chat message.
type ChatReply struct {
	Reply      string `json:"reply"`
	Type       string `json:"type"`
	Department string `json:"department"`
}

// IsComplaint reports whether the assistant classified the message as a complaint.
func (r ChatReply) IsComplaint() bool {
	return r.Type == ReplyComplaint
}

// Submission is the body of a complaint submission. Image, when set, is a
// data URL ("data:image/jpeg;base64,...").
type Submission struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Complaint string `json:"complaint"`
	Address   string `json:"address"`
	Image     string `json:"image,omitempty"`
}

type SubmitResult struct {
	TicketNumber string `json:"ticket_number"`
	Department   string `json:"department"`
	Message      string `json:"message"`
}

// Filter narrows the admin complaint list. Empty fields are not sent.
type Filter struct {
	Department string
	Status     string
	Search     string
}

// Query encodes the non-empty criteria.
func (f Filter) Query() url.Values {
	q := url.Values{}
	if f.Department != "" {
		q.Set("department", f.Department)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

// Count is a counter that tolerates the shapes the portal emits for
// aggregates: numbers, numeric strings (SQL DECIMAL) and null.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*c = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid count %s: %w", data, err)
	}
	*c = Count(f)
	return nil
}

// Timestamp accepts the date formats the portal has used over time.
// Values without a zone are read in the local zone.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// ParseTimestamp parses s with every known layout. An empty string gives
// the zero time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
