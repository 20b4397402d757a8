package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"grievedesk/internal/api"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

const (
	allDepartmentsLabel = "All Departments"
	searchIdleLabel     = "Search"
	searchBusyLabel     = "Searching..."
)

// Row is one rendered complaint in a table.
type Row struct {
	ComplaintID int
	Ticket      string
	Department  string
	User        string
	Date        string
	Status      string
	StatusClass string
	RevealDelay time.Duration
}

// Option is one entry of a select control. An empty Value means "any".
type Option struct {
	Value string
	Label string
}

// StatusClass is the CSS class of a status badge. Only the first space is
// replaced, which is what the dashboard stylesheet expects.
func StatusClass(status string) string {
	return "status-" + strings.Replace(strings.ToLower(status), " ", "-", 1)
}

// ComplaintTable is a complaint list with its filter controls.
//
// Every query takes a token from a monotonic sequence. A response whose
// token is older than the newest issued one is dropped, so overlapping
// filters always settle on the last query the user made.
type ComplaintTable struct {
	client  *api.Client
	stagger time.Duration
	toaster *view.Toaster
	logger  *zap.SugaredLogger
	search  *view.Busy

	mu          sync.Mutex
	rows        []Row
	placeholder bool
	options     []Option
	issued      uint64
}

func newComplaintTable(client *api.Client, opts Options) *ComplaintTable {
	return &ComplaintTable{
		client:      client,
		stagger:     opts.RowStagger,
		toaster:     opts.Toaster,
		logger:      opts.Logger,
		search:      view.NewBusy(searchIdleLabel),
		placeholder: true,
		options:     []Option{{Value: "", Label: allDepartmentsLabel}},
	}
}

// Render replaces every row with list.
func (t *ComplaintTable) Render(list []api.Complaint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderLocked(list)
}

func (t *ComplaintTable) renderLocked(list []api.Complaint) {
	t.rows = t.rows[:0]
	if len(list) == 0 {
		t.placeholder = true
		return
	}
	t.placeholder = false
	for i, c := range list {
		t.rows = append(t.rows, Row{
			ComplaintID: c.ID,
			Ticket:      c.TicketNumber,
			Department:  c.Department,
			User:        c.UserName,
			Date:        formatDate(c.CreatedAt),
			Status:      c.Status,
			StatusClass: StatusClass(c.Status),
			RevealDelay: view.Stagger(i, t.stagger),
		})
	}
}

// Load fetches the unfiltered list, renders it and rebuilds the department
// options from the departments that occur in it.
func (t *ComplaintTable) Load(ctx context.Context) error {
	return t.query(ctx, api.Filter{}, true)
}

// Filter fetches the list matching f. The search control stays busy until
// every overlapping Filter call has returned.
func (t *ComplaintTable) Filter(ctx context.Context, f api.Filter) error {
	f.Search = strings.TrimSpace(f.Search)

	release := t.search.Hold(searchBusyLabel)
	defer release()

	if err := t.query(ctx, f, false); err != nil {
		t.logger.Errorw("Error filtering complaints", "filter", f, "error", err)
		t.toaster.Show("Error filtering complaints", view.LevelError)
		return err
	}
	return nil
}

func (t *ComplaintTable) query(ctx context.Context, f api.Filter, withOptions bool) error {
	token := t.issue()

	list, err := t.client.Complaints(ctx, f)

	t.mu.Lock()
	defer t.mu.Unlock()
	// A newer query owns the table; stale outcomes are dropped, failures included
	if token < t.issued {
		t.logger.Debugw("dropping stale complaint list", "token", token, "latest", t.issued, "error", err)
		return nil
	}
	if err != nil {
		return err
	}
	t.renderLocked(list)
	if withOptions {
		t.options = departmentOptions(list)
	}
	return nil
}

func (t *ComplaintTable) issue() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.issued++
	return t.issued
}

// departmentOptions lists distinct non-empty departments in first-seen order.
func departmentOptions(list []api.Complaint) []Option {
	opts := []Option{{Value: "", Label: allDepartmentsLabel}}
	seen := make(map[string]bool)
	for _, c := range list {
		if c.Department == "" || seen[c.Department] {
			continue
		}
		seen[c.Department] = true
		opts = append(opts, Option{Value: c.Department, Label: c.Department})
	}
	return opts
}

// StatusOptions are the entries of the status filter.
func StatusOptions() []Option {
	opts := []Option{{Value: "", Label: "All Statuses"}}
	for _, s := range api.Statuses {
		opts = append(opts, Option{Value: s, Label: s})
	}
	return opts
}

func (t *ComplaintTable) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Row(nil), t.rows...)
}

// PlaceholderVisible reports whether the "no complaints" placeholder shows.
func (t *ComplaintTable) PlaceholderVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.placeholder
}

func (t *ComplaintTable) DepartmentOptions() []Option {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Option(nil), t.options...)
}

// SearchState reports the search control's disabled flag and label.
func (t *ComplaintTable) SearchState() (bool, string) {
	return t.search.State()
}
