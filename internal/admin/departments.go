package admin

import (
	"context"
	"sync"

	"grievedesk/internal/api"

	"go.uber.org/zap"
)

const departmentsHeader = "Departments"

// Mode is what the departments section currently shows.
type Mode int

const (
	ModeGrid Mode = iota
	ModeDrillDown
)

// DepartmentsView is the department grid with its per-department drill-down.
type DepartmentsView struct {
	client *api.Client
	logger *zap.SugaredLogger
	table  *ComplaintTable

	mu          sync.Mutex
	cards       []api.Department
	mode        Mode
	header      string
	backVisible bool
	selected    string
}

func newDepartmentsView(client *api.Client, opts Options) *DepartmentsView {
	return &DepartmentsView{
		client: client,
		logger: opts.Logger,
		table:  newComplaintTable(client, opts),
		header: departmentsHeader,
	}
}

// Load refreshes the department cards.
func (v *DepartmentsView) Load(ctx context.Context) error {
	deps, err := v.client.Departments(ctx)
	if err != nil {
		v.logger.Errorw("Failed to load departments", "error", err)
		return err
	}

	v.mu.Lock()
	v.cards = deps
	v.mu.Unlock()
	return nil
}

// Select drills into one department. The complaint list is filtered by
// department name, matching how the portal stores it.
func (v *DepartmentsView) Select(ctx context.Context, name string) error {
	v.mu.Lock()
	v.mode = ModeDrillDown
	v.header = name + " Complaints"
	v.backVisible = true
	v.selected = name
	v.mu.Unlock()

	if err := v.table.query(ctx, api.Filter{Department: name}, false); err != nil {
		v.logger.Errorw("Failed to load department complaints", "department", name, "error", err)
		return err
	}
	return nil
}

// Back returns to the grid and reloads it.
func (v *DepartmentsView) Back(ctx context.Context) error {
	v.mu.Lock()
	v.mode = ModeGrid
	v.header = departmentsHeader
	v.backVisible = false
	v.selected = ""
	v.mu.Unlock()

	return v.Load(ctx)
}

func (v *DepartmentsView) Cards() []api.Department {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]api.Department(nil), v.cards...)
}

func (v *DepartmentsView) Mode() Mode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

func (v *DepartmentsView) Header() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.header
}

// BackVisible reports whether the back affordance is shown.
func (v *DepartmentsView) BackVisible() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.backVisible
}

// Selected is the department being drilled into, empty on the grid.
func (v *DepartmentsView) Selected() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}

// Table is the scoped complaint table shown in drill-down mode.
func (v *DepartmentsView) Table() *ComplaintTable {
	return v.table
}
