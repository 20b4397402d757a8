package admin

import (
	"context"
	"fmt"
	"sync"

	"grievedesk/internal/api"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

// Section is a sidebar entry of the dashboard.
type Section string

const (
	SectionComplaints  Section = "complaints"
	SectionDepartments Section = "departments"
	SectionReports     Section = "reports"
)

// Dashboard groups the dashboard sections and the detail modal.
type Dashboard struct {
	Complaints  *ComplaintTable
	Departments *DepartmentsView
	Reports     *ReportsView
	Detail      *DetailModal

	toaster *view.Toaster
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	section Section
	resizes int
}

// NewDashboard wires the dashboard controllers to client.
func NewDashboard(client *api.Client, opts Options) *Dashboard {
	opts = opts.withDefaults()
	d := &Dashboard{
		Complaints:  newComplaintTable(client, opts),
		Departments: newDepartmentsView(client, opts),
		Reports:     newReportsView(client, opts),
		toaster:     opts.Toaster,
		logger:      opts.Logger,
		section:     SectionComplaints,
	}
	d.Detail = newDetailModal(client, opts, d.afterStatusUpdate)
	return d
}

// Load runs the initial loads one after another: complaints, departments,
// then reports. The first failure stops the sequence with a single toast;
// stages that finished keep their data.
func (d *Dashboard) Load(ctx context.Context) error {
	stages := []struct {
		name string
		load func(context.Context) error
	}{
		{"complaints", d.Complaints.Load},
		{"departments", d.Departments.Load},
		{"reports", d.Reports.Load},
	}

	for _, stage := range stages {
		if err := stage.load(ctx); err != nil {
			d.logger.Errorw("Error loading dashboard data", "stage", stage.name, "error", err)
			d.toaster.Show("Error loading dashboard data", view.LevelError)
			return fmt.Errorf("load %s: %w", stage.name, err)
		}
	}
	return nil
}

// Activate shows exactly one section and reloads its data.
func (d *Dashboard) Activate(ctx context.Context, s Section) error {
	switch s {
	case SectionComplaints, SectionDepartments, SectionReports:
	default:
		return fmt.Errorf("unknown section %q", s)
	}

	d.show(s)

	switch s {
	case SectionComplaints:
		if err := d.Complaints.Load(ctx); err != nil {
			d.logger.Errorw("Error loading complaints", "error", err)
			d.toaster.Show("Error loading complaints", view.LevelError)
			return err
		}
	case SectionDepartments:
		return d.Departments.Load(ctx)
	case SectionReports:
		if err := d.Reports.Load(ctx); err != nil {
			d.toaster.Show("Error loading reports", view.LevelError)
			return err
		}
		// The charts were drawn while hidden; redraw at the visible size
		d.mu.Lock()
		d.resizes++
		d.mu.Unlock()
		if err := d.Reports.Charts().Resize(0, 0); err != nil {
			d.logger.Warnw("Chart resize failed", "error", err)
		}
	}
	return nil
}

// show switches the visible section without reloading it.
func (d *Dashboard) show(s Section) {
	d.mu.Lock()
	d.section = s
	d.mu.Unlock()
}

// Section is the visible section.
func (d *Dashboard) Section() Section {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.section
}

// Resizes counts the chart redraws requested by showing the reports section.
func (d *Dashboard) Resizes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resizes
}

// afterStatusUpdate refreshes what a status change affects.
func (d *Dashboard) afterStatusUpdate(ctx context.Context) {
	if err := d.Complaints.Load(ctx); err != nil {
		d.logger.Errorw("Error loading complaints", "error", err)
		d.toaster.Show("Error loading complaints", view.LevelError)
	}
	if d.Section() == SectionReports {
		if err := d.Reports.Load(ctx); err != nil {
			d.toaster.Show("Error loading reports", view.LevelError)
		}
	}
}
