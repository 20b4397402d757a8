package admin

import (
	"context"
	"sync"

	"grievedesk/internal/api"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

// Display slots of the detail modal.
const (
	SlotTicket      = "modal-ticket"
	SlotStatus      = "modal-status"
	SlotUser        = "modal-user"
	SlotEmail       = "modal-email"
	SlotDepartment  = "modal-department"
	SlotDate        = "modal-date"
	SlotDescription = "modal-description"
	SlotLocation    = "modal-location-text"
	SlotImage       = "modal-image"
)

// DetailSlots lists the text slots in display order.
var DetailSlots = []string{
	SlotTicket, SlotStatus, SlotUser, SlotEmail,
	SlotDepartment, SlotDate, SlotDescription, SlotLocation,
}

const noAddress = "No address provided"

// DetailModal shows one complaint and lets the admin change its status.
type DetailModal struct {
	client  *api.Client
	toaster *view.Toaster
	logger  *zap.SugaredLogger
	slots   view.Slots
	updated func(ctx context.Context)

	mu           sync.Mutex
	open         bool
	complaintID  int
	selected     string
	fields       map[string]string
	imageVisible bool
	imageURL     string
	fullscreen   bool
}

func newDetailModal(client *api.Client, opts Options, updated func(ctx context.Context)) *DetailModal {
	return &DetailModal{
		client:  client,
		toaster: opts.Toaster,
		logger:  opts.Logger,
		slots:   opts.Slots,
		updated: updated,
		fields:  make(map[string]string),
	}
}

// Open fetches complaint id and shows it.
func (m *DetailModal) Open(ctx context.Context, id int) error {
	c, err := m.client.Complaint(ctx, id)
	if err != nil {
		m.logger.Errorw("Error loading complaint details", "complaint_id", id, "error", err)
		m.toaster.Show("Error loading complaint details", view.LevelError)
		return err
	}

	location := c.Address
	if location == "" {
		location = noAddress
	}
	values := map[string]string{
		SlotTicket:      c.TicketNumber,
		SlotStatus:      c.Status,
		SlotUser:        c.UserName,
		SlotEmail:       c.UserEmail,
		SlotDepartment:  c.Department,
		SlotDate:        formatDate(c.CreatedAt),
		SlotDescription: c.Description,
		SlotLocation:    location,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.fields = make(map[string]string, len(values))
	for _, slot := range DetailSlots {
		if !m.slots.Has(slot) {
			m.logger.Warnw("Element not found", "slot", slot)
			continue
		}
		m.fields[slot] = values[slot]
	}

	m.imageVisible = false
	m.imageURL = ""
	if m.slots.Has(SlotImage) && c.HasImage() {
		m.imageVisible = true
		m.imageURL = m.client.ImageURL(c.TicketNumber)
	}
	m.fullscreen = false

	m.complaintID = c.ID
	m.selected = c.Status
	m.open = true
	return nil
}

// UpdateStatus sends status for the open complaint.
func (m *DetailModal) UpdateStatus(ctx context.Context, status string) error {
	m.mu.Lock()
	open, id := m.open, m.complaintID
	if api.ValidStatus(status) {
		m.selected = status
	}
	m.mu.Unlock()

	if !open || id == 0 {
		m.toaster.Show("No complaint selected", view.LevelError)
		return apperrors.NewValidationError("complaint_id")
	}
	if !api.ValidStatus(status) {
		m.toaster.Show(apperrors.FriendlyMessage(apperrors.CodeInvalidStatus, "", "Failed to update status"), view.LevelError)
		return apperrors.NewValidationError("status")
	}

	if _, err := m.client.UpdateStatus(ctx, id, status); err != nil {
		if msg, ok := serverMessage(err); ok {
			if msg == "" {
				msg = "Failed to update status"
			}
			m.toaster.Show(msg, view.LevelError)
			return err
		}
		m.logger.Errorw("Error updating status", "complaint_id", id, "error", err)
		m.toaster.Show("Error updating status", view.LevelError)
		return err
	}

	m.toaster.Show("Status updated successfully", view.LevelSuccess)
	m.Close()
	if m.updated != nil {
		m.updated(ctx)
	}
	return nil
}

// Close hides the modal. The last complaint stays in the view-model.
func (m *DetailModal) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.fullscreen = false
}

// ShowFullscreen enlarges the complaint photo when there is one.
func (m *DetailModal) ShowFullscreen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open || !m.imageVisible {
		return false
	}
	m.fullscreen = true
	return true
}

func (m *DetailModal) CloseFullscreen() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fullscreen = false
}

func (m *DetailModal) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *DetailModal) ComplaintID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.complaintID
}

// SelectedStatus is the value of the status picker.
func (m *DetailModal) SelectedStatus() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Field returns the text shown in slot, and whether the slot was filled.
func (m *DetailModal) Field(slot string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.fields[slot]
	return v, ok
}

// Image reports whether the photo is visible and its URL.
func (m *DetailModal) Image() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageVisible, m.imageURL
}

func (m *DetailModal) Fullscreen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fullscreen
}
