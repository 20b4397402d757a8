package intake

import (
	"context"
	"strings"
	"sync"

	"grievedesk/internal/api"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

const (
	trackDateLayout  = "Jan 2, 2006, 03:04 PM"
	notAvailable     = "N/A"
	ticketRequired   = "Please enter a ticket number"
	ticketNotFound   = "Ticket not found"
	trackErrorReport = "An error occurred while tracking your complaint"
)

// Details is the read-only view of a tracked complaint.
type Details struct {
	Ticket      string
	Department  string
	Description string
	Address     string
	Status      string
	StatusClass string
	Created     string
	Updated     string
}

// TrackView is what the tracking tab shows.
type TrackView struct {
	Details        Details
	DetailsVisible bool
	ErrorMessage   string
	ErrorVisible   bool
}

// Tracker looks up complaints by ticket number.
type Tracker struct {
	client  *api.Client
	alerter Alerter
	logger  *zap.SugaredLogger
	button  *view.Busy

	mu   sync.Mutex
	view TrackView
}

func NewTracker(client *api.Client, opts Options) *Tracker {
	opts = opts.withDefaults()
	return &Tracker{
		client:  client,
		alerter: opts.Alerter,
		logger:  opts.Logger,
		button:  view.NewBusy("Track"),
	}
}

// Track fetches ticket and shows either its details or an error panel.
func (t *Tracker) Track(ctx context.Context, ticket string) error {
	ticket = strings.TrimSpace(ticket)
	if ticket == "" {
		t.alerter.Alert(ticketRequired)
		return apperrors.NewValidationError("ticket_number")
	}

	release, ok := t.button.Acquire("Tracking...")
	if !ok {
		return ErrBusy
	}
	defer release()

	c, err := t.client.TrackComplaint(ctx, ticket)
	if err != nil {
		message := trackErrorReport
		if serverErr, isServer := serverError(err); isServer {
			message = ticketNotFound
			if serverErr.Message != "" {
				message = serverErr.Message
			}
		} else {
			t.logger.Errorw("Error tracking complaint", "ticket", ticket, "error", err)
		}
		t.setView(TrackView{ErrorMessage: message, ErrorVisible: true})
		return err
	}

	t.setView(TrackView{Details: detailsOf(c), DetailsVisible: true})
	return nil
}

func detailsOf(c *api.Complaint) Details {
	return Details{
		Ticket:      orNA(c.TicketNumber),
		Department:  orNA(c.Department),
		Description: orNA(c.Description),
		Address:     orNA(c.Address),
		Status:      orNA(c.Status),
		StatusClass: trackStatusClass(c.Status),
		Created:     trackDate(c.CreatedAt),
		Updated:     trackDate(c.UpdatedAt),
	}
}

// trackStatusClass drops the first space of the status, so "In Progress"
// becomes "InProgress".
func trackStatusClass(status string) string {
	return "detail-value status " + strings.Replace(status, " ", "", 1)
}

func trackDate(ts api.Timestamp) string {
	if ts.IsZero() {
		return notAvailable
	}
	return ts.Local().Format(trackDateLayout)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func (t *Tracker) setView(v TrackView) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view = v
}

func (t *Tracker) View() TrackView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.view
}

// ButtonState reports the track button's disabled flag and label.
func (t *Tracker) ButtonState() (bool, string) {
	return t.button.State()
}
