// Package intake implements the citizen-facing controllers: the
// conversational assistant, voice input, complaint submission and ticket
// tracking.
//
// A Desk wires them together the way the public page does: a complaint
// reply from the assistant opens the submission form, and starting a new
// complaint after a submission hands control back to the conversation.
package intake

import (
	"errors"
	"time"

	"grievedesk/internal/api"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/logging"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

const defaultRevealDelay = 800 * time.Millisecond

// ErrBusy is returned when the control's previous request is still running.
var ErrBusy = errors.New("request already in flight")

// Alerter shows a blocking message the user must acknowledge.
type Alerter interface {
	Alert(message string)
}

// AlerterFunc adapts a function to Alerter.
type AlerterFunc func(message string)

func (f AlerterFunc) Alert(message string) { f(message) }

// Options carries the shared collaborators of the intake controllers.
type Options struct {
	Clock           view.Clock
	Toaster         *view.Toaster
	Logger          *zap.SugaredLogger
	Alerter         Alerter
	Recognizer      Recognizer
	FormRevealDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = view.RealClock{}
	}
	if o.Toaster == nil {
		o.Toaster = view.NewToaster(o.Clock, 3*time.Second, view.ReplaceExisting())
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Alerter == nil {
		o.Alerter = AlerterFunc(func(string) {})
	}
	if o.FormRevealDelay == 0 {
		o.FormRevealDelay = defaultRevealDelay
	}
	return o
}

// Desk is the public page: chat, voice, form and tracker.
type Desk struct {
	Chat    *Conversation
	Voice   *VoiceControl
	Form    *Form
	Tracker *Tracker
}

// NewDesk builds the controllers and links the conversation with the form.
func NewDesk(client *api.Client, opts Options) *Desk {
	opts = opts.withDefaults()

	chat := NewConversation(client, opts)
	form := NewForm(client, opts)
	chat.form = form
	form.chat = chat

	return &Desk{
		Chat:    chat,
		Voice:   NewVoiceControl(opts.Recognizer, chat, opts),
		Form:    form,
		Tracker: NewTracker(client, opts),
	}
}

// serverError returns the portal failure in err's chain. Anything else is a
// transport failure as far as the intake controllers are concerned.
func serverError(err error) (*apperrors.ServerError, bool) {
	return apperrors.AsServer(err)
}
