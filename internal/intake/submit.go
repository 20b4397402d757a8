package intake

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"grievedesk/internal/api"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/view"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	requiredFieldsToast = "Please fill in all required fields"
	submitFailedToast   = "Failed to submit complaint"
	submitErrorToast    = "An error occurred while submitting the complaint."
)

var validate = validator.New()

// Fields are the five required text inputs of the submission form.
type Fields struct {
	Name      string
	Email     string
	Phone     string
	Complaint string
	Address   string
}

func (f Fields) trimmed() Fields {
	return Fields{
		Name:      strings.TrimSpace(f.Name),
		Email:     strings.TrimSpace(f.Email),
		Phone:     strings.TrimSpace(f.Phone),
		Complaint: strings.TrimSpace(f.Complaint),
		Address:   strings.TrimSpace(f.Address),
	}
}

// missing returns the names of blank fields in form order.
func (f Fields) missing() []string {
	checks := []struct {
		name  string
		value string
	}{
		{"name", f.Name},
		{"email", f.Email},
		{"phone", f.Phone},
		{"complaint", f.Complaint},
		{"address", f.Address},
	}
	var out []string
	for _, c := range checks {
		if validate.Var(c.value, "required") != nil {
			out = append(out, c.name)
		}
	}
	return out
}

// Preview describes an attached photo.
type Preview struct {
	Path     string
	MIME     string
	Size     int64
	SizeText string
	dataURL  string
}

// Confirmation is the view shown after a successful submission.
type Confirmation struct {
	Visible    bool
	Ticket     string
	Department string
}

// Form is the structured complaint form.
type Form struct {
	client  *api.Client
	toaster *view.Toaster
	logger  *zap.SugaredLogger
	chat    *Conversation
	submit  *view.Busy

	mu           sync.Mutex
	visible      bool
	fields       Fields
	preview      *Preview
	confirmation Confirmation
}

func NewForm(client *api.Client, opts Options) *Form {
	opts = opts.withDefaults()
	return &Form{
		client:  client,
		toaster: opts.Toaster,
		logger:  opts.Logger,
		submit:  view.NewBusy("Submit Complaint"),
	}
}

// open shows the form with the complaint field pre-filled.
func (f *Form) open(complaint string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
	f.fields.Complaint = complaint
}

func (f *Form) hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
}

// Show displays the form without going through the conversation.
func (f *Form) Show() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
}

// Set replaces the text fields.
func (f *Form) Set(fields Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = fields
}

func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// AttachImage reads the photo at path and prepares its preview. Files
// that are not images are rejected before anything is sent.
func (f *Form) AttachImage(path string) (Preview, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preview{}, fmt.Errorf("read image: %w", err)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return Preview{}, fmt.Errorf("%s is %s, not an image", filepath.Base(path), mtype.String())
	}

	p := Preview{
		Path:     path,
		MIME:     mtype.String(),
		Size:     int64(len(data)),
		SizeText: humanize.Bytes(uint64(len(data))),
		dataURL:  "data:" + mtype.String() + ";base64," + base64.StdEncoding.EncodeToString(data),
	}

	f.mu.Lock()
	f.preview = &p
	f.mu.Unlock()
	f.logger.Debugw("Image attached", "path", path, "mime", p.MIME, "size", p.SizeText)
	return p, nil
}

// Preview returns the attached photo, if any.
func (f *Form) Preview() (Preview, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.preview == nil {
		return Preview{}, false
	}
	return *f.preview, true
}

// Submit validates and sends the form.
func (f *Form) Submit(ctx context.Context) (*api.SubmitResult, error) {
	f.mu.Lock()
	fields := f.fields.trimmed()
	var image string
	if f.preview != nil {
		image = f.preview.dataURL
	}
	f.mu.Unlock()

	if missing := fields.missing(); len(missing) > 0 {
		f.toaster.Show(requiredFieldsToast, view.LevelError)
		return nil, apperrors.NewValidationError(missing...)
	}

	release, ok := f.submit.Acquire("Submitting...")
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	res, err := f.client.SubmitComplaint(ctx, api.Submission{
		Name:      fields.Name,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Complaint: fields.Complaint,
		Address:   fields.Address,
		Image:     image,
	})
	if err != nil {
		f.toaster.Show(submitFailureMessage(err), view.LevelError)
		if _, isServer := serverError(err); !isServer {
			f.logger.Errorw("Error submitting complaint", "error", err)
		}
		return nil, err
	}

	f.mu.Lock()
	f.confirmation = Confirmation{Visible: true, Ticket: res.TicketNumber, Department: res.Department}
	f.visible = false
	f.clearLocked()
	f.mu.Unlock()
	return res, nil
}

// submitFailureMessage picks the toast for a failed submission.
func submitFailureMessage(err error) string {
	serverErr, ok := serverError(err)
	if !ok {
		return submitErrorToast
	}
	switch serverErr.Code {
	case apperrors.CodeGPSMissing:
		return apperrors.FriendlyMessage(serverErr.Code, serverErr.Message, submitFailedToast)
	case apperrors.CodeIrrelevantImage:
		return serverErr.Message
	}
	if serverErr.Message != "" {
		return serverErr.Message
	}
	return submitFailedToast
}

// NewComplaint hides the confirmation, clears the form and returns the
// conversation to waiting for input.
func (f *Form) NewComplaint() {
	f.mu.Lock()
	prev := f.confirmation
	f.confirmation = Confirmation{}
	f.visible = false
	f.clearLocked()
	chat := f.chat
	f.mu.Unlock()

	if chat != nil {
		chat.resume(prev.Ticket, prev.Department)
	}
}

func (f *Form) clearLocked() {
	f.fields = Fields{}
	f.preview = nil
}

func (f *Form) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

func (f *Form) Confirmation() Confirmation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmation
}

// SubmitState reports the submit button's disabled flag and label.
func (f *Form) SubmitState() (bool, string) {
	return f.submit.State()
}
