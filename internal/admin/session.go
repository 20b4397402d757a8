package admin

import (
	"context"
	"strings"
	"sync"
	"time"

	"grievedesk/internal/api"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

// View is the top-level screen. Exactly one is visible at a time.
type View string

const (
	ViewLogin     View = "login"
	ViewDashboard View = "dashboard"
)

const noDepartment = "No Department"

// Identity is the logged-in admin shown in the header.
type Identity struct {
	Username   string
	Department string
}

// LoginError is the inline message under the login form.
type LoginError struct {
	Message string
	Visible bool
	Shake   bool
}

// SessionController switches between the login view and the dashboard.
type SessionController struct {
	client    *api.Client
	dashboard *Dashboard
	clock     view.Clock
	fade      time.Duration
	logger    *zap.SugaredLogger

	mu         sync.Mutex
	view       View
	identity   Identity
	loginErr   LoginError
	shakeTimer view.Timer
}

// NewSessionController starts on the login view until Check says otherwise.
func NewSessionController(client *api.Client, dashboard *Dashboard, opts Options) *SessionController {
	opts = opts.withDefaults()
	return &SessionController{
		client:    client,
		dashboard: dashboard,
		clock:     opts.Clock,
		fade:      opts.LoginFade,
		logger:    opts.Logger,
		view:      ViewLogin,
	}
}

// Check asks the portal for an existing session and shows the matching view.
// With a session the dashboard is loaded and the complaints section opened.
func (s *SessionController) Check(ctx context.Context) View {
	sess, err := s.client.Session(ctx)
	if err != nil {
		s.logger.Errorw("Error validating session", "error", err)
		s.setView(ViewLogin)
		return ViewLogin
	}
	if !sess.Authenticated {
		s.setView(ViewLogin)
		return ViewLogin
	}

	s.mu.Lock()
	s.identity = identityOf(sess.AdminUsername, sess.DepartmentName)
	s.view = ViewDashboard
	s.mu.Unlock()

	// Load reports its own failure through a toast. It has just fetched the
	// complaints, so the default section opens without another request.
	_ = s.dashboard.Load(ctx)
	s.dashboard.show(SectionComplaints)
	return ViewDashboard
}

// Login validates the form, authenticates and, after the fade, opens the
// dashboard.
func (s *SessionController) Login(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)

	if username == "" || password == "" {
		s.showError("Please enter both username and password")
		return apperrors.NewValidationError(missing(username, password)...)
	}

	res, err := s.client.Login(ctx, username, password)
	if err != nil {
		if apperrors.IsFetch(err) {
			s.logger.Errorw("Login error", "error", err)
			s.showError("Connection error. Please try again.")
			return err
		}
		message := "Login failed"
		if msg, ok := serverMessage(err); ok && msg != "" {
			message = msg
		}
		s.showError(message)
		return err
	}

	s.mu.Lock()
	s.identity = identityOf(res.Username, res.DepartmentName)
	s.loginErr = LoginError{}
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clock.After(s.fade):
	}

	s.setView(ViewDashboard)
	_ = s.dashboard.Load(ctx)
	return nil
}

// Logout ends the session and always returns to the login view.
func (s *SessionController) Logout(ctx context.Context) {
	if err := s.client.Logout(ctx); err != nil {
		s.logger.Errorw("Error logging out", "error", err)
	}

	s.mu.Lock()
	s.view = ViewLogin
	s.identity = Identity{}
	s.mu.Unlock()
}

func (s *SessionController) showError(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loginErr = LoginError{Message: message, Visible: true, Shake: true}
	if s.shakeTimer != nil {
		s.shakeTimer.Stop()
	}
	s.shakeTimer = s.clock.AfterFunc(shakeDuration, func() {
		s.mu.Lock()
		s.loginErr.Shake = false
		s.mu.Unlock()
	})
}

func (s *SessionController) setView(v View) {
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
}

func (s *SessionController) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *SessionController) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *SessionController) LoginError() LoginError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginErr
}

func identityOf(username, department string) Identity {
	if department == "" {
		department = noDepartment
	}
	return Identity{Username: username, Department: department}
}

func missing(username, password string) []string {
	var fields []string
	if username == "" {
		fields = append(fields, "username")
	}
	if password == "" {
		fields = append(fields, "password")
	}
	return fields
}
