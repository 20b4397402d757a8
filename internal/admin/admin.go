// Package admin implements the administrator dashboard controllers.
//
// Each controller owns a typed view-model guarded by its own mutex and
// talks to the portal through *api.Client. Failures never escape as
// panics: they are logged, turned into toasts and returned to the caller.
package admin

import (
	"errors"
	"time"

	"grievedesk/internal/api"
	"grievedesk/internal/chart"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/logging"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

const (
	dateLayout    = "2006-01-02"
	shakeDuration = 500 * time.Millisecond
)

// Options carries the shared collaborators of the admin controllers.
// Zero values are replaced with working defaults.
type Options struct {
	Clock      view.Clock
	Toaster    *view.Toaster
	Logger     *zap.SugaredLogger
	Charts     *chart.Set
	Slots      view.Slots // display slots of the detail modal, nil means all
	LoginFade  time.Duration
	RowStagger time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = view.RealClock{}
	}
	if o.Toaster == nil {
		o.Toaster = view.NewToaster(o.Clock, 3*time.Second)
	}
	o.Logger = logging.OrNop(o.Logger)
	if o.Charts == nil {
		o.Charts = chart.NewSet(o.Logger)
	}
	return o
}

// formatDate renders a timestamp as a local calendar date.
func formatDate(t api.Timestamp) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(dateLayout)
}

// serverMessage extracts the message the portal sent with a failure.
func serverMessage(err error) (string, bool) {
	if serverErr, ok := apperrors.AsServer(err); ok {
		return serverErr.Message, true
	}
	var notAuth *apperrors.NotAuthenticatedError
	if errors.As(err, &notAuth) {
		return notAuth.Message, true
	}
	return "", false
}
