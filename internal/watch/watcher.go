package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grievedesk/internal/api"
	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/logging"
	"grievedesk/internal/storage"
	"grievedesk/internal/telegram"

	"go.uber.org/zap"
)

// Portal is the part of the admin API the watcher uses.
type Portal interface {
	Complaints(ctx context.Context, f api.Filter) ([]api.Complaint, error)
	Complaint(ctx context.Context, id int) (*api.Complaint, error)
	Login(ctx context.Context, username, password string) (*api.LoginResult, error)
}

// Notifier sends and edits complaint notifications. *telegram.Client
// implements it, including as a nil pointer when Telegram is disabled.
type Notifier interface {
	SendComplaintMessage(ctx context.Context, complaint api.Complaint) (string, error)
	EditMessageText(ctx context.Context, messageID, newText string, keyboard *telegram.InlineKeyboardMarkup) error
	SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error
}

// StatusRecorder receives the outcome of every poll.
type StatusRecorder interface {
	UpdatePollStatus(status string, announced int)
}

var errNoCredentials = errors.New("no admin credentials configured")

// Options configures a Watcher.
type Options struct {
	Username       string // used to log in again after the session expires
	Password       string
	WorkerPoolSize int
	Interval       time.Duration
	Monitor        StatusRecorder
	Logger         *zap.SugaredLogger
	Now            func() time.Time
}

// Watcher announces new complaints and keeps their notifications in step
// with the portal.
//
// Flow of one poll:
//  1. List every complaint visible to the admin session
//  2. Hand tickets the store has never seen to the worker pool
//  3. Workers fetch each detail and send the Telegram notification
//  4. Save the batch of announced tickets in one write
//  5. Edit notifications of stored tickets whose status changed, and drop
//     resolved ones from the store
//  6. Report the outcome to the health monitor
type Watcher struct {
	portal   Portal
	notifier Notifier
	store    storage.Store
	opts     Options
	logger   *zap.SugaredLogger
}

// New creates a watcher.
func New(portal Portal, notifier Notifier, store storage.Store, opts Options) *Watcher {
	if opts.WorkerPoolSize < 1 {
		opts.WorkerPoolSize = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Watcher{
		portal:   portal,
		notifier: notifier,
		store:    store,
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
	}
}

// Run polls once immediately and then every Interval until ctx is done.
// Poll failures are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Infow("👀 Watching portal for complaints", "interval", w.opts.Interval, "workers", w.opts.WorkerPoolSize)

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil && ctx.Err() == nil {
			w.logger.Errorw("⚠️  Poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("🛑 Watcher stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one poll. When the portal reports an expired session the
// watcher logs in again once and retries; if the login fails a critical
// alert goes to Telegram.
//
// Recovery flow:
//
//	fetch fails
//	├─ not a session problem → return error
//	└─ session expired
//	    ├─ re-login succeeds → retry once
//	    └─ re-login fails → Telegram alert, return error
func (w *Watcher) Poll(ctx context.Context) (Summary, error) {
	summary, err := w.pollOnce(ctx)
	if err == nil {
		w.record(summary, nil)
		return summary, nil
	}

	if !apperrors.IsNotAuthenticated(err) {
		w.record(summary, err)
		return summary, err
	}

	w.logger.Warnw("🔄 Session expired, attempting re-login", "error", err)
	loginErr := w.relogin(ctx)
	if loginErr == nil {
		w.logger.Info("✓ Re-login successful, retrying poll")
		summary, err = w.pollOnce(ctx)
		w.record(summary, err)
		return summary, err
	}

	w.logger.Errorw("❌ Re-login failed", "error", loginErr)
	alertErr := w.notifier.SendCriticalAlert(ctx,
		"Portal Login Failure",
		fmt.Sprintf("Unable to log in after the admin session expired. Last error: %v", loginErr),
		1,
	)
	if alertErr != nil {
		w.logger.Warnw("⚠️  Failed to send Telegram alert", "error", alertErr)
	}

	err = fmt.Errorf("re-login failed: %w", loginErr)
	w.record(summary, err)
	return summary, err
}

func (w *Watcher) relogin(ctx context.Context) error {
	if w.opts.Username == "" || w.opts.Password == "" {
		return errNoCredentials
	}
	_, err := w.portal.Login(ctx, w.opts.Username, w.opts.Password)
	return err
}

func (w *Watcher) record(summary Summary, err error) {
	if w.opts.Monitor == nil {
		return
	}
	if err != nil {
		w.opts.Monitor.UpdatePollStatus("error: "+err.Error(), summary.Announced)
		return
	}
	w.opts.Monitor.UpdatePollStatus("success", summary.Announced)
}

func (w *Watcher) pollOnce(ctx context.Context) (Summary, error) {
	var summary Summary

	complaints, err := w.portal.Complaints(ctx, api.Filter{})
	if err != nil {
		return summary, err
	}
	summary.Listed = len(complaints)
	w.logger.Infow("📄 Listed complaints", "count", len(complaints))

	var jobs []Job
	type change struct {
		record    storage.Record
		complaint api.Complaint
	}
	var changes []change

	seen := make(map[string]bool, len(complaints))
	for _, c := range complaints {
		if c.TicketNumber == "" || seen[c.TicketNumber] {
			continue
		}
		seen[c.TicketNumber] = true

		rec, ok, err := w.store.Get(ctx, c.TicketNumber)
		if err != nil {
			return summary, fmt.Errorf("failed to read ticket store: %w", err)
		}
		switch {
		case !ok && c.Status != api.StatusResolved:
			w.logger.Infow("🆕 New complaint", "ticket", c.TicketNumber)
			jobs = append(jobs, Job{Ticket: c.TicketNumber, ComplaintID: c.ID})
		case ok && rec.Status != c.Status:
			changes = append(changes, change{record: rec, complaint: c})
		}
	}

	if len(jobs) > 0 {
		announced, failed, err := w.announceConcurrently(ctx, jobs)
		summary.Announced, summary.Failed = announced, failed
		if err != nil {
			return summary, err
		}
	}

	var updated []storage.Record
	for _, ch := range changes {
		if ch.complaint.Status == api.StatusResolved {
			if w.markResolved(ctx, ch.record, ch.complaint) {
				summary.Resolved++
			}
			continue
		}
		if rec, ok := w.markChanged(ctx, ch.record, ch.complaint); ok {
			updated = append(updated, rec)
		}
	}
	if len(updated) > 0 {
		if err := w.store.SaveMultiple(ctx, updated); err != nil {
			return summary, fmt.Errorf("failed to save status changes: %w", err)
		}
		summary.Updated = len(updated)
	}

	w.logger.Infow("✅ Poll complete",
		"listed", summary.Listed,
		"announced", summary.Announced,
		"failed", summary.Failed,
		"updated", summary.Updated,
		"resolved", summary.Resolved)
	return summary, nil
}

// announceConcurrently runs jobs through a worker pool and saves every
// successful result in one batch.
func (w *Watcher) announceConcurrently(ctx context.Context, jobs []Job) (announced, failed int, err error) {
	pool := NewWorkerPool(ctx, w.opts.WorkerPoolSize, w.announce, w.logger)

	go func() {
		for _, job := range jobs {
			pool.Submit(job)
		}
		pool.Close()
	}()

	var records []storage.Record
	for result := range pool.Results() {
		if result.Err != nil {
			failed++
			continue
		}
		records = append(records, storage.Record{
			Ticket:      result.Ticket,
			ComplaintID: result.ComplaintID,
			Status:      result.Status,
			MessageID:   result.MessageID,
		})
	}

	if len(records) == 0 {
		return 0, failed, nil
	}
	if err := w.store.SaveMultiple(ctx, records); err != nil {
		return 0, failed, fmt.Errorf("failed to save announced tickets: %w", err)
	}
	w.logger.Infow("✓ Saved new complaints", "count", len(records))
	return len(records), failed, nil
}

// announce is the worker ProcessFunc: fetch the detail, then notify.
func (w *Watcher) announce(ctx context.Context, job Job) Result {
	result := Result{Ticket: job.Ticket, ComplaintID: job.ComplaintID}

	complaint, err := w.portal.Complaint(ctx, job.ComplaintID)
	if err != nil {
		result.Err = fmt.Errorf("failed to fetch details: %w", err)
		return result
	}
	result.Status = complaint.Status

	messageID, err := w.notifier.SendComplaintMessage(ctx, *complaint)
	if err != nil {
		result.Err = fmt.Errorf("failed to send Telegram notification: %w", err)
		return result
	}
	result.MessageID = messageID
	return result
}

// markResolved rewrites the notification as resolved and forgets the
// ticket. A failed edit keeps the record so the next poll tries again.
func (w *Watcher) markResolved(ctx context.Context, rec storage.Record, c api.Complaint) bool {
	text := telegram.ResolvedText(c.TicketNumber, c.UserName, w.opts.Now())
	if err := w.notifier.EditMessageText(ctx, rec.MessageID, text, nil); err != nil {
		w.logger.Warnw("⚠️  Failed to mark notification resolved", "ticket", rec.Ticket, "error", err)
		return false
	}
	if _, err := w.store.RemoveIfExists(ctx, rec.Ticket); err != nil {
		w.logger.Warnw("⚠️  Failed to remove resolved ticket", "ticket", rec.Ticket, "error", err)
		return false
	}
	w.logger.Infow("✅ Complaint resolved", "ticket", rec.Ticket)
	return true
}

// markChanged refreshes the notification for a new non-final status.
func (w *Watcher) markChanged(ctx context.Context, rec storage.Record, c api.Complaint) (storage.Record, bool) {
	text := telegram.ComplaintText(c)
	keyboard := telegram.StatusKeyboard(c.TicketNumber, c.Status)
	if err := w.notifier.EditMessageText(ctx, rec.MessageID, text, keyboard); err != nil {
		w.logger.Warnw("⚠️  Failed to update notification", "ticket", rec.Ticket, "error", err)
		return rec, false
	}
	w.logger.Infow("🔖 Complaint status changed", "ticket", rec.Ticket, "from", rec.Status, "to", c.Status)
	rec.Status = c.Status
	return rec, true
}
