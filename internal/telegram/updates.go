package telegram

import (
	"context"
	"fmt"
	"html"
	"time"

	"grievedesk/internal/api"
	"grievedesk/internal/storage"

	"github.com/cenkalti/backoff/v5"
)

const maxPollTries = 5

// Portal is the part of the portal API that button clicks need.
type Portal interface {
	Complaint(ctx context.Context, id int) (*api.Complaint, error)
	UpdateStatus(ctx context.Context, id int, status string) (string, error)
}

// getUpdates fetches new updates using long polling.
func (c *Client) getUpdates(ctx context.Context, offset int) ([]Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         pollTimeout,
		"allowed_updates": []string{"callback_query"},
	}
	var updates []Update
	if err := c.doRequest(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// HandleUpdates long-polls for button clicks until ctx is cancelled.
//
// Update processing loop:
//  1. Long poll for updates, retrying failures with exponential backoff
//  2. Apply each button click through portal
//  3. Advance the offset to acknowledge processed updates
func (c *Client) HandleUpdates(ctx context.Context, portal Portal, store storage.Store) {
	if c == nil {
		return
	}
	if c.debug {
		c.logger.Info("🐛 Debug mode: Telegram callback handler not started")
		return
	}

	c.logger.Info("✓ Starting Telegram callback handler...")
	offset := 0

	for {
		updates, err := backoff.Retry(ctx, func() ([]Update, error) {
			return c.getUpdates(ctx, offset)
		}, backoff.WithBackOff(c.pollBackOff()), backoff.WithMaxTries(maxPollTries))

		if ctx.Err() != nil {
			c.logger.Info("🛑 Telegram callback handler stopped")
			return
		}
		if err != nil {
			c.logger.Warnw("⚠️  Error getting Telegram updates", "error", err)
			select {
			case <-ctx.Done():
				c.logger.Info("🛑 Telegram callback handler stopped")
				return
			case <-time.After(c.pollPause):
			}
			continue
		}

		for _, update := range updates {
			if update.CallbackQuery != nil {
				c.handleCallbackQuery(ctx, update.CallbackQuery, portal, store)
			}
			offset = update.UpdateID + 1
		}
	}
}

func (c *Client) pollBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollRetry
	return b
}

// handleCallbackQuery applies a status button.
//
// Flow:
//  1. Parse the button data into a status and ticket
//  2. Look the ticket up in the store for its complaint id
//  3. Update the status on the portal
//  4. Edit the notification; a resolved ticket is removed from the store
func (c *Client) handleCallbackQuery(ctx context.Context, query *CallbackQuery, portal Portal, store storage.Store) {
	c.logger.Infow("📞 Received callback query", "data", query.Data, "from", query.From.FirstName)

	status, ticket, ok := parseCallback(query.Data)
	if !ok {
		c.logger.Warnw("⚠️  Invalid callback data format", "data", query.Data)
		c.answerCallbackQuery(ctx, query.ID, "Invalid action")
		return
	}

	rec, found, err := store.Get(ctx, ticket)
	if err != nil {
		c.logger.Errorw("Store lookup failed", "ticket", ticket, "error", err)
		c.answerCallbackQuery(ctx, query.ID, "Error: storage unavailable")
		return
	}
	if !found {
		c.answerCallbackQuery(ctx, query.ID, "Complaint was already resolved")
		return
	}

	message, err := portal.UpdateStatus(ctx, rec.ComplaintID, status)
	if err != nil {
		c.logger.Warnw("⚠️  Failed to update complaint status", "ticket", ticket, "status", status, "error", err)
		c.answerCallbackQuery(ctx, query.ID, "Failed to update status")
		c.sendText(ctx, fmt.Sprintf("❌ Failed to mark complaint <b>%s</b> as %s: %s",
			html.EscapeString(ticket), status, html.EscapeString(err.Error())))
		return
	}
	c.logger.Infow("✅ Complaint status updated", "ticket", ticket, "status", status, "by", query.From.FirstName)

	complaint, err := portal.Complaint(ctx, rec.ComplaintID)
	if err != nil {
		c.logger.Warnw("⚠️  Could not reload complaint after update", "ticket", ticket, "error", err)
		complaint = &api.Complaint{TicketNumber: ticket, Status: status}
	}

	if status == api.StatusResolved {
		if err := c.EditMessageText(ctx, rec.MessageID, ResolvedText(ticket, complaint.UserName, time.Now()), nil); err != nil {
			c.logger.Warnw("⚠️  Failed to edit message", "ticket", ticket, "error", err)
		}
		if _, err := store.RemoveIfExists(ctx, ticket); err != nil {
			c.logger.Warnw("⚠️  Failed to remove from storage", "ticket", ticket, "error", err)
		}
	} else {
		complaint.Status = status
		if err := c.EditMessageText(ctx, rec.MessageID, ComplaintText(*complaint), StatusKeyboard(ticket, status)); err != nil {
			c.logger.Warnw("⚠️  Failed to edit message", "ticket", ticket, "error", err)
		}
		rec.Status = status
		if err := store.SaveMultiple(ctx, []storage.Record{rec}); err != nil {
			c.logger.Warnw("⚠️  Failed to save status", "ticket", ticket, "error", err)
		}
	}

	c.answerCallbackQuery(ctx, query.ID, message)
}
