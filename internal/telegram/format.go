package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"grievedesk/internal/api"
)

// Callback actions carried in button data as "<action>:<ticket>".
const (
	actionProgress = "progress"
	actionResolve  = "resolve"
)

// ComplaintText renders the notification for complaint.
func ComplaintText(c api.Complaint) string {
	address := c.Address
	if address == "" {
		address = "No address provided"
	}
	date := ""
	if !c.CreatedAt.IsZero() {
		date = c.CreatedAt.Local().Format("2006-01-02")
	}

	return fmt.Sprintf(
		"📋 Complaint : %s\n\n"+
			"👤 %s\n"+
			"📧 %s\n"+
			"🏢 %s\n"+
			"📅 %s\n\n"+
			"💬 <b>Details:</b>\n%s\n\n"+
			"📍 %s\n"+
			"🔖 <b>%s</b>",
		html.EscapeString(c.TicketNumber),
		html.EscapeString(c.UserName),
		html.EscapeString(c.UserEmail),
		html.EscapeString(c.Department),
		date,
		html.EscapeString(c.Description),
		html.EscapeString(address),
		html.EscapeString(c.Status),
	)
}

// ResolvedText is the text a notification is edited to once resolved.
func ResolvedText(ticket, name string, at time.Time) string {
	if strings.TrimSpace(name) == "" {
		name = "Unknown"
	}
	return fmt.Sprintf(
		"✅ <b>RESOLVED</b>\n\n"+
			"Complaint #%s\n"+
			"👤 %s\n"+
			"🕐 %s",
		html.EscapeString(ticket),
		html.EscapeString(name),
		at.Format("02 Jan 2006, 03:04 PM"),
	)
}

// StatusKeyboard returns the buttons for a complaint in status. Resolved
// complaints get no buttons; in-progress ones only offer resolving.
func StatusKeyboard(ticket, status string) *InlineKeyboardMarkup {
	resolve := InlineKeyboardButton{Text: "✅ Mark Resolved", CallbackData: actionResolve + ":" + ticket}
	switch status {
	case api.StatusResolved:
		return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
	case api.StatusInProgress:
		return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{resolve}}}
	default:
		return &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
			{Text: "🔧 Mark In Progress", CallbackData: actionProgress + ":" + ticket},
			resolve,
		}}}
	}
}

// parseCallback splits button data into the target status and ticket.
func parseCallback(data string) (status, ticket string, ok bool) {
	action, ticket, found := strings.Cut(data, ":")
	if !found || ticket == "" {
		return "", "", false
	}
	switch action {
	case actionProgress:
		return api.StatusInProgress, ticket, true
	case actionResolve:
		return api.StatusResolved, ticket, true
	}
	return "", "", false
}
