// Package watch polls the portal for complaints and mirrors them to Telegram.
package watch

// Job is one newly seen complaint waiting for its notification.
//
// Fields:
//   - Ticket: Display ticket number (e.g., "TKT-1A2B3C4D")
//   - ComplaintID: Portal id used to fetch the full detail
type Job struct {
	Ticket      string
	ComplaintID int
}

// Result is the outcome of processing one Job.
//
// Fields:
//   - Ticket: Ticket that was processed
//   - ComplaintID: Portal id, copied from the job
//   - Status: Status carried by the fetched detail
//   - MessageID: Telegram message id (empty if Telegram is disabled)
//   - Err: Any error that occurred during processing
type Result struct {
	Ticket      string
	ComplaintID int
	Status      string
	MessageID   string
	Err         error
}

// Summary describes one finished poll.
type Summary struct {
	Listed    int // complaints returned by the portal
	Announced int // new tickets saved to the store
	Failed    int // new tickets whose notification failed
	Updated   int // stored tickets whose status changed
	Resolved  int // stored tickets removed because they were resolved
}
