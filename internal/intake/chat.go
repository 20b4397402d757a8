package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"grievedesk/internal/api"
	"grievedesk/internal/view"

	"go.uber.org/zap"
)

const (
	greeting = "Hello! I'm Grieve Buddy, here to help you submit your grievance. " +
		"Please tell me about your issue, and I'll make sure it gets to the right department."
	typingIndicator = "Typing"
	rephraseReply   = "I apologize, but I couldn't process your request. Could you please rephrase that?"
	connectionReply = "I apologize for the inconvenience. There seems to be a connection issue. Please try again."
	formTarget      = "complaint-form"
)

// State is the conversation state.
type State int

const (
	AwaitingInput State = iota
	Processing
	ComplaintDraftOpen
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "AwaitingInput"
	case Processing:
		return "Processing"
	case ComplaintDraftOpen:
		return "ComplaintDraftOpen"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event drives a state change.
type Event int

const (
	EventSubmit Event = iota
	EventReplyCasual
	EventReplyComplaint
	EventFailure
	EventDraftRevealed
	EventNewMessage
)

// ErrIllegalTransition is returned for an event the current state does not accept.
var ErrIllegalTransition = errors.New("illegal conversation transition")

// ErrNoDraft is returned by WaitDraft when no form reveal is pending.
var ErrNoDraft = errors.New("no complaint draft pending")

// transition is the conversation state table.
//
// A complaint reply returns to AwaitingInput; the draft opens later, on
// EventDraftRevealed. A new message from an open draft goes back to
// AwaitingInput before it is submitted.
func transition(s State, e Event) (State, error) {
	switch {
	case s == AwaitingInput && e == EventSubmit:
		return Processing, nil
	case s == Processing && (e == EventReplyCasual || e == EventReplyComplaint || e == EventFailure):
		return AwaitingInput, nil
	case s == AwaitingInput && e == EventDraftRevealed:
		return ComplaintDraftOpen, nil
	case (s == ComplaintDraftOpen || s == AwaitingInput) && e == EventNewMessage:
		return AwaitingInput, nil
	}
	return s, fmt.Errorf("%w: event %d in state %s", ErrIllegalTransition, e, s)
}

// Sender identifies who wrote a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one transcript entry.
type Message struct {
	Text   string
	Sender Sender
}

// Draft is the complaint form pre-filled from a chat message.
type Draft struct {
	Complaint  string
	Department string
}

// Conversation is the chat assistant.
type Conversation struct {
	client *api.Client
	clock  view.Clock
	delay  time.Duration
	logger *zap.SugaredLogger
	form   *Form

	mu            sync.Mutex
	state         State
	transcript    []Message
	typing        bool
	input         string
	inputDisabled bool
	inputFocused  bool
	inputSelected bool
	draft         *Draft
	scrollTarget  string
	reveal        view.Timer
	revealed      chan struct{}
}

// NewConversation opens the transcript with the assistant's greeting.
func NewConversation(client *api.Client, opts Options) *Conversation {
	opts = opts.withDefaults()
	return &Conversation{
		client:     client,
		clock:      opts.Clock,
		delay:      opts.FormRevealDelay,
		logger:     opts.Logger,
		state:      AwaitingInput,
		transcript: []Message{{Text: greeting, Sender: SenderBot}},
	}
}

// Send submits text to the assistant. Blank text is ignored.
func (c *Conversation) Send(ctx context.Context, text string) error {
	message := strings.TrimSpace(text)
	if message == "" {
		return nil
	}

	c.mu.Lock()
	if c.state == ComplaintDraftOpen {
		c.closeDraftLocked()
	}
	if c.reveal != nil {
		c.reveal.Stop()
		c.reveal = nil
		close(c.revealed)
		c.revealed = nil
	}
	next, err := transition(c.state, EventSubmit)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.state = next
	c.transcript = append(c.transcript, Message{Text: message, Sender: SenderUser})
	c.inputDisabled = true
	c.inputSelected = false
	c.typing = true
	c.input = ""
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inputDisabled = false
		c.inputFocused = true
		c.mu.Unlock()
	}()

	reply, err := c.client.Chat(ctx, message)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing = false

	if err != nil {
		if _, isServer := serverError(err); isServer {
			c.appendBotLocked(rephraseReply)
		} else {
			c.logger.Errorw("Chat request failed", "error", err)
			c.appendBotLocked(connectionReply)
		}
		c.state, _ = transition(c.state, EventFailure)
		return err
	}

	c.appendBotLocked(reply.Reply)
	if !reply.IsComplaint() {
		c.state, _ = transition(c.state, EventReplyCasual)
		return nil
	}

	c.state, _ = transition(c.state, EventReplyComplaint)
	draft := Draft{Complaint: message, Department: reply.Department}
	c.revealed = make(chan struct{})
	done := c.revealed
	c.reveal = c.clock.AfterFunc(c.delay, func() { c.openDraft(draft, done) })
	return nil
}

func (c *Conversation) openDraft(d Draft, done chan struct{}) {
	c.mu.Lock()
	if c.revealed != done {
		c.mu.Unlock()
		return
	}
	next, err := transition(c.state, EventDraftRevealed)
	if err != nil {
		c.logger.Warnw("Draft reveal skipped", "state", c.state, "error", err)
		c.mu.Unlock()
		return
	}
	c.state = next
	c.draft = &d
	c.scrollTarget = formTarget
	c.reveal = nil
	c.revealed = nil
	form := c.form
	c.mu.Unlock()

	if form != nil {
		form.open(d.Complaint)
	}
	close(done)
}

func (c *Conversation) closeDraftLocked() {
	c.state, _ = transition(c.state, EventNewMessage)
	c.draft = nil
	c.scrollTarget = ""
	if c.form != nil {
		c.form.hide()
	}
}

// resume returns to AwaitingInput after a submission and tells the user
// where the previous complaint went.
func (c *Conversation) resume(ticket, department string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, _ = transition(c.state, EventNewMessage)
	c.draft = nil
	c.scrollTarget = ""
	c.appendBotLocked(fmt.Sprintf(
		"Great! Your previous grievance (Ticket: %s) has been successfully submitted and classified under %s department. "+
			"We'll keep you updated on its progress.\n\n"+
			"How else can I assist you today? Feel free to share any other grievance you have, "+
			"and I'll help direct it to the appropriate department.",
		ticket, department))
}

func (c *Conversation) appendBotLocked(text string) {
	c.transcript = append(c.transcript, Message{Text: text, Sender: SenderBot})
}

// WaitDraft blocks until the pending form reveal happens.
func (c *Conversation) WaitDraft(ctx context.Context) (Draft, error) {
	c.mu.Lock()
	if c.draft != nil {
		d := *c.draft
		c.mu.Unlock()
		return d, nil
	}
	done := c.revealed
	c.mu.Unlock()
	if done == nil {
		return Draft{}, ErrNoDraft
	}

	select {
	case <-ctx.Done():
		return Draft{}, ctx.Err()
	case <-done:
	}
	if d, ok := c.Draft(); ok {
		return d, nil
	}
	return Draft{}, ErrNoDraft
}

// Draft returns the open draft.
func (c *Conversation) Draft() (Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.draft == nil {
		return Draft{}, false
	}
	return *c.draft, true
}

func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the messages in order. The typing indicator is
// appended while a request is in flight.
func (c *Conversation) Transcript() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Message(nil), c.transcript...)
	if c.typing {
		out = append(out, Message{Text: typingIndicator, Sender: SenderBot})
	}
	return out
}

// SetInput replaces the contents of the input field.
func (c *Conversation) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
	c.inputSelected = false
}

func (c *Conversation) setSelectedInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
	c.inputFocused = true
	c.inputSelected = true
}

func (c *Conversation) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// InputState reports whether the input is disabled, focused and selected.
func (c *Conversation) InputState() (disabled, focused, selected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inputDisabled, c.inputFocused, c.inputSelected
}

// ScrollTarget names the element scrolled into view, if any.
func (c *Conversation) ScrollTarget() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scrollTarget
}
