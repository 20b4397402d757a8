package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"grievedesk/internal/browser"
	"grievedesk/internal/intake"
	"grievedesk/internal/view"

	"github.com/spf13/cobra"
)

// desk builds the public page controllers. Voice input goes through a
// local Chrome when SPEECH_ENABLED is set; the returned func releases it.
func (a *app) desk() (*intake.Desk, func(), error) {
	client, err := a.portal()
	if err != nil {
		return nil, nil, err
	}

	opts := intake.Options{
		Toaster:         a.toaster(view.ReplaceExisting()),
		Logger:          a.logger,
		FormRevealDelay: a.cfg.FormRevealDelay,
		Alerter: intake.AlerterFunc(func(message string) {
			fmt.Fprintln(os.Stderr, "⚠️ ", message)
		}),
	}

	release := func() {}
	if a.cfg.SpeechEnabled {
		holder := browser.NewContextHolder(a.logger)
		opts.Recognizer = browser.NewSpeechRecognizer(holder, a.cfg.PortalURL, a.logger)
		release = holder.Cancel
	}
	return intake.NewDesk(client, opts), release, nil
}

func chatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Talk to the grievance assistant",
		Long: `Talk to the grievance assistant.

Type a message and press enter. When the assistant recognises a complaint
it opens the complaint form and asks for your details.

  /voice  - speak instead of typing (needs SPEECH_ENABLED)
  /quit   - leave`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desk, release, err := a.desk()
			if err != nil {
				return err
			}
			defer release()
			return runChat(cmd.Context(), desk, newPrompter(os.Stdin))
		},
	}
}

// prompter reads answers line by line.
type prompter struct {
	in *bufio.Scanner
}

func newPrompter(r io.Reader) *prompter {
	return &prompter{in: bufio.NewScanner(r)}
}

// ask prints label and returns the next line. ok is false at end of input.
func (p *prompter) ask(label string) (string, bool) {
	fmt.Print(label)
	if !p.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.in.Text()), true
}

func runChat(ctx context.Context, desk *intake.Desk, p *prompter) error {
	chat := desk.Chat
	shown := printTranscript(chat, 0)

	for {
		line, ok := p.ask("> ")
		if !ok || line == "/quit" {
			return nil
		}

		if line == "/voice" {
			if err := desk.Voice.Start(ctx); err != nil {
				continue
			}
			line = chat.Input()
			fmt.Println("🎤", line)
		}

		err := chat.Send(ctx, line)
		shown = printTranscript(chat, shown)
		if err != nil {
			// The apology is already in the transcript; only a cancelled
			// session ends the chat
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}

		draft, err := chat.WaitDraft(ctx)
		if errors.Is(err, intake.ErrNoDraft) {
			continue
		}
		if err != nil {
			return err
		}

		fmt.Printf("📝 Complaint form (%s)\n", draft.Department)
		if !fillForm(desk.Form, draft.Complaint, p) {
			return nil
		}
		if _, err := desk.Form.Submit(ctx); err != nil {
			// The toast already told the user; the form keeps its values
			continue
		}
		printConfirmation(desk.Form.Confirmation())
		desk.Form.NewComplaint()
		shown = printTranscript(chat, shown)
	}
}

// fillForm asks for the remaining fields of a chat-opened form. It
// returns false when input ends.
func fillForm(form *intake.Form, complaint string, p *prompter) bool {
	fields := intake.Fields{Complaint: complaint}
	questions := []struct {
		label  string
		target *string
	}{
		{"Name: ", &fields.Name},
		{"Email: ", &fields.Email},
		{"Phone: ", &fields.Phone},
		{"Address: ", &fields.Address},
	}
	for _, q := range questions {
		answer, ok := p.ask(q.label)
		if !ok {
			return false
		}
		*q.target = answer
	}
	form.Set(fields)

	path, ok := p.ask("Photo path (optional): ")
	if !ok {
		return false
	}
	if path != "" {
		preview, err := form.AttachImage(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, "✗", err)
		} else {
			fmt.Printf("📎 %s (%s, %s)\n", preview.Path, preview.MIME, preview.SizeText)
		}
	}
	return true
}

// printTranscript prints the messages after the first shown and returns
// the new count.
func printTranscript(chat *intake.Conversation, shown int) int {
	transcript := chat.Transcript()
	for _, m := range transcript[shown:] {
		if m.Sender == intake.SenderUser {
			continue
		}
		fmt.Println("🤖", m.Text)
	}
	return len(transcript)
}

func printConfirmation(c intake.Confirmation) {
	fmt.Println("✓ Complaint submitted")
	fmt.Printf("  Ticket:     %s\n", c.Ticket)
	fmt.Printf("  Department: %s\n", c.Department)
}

func submitCmd(a *app) *cobra.Command {
	var (
		fields intake.Fields
		image  string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a complaint directly",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			desk, release, err := a.desk()
			if err != nil {
				return err
			}
			defer release()

			form := desk.Form
			form.Show()
			form.Set(fields)
			if image != "" {
				if _, err := form.AttachImage(image); err != nil {
					return err
				}
			}
			if _, err := form.Submit(cmd.Context()); err != nil {
				return err
			}
			printConfirmation(form.Confirmation())
			return nil
		},
	}
	cmd.Flags().StringVar(&fields.Name, "name", "", "your name")
	cmd.Flags().StringVar(&fields.Email, "email", "", "your email")
	cmd.Flags().StringVar(&fields.Phone, "phone", "", "your phone number")
	cmd.Flags().StringVar(&fields.Complaint, "complaint", "", "what went wrong")
	cmd.Flags().StringVar(&fields.Address, "address", "", "where it happened")
	cmd.Flags().StringVar(&image, "image", "", "photo of the problem, with GPS data")
	return cmd
}

func trackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "track TICKET",
		Short: "Track a complaint by ticket number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desk, release, err := a.desk()
			if err != nil {
				return err
			}
			defer release()

			tracker := desk.Tracker
			err = tracker.Track(cmd.Context(), args[0])
			v := tracker.View()
			if v.ErrorVisible {
				return errors.New(v.ErrorMessage)
			}
			if err != nil {
				return err
			}

			d := v.Details
			fmt.Printf("%-12s %s\n", "Ticket:", d.Ticket)
			fmt.Printf("%-12s %s\n", "Department:", d.Department)
			fmt.Printf("%-12s %s\n", "Status:", d.Status)
			fmt.Printf("%-12s %s\n", "Description:", d.Description)
			fmt.Printf("%-12s %s\n", "Address:", d.Address)
			fmt.Printf("%-12s %s\n", "Created:", d.Created)
			fmt.Printf("%-12s %s\n", "Updated:", d.Updated)
			return nil
		},
	}
}
