package api

import (
	"context"
	"fmt"
	"net/http"

	apperrors "grievedesk/internal/errors"
)

// Chat sends one user message to the intake assistant.
func (c *Client) Chat(ctx context.Context, message string) (*ChatReply, error) {
	payload := map[string]string{"message": message}

	var out ChatReply
	if err := c.do(ctx, http.MethodPost, "/api/chat", nil, payload, &out); err != nil {
		return nil, err
	}
	if out.Type == "" {
		out.Type = ReplyCasual
	}
	return &out, nil
}

// SubmitComplaint files a complaint. Server-side rejections (missing GPS,
// irrelevant image, out of scope) come back as *ServerError.
func (c *Client) SubmitComplaint(ctx context.Context, s Submission) (*SubmitResult, error) {
	var out SubmitResult
	if err := c.do(ctx, http.MethodPost, "/api/submit_complaint", nil, s, &out); err != nil {
		return nil, err
	}
	c.logger.Infow("complaint submitted", "ticket", out.TicketNumber, "department", out.Department)
	return &out, nil
}

// TrackComplaint looks up a complaint by ticket number.
func (c *Client) TrackComplaint(ctx context.Context, ticket string) (*Complaint, error) {
	payload := map[string]string{"ticket_number": ticket}

	var out struct {
		Complaint *Complaint `json:"complaint"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/track_complaint", nil, payload, &out); err != nil {
		return nil, err
	}
	if out.Complaint == nil {
		return nil, apperrors.NewFetchError(fmt.Sprintf("ticket %s missing from response", ticket), nil)
	}
	return out.Complaint, nil
}
