package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	apperrors "grievedesk/internal/errors"
)

// Login opens an admin session.
//
// A rejected login returns *LoginFailedError carrying the server message.
// A transport failure returns *LoginFailedError wrapping the *FetchError,
// so apperrors.IsFetch still recognises it.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	payload := map[string]string{"username": username, "password": password}

	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/api/admin/login", nil, payload, &out); err != nil {
		if serverErr, ok := apperrors.AsServer(err); ok {
			return nil, apperrors.NewLoginFailedError(serverErr.Message, err)
		}
		return nil, apperrors.NewLoginFailedError("login request failed", err)
	}

	c.logger.Infow("admin logged in", "username", out.Username, "department", out.DepartmentName)
	return &out, nil
}

// Logout ends the session. The response body is not inspected beyond
// transport success.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/admin/logout", nil, struct{}{}, nil)
	if _, ok := apperrors.AsServer(err); ok {
		return nil
	}
	return err
}

// Session checks whether the cookie jar holds a live admin session.
// "No session" is a normal answer, not an error.
func (c *Client) Session(ctx context.Context) (*Session, error) {
	var out struct {
		AdminUsername  string `json:"admin_username"`
		DepartmentName string `json:"department_name"`
	}
	err := c.do(ctx, http.MethodGet, "/api/admin/session", nil, nil, &out)
	if err != nil {
		if _, ok := apperrors.AsServer(err); ok {
			return &Session{Authenticated: false}, nil
		}
		return nil, err
	}
	return &Session{
		Authenticated:  true,
		AdminUsername:  out.AdminUsername,
		DepartmentName: out.DepartmentName,
	}, nil
}

// Complaints lists complaints matching f, newest first as the portal orders them.
func (c *Client) Complaints(ctx context.Context, f Filter) ([]Complaint, error) {
	var out struct {
		Complaints []Complaint `json:"complaints"`
	}
	if err := c.doAdmin(ctx, http.MethodGet, "/api/admin/complaints", f.Query(), nil, &out); err != nil {
		return nil, err
	}
	return out.Complaints, nil
}

// Complaint fetches a single complaint with address and image path.
func (c *Client) Complaint(ctx context.Context, id int) (*Complaint, error) {
	var out struct {
		Complaint *Complaint `json:"complaint"`
	}
	path := "/api/admin/complaints/" + strconv.Itoa(id)
	if err := c.doAdmin(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	if out.Complaint == nil {
		return nil, apperrors.NewFetchError(fmt.Sprintf("complaint %d missing from response", id), nil)
	}
	return out.Complaint, nil
}

// UpdateStatus sets a complaint's status and returns the portal's message.
func (c *Client) UpdateStatus(ctx context.Context, id int, status string) (string, error) {
	payload := struct {
		ComplaintID int    `json:"complaint_id"`
		Status      string `json:"status"`
	}{id, status}

	var out envelope
	if err := c.doAdmin(ctx, http.MethodPost, "/api/admin/update_status", nil, payload, &out); err != nil {
		return "", err
	}
	c.logger.Infow("complaint status updated", "complaint_id", id, "status", status)
	return out.Message, nil
}

func (c *Client) Departments(ctx context.Context) ([]Department, error) {
	var out struct {
		Departments []Department `json:"departments"`
	}
	if err := c.doAdmin(ctx, http.MethodGet, "/api/admin/departments", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Departments, nil
}

// Reports fetches the counters and chart series.
func (c *Client) Reports(ctx context.Context) (*Report, error) {
	var out Report
	if err := c.doAdmin(ctx, http.MethodGet, "/api/admin/reports", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
