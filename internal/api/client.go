// Package api is the typed HTTP client for the grievance portal.
//
// This package implements:
//   - Connection pooling shared across every controller
//   - A cookie jar so the admin session cookie rides along on each call
//   - One method per portal endpoint, all context-aware
//   - Mapping of transport and server failures onto internal/errors types
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	apperrors "grievedesk/internal/errors"
	"grievedesk/internal/logging"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewHTTPClient creates an HTTP client with connection pooling and a cookie jar.
//
// Connection pool configuration:
//   - MaxIdleConns: 100
//   - MaxIdleConnsPerHost: 10
//   - IdleConnTimeout: 90 seconds
//
// The jar stores the portal's session cookie, the same way a browser
// sends credentials with every same-site request.
//
// Parameters:
//   - timeout: Maximum time for a complete request (including reading response)
//
// Returns:
//   - *http.Client: Configured HTTP client
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(nil) // only fails on a bad PublicSuffixList
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// Client talks to one portal instance.
//
// Thread-safety:
//   - http.Client and its cookie jar are safe for concurrent use
//   - Client holds no other mutable state
type Client struct {
	baseURL *url.URL
	http    *http.Client
	logger  *zap.SugaredLogger
}

// NewClient creates a portal client for baseURL.
//
// httpClient may be nil, in which case NewHTTPClient(30s) is used. A client
// without a cookie jar gets one, otherwise admin calls could never
// authenticate.
func NewClient(baseURL string, httpClient *http.Client, logger *zap.SugaredLogger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid portal URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("portal URL must be absolute, got %q", baseURL)
	}

	if httpClient == nil {
		httpClient = NewHTTPClient(30 * time.Second)
	}
	if httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}

	return &Client{
		baseURL: u,
		http:    httpClient,
		logger:  logging.OrNop(logger),
	}, nil
}

// BaseURL returns the portal root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Cookies returns the cookies currently held for the portal.
func (c *Client) Cookies() []*http.Cookie {
	return c.http.Jar.Cookies(c.baseURL)
}

// SetCookies seeds the jar, typically with cookies saved by a previous run.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	c.http.Jar.SetCookies(c.baseURL, cookies)
}

// ImageURL is where the portal serves the uploaded image for a ticket.
func (c *Client) ImageURL(ticket string) string {
	return c.baseURL.JoinPath("uploads", ticket+".jpg").String()
}

// envelope is the part every portal response shares.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Reply   string `json:"reply"`
}

// do sends one request and decodes the JSON answer into out.
//
// Error mapping:
//   - request could not be sent, or body is not JSON → *FetchError
//   - success:false or HTTP status >= 400 → *ServerError with resolved code
func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return apperrors.NewFetchError("failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warnw("portal request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return apperrors.NewFetchError(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewFetchError("failed to read response", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warnw("portal returned non-JSON body", "path", path, "status", resp.StatusCode, "request_id", requestID)
		return apperrors.NewFetchError(fmt.Sprintf("invalid response from %s", path), err)
	}

	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		message := env.Message
		if message == "" {
			message = env.Reply
		}
		serverErr := apperrors.NewServerError(resp.StatusCode, env.Code, message)
		c.logger.Debugw("portal reported failure", "path", path, "status", resp.StatusCode, "code", serverErr.Code, "message", message, "request_id", requestID)
		return serverErr
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return apperrors.NewFetchError(fmt.Sprintf("failed to decode %s", path), err)
		}
	}
	return nil
}

// doAdmin is do for session-protected endpoints: an unauthorized answer
// becomes *NotAuthenticatedError so callers can send the user to login.
func (c *Client) doAdmin(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	err := c.do(ctx, method, path, query, payload, out)
	if serverErr, ok := apperrors.AsServer(err); ok && serverErr.Code == apperrors.CodeUnauthorized {
		return apperrors.NewNotAuthenticatedError(serverErr.Message)
	}
	return err
}
