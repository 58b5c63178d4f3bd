// Package profile calls the remote profile lookup API.
// Each lookup is a single authenticated POST; responses are passed through untouched.
package profile

// file: internal/profile/client.go

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
)

// FindProfilesPath is the fixed lookup endpoint below the base URL.
const FindProfilesPath = "/api/v1.0/profile/findprofiles"

// DefaultTimeout applies when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	// BaseURL is scheme and host, e.g. https://t-midgard.milestoneinternet.com.
	BaseURL string
	// Token is sent as "Authorization: Bearer <Token>".
	Token string
	// Timeout bounds every lookup. Zero means DefaultTimeout.
	Timeout time.Duration
	// ShowInactiveProfiles is copied into every query.
	ShowInactiveProfiles bool
	// HTTPClient overrides the default client (tests). Its Timeout is ignored
	// in favour of the per-call context deadline.
	HTTPClient *http.Client
}

// Selector picks one profile by ID.
type Selector struct {
	ProfileID int `json:"profileId"`
}

// Query is the request body for the lookup endpoint.
type Query struct {
	Selectors            []Selector `json:"selectors"`
	ShowInactiveProfiles bool       `json:"showInactiveProfiles"`
}

// Client performs profile lookups. It is safe for concurrent use.
type Client struct {
	endpoint   string
	token      string
	timeout    time.Duration
	showAll    bool
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a profile client.
func NewClient(opts Options, logger logging.Logger) *Client {
	if logger == nil {
		logger = logging.GetNoopLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No connection reuse between lookups.
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}
	return &Client{
		endpoint:   strings.TrimRight(opts.BaseURL, "/") + FindProfilesPath,
		token:      opts.Token,
		timeout:    timeout,
		showAll:    opts.ShowInactiveProfiles,
		httpClient: httpClient,
		logger:     logger.WithField("component", "profile_client"),
	}
}

// Endpoint returns the full lookup URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// FetchProfile looks up profileID and returns the raw JSON response body.
// Errors are *HTTPStatusError, *TransportError or *DecodeError.
func (c *Client) FetchProfile(ctx context.Context, profileID int) (json.RawMessage, error) {
	body, err := json.Marshal(Query{
		Selectors:            []Selector{{ProfileID: profileID}},
		ShowInactiveProfiles: c.showAll,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode profile query")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Cause: errors.Wrap(err, "failed to create request")}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		terr := &TransportError{URL: c.endpoint, Cause: err, timeout: isTimeout(ctx, err)}
		c.logger.WithContext(ctx).Warn("Profile lookup failed before a response arrived.",
			"profileID", profileID, "timeout", terr.timeout, "error", err)
		return nil, terr
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{URL: c.endpoint, Cause: errors.Wrap(err, "failed to read response body"), timeout: isTimeout(ctx, err)}
	}

	c.logger.WithContext(ctx).Debug("Profile lookup completed.",
		"profileID", profileID, "status", resp.StatusCode, "duration", time.Since(start).String())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     statusText(resp),
			URL:        c.endpoint,
			Body:       respBody,
		}
	}
	if !json.Valid(respBody) {
		return nil, &DecodeError{URL: c.endpoint, Body: respBody}
	}
	return json.RawMessage(respBody), nil
}

// GetProfile is FetchProfile with every failure converted to {"error": "<message>"}.
// It never returns an error; callers hand the payload straight to the agent.
func (c *Client) GetProfile(ctx context.Context, profileID int) json.RawMessage {
	result, err := c.FetchProfile(ctx, profileID)
	if err == nil {
		return result
	}
	payload, merr := json.Marshal(map[string]string{"error": err.Error()})
	if merr != nil {
		// A map of strings always marshals.
		return json.RawMessage(`{"error":"unknown error"}`)
	}
	return payload
}

func statusText(resp *http.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return strings.TrimSpace(http.StatusText(resp.StatusCode))
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
