package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/julianstephens/tally/internal/constants"
	"github.com/julianstephens/tally/internal/logger"
	"github.com/julianstephens/tally/internal/models"
)

// ErrServer is returned for any request that fails in transport, answers
// outside [200,300), or carries a body that does not decode.
var ErrServer = errors.New("server request failed")

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrServer }

// Attacher stamps outgoing requests with the current credential.
type Attacher interface {
	AttachCredential(req *http.Request)
}

// Client talks to the habit service on behalf of the signed-in user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Attacher
}

// New creates a Client. If httpClient is nil, http.DefaultClient is used.
func New(baseURL string, httpClient *http.Client, auth Attacher) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, auth: auth}
}

func (c *Client) Dashboard(ctx context.Context) (models.Dashboard, error) {
	var d models.Dashboard
	err := c.getJSON(ctx, constants.PathDashboard, &d)
	return d, err
}

func (c *Client) Stats(ctx context.Context, window models.Window) (models.Stats, error) {
	var s models.Stats
	path := constants.PathStats + "?window=" + url.QueryEscape(string(window))
	err := c.getJSON(ctx, path, &s)
	return s, err
}

func (c *Client) Today(ctx context.Context) ([]models.TodayState, error) {
	var today *[]models.TodayState
	if err := c.getJSON(ctx, constants.PathToday, &today); err != nil {
		return nil, err
	}
	if today == nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrServer, constants.PathToday, models.ErrMissingField)
	}
	return *today, nil
}

// SetCompleted marks a goal complete for today (POST) or clears it (DELETE).
// The response body is ignored.
func (c *Client) SetCompleted(ctx context.Context, goalID string, completed bool) error {
	method := http.MethodDelete
	if completed {
		method = http.MethodPost
	}
	path := CompletePath(goalID)

	req, err := c.newRequest(ctx, method, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CompletePath is the mutation path for a goal.
func CompletePath(goalID string) string {
	return constants.PathGoals + url.PathEscape(goalID) + constants.PathCompleteSuffix
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrServer, path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set(constants.RequestIDHeader, uuid.NewString())
	if c.auth != nil {
		c.auth.AttachCredential(req)
	}
	return req, nil
}

// do sends req and turns transport failures and non-2xx statuses into ErrServer.
// On success the caller owns resp.Body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	path := req.URL.RequestURI()
	logger.Debug("api request", "method", req.Method, "path", path, "request_id", req.Header.Get(constants.RequestIDHeader))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrServer, req.Method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{Method: req.Method, Path: path, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// PostJSON sends body as JSON without credentials and decodes a 2xx
// response into out. Used for the unauthenticated auth endpoints.
func PostJSON(ctx context.Context, httpClient *http.Client, baseURL, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	c := New(baseURL, httpClient, nil)
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrServer, path, err)
	}
	return nil
}
