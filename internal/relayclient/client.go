// Package relayclient calls the email and roster relays over HTTP, for
// deployments where intake runs apart from the relays.
package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Togather-Foundation/registration/internal/email"
)

const (
	emailPath  = "/api/send-registration-email"
	appendPath = "/api/append-athlete"

	DefaultTimeout = 15 * time.Second
)

// EmailResponse is the success body of the email relay.
type EmailResponse struct {
	Success                 bool   `json:"success"`
	Message                 string `json:"message"`
	ParticipantEmailSkipped bool   `json:"participant_email_skipped"`
}

// RelayError is a non-2xx answer from a relay. Message is the relay's
// "error" field when it sent one, otherwise the raw body.
type RelayError struct {
	Path    string
	Status  int
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay %s: status %d: %s", e.Path, e.Status, e.Message)
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New returns a client for the relays under baseURL, or nil when baseURL is
// empty.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether c can be used; a nil Client cannot.
func (c *Client) Configured() bool {
	return c != nil
}

// SendRegistrationEmail posts the participant to the email relay.
func (c *Client) SendRegistrationEmail(ctx context.Context, p email.Participant) (*EmailResponse, error) {
	var out EmailResponse
	if err := c.post(ctx, emailPath, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AppendAthlete posts name to the roster relay.
func (c *Client) AppendAthlete(ctx context.Context, name string) error {
	return c.post(ctx, appendPath, map[string]string{"nome": name}, nil)
}

// SendRegistration adapts SendRegistrationEmail to the in-process notifier
// signature.
func (c *Client) SendRegistration(ctx context.Context, p email.Participant) (email.SendResult, error) {
	resp, err := c.SendRegistrationEmail(ctx, p)
	if err != nil {
		return email.SendResult{}, err
	}
	return email.SendResult{ParticipantEmailSkipped: resp.ParticipantEmailSkipped}, nil
}

// Append adapts AppendAthlete to the in-process roster appender signature.
func (c *Client) Append(ctx context.Context, name string) error {
	return c.AppendAthlete(ctx, name)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RelayError{Path: path, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(raw))
}
