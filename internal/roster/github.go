package roster

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultAPIURL is the public GitHub REST endpoint.
	DefaultAPIURL = "https://api.github.com"
	// DefaultTimeout for contents API requests.
	DefaultTimeout = 15 * time.Second

	userAgent = "registration-roster/1.0"
)

var (
	// ErrFileNotFound is returned by Get when the path does not exist yet.
	ErrFileNotFound = errors.New("roster file not found")
	// ErrRevisionConflict is returned by Put when the supplied SHA is stale.
	ErrRevisionConflict = errors.New("roster file changed since it was read")
)

// File is a decoded file and the revision token needed to overwrite it.
type File struct {
	Content []byte
	SHA     string
}

// PutRequest describes a write through the contents API. SHA must be empty
// when creating the file.
type PutRequest struct {
	Message string
	Content []byte
	SHA     string
	Branch  string
}

// UpstreamError is a non-2xx answer from the contents API.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("contents api %s: status %d: %s", e.Op, e.Status, e.Body)
}

// ContentsClient reads and writes single files through the GitHub
// repository contents API.
type ContentsClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
	owner      string
	repo       string
}

// Option configures a ContentsClient.
type Option func(*ContentsClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *ContentsClient) {
		c.httpClient = client
	}
}

// WithBaseURL points the client at another API root.
func WithBaseURL(baseURL string) Option {
	return func(c *ContentsClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// NewContentsClient creates a client for owner/repo authenticated with token.
func NewContentsClient(token, owner, repo string, opts ...Option) *ContentsClient {
	c := &ContentsClient{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultAPIURL,
		token:      token,
		owner:      owner,
		repo:       repo,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type contentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// Get fetches path at ref (branch name; empty means the default branch).
func (c *ContentsClient) Get(ctx context.Context, path, ref string) (*File, error) {
	requestURL := c.contentsURL(path)
	if ref != "" {
		requestURL += "?" + url.Values{"ref": {ref}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrFileNotFound
	}
	if status != http.StatusOK {
		return nil, &UpstreamError{Op: "get", Status: status, Body: string(body)}
	}

	var payload contentsResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode contents response: %w", err)
	}
	if payload.Encoding != "" && payload.Encoding != "base64" {
		return nil, fmt.Errorf("unsupported content encoding %q", payload.Encoding)
	}
	// The API wraps base64 output at 60 columns.
	content, err := base64.StdEncoding.DecodeString(strings.NewReplacer("\n", "", "\r", "").Replace(payload.Content))
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}
	return &File{Content: content, SHA: payload.SHA}, nil
}

// Put creates or replaces path. A stale SHA yields ErrRevisionConflict.
func (c *ContentsClient) Put(ctx context.Context, path string, in PutRequest) error {
	payload := map[string]string{
		"message": in.Message,
		"content": base64.StdEncoding.EncodeToString(in.Content),
	}
	if in.SHA != "" {
		payload["sha"] = in.SHA
	}
	if in.Branch != "" {
		payload["branch"] = in.Branch
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode put request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(path), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrRevisionConflict, strings.TrimSpace(string(body)))
	default:
		return &UpstreamError{Op: "put", Status: status, Body: string(body)}
	}
}

func (c *ContentsClient) contentsURL(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.baseURL, url.PathEscape(c.owner), url.PathEscape(c.repo), strings.Join(segments, "/"))
}

func (c *ContentsClient) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
