package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ccheshirecat/swarmctl/internal/config"
	"github.com/ccheshirecat/swarmctl/internal/shared/logging"
)

// TokenHeader carries the session token on every backend call.
const TokenHeader = "x-jwt"

const maxBodyBytes = 32 << 20

// ErrTransport marks failures where no response was obtained from the
// backend. Callers match it with errors.Is.
var ErrTransport = errors.New("client: transport failure")

// DefaultErrorFields are the response fields the backend uses to report a
// failed command.
var DefaultErrorFields = []string{"stack_error", "error"}

// TokenSource supplies the cached session token. An empty token is sent as an
// empty header.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Client dispatches commands to a swarm backend.
type Client struct {
	baseURL     *url.URL
	httpClient  *http.Client
	tokens      TokenSource
	logger      *slog.Logger
	errorFields []string
}

// Option customises a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithErrorFields replaces the response fields treated as a remote failure.
func WithErrorFields(fields ...string) Option {
	return func(c *Client) {
		if len(fields) > 0 {
			c.errorFields = append([]string(nil), fields...)
		}
	}
}

// New creates a client for the API root (e.g. http://localhost:8000/api).
func New(rawURL string, opts ...Option) (*Client, error) {
	if rawURL == "" {
		rawURL = config.DevRoot
	}
	parsed, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("client: api root %q must be absolute", rawURL)
	}
	c := &Client{
		baseURL: parsed,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens:      StaticToken(""),
		logger:      logging.Discard(),
		errorFields: DefaultErrorFields,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the API root the client talks to.
func (c *Client) Root() string { return c.baseURL.String() }

// Result is the normalized response of a dispatched command. JSON is set when
// the body parsed as JSON; Body always holds the raw text.
type Result struct {
	Status int
	Body   string
	JSON   json.RawMessage
}

// IsJSON reports whether the response body was valid JSON.
func (r Result) IsJSON() bool { return r.JSON != nil }

// Decode unmarshals a JSON result into out.
func (r Result) Decode(out any) error {
	if !r.IsJSON() {
		return fmt.Errorf("client: response is not json: %q", truncate(r.Body, 120))
	}
	if err := json.Unmarshal(r.JSON, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

// Text returns a JSON string result unquoted and anything else verbatim.
func (r Result) Text() string {
	if r.IsJSON() {
		var s string
		if err := json.Unmarshal(r.JSON, &s); err == nil {
			return s
		}
	}
	return r.Body
}

// RemoteError is a failure reported by the backend itself.
type RemoteError struct {
	Status  int
	Field   string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("client: remote %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("client: http %d: %s", e.Status, e.Message)
}

// CommandURL builds GET {root}/cmd?txt=<envelope>&tag=<tag>. An empty tag
// routes to the orchestrator.
func (c *Client) CommandURL(cmd Command, tag string) (string, error) {
	txt, err := cmd.Encode()
	if err != nil {
		return "", err
	}
	if tag == "" {
		tag = config.SwarmTag
	}
	u := c.baseURL.JoinPath("cmd")
	u.RawQuery = url.Values{"txt": {txt}, "tag": {tag}}.Encode()
	return u.String(), nil
}

// Send dispatches cmd to the subsystem identified by tag. A backend-reported
// failure is returned as *RemoteError alongside the parsed Result; a network
// failure is logged and wraps ErrTransport. Send never retries.
func (c *Client) Send(ctx context.Context, cmd Command, tag string) (Result, error) {
	if err := cmd.Validate(); err != nil {
		return Result{}, err
	}
	target, err := c.CommandURL(cmd, tag)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, fmt.Errorf("client: new request: %w", err)
	}
	req.Header.Set(TokenHeader, c.token(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("cmd error", "type", cmd.Type, "cmd", cmd.Name, "tag", tag, "error", err)
		return Result{}, fmt.Errorf("%w: %s/%s: %w", ErrTransport, cmd.Type, cmd.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.logger.Warn("cmd error", "type", cmd.Type, "cmd", cmd.Name, "tag", tag, "error", err)
		return Result{}, fmt.Errorf("%w: read %s/%s response: %w", ErrTransport, cmd.Type, cmd.Name, err)
	}

	res, err := c.normalize(resp.StatusCode, body)
	if err != nil {
		c.logger.Warn("cmd err", "type", cmd.Type, "cmd", cmd.Name, "tag", tag, "error", err)
	}
	return res, err
}

// normalize turns a raw response into a Result, lifting a truthy error field
// into *RemoteError.
func (c *Client) normalize(status int, body []byte) (Result, error) {
	res := Result{Status: status, Body: string(body)}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		res.JSON = json.RawMessage(trimmed)
	}

	if res.IsJSON() && trimmed[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			for _, name := range c.errorFields {
				raw, ok := fields[name]
				if !ok || !truthy(raw) {
					continue
				}
				return res, &RemoteError{Status: status, Field: name, Message: jsonText(raw)}
			}
		}
	}

	if status >= http.StatusBadRequest {
		msg := strings.TrimSpace(res.Text())
		if msg == "" {
			msg = http.StatusText(status)
		}
		return res, &RemoteError{Status: status, Message: msg}
	}
	return res, nil
}

func (c *Client) token(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		c.logger.Debug("token unavailable", "error", err)
		return ""
	}
	return tok
}

// truthy mirrors how the backend's dashboard treats an error field: null,
// false, zero and the empty string mean no error.
func truthy(raw json.RawMessage) bool {
	switch s := string(bytes.TrimSpace(raw)); s {
	case "", "null", "false", `""`, "0":
		return false
	default:
		return true
	}
}

func jsonText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	resolved := c.baseURL.JoinPath(path)
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("client: encode body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), &buf)
	if err != nil {
		return nil, fmt.Errorf("client: new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return &RemoteError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		for _, field := range c.errorFields {
			if msg, ok := apiErr[field].(string); ok && msg != "" {
				return &RemoteError{Status: resp.StatusCode, Field: field, Message: msg}
			}
		}
		return &RemoteError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
