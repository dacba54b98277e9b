package restarter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Actions accepted by the restarter.
const (
	ActionRestart           = "restart"
	ActionRestartSuperAdmin = "restart-super-admin"
	ActionRenewCert         = "renew-cert"
	ActionUploadCert        = "upload-cert"
	ActionUpdateSSLCert     = "update-ssl-cert"
)

// Actions lists every job endpoint.
var Actions = []string{ActionRestart, ActionRestartSuperAdmin, ActionRenewCert, ActionUploadCert, ActionUpdateSSLCert}

// Client talks to a restarter daemon.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

// NewClient creates a client for the daemon at rawURL (e.g. http://127.0.0.1:3003).
func NewClient(rawURL string) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("restarter: parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("restarter: unsupported scheme %q", parsed.Scheme)
	}
	return &Client{
		baseURL: parsed,
		// Jobs pull images and recreate containers; allow them time.
		httpClient: &http.Client{Timeout: 15 * time.Minute},
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}, nil
}

// Ping checks that the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath("yo").String(), nil)
	if err != nil {
		return fmt.Errorf("restarter: new request: %w", err)
	}
	var out map[string]string
	if err := c.do(req, &out); err != nil {
		return err
	}
	if out["hi"] != "hello" {
		return errors.New("restarter: unexpected ping response")
	}
	return nil
}

// Trigger runs action and waits for the job to finish.
func (c *Client) Trigger(ctx context.Context, action string, body Request) (Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return Response{}, fmt.Errorf("restarter: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(action).String(), &buf)
	if err != nil {
		return Response{}, fmt.Errorf("restarter: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	var out Response
	if err := c.do(req, &out); err != nil {
		return Response{}, err
	}
	return out, nil
}

// Follow streams job output to fn until ctx is cancelled or the daemon closes
// the connection.
func (c *Client) Follow(ctx context.Context, fn func(OutputLine)) error {
	wsURL := *c.baseURL.JoinPath("ws", "output")
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	conn, _, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return fmt.Errorf("restarter: dial output: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var line OutputLine
		if err := conn.ReadJSON(&line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("restarter: read output: %w", err)
		}
		if fn != nil {
			fn(line)
		}
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("restarter: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
			return fmt.Errorf("restarter: http %d", resp.StatusCode)
		}
		if msg, ok := apiErr["error"].(string); ok {
			return fmt.Errorf("restarter: http %d: %s", resp.StatusCode, msg)
		}
		return fmt.Errorf("restarter: http %d", resp.StatusCode)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("restarter: decode response: %w", err)
	}
	return nil
}
