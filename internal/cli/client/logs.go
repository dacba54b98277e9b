package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ccheshirecat/swarmctl/internal/config"
)

// Logs fetches the buffered log lines for tag in the order the backend keeps
// them (oldest first).
func (c *Client) Logs(ctx context.Context, tag string) ([]string, error) {
	if tag == "" {
		tag = config.SwarmTag
	}
	req, err := c.newRequest(ctx, http.MethodGet, "logs", nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = url.Values{"tag": {tag}}.Encode()
	req.Header.Set(TokenHeader, c.token(ctx))
	var lines []string
	if err := c.do(req, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// LogStreamURL is the server-sent events endpoint that pushes new log lines
// for tag.
func (c *Client) LogStreamURL(tag string) string {
	if tag == "" {
		tag = config.SwarmTag
	}
	u := c.baseURL.JoinPath("logstream")
	u.RawQuery = url.Values{"tag": {tag}}.Encode()
	return u.String()
}
