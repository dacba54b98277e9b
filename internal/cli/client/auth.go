package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ccheshirecat/swarmctl/internal/kv"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges admin credentials for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "login", loginRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	var out tokenResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("client: login returned no token")
	}
	return out.Token, nil
}

// RefreshToken trades a still-valid token for a fresh one.
func (c *Client) RefreshToken(ctx context.Context, token string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "refresh_jwt", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(TokenHeader, token)
	var out tokenResponse
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Token) == "" {
		return "", errors.New("client: refresh returned no token")
	}
	return out.Token, nil
}

// StoredToken reads the session token from the persisted key-value store on
// every call, so a login in another process is picked up immediately.
type StoredToken struct {
	Store kv.Store
}

func (s StoredToken) Token(ctx context.Context) (string, error) {
	if s.Store == nil {
		return "", nil
	}
	v, err := s.Store.Get(ctx, kv.TokenKey)
	if errors.Is(err, kv.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("client: read token: %w", err)
	}
	return v, nil
}
