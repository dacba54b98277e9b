package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ccheshirecat/swarmctl/internal/kv"
)

type capturedRequest struct {
	txt   string
	tag   string
	token string
}

func newBackend(t *testing.T, body string, status int, seen *capturedRequest) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/cmd", func(w http.ResponseWriter, req *http.Request) {
		if seen != nil {
			seen.txt = req.URL.Query().Get("txt")
			seen.tag = req.URL.Query().Get("tag")
			seen.token = req.Header.Get(TokenHeader)
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, root string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := New(root, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestCommandURLCarriesExactEnvelope(t *testing.T) {
	c := newTestClient(t, "http://localhost:8000/api")
	cases := []struct {
		cmd  Command
		want string
	}{
		{NewCommand(TypeSwarm, CmdGetConfig, nil), `{"type":"Swarm","data":{"cmd":"GetConfig"}}`},
		{NewCommand(TypeSwarm, CmdStopContainer, "sphinx.lnd"), `{"type":"Swarm","data":{"cmd":"StopContainer","content":"sphinx.lnd"}}`},
		{NewCommand(TypeSwarm, CmdUpdateNode, UpdateNodeRequest{ID: "lnd", Version: "latest"}), `{"type":"Swarm","data":{"cmd":"UpdateNode","content":{"id":"lnd","version":"latest"}}}`},
		{NewCommand(TypeSwarm, CmdUpdateBoltwallAccessibility, false), `{"type":"Swarm","data":{"cmd":"UpdateBoltwallAccessibility","content":false}}`},
		{NewCommand(TypeSwarm, CmdAddBoltwallUser, AddBoltwallUserRequest{Pubkey: "02ab", Role: 2}), `{"type":"Swarm","data":{"cmd":"AddBoltwallUser","content":{"pubkey":"02ab","role":2}}}`},
		{NewCommand(TypeRelay, CmdAddUser, AddRelayUserRequest{}), `{"type":"Relay","data":{"cmd":"AddUser","content":{}}}`},
		{NewCommand(TypeLnd, CmdPayKeysend, KeysendRequest{Dest: "02ab", Amt: 1000}), `{"type":"Lnd","data":{"cmd":"PayKeysend","content":{"dest":"02ab","amt":1000}}}`},
		{NewCommand(TypeCln, CmdPayInvoice, PayInvoiceRequest{PaymentRequest: "lnbc1<&>"}), `{"type":"Cln","data":{"cmd":"PayInvoice","content":{"payment_request":"lnbc1<&>"}}}`},
		{NewCommand(TypeBitcoind, CmdTestMine, TestMineRequest{Blocks: 6}), `{"type":"Bitcoind","data":{"cmd":"TestMine","content":{"blocks":6}}}`},
		{NewCommand(TypeHsmd, CmdGetClients, nil), `{"type":"Hsmd","data":{"cmd":"GetClients"}}`},
		{NewCommand(TypeSwarm, CmdStopContainer, "a\u2028b\u2029c"), "{\"type\":\"Swarm\",\"data\":{\"cmd\":\"StopContainer\",\"content\":\"a\u2028b\u2029c\"}}"},
		{NewCommand(TypeSwarm, CmdStopContainer, `a\u2028b`), `{"type":"Swarm","data":{"cmd":"StopContainer","content":"a\\u2028b"}}`},
		{NewCommand(TypeSwarm, CmdStopContainer, "a\\\u2028"), "{\"type\":\"Swarm\",\"data\":{\"cmd\":\"StopContainer\",\"content\":\"a\\\\\u2028\"}}"},
		{NewCommand(TypeSwarm, CmdUpdateInstance, json.RawMessage(`{"name": "relay", "version": "v2"}`)), `{"type":"Swarm","data":{"cmd":"UpdateInstance","content":{"name":"relay","version":"v2"}}}`},
	}
	for _, tc := range cases {
		raw, err := c.CommandURL(tc.cmd, "")
		if err != nil {
			t.Fatalf("%s/%s: command url: %v", tc.cmd.Type, tc.cmd.Name, err)
		}
		u, err := url.Parse(raw)
		if err != nil {
			t.Fatalf("parse url %q: %v", raw, err)
		}
		if u.Path != "/api/cmd" {
			t.Fatalf("unexpected path %q", u.Path)
		}
		if got := u.Query().Get("txt"); got != tc.want {
			t.Fatalf("%s/%s: txt = %s, want %s", tc.cmd.Type, tc.cmd.Name, got, tc.want)
		}
		if got := u.Query().Get("tag"); got != "SWARM" {
			t.Fatalf("expected default SWARM tag, got %q", got)
		}
	}
}

func TestSendPassesTagAndToken(t *testing.T) {
	var seen capturedRequest
	srv := newBackend(t, `{"ok":true}`, http.StatusOK, &seen)
	c := newTestClient(t, srv.URL+"/api", WithTokenSource(StaticToken("jwt-123")))

	res, err := c.Lnd("lnd1").Info(context.Background())
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if seen.tag != "lnd1" || seen.token != "jwt-123" {
		t.Fatalf("unexpected request %+v", seen)
	}
	if seen.txt != `{"type":"Lnd","data":{"cmd":"GetInfo"}}` {
		t.Fatalf("unexpected envelope %s", seen.txt)
	}
	var out map[string]bool
	if err := res.Decode(&out); err != nil || !out["ok"] {
		t.Fatalf("unexpected result %+v (%v)", out, err)
	}
}

func TestSendWithoutTokenSendsEmptyHeader(t *testing.T) {
	var seen capturedRequest
	srv := newBackend(t, `[]`, http.StatusOK, &seen)
	c := newTestClient(t, srv.URL+"/api")
	if _, err := c.Swarm().GetConfig(context.Background()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if seen.token != "" {
		t.Fatalf("expected empty token, got %q", seen.token)
	}
}

func TestSendUnwrapsErrorField(t *testing.T) {
	for _, field := range []string{"error", "stack_error"} {
		srv := newBackend(t, `{"`+field+`":"X","other":1}`, http.StatusOK, nil)
		c := newTestClient(t, srv.URL+"/api")

		_, err := c.Swarm().ListAdmins(context.Background())
		var remote *RemoteError
		if !errors.As(err, &remote) {
			t.Fatalf("%s: expected remote error, got %v", field, err)
		}
		if remote.Message != "X" || remote.Field != field {
			t.Fatalf("%s: expected unwrapped message X, got %+v", field, remote)
		}
		if errors.Is(err, ErrTransport) {
			t.Fatalf("remote error must not look like a transport failure")
		}
	}
}

func TestSendIgnoresFalsyErrorField(t *testing.T) {
	srv := newBackend(t, `{"error":"","stack_error":null,"value":3}`, http.StatusOK, nil)
	c := newTestClient(t, srv.URL+"/api")
	res, err := c.Swarm().GetConfig(context.Background())
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !res.IsJSON() {
		t.Fatalf("expected json result")
	}
}

func TestSendReturnsPlainTextUnchanged(t *testing.T) {
	body := "  container restarted\nok "
	srv := newBackend(t, body, http.StatusOK, nil)
	c := newTestClient(t, srv.URL+"/api")

	res, err := c.Swarm().StartContainer(context.Background(), "sphinx.relay")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.IsJSON() {
		t.Fatalf("plain text must not be treated as json")
	}
	if res.Text() != body || res.Body != body {
		t.Fatalf("expected body %q, got %q", body, res.Text())
	}
}

func TestSendNonSuccessStatusIsRemoteError(t *testing.T) {
	srv := newBackend(t, "bad gateway", http.StatusBadGateway, nil)
	c := newTestClient(t, srv.URL+"/api")
	res, err := c.Swarm().GetConfig(context.Background())
	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if remote.Status != http.StatusBadGateway || remote.Message != "bad gateway" {
		t.Fatalf("unexpected remote error %+v", remote)
	}
	if res.Body != "bad gateway" {
		t.Fatalf("raw body should still be returned, got %q", res.Body)
	}
}

type failingTransport struct {
	calls atomic.Int32
}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	f.calls.Add(1)
	return nil, errors.New("connection refused")
}

func TestSendTransportFailureDoesNotRetry(t *testing.T) {
	rt := &failingTransport{}
	c := newTestClient(t, "http://swarm.invalid/api", WithHTTPClient(&http.Client{Transport: rt}))

	res, err := c.Swarm().ListContainers(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if res != nil {
		t.Fatalf("expected no result, got %+v", res)
	}
	if rt.calls.Load() != 1 {
		t.Fatalf("expected exactly one attempt, got %d", rt.calls.Load())
	}
}

func TestSendRejectsInvalidCommands(t *testing.T) {
	rt := &failingTransport{}
	c := newTestClient(t, "http://swarm.invalid/api", WithHTTPClient(&http.Client{Transport: rt}))
	cases := []Command{
		NewCommand(TypeLnd, CmdListFunds, nil),
		NewCommand(TypeSwarm, CmdStopContainer, nil),
		NewCommand(TypeSwarm, CmdStopContainer, 42),
		NewCommand(TypeSwarm, CmdGetConfig, "unexpected"),
		NewCommand("Docker", CmdGetConfig, nil),
	}
	for _, cmd := range cases {
		if _, err := c.Send(context.Background(), cmd, ""); err == nil {
			t.Fatalf("expected %s/%s to be rejected", cmd.Type, cmd.Name)
		}
	}
	if rt.calls.Load() != 0 {
		t.Fatalf("invalid commands must not reach the network")
	}
}

func TestOptionalContentMayBeOmitted(t *testing.T) {
	for _, cmd := range []Command{
		NewCommand(TypeSwarm, CmdGetStatistics, nil),
		NewCommand(TypeSwarm, CmdGetStatistics, "sphinx.lnd"),
		NewCommand(TypeCln, CmdListPays, nil),
		NewCommand(TypeCln, CmdListPays, InvoiceFilter{PaymentHash: "abc"}),
	} {
		if err := cmd.Validate(); err != nil {
			t.Fatalf("%s/%s: %v", cmd.Type, cmd.Name, err)
		}
	}
}

func TestParseTypeAndName(t *testing.T) {
	typ, err := ParseType("lnd")
	if err != nil || typ != TypeLnd {
		t.Fatalf("unexpected type %q (%v)", typ, err)
	}
	name, err := ParseName(typ, "getinfo")
	if err != nil || name != CmdGetInfo {
		t.Fatalf("unexpected name %q (%v)", name, err)
	}
	if _, err := ParseName(TypeProxy, "GetInfo"); err == nil {
		t.Fatalf("expected proxy GetInfo to be unknown")
	}
	if got := len(Types()); got != 7 {
		t.Fatalf("expected 7 subsystems, got %d", got)
	}
}

func TestListContainersDecodes(t *testing.T) {
	body := `[{"Id":"abc","Names":["/sphinx.lnd"],"Image":"lnd:v0.17","State":"running","Status":"Up 2 hours","Created":1700000000}]`
	srv := newBackend(t, body, http.StatusOK, nil)
	c := newTestClient(t, srv.URL+"/api")
	containers, err := c.Swarm().ListContainers(context.Background())
	if err != nil {
		t.Fatalf("list containers: %v", err)
	}
	if len(containers) != 1 || containers[0].Name() != "sphinx.lnd" || containers[0].State != "running" {
		t.Fatalf("unexpected containers %+v", containers)
	}
}

func TestLogsAndAuthEndpoints(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/logs", func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get("tag") != "relay1" {
				http.Error(w, `{"error":"unknown tag"}`, http.StatusNotFound)
				return
			}
			io.WriteString(w, `["first","second"]`)
		})
		r.Post("/login", func(w http.ResponseWriter, req *http.Request) {
			var body loginRequest
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Password != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				io.WriteString(w, `{"error":"bad credentials"}`)
				return
			}
			io.WriteString(w, `{"token":"fresh"}`)
		})
		r.Get("/refresh_jwt", func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, `{"token":"`+req.Header.Get(TokenHeader)+`-2"}`)
		})
	})
	srv := httptest.NewServer(r)
	defer srv.Close()
	c := newTestClient(t, srv.URL+"/api")
	ctx := context.Background()

	lines, err := c.Logs(ctx, "relay1")
	if err != nil || len(lines) != 2 || lines[0] != "first" {
		t.Fatalf("unexpected logs %v (%v)", lines, err)
	}
	if _, err := c.Logs(ctx, "nope"); err == nil {
		t.Fatalf("expected logs error for unknown tag")
	}

	tok, err := c.Login(ctx, "admin", "pw")
	if err != nil || tok != "fresh" {
		t.Fatalf("unexpected login %q (%v)", tok, err)
	}
	_, err = c.Login(ctx, "admin", "wrong")
	var remote *RemoteError
	if !errors.As(err, &remote) || remote.Message != "bad credentials" {
		t.Fatalf("expected bad credentials, got %v", err)
	}

	tok, err = c.RefreshToken(ctx, "fresh")
	if err != nil || tok != "fresh-2" {
		t.Fatalf("unexpected refresh %q (%v)", tok, err)
	}
}

func TestStoredTokenReadsStore(t *testing.T) {
	store := kv.NewMemory()
	ctx := context.Background()
	src := StoredToken{Store: store}

	tok, err := src.Token(ctx)
	if err != nil || tok != "" {
		t.Fatalf("expected empty token, got %q (%v)", tok, err)
	}
	if err := store.Set(ctx, kv.TokenKey, "abc"); err != nil {
		t.Fatalf("set token: %v", err)
	}
	tok, err = src.Token(ctx)
	if err != nil || tok != "abc" {
		t.Fatalf("expected stored token, got %q (%v)", tok, err)
	}
}

func TestLogStreamURL(t *testing.T) {
	c := newTestClient(t, "https://app.swarm9.sphinx.chat/api/")
	if got := c.LogStreamURL("relay 1"); got != "https://app.swarm9.sphinx.chat/api/logstream?tag=relay+1" {
		t.Fatalf("unexpected stream url %q", got)
	}
	if got := c.LogStreamURL(""); got != "https://app.swarm9.sphinx.chat/api/logstream?tag=SWARM" {
		t.Fatalf("unexpected default stream url %q", got)
	}
}
