package client

import "context"

// RelayBalance is the Relay GetBalance response.
type RelayBalance struct {
	Reserve            int64 `json:"reserve"`
	FullBalance        int64 `json:"full_balance"`
	Balance            int64 `json:"balance"`
	PendingOpenBalance int64 `json:"pending_open_balance"`
}

// ProxyBalance is the Proxy GetBalance response.
type ProxyBalance struct {
	Total     int64 `json:"total"`
	UserCount int64 `json:"user_count"`
}

type RelayAPI struct {
	c   *Client
	tag string
}

func (c *Client) Relay(tag string) *RelayAPI { return &RelayAPI{c: c, tag: tag} }

func (r *RelayAPI) send(ctx context.Context, name CmdName, content any) (Result, error) {
	return r.c.Send(ctx, NewCommand(TypeRelay, name, content), r.tag)
}

func (r *RelayAPI) ListUsers(ctx context.Context) (Result, error) {
	return r.send(ctx, CmdListUsers, nil)
}

// AddUser creates a relay user, optionally seeded with initialSats.
func (r *RelayAPI) AddUser(ctx context.Context, initialSats uint64) (Result, error) {
	return r.send(ctx, CmdAddUser, AddRelayUserRequest{InitialSats: initialSats})
}

func (r *RelayAPI) Chats(ctx context.Context) (Result, error) {
	return r.send(ctx, CmdGetChats, nil)
}

func (r *RelayAPI) AddDefaultTribe(ctx context.Context, id uint16) (Result, error) {
	return r.send(ctx, CmdAddDefaultTribe, DefaultTribe{ID: id})
}

func (r *RelayAPI) RemoveDefaultTribe(ctx context.Context, id uint16) (Result, error) {
	return r.send(ctx, CmdRemoveDefaultTribe, DefaultTribe{ID: id})
}

func (r *RelayAPI) AuthToken(ctx context.Context) (Result, error) {
	return r.send(ctx, CmdGetToken, nil)
}

func (r *RelayAPI) Balance(ctx context.Context) (RelayBalance, error) {
	var out RelayBalance
	res, err := r.send(ctx, CmdGetBalance, nil)
	if err != nil {
		return out, err
	}
	err = res.Decode(&out)
	return out, err
}

type BitcoindAPI struct {
	c   *Client
	tag string
}

func (c *Client) Bitcoind(tag string) *BitcoindAPI { return &BitcoindAPI{c: c, tag: tag} }

func (b *BitcoindAPI) send(ctx context.Context, name CmdName, content any) (Result, error) {
	return b.c.Send(ctx, NewCommand(TypeBitcoind, name, content), b.tag)
}

func (b *BitcoindAPI) Info(ctx context.Context) (Result, error) {
	return b.send(ctx, CmdGetInfo, nil)
}

func (b *BitcoindAPI) Balance(ctx context.Context) (Result, error) {
	return b.send(ctx, CmdGetBalance, nil)
}

// Mine generates blocks on a regtest node, paying to address when set.
func (b *BitcoindAPI) Mine(ctx context.Context, blocks uint64, address string) (Result, error) {
	return b.send(ctx, CmdTestMine, TestMineRequest{Blocks: blocks, Address: address})
}

// ProxyBalance reports the balance held by the lightning proxy at tag.
func (c *Client) ProxyBalance(ctx context.Context, tag string) (ProxyBalance, error) {
	var out ProxyBalance
	res, err := c.Send(ctx, NewCommand(TypeProxy, CmdGetBalance, nil), tag)
	if err != nil {
		return out, err
	}
	err = res.Decode(&out)
	return out, err
}

// HsmdClients lists the clients connected to the signer at tag.
func (c *Client) HsmdClients(ctx context.Context, tag string) (Result, error) {
	return c.Send(ctx, NewCommand(TypeHsmd, CmdGetClients, nil), tag)
}
