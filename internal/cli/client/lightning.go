package client

import "context"

// LightningAPI issues commands to one lightning node. Lnd and Cln share most
// operations; node-specific ones are rejected by Command.Validate when sent to
// the wrong implementation.
type LightningAPI struct {
	c   *Client
	typ CmdType
	tag string
}

// Lnd returns the command set for the lnd node routed by tag.
func (c *Client) Lnd(tag string) *LightningAPI {
	return &LightningAPI{c: c, typ: TypeLnd, tag: tag}
}

// Cln returns the command set for the core-lightning node routed by tag.
func (c *Client) Cln(tag string) *LightningAPI {
	return &LightningAPI{c: c, typ: TypeCln, tag: tag}
}

func (l *LightningAPI) send(ctx context.Context, name CmdName, content any) (Result, error) {
	return l.c.Send(ctx, NewCommand(l.typ, name, content), l.tag)
}

func (l *LightningAPI) Info(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdGetInfo, nil)
}

func (l *LightningAPI) ListChannels(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdListChannels, nil)
}

func (l *LightningAPI) ListPeerChannels(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdListPeerChannels, nil)
}

func (l *LightningAPI) ListPendingChannels(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdListPendingChannels, nil)
}

func (l *LightningAPI) ListPeers(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdListPeers, nil)
}

func (l *LightningAPI) ListFunds(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdListFunds, nil)
}

func (l *LightningAPI) AddPeer(ctx context.Context, pubkey, host, alias string) (Result, error) {
	return l.send(ctx, CmdAddPeer, AddPeerRequest{Pubkey: pubkey, Host: host, Alias: alias})
}

func (l *LightningAPI) OpenChannel(ctx context.Context, pubkey string, amount int64, satsPerByte uint64) (Result, error) {
	return l.send(ctx, CmdAddChannel, AddChannelRequest{Pubkey: pubkey, Amount: amount, SatsPerByte: satsPerByte})
}

func (l *LightningAPI) CloseChannel(ctx context.Context, id, destination string) (Result, error) {
	return l.send(ctx, CmdCloseChannel, CloseChannelRequest{ID: id, Destination: destination})
}

func (l *LightningAPI) NewAddress(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdNewAddress, nil)
}

func (l *LightningAPI) Balance(ctx context.Context) (Result, error) {
	return l.send(ctx, CmdGetBalance, nil)
}

func (l *LightningAPI) AddInvoice(ctx context.Context, sats int64) (Result, error) {
	return l.send(ctx, CmdAddInvoice, AddInvoiceRequest{AmtPaidSat: sats})
}

func (l *LightningAPI) PayInvoice(ctx context.Context, bolt11 string) (Result, error) {
	return l.send(ctx, CmdPayInvoice, PayInvoiceRequest{PaymentRequest: bolt11})
}

func (l *LightningAPI) Keysend(ctx context.Context, req KeysendRequest) (Result, error) {
	return l.send(ctx, CmdPayKeysend, req)
}

func (l *LightningAPI) ListPayments(ctx context.Context) (Result, error) {
	if l.typ == TypeCln {
		return l.send(ctx, CmdListPays, nil)
	}
	return l.send(ctx, CmdListPayments, nil)
}

// ListInvoices lists invoices. Cln accepts a payment hash filter; lnd ignores
// it.
func (l *LightningAPI) ListInvoices(ctx context.Context, paymentHash string) (Result, error) {
	var content any
	if paymentHash != "" && l.typ == TypeCln {
		content = InvoiceFilter{PaymentHash: paymentHash}
	}
	return l.send(ctx, CmdListInvoices, content)
}

// ListPays lists outgoing payments on cln, optionally filtered by hash.
func (l *LightningAPI) ListPays(ctx context.Context, paymentHash string) (Result, error) {
	var content any
	if paymentHash != "" {
		content = InvoiceFilter{PaymentHash: paymentHash}
	}
	return l.send(ctx, CmdListPays, content)
}
