package clnrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// Alias sentinels. NoAlias means the node is known to gossip but has not
	// published an alias; UnknownNode means gossip has never seen it.
	NoAlias     = "NO_ALIAS"
	UnknownNode = "UNKNOWN"

	methodNotFoundCode = -32601

	infoCacheTTL = 30 * time.Second
)

// ErrHoldUnavailable is returned when the node does not offer the
// hold-invoice subsystem.
var ErrHoldUnavailable = errors.New("hold invoice subsystem unavailable")

// RPCError is a JSON-RPC error object returned by lightningd.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client talks to lightningd over its JSON-RPC unix socket. Every call opens
// its own connection, so concurrent callers never share a stream.
type Client struct {
	rpcPath string
	logger  *log.Logger

	nextID atomic.Uint64

	infoMu    sync.Mutex
	infoCache Info
	infoAt    time.Time

	aliasMu sync.Mutex
	aliases map[string]string
}

func New(rpcPath string, logger *log.Logger) *Client {
	return &Client{
		rpcPath: rpcPath,
		logger:  logger,
		aliases: map[string]string{},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params any, result any) error {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", c.rpcPath)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.rpcPath, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if params == nil {
		params = struct{}{}
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("%s: send: %w", method, err)
	}

	var resp rpcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("%s: receive: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) GetInfo(ctx context.Context) (Info, error) {
	c.infoMu.Lock()
	if !c.infoAt.IsZero() && time.Since(c.infoAt) < infoCacheTTL {
		cached := c.infoCache
		c.infoMu.Unlock()
		return cached, nil
	}
	c.infoMu.Unlock()

	var info Info
	if err := c.call(ctx, "getinfo", nil, &info); err != nil {
		return Info{}, err
	}

	c.infoMu.Lock()
	c.infoCache = info
	c.infoAt = time.Now()
	c.infoMu.Unlock()
	return info, nil
}

func (c *Client) ListPeerChannels(ctx context.Context) ([]PeerChannel, error) {
	var resp struct {
		Channels []PeerChannel `json:"channels"`
	}
	if err := c.call(ctx, "listpeerchannels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// WaitIndex returns the current maximum updated index of a subsystem
// (forwards, sendpays, invoices). A nextvalue of 0 makes wait return
// immediately with the current value instead of blocking.
func (c *Client) WaitIndex(ctx context.Context, subsystem string) (uint64, error) {
	params := map[string]any{
		"subsystem": subsystem,
		"indexname": "updated",
		"nextvalue": 0,
	}
	var resp struct {
		Updated uint64 `json:"updated"`
	}
	if err := c.call(ctx, "wait", params, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (c *Client) ListForwardsPage(ctx context.Context, status string, start uint64, limit uint32) ([]Forward, error) {
	params := map[string]any{
		"status": status,
		"index":  "updated",
		"start":  start,
		"limit":  limit,
	}
	var resp struct {
		Forwards []Forward `json:"forwards"`
	}
	if err := c.call(ctx, "listforwards", params, &resp); err != nil {
		return nil, err
	}
	return resp.Forwards, nil
}

func (c *Client) ListSendPaysPage(ctx context.Context, status string, start uint64, limit uint32) ([]Pay, error) {
	params := map[string]any{
		"status": status,
		"index":  "updated",
		"start":  start,
		"limit":  limit,
	}
	var resp struct {
		Payments []Pay `json:"payments"`
	}
	if err := c.call(ctx, "listsendpays", params, &resp); err != nil {
		return nil, err
	}
	return resp.Payments, nil
}

func (c *Client) ListInvoicesPage(ctx context.Context, start uint64, limit uint32) ([]Invoice, error) {
	params := map[string]any{
		"index": "updated",
		"start": start,
		"limit": limit,
	}
	var resp struct {
		Invoices []Invoice `json:"invoices"`
	}
	if err := c.call(ctx, "listinvoices", params, &resp); err != nil {
		return nil, err
	}
	return resp.Invoices, nil
}

// ListHoldInvoices pages the hold-invoice subsystem by id. Nodes without the
// subsystem yield ErrHoldUnavailable.
func (c *Client) ListHoldInvoices(ctx context.Context, start uint64, limit uint32) ([]HoldInvoice, error) {
	params := map[string]any{
		"index_start": start,
		"limit":       limit,
	}
	var resp struct {
		Invoices []HoldInvoice `json:"invoices"`
	}
	if err := c.call(ctx, "listholdinvoices", params, &resp); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == methodNotFoundCode {
			return nil, ErrHoldUnavailable
		}
		return nil, err
	}
	return resp.Invoices, nil
}

// NodeAlias resolves a peer alias through gossip, caching results for the
// lifetime of the client. The sentinels NoAlias and UnknownNode are cached
// like real aliases.
func (c *Client) NodeAlias(ctx context.Context, nodeID string) (string, error) {
	c.aliasMu.Lock()
	if alias, ok := c.aliases[nodeID]; ok {
		c.aliasMu.Unlock()
		return alias, nil
	}
	c.aliasMu.Unlock()

	params := map[string]any{"id": nodeID}
	var resp struct {
		Nodes []NodeInfo `json:"nodes"`
	}
	if err := c.call(ctx, "listnodes", params, &resp); err != nil {
		return "", err
	}

	alias := UnknownNode
	if len(resp.Nodes) > 0 {
		alias = NoAlias
		if resp.Nodes[0].Alias != nil && *resp.Nodes[0].Alias != "" {
			alias = *resp.Nodes[0].Alias
		}
	}

	c.aliasMu.Lock()
	c.aliases[nodeID] = alias
	c.aliasMu.Unlock()
	return alias, nil
}

func (c *Client) DecodePay(ctx context.Context, bolt11 string) (DecodedPay, error) {
	params := map[string]any{"bolt11": bolt11}
	var decoded DecodedPay
	if err := c.call(ctx, "decodepay", params, &decoded); err != nil {
		return DecodedPay{}, err
	}
	return decoded, nil
}

// Probe measures the round-trip time of one ping to a connected peer. The
// connection is private to this call, so concurrent probes never interleave.
func (c *Client) Probe(ctx context.Context, peerID string) (time.Duration, error) {
	params := map[string]any{"id": peerID}
	var resp struct {
		TotLen uint32 `json:"totlen"`
	}
	started := time.Now()
	if err := c.call(ctx, "ping", params, &resp); err != nil {
		return 0, err
	}
	return time.Since(started), nil
}
