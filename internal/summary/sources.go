package summary

import (
	"context"
	"time"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

// NodeRPC is the slice of the node client the report engine consumes.
// *clnrpc.Client satisfies it.
type NodeRPC interface {
	GetInfo(ctx context.Context) (clnrpc.Info, error)
	ListPeerChannels(ctx context.Context) ([]clnrpc.PeerChannel, error)
	WaitIndex(ctx context.Context, subsystem string) (uint64, error)
	ListForwardsPage(ctx context.Context, status string, start uint64, limit uint32) ([]clnrpc.Forward, error)
	ListSendPaysPage(ctx context.Context, status string, start uint64, limit uint32) ([]clnrpc.Pay, error)
	ListInvoicesPage(ctx context.Context, start uint64, limit uint32) ([]clnrpc.Invoice, error)
	ListHoldInvoices(ctx context.Context, start uint64, limit uint32) ([]clnrpc.HoldInvoice, error)
	NodeAlias(ctx context.Context, nodeID string) (string, error)
	DecodePay(ctx context.Context, bolt11 string) (clnrpc.DecodedPay, error)
	Probe(ctx context.Context, peerID string) (time.Duration, error)
}

type forwardSource struct {
	rpc NodeRPC
}

func (s forwardSource) Tip(ctx context.Context) (uint64, error) {
	return s.rpc.WaitIndex(ctx, "forwards")
}

func (s forwardSource) Page(ctx context.Context, start uint64, limit uint32) ([]clnrpc.Forward, error) {
	return s.rpc.ListForwardsPage(ctx, "settled", start, limit)
}

type paySource struct {
	rpc NodeRPC
}

func (s paySource) Tip(ctx context.Context) (uint64, error) {
	return s.rpc.WaitIndex(ctx, "sendpays")
}

func (s paySource) Page(ctx context.Context, start uint64, limit uint32) ([]clnrpc.Pay, error) {
	return s.rpc.ListSendPaysPage(ctx, "complete", start, limit)
}

type invoiceSource struct {
	rpc NodeRPC
}

func (s invoiceSource) Tip(ctx context.Context) (uint64, error) {
	return s.rpc.WaitIndex(ctx, "invoices")
}

func (s invoiceSource) Page(ctx context.Context, start uint64, limit uint32) ([]clnrpc.Invoice, error) {
	return s.rpc.ListInvoicesPage(ctx, start, limit)
}
