package summary

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"
)

// AvailabilityFunc reports the smoothed availability of a peer in [0,1], or
// -1 when the peer has never been observed.
type AvailabilityFunc func(peerID string) float64

// Options is the validated report configuration. Window sizes of zero
// disable their domain. Negative filter thresholds disable the filter.
type Options struct {
	ForwardHours int
	PayHours     int
	InvoiceHours int

	PageSize uint32

	MaxForwards int
	MaxPays     int
	MaxInvoices int

	FilterAmountMsat int64
	FilterFeeMsat    int64

	ShowSelfPays bool
	PingPeers    bool

	SortBy   SortColumn
	SortDesc bool
}

// Engine builds reports. The availability function and hold tracker are
// optional; the engine never writes availability state.
type Engine struct {
	rpc    NodeRPC
	opts   Options
	avail  AvailabilityFunc
	hold   *HoldTracker
	logger *log.Logger

	// test seam, defaults to time.Now
	now func() time.Time
}

func NewEngine(rpc NodeRPC, opts Options, avail AvailabilityFunc, hold *HoldTracker, logger *log.Logger) *Engine {
	return &Engine{
		rpc:    rpc,
		opts:   opts,
		avail:  avail,
		hold:   hold,
		logger: logger,
		now:    time.Now,
	}
}

// Run drives the whole report: channel snapshot, one window walk per enabled
// domain in sequence, then the optional probe sweep. Any RPC or integrity
// error aborts with no partial output.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	now := e.now().UTC()
	nowUnix := uint64(now.Unix())

	info, err := e.rpc.GetInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: getinfo: %w", err)
	}
	channels, err := e.rpc.ListPeerChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("summary: channels: %w", err)
	}

	scidToPeer := map[string]string{}
	rows := make([]ChannelRow, 0, len(channels))
	for _, ch := range channels {
		if ch.ShortChannelID != "" {
			scidToPeer[ch.ShortChannelID] = ch.PeerID
		}
		alias, err := e.rpc.NodeAlias(ctx, ch.PeerID)
		if err != nil {
			return nil, fmt.Errorf("summary: alias %s: %w", ch.PeerID, err)
		}
		uptime := -1.0
		if e.avail != nil {
			if avail := e.avail(ch.PeerID); avail >= 0 {
				uptime = avail * 100
			}
		}
		rows = append(rows, ChannelRow{
			PeerID:         ch.PeerID,
			Alias:          alias,
			ShortChannelID: ch.ShortChannelID,
			State:          ch.State,
			Connected:      ch.PeerConnected,
			Private:        ch.Private,
			TotalMsat:      uint64(ch.TotalMsat),
			ToUsMsat:       uint64(ch.ToUsMsat),
			FeeBaseMsat:    uint64(ch.FeeBaseMsat),
			FeePPM:         ch.FeePPM,
			PendingHTLCs:   len(ch.HTLCs),
			UptimePct:      uptime,
		})
	}

	report := &Report{
		NodeID:      info.ID,
		NodeAlias:   info.Alias,
		GeneratedAt: now,
	}

	channelAlias := func(ctx context.Context, scid string) (string, error) {
		peer, ok := scidToPeer[scid]
		if !ok {
			return "UNKNOWN", nil
		}
		return e.rpc.NodeAlias(ctx, peer)
	}

	if e.opts.ForwardHours > 0 {
		cutoff := nowUnix - uint64(e.opts.ForwardHours)*3600
		acc := NewForwardAccumulator(nowUnix, cutoff, e.opts.FilterAmountMsat, e.opts.FilterFeeMsat, channelAlias)
		if err := Walk(ctx, forwardSource{e.rpc}, acc, e.opts.PageSize, cutoff); err != nil {
			return nil, fmt.Errorf("summary: forwards: %w", err)
		}
		report.Forwards = acc.Finalize(e.opts.MaxForwards)
		report.ForwardTotals = acc.Totals()
		report.ForwardsFiltered = acc.FilterStats()
	}

	if e.opts.PayHours > 0 {
		cutoff := nowUnix - uint64(e.opts.PayHours)*3600
		acc := NewPayAccumulator(nowUnix, cutoff, info.ID, e.opts.ShowSelfPays, e.rpc, e.rpc.NodeAlias)
		if err := Walk(ctx, paySource{e.rpc}, acc, e.opts.PageSize, cutoff); err != nil {
			return nil, fmt.Errorf("summary: pays: %w", err)
		}
		report.Pays = acc.Finalize(e.opts.MaxPays)
		report.PayTotals = acc.Totals()
		report.PaysFiltered = acc.FilterStats()
	}

	if e.opts.InvoiceHours > 0 {
		cutoff := nowUnix - uint64(e.opts.InvoiceHours)*3600
		acc := NewInvoiceAccumulator(nowUnix, cutoff, e.opts.FilterAmountMsat)
		if err := Walk(ctx, invoiceSource{e.rpc}, acc, e.opts.PageSize, cutoff); err != nil {
			return nil, fmt.Errorf("summary: invoices: %w", err)
		}
		if e.hold != nil {
			if err := e.hold.Collect(ctx, e.rpc, cutoff, acc); err != nil {
				return nil, fmt.Errorf("summary: hold invoices: %w", err)
			}
		}
		report.Invoices = acc.Finalize(e.opts.MaxInvoices)
		report.InvoiceTotals = acc.Totals()
		report.InvoicesFiltered = acc.FilterStats()
	}

	if e.opts.PingPeers {
		results := SweepPeers(ctx, e.rpc, distinctPeers(rows), e.logger)
		rows = MergeLatency(rows, results)
	}

	SortChannels(rows, e.opts.SortBy, e.opts.SortDesc)
	report.Channels = rows
	return report, nil
}

func distinctPeers(rows []ChannelRow) []string {
	seen := map[string]struct{}{}
	peers := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.PeerID]; ok {
			continue
		}
		seen[row.PeerID] = struct{}{}
		peers = append(peers, row.PeerID)
	}
	sort.Strings(peers)
	return peers
}
