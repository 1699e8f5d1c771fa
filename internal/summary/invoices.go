package summary

import (
	"context"
	"sort"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

// InvoiceAccumulator windows paid incoming invoices. Hold invoices from the
// secondary subsystem feed the same window through ProcessHold; they paginate
// by their own id space, so they carry a separate dedup set.
type InvoiceAccumulator struct {
	cutoff uint64
	oldest uint64

	filterAmountMsat int64

	accepted map[uint64]InvoiceEntry
	filtered map[uint64]struct{}
	holdSeen map[uint64]struct{}
	holdKept []InvoiceEntry

	stats  FilterStats
	totals *InvoiceTotals
}

func NewInvoiceAccumulator(now, cutoff uint64, filterAmountMsat int64) *InvoiceAccumulator {
	return &InvoiceAccumulator{
		cutoff:           cutoff,
		oldest:           now,
		filterAmountMsat: filterAmountMsat,
		accepted:         map[uint64]InvoiceEntry{},
		filtered:         map[uint64]struct{}{},
		holdSeen:         map[uint64]struct{}{},
	}
}

func (a *InvoiceAccumulator) OldestSeen() uint64 { return a.oldest }

func (a *InvoiceAccumulator) Process(ctx context.Context, inv clnrpc.Invoice) error {
	if inv.Status != "paid" || inv.PaidAt == nil {
		return nil
	}
	idx := inv.UpdatedIndex
	if _, ok := a.accepted[idx]; ok {
		return nil
	}
	if _, ok := a.filtered[idx]; ok {
		return nil
	}

	ts := *inv.PaidAt
	if ts < a.oldest {
		a.oldest = ts
	}
	if ts < a.cutoff {
		return nil
	}

	var received uint64
	if inv.AmountReceivedMsat != nil {
		received = uint64(*inv.AmountReceivedMsat)
	} else {
		return &IntegrityError{
			Domain: "invoice",
			Index:  idx,
			Reason: "paid invoice without received amount",
		}
	}

	if a.filterAmountMsat >= 0 && received <= uint64(a.filterAmountMsat) {
		a.filtered[idx] = struct{}{}
		a.stats.Count++
		a.stats.AmountMsat += received
		return nil
	}

	if a.totals == nil {
		a.totals = &InvoiceTotals{}
	}
	a.totals.Count++
	a.totals.ReceivedMsat += received

	a.accepted[idx] = InvoiceEntry{
		UpdateIndex:  idx,
		PaidAt:       ts,
		Label:        inv.Label,
		Description:  inv.Description,
		PaymentHash:  inv.PaymentHash,
		ReceivedMsat: received,
	}
	return nil
}

// ProcessHold folds one settled hold invoice into the window. Hold ids live
// in their own index space and never collide with listinvoices indices.
func (a *InvoiceAccumulator) ProcessHold(inv clnrpc.HoldInvoice) error {
	if inv.State != "settled" || inv.PaidAt == nil {
		return nil
	}
	if _, ok := a.holdSeen[inv.ID]; ok {
		return nil
	}
	a.holdSeen[inv.ID] = struct{}{}

	ts := *inv.PaidAt
	if ts < a.cutoff {
		return nil
	}
	if inv.AmountReceivedMsat == nil {
		return &IntegrityError{
			Domain: "hold invoice",
			Index:  inv.ID,
			Reason: "settled invoice without received amount",
		}
	}
	received := uint64(*inv.AmountReceivedMsat)

	if a.filterAmountMsat >= 0 && received <= uint64(a.filterAmountMsat) {
		a.stats.Count++
		a.stats.AmountMsat += received
		return nil
	}

	if a.totals == nil {
		a.totals = &InvoiceTotals{}
	}
	a.totals.Count++
	a.totals.ReceivedMsat += received

	a.holdKept = append(a.holdKept, InvoiceEntry{
		UpdateIndex:  inv.ID,
		PaidAt:       ts,
		Label:        inv.Label,
		Description:  inv.Description,
		PaymentHash:  inv.PaymentHash,
		ReceivedMsat: received,
		Hold:         true,
	})
	return nil
}

func (a *InvoiceAccumulator) FilterStats() FilterStats { return a.stats }

func (a *InvoiceAccumulator) Totals() *InvoiceTotals { return a.totals }

// Finalize merges both invoice sources, keeps the most recent limit entries
// and returns them ascending by settlement time. Hold entries count against
// the limit like any other invoice.
func (a *InvoiceAccumulator) Finalize(limit int) []InvoiceEntry {
	out := make([]InvoiceEntry, 0, len(a.accepted)+len(a.holdKept))
	for _, entry := range a.accepted {
		out = append(out, entry)
	}
	out = append(out, a.holdKept...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaidAt != out[j].PaidAt {
			return out[i].PaidAt < out[j].PaidAt
		}
		return out[i].UpdateIndex < out[j].UpdateIndex
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
