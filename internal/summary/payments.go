package summary

import (
	"context"
	"sort"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

// PayDecoder recovers destination and amount from a bolt11 string when the
// payment record itself lacks them.
type PayDecoder interface {
	DecodePay(ctx context.Context, bolt11 string) (clnrpc.DecodedPay, error)
}

// NodeAliasFunc resolves a node id to its gossip alias.
type NodeAliasFunc func(ctx context.Context, nodeID string) (string, error)

// PayAccumulator windows completed outgoing payments. Payments to the local
// node (self-pays) are totalled separately and, unless showSelfPays is set,
// excluded from the result through the filter path.
type PayAccumulator struct {
	cutoff uint64
	oldest uint64

	ourID        string
	showSelfPays bool

	decoder      PayDecoder
	resolveAlias NodeAliasFunc
	decodeCache  map[string]clnrpc.DecodedPay

	accepted map[uint64]PayEntry
	filtered map[uint64]struct{}

	stats  FilterStats
	totals *PayTotals
}

func NewPayAccumulator(now, cutoff uint64, ourID string, showSelfPays bool, decoder PayDecoder, resolveAlias NodeAliasFunc) *PayAccumulator {
	return &PayAccumulator{
		cutoff:       cutoff,
		oldest:       now,
		ourID:        ourID,
		showSelfPays: showSelfPays,
		decoder:      decoder,
		resolveAlias: resolveAlias,
		decodeCache:  map[string]clnrpc.DecodedPay{},
		accepted:     map[uint64]PayEntry{},
		filtered:     map[uint64]struct{}{},
	}
}

func (a *PayAccumulator) OldestSeen() uint64 { return a.oldest }

func (a *PayAccumulator) Process(ctx context.Context, pay clnrpc.Pay) error {
	if pay.Status != "complete" || pay.CompletedAt == nil {
		return nil
	}
	idx := pay.UpdatedIndex
	if _, ok := a.accepted[idx]; ok {
		return nil
	}
	if _, ok := a.filtered[idx]; ok {
		return nil
	}

	ts := *pay.CompletedAt
	if ts < a.oldest {
		a.oldest = ts
	}
	// Payments use the strict bound: a record on the cutoff itself is out.
	if ts <= a.cutoff {
		return nil
	}

	dest := pay.Destination
	description := pay.Description
	var amountMsat uint64
	if pay.AmountMsat != nil {
		amountMsat = uint64(*pay.AmountMsat)
	}
	if (dest == "" || pay.AmountMsat == nil) && pay.Bolt11 != "" {
		decoded, err := a.decode(ctx, pay.Bolt11)
		if err != nil {
			return err
		}
		if dest == "" {
			dest = decoded.Destination
		}
		if pay.AmountMsat == nil && decoded.AmountMsat != nil {
			amountMsat = uint64(*decoded.AmountMsat)
		}
		if description == "" {
			description = decoded.Description
		}
	}

	sentMsat := uint64(pay.AmountSentMsat)
	if sentMsat < amountMsat {
		return &IntegrityError{
			Domain: "pay",
			Index:  idx,
			Reason: "sent amount below requested amount",
		}
	}
	feeMsat := sentMsat - amountMsat
	selfPay := dest != "" && dest == a.ourID

	if a.totals == nil {
		a.totals = &PayTotals{}
	}
	if selfPay {
		a.totals.SelfCount++
		a.totals.SelfAmountMsat += amountMsat
		a.totals.SelfSentMsat += sentMsat
		a.totals.SelfFeeMsat += feeMsat
	} else {
		a.totals.Count++
		a.totals.AmountMsat += amountMsat
		a.totals.SentMsat += sentMsat
		a.totals.FeeMsat += feeMsat
	}

	if selfPay && !a.showSelfPays {
		a.filtered[idx] = struct{}{}
		a.stats.Count++
		a.stats.AmountMsat += amountMsat
		a.stats.FeeMsat += feeMsat
		return nil
	}

	alias := ""
	if dest != "" {
		resolved, err := a.resolveAlias(ctx, dest)
		if err != nil {
			return err
		}
		alias = resolved
	}

	a.accepted[idx] = PayEntry{
		UpdateIndex:      idx,
		CompletedAt:      ts,
		PaymentHash:      pay.PaymentHash,
		Destination:      dest,
		DestinationAlias: alias,
		AmountMsat:       amountMsat,
		AmountSentMsat:   sentMsat,
		FeeMsat:          feeMsat,
		SelfPay:          selfPay,
		Description:      description,
	}
	return nil
}

func (a *PayAccumulator) decode(ctx context.Context, bolt11 string) (clnrpc.DecodedPay, error) {
	if cached, ok := a.decodeCache[bolt11]; ok {
		return cached, nil
	}
	decoded, err := a.decoder.DecodePay(ctx, bolt11)
	if err != nil {
		return clnrpc.DecodedPay{}, err
	}
	a.decodeCache[bolt11] = decoded
	return decoded, nil
}

func (a *PayAccumulator) FilterStats() FilterStats { return a.stats }

func (a *PayAccumulator) Totals() *PayTotals { return a.totals }

func (a *PayAccumulator) Finalize(limit int) []PayEntry {
	out := make([]PayEntry, 0, len(a.accepted))
	for _, entry := range a.accepted {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdateIndex < out[j].UpdateIndex })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CompletedAt != out[j].CompletedAt {
			return out[i].CompletedAt < out[j].CompletedAt
		}
		return out[i].UpdateIndex < out[j].UpdateIndex
	})
	return out
}
