package summary

import (
	"context"
	"sort"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

// ChannelAliasFunc resolves the peer alias behind a short channel id.
// Lookup failures abort the walk.
type ChannelAliasFunc func(ctx context.Context, shortChannelID string) (string, error)

// ForwardAccumulator turns the paged forward stream into a deduplicated,
// time-bounded result with running totals and filter statistics.
type ForwardAccumulator struct {
	cutoff uint64
	oldest uint64

	resolveAlias ChannelAliasFunc

	// thresholds in msat, negative disables the filter
	filterAmountMsat int64
	filterFeeMsat    int64

	accepted map[uint64]ForwardEntry
	filtered map[uint64]struct{}

	stats  FilterStats
	totals *ForwardTotals
}

func NewForwardAccumulator(now, cutoff uint64, filterAmountMsat, filterFeeMsat int64, resolveAlias ChannelAliasFunc) *ForwardAccumulator {
	return &ForwardAccumulator{
		cutoff:           cutoff,
		oldest:           now,
		resolveAlias:     resolveAlias,
		filterAmountMsat: filterAmountMsat,
		filterFeeMsat:    filterFeeMsat,
		accepted:         map[uint64]ForwardEntry{},
		filtered:         map[uint64]struct{}{},
	}
}

func (a *ForwardAccumulator) OldestSeen() uint64 { return a.oldest }

func (a *ForwardAccumulator) Process(ctx context.Context, fw clnrpc.Forward) error {
	if fw.Status != "settled" || fw.ResolvedTime == nil {
		return nil
	}
	idx := fw.UpdatedIndex
	if _, ok := a.accepted[idx]; ok {
		return nil
	}
	if _, ok := a.filtered[idx]; ok {
		return nil
	}

	ts := uint64(*fw.ResolvedTime)
	if ts < a.oldest {
		a.oldest = ts
	}
	if ts < a.cutoff {
		return nil
	}

	ppm, err := EffectiveFeePPM("forward", idx, uint64(fw.InMsat), uint64(fw.OutMsat))
	if err != nil {
		return err
	}
	inAlias, err := a.resolveAlias(ctx, fw.InChannel)
	if err != nil {
		return err
	}
	outAlias, err := a.resolveAlias(ctx, fw.OutChannel)
	if err != nil {
		return err
	}

	if a.filteredOut(uint64(fw.OutMsat), uint64(fw.FeeMsat)) {
		a.filtered[idx] = struct{}{}
		a.stats.Count++
		a.stats.AmountMsat += uint64(fw.OutMsat)
		a.stats.FeeMsat += uint64(fw.FeeMsat)
		return nil
	}

	if a.totals == nil {
		a.totals = &ForwardTotals{}
	}
	a.totals.Count++
	a.totals.InMsat += uint64(fw.InMsat)
	a.totals.OutMsat += uint64(fw.OutMsat)
	a.totals.FeeMsat += uint64(fw.FeeMsat)

	a.accepted[idx] = ForwardEntry{
		UpdateIndex: idx,
		ResolvedAt:  ts,
		InChannel:   fw.InChannel,
		OutChannel:  fw.OutChannel,
		InAlias:     inAlias,
		OutAlias:    outAlias,
		InMsat:      uint64(fw.InMsat),
		OutMsat:     uint64(fw.OutMsat),
		FeeMsat:     uint64(fw.FeeMsat),
		FeePPM:      ppm,
	}
	return nil
}

func (a *ForwardAccumulator) filteredOut(amountMsat, feeMsat uint64) bool {
	if a.filterAmountMsat >= 0 && amountMsat <= uint64(a.filterAmountMsat) {
		return true
	}
	if a.filterFeeMsat >= 0 && feeMsat <= uint64(a.filterFeeMsat) {
		return true
	}
	return false
}

func (a *ForwardAccumulator) FilterStats() FilterStats { return a.stats }

func (a *ForwardAccumulator) Totals() *ForwardTotals { return a.totals }

// Finalize applies the configured limit (most recent by index) and returns
// the result ordered by settlement time ascending. The accumulator must not
// be fed again afterwards.
func (a *ForwardAccumulator) Finalize(limit int) []ForwardEntry {
	out := make([]ForwardEntry, 0, len(a.accepted))
	for _, entry := range a.accepted {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdateIndex < out[j].UpdateIndex })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResolvedAt != out[j].ResolvedAt {
			return out[i].ResolvedAt < out[j].ResolvedAt
		}
		return out[i].UpdateIndex < out[j].UpdateIndex
	})
	return out
}
