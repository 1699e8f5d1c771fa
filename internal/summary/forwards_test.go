package summary

import (
	"context"
	"errors"
	"testing"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

func staticAlias(alias string) ChannelAliasFunc {
	return func(ctx context.Context, scid string) (string, error) {
		return alias, nil
	}
}

func settledForward(index uint64, ts uint64, inMsat, outMsat uint64) clnrpc.Forward {
	resolved := float64(ts)
	return clnrpc.Forward{
		UpdatedIndex: index,
		InChannel:    "100x1x0",
		OutChannel:   "200x1x0",
		InMsat:       clnrpc.MilliSat(inMsat),
		OutMsat:      clnrpc.MilliSat(outMsat),
		FeeMsat:      clnrpc.MilliSat(inMsat - outMsat),
		Status:       "settled",
		ResolvedTime: &resolved,
	}
}

func TestEffectiveFeePPM(t *testing.T) {
	ppm, err := EffectiveFeePPM("forward", 1, 1000, 900)
	if err != nil {
		t.Fatalf("expected no error: %v", err)
	}
	if ppm != 111112 {
		t.Fatalf("expected 111112 ppm, got %d", ppm)
	}

	ppm, err = EffectiveFeePPM("forward", 2, 900, 900)
	if err != nil {
		t.Fatalf("expected no error for zero fee: %v", err)
	}
	if ppm != 0 {
		t.Fatalf("expected 0 ppm, got %d", ppm)
	}
}

func TestEffectiveFeePPMLargeAmounts(t *testing.T) {
	// fee large enough that a 64-bit product of fee and one million wraps
	ppm, err := EffectiveFeePPM("forward", 3, 21_000_000_000_000, 1_000_000_000_000)
	if err != nil {
		t.Fatalf("expected no error: %v", err)
	}
	if ppm != 20_000_000 {
		t.Fatalf("expected 20000000 ppm, got %d", ppm)
	}

	ppm, err = EffectiveFeePPM("forward", 4, 20_000_001_000_000_000, 1_000_000_000)
	if err != nil {
		t.Fatalf("expected no error: %v", err)
	}
	if ppm != 20_000_000_000_000 {
		t.Fatalf("expected 20000000000000 ppm, got %d", ppm)
	}
}

func TestEffectiveFeePPMUnrepresentableRate(t *testing.T) {
	_, err := EffectiveFeePPM("forward", 9, ^uint64(0), 1)
	if err == nil {
		t.Fatal("expected error for a rate beyond 64 bits")
	}
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %T", err)
	}
}

func TestEffectiveFeePPMIntegrityViolation(t *testing.T) {
	_, err := EffectiveFeePPM("forward", 7, 900, 1000)
	if err == nil {
		t.Fatalf("expected integrity error")
	}
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %T", err)
	}
	if integrity.Index != 7 || integrity.Domain != "forward" {
		t.Fatalf("unexpected error detail: %+v", integrity)
	}
}

func TestForwardAccumulatorAcceptAndDedup(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 24*3600
	acc := NewForwardAccumulator(now, cutoff, -1, -1, staticAlias("peer"))

	fw := settledForward(5, now-100, 1000, 900)
	for i := 0; i < 3; i++ {
		if err := acc.Process(context.Background(), fw); err != nil {
			t.Fatalf("process failed: %v", err)
		}
	}

	entries := acc.Finalize(0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after dedup, got %d", len(entries))
	}
	if entries[0].FeePPM != 111112 {
		t.Fatalf("expected 111112 ppm, got %d", entries[0].FeePPM)
	}
	totals := acc.Totals()
	if totals == nil || totals.Count != 1 || totals.FeeMsat != 100 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestForwardAccumulatorIntegrityErrorSurfaces(t *testing.T) {
	now := uint64(1_700_000_000)
	acc := NewForwardAccumulator(now, now-3600, -1, -1, staticAlias("peer"))

	resolved := float64(now - 100)
	err := acc.Process(context.Background(), clnrpc.Forward{
		UpdatedIndex: 1,
		InMsat:       900,
		OutMsat:      1000,
		Status:       "settled",
		ResolvedTime: &resolved,
	})
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

func TestForwardAccumulatorSkipsUnsettled(t *testing.T) {
	now := uint64(1_700_000_000)
	acc := NewForwardAccumulator(now, now-3600, -1, -1, staticAlias("peer"))

	if err := acc.Process(context.Background(), clnrpc.Forward{UpdatedIndex: 1, Status: "offered"}); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(acc.Finalize(0)) != 0 {
		t.Fatalf("unsettled forward must be invisible")
	}
	if acc.Totals() != nil {
		t.Fatalf("totals must stay absent without contributors")
	}
	if acc.OldestSeen() != now {
		t.Fatalf("unsettled forward must not move oldest seen")
	}
}

func TestForwardAccumulatorWindowBoundaryKeepsTies(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 24*3600
	acc := NewForwardAccumulator(now, cutoff, -1, -1, staticAlias("peer"))

	if err := acc.Process(context.Background(), settledForward(1, cutoff, 1000, 900)); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if err := acc.Process(context.Background(), settledForward(2, cutoff-1, 1000, 900)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	entries := acc.Finalize(0)
	if len(entries) != 1 || entries[0].UpdateIndex != 1 {
		t.Fatalf("expected only the tie at the cutoff, got %+v", entries)
	}
	if stats := acc.FilterStats(); stats.Count != 0 {
		t.Fatalf("out-of-window records must not count as filtered: %+v", stats)
	}
}

func TestForwardAccumulatorFilters(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 24*3600
	// drop forwards moving at most 1000 msat out
	acc := NewForwardAccumulator(now, cutoff, 1000, -1, staticAlias("peer"))

	if err := acc.Process(context.Background(), settledForward(1, now-10, 1100, 1000)); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if err := acc.Process(context.Background(), settledForward(2, now-20, 6000, 5000)); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	entries := acc.Finalize(0)
	if len(entries) != 1 || entries[0].UpdateIndex != 2 {
		t.Fatalf("expected only the large forward, got %+v", entries)
	}
	stats := acc.FilterStats()
	if stats.Count != 1 || stats.AmountMsat != 1000 || stats.FeeMsat != 100 {
		t.Fatalf("unexpected filter stats: %+v", stats)
	}
	totals := acc.Totals()
	if totals == nil || totals.Count != 1 || totals.OutMsat != 5000 {
		t.Fatalf("filtered forward leaked into totals: %+v", totals)
	}

	// a filtered index stays filtered on re-processing
	if err := acc.Process(context.Background(), settledForward(1, now-10, 1100, 1000)); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if stats := acc.FilterStats(); stats.Count != 1 {
		t.Fatalf("filtered index was re-evaluated: %+v", stats)
	}
}

func TestForwardAccumulatorLimitKeepsMostRecent(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 24*3600
	acc := NewForwardAccumulator(now, cutoff, -1, -1, staticAlias("peer"))

	for idx := uint64(1); idx <= 10; idx++ {
		if err := acc.Process(context.Background(), settledForward(idx, now-1000+idx, 1000, 900)); err != nil {
			t.Fatalf("process failed: %v", err)
		}
	}

	entries := acc.Finalize(3)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].UpdateIndex != 8 || entries[2].UpdateIndex != 10 {
		t.Fatalf("expected the newest three ascending, got %+v", entries)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ResolvedAt > entries[i].ResolvedAt {
			t.Fatalf("entries not sorted by timestamp")
		}
	}
}

type forwardListSource struct {
	forwards []clnrpc.Forward
}

func (s forwardListSource) Tip(ctx context.Context) (uint64, error) {
	var tip uint64
	for _, fw := range s.forwards {
		if fw.UpdatedIndex > tip {
			tip = fw.UpdatedIndex
		}
	}
	return tip, nil
}

func (s forwardListSource) Page(ctx context.Context, start uint64, limit uint32) ([]clnrpc.Forward, error) {
	var out []clnrpc.Forward
	for _, fw := range s.forwards {
		if fw.UpdatedIndex >= start && fw.UpdatedIndex < start+uint64(limit) {
			out = append(out, fw)
		}
	}
	return out, nil
}

func TestForwardWindowIndependentOfPageSize(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 24*3600

	src := forwardListSource{}
	for idx := uint64(1); idx <= 500; idx++ {
		// the newer half is inside the window, the rest outside
		ts := now - 48*3600
		if idx > 250 {
			ts = now - uint64(500-idx)*60
		}
		src.forwards = append(src.forwards, settledForward(idx, ts, 2000, 1900))
	}

	run := func(pageSize uint32) ([]ForwardEntry, FilterStats, *ForwardTotals) {
		acc := NewForwardAccumulator(now, cutoff, -1, -1, staticAlias("peer"))
		if err := Walk[clnrpc.Forward](context.Background(), src, acc, pageSize, cutoff); err != nil {
			t.Fatalf("walk page=%d failed: %v", pageSize, err)
		}
		return acc.Finalize(0), acc.FilterStats(), acc.Totals()
	}

	smallEntries, smallStats, smallTotals := run(5)
	largeEntries, largeStats, largeTotals := run(500)

	if len(smallEntries) != len(largeEntries) {
		t.Fatalf("accepted sets differ: %d vs %d", len(smallEntries), len(largeEntries))
	}
	for i := range smallEntries {
		if smallEntries[i].UpdateIndex != largeEntries[i].UpdateIndex {
			t.Fatalf("entry %d differs: %d vs %d", i, smallEntries[i].UpdateIndex, largeEntries[i].UpdateIndex)
		}
	}
	if smallStats != largeStats {
		t.Fatalf("filter stats differ: %+v vs %+v", smallStats, largeStats)
	}
	if smallTotals == nil || largeTotals == nil || *smallTotals != *largeTotals {
		t.Fatalf("totals differ: %+v vs %+v", smallTotals, largeTotals)
	}
}
