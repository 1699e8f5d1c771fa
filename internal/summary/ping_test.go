package summary

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

type fakeProber struct {
	rtt      map[string]time.Duration
	fail     map[string]bool
	inFlight atomic.Int64
	maxSeen  atomic.Int64
}

func (p *fakeProber) Probe(ctx context.Context, peerID string) (time.Duration, error) {
	current := p.inFlight.Add(1)
	for {
		seen := p.maxSeen.Load()
		if current <= seen || p.maxSeen.CompareAndSwap(seen, current) {
			break
		}
	}
	defer p.inFlight.Add(-1)

	time.Sleep(2 * time.Millisecond)
	if p.fail[peerID] {
		return 0, errors.New("unable to connect")
	}
	if rtt, ok := p.rtt[peerID]; ok {
		return rtt, nil
	}
	return 25 * time.Millisecond, nil
}

func TestProbeConcurrency(t *testing.T) {
	if got := probeConcurrency(3); got != 5 {
		t.Fatalf("expected floor of 5, got %d", got)
	}
	if got := probeConcurrency(50); got != 5 {
		t.Fatalf("expected 5 for 50 peers, got %d", got)
	}
	if got := probeConcurrency(120); got != 12 {
		t.Fatalf("expected 12 for 120 peers, got %d", got)
	}
}

func TestSweepPeersCompleteness(t *testing.T) {
	prober := &fakeProber{
		rtt:  map[string]time.Duration{"peer0": 40 * time.Millisecond},
		fail: map[string]bool{"peer1": true},
	}
	peers := []string{"peer0", "peer1", "peer2"}

	results := SweepPeers(context.Background(), prober, peers, nil)
	if len(results) != len(peers) {
		t.Fatalf("expected a result per peer, got %d", len(results))
	}
	if results["peer0"] != 40 {
		t.Fatalf("expected 40ms for peer0, got %d", results["peer0"])
	}
	if results["peer1"] != ProbeSentinelMs {
		t.Fatalf("expected sentinel for failed probe, got %d", results["peer1"])
	}
	for peer, v := range results {
		if v == 0 {
			t.Fatalf("peer %s left unset", peer)
		}
		if v != ProbeSentinelMs && v > uint64(probeTimeout/time.Millisecond) {
			t.Fatalf("peer %s has implausible latency %d", peer, v)
		}
	}
}

func TestSweepPeersSubMillisecondRoundsUp(t *testing.T) {
	prober := &fakeProber{rtt: map[string]time.Duration{"peer0": 200 * time.Microsecond}}
	results := SweepPeers(context.Background(), prober, []string{"peer0"}, nil)
	if results["peer0"] != 1 {
		t.Fatalf("0 is reserved for not-attempted, got %d", results["peer0"])
	}
}

func TestSweepPeersBoundsConcurrency(t *testing.T) {
	prober := &fakeProber{}
	peers := make([]string, 100)
	for i := range peers {
		peers[i] = fmt.Sprintf("peer%03d", i)
	}

	results := SweepPeers(context.Background(), prober, peers, nil)
	if len(results) != 100 {
		t.Fatalf("expected 100 results, got %d", len(results))
	}
	if max := prober.maxSeen.Load(); max > int64(probeConcurrency(100)) {
		t.Fatalf("in-flight probes peaked at %d, cap is %d", max, probeConcurrency(100))
	}
}

func TestMergeLatency(t *testing.T) {
	rows := []ChannelRow{
		{PeerID: "a", ShortChannelID: "1x1x1"},
		{PeerID: "a", ShortChannelID: "2x2x2"},
		{PeerID: "b", ShortChannelID: "3x3x3"},
	}
	rows = MergeLatency(rows, map[string]uint64{"a": 12, "b": ProbeSentinelMs})
	if rows[0].PingMs != 12 || rows[1].PingMs != 12 {
		t.Fatalf("every channel of a peer gets the same value: %+v", rows)
	}
	if rows[2].PingMs != ProbeSentinelMs {
		t.Fatalf("expected sentinel on peer b: %+v", rows[2])
	}
}
