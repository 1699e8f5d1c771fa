package summary

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	probeTimeout = 5000 * time.Millisecond

	// ProbeSentinelMs marks a probe that failed or timed out. 0 is reserved
	// for "not attempted", so every probed row ends up nonzero.
	ProbeSentinelMs = uint64(probeTimeout/time.Millisecond) + 1
)

// Prober issues one liveness round trip to a peer. *clnrpc.Client satisfies
// it through its ping call.
type Prober interface {
	Probe(ctx context.Context, peerID string) (time.Duration, error)
}

func probeConcurrency(peerCount int) int {
	limit := peerCount / 10
	if limit < 5 {
		limit = 5
	}
	return limit
}

// SweepPeers probes every distinct peer once, capping in-flight probes at
// max(peers/10, 5). Individual failures degrade to the sentinel; the sweep
// itself never fails.
func SweepPeers(ctx context.Context, prober Prober, peers []string, logger *log.Logger) map[string]uint64 {
	results := make(map[string]uint64, len(peers))
	if len(peers) == 0 {
		return results
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(probeConcurrency(len(peers)))

	for _, peer := range peers {
		peer := peer
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			rtt, err := prober.Probe(probeCtx, peer)
			cancel()

			value := ProbeSentinelMs
			if err == nil {
				value = uint64(rtt.Milliseconds())
				if value == 0 {
					value = 1
				}
			} else if logger != nil {
				logger.Printf("probe: %s: %v", peer, err)
			}

			mu.Lock()
			results[peer] = value
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// MergeLatency copies each peer's probe result onto every channel row that
// belongs to it.
func MergeLatency(rows []ChannelRow, results map[string]uint64) []ChannelRow {
	for i := range rows {
		if v, ok := results[rows[i].PeerID]; ok {
			rows[i].PingMs = v
		}
	}
	return rows
}
