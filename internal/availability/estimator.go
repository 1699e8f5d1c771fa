package availability

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

const tickRPCTimeout = 30 * time.Second

// activeChannelStates is the fixed set of channel states that count a peer
// as having a live channel worth tracking.
var activeChannelStates = map[string]struct{}{
	"OPENINGD":                  {},
	"CHANNELD_AWAITING_LOCKIN":  {},
	"CHANNELD_NORMAL":           {},
	"CHANNELD_AWAITING_SPLICE":  {},
	"DUALOPEND_OPEN_COMMITTED":  {},
	"DUALOPEND_AWAITING_LOCKIN": {},
}

// ChannelLister is the slice of the node client the estimator needs.
type ChannelLister interface {
	ListPeerChannels(ctx context.Context) ([]clnrpc.PeerChannel, error)
}

// Estimator maintains an exponentially smoothed per-peer connectivity score.
// The lookback grows with the observation count up to maxWindow, so new
// peers converge fast and old peers stay stable.
type Estimator struct {
	rpc    ChannelLister
	store  *Store
	logger *log.Logger

	interval  time.Duration
	maxWindow time.Duration

	// OnTick, when set before Start, receives the freshly published map
	// after every tick.
	OnTick func(map[string]Record)

	mu      sync.Mutex
	started bool
	stop    chan struct{}
}

func NewEstimator(rpc ChannelLister, store *Store, interval, maxWindow time.Duration, logger *log.Logger) *Estimator {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxWindow < interval {
		maxWindow = interval
	}
	return &Estimator{
		rpc:       rpc,
		store:     store,
		logger:    logger,
		interval:  interval,
		maxWindow: maxWindow,
	}
}

func (e *Estimator) Start() {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	go e.run(stop)
}

func (e *Estimator) Stop() {
	e.mu.Lock()
	if !e.started || e.stop == nil {
		e.mu.Unlock()
		return
	}
	close(e.stop)
	e.stop = nil
	e.started = false
	e.mu.Unlock()
}

func (e *Estimator) run(stop chan struct{}) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), tickRPCTimeout)
			if err := e.Tick(ctx); err != nil && e.logger != nil {
				e.logger.Printf("avail: tick failed: %v", err)
			}
			cancel()
		case <-stop:
			return
		}
	}
}

// Tick performs one observation round: fetch the channel set, update the
// smoothed score of every peer with an active channel, publish and persist.
// Persistence failure only logs; the in-memory map stays authoritative.
func (e *Estimator) Tick(ctx context.Context) error {
	channels, err := e.rpc.ListPeerChannels(ctx)
	if err != nil {
		return err
	}

	type peerState struct {
		connected bool
		active    bool
	}
	peers := map[string]*peerState{}
	for _, ch := range channels {
		state, ok := peers[ch.PeerID]
		if !ok {
			state = &peerState{}
			peers[ch.PeerID] = state
		}
		if ch.PeerConnected {
			state.connected = true
		}
		if _, active := activeChannelStates[ch.State]; active {
			state.active = true
		}
	}

	next := e.store.Snapshot()
	for peerID, state := range peers {
		if !state.active {
			continue
		}
		v := 0.0
		if state.connected {
			v = 1.0
		}

		rec, seen := next[peerID]
		if !seen {
			rec = Record{Avail: v}
		} else {
			lead := time.Duration(rec.Count) * e.interval
			if lead < e.interval {
				lead = e.interval
			}
			if lead > e.maxWindow {
				lead = e.maxWindow
			}
			samples := float64(lead) / float64(e.interval)
			alpha := 1 / samples
			rec.Avail = v*alpha + rec.Avail*(1-alpha)
		}
		rec.Connected = state.connected
		rec.Count++
		next[peerID] = rec
	}

	if err := e.store.replace(next); err != nil && e.logger != nil {
		e.logger.Printf("avail: persist failed: %v", err)
	}
	if e.OnTick != nil {
		e.OnTick(next)
	}
	return nil
}
