package summary

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

const holdPageSize = 100

// HoldTracker pages the secondary hold-invoice subsystem forward from a
// persisted bookmark, so settled invoices that have aged out of every window
// are never rescanned. One report invocation performs one read-modify-write
// of the bookmark under the mutex.
type HoldTracker struct {
	mu     sync.Mutex
	path   string
	logger *log.Logger
}

type holdBookmark struct {
	Start uint64 `json:"start"`
}

func NewHoldTracker(dataDir string, logger *log.Logger) *HoldTracker {
	return &HoldTracker{
		path:   filepath.Join(dataDir, "holdindex.json"),
		logger: logger,
	}
}

// Collect feeds settled hold invoices into the accumulator and advances the
// bookmark past records that can never surface again (terminal state and
// settled before staleBefore). A node without the subsystem is not an error.
func (t *HoldTracker) Collect(ctx context.Context, rpc NodeRPC, staleBefore uint64, acc *InvoiceAccumulator) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := t.load()
	advance := start
	advancing := true

	for {
		page, err := rpc.ListHoldInvoices(ctx, start, holdPageSize)
		if err != nil {
			if errors.Is(err, clnrpc.ErrHoldUnavailable) {
				return nil
			}
			return err
		}
		for _, inv := range page {
			if err := acc.ProcessHold(inv); err != nil {
				return err
			}
			if advancing && holdStale(inv, staleBefore) {
				advance = inv.ID + 1
			} else {
				advancing = false
			}
		}
		if len(page) < holdPageSize {
			break
		}
		start = page[len(page)-1].ID + 1
	}

	if advance != t.load() {
		t.persist(advance)
	}
	return nil
}

func holdStale(inv clnrpc.HoldInvoice, staleBefore uint64) bool {
	switch inv.State {
	case "settled":
		return inv.PaidAt != nil && *inv.PaidAt < staleBefore
	case "canceled", "expired":
		return true
	}
	return false
}

func (t *HoldTracker) load() uint64 {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return 0
	}
	var bm holdBookmark
	if err := json.Unmarshal(data, &bm); err != nil {
		if t.logger != nil {
			t.logger.Printf("hold: corrupt bookmark %s, rescanning from origin: %v", t.path, err)
		}
		return 0
	}
	return bm.Start
}

func (t *HoldTracker) persist(start uint64) {
	data, err := json.Marshal(holdBookmark{Start: start})
	if err != nil {
		return
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		if t.logger != nil {
			t.logger.Printf("hold: bookmark write failed: %v", err)
		}
		return
	}
	if err := os.Rename(tmp, t.path); err != nil && t.logger != nil {
		t.logger.Printf("hold: bookmark rename failed: %v", err)
	}
}
