package summary

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/daywalker90/summars-sub000/internal/clnrpc"
)

func holdBookmarkOnDisk(t *testing.T, dir string) uint64 {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "holdindex.json"))
	if err != nil {
		t.Fatalf("read bookmark: %v", err)
	}
	var bm holdBookmark
	if err := json.Unmarshal(data, &bm); err != nil {
		t.Fatalf("decode bookmark: %v", err)
	}
	return bm.Start
}

func TestHoldTrackerAdvancesPastStaleRecords(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 86400

	node := &fakeNode{hold: []clnrpc.HoldInvoice{
		{ID: 1, State: "settled", AmountReceivedMsat: msatPtr(100), PaidAt: u64Ptr(cutoff - 500)},
		{ID: 2, State: "canceled"},
		{ID: 4, State: "settled", AmountReceivedMsat: msatPtr(200), PaidAt: u64Ptr(now - 60)},
		{ID: 5, State: "open"},
	}}

	dir := t.TempDir()
	tracker := NewHoldTracker(dir, nil)
	acc := NewInvoiceAccumulator(now, cutoff, -1)

	if err := tracker.Collect(context.Background(), node, cutoff, acc); err != nil {
		t.Fatalf("collect: %v", err)
	}

	entries := acc.Finalize(0)
	if len(entries) != 1 || entries[0].UpdateIndex != 4 {
		t.Fatalf("only the recent settled invoice belongs in the window: %+v", entries)
	}

	// ids 1 and 2 can never surface again, id 4 still can.
	if got := holdBookmarkOnDisk(t, dir); got != 3 {
		t.Fatalf("bookmark should sit past the stale prefix, got %d", got)
	}
}

func TestHoldTrackerResumesFromBookmark(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 86400

	dir := t.TempDir()
	data, _ := json.Marshal(holdBookmark{Start: 3})
	if err := os.WriteFile(filepath.Join(dir, "holdindex.json"), data, 0o600); err != nil {
		t.Fatalf("seed bookmark: %v", err)
	}

	node := &fakeNode{hold: []clnrpc.HoldInvoice{
		{ID: 1, State: "settled", AmountReceivedMsat: msatPtr(100), PaidAt: u64Ptr(now - 30)},
		{ID: 4, State: "settled", AmountReceivedMsat: msatPtr(200), PaidAt: u64Ptr(now - 60)},
	}}

	tracker := NewHoldTracker(dir, nil)
	acc := NewInvoiceAccumulator(now, cutoff, -1)
	if err := tracker.Collect(context.Background(), node, cutoff, acc); err != nil {
		t.Fatalf("collect: %v", err)
	}

	entries := acc.Finalize(0)
	if len(entries) != 1 || entries[0].UpdateIndex != 4 {
		t.Fatalf("records before the bookmark must not be rescanned: %+v", entries)
	}
}

func TestHoldTrackerCorruptBookmarkRescans(t *testing.T) {
	now := uint64(1_700_000_000)
	cutoff := now - 86400

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "holdindex.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt bookmark: %v", err)
	}

	node := &fakeNode{hold: []clnrpc.HoldInvoice{
		{ID: 1, State: "settled", AmountReceivedMsat: msatPtr(100), PaidAt: u64Ptr(now - 30)},
	}}

	tracker := NewHoldTracker(dir, nil)
	acc := NewInvoiceAccumulator(now, cutoff, -1)
	if err := tracker.Collect(context.Background(), node, cutoff, acc); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if entries := acc.Finalize(0); len(entries) != 1 {
		t.Fatalf("corrupt bookmark should fall back to a full rescan: %+v", entries)
	}
}

func TestHoldTrackerSubsystemMissing(t *testing.T) {
	node := &fakeNode{holdErr: clnrpc.ErrHoldUnavailable}
	tracker := NewHoldTracker(t.TempDir(), nil)
	acc := NewInvoiceAccumulator(100, 0, -1)

	if err := tracker.Collect(context.Background(), node, 0, acc); err != nil {
		t.Fatalf("a node without the subsystem is not an error, got %v", err)
	}
	if entries := acc.Finalize(0); len(entries) != 0 {
		t.Fatalf("no records expected: %+v", entries)
	}
}
