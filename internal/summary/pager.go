package summary

import (
	"context"
	"errors"
)

var errZeroPageSize = errors.New("page size must be positive")

// Source is one domain of the node's append-only event log. Page returns the
// records whose index falls in [start, start+limit), ordered by that index,
// possibly fewer near the tip.
type Source[E any] interface {
	Tip(ctx context.Context) (uint64, error)
	Page(ctx context.Context, start uint64, limit uint32) ([]E, error)
}

// Sink consumes records in descending-index order and tracks the oldest
// settlement timestamp it has seen, which is what stops the walk.
type Sink[E any] interface {
	Process(ctx context.Context, ev E) error
	OldestSeen() uint64
}

// Walk pages a domain backwards from its tip towards index 1, handing each
// page to the sink newest-first, until either the sink's oldest seen
// timestamp falls below cutoff or the origin is reached. Pages near the
// origin may overlap; the sink's dedup by index makes that harmless. Any
// source error aborts the walk.
func Walk[E any](ctx context.Context, src Source[E], sink Sink[E], pageSize uint32, cutoff uint64) error {
	if pageSize == 0 {
		return errZeroPageSize
	}

	tip, err := src.Tip(ctx)
	if err != nil {
		return err
	}
	if tip == 0 {
		return nil
	}

	current := uint64(0)
	if tip > uint64(pageSize)-1 {
		current = tip - (uint64(pageSize) - 1)
	}
	limit := pageSize

	for {
		page, err := src.Page(ctx, current, limit)
		if err != nil {
			return err
		}
		for i := len(page) - 1; i >= 0; i-- {
			if err := sink.Process(ctx, page[i]); err != nil {
				return err
			}
		}

		if sink.OldestSeen() < cutoff {
			return nil
		}
		if current <= 1 {
			return nil
		}
		limit = pageSize
		if current < uint64(pageSize) {
			limit = uint32(current)
		}
		if current > uint64(pageSize) {
			current -= uint64(pageSize)
		} else {
			current = 0
		}
	}
}
