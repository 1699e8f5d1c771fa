package archive

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/daywalker90/summars-sub000/internal/summary"
)

// RunRow is one archived report run.
type RunRow struct {
	RunAt time.Time

	ChannelCount   int64
	PeersConnected int64

	ForwardCount   int64
	ForwardFeeMsat int64
	RoutedOutMsat  int64

	PayCount     int64
	PaidSentMsat int64
	PayFeeMsat   int64

	InvoiceCount int64
	ReceivedMsat int64
}

// RowFromReport flattens a report into the archived shape.
func RowFromReport(rep *summary.Report) RunRow {
	row := RunRow{
		RunAt:        rep.GeneratedAt,
		ChannelCount: int64(len(rep.Channels)),
	}
	for _, ch := range rep.Channels {
		if ch.Connected {
			row.PeersConnected++
		}
	}
	if t := rep.ForwardTotals; t != nil {
		row.ForwardCount = int64(t.Count)
		row.ForwardFeeMsat = int64(t.FeeMsat)
		row.RoutedOutMsat = int64(t.OutMsat)
	}
	if t := rep.PayTotals; t != nil {
		row.PayCount = int64(t.Count)
		row.PaidSentMsat = int64(t.SentMsat)
		row.PayFeeMsat = int64(t.FeeMsat)
	}
	if t := rep.InvoiceTotals; t != nil {
		row.InvoiceCount = int64(t.Count)
		row.ReceivedMsat = int64(t.ReceivedMsat)
	}
	return row
}

func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	if db == nil {
		return nil
	}
	_, err := db.Exec(ctx, `
create table if not exists summary_runs (
  run_at timestamptz primary key,
  channel_count integer not null default 0,
  peers_connected integer not null default 0,
  forward_count bigint not null default 0,
  forward_fee_msat bigint not null default 0,
  routed_out_msat bigint not null default 0,
  pay_count bigint not null default 0,
  paid_sent_msat bigint not null default 0,
  pay_fee_msat bigint not null default 0,
  invoice_count bigint not null default 0,
  received_msat bigint not null default 0
);
`)
	return err
}

func InsertRun(ctx context.Context, db *pgxpool.Pool, row RunRow) error {
	if db == nil {
		return nil
	}
	query, args := buildInsertRun(row)
	_, err := db.Exec(ctx, query, args...)
	return err
}

func buildInsertRun(row RunRow) (string, []any) {
	args := []any{
		row.RunAt.UTC(),
		row.ChannelCount,
		row.PeersConnected,
		row.ForwardCount,
		row.ForwardFeeMsat,
		row.RoutedOutMsat,
		row.PayCount,
		row.PaidSentMsat,
		row.PayFeeMsat,
		row.InvoiceCount,
		row.ReceivedMsat,
	}

	query := `
insert into summary_runs (
  run_at,
  channel_count,
  peers_connected,
  forward_count,
  forward_fee_msat,
  routed_out_msat,
  pay_count,
  paid_sent_msat,
  pay_fee_msat,
  invoice_count,
  received_msat
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
on conflict (run_at) do update set
  channel_count = excluded.channel_count,
  peers_connected = excluded.peers_connected,
  forward_count = excluded.forward_count,
  forward_fee_msat = excluded.forward_fee_msat,
  routed_out_msat = excluded.routed_out_msat,
  pay_count = excluded.pay_count,
  paid_sent_msat = excluded.paid_sent_msat,
  pay_fee_msat = excluded.pay_fee_msat,
  invoice_count = excluded.invoice_count,
  received_msat = excluded.received_msat
`

	return query, args
}

func FetchRange(ctx context.Context, db *pgxpool.Pool, from, to time.Time) ([]RunRow, error) {
	if db == nil {
		return nil, nil
	}
	rows, err := db.Query(ctx, `
select run_at,
  channel_count,
  peers_connected,
  forward_count,
  forward_fee_msat,
  routed_out_msat,
  pay_count,
  paid_sent_msat,
  pay_fee_msat,
  invoice_count,
  received_msat
from summary_runs
where run_at >= $1 and run_at <= $2
order by run_at asc
`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunRow
	for rows.Next() {
		var runAt pgtype.Timestamptz
		var row RunRow
		if err := rows.Scan(
			&runAt,
			&row.ChannelCount,
			&row.PeersConnected,
			&row.ForwardCount,
			&row.ForwardFeeMsat,
			&row.RoutedOutMsat,
			&row.PayCount,
			&row.PaidSentMsat,
			&row.PayFeeMsat,
			&row.InvoiceCount,
			&row.ReceivedMsat,
		); err != nil {
			return nil, err
		}
		row.RunAt = runAt.Time
		items = append(items, row)
	}
	return items, rows.Err()
}
