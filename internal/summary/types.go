package summary

import "time"

// FilterStats counts the records a window excluded through business filters,
// with running sums of what they carried.
type FilterStats struct {
	Count      uint64 `json:"count"`
	AmountMsat uint64 `json:"amount_msat"`
	FeeMsat    uint64 `json:"fee_msat"`
}

type ForwardEntry struct {
	UpdateIndex uint64 `json:"-"`
	ResolvedAt  uint64 `json:"resolved_at"`
	InChannel   string `json:"in_channel"`
	OutChannel  string `json:"out_channel"`
	InAlias     string `json:"in_alias"`
	OutAlias    string `json:"out_alias"`
	InMsat      uint64 `json:"in_msat"`
	OutMsat     uint64 `json:"out_msat"`
	FeeMsat     uint64 `json:"fee_msat"`
	FeePPM      uint64 `json:"eff_fee_ppm"`
}

type ForwardTotals struct {
	Count   uint64 `json:"count"`
	InMsat  uint64 `json:"in_msat"`
	OutMsat uint64 `json:"out_msat"`
	FeeMsat uint64 `json:"fee_msat"`
}

type PayEntry struct {
	UpdateIndex      uint64 `json:"-"`
	CompletedAt      uint64 `json:"completed_at"`
	PaymentHash      string `json:"payment_hash"`
	Destination      string `json:"destination"`
	DestinationAlias string `json:"destination_alias"`
	AmountMsat       uint64 `json:"amount_msat"`
	AmountSentMsat   uint64 `json:"amount_sent_msat"`
	FeeMsat          uint64 `json:"fee_msat"`
	SelfPay          bool   `json:"self_pay"`
	Description      string `json:"description,omitempty"`
}

type PayTotals struct {
	Count          uint64 `json:"count"`
	AmountMsat     uint64 `json:"amount_msat"`
	SentMsat       uint64 `json:"sent_msat"`
	FeeMsat        uint64 `json:"fee_msat"`
	SelfCount      uint64 `json:"self_count"`
	SelfAmountMsat uint64 `json:"self_amount_msat"`
	SelfSentMsat   uint64 `json:"self_sent_msat"`
	SelfFeeMsat    uint64 `json:"self_fee_msat"`
}

type InvoiceEntry struct {
	UpdateIndex  uint64 `json:"-"`
	PaidAt       uint64 `json:"paid_at"`
	Label        string `json:"label"`
	Description  string `json:"description,omitempty"`
	PaymentHash  string `json:"payment_hash"`
	ReceivedMsat uint64 `json:"received_msat"`
	Hold         bool   `json:"hold,omitempty"`
}

type InvoiceTotals struct {
	Count        uint64 `json:"count"`
	ReceivedMsat uint64 `json:"received_msat"`
}

// ChannelRow is one channel in the report's channel table. UptimePct is -1
// for peers the availability estimator has never observed; PingMs is 0 when
// no probe was attempted.
type ChannelRow struct {
	PeerID         string  `json:"peer_id"`
	Alias          string  `json:"alias"`
	ShortChannelID string  `json:"short_channel_id"`
	State          string  `json:"state"`
	Connected      bool    `json:"connected"`
	Private        bool    `json:"private"`
	TotalMsat      uint64  `json:"total_msat"`
	ToUsMsat       uint64  `json:"to_us_msat"`
	FeeBaseMsat    uint64  `json:"fee_base_msat"`
	FeePPM         uint32  `json:"fee_ppm"`
	PendingHTLCs   int     `json:"pending_htlcs"`
	UptimePct      float64 `json:"uptime_pct"`
	PingMs         uint64  `json:"ping_ms"`
}

type Report struct {
	NodeID      string    `json:"node_id"`
	NodeAlias   string    `json:"node_alias"`
	GeneratedAt time.Time `json:"generated_at"`

	Channels []ChannelRow `json:"channels"`

	Forwards         []ForwardEntry `json:"forwards,omitempty"`
	ForwardTotals    *ForwardTotals `json:"forward_totals,omitempty"`
	ForwardsFiltered FilterStats    `json:"forwards_filtered"`

	Pays         []PayEntry  `json:"pays,omitempty"`
	PayTotals    *PayTotals  `json:"pay_totals,omitempty"`
	PaysFiltered FilterStats `json:"pays_filtered"`

	Invoices         []InvoiceEntry `json:"invoices,omitempty"`
	InvoiceTotals    *InvoiceTotals `json:"invoice_totals,omitempty"`
	InvoicesFiltered FilterStats    `json:"invoices_filtered"`
}
