package clnrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MilliSat is an msat-denominated amount. lightningd emits amounts either as
// bare integers or as "123msat" strings depending on version, so both forms
// decode.
type MilliSat uint64

func (m *MilliSat) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "" || raw == "null" {
		*m = 0
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "msat")
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid msat amount %q: %w", s, err)
		}
		*m = MilliSat(v)
		return nil
	}
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = MilliSat(v)
	return nil
}

type Info struct {
	ID          string `json:"id"`
	Alias       string `json:"alias"`
	Network     string `json:"network"`
	BlockHeight uint32 `json:"blockheight"`
	Version     string `json:"version"`
}

type PeerChannel struct {
	PeerID         string      `json:"peer_id"`
	PeerConnected  bool        `json:"peer_connected"`
	State          string      `json:"state"`
	ShortChannelID string      `json:"short_channel_id"`
	Private        bool        `json:"private"`
	TotalMsat      MilliSat    `json:"total_msat"`
	ToUsMsat       MilliSat    `json:"to_us_msat"`
	FeeBaseMsat    MilliSat    `json:"fee_base_msat"`
	FeePPM         uint32      `json:"fee_proportional_millionths"`
	HTLCs          []HTLCEntry `json:"htlcs"`
}

type HTLCEntry struct {
	Direction  string   `json:"direction"`
	AmountMsat MilliSat `json:"amount_msat"`
}

type Forward struct {
	CreatedIndex uint64   `json:"created_index"`
	UpdatedIndex uint64   `json:"updated_index"`
	InChannel    string   `json:"in_channel"`
	OutChannel   string   `json:"out_channel"`
	InMsat       MilliSat `json:"in_msat"`
	OutMsat      MilliSat `json:"out_msat"`
	FeeMsat      MilliSat `json:"fee_msat"`
	Status       string   `json:"status"`
	ReceivedTime float64  `json:"received_time"`
	ResolvedTime *float64 `json:"resolved_time"`
}

type Pay struct {
	CreatedIndex   uint64    `json:"created_index"`
	UpdatedIndex   uint64    `json:"updated_index"`
	PaymentHash    string    `json:"payment_hash"`
	Status         string    `json:"status"`
	Destination    string    `json:"destination"`
	CreatedAt      uint64    `json:"created_at"`
	CompletedAt    *uint64   `json:"completed_at"`
	AmountMsat     *MilliSat `json:"amount_msat"`
	AmountSentMsat MilliSat  `json:"amount_sent_msat"`
	Bolt11         string    `json:"bolt11"`
	Description    string    `json:"description"`
	GroupID        uint64    `json:"groupid"`
}

type Invoice struct {
	CreatedIndex       uint64    `json:"created_index"`
	UpdatedIndex       uint64    `json:"updated_index"`
	Label              string    `json:"label"`
	Description        string    `json:"description"`
	PaymentHash        string    `json:"payment_hash"`
	Status             string    `json:"status"`
	AmountMsat         *MilliSat `json:"amount_msat"`
	AmountReceivedMsat *MilliSat `json:"amount_received_msat"`
	PaidAt             *uint64   `json:"paid_at"`
	ExpiresAt          uint64    `json:"expires_at"`
}

// HoldInvoice is one record from the hold-invoice subsystem, which paginates
// by its own monotonically increasing id.
type HoldInvoice struct {
	ID                 uint64    `json:"id"`
	Label              string    `json:"label"`
	Description        string    `json:"description"`
	PaymentHash        string    `json:"payment_hash"`
	State              string    `json:"state"`
	AmountReceivedMsat *MilliSat `json:"amount_received_msat"`
	PaidAt             *uint64   `json:"paid_at"`
}

type DecodedPay struct {
	Destination string    `json:"payee"`
	AmountMsat  *MilliSat `json:"amount_msat"`
	Description string    `json:"description"`
}

type NodeInfo struct {
	NodeID string  `json:"nodeid"`
	Alias  *string `json:"alias"`
}
