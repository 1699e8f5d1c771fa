package summary

import (
	"fmt"
	"math/bits"
)

// IntegrityError reports a settled record that violates a domain invariant,
// e.g. a forward whose inbound amount is below its outbound amount. It is a
// data problem on the node, not a transport failure, and callers can pick it
// out of a failed report with errors.As.
type IntegrityError struct {
	Domain string
	Index  uint64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s event %d: %s", e.Domain, e.Index, e.Reason)
}

// EffectiveFeePPM computes the effective fee rate of a forward in parts per
// million, rounded up. It is only defined for inMsat >= outMsat > 0. The
// intermediate product is taken in 128 bits so extreme msat amounts stay
// exact.
func EffectiveFeePPM(domain string, index uint64, inMsat, outMsat uint64) (uint64, error) {
	if outMsat == 0 {
		return 0, &IntegrityError{Domain: domain, Index: index, Reason: "outbound amount is zero"}
	}
	if inMsat < outMsat {
		return 0, &IntegrityError{
			Domain: domain,
			Index:  index,
			Reason: fmt.Sprintf("inbound %d msat below outbound %d msat", inMsat, outMsat),
		}
	}
	fee := inMsat - outMsat
	hi, lo := bits.Mul64(fee, 1_000_000)
	lo, carry := bits.Add64(lo, outMsat-1, 0)
	hi += carry
	if hi >= outMsat {
		return 0, &IntegrityError{
			Domain: domain,
			Index:  index,
			Reason: fmt.Sprintf("fee %d msat on outbound %d msat exceeds representable rate", fee, outMsat),
		}
	}
	ppm, _ := bits.Div64(hi, lo, outMsat)
	return ppm, nil
}
