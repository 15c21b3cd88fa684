package priority

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Urgency picks the percentile of recent fees a transaction bids at.
type Urgency uint8

const (
	// UrgencyNone keeps the configured unit price.
	UrgencyNone Urgency = iota
	// UrgencyLow uses p50
	UrgencyLow
	// UrgencyMedium uses p75
	UrgencyMedium
	// UrgencyHigh uses p90
	UrgencyHigh
	// UrgencyExtreme uses p99
	UrgencyExtreme
)

// MinUnitPrice is the floor applied to network-derived prices, in microLamports per CU.
const MinUnitPrice = 100

// MaxFeeAccounts bounds the writable accounts sent with a fee lookup.
const MaxFeeAccounts = 8

var urgencyNames = map[string]Urgency{
	"none":    UrgencyNone,
	"low":     UrgencyLow,
	"medium":  UrgencyMedium,
	"high":    UrgencyHigh,
	"extreme": UrgencyExtreme,
}

func ParseUrgency(s string) (Urgency, error) {
	u, ok := urgencyNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return UrgencyNone, fmt.Errorf("unknown urgency %q, want none, low, medium, high or extreme", s)
	}
	return u, nil
}

func (u Urgency) String() string {
	for name, v := range urgencyNames {
		if v == u {
			return name
		}
	}
	return "unknown"
}

// Percentile returns the percentile used for the urgency level.
func (u Urgency) Percentile() int {
	switch u {
	case UrgencyLow:
		return 50
	case UrgencyMedium:
		return 75
	case UrgencyHigh:
		return 90
	case UrgencyExtreme:
		return 99
	default:
		return 0
	}
}

// FeeSource returns the prioritization fees paid in recent slots by
// transactions that wrote the given accounts.
type FeeSource func(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error)

type FeeCalculator struct {
	source FeeSource
}

func NewFeeCalculator(source FeeSource) *FeeCalculator {
	return &FeeCalculator{source: source}
}

type FeeResult struct {
	UnitPrice   uint64
	Percentile  int
	SampleCount int
	// Fallback is set when the price did not come from the network.
	Fallback bool
	Err      error
}

// UnitPrice computes a unit price for urgency from recent fees. When the
// lookup fails or returns no nonzero samples the fallback price is used.
func (f *FeeCalculator) UnitPrice(ctx context.Context, urgency Urgency, accounts []solana.PublicKey, fallback uint64) *FeeResult {
	res := &FeeResult{UnitPrice: fallback, Percentile: urgency.Percentile(), Fallback: true}
	if urgency == UrgencyNone || f == nil || f.source == nil {
		return res
	}

	recent, err := f.source(ctx, accounts)
	if err != nil {
		res.Err = err
		return res
	}
	fees := make([]uint64, 0, len(recent))
	for _, fee := range recent {
		if fee > 0 {
			fees = append(fees, fee)
		}
	}
	if len(fees) == 0 {
		return res
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })

	price := calculatePercentile(fees, res.Percentile)
	if price < MinUnitPrice {
		price = MinUnitPrice
	}
	res.UnitPrice = price
	res.SampleCount = len(fees)
	res.Fallback = false
	return res
}

// calculatePercentile interpolates linearly between the closest ranks.
func calculatePercentile(sorted []uint64, percentile int) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	if percentile <= 0 {
		return sorted[0]
	}
	if percentile >= 100 {
		return sorted[len(sorted)-1]
	}

	k := float64(percentile) / 100.0 * float64(len(sorted)-1)
	f := int(k)
	c := f + 1
	if c >= len(sorted) {
		c = len(sorted) - 1
	}
	d := k - float64(f)
	return uint64(float64(sorted[f])*(1-d) + float64(sorted[c])*d)
}

// WritableAccounts collects the distinct writable accounts of ixs in order,
// skipping the fee payer slot owners never contend on, up to limit.
func WritableAccounts(ixs []solana.Instruction, payer solana.PublicKey, limit int) []solana.PublicKey {
	seen := make(map[solana.PublicKey]bool)
	var out []solana.PublicKey
	for _, ix := range ixs {
		for _, meta := range ix.Accounts() {
			if !meta.IsWritable || meta.PublicKey.Equals(payer) || seen[meta.PublicKey] {
				continue
			}
			seen[meta.PublicKey] = true
			out = append(out, meta.PublicKey)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}
