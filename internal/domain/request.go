package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

type Mode uint8

const (
	ModeWrapOnly Mode = iota
	ModeSwap
	ModeRemove
	ModeOpen
)

func (m Mode) String() string {
	switch m {
	case ModeSwap:
		return "swap"
	case ModeRemove:
		return "remove"
	case ModeOpen:
		return "open"
	default:
		return "wrap-only"
	}
}

// RangeInput is the caller's range before alignment against a pool.
// Raw ticks/bins take precedence over prices.
type RangeInput struct {
	Lower      *int32
	Upper      *int32
	PriceLower *decimal.Decimal
	PriceUpper *decimal.Decimal
}

func (r RangeInput) HasTicks() bool {
	return r.Lower != nil && r.Upper != nil
}

func (r RangeInput) HasPrices() bool {
	return r.PriceLower != nil && r.PriceUpper != nil
}

type OpenRequest struct {
	Pool   solana.PublicKey
	Range  RangeInput
	Bounds AmountBounds
}

type RemoveRequest struct {
	// Position is the NFT mint (raydium, orca) or the position account (meteora).
	Position solana.PublicKey
	// Pool is optional; when known the pool fetch runs concurrently with the position fetch.
	Pool    solana.PublicKey
	MinOut0 uint64
	MinOut1 uint64
	Close   bool
}

// Request is a validated invocation. At most one of Swap, Remove, Open is
// acted on; Select decides which.
type Request struct {
	Protocol Protocol
	Budget   ComputeBudget
	Swap     *SwapRequest
	Remove   *RemoveRequest
	Open     *OpenRequest
	Wrap     WrapRequest
	Unwrap   UnwrapRequest
	DryRun   bool
}

func (r *Request) HasNativeOps() bool {
	return r.Wrap.Lamports > 0 || r.Unwrap.Enabled
}
