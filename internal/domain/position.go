package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// RangeSpec holds tick (CLMM) or bin (DLMM) bounds.
type RangeSpec struct {
	Lower int32 `json:"lower"`
	Upper int32 `json:"upper"`
}

// Bins is the inclusive bin count of a DLMM range.
func (r RangeSpec) Bins() int64 {
	return int64(r.Upper) - int64(r.Lower) + 1
}

type AmountBounds struct {
	Amount0 uint64 `json:"amount0"`
	Amount1 uint64 `json:"amount1"`
}

func (a AmountBounds) IsZero() bool {
	return a.Amount0 == 0 && a.Amount1 == 0
}

// BinShare is one bin's slice of a DLMM deposit. Shares are in basis points.
type BinShare struct {
	BinID   int32  `json:"binId"`
	Amount0 uint64 `json:"amount0"`
	Amount1 uint64 `json:"amount1"`
	Share0  uint16 `json:"share0"`
	Share1  uint16 `json:"share1"`
}

// LiquidityDelta is computed, never supplied. Amount0/Amount1 are what will
// actually move and are passed to the encoders unchanged.
type LiquidityDelta struct {
	Liquidity *uint256.Int `json:"liquidity"`
	Amount0   uint64       `json:"amount0"`
	Amount1   uint64       `json:"amount1"`
	Bins      []BinShare   `json:"bins,omitempty"`
}

// PositionIdentity names an open position. Mint is zero for protocols whose
// positions are plain accounts.
type PositionIdentity struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
}

func (p PositionIdentity) HasMint() bool {
	return !p.Mint.IsZero()
}

// PositionState is the decoded on-chain position record.
type PositionState struct {
	Identity  PositionIdentity `json:"identity"`
	Pool      solana.PublicKey `json:"pool"`
	Owner     solana.PublicKey `json:"owner"`
	Range     RangeSpec        `json:"range"`
	Liquidity *uint256.Int     `json:"liquidity"`
	// TokenAccount holds the position NFT; TokenProgram owns it.
	TokenAccount solana.PublicKey `json:"tokenAccount"`
	TokenProgram solana.PublicKey `json:"tokenProgram"`
}

func (p *PositionState) IsEmpty() bool {
	return p.Liquidity == nil || p.Liquidity.IsZero()
}
