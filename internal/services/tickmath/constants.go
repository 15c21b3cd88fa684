// Package tickmath converts between human prices, Q64.64 square-root prices,
// tick indexes and DLMM bin ids. Everything here is pure and deterministic.
package tickmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

const (
	MinTick int32 = -443636
	MaxTick int32 = 443636

	// DLMM bins per bin array account.
	BinsPerArray int32 = 70
	// MaxBinsPerPosition is the widest range one DLMM position account holds.
	MaxBinsPerPosition int32 = 70
	MaxBinID           int32 = 443636
	MinBinID           int32 = -443636
)

type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

func (r Rounding) String() string {
	if r == RoundUp {
		return "ceil"
	}
	return "floor"
}

var (
	ErrInvalidRange      = errors.New("invalid range")
	ErrTickOutOfBounds   = errors.New("tick out of bounds")
	ErrPriceOutOfRange   = errors.New("price out of supported range")
	ErrInvalidPrice      = errors.New("price must be positive")
	ErrInvalidSpacing    = errors.New("spacing must be positive")
	ErrSqrtPriceOverflow = errors.New("sqrt price does not fit in u128")
)

var (
	MinSqrtPriceX64 = uint256.MustFromDecimal("4295048016")
	MaxSqrtPriceX64 = uint256.MustFromDecimal("79226673521066979257578248091")

	u256One     = uint256.NewInt(1)
	u256Q64     = new(uint256.Int).Lsh(u256One, 64)
	u256MaxU64  = new(uint256.Int).SetUint64(^uint64(0))
	u256MaxU128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(u256One, 128), u256One)

	bigQ128 = new(big.Int).Lsh(big.NewInt(1), 128)
)

// Q64 returns a fresh 2^64.
func Q64() *uint256.Int {
	return new(uint256.Int).Set(u256Q64)
}

// MaxU128 returns a fresh 2^128-1.
func MaxU128() *uint256.Int {
	return new(uint256.Int).Set(u256MaxU128)
}

// FitsU128 reports whether v can be encoded as an unsigned 128-bit field.
func FitsU128(v *uint256.Int) bool {
	return v != nil && v.Cmp(u256MaxU128) <= 0
}

// FitsU64 reports whether v can be encoded as an unsigned 64-bit field.
func FitsU64(v *uint256.Int) bool {
	return v != nil && v.Cmp(u256MaxU64) <= 0
}
