package liquidity

import (
	"github.com/holiman/uint256"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

func mulDiv(a, b, d *uint256.Int, roundUp bool) (*uint256.Int, bool) {
	if d.IsZero() {
		return new(uint256.Int), true
	}
	out, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return out, true
	}
	if roundUp {
		rem := new(uint256.Int).MulMod(a, b, d)
		if !rem.IsZero() {
			out.AddUint64(out, 1)
		}
	}
	return out, false
}

func ordered(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Gt(b) {
		return b, a
	}
	return a, b
}

// FromAmount0 is the liquidity amount0 supports over [sqrtA, sqrtB]:
// amount0 * (sqrtA*sqrtB/2^64) / (sqrtB-sqrtA), floored at both steps.
func FromAmount0(sqrtA, sqrtB *uint256.Int, amount0 uint64) *uint256.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int)
	}
	intermediate, overflow := mulDiv(sqrtA, sqrtB, tickmath.Q64(), false)
	if overflow {
		return new(uint256.Int)
	}
	l, overflow := mulDiv(uint256.NewInt(amount0), intermediate, new(uint256.Int).Sub(sqrtB, sqrtA), false)
	if overflow {
		return new(uint256.Int)
	}
	return l
}

// FromAmount1 is amount1 * 2^64 / (sqrtB-sqrtA), floored.
func FromAmount1(sqrtA, sqrtB *uint256.Int, amount1 uint64) *uint256.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	if sqrtA.Eq(sqrtB) {
		return new(uint256.Int)
	}
	l, overflow := mulDiv(uint256.NewInt(amount1), tickmath.Q64(), new(uint256.Int).Sub(sqrtB, sqrtA), false)
	if overflow {
		return new(uint256.Int)
	}
	return l
}

// FromAmounts picks the bounding side depending on where the current price sits.
func FromAmounts(sqrtPrice, sqrtA, sqrtB *uint256.Int, amount0, amount1 uint64) *uint256.Int {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	switch {
	case sqrtPrice.Cmp(sqrtA) <= 0:
		return FromAmount0(sqrtA, sqrtB, amount0)
	case sqrtPrice.Lt(sqrtB):
		l0 := FromAmount0(sqrtPrice, sqrtB, amount0)
		l1 := FromAmount1(sqrtA, sqrtPrice, amount1)
		if l0.Lt(l1) {
			return l0
		}
		return l1
	default:
		return FromAmount1(sqrtA, sqrtB, amount1)
	}
}

// Amount0Delta is L * 2^64 * (sqrtB-sqrtA) / sqrtB / sqrtA.
func Amount0Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, bool) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	if sqrtA.IsZero() {
		return new(uint256.Int), true
	}
	numerator := new(uint256.Int).Lsh(liquidity, 64)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	step, overflow := mulDiv(numerator, diff, sqrtB, roundUp)
	if overflow {
		return step, true
	}
	if roundUp {
		out, rem := new(uint256.Int).DivMod(step, sqrtA, new(uint256.Int))
		if !rem.IsZero() {
			out.AddUint64(out, 1)
		}
		return out, false
	}
	return new(uint256.Int).Div(step, sqrtA), false
}

// Amount1Delta is L * (sqrtB-sqrtA) / 2^64.
func Amount1Delta(sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, bool) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	return mulDiv(liquidity, new(uint256.Int).Sub(sqrtB, sqrtA), tickmath.Q64(), roundUp)
}

// AmountsForLiquidity returns the token amounts a liquidity change moves at sqrtPrice.
func AmountsForLiquidity(sqrtPrice, sqrtA, sqrtB, liquidity *uint256.Int, roundUp bool) (*uint256.Int, *uint256.Int, bool) {
	sqrtA, sqrtB = ordered(sqrtA, sqrtB)
	zero := new(uint256.Int)
	switch {
	case sqrtPrice.Cmp(sqrtA) <= 0:
		a0, overflow := Amount0Delta(sqrtA, sqrtB, liquidity, roundUp)
		return a0, zero, overflow
	case sqrtPrice.Lt(sqrtB):
		a0, o0 := Amount0Delta(sqrtPrice, sqrtB, liquidity, roundUp)
		a1, o1 := Amount1Delta(sqrtA, sqrtPrice, liquidity, roundUp)
		return a0, a1, o0 || o1
	default:
		a1, overflow := Amount1Delta(sqrtA, sqrtB, liquidity, roundUp)
		return zero, a1, overflow
	}
}
