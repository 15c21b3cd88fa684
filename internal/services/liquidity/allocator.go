// Package liquidity turns a range, two deposit bounds and the pool price into
// the liquidity to add and the token amounts that will actually move.
package liquidity

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

var (
	ErrDegenerateRange = errors.New("degenerate range")
	ErrZeroLiquidity   = errors.New("amounts too small to produce liquidity")
	ErrZeroAmounts     = errors.New("at least one of amount0/amount1 must be positive")
	ErrOverflow        = errors.New("liquidity overflows u128")
)

// AllocateCLMM solves the largest liquidity whose token amounts stay within
// bounds. Realized amounts are rounded up the way the programs charge them.
func AllocateCLMM(sqrtPriceX64 *uint256.Int, r domain.RangeSpec, bounds domain.AmountBounds) (domain.LiquidityDelta, error) {
	var delta domain.LiquidityDelta
	if bounds.IsZero() {
		return delta, common.Validation("liquidity.allocate", ErrZeroAmounts)
	}
	if r.Upper <= r.Lower {
		return delta, common.Validation("liquidity.allocate", fmt.Errorf("%w: [%d, %d]", tickmath.ErrInvalidRange, r.Lower, r.Upper))
	}
	sqrtA, err := tickmath.SqrtPriceAtTick(r.Lower)
	if err != nil {
		return delta, common.Validation("liquidity.allocate", err)
	}
	sqrtB, err := tickmath.SqrtPriceAtTick(r.Upper)
	if err != nil {
		return delta, common.Validation("liquidity.allocate", err)
	}

	l := FromAmounts(sqrtPriceX64, sqrtA, sqrtB, bounds.Amount0, bounds.Amount1)
	if !tickmath.FitsU128(l) {
		return delta, common.Allocation("liquidity.allocate", ErrOverflow)
	}
	if l.IsZero() {
		return delta, common.Allocation("liquidity.allocate", fmt.Errorf("%w: amount0=%d amount1=%d range=[%d, %d]",
			ErrZeroLiquidity, bounds.Amount0, bounds.Amount1, r.Lower, r.Upper))
	}

	a0, a1, overflow := AmountsForLiquidity(sqrtPriceX64, sqrtA, sqrtB, l, true)
	if overflow || !tickmath.FitsU64(a0) || !tickmath.FitsU64(a1) {
		return delta, common.Allocation("liquidity.allocate", ErrOverflow)
	}
	if a0.Uint64() > bounds.Amount0 || a1.Uint64() > bounds.Amount1 {
		return delta, common.Allocation("liquidity.allocate",
			fmt.Errorf("realized amounts %s/%s exceed bounds %d/%d", a0.Dec(), a1.Dec(), bounds.Amount0, bounds.Amount1))
	}

	delta.Liquidity = l
	delta.Amount0 = a0.Uint64()
	delta.Amount1 = a1.Uint64()
	return delta, nil
}

// AllocateBins spreads each positive bound uniformly over every bin of r.
// floor(amount/bins) and floor(10000/bins) go to each bin; both remainders go
// to the last bin so the shares sum to exactly the amount and 10000 bps.
// Liquidity is left nil: DLMM deposits are expressed per bin.
func AllocateBins(r domain.RangeSpec, bounds domain.AmountBounds) (domain.LiquidityDelta, error) {
	var delta domain.LiquidityDelta
	if bounds.IsZero() {
		return delta, common.Validation("liquidity.bins", ErrZeroAmounts)
	}
	bins := r.Bins()
	if bins <= 0 {
		return delta, common.Allocation("liquidity.bins", fmt.Errorf("%w: [%d, %d] has no bins", ErrDegenerateRange, r.Lower, r.Upper))
	}
	if bins > common.BasisPointMax {
		return delta, common.Allocation("liquidity.bins", fmt.Errorf("%w: %d bins leave no basis point per bin", ErrDegenerateRange, bins))
	}

	per0, rem0, err := split(bounds.Amount0, bins, "amount0")
	if err != nil {
		return delta, err
	}
	per1, rem1, err := split(bounds.Amount1, bins, "amount1")
	if err != nil {
		return delta, err
	}
	share := uint16(common.BasisPointMax / bins)
	shareRem := uint16(common.BasisPointMax - int64(share)*bins)

	delta.Bins = make([]domain.BinShare, 0, bins)
	for i := int64(0); i < bins; i++ {
		b := domain.BinShare{BinID: r.Lower + int32(i)}
		if bounds.Amount0 > 0 {
			b.Amount0, b.Share0 = per0, share
		}
		if bounds.Amount1 > 0 {
			b.Amount1, b.Share1 = per1, share
		}
		if i == bins-1 {
			b.Amount0 += rem0
			b.Amount1 += rem1
			if bounds.Amount0 > 0 {
				b.Share0 += shareRem
			}
			if bounds.Amount1 > 0 {
				b.Share1 += shareRem
			}
		}
		delta.Bins = append(delta.Bins, b)
	}
	delta.Amount0 = bounds.Amount0
	delta.Amount1 = bounds.Amount1
	return delta, nil
}

func split(amount uint64, bins int64, side string) (uint64, uint64, error) {
	if amount == 0 {
		return 0, 0, nil
	}
	per := amount / uint64(bins)
	if per == 0 {
		return 0, 0, common.Allocation("liquidity.bins",
			fmt.Errorf("%w: %s=%d cannot cover %d bins", ErrDegenerateRange, side, amount, bins))
	}
	return per, amount - per*uint64(bins), nil
}
