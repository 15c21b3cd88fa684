// Package dispatch picks the invocation mode and turns a request into a
// transaction plan.
package dispatch

import (
	"errors"
	"fmt"

	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
)

var (
	ErrMissingRange   = errors.New("open needs --lower/--upper or --price-lower/--price-upper")
	ErrMissingAmounts = errors.New("open needs a non-zero --amount0 or --amount1")
	ErrZeroSwapAmount = errors.New("swap needs a non-zero --swap-amount-in")
	ErrInvertedRange  = errors.New("range lower bound must be below its upper bound")
)

// Select applies the fixed precedence swap > remove > open > wrap-only.
func Select(req *domain.Request) domain.Mode {
	switch {
	case req.Swap != nil:
		return domain.ModeSwap
	case req.Remove != nil:
		return domain.ModeRemove
	case req.Open != nil:
		return domain.ModeOpen
	default:
		return domain.ModeWrapOnly
	}
}

// Validate checks what the selected mode requires. It runs before any network call.
func Validate(req *domain.Request, mode domain.Mode) error {
	switch mode {
	case domain.ModeSwap:
		if req.Swap.AmountIn == 0 {
			return common.Validation("swap", ErrZeroSwapAmount)
		}
	case domain.ModeOpen:
		if !req.Open.Range.HasTicks() && !req.Open.Range.HasPrices() {
			return common.Validation("open", ErrMissingRange)
		}
		if req.Open.Bounds.IsZero() {
			return common.Validation("open", ErrMissingAmounts)
		}
		return checkOrder(req.Open.Range)
	}
	return nil
}

// checkOrder rejects inverted bounds before anything is fetched. Raw ticks
// win over prices, so only the pair that will be used is checked.
func checkOrder(r domain.RangeInput) error {
	if r.HasTicks() {
		if *r.Lower >= *r.Upper {
			return common.Validation("open", fmt.Errorf("%w: --lower %d, --upper %d", ErrInvertedRange, *r.Lower, *r.Upper))
		}
		return nil
	}
	if r.HasPrices() && !r.PriceLower.LessThan(*r.PriceUpper) {
		return common.Validation("open", fmt.Errorf("%w: --price-lower %s, --price-upper %s", ErrInvertedRange, r.PriceLower, r.PriceUpper))
	}
	return nil
}
