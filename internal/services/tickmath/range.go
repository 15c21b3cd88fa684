package tickmath

import (
	"fmt"

	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/shopspring/decimal"
)

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// AlignTick snaps tick to a multiple of spacing in the rounding direction.
// Aligned ticks are returned unchanged.
func AlignTick(tick, spacing int32, rounding Rounding) (int32, error) {
	if spacing <= 0 {
		return 0, ErrInvalidSpacing
	}
	s := int64(spacing)
	aligned := floorDiv(int64(tick), s) * s
	if rounding == RoundUp && aligned != int64(tick) {
		aligned += s
	}
	return int32(aligned), nil
}

// UsableTickBounds are the extreme ticks that are multiples of spacing.
func UsableTickBounds(spacing int32) (int32, int32) {
	lo, _ := AlignTick(MinTick, spacing, RoundUp)
	hi, _ := AlignTick(MaxTick, spacing, RoundDown)
	return lo, hi
}

// ValidateTickRange checks ordering, alignment and bounds of raw ticks.
func ValidateTickRange(r domain.RangeSpec, spacing int32) error {
	if spacing <= 0 {
		return common.Validation("tickmath.range", ErrInvalidSpacing)
	}
	if r.Upper <= r.Lower {
		return common.Validation("tickmath.range",
			fmt.Errorf("%w: upper %d must be greater than lower %d", ErrInvalidRange, r.Upper, r.Lower))
	}
	if r.Lower%spacing != 0 || r.Upper%spacing != 0 {
		return common.Validation("tickmath.range",
			fmt.Errorf("%w: ticks [%d, %d] are not multiples of spacing %d", ErrInvalidRange, r.Lower, r.Upper, spacing))
	}
	lo, hi := UsableTickBounds(spacing)
	if r.Lower < lo || r.Upper > hi {
		return common.Validation("tickmath.range",
			fmt.Errorf("%w: ticks [%d, %d] outside [%d, %d]", ErrTickOutOfBounds, r.Lower, r.Upper, lo, hi))
	}
	return nil
}

// ResolveTickRange turns caller input into an aligned tick range. Raw ticks
// must already be aligned; prices are floored (lower) and ceiled (upper).
func ResolveTickRange(in domain.RangeInput, spacing int32, decimals0, decimals1 uint8) (domain.RangeSpec, error) {
	var r domain.RangeSpec
	switch {
	case in.HasTicks():
		r = domain.RangeSpec{Lower: *in.Lower, Upper: *in.Upper}
	case in.HasPrices():
		lower, err := priceBoundToTick(*in.PriceLower, spacing, decimals0, decimals1, RoundDown)
		if err != nil {
			return r, err
		}
		upper, err := priceBoundToTick(*in.PriceUpper, spacing, decimals0, decimals1, RoundUp)
		if err != nil {
			return r, err
		}
		r = domain.RangeSpec{Lower: lower, Upper: upper}
	default:
		return r, common.Validation("tickmath.range",
			fmt.Errorf("%w: need --lower/--upper or --price-lower/--price-upper", ErrInvalidRange))
	}
	return r, ValidateTickRange(r, spacing)
}

func priceBoundToTick(price decimal.Decimal, spacing int32, decimals0, decimals1 uint8, rounding Rounding) (int32, error) {
	tick, err := PriceToTick(price, decimals0, decimals1, rounding)
	if err != nil {
		return 0, common.Validation("tickmath.price", err)
	}
	aligned, err := AlignTick(tick, spacing, rounding)
	if err != nil {
		return 0, common.Validation("tickmath.price", err)
	}
	return aligned, nil
}

// TickArrayStartIndex is the first tick of the array holding tick.
func TickArrayStartIndex(tick, spacing, arraySize int32) int32 {
	span := int64(spacing) * int64(arraySize)
	return int32(floorDiv(int64(tick), span) * span)
}
