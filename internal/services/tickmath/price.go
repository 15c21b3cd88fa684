package tickmath

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var decQ128 = decimal.NewFromBigInt(bigQ128, 0)

// PriceToSqrtPriceX64 converts a human price (token1 per token0) into a
// Q64.64 square-root price. The scaled square is rounded first, then the
// integer square root is taken in the same direction.
func PriceToSqrtPriceX64(price decimal.Decimal, decimals0, decimals1 uint8, rounding Rounding) (*uint256.Int, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	raw := price.Shift(int32(decimals1) - int32(decimals0)).Mul(decQ128)

	var squared *big.Int
	if rounding == RoundUp {
		squared = raw.Ceil().BigInt()
	} else {
		squared = raw.Floor().BigInt()
	}
	root := new(big.Int).Sqrt(squared)
	if rounding == RoundUp && new(big.Int).Mul(root, root).Cmp(squared) < 0 {
		root.Add(root, big.NewInt(1))
	}

	out, overflow := uint256.FromBig(root)
	if overflow || !FitsU128(out) {
		return nil, fmt.Errorf("%w: %s", ErrSqrtPriceOverflow, price)
	}
	if out.Lt(MinSqrtPriceX64) || out.Gt(MaxSqrtPriceX64) {
		return nil, fmt.Errorf("%w: %s", ErrPriceOutOfRange, price)
	}
	return out, nil
}

// SqrtPriceX64ToPrice converts back to a human price with 38 fractional
// digits of precision before the decimal shift.
func SqrtPriceX64ToPrice(sqrtPriceX64 *uint256.Int, decimals0, decimals1 uint8) decimal.Decimal {
	sq := new(big.Int).Mul(sqrtPriceX64.ToBig(), sqrtPriceX64.ToBig())
	return decimal.NewFromBigInt(sq, 0).
		DivRound(decQ128, 38).
		Shift(int32(decimals0) - int32(decimals1))
}

// PriceToTick returns the floor (RoundDown) or ceil (RoundUp) tick of a human
// price. The result is not aligned to any spacing.
func PriceToTick(price decimal.Decimal, decimals0, decimals1 uint8, rounding Rounding) (int32, error) {
	sqrt, err := PriceToSqrtPriceX64(price, decimals0, decimals1, rounding)
	if err != nil {
		return 0, err
	}
	if rounding == RoundUp {
		return tickCeilAtSqrtPrice(sqrt)
	}
	return TickAtSqrtPrice(sqrt)
}

// TickToPrice is the human price at a tick.
func TickToPrice(tick int32, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	sqrt, err := SqrtPriceAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}
	return SqrtPriceX64ToPrice(sqrt, decimals0, decimals1), nil
}
