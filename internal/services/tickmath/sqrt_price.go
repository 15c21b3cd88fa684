package tickmath

import (
	"fmt"

	"github.com/holiman/uint256"
)

// sqrt(1.0001^-(2^i)) in Q64.64 for i = 1..18; bit 0 is seeded separately.
var tickRatios = [...]uint64{
	18444899583751176192,
	18443055278223355904,
	18439367220385607680,
	18431993317065453568,
	18417254355718170624,
	18387811781193609216,
	18329067761203558400,
	18212142134806163456,
	17980523815641700352,
	17526086738831433728,
	16651378430235570176,
	15030750278694412288,
	12247334978884435968,
	8131365268886854656,
	3584323654725218816,
	696457651848324352,
	26294789957507116,
	37481735321082,
}

const tickRatioBit0 uint64 = 18445821805675395072

// SqrtPriceAtTick returns sqrt(1.0001^tick) as Q64.64.
func SqrtPriceAtTick(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrTickOutOfBounds, tick)
	}
	abs := uint32(tick)
	if tick < 0 {
		abs = uint32(-tick)
	}

	ratio := new(uint256.Int)
	if abs&1 != 0 {
		ratio.SetUint64(tickRatioBit0)
	} else {
		ratio.Set(u256Q64)
	}
	mul := new(uint256.Int)
	for i, m := range tickRatios {
		if abs&(1<<(i+1)) != 0 {
			mul.SetUint64(m)
			ratio.Mul(ratio, mul)
			ratio.Rsh(ratio, 64)
		}
	}
	if tick > 0 {
		ratio.Div(u256MaxU128, ratio)
	}
	return ratio, nil
}

// MustSqrtPriceAtTick panics on out of range ticks. For constants and tests.
func MustSqrtPriceAtTick(tick int32) *uint256.Int {
	v, err := SqrtPriceAtTick(tick)
	if err != nil {
		panic(err)
	}
	return v
}

// TickAtSqrtPrice returns the greatest tick whose sqrt price is <= sqrtPriceX64.
func TickAtSqrtPrice(sqrtPriceX64 *uint256.Int) (int32, error) {
	if sqrtPriceX64 == nil || sqrtPriceX64.Lt(MinSqrtPriceX64) || sqrtPriceX64.Gt(MaxSqrtPriceX64) {
		return 0, fmt.Errorf("%w: sqrt price %v", ErrPriceOutOfRange, sqrtPriceX64)
	}
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		if MustSqrtPriceAtTick(mid).Cmp(sqrtPriceX64) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// tickCeilAtSqrtPrice returns the smallest tick whose sqrt price is >= sqrtPriceX64.
func tickCeilAtSqrtPrice(sqrtPriceX64 *uint256.Int) (int32, error) {
	t, err := TickAtSqrtPrice(sqrtPriceX64)
	if err != nil {
		return 0, err
	}
	if MustSqrtPriceAtTick(t).Eq(sqrtPriceX64) {
		return t, nil
	}
	if t == MaxTick {
		return 0, fmt.Errorf("%w: above max tick", ErrPriceOutOfRange)
	}
	return t + 1, nil
}
