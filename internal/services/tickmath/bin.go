package tickmath

import (
	"fmt"
	"math"
	"math/big"

	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/shopspring/decimal"
)

// binPrec is the mantissa width used for bin price powers. Fixed precision
// keeps results reproducible across platforms.
const binPrec = 256

func binBase(binStep uint16) *big.Float {
	num := new(big.Float).SetPrec(binPrec).SetInt64(int64(common.BasisPointMax) + int64(binStep))
	return num.Quo(num, new(big.Float).SetPrec(binPrec).SetInt64(common.BasisPointMax))
}

// rawBinPrice is (1 + binStep/10000)^binID in base units, by repeated squaring.
func rawBinPrice(binID int32, binStep uint16) *big.Float {
	base := binBase(binStep)
	result := new(big.Float).SetPrec(binPrec).SetInt64(1)
	exp := int64(binID)
	if exp < 0 {
		exp = -exp
	}
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, base)
		}
		base.Mul(base, base)
		exp >>= 1
	}
	if binID < 0 {
		result.Quo(new(big.Float).SetPrec(binPrec).SetInt64(1), result)
	}
	return result
}

// BinPrice is the human price (token1 per token0) of a bin.
func BinPrice(binID int32, binStep uint16, decimals0, decimals1 uint8) (decimal.Decimal, error) {
	if binStep == 0 {
		return decimal.Zero, ErrInvalidSpacing
	}
	d, err := decimal.NewFromString(rawBinPrice(binID, binStep).Text('e', 40))
	if err != nil {
		return decimal.Zero, err
	}
	return d.Shift(int32(decimals0) - int32(decimals1)), nil
}

// PriceToBinID returns the floor or ceil bin of a human price.
func PriceToBinID(price decimal.Decimal, binStep uint16, decimals0, decimals1 uint8, rounding Rounding) (int32, error) {
	if binStep == 0 {
		return 0, ErrInvalidSpacing
	}
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPrice, price)
	}
	raw := price.Shift(int32(decimals1) - int32(decimals0))
	target, _, err := big.ParseFloat(raw.String(), 10, binPrec, big.ToNearestEven)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}

	f, _ := raw.Float64()
	guess := math.Floor(math.Log(f) / math.Log1p(float64(binStep)/common.BasisPointMax))
	if math.IsNaN(guess) || math.IsInf(guess, 0) || guess < float64(MinBinID) || guess > float64(MaxBinID) {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, price)
	}

	// Walk the float estimate onto the exact floor: price(id) <= target < price(id+1).
	id := int32(guess)
	for id > MinBinID && rawBinPrice(id, binStep).Cmp(target) > 0 {
		id--
	}
	for id < MaxBinID && rawBinPrice(id+1, binStep).Cmp(target) <= 0 {
		id++
	}
	if rounding == RoundUp && rawBinPrice(id, binStep).Cmp(target) != 0 {
		id++
	}
	if id < MinBinID || id > MaxBinID {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, price)
	}
	return id, nil
}

// BinArrayIndex is the bin array holding binID, floor(binID / 70).
func BinArrayIndex(binID int32) int64 {
	return floorDiv(int64(binID), int64(BinsPerArray))
}

// ValidateBinRange checks a DLMM range: upper > lower and the width fits one position.
func ValidateBinRange(r domain.RangeSpec) error {
	if r.Upper <= r.Lower {
		return common.Validation("tickmath.bins",
			fmt.Errorf("%w: upper bin %d must be greater than lower bin %d", ErrInvalidRange, r.Upper, r.Lower))
	}
	if r.Lower < MinBinID || r.Upper > MaxBinID {
		return common.Validation("tickmath.bins",
			fmt.Errorf("%w: bins [%d, %d]", ErrTickOutOfBounds, r.Lower, r.Upper))
	}
	if r.Bins() > int64(MaxBinsPerPosition) {
		return common.Validation("tickmath.bins",
			fmt.Errorf("%w: %d bins exceed the %d bins a position can hold", ErrInvalidRange, r.Bins(), MaxBinsPerPosition))
	}
	return nil
}

// ResolveBinRange turns caller input into a bin range; prices are floored
// (lower) and ceiled (upper).
func ResolveBinRange(in domain.RangeInput, binStep uint16, decimals0, decimals1 uint8) (domain.RangeSpec, error) {
	var r domain.RangeSpec
	switch {
	case in.HasTicks():
		r = domain.RangeSpec{Lower: *in.Lower, Upper: *in.Upper}
	case in.HasPrices():
		lower, err := PriceToBinID(*in.PriceLower, binStep, decimals0, decimals1, RoundDown)
		if err != nil {
			return r, common.Validation("tickmath.price", err)
		}
		upper, err := PriceToBinID(*in.PriceUpper, binStep, decimals0, decimals1, RoundUp)
		if err != nil {
			return r, common.Validation("tickmath.price", err)
		}
		r = domain.RangeSpec{Lower: lower, Upper: upper}
	default:
		return r, common.Validation("tickmath.bins",
			fmt.Errorf("%w: need --lower/--upper or --price-lower/--price-upper", ErrInvalidRange))
	}
	return r, ValidateBinRange(r)
}
