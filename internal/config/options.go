package config

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

// Options is one invocation's settings after flags, env and config file are merged.
type Options struct {
	General GeneralConfig
	RPC     RPCConfig
	Compute ComputeConfig
	Cache   CacheConfig

	Dex     string
	Keypair string
	DryRun  bool

	Pool       string
	Lower      *int32
	Upper      *int32
	PriceLower string
	PriceUpper string
	Amount0    uint64
	Amount1    uint64

	RemovePosition string
	MinOut0        uint64
	MinOut1        uint64
	Close          bool

	SwapPool           string
	SwapAmountIn       uint64
	SwapMinOut         uint64
	SwapAToB           bool
	SwapSqrtPriceLimit string

	WrapSol   uint64
	UnwrapSol bool
}

func LoadOptions(flags *pflag.FlagSet) (*Options, error) {
	v, err := newViper(flags)
	if err != nil {
		return nil, common.Validation("config", err)
	}

	o := &Options{}
	if err := Load(v, &o.General, &o.RPC, &o.Compute, &o.Cache); err != nil {
		return nil, common.Validation("config", err)
	}

	o.Dex = v.GetString("dex")
	o.Keypair = v.GetString("keypair")
	o.DryRun = v.GetBool("dry-run")

	o.Pool = v.GetString("pool")
	o.Lower = optionalInt32(v, "lower")
	o.Upper = optionalInt32(v, "upper")
	o.PriceLower = v.GetString("price-lower")
	o.PriceUpper = v.GetString("price-upper")
	o.Amount0 = v.GetUint64("amount0")
	o.Amount1 = v.GetUint64("amount1")

	o.RemovePosition = v.GetString("remove-position")
	o.MinOut0 = v.GetUint64("min-out0")
	o.MinOut1 = v.GetUint64("min-out1")
	o.Close = v.GetBool("close")

	o.SwapPool = v.GetString("swap-pool")
	o.SwapAmountIn = v.GetUint64("swap-amount-in")
	o.SwapMinOut = v.GetUint64("swap-min-out")
	o.SwapAToB = v.GetBool("swap-a-to-b")
	o.SwapSqrtPriceLimit = v.GetString("swap-sqrt-price-limit")

	o.WrapSol = v.GetUint64("wrap-sol")
	o.UnwrapSol = v.GetBool("unwrap-sol")
	return o, nil
}

func optionalInt32(v *viper.Viper, key string) *int32 {
	if !v.IsSet(key) {
		return nil
	}
	n := v.GetInt32(key)
	return &n
}

// Request parses addresses and numbers into a domain request. Which mode
// runs, and what that mode requires, is decided by the dispatcher.
func (o *Options) Request() (*domain.Request, error) {
	dex, err := domain.ParseProtocol(o.Dex)
	if err != nil {
		return nil, common.Validation("flags", err)
	}

	req := &domain.Request{
		Protocol: dex,
		Budget:   domain.ComputeBudget{UnitPrice: o.Compute.UnitPrice, UnitLimit: o.Compute.UnitLimit},
		Wrap:     domain.WrapRequest{Lamports: o.WrapSol},
		Unwrap:   domain.UnwrapRequest{Enabled: o.UnwrapSol},
		DryRun:   o.DryRun,
	}

	if o.SwapPool != "" {
		pool, err := builder.ParsePublicKey("swap pool", o.SwapPool)
		if err != nil {
			return nil, err
		}
		limit, err := parseSqrtPriceLimit(o.SwapSqrtPriceLimit)
		if err != nil {
			return nil, err
		}
		req.Swap = &domain.SwapRequest{
			Pool:              pool,
			AmountIn:          o.SwapAmountIn,
			MinAmountOut:      o.SwapMinOut,
			AToB:              o.SwapAToB,
			SqrtPriceLimitX64: limit,
		}
		// Swap mode ignores the position flags.
		return req, nil
	}

	if o.RemovePosition != "" {
		position, err := builder.ParsePublicKey("position", o.RemovePosition)
		if err != nil {
			return nil, err
		}
		req.Remove = &domain.RemoveRequest{
			Position: position,
			MinOut0:  o.MinOut0,
			MinOut1:  o.MinOut1,
			Close:    o.Close,
		}
	}

	if o.Pool != "" {
		pool, err := builder.ParsePublicKey("pool", o.Pool)
		if err != nil {
			return nil, err
		}
		rng, err := o.rangeInput()
		if err != nil {
			return nil, err
		}
		req.Open = &domain.OpenRequest{
			Pool:   pool,
			Range:  rng,
			Bounds: domain.AmountBounds{Amount0: o.Amount0, Amount1: o.Amount1},
		}
		if req.Remove != nil {
			req.Remove.Pool = pool
		}
	}
	return req, nil
}

func (o *Options) rangeInput() (domain.RangeInput, error) {
	var in domain.RangeInput
	if (o.Lower == nil) != (o.Upper == nil) {
		return in, common.Validationf("flags", "--lower and --upper must be given together")
	}
	in.Lower, in.Upper = o.Lower, o.Upper

	if (o.PriceLower == "") != (o.PriceUpper == "") {
		return in, common.Validationf("flags", "--price-lower and --price-upper must be given together")
	}
	if o.PriceLower != "" {
		lo, err := parsePrice("price-lower", o.PriceLower)
		if err != nil {
			return in, err
		}
		hi, err := parsePrice("price-upper", o.PriceUpper)
		if err != nil {
			return in, err
		}
		in.PriceLower, in.PriceUpper = &lo, &hi
	}
	return in, nil
}

func parsePrice(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, common.Validationf("flags", "--%s: %v", field, err)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, common.Validationf("flags", "--%s must be positive", field)
	}
	return d, nil
}

// parseSqrtPriceLimit accepts a decimal u128; zero means the protocol extreme.
func parseSqrtPriceLimit(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, common.Validationf("flags", "--swap-sqrt-price-limit: %v", err)
	}
	if !tickmath.FitsU128(v) {
		return nil, common.Validationf("flags", "--swap-sqrt-price-limit %s exceeds u128", s)
	}
	return v, nil
}

func (o *Options) String() string {
	return fmt.Sprintf("dex=%s rpc=%s commitment=%s dryRun=%v", o.Dex, o.RPC.URL, o.RPC.Commitment, o.DryRun)
}
