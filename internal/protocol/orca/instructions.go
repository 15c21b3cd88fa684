package orca

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
)

const (
	ixOpenPosition          = "open_position"
	ixIncreaseLiquidityV2   = "increase_liquidity_v2"
	ixDecreaseLiquidityV2   = "decrease_liquidity_v2"
	ixCollectFeesV2         = "collect_fees_v2"
	ixCollectRewardV2       = "collect_reward_v2"
	ixClosePosition         = "close_position"
	ixClosePositionWithExts = "close_position_with_token_extensions"
	ixSwapV2                = "swap_v2"
	ixInitializeTickArray   = "initialize_tick_array"
)

// Whirlpool's sqrt price extremes. Its max sits slightly below the tick math
// value at MaxTick.
var (
	MinSqrtPrice = uint256.MustFromDecimal("4295048016")
	MaxSqrtPrice = uint256.MustFromDecimal("79226673515401279992447579055")
)

// SwapPriceLimit replaces a zero limit with the program's extreme for the direction.
func SwapPriceLimit(limit *uint256.Int, aToB bool) *uint256.Int {
	if limit != nil && !limit.IsZero() {
		return limit
	}
	if aToB {
		return new(uint256.Int).Set(MinSqrtPrice)
	}
	return new(uint256.Int).Set(MaxSqrtPrice)
}

func initializeTickArray(whirlpool, funder solana.PublicKey, startIndex int32) (*builder.Instruction, error) {
	tickArray, err := TickArrayAddress(whirlpool, startIndex)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixInitializeTickArray).I32(startIndex).Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    ixInitializeTickArray,
		Program: common.WhirlpoolProgramID,
		Metas: solana.AccountMetaSlice{
			builder.ReadOnly(whirlpool),
			builder.Signer(funder, true),
			builder.Writable(tickArray),
			builder.ReadOnly(common.SystemProgramID),
		},
		Payload: data,
		Creates: tickArray,
	}, nil
}

func openPosition(c *protocol.BuildContext) (*builder.Instruction, solana.PublicKey, error) {
	mint := c.NewPosition.Mint
	if mint.IsZero() {
		return nil, solana.PublicKey{}, common.Validation(ixOpenPosition, fmt.Errorf("%w: position mint", protocol.ErrMissingContext))
	}
	position, bump, err := PositionAddress(mint)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	tokenAccount, err := builder.GetATAAddressForMint(c.Owner, mint, common.TokenProgramID)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	data, err := builder.NewAnchorPayload(ixOpenPosition).
		U8(bump).
		I32(c.Range.Lower).
		I32(c.Range.Upper).
		Bytes()
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	return &builder.Instruction{
		Name:    ixOpenPosition,
		Program: common.WhirlpoolProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Signer(c.Owner, true),
			builder.ReadOnly(c.Owner),
			builder.Writable(position),
			builder.Signer(mint, true),
			builder.Writable(tokenAccount),
			builder.ReadOnly(c.Pool.Address),
			builder.ReadOnly(common.TokenProgramID),
			builder.ReadOnly(common.SystemProgramID),
			builder.ReadOnly(common.RentSysvarID),
			builder.ReadOnly(common.ATAProgramID),
		},
		Payload: data,
		Creates: position,
	}, tokenAccount, nil
}

// liquidityMetas is the account list shared by increase and decrease.
func liquidityMetas(c *protocol.BuildContext, position, positionTokenAccount solana.PublicKey, r domain.RangeSpec) (solana.AccountMetaSlice, error) {
	pool := c.Pool
	lower, err := TickArrayAddress(pool.Address, TickArrayStartIndex(r.Lower, pool.TickSpacing))
	if err != nil {
		return nil, err
	}
	upper, err := TickArrayAddress(pool.Address, TickArrayStartIndex(r.Upper, pool.TickSpacing))
	if err != nil {
		return nil, err
	}
	ataA, ataB, err := protocol.UserTokenAccounts(c.Owner, pool)
	if err != nil {
		return nil, err
	}
	return solana.AccountMetaSlice{
		builder.Writable(pool.Address),
		builder.ReadOnly(protocol.TokenProgram(pool.Token0)),
		builder.ReadOnly(protocol.TokenProgram(pool.Token1)),
		builder.ReadOnly(common.MemoProgramID),
		builder.Signer(c.Owner, false),
		builder.Writable(position),
		builder.ReadOnly(positionTokenAccount),
		builder.ReadOnly(pool.Token0.Mint),
		builder.ReadOnly(pool.Token1.Mint),
		builder.Writable(ataA),
		builder.Writable(ataB),
		builder.Writable(pool.Token0.Vault),
		builder.Writable(pool.Token1.Vault),
		builder.Writable(lower),
		builder.Writable(upper),
	}, nil
}

func increaseLiquidityV2(c *protocol.BuildContext, position, positionTokenAccount solana.PublicKey, r domain.RangeSpec) (*builder.Instruction, error) {
	metas, err := liquidityMetas(c, position, positionTokenAccount, r)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixIncreaseLiquidityV2).
		U128(c.Delta.Liquidity).
		U64(c.Delta.Amount0).
		U64(c.Delta.Amount1).
		None().
		Bytes()
	if err != nil {
		return nil, common.Allocation(ixIncreaseLiquidityV2, err)
	}
	return &builder.Instruction{
		Name:    ixIncreaseLiquidityV2,
		Program: common.WhirlpoolProgramID,
		Metas:   metas,
		Payload: data,
	}, nil
}

func decreaseLiquidityV2(c *protocol.BuildContext) (*builder.Instruction, error) {
	pos := c.Position
	metas, err := liquidityMetas(c, pos.Identity.Address, pos.TokenAccount, pos.Range)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixDecreaseLiquidityV2).
		U128(pos.Liquidity).
		U64(c.MinOut0).
		U64(c.MinOut1).
		None().
		Bytes()
	if err != nil {
		return nil, common.Allocation(ixDecreaseLiquidityV2, err)
	}
	return &builder.Instruction{
		Name:    ixDecreaseLiquidityV2,
		Program: common.WhirlpoolProgramID,
		Metas:   metas,
		Payload: data,
	}, nil
}

func collectFeesV2(c *protocol.BuildContext) (*builder.Instruction, error) {
	pool, pos := c.Pool, c.Position
	ataA, ataB, err := protocol.UserTokenAccounts(c.Owner, pool)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixCollectFeesV2).None().Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    ixCollectFeesV2,
		Program: common.WhirlpoolProgramID,
		Metas: solana.AccountMetaSlice{
			builder.ReadOnly(pool.Address),
			builder.Signer(c.Owner, false),
			builder.Writable(pos.Identity.Address),
			builder.ReadOnly(pos.TokenAccount),
			builder.ReadOnly(pool.Token0.Mint),
			builder.ReadOnly(pool.Token1.Mint),
			builder.Writable(ataA),
			builder.Writable(pool.Token0.Vault),
			builder.Writable(ataB),
			builder.Writable(pool.Token1.Vault),
			builder.ReadOnly(protocol.TokenProgram(pool.Token0)),
			builder.ReadOnly(protocol.TokenProgram(pool.Token1)),
			builder.ReadOnly(common.MemoProgramID),
		},
		Payload: data,
	}, nil
}

func collectRewardV2(c *protocol.BuildContext, reward domain.RewardInfo) (*builder.Instruction, error) {
	pool, pos := c.Pool, c.Position
	program := reward.Program
	if program.IsZero() {
		program = common.TokenProgramID
	}
	rewardAccount, err := builder.GetATAAddressForMint(c.Owner, reward.Mint, program)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixCollectRewardV2).U8(reward.Index).None().Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    ixCollectRewardV2,
		Program: common.WhirlpoolProgramID,
		Metas: solana.AccountMetaSlice{
			builder.ReadOnly(pool.Address),
			builder.Signer(c.Owner, false),
			builder.Writable(pos.Identity.Address),
			builder.ReadOnly(pos.TokenAccount),
			builder.Writable(rewardAccount),
			builder.ReadOnly(reward.Mint),
			builder.Writable(reward.Vault),
			builder.ReadOnly(program),
			builder.ReadOnly(common.MemoProgramID),
		},
		Payload: data,
	}, nil
}

func closePosition(c *protocol.BuildContext) (*builder.Instruction, error) {
	pos := c.Position
	name := ixClosePosition
	program := pos.TokenProgram
	if program.IsZero() {
		program = common.TokenProgramID
	}
	if program.Equals(common.Token2022ID) {
		name = ixClosePositionWithExts
	}
	data, err := builder.NewAnchorPayload(name).Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    name,
		Program: common.WhirlpoolProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Signer(c.Owner, false),
			builder.Writable(c.Owner),
			builder.Writable(pos.Identity.Address),
			builder.Writable(pos.Identity.Mint),
			builder.Writable(pos.TokenAccount),
			builder.ReadOnly(program),
		},
		Payload: data,
	}, nil
}

func swapV2(c *protocol.BuildContext) (*builder.Instruction, error) {
	pool, req := c.Pool, c.Swap
	ataA, ataB, err := protocol.UserTokenAccounts(c.Owner, pool)
	if err != nil {
		return nil, err
	}
	arrays, err := swapTickArrays(pool.Address, pool.TickCurrent, pool.TickSpacing, req.AToB)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixSwapV2).
		U64(req.AmountIn).
		U64(req.MinAmountOut).
		U128(SwapPriceLimit(req.SqrtPriceLimitX64, req.AToB)).
		Bool(true).
		Bool(req.AToB).
		None().
		Bytes()
	if err != nil {
		return nil, common.Validation(ixSwapV2, err)
	}
	return &builder.Instruction{
		Name:    ixSwapV2,
		Program: common.WhirlpoolProgramID,
		Metas: solana.AccountMetaSlice{
			builder.ReadOnly(protocol.TokenProgram(pool.Token0)),
			builder.ReadOnly(protocol.TokenProgram(pool.Token1)),
			builder.ReadOnly(common.MemoProgramID),
			builder.Signer(c.Owner, false),
			builder.Writable(pool.Address),
			builder.ReadOnly(pool.Token0.Mint),
			builder.ReadOnly(pool.Token1.Mint),
			builder.Writable(ataA),
			builder.Writable(pool.Token0.Vault),
			builder.Writable(ataB),
			builder.Writable(pool.Token1.Vault),
			builder.Writable(arrays[0]),
			builder.Writable(arrays[1]),
			builder.Writable(arrays[2]),
			builder.Writable(pool.Oracle),
		},
		Payload: data,
	}, nil
}
