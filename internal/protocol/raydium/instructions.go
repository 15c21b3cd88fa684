package raydium

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

const (
	ixOpenPositionV2      = "open_position_v2"
	ixIncreaseLiquidityV2 = "increase_liquidity_v2"
	ixDecreaseLiquidityV2 = "decrease_liquidity_v2"
	ixClosePosition       = "close_position"
	ixSwap                = "swap"
)

var ErrToken2022Swap = errors.New("raydium single swap supports SPL Token mints only")

// SwapPriceLimit replaces a zero limit with the strict bound the program
// accepts for the direction.
func SwapPriceLimit(limit *uint256.Int, aToB bool) *uint256.Int {
	if limit != nil && !limit.IsZero() {
		return limit
	}
	if aToB {
		return new(uint256.Int).AddUint64(tickmath.MinSqrtPriceX64, 1)
	}
	return new(uint256.Int).SubUint64(tickmath.MaxSqrtPriceX64, 1)
}

func openPositionV2(c *protocol.BuildContext) (*builder.Instruction, error) {
	pool := c.Pool
	mint := c.NewPosition.Mint
	if mint.IsZero() {
		return nil, common.Validation(ixOpenPositionV2, fmt.Errorf("%w: position mint", protocol.ErrMissingContext))
	}
	accts, err := derivePositionAccounts(pool.Address, pool.TickSpacing, mint, c.Range.Lower, c.Range.Upper)
	if err != nil {
		return nil, err
	}
	nftAccount, err := builder.GetATAAddressForMint(c.Owner, mint, common.TokenProgramID)
	if err != nil {
		return nil, err
	}
	metadata, err := MetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	ata0, ata1, err := protocol.UserTokenAccounts(c.Owner, pool)
	if err != nil {
		return nil, err
	}

	data, err := builder.NewAnchorPayload(ixOpenPositionV2).
		I32(c.Range.Lower).
		I32(c.Range.Upper).
		I32(accts.lowerStart).
		I32(accts.upperStart).
		U128(c.Delta.Liquidity).
		U64(c.Delta.Amount0).
		U64(c.Delta.Amount1).
		Bool(true).
		None().
		Bytes()
	if err != nil {
		return nil, common.Allocation(ixOpenPositionV2, err)
	}

	return &builder.Instruction{
		Name:    ixOpenPositionV2,
		Program: common.RaydiumCLMMProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Signer(c.Owner, true),
			builder.ReadOnly(c.Owner),
			builder.Signer(mint, true),
			builder.Writable(nftAccount),
			builder.Writable(metadata),
			builder.Writable(pool.Address),
			builder.Writable(accts.protocol),
			builder.Writable(accts.tickArrayLower),
			builder.Writable(accts.tickArrayUpper),
			builder.Writable(accts.personal),
			builder.Writable(ata0),
			builder.Writable(ata1),
			builder.Writable(pool.Token0.Vault),
			builder.Writable(pool.Token1.Vault),
			builder.ReadOnly(common.RentSysvarID),
			builder.ReadOnly(common.SystemProgramID),
			builder.ReadOnly(common.TokenProgramID),
			builder.ReadOnly(common.ATAProgramID),
			builder.ReadOnly(common.MetadataProgramID),
			builder.ReadOnly(common.Token2022ID),
			builder.ReadOnly(pool.Token0.Mint),
			builder.ReadOnly(pool.Token1.Mint),
		},
		Payload: data,
	}, nil
}

// liquidityAccounts derives what increase and decrease share for an existing position.
func liquidityAccounts(c *protocol.BuildContext) (*positionAccounts, solana.PublicKey, solana.PublicKey, error) {
	pos := c.Position
	accts, err := derivePositionAccounts(c.Pool.Address, c.Pool.TickSpacing, pos.Identity.Mint, pos.Range.Lower, pos.Range.Upper)
	if err != nil {
		return nil, solana.PublicKey{}, solana.PublicKey{}, err
	}
	ata0, ata1, err := protocol.UserTokenAccounts(c.Owner, c.Pool)
	if err != nil {
		return nil, solana.PublicKey{}, solana.PublicKey{}, err
	}
	return accts, ata0, ata1, nil
}

func increaseLiquidityV2(c *protocol.BuildContext) (*builder.Instruction, error) {
	pool, pos := c.Pool, c.Position
	accts, ata0, ata1, err := liquidityAccounts(c)
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
		Program: common.RaydiumCLMMProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Signer(c.Owner, false),
			builder.ReadOnly(pos.TokenAccount),
			builder.Writable(pool.Address),
			builder.Writable(accts.protocol),
			builder.Writable(accts.personal),
			builder.Writable(accts.tickArrayLower),
			builder.Writable(accts.tickArrayUpper),
			builder.Writable(ata0),
			builder.Writable(ata1),
			builder.Writable(pool.Token0.Vault),
			builder.Writable(pool.Token1.Vault),
			builder.ReadOnly(common.TokenProgramID),
			builder.ReadOnly(common.Token2022ID),
			builder.ReadOnly(pool.Token0.Mint),
			builder.ReadOnly(pool.Token1.Mint),
		},
		Payload: data,
	}, nil
}

func decreaseLiquidityV2(c *protocol.BuildContext) (*builder.Instruction, error) {
	pool, pos := c.Pool, c.Position
	accts, ata0, ata1, err := liquidityAccounts(c)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixDecreaseLiquidityV2).
		U128(pos.Liquidity).
		U64(c.MinOut0).
		U64(c.MinOut1).
		Bytes()
	if err != nil {
		return nil, common.Allocation(ixDecreaseLiquidityV2, err)
	}

	metas := solana.AccountMetaSlice{
		builder.Signer(c.Owner, false),
		builder.ReadOnly(pos.TokenAccount),
		builder.Writable(pos.Identity.Address),
		builder.Writable(pool.Address),
		builder.Writable(accts.protocol),
		builder.Writable(pool.Token0.Vault),
		builder.Writable(pool.Token1.Vault),
		builder.Writable(accts.tickArrayLower),
		builder.Writable(accts.tickArrayUpper),
		builder.Writable(ata0),
		builder.Writable(ata1),
		builder.ReadOnly(common.TokenProgramID),
		builder.ReadOnly(common.Token2022ID),
		builder.ReadOnly(common.MemoProgramID),
		builder.ReadOnly(pool.Token0.Mint),
		builder.ReadOnly(pool.Token1.Mint),
	}
	for _, r := range pool.Rewards {
		userReward, err := builder.GetATAAddressForMint(c.Owner, r.Mint, rewardProgram(r))
		if err != nil {
			return nil, err
		}
		metas = append(metas,
			builder.Writable(r.Vault),
			builder.Writable(userReward),
			builder.ReadOnly(r.Mint),
		)
	}

	return &builder.Instruction{
		Name:    ixDecreaseLiquidityV2,
		Program: common.RaydiumCLMMProgramID,
		Metas:   metas,
		Payload: data,
	}, nil
}

func closePosition(c *protocol.BuildContext) (*builder.Instruction, error) {
	pos := c.Position
	data, err := builder.NewAnchorPayload(ixClosePosition).Bytes()
	if err != nil {
		return nil, err
	}
	nftProgram := pos.TokenProgram
	if nftProgram.IsZero() {
		nftProgram = common.TokenProgramID
	}
	return &builder.Instruction{
		Name:    ixClosePosition,
		Program: common.RaydiumCLMMProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Signer(c.Owner, true),
			builder.Writable(pos.Identity.Mint),
			builder.Writable(pos.TokenAccount),
			builder.Writable(pos.Identity.Address),
			builder.ReadOnly(common.SystemProgramID),
			builder.ReadOnly(nftProgram),
		},
		Payload: data,
	}, nil
}

func swap(c *protocol.BuildContext) (*builder.Instruction, error) {
	pool, req := c.Pool, c.Swap
	in, out := protocol.SwapSides(pool, req.AToB)
	if protocol.TokenProgram(in).Equals(common.Token2022ID) || protocol.TokenProgram(out).Equals(common.Token2022ID) {
		return nil, common.Validation(ixSwap, fmt.Errorf("%w: input %s, output %s", ErrToken2022Swap, in.Mint, out.Mint))
	}
	ataIn, err := builder.GetATAAddressForMint(c.Owner, in.Mint, common.TokenProgramID)
	if err != nil {
		return nil, err
	}
	ataOut, err := builder.GetATAAddressForMint(c.Owner, out.Mint, common.TokenProgramID)
	if err != nil {
		return nil, err
	}
	tickArray, err := TickArrayAddress(pool.Address, TickArrayStartIndex(pool.TickCurrent, pool.TickSpacing))
	if err != nil {
		return nil, err
	}

	data, err := builder.NewAnchorPayload(ixSwap).
		U64(req.AmountIn).
		U64(req.MinAmountOut).
		U128(SwapPriceLimit(req.SqrtPriceLimitX64, req.AToB)).
		Bool(true).
		Bytes()
	if err != nil {
		return nil, common.Validation(ixSwap, err)
	}

	return &builder.Instruction{
		Name:    ixSwap,
		Program: common.RaydiumCLMMProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Signer(c.Owner, false),
			builder.ReadOnly(pool.AmmConfig),
			builder.Writable(pool.Address),
			builder.Writable(ataIn),
			builder.Writable(ataOut),
			builder.Writable(in.Vault),
			builder.Writable(out.Vault),
			builder.Writable(pool.Oracle),
			builder.ReadOnly(common.TokenProgramID),
			builder.Writable(tickArray),
		},
		Payload: data,
	}, nil
}

func rewardProgram(r domain.RewardInfo) solana.PublicKey {
	if r.Program.IsZero() {
		return common.TokenProgramID
	}
	return r.Program
}
