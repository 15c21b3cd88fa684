package raydium

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
)

const (
	poolAccountName     = "PoolState"
	positionAccountName = "PersonalPositionState"

	rewardSlots = 3
	// discriminator + fixed fields through the reward infos
	poolMinLen     = 8 + 389 + rewardSlots*169
	positionMinLen = 8 + 89
)

type rewardLayout struct {
	RewardState           uint8
	OpenTime              uint64
	EndTime               uint64
	LastUpdateTime        uint64
	EmissionsPerSecondX64 bin.Uint128
	RewardTotalEmissioned uint64
	RewardClaimed         uint64
	TokenMint             solana.PublicKey
	TokenVault            solana.PublicKey
	Authority             solana.PublicKey
	RewardGrowthGlobalX64 bin.Uint128
}

// poolLayout is the prefix of the pool account that the encoders need.
type poolLayout struct {
	Bump                uint8
	AmmConfig           solana.PublicKey
	Owner               solana.PublicKey
	TokenMint0          solana.PublicKey
	TokenMint1          solana.PublicKey
	TokenVault0         solana.PublicKey
	TokenVault1         solana.PublicKey
	ObservationKey      solana.PublicKey
	MintDecimals0       uint8
	MintDecimals1       uint8
	TickSpacing         uint16
	Liquidity           bin.Uint128
	SqrtPriceX64        bin.Uint128
	TickCurrent         int32
	Padding3            uint16
	Padding4            uint16
	FeeGrowthGlobal0X64 bin.Uint128
	FeeGrowthGlobal1X64 bin.Uint128
	ProtocolFeesToken0  uint64
	ProtocolFeesToken1  uint64
	SwapInAmountToken0  bin.Uint128
	SwapOutAmountToken1 bin.Uint128
	SwapInAmountToken1  bin.Uint128
	SwapOutAmountToken0 bin.Uint128
	Status              uint8
	Padding             [7]uint8
	RewardInfos         [rewardSlots]rewardLayout
}

type personalPositionLayout struct {
	Bump           uint8
	NftMint        solana.PublicKey
	PoolID         solana.PublicKey
	TickLowerIndex int32
	TickUpperIndex int32
	Liquidity      bin.Uint128
}

func decodePool(address solana.PublicKey, data []byte) (*domain.PoolState, error) {
	if err := protocol.CheckAccountData(poolAccountName, data, poolMinLen); err != nil {
		return nil, err
	}
	var layout poolLayout
	if err := bin.NewBorshDecoder(data[8:]).Decode(&layout); err != nil {
		return nil, common.Validation("decode", fmt.Errorf("%w: raydium pool %s: %v", protocol.ErrAccountData, address, err))
	}
	if layout.TickSpacing == 0 {
		return nil, common.Validation("decode", fmt.Errorf("%w: raydium pool %s has zero tick spacing", protocol.ErrAccountData, address))
	}

	pool := &domain.PoolState{
		Address:   address,
		Protocol:  domain.ProtocolRaydium,
		ProgramID: common.RaydiumCLMMProgramID,
		Token0: domain.TokenInfo{
			Mint:     layout.TokenMint0,
			Vault:    layout.TokenVault0,
			Decimals: layout.MintDecimals0,
		},
		Token1: domain.TokenInfo{
			Mint:     layout.TokenMint1,
			Vault:    layout.TokenVault1,
			Decimals: layout.MintDecimals1,
		},
		SqrtPriceX64: builder.U128ToUint256(layout.SqrtPriceX64),
		TickCurrent:  layout.TickCurrent,
		TickSpacing:  layout.TickSpacing,
		Liquidity:    builder.U128ToUint256(layout.Liquidity),
		AmmConfig:    layout.AmmConfig,
		Oracle:       layout.ObservationKey,
	}
	for i, r := range layout.RewardInfos {
		if r.RewardState == 0 || r.TokenMint.IsZero() {
			continue
		}
		pool.Rewards = append(pool.Rewards, domain.RewardInfo{Index: uint8(i), Mint: r.TokenMint, Vault: r.TokenVault})
	}
	return pool, nil
}

func decodePosition(address solana.PublicKey, data []byte) (*domain.PositionState, error) {
	if err := protocol.CheckAccountData(positionAccountName, data, positionMinLen); err != nil {
		return nil, err
	}
	var layout personalPositionLayout
	if err := bin.NewBorshDecoder(data[8:]).Decode(&layout); err != nil {
		return nil, common.Validation("decode", fmt.Errorf("%w: raydium position %s: %v", protocol.ErrAccountData, address, err))
	}
	return &domain.PositionState{
		Identity:  domain.PositionIdentity{Address: address, Mint: layout.NftMint},
		Pool:      layout.PoolID,
		Range:     domain.RangeSpec{Lower: layout.TickLowerIndex, Upper: layout.TickUpperIndex},
		Liquidity: builder.U128ToUint256(layout.Liquidity),
	}, nil
}
