package orca

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
	whirlpoolAccountName = "Whirlpool"
	positionAccountName  = "Position"

	rewardSlots    = 3
	whirlpoolLen   = 653
	positionMinLen = 8 + 88
)

type rewardLayout struct {
	Mint                  solana.PublicKey
	Vault                 solana.PublicKey
	Authority             solana.PublicKey
	EmissionsPerSecondX64 bin.Uint128
	GrowthGlobalX64       bin.Uint128
}

type whirlpoolLayout struct {
	WhirlpoolsConfig           solana.PublicKey
	WhirlpoolBump              uint8
	TickSpacing                uint16
	FeeTierIndexSeed           [2]uint8
	FeeRate                    uint16
	ProtocolFeeRate            uint16
	Liquidity                  bin.Uint128
	SqrtPrice                  bin.Uint128
	TickCurrentIndex           int32
	ProtocolFeeOwedA           uint64
	ProtocolFeeOwedB           uint64
	TokenMintA                 solana.PublicKey
	TokenVaultA                solana.PublicKey
	FeeGrowthGlobalA           bin.Uint128
	TokenMintB                 solana.PublicKey
	TokenVaultB                solana.PublicKey
	FeeGrowthGlobalB           bin.Uint128
	RewardLastUpdatedTimestamp uint64
	RewardInfos                [rewardSlots]rewardLayout
}

type positionLayout struct {
	Whirlpool      solana.PublicKey
	PositionMint   solana.PublicKey
	Liquidity      bin.Uint128
	TickLowerIndex int32
	TickUpperIndex int32
}

func decodeWhirlpool(address solana.PublicKey, data []byte) (*domain.PoolState, error) {
	if err := protocol.CheckAccountData(whirlpoolAccountName, data, whirlpoolLen); err != nil {
		return nil, err
	}
	var layout whirlpoolLayout
	if err := bin.NewBorshDecoder(data[8:]).Decode(&layout); err != nil {
		return nil, common.Validation("decode", fmt.Errorf("%w: whirlpool %s: %v", protocol.ErrAccountData, address, err))
	}
	if layout.TickSpacing == 0 {
		return nil, common.Validation("decode", fmt.Errorf("%w: whirlpool %s has zero tick spacing", protocol.ErrAccountData, address))
	}
	oracle, err := OracleAddress(address)
	if err != nil {
		return nil, err
	}

	pool := &domain.PoolState{
		Address:      address,
		Protocol:     domain.ProtocolOrca,
		ProgramID:    common.WhirlpoolProgramID,
		Token0:       domain.TokenInfo{Mint: layout.TokenMintA, Vault: layout.TokenVaultA},
		Token1:       domain.TokenInfo{Mint: layout.TokenMintB, Vault: layout.TokenVaultB},
		SqrtPriceX64: builder.U128ToUint256(layout.SqrtPrice),
		TickCurrent:  layout.TickCurrentIndex,
		TickSpacing:  layout.TickSpacing,
		Liquidity:    builder.U128ToUint256(layout.Liquidity),
		FeeRate:      uint32(layout.FeeRate),
		Oracle:       oracle,
	}
	for i, r := range layout.RewardInfos {
		if r.Mint.IsZero() {
			continue
		}
		pool.Rewards = append(pool.Rewards, domain.RewardInfo{Index: uint8(i), Mint: r.Mint, Vault: r.Vault})
	}
	return pool, nil
}

func decodePosition(address solana.PublicKey, data []byte) (*domain.PositionState, error) {
	if err := protocol.CheckAccountData(positionAccountName, data, positionMinLen); err != nil {
		return nil, err
	}
	var layout positionLayout
	if err := bin.NewBorshDecoder(data[8:]).Decode(&layout); err != nil {
		return nil, common.Validation("decode", fmt.Errorf("%w: whirlpool position %s: %v", protocol.ErrAccountData, address, err))
	}
	return &domain.PositionState{
		Identity:  domain.PositionIdentity{Address: address, Mint: layout.PositionMint},
		Pool:      layout.Whirlpool,
		Range:     domain.RangeSpec{Lower: layout.TickLowerIndex, Upper: layout.TickUpperIndex},
		Liquidity: builder.U128ToUint256(layout.Liquidity),
	}, nil
}
