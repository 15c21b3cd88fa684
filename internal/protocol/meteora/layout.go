package meteora

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
)

const (
	lbPairAccountName   = "LbPair"
	positionAccountName = "PositionV2"

	lbPairCoreOffset   = 76
	lbPairOracleOffset = 552
	lbPairMinLen       = lbPairOracleOffset + 32

	positionSharesOffset = 72
	positionBinsOffset   = 7912
	positionMinLen       = positionBinsOffset + 8

	sharesPerPosition = 70
)

// lbPairCore is the contiguous run of pair fields starting at active_id.
type lbPairCore struct {
	ActiveID                int32
	BinStep                 uint16
	Status                  uint8
	RequireBaseFactorSeed   uint8
	BaseFactorSeed          [2]uint8
	ActivationType          uint8
	CreatorPoolOnOffControl uint8
	TokenXMint              solana.PublicKey
	TokenYMint              solana.PublicKey
	ReserveX                solana.PublicKey
	ReserveY                solana.PublicKey
}

type positionHead struct {
	LbPair          solana.PublicKey
	Owner           solana.PublicKey
	LiquidityShares [sharesPerPosition]bin.Uint128
}

type positionBins struct {
	LowerBinID int32
	UpperBinID int32
}

func decodeLbPair(address solana.PublicKey, data []byte) (*domain.PoolState, error) {
	if err := protocol.CheckAccountData(lbPairAccountName, data, lbPairMinLen); err != nil {
		return nil, err
	}
	var core lbPairCore
	if err := bin.NewBorshDecoder(data[lbPairCoreOffset:]).Decode(&core); err != nil {
		return nil, common.Validation("decode", fmt.Errorf("%w: lb pair %s: %v", protocol.ErrAccountData, address, err))
	}
	if core.BinStep == 0 {
		return nil, common.Validation("decode", fmt.Errorf("%w: lb pair %s has zero bin step", protocol.ErrAccountData, address))
	}
	return &domain.PoolState{
		Address:     address,
		Protocol:    domain.ProtocolMeteora,
		ProgramID:   common.DLMMProgramID,
		Token0:      domain.TokenInfo{Mint: core.TokenXMint, Vault: core.ReserveX},
		Token1:      domain.TokenInfo{Mint: core.TokenYMint, Vault: core.ReserveY},
		ActiveBinID: core.ActiveID,
		BinStep:     core.BinStep,
		Oracle:      solana.PublicKeyFromBytes(data[lbPairOracleOffset : lbPairOracleOffset+32]),
	}, nil
}

func decodePosition(address solana.PublicKey, data []byte) (*domain.PositionState, error) {
	if err := protocol.CheckAccountData(positionAccountName, data, positionMinLen); err != nil {
		return nil, err
	}
	var head positionHead
	if err := bin.NewBorshDecoder(data[8:]).Decode(&head); err != nil {
		return nil, common.Validation("decode", fmt.Errorf("%w: position %s: %v", protocol.ErrAccountData, address, err))
	}
	var bins positionBins
	if err := bin.NewBorshDecoder(data[positionBinsOffset:]).Decode(&bins); err != nil {
		return nil, common.Validation("decode", fmt.Errorf("%w: position %s: %v", protocol.ErrAccountData, address, err))
	}

	total := new(uint256.Int)
	for _, share := range head.LiquidityShares {
		total.Add(total, builder.U128ToUint256(share))
	}
	return &domain.PositionState{
		Identity:  domain.PositionIdentity{Address: address},
		Pool:      head.LbPair,
		Owner:     head.Owner,
		Range:     domain.RangeSpec{Lower: bins.LowerBinID, Upper: bins.UpperBinID},
		Liquidity: total,
	}, nil
}
