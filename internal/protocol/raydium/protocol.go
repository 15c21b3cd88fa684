// Package raydium encodes the tick based CLMM whose positions are NFTs
// (--dex raydium, protocolA).
package raydium

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/liquidity"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

type Protocol struct{}

func New() *Protocol {
	return &Protocol{}
}

var _ protocol.PositionProtocol = (*Protocol)(nil)

func (p *Protocol) Kind() domain.Protocol {
	return domain.ProtocolRaydium
}

func (p *Protocol) ProgramID() solana.PublicKey {
	return common.RaydiumCLMMProgramID
}

func (p *Protocol) DecodePool(address, owner solana.PublicKey, data []byte) (*domain.PoolState, error) {
	if err := protocol.CheckPoolOwner(p, address, owner); err != nil {
		return nil, err
	}
	return decodePool(address, data)
}

func (p *Protocol) PositionAccount(nftMint solana.PublicKey) (solana.PublicKey, error) {
	return PersonalPositionAddress(nftMint)
}

func (p *Protocol) DecodePosition(nftMint solana.PublicKey, data []byte) (*domain.PositionState, error) {
	address, err := PersonalPositionAddress(nftMint)
	if err != nil {
		return nil, err
	}
	pos, err := decodePosition(address, data)
	if err != nil {
		return nil, err
	}
	if !pos.Identity.Mint.Equals(nftMint) {
		return nil, common.Validation("decode", fmt.Errorf("%w: position %s belongs to mint %s", protocol.ErrAccountData, address, pos.Identity.Mint))
	}
	return pos, nil
}

func (p *Protocol) ResolveRange(pool *domain.PoolState, in domain.RangeInput) (domain.RangeSpec, error) {
	return tickmath.ResolveTickRange(in, int32(pool.TickSpacing), pool.Token0.Decimals, pool.Token1.Decimals)
}

func (p *Protocol) Allocate(pool *domain.PoolState, r domain.RangeSpec, bounds domain.AmountBounds) (domain.LiquidityDelta, error) {
	if err := tickmath.ValidateTickRange(r, int32(pool.TickSpacing)); err != nil {
		return domain.LiquidityDelta{}, err
	}
	return liquidity.AllocateCLMM(pool.SqrtPriceX64, r, bounds)
}

// NewPositionIdentity takes the fresh NFT mint.
func (p *Protocol) NewPositionIdentity(nftMint solana.PublicKey) (domain.PositionIdentity, error) {
	address, err := PersonalPositionAddress(nftMint)
	if err != nil {
		return domain.PositionIdentity{}, err
	}
	return domain.PositionIdentity{Address: address, Mint: nftMint}, nil
}

func (p *Protocol) Prerequisites(action protocol.Action, c *protocol.BuildContext) ([]protocol.Prerequisite, error) {
	if err := c.RequirePool(action.String()); err != nil {
		return nil, err
	}
	switch action {
	case protocol.ActionOpen, protocol.ActionIncrease:
		return protocol.TokenPrerequisites(c.Owner, c.Pool.Token0, c.Pool.Token1)
	case protocol.ActionDecrease:
		out, err := protocol.TokenPrerequisites(c.Owner, c.Pool.Token0, c.Pool.Token1)
		if err != nil {
			return nil, err
		}
		for _, r := range c.Pool.Rewards {
			create, err := builder.CreateATAInstruction(c.Owner, c.Owner, r.Mint, rewardProgram(r))
			if err != nil {
				return nil, err
			}
			out = append(out, protocol.Prerequisite{Address: create.Creates, Create: create})
		}
		return out, nil
	case protocol.ActionSwap:
		in, out := protocol.SwapSides(c.Pool, c.Swap.AToB)
		return protocol.TokenPrerequisites(c.Owner, in, out)
	case protocol.ActionClose:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: raydium %s", protocol.ErrUnsupportedAction, action)
}

func (p *Protocol) Build(action protocol.Action, c *protocol.BuildContext) ([]solana.Instruction, error) {
	var (
		ix  *builder.Instruction
		err error
	)
	switch action {
	case protocol.ActionOpen:
		if err = c.RequirePool(action.String()); err != nil {
			return nil, err
		}
		ix, err = openPositionV2(c)
	case protocol.ActionIncrease:
		if err = c.RequirePosition(action.String()); err != nil {
			return nil, err
		}
		ix, err = increaseLiquidityV2(c)
	case protocol.ActionDecrease:
		if err = c.RequirePosition(action.String()); err != nil {
			return nil, err
		}
		ix, err = decreaseLiquidityV2(c)
	case protocol.ActionClose:
		if err = c.RequirePosition(action.String()); err != nil {
			return nil, err
		}
		ix, err = closePosition(c)
	case protocol.ActionSwap:
		if err = c.RequireSwap(action.String()); err != nil {
			return nil, err
		}
		ix, err = swap(c)
	default:
		return nil, fmt.Errorf("%w: raydium %s", protocol.ErrUnsupportedAction, action)
	}
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{ix}, nil
}
