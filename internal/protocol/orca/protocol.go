// Package orca encodes the Whirlpool CLMM (--dex orca, protocolB).
package orca

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
	return domain.ProtocolOrca
}

func (p *Protocol) ProgramID() solana.PublicKey {
	return common.WhirlpoolProgramID
}

func (p *Protocol) DecodePool(address, owner solana.PublicKey, data []byte) (*domain.PoolState, error) {
	if err := protocol.CheckPoolOwner(p, address, owner); err != nil {
		return nil, err
	}
	return decodeWhirlpool(address, data)
}

func (p *Protocol) PositionAccount(positionMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := PositionAddress(positionMint)
	return addr, err
}

func (p *Protocol) DecodePosition(positionMint solana.PublicKey, data []byte) (*domain.PositionState, error) {
	address, err := p.PositionAccount(positionMint)
	if err != nil {
		return nil, err
	}
	pos, err := decodePosition(address, data)
	if err != nil {
		return nil, err
	}
	if !pos.Identity.Mint.Equals(positionMint) {
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

func (p *Protocol) NewPositionIdentity(positionMint solana.PublicKey) (domain.PositionIdentity, error) {
	address, err := p.PositionAccount(positionMint)
	if err != nil {
		return domain.PositionIdentity{}, err
	}
	return domain.PositionIdentity{Address: address, Mint: positionMint}, nil
}

func (p *Protocol) tickArrayPrerequisites(c *protocol.BuildContext, r domain.RangeSpec) ([]protocol.Prerequisite, error) {
	starts := []int32{TickArrayStartIndex(r.Lower, c.Pool.TickSpacing)}
	if upper := TickArrayStartIndex(r.Upper, c.Pool.TickSpacing); upper != starts[0] {
		starts = append(starts, upper)
	}
	out := make([]protocol.Prerequisite, 0, len(starts))
	for _, start := range starts {
		create, err := initializeTickArray(c.Pool.Address, c.Owner, start)
		if err != nil {
			return nil, err
		}
		out = append(out, protocol.Prerequisite{Address: create.Creates, Create: create})
	}
	return out, nil
}

func (p *Protocol) Prerequisites(action protocol.Action, c *protocol.BuildContext) ([]protocol.Prerequisite, error) {
	if err := c.RequirePool(action.String()); err != nil {
		return nil, err
	}
	switch action {
	case protocol.ActionOpen, protocol.ActionIncrease:
		r := c.Range
		if action == protocol.ActionIncrease {
			if err := c.RequirePosition(action.String()); err != nil {
				return nil, err
			}
			r = c.Position.Range
		}
		out, err := protocol.TokenPrerequisites(c.Owner, c.Pool.Token0, c.Pool.Token1)
		if err != nil {
			return nil, err
		}
		arrays, err := p.tickArrayPrerequisites(c, r)
		if err != nil {
			return nil, err
		}
		return append(out, arrays...), nil
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
		return protocol.TokenPrerequisites(c.Owner, c.Pool.Token0, c.Pool.Token1)
	case protocol.ActionClose:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: orca %s", protocol.ErrUnsupportedAction, action)
}

func (p *Protocol) Build(action protocol.Action, c *protocol.BuildContext) ([]solana.Instruction, error) {
	op := action.String()
	switch action {
	case protocol.ActionOpen:
		if err := c.RequirePool(op); err != nil {
			return nil, err
		}
		open, tokenAccount, err := openPosition(c)
		if err != nil {
			return nil, err
		}
		inc, err := increaseLiquidityV2(c, open.Creates, tokenAccount, c.Range)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{open, inc}, nil

	case protocol.ActionIncrease:
		if err := c.RequirePosition(op); err != nil {
			return nil, err
		}
		inc, err := increaseLiquidityV2(c, c.Position.Identity.Address, c.Position.TokenAccount, c.Position.Range)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{inc}, nil

	case protocol.ActionDecrease:
		if err := c.RequirePosition(op); err != nil {
			return nil, err
		}
		dec, err := decreaseLiquidityV2(c)
		if err != nil {
			return nil, err
		}
		fees, err := collectFeesV2(c)
		if err != nil {
			return nil, err
		}
		out := []solana.Instruction{dec, fees}
		for _, r := range c.Pool.Rewards {
			ix, err := collectRewardV2(c, r)
			if err != nil {
				return nil, err
			}
			out = append(out, ix)
		}
		return out, nil

	case protocol.ActionClose:
		if err := c.RequirePosition(op); err != nil {
			return nil, err
		}
		ix, err := closePosition(c)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{ix}, nil

	case protocol.ActionSwap:
		if err := c.RequireSwap(op); err != nil {
			return nil, err
		}
		ix, err := swapV2(c)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{ix}, nil
	}
	return nil, fmt.Errorf("%w: orca %s", protocol.ErrUnsupportedAction, action)
}

func rewardProgram(r domain.RewardInfo) solana.PublicKey {
	if r.Program.IsZero() {
		return common.TokenProgramID
	}
	return r.Program
}
