// Package meteora encodes the DLMM bin pools (--dex meteora, protocolC).
//
// Positions are plain accounts signed into existence by a fresh keypair, so
// the position identifier is the account itself and there is no NFT.
package meteora

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/liquidity"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

type Protocol struct{}

func New() *Protocol {
	return &Protocol{}
}

var _ protocol.PositionProtocol = (*Protocol)(nil)

func (p *Protocol) Kind() domain.Protocol {
	return domain.ProtocolMeteora
}

func (p *Protocol) ProgramID() solana.PublicKey {
	return common.DLMMProgramID
}

func (p *Protocol) DecodePool(address, owner solana.PublicKey, data []byte) (*domain.PoolState, error) {
	if err := protocol.CheckPoolOwner(p, address, owner); err != nil {
		return nil, err
	}
	return decodeLbPair(address, data)
}

func (p *Protocol) PositionAccount(position solana.PublicKey) (solana.PublicKey, error) {
	return position, nil
}

func (p *Protocol) DecodePosition(position solana.PublicKey, data []byte) (*domain.PositionState, error) {
	return decodePosition(position, data)
}

func (p *Protocol) ResolveRange(pool *domain.PoolState, in domain.RangeInput) (domain.RangeSpec, error) {
	return tickmath.ResolveBinRange(in, pool.BinStep, pool.Token0.Decimals, pool.Token1.Decimals)
}

func (p *Protocol) Allocate(_ *domain.PoolState, r domain.RangeSpec, bounds domain.AmountBounds) (domain.LiquidityDelta, error) {
	if err := tickmath.ValidateBinRange(r); err != nil {
		return domain.LiquidityDelta{}, err
	}
	return liquidity.AllocateBins(r, bounds)
}

// NewPositionIdentity uses the generated keypair's public key as the position account.
func (p *Protocol) NewPositionIdentity(seed solana.PublicKey) (domain.PositionIdentity, error) {
	return domain.PositionIdentity{Address: seed}, nil
}

func (p *Protocol) binArrayPrerequisites(c *protocol.BuildContext, r domain.RangeSpec) ([]protocol.Prerequisite, error) {
	lo, hi := BinArrayIndexes(r.Lower, r.Upper)
	out := make([]protocol.Prerequisite, 0, 2)
	for _, idx := range []int64{lo, hi} {
		create, err := initializeBinArray(c.Pool.Address, c.Owner, idx)
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
		arrays, err := p.binArrayPrerequisites(c, r)
		if err != nil {
			return nil, err
		}
		return append(out, arrays...), nil
	case protocol.ActionDecrease, protocol.ActionSwap:
		return protocol.TokenPrerequisites(c.Owner, c.Pool.Token0, c.Pool.Token1)
	case protocol.ActionClose:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: meteora %s", protocol.ErrUnsupportedAction, action)
}

func (p *Protocol) Build(action protocol.Action, c *protocol.BuildContext) ([]solana.Instruction, error) {
	op := action.String()
	switch action {
	case protocol.ActionOpen:
		if err := c.RequirePool(op); err != nil {
			return nil, err
		}
		init, err := initializePosition(c)
		if err != nil {
			return nil, err
		}
		add, err := addLiquidity(c, init.Creates, c.Range)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{init, add}, nil

	case protocol.ActionIncrease:
		if err := c.RequirePosition(op); err != nil {
			return nil, err
		}
		add, err := addLiquidity(c, c.Position.Identity.Address, c.Position.Range)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{add}, nil

	case protocol.ActionDecrease:
		if err := c.RequirePosition(op); err != nil {
			return nil, err
		}
		ix, err := removeAllLiquidity(c)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{ix}, nil

	case protocol.ActionClose:
		if err := c.RequirePosition(op); err != nil {
			return nil, err
		}
		ix, err := closePositionIfEmpty(c)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{ix}, nil

	case protocol.ActionSwap:
		if err := c.RequireSwap(op); err != nil {
			return nil, err
		}
		ix, err := swap(c)
		if err != nil {
			return nil, err
		}
		return []solana.Instruction{ix}, nil
	}
	return nil, fmt.Errorf("%w: meteora %s", protocol.ErrUnsupportedAction, action)
}
