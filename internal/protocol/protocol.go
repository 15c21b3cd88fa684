// Package protocol defines the capability every supported liquidity program
// exposes to the dispatcher and assembler.
package protocol

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/services/builder"
)

type Action uint8

const (
	// ActionOpen creates a position and deposits BuildContext.Delta into it.
	ActionOpen Action = iota
	ActionIncrease
	ActionDecrease
	ActionClose
	ActionSwap
)

func (a Action) String() string {
	switch a {
	case ActionOpen:
		return "open"
	case ActionIncrease:
		return "increase"
	case ActionDecrease:
		return "decrease"
	case ActionClose:
		return "close"
	case ActionSwap:
		return "swap"
	default:
		return fmt.Sprintf("action(%d)", uint8(a))
	}
}

var (
	ErrUnsupportedAction = errors.New("action not supported by protocol")
	ErrMissingContext    = errors.New("build context incomplete")
	ErrPoolOwner         = errors.New("pool account not owned by protocol program")
	ErrAccountData       = errors.New("unexpected account data")
	ErrPositionOwner     = errors.New("position not owned by signer")
	ErrEmptyPosition     = errors.New("position has no liquidity")
)

// BuildContext carries everything an encoder needs. Token programs on Pool
// (and its rewards) must be resolved before building.
type BuildContext struct {
	Owner solana.PublicKey
	Pool  *domain.PoolState

	// Position is the existing position for increase, decrease and close.
	Position *domain.PositionState
	// NewPosition is the identity produced by NewPositionIdentity for open.
	NewPosition domain.PositionIdentity

	Range domain.RangeSpec
	Delta domain.LiquidityDelta

	MinOut0 uint64
	MinOut1 uint64

	Swap *domain.SwapRequest
}

func (c *BuildContext) RequirePool(op string) error {
	if c == nil || c.Pool == nil {
		return common.Validation(op, fmt.Errorf("%w: pool", ErrMissingContext))
	}
	return nil
}

func (c *BuildContext) RequirePosition(op string) error {
	if err := c.RequirePool(op); err != nil {
		return err
	}
	if c.Position == nil {
		return common.Validation(op, fmt.Errorf("%w: position", ErrMissingContext))
	}
	return nil
}

func (c *BuildContext) RequireSwap(op string) error {
	if err := c.RequirePool(op); err != nil {
		return err
	}
	if c.Swap == nil {
		return common.Validation(op, fmt.Errorf("%w: swap request", ErrMissingContext))
	}
	return nil
}

// Prerequisite is an account an action touches that may not exist yet.
// Create is prepended to the transaction when the account is missing.
type Prerequisite struct {
	Address solana.PublicKey
	Create  *builder.Instruction
}

// PositionProtocol is implemented once per on-chain program. Every method is
// pure: fetching accounts is the caller's job.
type PositionProtocol interface {
	Kind() domain.Protocol
	ProgramID() solana.PublicKey

	DecodePool(address solana.PublicKey, owner solana.PublicKey, data []byte) (*domain.PoolState, error)
	// PositionAccount maps the user-facing position identifier (NFT mint or
	// position account) to the account holding the position record.
	PositionAccount(id solana.PublicKey) (solana.PublicKey, error)
	DecodePosition(id solana.PublicKey, data []byte) (*domain.PositionState, error)

	ResolveRange(pool *domain.PoolState, in domain.RangeInput) (domain.RangeSpec, error)
	Allocate(pool *domain.PoolState, r domain.RangeSpec, bounds domain.AmountBounds) (domain.LiquidityDelta, error)
	// NewPositionIdentity derives the identity of a position created from a
	// freshly generated signer.
	NewPositionIdentity(seed solana.PublicKey) (domain.PositionIdentity, error)

	Prerequisites(action Action, ctx *BuildContext) ([]Prerequisite, error)
	Build(action Action, ctx *BuildContext) ([]solana.Instruction, error)
}

// BuildRemove withdraws everything from a position and, when closing, appends
// the close after the withdrawal. An empty position skips the withdrawal.
func BuildRemove(p PositionProtocol, ctx *BuildContext, closePosition bool) ([]solana.Instruction, error) {
	if err := ctx.RequirePosition("remove"); err != nil {
		return nil, err
	}

	var out []solana.Instruction
	if !ctx.Position.IsEmpty() {
		dec, err := p.Build(ActionDecrease, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, dec...)
	} else if !closePosition {
		return nil, common.Validation("remove", ErrEmptyPosition)
	}

	if closePosition {
		cl, err := p.Build(ActionClose, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, cl...)
	}
	return out, nil
}

// CheckPoolOwner rejects pool accounts owned by a different program.
func CheckPoolOwner(p PositionProtocol, address, owner solana.PublicKey) error {
	if !owner.Equals(p.ProgramID()) {
		return common.Validation("pool", fmt.Errorf("%w: %s owned by %s, expected %s", ErrPoolOwner, address, owner, p.ProgramID()))
	}
	return nil
}

// SwapSides orders pool tokens as (input, output) for the swap direction.
func SwapSides(pool *domain.PoolState, aToB bool) (domain.TokenInfo, domain.TokenInfo) {
	if aToB {
		return pool.Token0, pool.Token1
	}
	return pool.Token1, pool.Token0
}

// UserTokenAccounts derives the owner's associated accounts for both pool tokens.
func UserTokenAccounts(owner solana.PublicKey, pool *domain.PoolState) (solana.PublicKey, solana.PublicKey, error) {
	ata0, err := builder.GetATAAddressForMint(owner, pool.Token0.Mint, TokenProgram(pool.Token0))
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	ata1, err := builder.GetATAAddressForMint(owner, pool.Token1.Mint, TokenProgram(pool.Token1))
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	return ata0, ata1, nil
}

// TokenPrerequisites returns create-if-missing entries for the owner's pool token accounts.
func TokenPrerequisites(owner solana.PublicKey, tokens ...domain.TokenInfo) ([]Prerequisite, error) {
	out := make([]Prerequisite, 0, len(tokens))
	for _, t := range tokens {
		create, err := builder.CreateATAInstruction(owner, owner, t.Mint, TokenProgram(t))
		if err != nil {
			return nil, err
		}
		out = append(out, Prerequisite{Address: create.Creates, Create: create})
	}
	return out, nil
}

// TokenProgram returns the resolved token program, SPL Token if unresolved.
func TokenProgram(t domain.TokenInfo) solana.PublicKey {
	if t.Program.IsZero() {
		return common.TokenProgramID
	}
	return t.Program
}

// CheckAccountData verifies an Anchor account's discriminator and minimum length.
func CheckAccountData(name string, data []byte, minLen int) error {
	if len(data) < minLen {
		return common.Validation("decode", fmt.Errorf("%w: %s has %d bytes, want at least %d", ErrAccountData, name, len(data), minLen))
	}
	disc := builder.AccountDiscriminator(name)
	if !bytes.Equal(data[:8], disc[:]) {
		return common.Validation("decode", fmt.Errorf("%w: not a %s account", ErrAccountData, name))
	}
	return nil
}
