// Package transaction merges instruction groups into one transaction, then
// simulates, signs, submits and confirms it.
package transaction

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/priority"
)

var (
	ErrBudgetOrder     = errors.New("compute budget instruction after a non-budget instruction")
	ErrUseBeforeCreate = errors.New("account used before it is created")
	ErrUseAfterClose   = errors.New("account used after it is closed")
	ErrUseBeforeWrap   = errors.New("wrapped native account used before it is funded")
	ErrEmptyPlan       = errors.New("nothing to submit")
)

// Plan is one invocation's instructions, grouped in submission order:
// compute budget, account creation, wrap, action, unwrap.
type Plan struct {
	Budget domain.ComputeBudget
	// Creates are deduplicated by the account they create; the first wins.
	Creates []*builder.Instruction
	Wrap    []solana.Instruction
	Action  []solana.Instruction
	Unwrap  []solana.Instruction
	// Signers are required in addition to the payer (fresh position mints or accounts).
	Signers []solana.PrivateKey
	// Position is reported back after an open.
	Position *domain.PositionIdentity
}

// AddCreate appends create unless an instruction creating the same account is already planned.
func (p *Plan) AddCreate(create *builder.Instruction) {
	for _, c := range p.Creates {
		if c.Creates.Equals(create.Creates) {
			return
		}
	}
	p.Creates = append(p.Creates, create)
}

func (p *Plan) IsEmpty() bool {
	return len(p.Creates) == 0 && len(p.Wrap) == 0 && len(p.Action) == 0 && len(p.Unwrap) == 0
}

// Instructions flattens the plan with the given unit limit and validates the order.
func (p *Plan) Instructions(unitLimit uint32) ([]solana.Instruction, error) {
	if p.IsEmpty() {
		return nil, common.Validation("assemble", ErrEmptyPlan)
	}
	budget, err := priority.BuildPriorityInstructions(domain.ComputeBudget{UnitPrice: p.Budget.UnitPrice, UnitLimit: unitLimit})
	if err != nil {
		return nil, common.Validation("assemble", err)
	}
	out := make([]solana.Instruction, 0, len(budget)+len(p.Creates)+len(p.Wrap)+len(p.Action)+len(p.Unwrap))
	out = append(out, budget...)
	for _, c := range p.Creates {
		out = append(out, c)
	}
	out = append(out, p.Wrap...)
	out = append(out, p.Action...)
	out = append(out, p.Unwrap...)

	if err := ValidateOrder(out); err != nil {
		return nil, err
	}
	return out, nil
}

func references(ix solana.Instruction, account solana.PublicKey) bool {
	for _, m := range ix.Accounts() {
		if m.PublicKey.Equals(account) {
			return true
		}
	}
	return false
}

func nameOf(ix solana.Instruction) string {
	if b, ok := ix.(*builder.Instruction); ok {
		return b.Name
	}
	return ix.ProgramID().String()
}

// ValidateOrder enforces the ordering invariants: compute budget first, no
// use of an account before the instruction creating it, no use of the
// wrapped native account before it is synced or after it is closed.
func ValidateOrder(ixs []solana.Instruction) error {
	seenOther := false
	for _, ix := range ixs {
		if priority.IsComputeBudget(ix) {
			if seenOther {
				return common.Validation("assemble", ErrBudgetOrder)
			}
			continue
		}
		seenOther = true
	}

	for i, ix := range ixs {
		b, ok := ix.(*builder.Instruction)
		if !ok {
			continue
		}
		switch {
		case !b.Creates.IsZero():
			for _, prev := range ixs[:i] {
				if references(prev, b.Creates) {
					return common.Validation("assemble", fmt.Errorf("%w: %s by %s before %s", ErrUseBeforeCreate, b.Creates, nameOf(prev), b.Name))
				}
			}
		case b.Name == builder.IxSyncNative:
			account := b.Metas[0].PublicKey
			for _, prev := range ixs[:i] {
				if references(prev, account) && !isFunding(prev) {
					return common.Validation("assemble", fmt.Errorf("%w: %s by %s", ErrUseBeforeWrap, account, nameOf(prev)))
				}
			}
		case b.Name == builder.IxCloseAccount:
			account := b.Metas[0].PublicKey
			for _, next := range ixs[i+1:] {
				if references(next, account) {
					return common.Validation("assemble", fmt.Errorf("%w: %s by %s", ErrUseAfterClose, account, nameOf(next)))
				}
			}
		}
	}
	return nil
}

// isFunding reports whether ix may legitimately touch the wrapped account before the sync.
func isFunding(ix solana.Instruction) bool {
	b, ok := ix.(*builder.Instruction)
	if !ok {
		return false
	}
	return !b.Creates.IsZero() || b.Name == builder.IxSystemTransfer
}
