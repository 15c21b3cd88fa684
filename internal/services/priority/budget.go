// Package priority builds the compute-budget instructions every transaction starts with.
package priority

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
)

// ComputeBudgetProgramID is the compute budget program address
var ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

// Default compute units when no estimate is available
const (
	DefaultComputeUnits = common.MinComputeUnits
	MaxComputeUnits     = common.MaxComputeUnits
	ComputeUnitBuffer   = 0.1 // 10% headroom over simulated usage
)

// BuildPriorityInstructions returns SetComputeUnitLimit followed by
// SetComputeUnitPrice. A zero limit is replaced by MaxComputeUnits; callers
// estimating through simulation rebuild with the measured limit afterwards.
// A zero price pays no priority fee and emits no price instruction.
func BuildPriorityInstructions(budget domain.ComputeBudget) ([]solana.Instruction, error) {
	limit := budget.UnitLimit
	if limit == 0 || limit > MaxComputeUnits {
		limit = MaxComputeUnits
	}
	limitIx, err := computebudget.NewSetComputeUnitLimitInstruction(limit).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("set compute unit limit: %w", err)
	}
	if budget.UnitPrice == 0 {
		return []solana.Instruction{limitIx}, nil
	}
	priceIx, err := computebudget.NewSetComputeUnitPriceInstruction(budget.UnitPrice).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("set compute unit price: %w", err)
	}
	return []solana.Instruction{limitIx, priceIx}, nil
}

// IsComputeBudget reports whether ix targets the compute budget program.
func IsComputeBudget(ix solana.Instruction) bool {
	return ix.ProgramID().Equals(ComputeBudgetProgramID)
}
