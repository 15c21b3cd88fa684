package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

type SwapRequest struct {
	Pool     solana.PublicKey `json:"pool"`
	AmountIn uint64           `json:"amountIn"`
	// MinAmountOut is the slippage floor.
	MinAmountOut uint64 `json:"minAmountOut"`
	AToB         bool   `json:"aToB"`
	// SqrtPriceLimitX64 of zero selects the protocol's extreme for the direction.
	SqrtPriceLimitX64 *uint256.Int `json:"sqrtPriceLimitX64"`
}

// WrapRequest converts lamports into the wrapped native mint account before use.
type WrapRequest struct {
	Lamports uint64 `json:"lamports"`
}

// UnwrapRequest closes the wrapped native account after use.
type UnwrapRequest struct {
	Enabled bool `json:"enabled"`
}

type ComputeBudget struct {
	UnitPrice uint64 `json:"unitPrice"`
	// UnitLimit of zero means estimate through simulation.
	UnitLimit uint32 `json:"unitLimit"`
}

type SimulationResult struct {
	Success              bool     `json:"success"`
	Logs                 []string `json:"logs"`
	ComputeUnitsConsumed uint64   `json:"computeUnitsConsumed"`
	Error                string   `json:"error,omitempty"`
	// ErrorCode is the custom program error, -1 when absent.
	ErrorCode int64 `json:"errorCode"`

	InsufficientFunds bool `json:"insufficientFunds"`
	SlippageExceeded  bool `json:"slippageExceeded"`
}

// SubmitResult is what a successful invocation reports.
type SubmitResult struct {
	Signature    solana.Signature  `json:"signature"`
	Slot         uint64            `json:"slot"`
	Attempts     int               `json:"attempts"`
	ComputeUnits uint64            `json:"computeUnits"`
	Simulated    bool              `json:"simulated"`
	Position     *PositionIdentity `json:"position,omitempty"`
}
