package builder

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/hxuan190/lp-engine/internal/common"
)

var ErrZeroWrap = errors.New("wrap amount must be positive")

const (
	IxSystemTransfer = "system_transfer"
	IxSyncNative     = "sync_native"
	IxCloseAccount   = "close_account"
)

// WrappedNativeAccount is the owner's wrapped SOL associated token account.
func WrappedNativeAccount(owner solana.PublicKey) (solana.PublicKey, error) {
	return GetATAAddressForMint(owner, common.NativeMint, common.TokenProgramID)
}

// WrapNative moves lamports into the wrapped SOL account and syncs its token
// balance. The account must exist (or be created) earlier in the transaction.
func WrapNative(owner solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	if lamports == 0 {
		return nil, common.Validation("wrap", ErrZeroWrap)
	}
	ata, err := WrappedNativeAccount(owner)
	if err != nil {
		return nil, err
	}
	transfer, err := named(IxSystemTransfer, system.NewTransferInstruction(lamports, owner, ata).Build())
	if err != nil {
		return nil, err
	}
	sync, err := named(IxSyncNative, token.NewSyncNativeInstruction(ata).Build())
	if err != nil {
		return nil, err
	}
	return []solana.Instruction{transfer, sync}, nil
}

// UnwrapNative closes the wrapped SOL account, returning every lamport to owner.
func UnwrapNative(owner solana.PublicKey) (solana.Instruction, error) {
	ata, err := WrappedNativeAccount(owner)
	if err != nil {
		return nil, err
	}
	return named(IxCloseAccount, token.NewCloseAccountInstruction(ata, owner, owner, nil).Build())
}

// named freezes a library instruction into an Instruction so it can be
// ordered and inspected like protocol instructions.
func named(name string, ix solana.Instruction) (*Instruction, error) {
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return &Instruction{
		Name:    name,
		Program: ix.ProgramID(),
		Metas:   ix.Accounts(),
		Payload: data,
	}, nil
}
