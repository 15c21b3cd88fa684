package builder

import (
	"fmt"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
)

type pdaKey struct {
	program solana.PublicKey
	seeds   string
}

var (
	pdaCache   = make(map[pdaKey]solana.PublicKey)
	pdaCacheMu sync.RWMutex
)

// FindPDA derives a program address, memoizing by program and seeds.
func FindPDA(program solana.PublicKey, seeds ...[]byte) (solana.PublicKey, error) {
	var sb strings.Builder
	for _, s := range seeds {
		fmt.Fprintf(&sb, "%d:", len(s))
		sb.Write(s)
	}
	key := pdaKey{program: program, seeds: sb.String()}

	pdaCacheMu.RLock()
	if cached, ok := pdaCache[key]; ok {
		pdaCacheMu.RUnlock()
		return cached, nil
	}
	pdaCacheMu.RUnlock()

	pda, _, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return solana.PublicKey{}, common.Derivation("pda", fmt.Errorf("program %s: %w", program, err))
	}

	pdaCacheMu.Lock()
	pdaCache[key] = pda
	pdaCacheMu.Unlock()

	return pda, nil
}

// FindPDAWithBump is FindPDA for seeds whose bump byte is encoded in instruction data.
func FindPDAWithBump(program solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8, error) {
	pda, bump, err := solana.FindProgramAddress(seeds, program)
	if err != nil {
		return solana.PublicKey{}, 0, common.Derivation("pda", fmt.Errorf("program %s: %w", program, err))
	}
	return pda, bump, nil
}

// ParsePublicKey decodes a base58 address, classifying failures as derivation errors.
func ParsePublicKey(field, s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return solana.PublicKey{}, common.Derivation("address", fmt.Errorf("invalid %s %q: %w", field, s, err))
	}
	return pk, nil
}

// PublicKeyFromBytes rejects anything that is not exactly 32 bytes.
func PublicKeyFromBytes(field string, b []byte) (solana.PublicKey, error) {
	if len(b) != solana.PublicKeyLength {
		return solana.PublicKey{}, common.Derivation("address", fmt.Errorf("invalid %s: %d bytes, want %d", field, len(b), solana.PublicKeyLength))
	}
	return solana.PublicKeyFromBytes(b), nil
}

type ataKey struct {
	Wallet       solana.PublicKey
	Mint         solana.PublicKey
	TokenProgram solana.PublicKey
}

var (
	ataCache   = make(map[ataKey]solana.PublicKey)
	ataCacheMu sync.RWMutex
)

// GetATAAddressForMint derives the associated token account of wallet for mint
// under tokenProgram (SPL Token or Token-2022).
func GetATAAddressForMint(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	key := ataKey{Wallet: wallet, Mint: mint, TokenProgram: tokenProgram}

	ataCacheMu.RLock()
	if cached, ok := ataCache[key]; ok {
		ataCacheMu.RUnlock()
		return cached, nil
	}
	ataCacheMu.RUnlock()

	ata, _, err := solana.FindProgramAddress(
		[][]byte{
			wallet[:],
			tokenProgram[:],
			mint[:],
		},
		common.ATAProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, common.Derivation("ata", err)
	}

	ataCacheMu.Lock()
	ataCache[key] = ata
	ataCacheMu.Unlock()

	return ata, nil
}

// CreateATAInstruction builds the idempotent associated-token-account create.
func CreateATAInstruction(payer, owner, mint, tokenProgram solana.PublicKey) (*Instruction, error) {
	ata, err := GetATAAddressForMint(owner, mint, tokenProgram)
	if err != nil {
		return nil, err
	}
	return &Instruction{
		Name:    "create_ata_idempotent",
		Program: common.ATAProgramID,
		Metas: solana.AccountMetaSlice{
			Signer(payer, true),
			Writable(ata),
			ReadOnly(owner),
			ReadOnly(mint),
			ReadOnly(common.SystemProgramID),
			ReadOnly(tokenProgram),
		},
		Payload: []byte{1},
		Creates: ata,
	}, nil
}

// TokenProgramForOwner maps a mint's owner to the token program to use with it.
func TokenProgramForOwner(owner solana.PublicKey) solana.PublicKey {
	if owner.Equals(common.Token2022ID) {
		return common.Token2022ID
	}
	return common.TokenProgramID
}
