package domain

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

type Protocol uint8

const (
	ProtocolUnknown Protocol = iota
	// ProtocolRaydium is the tick based CLMM with NFT positions and u128 Q64.64 prices (CLMM-A).
	ProtocolRaydium
	// ProtocolOrca is the Whirlpool CLMM (CLMM-B).
	ProtocolOrca
	// ProtocolMeteora is the bin based DLMM.
	ProtocolMeteora
)

func (p Protocol) String() string {
	switch p {
	case ProtocolRaydium:
		return "raydium"
	case ProtocolOrca:
		return "orca"
	case ProtocolMeteora:
		return "meteora"
	default:
		return "UNKNOWN"
	}
}

// IsBinBased reports whether ranges are expressed in bins instead of ticks.
func (p Protocol) IsBinBased() bool {
	return p == ProtocolMeteora
}

// ParseProtocol accepts the CLI names and their aliases.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "raydium", "protocola", "clmm-a", "clmm":
		return ProtocolRaydium, nil
	case "orca", "whirlpool", "protocolb", "clmm-b":
		return ProtocolOrca, nil
	case "meteora", "dlmm", "protocolc":
		return ProtocolMeteora, nil
	default:
		return ProtocolUnknown, fmt.Errorf("unknown dex %q (expected raydium|orca|meteora)", s)
	}
}

type TokenInfo struct {
	Mint     solana.PublicKey `json:"mint"`
	Vault    solana.PublicKey `json:"vault"`
	Decimals uint8            `json:"decimals"`
	// Program is the token program owning Mint. Zero until resolved.
	Program solana.PublicKey `json:"program"`
}

type RewardInfo struct {
	// Index is the reward slot in the pool account.
	Index uint8            `json:"index"`
	Mint  solana.PublicKey `json:"mint"`
	Vault solana.PublicKey `json:"vault"`
	// Program is resolved from the mint owner before encoding.
	Program solana.PublicKey `json:"program"`
}

// PoolState is a decoded, read-only snapshot of a pool account.
type PoolState struct {
	Address   solana.PublicKey `json:"address"`
	Protocol  Protocol         `json:"protocol"`
	ProgramID solana.PublicKey `json:"programId"`
	Token0    TokenInfo        `json:"token0"`
	Token1    TokenInfo        `json:"token1"`

	SqrtPriceX64 *uint256.Int `json:"sqrtPriceX64,omitempty"`
	TickCurrent  int32        `json:"tickCurrent"`
	TickSpacing  uint16       `json:"tickSpacing"`
	Liquidity    *uint256.Int `json:"liquidity,omitempty"`

	ActiveBinID int32  `json:"activeBinId"`
	BinStep     uint16 `json:"binStep"`

	// FeeRate is in the protocol's native unit; AmmConfig carries it for raydium.
	FeeRate   uint32           `json:"feeRate"`
	AmmConfig solana.PublicKey `json:"ammConfig"`
	// Oracle is the raydium observation account, the whirlpool oracle or the DLMM oracle.
	Oracle  solana.PublicKey `json:"oracle"`
	Rewards []RewardInfo     `json:"rewards,omitempty"`
}

// SpacingUnit is the step valid range bounds must be a multiple of.
func (p *PoolState) SpacingUnit() int32 {
	if p.Protocol.IsBinBased() {
		return 1
	}
	return int32(p.TickSpacing)
}

// Mints returns both pool mints in token0, token1 order.
func (p *PoolState) Mints() []solana.PublicKey {
	return []solana.PublicKey{p.Token0.Mint, p.Token1.Mint}
}

// Token returns the token side for a mint, or false if the pool does not trade it.
func (p *PoolState) Token(mint solana.PublicKey) (TokenInfo, bool) {
	switch {
	case p.Token0.Mint.Equals(mint):
		return p.Token0, true
	case p.Token1.Mint.Equals(mint):
		return p.Token1, true
	}
	return TokenInfo{}, false
}
