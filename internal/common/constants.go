// Package common contains common constants and variables used across services
package common

import "github.com/gagliardetto/solana-go"

var (
	TokenProgramID    = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ID       = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	MemoProgramID     = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	ATAProgramID      = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	MetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
	SystemProgramID   = solana.SystemProgramID
	RentSysvarID      = solana.SysVarRentPubkey
	NativeMint        = solana.SolMint

	RaydiumCLMMProgramID = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")
	WhirlpoolProgramID   = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")
	DLMMProgramID        = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")
)

const (
	OracleSeed          = "oracle"
	PositionSeed        = "position"
	TickArraySeed       = "tick_array"
	BinArraySeed        = "bin_array"
	MetadataSeed        = "metadata"
	EventAuthoritySeed  = "__event_authority"
	DefaultRPCURL       = "https://api.mainnet-beta.solana.com"
	BasisPointMax       = 10_000
	MinComputeUnits     = 200_000
	MaxComputeUnits     = 1_400_000
	MaxTransactionBytes = 1232
)
