package raydium

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

// TickArraySize is the number of initializable ticks per tick array account.
const TickArraySize = 60

func TickArrayStartIndex(tick int32, spacing uint16) int32 {
	return tickmath.TickArrayStartIndex(tick, int32(spacing), TickArraySize)
}

// TickArrayAddress seeds the start index big-endian.
func TickArrayAddress(pool solana.PublicKey, startIndex int32) (solana.PublicKey, error) {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], uint32(startIndex))
	return builder.FindPDA(common.RaydiumCLMMProgramID, []byte(common.TickArraySeed), pool[:], idx[:])
}

// PersonalPositionAddress is the position record owned by the NFT holder.
func PersonalPositionAddress(nftMint solana.PublicKey) (solana.PublicKey, error) {
	return builder.FindPDA(common.RaydiumCLMMProgramID, []byte(common.PositionSeed), nftMint[:])
}

// ProtocolPositionAddress seeds the tick bounds little-endian.
func ProtocolPositionAddress(pool solana.PublicKey, lower, upper int32) (solana.PublicKey, error) {
	var lo, hi [4]byte
	binary.LittleEndian.PutUint32(lo[:], uint32(lower))
	binary.LittleEndian.PutUint32(hi[:], uint32(upper))
	return builder.FindPDA(common.RaydiumCLMMProgramID, []byte(common.PositionSeed), pool[:], lo[:], hi[:])
}

// MetadataAddress is the token metadata account of the position NFT.
func MetadataAddress(nftMint solana.PublicKey) (solana.PublicKey, error) {
	return builder.FindPDA(common.MetadataProgramID, []byte(common.MetadataSeed), common.MetadataProgramID[:], nftMint[:])
}

type positionAccounts struct {
	personal       solana.PublicKey
	protocol       solana.PublicKey
	tickArrayLower solana.PublicKey
	tickArrayUpper solana.PublicKey
	lowerStart     int32
	upperStart     int32
}

func derivePositionAccounts(pool solana.PublicKey, spacing uint16, nftMint solana.PublicKey, lower, upper int32) (*positionAccounts, error) {
	out := &positionAccounts{
		lowerStart: TickArrayStartIndex(lower, spacing),
		upperStart: TickArrayStartIndex(upper, spacing),
	}
	var err error
	if out.personal, err = PersonalPositionAddress(nftMint); err != nil {
		return nil, err
	}
	if out.protocol, err = ProtocolPositionAddress(pool, lower, upper); err != nil {
		return nil, err
	}
	if out.tickArrayLower, err = TickArrayAddress(pool, out.lowerStart); err != nil {
		return nil, err
	}
	if out.tickArrayUpper, err = TickArrayAddress(pool, out.upperStart); err != nil {
		return nil, err
	}
	return out, nil
}
