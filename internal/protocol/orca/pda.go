package orca

import (
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

const TickArraySize = 88

func TickArrayStartIndex(tick int32, spacing uint16) int32 {
	return tickmath.TickArrayStartIndex(tick, int32(spacing), TickArraySize)
}

// TickArrayAddress seeds the start index as its decimal string.
func TickArrayAddress(whirlpool solana.PublicKey, startIndex int32) (solana.PublicKey, error) {
	return builder.FindPDA(common.WhirlpoolProgramID,
		[]byte(common.TickArraySeed), whirlpool[:], []byte(strconv.FormatInt(int64(startIndex), 10)))
}

func PositionAddress(positionMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return builder.FindPDAWithBump(common.WhirlpoolProgramID, []byte(common.PositionSeed), positionMint[:])
}

func OracleAddress(whirlpool solana.PublicKey) (solana.PublicKey, error) {
	return builder.FindPDA(common.WhirlpoolProgramID, []byte(common.OracleSeed), whirlpool[:])
}

// swapTickArrays returns the array holding the current tick and the next two
// in the swap direction.
func swapTickArrays(whirlpool solana.PublicKey, tick int32, spacing uint16, aToB bool) ([3]solana.PublicKey, error) {
	var out [3]solana.PublicKey
	span := int32(spacing) * TickArraySize
	start := TickArrayStartIndex(tick, spacing)
	if aToB {
		span = -span
	}
	for i := range out {
		addr, err := TickArrayAddress(whirlpool, start+int32(i)*span)
		if err != nil {
			return out, err
		}
		out[i] = addr
	}
	return out, nil
}
