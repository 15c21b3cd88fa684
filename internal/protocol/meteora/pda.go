package meteora

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
)

// swapWindow is how many bin arrays around the active bin a swap may cross.
const swapWindow = 3

// BinArrayAddress seeds the array index as little-endian i64.
func BinArrayAddress(lbPair solana.PublicKey, index int64) (solana.PublicKey, error) {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], uint64(index))
	return builder.FindPDA(common.DLMMProgramID, []byte(common.BinArraySeed), lbPair[:], idx[:])
}

func EventAuthority() (solana.PublicKey, error) {
	return builder.FindPDA(common.DLMMProgramID, []byte(common.EventAuthoritySeed))
}

// BinArrayIndexes returns the lower and upper array indexes for a position.
// Both ends in one array still yield two distinct accounts, since the
// program borrows lower and upper mutably.
func BinArrayIndexes(lower, upper int32) (int64, int64) {
	lo := tickmath.BinArrayIndex(lower)
	hi := tickmath.BinArrayIndex(upper)
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// swapBinArrayIndexes is the active array followed by its neighbours, nearest first.
func swapBinArrayIndexes(activeID int32) []int64 {
	out := []int64{tickmath.BinArrayIndex(activeID)}
	for offset := int32(1); len(out) < swapWindow; offset++ {
		out = append(out,
			tickmath.BinArrayIndex(activeID+offset*tickmath.BinsPerArray),
			tickmath.BinArrayIndex(activeID-offset*tickmath.BinsPerArray),
		)
	}
	return out[:swapWindow]
}
