package meteora

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lbPair   = solana.MustPublicKeyFromBase58("5rCf1DM8LjKTw4YqhnoLcngyZYeNnQqztScTogYHAS6")
	mintX    = solana.SolMint
	mintY    = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	reserveX = solana.MustPublicKeyFromBase58("EYj9xKw6ZszwpyNibHY7JD5o3QgTVrSdcBp1fMJhrR9o")
	reserveY = solana.MustPublicKeyFromBase58("CoaxzEh8p5YyGLcj36Eo3cUThVJxeKCs7qvLAGDYwBcz")
	oracle   = solana.MustPublicKeyFromBase58("59YuGWPunbchD2mbi9U7qvjWQKQReGeepn4ZSr9zz9Li")
	owner    = solana.MustPublicKeyFromBase58("7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5")
	position = solana.MustPublicKeyFromBase58("6Uf9KQ5Rkb8Zz7B7ejaJxXMBrbzzbhxr3VF2ZWH6jT1N")
)

func putKey(buf []byte, off int, pk solana.PublicKey) {
	copy(buf[off:off+32], pk[:])
}

func lbPairAccount(activeID int32, binStep uint16) []byte {
	buf := make([]byte, 904)
	disc := builder.AccountDiscriminator(lbPairAccountName)
	copy(buf, disc[:])
	binary.LittleEndian.PutUint32(buf[76:], uint32(activeID))
	binary.LittleEndian.PutUint16(buf[80:], binStep)
	putKey(buf, 88, mintX)
	putKey(buf, 120, mintY)
	putKey(buf, 152, reserveX)
	putKey(buf, 184, reserveY)
	putKey(buf, 552, oracle)
	return buf
}

func positionAccount(lower, upper int32, shares map[int]uint64) []byte {
	buf := make([]byte, 8120)
	disc := builder.AccountDiscriminator(positionAccountName)
	copy(buf, disc[:])
	putKey(buf, 8, lbPair)
	putKey(buf, 40, owner)
	for i, v := range shares {
		binary.LittleEndian.PutUint64(buf[positionSharesOffset+i*16:], v)
	}
	binary.LittleEndian.PutUint32(buf[7912:], uint32(lower))
	binary.LittleEndian.PutUint32(buf[7916:], uint32(upper))
	return buf
}

func decodedPool(t *testing.T, activeID int32) *domain.PoolState {
	t.Helper()
	pool, err := New().DecodePool(lbPair, common.DLMMProgramID, lbPairAccount(activeID, 25))
	require.NoError(t, err)
	pool.Token0.Program = common.TokenProgramID
	pool.Token1.Program = common.TokenProgramID
	pool.Token0.Decimals = 9
	pool.Token1.Decimals = 6
	return pool
}

func names(ixs []solana.Instruction) []string {
	out := make([]string, len(ixs))
	for i, ix := range ixs {
		out[i] = ix.(*builder.Instruction).Name
	}
	return out
}

func TestDecodeLbPair(t *testing.T) {
	pool := decodedPool(t, -1234)

	assert.Equal(t, domain.ProtocolMeteora, pool.Protocol)
	assert.Equal(t, int32(-1234), pool.ActiveBinID)
	assert.Equal(t, uint16(25), pool.BinStep)
	assert.Equal(t, mintX, pool.Token0.Mint)
	assert.Equal(t, reserveX, pool.Token0.Vault)
	assert.Equal(t, mintY, pool.Token1.Mint)
	assert.Equal(t, reserveY, pool.Token1.Vault)
	assert.Equal(t, oracle, pool.Oracle)
	assert.Equal(t, int32(1), pool.SpacingUnit())
}

func TestDecodeLbPairRejects(t *testing.T) {
	p := New()

	_, err := p.DecodePool(lbPair, common.WhirlpoolProgramID, lbPairAccount(0, 25))
	require.ErrorIs(t, err, protocol.ErrPoolOwner)

	_, err = p.DecodePool(lbPair, common.DLMMProgramID, lbPairAccount(0, 25)[:500])
	require.ErrorIs(t, err, protocol.ErrAccountData)

	_, err = p.DecodePool(lbPair, common.DLMMProgramID, lbPairAccount(0, 0))
	require.ErrorIs(t, err, protocol.ErrAccountData)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestDecodePosition(t *testing.T) {
	pos, err := New().DecodePosition(position, positionAccount(-5, 3, map[int]uint64{0: 100, 4: 250, 8: 1}))
	require.NoError(t, err)

	assert.Equal(t, position, pos.Identity.Address)
	assert.False(t, pos.Identity.HasMint())
	assert.Equal(t, lbPair, pos.Pool)
	assert.Equal(t, owner, pos.Owner)
	assert.Equal(t, domain.RangeSpec{Lower: -5, Upper: 3}, pos.Range)
	assert.Equal(t, uint64(351), pos.Liquidity.Uint64())

	empty, err := New().DecodePosition(position, positionAccount(-5, 3, nil))
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())
}

func TestBinArrays(t *testing.T) {
	lo, hi := BinArrayIndexes(10, 12)
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(1), hi)

	lo, hi = BinArrayIndexes(-5, 3)
	assert.Equal(t, int64(-1), lo)
	assert.Equal(t, int64(0), hi)

	assert.Equal(t, []int64{0, 1, -1}, swapBinArrayIndexes(5))
	assert.Equal(t, []int64{-2, -1, -3}, swapBinArrayIndexes(-100))

	var idx [8]byte
	neg := int64(-2)
	binary.LittleEndian.PutUint64(idx[:], uint64(neg))
	want, _, err := solana.FindProgramAddress([][]byte{[]byte("bin_array"), lbPair[:], idx[:]}, common.DLMMProgramID)
	require.NoError(t, err)
	got, err := BinArrayAddress(lbPair, -2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOpenEncoding(t *testing.T) {
	p := New()
	pool := decodedPool(t, 11)
	r := domain.RangeSpec{Lower: 10, Upper: 12}
	delta, err := p.Allocate(pool, r, domain.AmountBounds{Amount0: 100})
	require.NoError(t, err)

	identity, err := p.NewPositionIdentity(position)
	require.NoError(t, err)
	c := &protocol.BuildContext{Owner: owner, Pool: pool, NewPosition: identity, Range: r, Delta: delta}

	ixs, err := p.Build(protocol.ActionOpen, c)
	require.NoError(t, err)
	require.Equal(t, []string{ixInitializePosition, ixAddLiquidity}, names(ixs))

	init := ixs[0].(*builder.Instruction)
	assert.Equal(t, position, init.Creates)
	assert.True(t, init.Metas[1].IsSigner)
	data, err := init.Data()
	require.NoError(t, err)
	require.Len(t, data, 16)
	assert.Equal(t, int32(10), int32(binary.LittleEndian.Uint32(data[8:])))
	assert.Equal(t, int32(3), int32(binary.LittleEndian.Uint32(data[12:])))

	add := ixs[1].(*builder.Instruction)
	require.Len(t, add.Metas, 16)
	assert.Equal(t, position, add.Metas[0].PublicKey)
	data, err = add.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+8+8+4+3*8)
	assert.Equal(t, uint64(100), binary.LittleEndian.Uint64(data[8:]))
	assert.Equal(t, uint64(0), binary.LittleEndian.Uint64(data[16:]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data[24:]))

	var shareSum uint16
	for i := 0; i < 3; i++ {
		off := 28 + i*8
		assert.Equal(t, int32(10+i), int32(binary.LittleEndian.Uint32(data[off:])))
		shareSum += binary.LittleEndian.Uint16(data[off+4:])
		assert.Zero(t, binary.LittleEndian.Uint16(data[off+6:]))
	}
	assert.Equal(t, uint16(common.BasisPointMax), shareSum)
	assert.Equal(t, uint16(3334), binary.LittleEndian.Uint16(data[28+2*8+4:]))

	prereqs, err := p.Prerequisites(protocol.ActionOpen, c)
	require.NoError(t, err)
	require.Len(t, prereqs, 4)
	lower, err := BinArrayAddress(lbPair, 0)
	require.NoError(t, err)
	upper, err := BinArrayAddress(lbPair, 1)
	require.NoError(t, err)
	assert.Equal(t, lower, prereqs[2].Address)
	assert.Equal(t, upper, prereqs[3].Address)
	assert.Equal(t, ixInitializeBinArray, prereqs[3].Create.Name)
}

func TestOpenRejectsWideRange(t *testing.T) {
	_, err := New().Allocate(decodedPool(t, 0), domain.RangeSpec{Lower: 0, Upper: 70}, domain.AmountBounds{Amount0: 1_000})
	require.Error(t, err)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestRemoveEncoding(t *testing.T) {
	p := New()
	pool := decodedPool(t, 0)
	pos, err := p.DecodePosition(position, positionAccount(-5, 3, map[int]uint64{2: 10}))
	require.NoError(t, err)
	c := &protocol.BuildContext{Owner: owner, Pool: pool, Position: pos}

	ixs, err := protocol.BuildRemove(p, c, true)
	require.NoError(t, err)
	assert.Equal(t, []string{ixRemoveAllLiquidity, ixClosePositionEmpty}, names(ixs))

	remove := ixs[0].(*builder.Instruction)
	lower, err := BinArrayAddress(lbPair, -1)
	require.NoError(t, err)
	assert.Equal(t, lower, remove.Metas[9].PublicKey)
	data, err := remove.Data()
	require.NoError(t, err)
	assert.Len(t, data, 8)

	ixs, err = protocol.BuildRemove(p, c, false)
	require.NoError(t, err)
	assert.Equal(t, []string{ixRemoveAllLiquidity}, names(ixs))

	empty, err := p.DecodePosition(position, positionAccount(-5, 3, nil))
	require.NoError(t, err)
	c.Position = empty
	ixs, err = protocol.BuildRemove(p, c, true)
	require.NoError(t, err)
	assert.Equal(t, []string{ixClosePositionEmpty}, names(ixs))

	_, err = protocol.BuildRemove(p, c, false)
	require.ErrorIs(t, err, protocol.ErrEmptyPosition)
}

func TestSwapEncoding(t *testing.T) {
	p := New()
	pool := decodedPool(t, 5)
	c := &protocol.BuildContext{
		Owner: owner,
		Pool:  pool,
		Swap:  &domain.SwapRequest{Pool: lbPair, AmountIn: 1_000_000, MinAmountOut: 990, AToB: false},
	}
	ixs, err := p.Build(protocol.ActionSwap, c)
	require.NoError(t, err)
	require.Len(t, ixs, 1)

	ix := ixs[0].(*builder.Instruction)
	require.Len(t, ix.Metas, 18)
	ataY, err := builder.GetATAAddressForMint(owner, mintY, common.TokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, ataY, ix.Metas[4].PublicKey)
	for i, idx := range []int64{0, 1, -1} {
		arr, err := BinArrayAddress(lbPair, idx)
		require.NoError(t, err)
		assert.Equal(t, arr, ix.Metas[15+i].PublicKey)
		assert.True(t, ix.Metas[15+i].IsWritable)
	}

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 24)
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[8:]))
	assert.Equal(t, uint64(990), binary.LittleEndian.Uint64(data[16:]))
}
