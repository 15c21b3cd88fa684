package raydium

import (
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/tickmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr   = solana.MustPublicKeyFromBase58("2QdhepnKRTLjjSqPL1PtKNwqrUkoLee5Gqs8bvZhRdMv")
	ammConfig  = solana.MustPublicKeyFromBase58("3h2e43PunVA5K34vwKCLHWhZF4aZpyaC9RmxvshGAQpL")
	mint0      = solana.SolMint
	mint1      = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	vault0     = solana.MustPublicKeyFromBase58("4ct7br2vTPzfdmY3S5HLtTxcGSBfn6pnw98hsS6v359A")
	vault1     = solana.MustPublicKeyFromBase58("5it83u57VRrVgc51oNV19TTmAJuffPx5GtGwQr7gQNUo")
	observ     = solana.MustPublicKeyFromBase58("3Y695CuQ8AP4anbwAqiEBeQF9KxqHFr8piEwvw3UePnQ")
	rewardMint = solana.MustPublicKeyFromBase58("4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R")
	rewardVlt  = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	owner      = solana.MustPublicKeyFromBase58("7YttLkHDoNj9wyDur5pM1ejNaAvT9X4eqaYcHQqtj2G5")
	nftMint    = solana.MustPublicKeyFromBase58("6Uf9KQ5Rkb8Zz7B7ejaJxXMBrbzzbhxr3VF2ZWH6jT1N")
)

func putKey(buf []byte, off int, pk solana.PublicKey) {
	copy(buf[off:off+32], pk[:])
}

func putU128(buf []byte, off int, v *uint256.Int) {
	binary.LittleEndian.PutUint64(buf[off:], v[0])
	binary.LittleEndian.PutUint64(buf[off+8:], v[1])
}

// poolAccount lays out a pool account at its on-chain offsets.
func poolAccount(t *testing.T, tick int32, spacing uint16, withReward bool) []byte {
	t.Helper()
	buf := make([]byte, 1544)
	disc := builder.AccountDiscriminator(poolAccountName)
	copy(buf, disc[:])
	putKey(buf, 9, ammConfig)
	putKey(buf, 73, mint0)
	putKey(buf, 105, mint1)
	putKey(buf, 137, vault0)
	putKey(buf, 169, vault1)
	putKey(buf, 201, observ)
	buf[233] = 9
	buf[234] = 6
	binary.LittleEndian.PutUint16(buf[235:], spacing)
	putU128(buf, 237, uint256.NewInt(123456789))
	sqrt, err := tickmath.SqrtPriceAtTick(tick)
	require.NoError(t, err)
	putU128(buf, 253, sqrt)
	binary.LittleEndian.PutUint32(buf[269:], uint32(tick))
	if withReward {
		// second reward slot, first left uninitialized
		base := 397 + 169
		buf[base] = 1
		putKey(buf, base+57, rewardMint)
		putKey(buf, base+89, rewardVlt)
	}
	return buf
}

func positionAccount(mint, pool solana.PublicKey, lower, upper int32, liq uint64) []byte {
	buf := make([]byte, 281)
	disc := builder.AccountDiscriminator(positionAccountName)
	copy(buf, disc[:])
	putKey(buf, 9, mint)
	putKey(buf, 41, pool)
	binary.LittleEndian.PutUint32(buf[73:], uint32(lower))
	binary.LittleEndian.PutUint32(buf[77:], uint32(upper))
	putU128(buf, 81, uint256.NewInt(liq))
	return buf
}

func decodedPool(t *testing.T, withReward bool) *domain.PoolState {
	t.Helper()
	pool, err := New().DecodePool(poolAddr, common.RaydiumCLMMProgramID, poolAccount(t, -25, 10, withReward))
	require.NoError(t, err)
	pool.Token0.Program = common.TokenProgramID
	pool.Token1.Program = common.TokenProgramID
	return pool
}

func existingPosition(t *testing.T, liq uint64) *domain.PositionState {
	t.Helper()
	pos, err := New().DecodePosition(nftMint, positionAccount(nftMint, poolAddr, -100, 100, liq))
	require.NoError(t, err)
	pos.Owner = owner
	pos.TokenAccount, err = builder.GetATAAddressForMint(owner, nftMint, common.TokenProgramID)
	require.NoError(t, err)
	pos.TokenProgram = common.TokenProgramID
	return pos
}

func single(t *testing.T, ixs []solana.Instruction) *builder.Instruction {
	t.Helper()
	require.Len(t, ixs, 1)
	ix, ok := ixs[0].(*builder.Instruction)
	require.True(t, ok)
	return ix
}

func TestDecodePool(t *testing.T) {
	pool := decodedPool(t, true)

	assert.Equal(t, domain.ProtocolRaydium, pool.Protocol)
	assert.Equal(t, ammConfig, pool.AmmConfig)
	assert.Equal(t, mint0, pool.Token0.Mint)
	assert.Equal(t, mint1, pool.Token1.Mint)
	assert.Equal(t, vault0, pool.Token0.Vault)
	assert.Equal(t, vault1, pool.Token1.Vault)
	assert.Equal(t, observ, pool.Oracle)
	assert.Equal(t, uint8(9), pool.Token0.Decimals)
	assert.Equal(t, uint8(6), pool.Token1.Decimals)
	assert.Equal(t, uint16(10), pool.TickSpacing)
	assert.Equal(t, int32(-25), pool.TickCurrent)
	assert.Equal(t, uint64(123456789), pool.Liquidity.Uint64())
	assert.True(t, tickmath.MustSqrtPriceAtTick(-25).Eq(pool.SqrtPriceX64))

	require.Len(t, pool.Rewards, 1)
	assert.Equal(t, rewardMint, pool.Rewards[0].Mint)
	assert.Equal(t, rewardVlt, pool.Rewards[0].Vault)
}

func TestDecodePoolRejects(t *testing.T) {
	p := New()
	data := poolAccount(t, 0, 10, false)

	_, err := p.DecodePool(poolAddr, common.WhirlpoolProgramID, data)
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrPoolOwner)
	assert.True(t, common.IsKind(err, common.KindValidation))

	_, err = p.DecodePool(poolAddr, common.RaydiumCLMMProgramID, data[:200])
	assert.ErrorIs(t, err, protocol.ErrAccountData)

	bad := append([]byte(nil), data...)
	bad[0] ^= 0xff
	_, err = p.DecodePool(poolAddr, common.RaydiumCLMMProgramID, bad)
	assert.ErrorIs(t, err, protocol.ErrAccountData)
}

func TestDecodePosition(t *testing.T) {
	pos := existingPosition(t, 5000)
	expected, err := PersonalPositionAddress(nftMint)
	require.NoError(t, err)

	assert.Equal(t, expected, pos.Identity.Address)
	assert.Equal(t, nftMint, pos.Identity.Mint)
	assert.Equal(t, poolAddr, pos.Pool)
	assert.Equal(t, domain.RangeSpec{Lower: -100, Upper: 100}, pos.Range)
	assert.Equal(t, uint64(5000), pos.Liquidity.Uint64())

	other := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
	_, err = New().DecodePosition(other, positionAccount(nftMint, poolAddr, -100, 100, 1))
	assert.ErrorIs(t, err, protocol.ErrAccountData)
}

func TestAddressDerivation(t *testing.T) {
	t.Run("tick array start is big-endian", func(t *testing.T) {
		got, err := TickArrayAddress(poolAddr, -600)
		require.NoError(t, err)
		want, _, err := solana.FindProgramAddress([][]byte{
			[]byte("tick_array"), poolAddr[:], {0xff, 0xff, 0xfd, 0xa8},
		}, common.RaydiumCLMMProgramID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("protocol position bounds are little-endian", func(t *testing.T) {
		got, err := ProtocolPositionAddress(poolAddr, -100, 100)
		require.NoError(t, err)
		want, _, err := solana.FindProgramAddress([][]byte{
			[]byte("position"), poolAddr[:], {0x9c, 0xff, 0xff, 0xff}, {0x64, 0, 0, 0},
		}, common.RaydiumCLMMProgramID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("deterministic and input sensitive", func(t *testing.T) {
		a, err := PersonalPositionAddress(nftMint)
		require.NoError(t, err)
		b, err := PersonalPositionAddress(nftMint)
		require.NoError(t, err)
		assert.Equal(t, a, b)

		c, err := PersonalPositionAddress(owner)
		require.NoError(t, err)
		assert.NotEqual(t, a, c)

		m1, err := MetadataAddress(nftMint)
		require.NoError(t, err)
		m2, err := MetadataAddress(owner)
		require.NoError(t, err)
		assert.NotEqual(t, m1, m2)
	})

	t.Run("tick array start index", func(t *testing.T) {
		assert.Equal(t, int32(0), TickArrayStartIndex(0, 10))
		assert.Equal(t, int32(-600), TickArrayStartIndex(-1, 10))
		assert.Equal(t, int32(600), TickArrayStartIndex(600, 10))
		assert.Equal(t, int32(-3840), TickArrayStartIndex(-64, 64))
	})
}

func TestOpenPositionEncoding(t *testing.T) {
	p := New()
	pool := decodedPool(t, false)
	r := domain.RangeSpec{Lower: -100, Upper: 100}
	delta, err := p.Allocate(pool, r, domain.AmountBounds{Amount0: 1_000_000_000, Amount1: 1_000_000})
	require.NoError(t, err)

	id, err := p.NewPositionIdentity(nftMint)
	require.NoError(t, err)

	ctx := &protocol.BuildContext{Owner: owner, Pool: pool, NewPosition: id, Range: r, Delta: delta}
	ixs, err := p.Build(protocol.ActionOpen, ctx)
	require.NoError(t, err)
	ix := single(t, ixs)

	require.Len(t, ix.Metas, 22)
	assert.True(t, ix.Metas[0].IsSigner)
	assert.Equal(t, nftMint, ix.Metas[2].PublicKey)
	assert.True(t, ix.Metas[2].IsSigner)
	assert.Equal(t, id.Address, ix.Metas[9].PublicKey)
	assert.Equal(t, mint1, ix.Metas[21].PublicKey)

	disc := builder.AnchorDiscriminator("open_position_v2")
	assert.Equal(t, disc[:], ix.Payload[:8])

	var decoded struct {
		TickLower      int32
		TickUpper      int32
		ArrayLower     int32
		ArrayUpper     int32
		Liquidity      bin.Uint128
		Amount0Max     uint64
		Amount1Max     uint64
		WithMetadata   bool
		BaseFlagOption uint8
	}
	require.NoError(t, bin.NewBorshDecoder(ix.Payload[8:]).Decode(&decoded))
	assert.Equal(t, int32(-100), decoded.TickLower)
	assert.Equal(t, int32(100), decoded.TickUpper)
	assert.Equal(t, int32(-600), decoded.ArrayLower)
	assert.Equal(t, int32(0), decoded.ArrayUpper)
	assert.True(t, builder.U128ToUint256(decoded.Liquidity).Eq(delta.Liquidity))
	assert.Equal(t, delta.Amount0, decoded.Amount0Max)
	assert.Equal(t, delta.Amount1, decoded.Amount1Max)
	assert.True(t, decoded.WithMetadata)
	assert.Equal(t, uint8(0), decoded.BaseFlagOption)
	assert.Len(t, ix.Payload, 8+16+16+16+1+1)

	again, err := p.Build(protocol.ActionOpen, ctx)
	require.NoError(t, err)
	assert.Equal(t, ix.Payload, single(t, again).Payload)
}

func TestRemoveEncoding(t *testing.T) {
	p := New()

	t.Run("decrease precedes close", func(t *testing.T) {
		ctx := &protocol.BuildContext{Owner: owner, Pool: decodedPool(t, true), Position: existingPosition(t, 5000), MinOut0: 11, MinOut1: 22}
		ixs, err := protocol.BuildRemove(p, ctx, true)
		require.NoError(t, err)
		require.Len(t, ixs, 2)
		assert.Equal(t, "decrease_liquidity_v2", ixs[0].(*builder.Instruction).Name)
		assert.Equal(t, "close_position", ixs[1].(*builder.Instruction).Name)

		dec := ixs[0].(*builder.Instruction)
		// one reward adds vault, user account and mint
		assert.Len(t, dec.Metas, 16+3)
		assert.Equal(t, rewardVlt, dec.Metas[16].PublicKey)
		assert.Equal(t, rewardMint, dec.Metas[18].PublicKey)

		var decoded struct {
			Liquidity bin.Uint128
			Min0      uint64
			Min1      uint64
		}
		require.NoError(t, bin.NewBorshDecoder(dec.Payload[8:]).Decode(&decoded))
		assert.Equal(t, uint64(5000), decoded.Liquidity.Lo)
		assert.Equal(t, uint64(11), decoded.Min0)
		assert.Equal(t, uint64(22), decoded.Min1)
	})

	t.Run("empty position closes only", func(t *testing.T) {
		ctx := &protocol.BuildContext{Owner: owner, Pool: decodedPool(t, false), Position: existingPosition(t, 0)}
		ixs, err := protocol.BuildRemove(p, ctx, true)
		require.NoError(t, err)
		require.Len(t, ixs, 1)
		assert.Equal(t, "close_position", ixs[0].(*builder.Instruction).Name)
	})

	t.Run("empty position without close is rejected", func(t *testing.T) {
		ctx := &protocol.BuildContext{Owner: owner, Pool: decodedPool(t, false), Position: existingPosition(t, 0)}
		_, err := protocol.BuildRemove(p, ctx, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, protocol.ErrEmptyPosition)
		assert.Equal(t, 2, common.ExitCode(err))
	})

	t.Run("reward accounts are prerequisites", func(t *testing.T) {
		ctx := &protocol.BuildContext{Owner: owner, Pool: decodedPool(t, true), Position: existingPosition(t, 1)}
		pre, err := p.Prerequisites(protocol.ActionDecrease, ctx)
		require.NoError(t, err)
		require.Len(t, pre, 3)
		want, err := builder.GetATAAddressForMint(owner, rewardMint, common.TokenProgramID)
		require.NoError(t, err)
		assert.Equal(t, want, pre[2].Address)
	})
}

func TestSwapEncoding(t *testing.T) {
	p := New()

	decodeSwap := func(t *testing.T, ix *builder.Instruction) (uint64, uint64, *uint256.Int, bool) {
		var decoded struct {
			Amount      uint64
			Threshold   uint64
			Limit       bin.Uint128
			IsBaseInput bool
		}
		require.NoError(t, bin.NewBorshDecoder(ix.Payload[8:]).Decode(&decoded))
		return decoded.Amount, decoded.Threshold, builder.U128ToUint256(decoded.Limit), decoded.IsBaseInput
	}

	tests := []struct {
		name  string
		aToB  bool
		limit *uint256.Int
		want  *uint256.Int
	}{
		{"zero limit a to b", true, uint256.NewInt(0), new(uint256.Int).AddUint64(tickmath.MinSqrtPriceX64, 1)},
		{"nil limit b to a", false, nil, new(uint256.Int).SubUint64(tickmath.MaxSqrtPriceX64, 1)},
		{"explicit limit kept", true, uint256.NewInt(5_000_000_000), uint256.NewInt(5_000_000_000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := &protocol.BuildContext{
				Owner: owner,
				Pool:  decodedPool(t, false),
				Swap:  &domain.SwapRequest{Pool: poolAddr, AmountIn: 1000, MinAmountOut: 990, AToB: tt.aToB, SqrtPriceLimitX64: tt.limit},
			}
			ixs, err := p.Build(protocol.ActionSwap, ctx)
			require.NoError(t, err)
			ix := single(t, ixs)
			require.Len(t, ix.Metas, 10)

			amount, threshold, limit, base := decodeSwap(t, ix)
			assert.Equal(t, uint64(1000), amount)
			assert.Equal(t, uint64(990), threshold)
			assert.True(t, tt.want.Eq(limit), "limit %s", limit.Dec())
			assert.True(t, base)

			inVault := ix.Metas[5].PublicKey
			if tt.aToB {
				assert.Equal(t, vault0, inVault)
			} else {
				assert.Equal(t, vault1, inVault)
			}
		})
	}

	t.Run("token-2022 mint rejected", func(t *testing.T) {
		pool := decodedPool(t, false)
		pool.Token1.Program = common.Token2022ID
		ctx := &protocol.BuildContext{Owner: owner, Pool: pool, Swap: &domain.SwapRequest{AmountIn: 1, AToB: true}}
		_, err := p.Build(protocol.ActionSwap, ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrToken2022Swap)
		assert.True(t, common.IsKind(err, common.KindValidation))
	})
}

func TestAllocateRejectsMisalignedRange(t *testing.T) {
	_, err := New().Allocate(decodedPool(t, false), domain.RangeSpec{Lower: -105, Upper: 100}, domain.AmountBounds{Amount0: 1, Amount1: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, tickmath.ErrInvalidRange)
}
