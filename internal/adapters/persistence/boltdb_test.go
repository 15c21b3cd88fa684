package persistence

import (
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	poolAddr   = solana.MustPublicKeyFromBase58("HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ")
	usdc       = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	rewardMint = solana.MustPublicKeyFromBase58("orcaEKTdK7LKz57vaAYr9QeNsVEPfiu6QeMU1kektZE")
)

func pool(resolved bool) *domain.PoolState {
	p := &domain.PoolState{
		Address:     poolAddr,
		Protocol:    domain.ProtocolOrca,
		ProgramID:   common.WhirlpoolProgramID,
		Token0:      domain.TokenInfo{Mint: solana.SolMint},
		Token1:      domain.TokenInfo{Mint: usdc},
		TickSpacing: 64,
		Rewards:     []domain.RewardInfo{{Index: 0, Mint: rewardMint}},
	}
	if resolved {
		p.Token0.Program, p.Token0.Decimals = common.TokenProgramID, 9
		p.Token1.Program, p.Token1.Decimals = common.Token2022ID, 6
		p.Rewards[0].Program = common.TokenProgramID
	}
	return p
}

func openCache(t *testing.T) *PoolCache {
	t.Helper()
	c, err := OpenPoolCache(filepath.Join(t.TempDir(), "cache", "pools.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPoolCacheRoundTrip(t *testing.T) {
	c := openCache(t)

	_, ok, err := c.Load(poolAddr)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Save(pool(true), 1234)
	require.NoError(t, err)

	snap, ok, err := c.Load(poolAddr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "orca", snap.Protocol)
	assert.Equal(t, uint64(1234), snap.Slot)
	assert.Equal(t, uint16(64), snap.TickSpacing)

	fresh := pool(false)
	complete, err := snap.Apply(fresh)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, common.TokenProgramID, fresh.Token0.Program)
	assert.Equal(t, common.Token2022ID, fresh.Token1.Program)
	assert.Equal(t, uint8(6), fresh.Token1.Decimals)
	assert.Equal(t, common.TokenProgramID, fresh.Rewards[0].Program)

	n, err := c.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSnapshotApplyRejectsOtherPool(t *testing.T) {
	snap := snapshotOf(pool(true), 1)
	other := pool(false)
	other.Token1.Mint = rewardMint

	_, err := snap.Apply(other)
	require.ErrorIs(t, err, ErrCacheMismatch)
}

func TestSnapshotApplyIncomplete(t *testing.T) {
	snap := snapshotOf(pool(false), 1)
	complete, err := snap.Apply(pool(false))
	require.NoError(t, err)
	assert.False(t, complete)
}
