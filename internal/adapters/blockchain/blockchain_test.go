package blockchain

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	accounts map[solana.PublicKey]*rpc.Account
	failures int
	calls    int
	sizes    []int
	tokens   []*rpc.TokenAccount
}

func (f *fakeAccounts) GetMultipleAccountsWithOpts(_ context.Context, keys []solana.PublicKey, _ *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection refused")
	}
	f.sizes = append(f.sizes, len(keys))
	out := &rpc.GetMultipleAccountsResult{Value: make([]*rpc.Account, len(keys))}
	for i, k := range keys {
		out.Value[i] = f.accounts[k]
	}
	return out, nil
}

func (f *fakeAccounts) GetTokenAccountsByOwner(context.Context, solana.PublicKey, *rpc.GetTokenAccountsConfig, *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	return &rpc.GetTokenAccountsResult{Value: f.tokens}, nil
}

func rawAccount(owner solana.PublicKey, data []byte) *rpc.Account {
	return &rpc.Account{Owner: owner, Lamports: 1, Data: rpc.DataBytesOrJSONFromBytes(data)}
}

func newKey(t *testing.T) solana.PublicKey {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func TestFetcherAccounts(t *testing.T) {
	present, missing := newKey(t), newKey(t)
	client := &fakeAccounts{
		accounts: map[solana.PublicKey]*rpc.Account{present: rawAccount(common.TokenProgramID, []byte{1, 2, 3})},
		failures: 2,
	}
	f := NewFetcher(client, rpc.CommitmentConfirmed, 2, time.Millisecond)

	accs, err := f.Accounts(context.Background(), present, missing)
	require.NoError(t, err)
	require.Len(t, accs, 2)
	assert.Equal(t, present, accs[0].Address)
	assert.Equal(t, common.TokenProgramID, accs[0].Owner)
	assert.Equal(t, []byte{1, 2, 3}, accs[0].Data)
	assert.Nil(t, accs[1])
	assert.Equal(t, 3, client.calls)

	exists, err := f.Existing(context.Background(), present, missing)
	require.NoError(t, err)
	assert.True(t, exists[present])
	assert.False(t, exists[missing])

	_, err = f.Account(context.Background(), missing)
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestFetcherGivesUpAfterRetries(t *testing.T) {
	client := &fakeAccounts{failures: 5}
	f := NewFetcher(client, rpc.CommitmentConfirmed, 1, time.Millisecond)

	_, err := f.Accounts(context.Background(), newKey(t))
	require.Error(t, err)
	assert.Equal(t, common.KindNetwork, common.KindOf(err))
	assert.Equal(t, 2, client.calls)
}

func TestFetcherChunks(t *testing.T) {
	client := &fakeAccounts{}
	f := NewFetcher(client, rpc.CommitmentConfirmed, 0, time.Millisecond)

	keys := make([]solana.PublicKey, 230)
	for i := range keys {
		keys[i] = newKey(t)
	}
	accs, err := f.Accounts(context.Background(), keys...)
	require.NoError(t, err)
	assert.Len(t, accs, 230)
	assert.Equal(t, []int{100, 100, 30}, client.sizes)
}

func TestTokenAccountsByOwner(t *testing.T) {
	mint, owner, holder := newKey(t), newKey(t), newKey(t)
	data := make([]byte, 165)
	copy(data[0:32], mint[:])
	copy(data[32:64], owner[:])
	binary.LittleEndian.PutUint64(data[64:], 1)

	client := &fakeAccounts{tokens: []*rpc.TokenAccount{
		{Pubkey: holder, Account: rawAccount(common.Token2022ID, data)},
		{Pubkey: newKey(t), Account: rawAccount(common.TokenProgramID, []byte{0})},
	}}
	f := NewFetcher(client, rpc.CommitmentConfirmed, 0, time.Millisecond)

	got, err := f.TokenAccountsByOwner(context.Background(), owner, mint)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, TokenAccount{Address: holder, Program: common.Token2022ID, Mint: mint, Owner: owner, Amount: 1}, got[0])
}

func TestMintDecimals(t *testing.T) {
	data := make([]byte, 82)
	data[44] = 6
	d, err := MintDecimals(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)

	_, err = MintDecimals(data[:10])
	require.Error(t, err)
}

type fakeBlockhashClient struct {
	calls int
	err   error
}

func (f *fakeBlockhashClient) GetLatestBlockhash(context.Context, rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rpc.GetLatestBlockhashResult{
		RPCContext: rpc.RPCContext{Context: rpc.Context{Slot: uint64(f.calls)}},
		Value:      &rpc.LatestBlockhashResult{Blockhash: solana.Hash{byte(f.calls)}, LastValidBlockHeight: uint64(100 + f.calls)},
	}, nil
}

func TestBlockhashCache(t *testing.T) {
	client := &fakeBlockhashClient{}
	c := NewBlockhashCache(client, rpc.CommitmentConfirmed)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	h, last, err := c.Blockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solana.Hash{1}, h)
	assert.Equal(t, uint64(101), last)

	_, _, err = c.Blockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls, "fresh blockhash is served from cache")

	now = now.Add(3 * time.Second)
	h, _, err = c.Blockhash(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solana.Hash{2}, h)

	h, last, err = c.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, solana.Hash{3}, h)
	assert.Equal(t, uint64(103), last)

	client.err = errors.New("timeout")
	_, _, err = c.Refresh(context.Background())
	require.Error(t, err)
}
