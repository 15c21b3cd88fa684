// Package blockchain adapts the Solana RPC client to the reads the engine needs.
package blockchain

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hxuan190/lp-engine/internal/common"
)

// maxAccountsPerCall is the getMultipleAccounts limit.
const maxAccountsPerCall = 100

var ErrAccountNotFound = errors.New("account not found")

// AccountClient is the part of the RPC client the fetcher uses.
type AccountClient interface {
	GetMultipleAccountsWithOpts(ctx context.Context, accounts []solana.PublicKey, opts *rpc.GetMultipleAccountsOpts) (*rpc.GetMultipleAccountsResult, error)
	GetTokenAccountsByOwner(ctx context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, opts *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error)
}

// Account is a raw account snapshot.
type Account struct {
	Address  solana.PublicKey
	Owner    solana.PublicKey
	Lamports uint64
	Data     []byte
}

// TokenAccount is the decoded head of an SPL token account.
type TokenAccount struct {
	Address solana.PublicKey
	Program solana.PublicKey
	Mint    solana.PublicKey
	Owner   solana.PublicKey
	Amount  uint64
}

type Fetcher struct {
	client     AccountClient
	commitment rpc.CommitmentType
	retries    int
	baseDelay  time.Duration
}

func NewFetcher(client AccountClient, commitment rpc.CommitmentType, retries int, baseDelay time.Duration) *Fetcher {
	return &Fetcher{client: client, commitment: commitment, retries: retries, baseDelay: baseDelay}
}

// Accounts fetches addresses in order; missing accounts come back as nil.
func (f *Fetcher) Accounts(ctx context.Context, addresses ...solana.PublicKey) ([]*Account, error) {
	out := make([]*Account, 0, len(addresses))
	for start := 0; start < len(addresses); start += maxAccountsPerCall {
		end := min(start+maxAccountsPerCall, len(addresses))
		chunk := addresses[start:end]

		var res *rpc.GetMultipleAccountsResult
		err := withRetry(ctx, f.retries, f.baseDelay, func(ctx context.Context) error {
			started := time.Now()
			var err error
			res, err = f.client.GetMultipleAccountsWithOpts(ctx, chunk, &rpc.GetMultipleAccountsOpts{
				Encoding:   solana.EncodingBase64,
				Commitment: f.commitment,
			})
			observe("getMultipleAccounts", started, err)
			return err
		})
		if err != nil {
			return nil, common.Network("fetch accounts", err)
		}
		if res == nil || len(res.Value) != len(chunk) {
			return nil, common.Network("fetch accounts", fmt.Errorf("expected %d accounts in response", len(chunk)))
		}
		for i, acc := range res.Value {
			if acc == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, &Account{
				Address:  chunk[i],
				Owner:    acc.Owner,
				Lamports: acc.Lamports,
				Data:     acc.Data.GetBinary(),
			})
		}
	}
	return out, nil
}

// Account fetches one account; a missing account is a ValidationError.
func (f *Fetcher) Account(ctx context.Context, address solana.PublicKey) (*Account, error) {
	accs, err := f.Accounts(ctx, address)
	if err != nil {
		return nil, err
	}
	if accs[0] == nil {
		return nil, common.Validation("fetch account", fmt.Errorf("%w: %s", ErrAccountNotFound, address))
	}
	return accs[0], nil
}

// Existing reports which of the addresses hold an account.
func (f *Fetcher) Existing(ctx context.Context, addresses ...solana.PublicKey) (map[solana.PublicKey]bool, error) {
	accs, err := f.Accounts(ctx, addresses...)
	if err != nil {
		return nil, err
	}
	out := make(map[solana.PublicKey]bool, len(addresses))
	for i, acc := range accs {
		out[addresses[i]] = acc != nil
	}
	return out, nil
}

// TokenAccountsByOwner lists owner's accounts for mint under every token program.
func (f *Fetcher) TokenAccountsByOwner(ctx context.Context, owner, mint solana.PublicKey) ([]TokenAccount, error) {
	var res *rpc.GetTokenAccountsResult
	err := withRetry(ctx, f.retries, f.baseDelay, func(ctx context.Context) error {
		started := time.Now()
		var err error
		res, err = f.client.GetTokenAccountsByOwner(ctx, owner,
			&rpc.GetTokenAccountsConfig{Mint: &mint},
			&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64, Commitment: f.commitment},
		)
		observe("getTokenAccountsByOwner", started, err)
		return err
	})
	if err != nil {
		return nil, common.Network("fetch token accounts", err)
	}

	var out []TokenAccount
	for _, keyed := range res.Value {
		if keyed == nil || keyed.Account == nil {
			continue
		}
		ta, err := DecodeTokenAccount(keyed.Pubkey, keyed.Account.Owner, keyed.Account.Data.GetBinary())
		if err != nil {
			continue
		}
		out = append(out, ta)
	}
	return out, nil
}

// DecodeTokenAccount reads mint, owner and amount from a token account.
func DecodeTokenAccount(address, program solana.PublicKey, data []byte) (TokenAccount, error) {
	if len(data) < 72 {
		return TokenAccount{}, fmt.Errorf("token account %s: %d bytes", address, len(data))
	}
	return TokenAccount{
		Address: address,
		Program: program,
		Mint:    solana.PublicKeyFromBytes(data[0:32]),
		Owner:   solana.PublicKeyFromBytes(data[32:64]),
		Amount:  binary.LittleEndian.Uint64(data[64:72]),
	}, nil
}

// MintDecimals reads the decimals byte of a mint account.
func MintDecimals(data []byte) (uint8, error) {
	if len(data) < 45 {
		return 0, fmt.Errorf("mint account: %d bytes", len(data))
	}
	return data[44], nil
}
