package dispatch

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/lp-engine/internal/adapters/blockchain"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/metrics"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
)

// LoadPool fetches and decodes a pool and resolves its mints' token programs
// and decimals.
func (r *Runner) LoadPool(ctx context.Context, kind domain.Protocol, address solana.PublicKey) (*domain.PoolState, error) {
	p, err := r.protocols.Get(kind)
	if err != nil {
		return nil, err
	}
	return r.loadPool(ctx, p, address)
}

func (r *Runner) loadPool(ctx context.Context, p protocol.PositionProtocol, address solana.PublicKey) (*domain.PoolState, error) {
	acc, err := r.fetcher.Account(ctx, address)
	if err != nil {
		return nil, err
	}
	pool, err := p.DecodePool(address, acc.Owner, acc.Data)
	if err != nil {
		return nil, err
	}
	if r.fromSnapshot(pool) {
		return pool, nil
	}
	if err := r.resolveMints(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (r *Runner) fromSnapshot(pool *domain.PoolState) bool {
	if r.snapshots == nil {
		return false
	}
	snap, ok, err := r.snapshots.Load(pool.Address)
	if err != nil {
		r.logger.Warn().Err(err).Str("pool", pool.Address.String()).Msg("pool cache unavailable")
	}
	if ok {
		complete, err := snap.Apply(pool)
		if err != nil {
			r.logger.Warn().Err(err).Str("pool", pool.Address.String()).Msg("ignoring cached pool")
		} else if complete {
			metrics.PoolCacheHits.Inc()
			return true
		}
	}
	metrics.PoolCacheMisses.Inc()
	return false
}

// resolveMints reads both pool mints and every reward mint in one call.
func (r *Runner) resolveMints(ctx context.Context, pool *domain.PoolState) error {
	mints := make([]solana.PublicKey, 0, 2+len(pool.Rewards))
	mints = append(mints, pool.Mints()...)
	for _, rw := range pool.Rewards {
		mints = append(mints, rw.Mint)
	}
	accs, err := r.fetcher.Accounts(ctx, mints...)
	if err != nil {
		return err
	}

	for i, acc := range accs {
		if acc == nil {
			return common.Validation("mint", fmt.Errorf("%w: %s", ErrMissingMint, mints[i]))
		}
		if !acc.Owner.Equals(common.TokenProgramID) && !acc.Owner.Equals(common.Token2022ID) {
			return common.Validation("mint", fmt.Errorf("%w: %s owned by %s", ErrMintProgram, mints[i], acc.Owner))
		}
		decimals, err := blockchain.MintDecimals(acc.Data)
		if err != nil {
			return common.Validation("mint", err)
		}
		program := builder.TokenProgramForOwner(acc.Owner)
		switch i {
		case 0:
			pool.Token0.Program, pool.Token0.Decimals = program, decimals
		case 1:
			pool.Token1.Program, pool.Token1.Decimals = program, decimals
		default:
			pool.Rewards[i-2].Program = program
		}
	}
	return nil
}
