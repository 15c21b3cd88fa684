package blockchain

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
)

const blockhashMaxAge = 2 * time.Second

type BlockhashClient interface {
	GetLatestBlockhash(ctx context.Context, commitment rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error)
}

type CachedBlockhash struct {
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	Slot                 uint64
	UpdatedAt            time.Time
}

// BlockhashCache serves a recent blockhash, refetching once it is older than blockhashMaxAge.
type BlockhashCache struct {
	mu         sync.RWMutex
	current    *CachedBlockhash
	client     BlockhashClient
	commitment rpc.CommitmentType
	now        func() time.Time
}

func NewBlockhashCache(client BlockhashClient, commitment rpc.CommitmentType) *BlockhashCache {
	return &BlockhashCache{client: client, commitment: commitment, now: time.Now}
}

func (c *BlockhashCache) Blockhash(ctx context.Context) (solana.Hash, uint64, error) {
	c.mu.RLock()
	cached := c.current
	c.mu.RUnlock()

	if cached != nil && c.now().Sub(cached.UpdatedAt) < blockhashMaxAge {
		return cached.Blockhash, cached.LastValidBlockHeight, nil
	}
	return c.Refresh(ctx)
}

// Refresh always fetches; the previous blockhash is never handed out again on error.
func (c *BlockhashCache) Refresh(ctx context.Context) (solana.Hash, uint64, error) {
	started := time.Now()
	res, err := c.client.GetLatestBlockhash(ctx, c.commitment)
	observe("getLatestBlockhash", started, err)
	if err != nil {
		return solana.Hash{}, 0, err
	}

	c.mu.Lock()
	c.current = &CachedBlockhash{
		Blockhash:            res.Value.Blockhash,
		LastValidBlockHeight: res.Value.LastValidBlockHeight,
		Slot:                 res.Context.Slot,
		UpdatedAt:            c.now(),
	}
	c.mu.Unlock()

	log.Debug().
		Str("blockhash", res.Value.Blockhash.String()).
		Uint64("lastValidBlockHeight", res.Value.LastValidBlockHeight).
		Uint64("slot", res.Context.Slot).
		Msg("[BlockhashCache] fetched blockhash")

	return res.Value.Blockhash, res.Value.LastValidBlockHeight, nil
}
