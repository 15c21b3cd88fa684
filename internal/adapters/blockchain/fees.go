package blockchain

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hxuan190/lp-engine/internal/common"
)

// RecentPriorityFees returns a lookup of the fees paid per compute unit in
// recent slots by transactions writing the given accounts.
func RecentPriorityFees(client *rpc.Client, retries int, baseDelay time.Duration) func(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error) {
	return func(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error) {
		var fees []uint64
		err := withRetry(ctx, retries, baseDelay, func(ctx context.Context) error {
			started := time.Now()
			res, err := client.GetRecentPrioritizationFees(ctx, solana.PublicKeySlice(accounts))
			observe("getRecentPrioritizationFees", started, err)
			if err != nil {
				return err
			}
			fees = make([]uint64, 0, len(res))
			for _, r := range res {
				fees = append(fees, r.PrioritizationFee)
			}
			return nil
		})
		if err != nil {
			return nil, common.Network("recent prioritization fees", err)
		}
		return fees, nil
	}
}
