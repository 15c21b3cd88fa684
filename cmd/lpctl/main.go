package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hxuan190/lp-engine/internal/adapters/blockchain"
	"github.com/hxuan190/lp-engine/internal/adapters/persistence"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/config"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/metrics"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/dispatch"
	"github.com/hxuan190/lp-engine/internal/services/priority"
	"github.com/hxuan190/lp-engine/internal/services/transaction"
	"github.com/hxuan190/lp-engine/internal/wallet"
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	err := newRootCmd().Execute()
	if err != nil {
		log.Error().Err(err).Str("kind", common.KindOf(err).String()).Msg("lpctl failed")
		var e *common.Error
		if errors.As(err, &e) {
			for _, line := range e.Logs {
				fmt.Fprintln(os.Stderr, line)
			}
		}
	}
	os.Exit(common.ExitCode(err))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "lpctl",
		Short:         "Open, remove and close concentrated liquidity positions and swap on Raydium CLMM, Orca Whirlpool and Meteora DLMM",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAction,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return common.Validation("flags", err)
	})
	config.RegisterGlobalFlags(root.PersistentFlags())
	config.RegisterActionFlags(root.Flags())

	cacheCmd := &cobra.Command{
		Use:   "cache-pool",
		Short: "Store a pool's mints, vaults, decimals and token programs in the local cache",
		RunE:  runCachePool,
	}
	cacheCmd.Flags().String("pool", "", "pool address")
	cacheCmd.Flags().Bool("refresh", false, "refetch even if the pool is cached")
	root.AddCommand(cacheCmd)

	return root
}

func setup(cmd *cobra.Command) (*config.Options, context.Context, context.CancelFunc, error) {
	opts, err := config.LoadOptions(cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	common.SetupLogger(opts.General.LogLevel, opts.General.LogPretty)
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return opts, ctx, stop, nil
}

func writeMetrics(path string) {
	if err := metrics.WriteTextfile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to write metrics")
	}
}

func runAction(cmd *cobra.Command, _ []string) error {
	opts, ctx, stop, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer writeMetrics(opts.General.MetricsFile)

	req, err := opts.Request()
	if err != nil {
		return err
	}
	if err := dispatch.Validate(req, dispatch.Select(req)); err != nil {
		return err
	}
	key, err := wallet.Load(opts.Keypair)
	if err != nil {
		return err
	}

	client := rpc.New(opts.RPC.URL)
	fetcher := blockchain.NewFetcher(client, opts.RPC.Commitment, opts.RPC.ReadRetries, opts.RPC.RetryBackoff)
	blockhashes := blockchain.NewBlockhashCache(client, opts.RPC.Commitment)
	assembler := transaction.NewAssembler(client, blockhashes, key, transaction.Options{
		Commitment:     opts.RPC.Commitment,
		ConfirmTimeout: opts.RPC.ConfirmTimeout,
		PollInterval:   opts.RPC.PollInterval,
		MaxAttempts:    opts.RPC.MaxAttempts,
		CUMargin:       opts.Compute.Margin,
		DryRun:         opts.DryRun,
		Fees:           priority.NewFeeCalculator(blockchain.RecentPriorityFees(client, opts.RPC.ReadRetries, opts.RPC.RetryBackoff)),
		Urgency:        opts.Compute.Urgency,
	})

	var runnerOpts []dispatch.Option
	if opts.Cache.Enabled {
		cache, err := persistence.OpenPoolCache(opts.Cache.DBPath)
		if err != nil {
			return common.Validation("pool cache", err)
		}
		defer cache.Close()
		runnerOpts = append(runnerOpts, dispatch.WithSnapshots(cache))
	}

	log.Info().Str("payer", key.PublicKey().String()).Str("options", opts.String()).Msg("starting")
	runner := dispatch.NewRunner(dispatch.DefaultRegistry(), fetcher, assembler, key.PublicKey(), runnerOpts...)
	res, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res)
}

func printResult(w io.Writer, res *domain.SubmitResult) error {
	if res == nil {
		_, err := fmt.Fprintln(w, `{"submitted":false}`)
		return err
	}
	out, err := sonic.MarshalString(res)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}

func runCachePool(cmd *cobra.Command, _ []string) error {
	opts, ctx, stop, err := setup(cmd)
	if err != nil {
		return err
	}
	defer stop()
	defer writeMetrics(opts.General.MetricsFile)

	poolFlag, _ := cmd.Flags().GetString("pool")
	refresh, _ := cmd.Flags().GetBool("refresh")
	if poolFlag == "" {
		return common.Validationf("cache-pool", "--pool is required")
	}
	address, err := builder.ParsePublicKey("pool", poolFlag)
	if err != nil {
		return err
	}
	dex, err := domain.ParseProtocol(opts.Dex)
	if err != nil {
		return common.Validation("flags", err)
	}

	cache, err := persistence.OpenPoolCache(opts.Cache.DBPath)
	if err != nil {
		return common.Validation("pool cache", err)
	}
	defer cache.Close()

	if !refresh {
		snap, ok, err := cache.Load(address)
		if err != nil {
			return err
		}
		if ok {
			log.Info().Str("pool", snap.Address).Msg("pool already cached, use --refresh to refetch")
			return printSnapshot(cmd.OutOrStdout(), snap)
		}
	}

	client := rpc.New(opts.RPC.URL)
	fetcher := blockchain.NewFetcher(client, opts.RPC.Commitment, opts.RPC.ReadRetries, opts.RPC.RetryBackoff)
	runner := dispatch.NewRunner(dispatch.DefaultRegistry(), fetcher, nil, solana.PublicKey{})

	pool, err := runner.LoadPool(ctx, dex, address)
	if err != nil {
		return err
	}
	slot, err := client.GetSlot(ctx, opts.RPC.Commitment)
	if err != nil {
		return common.Network("get slot", err)
	}
	snap, err := cache.Save(pool, slot)
	if err != nil {
		return err
	}
	if n, err := cache.Count(); err == nil {
		log.Info().Str("pool", snap.Address).Uint64("slot", slot).Int("cached_pools", n).Msg("pool cached")
	}
	return printSnapshot(cmd.OutOrStdout(), snap)
}

func printSnapshot(w io.Writer, snap *persistence.PoolSnapshot) error {
	out, err := sonic.MarshalString(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out)
	return err
}
