package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/metrics"
	"github.com/hxuan190/lp-engine/internal/services"
	"github.com/hxuan190/lp-engine/internal/services/priority"
)

const ASSEMBLER_SERVICE = "transaction-assembler"

var (
	ErrTooLarge         = errors.New("transaction exceeds the packet size")
	ErrMissingSigner    = errors.New("missing signer")
	ErrBlockhashExpired = errors.New("blockhash expired before confirmation")
	ErrAttemptsExceeded = errors.New("submission attempts exhausted")
	ErrNodeBusy         = errors.New("rpc node kept rejecting the transaction as busy")
	errConfirmDeadline  = errors.New("confirmation deadline reached")
)

// Client is the part of the RPC client the assembler needs.
type Client interface {
	SimulateTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
	GetBlockHeight(ctx context.Context, commitment rpc.CommitmentType) (uint64, error)
}

// BlockhashSource hands out a recent blockhash and its last valid block height.
// Refresh bypasses any cache.
type BlockhashSource interface {
	Blockhash(ctx context.Context) (solana.Hash, uint64, error)
	Refresh(ctx context.Context) (solana.Hash, uint64, error)
}

type Options struct {
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	// MaxAttempts bounds sends, resubmissions after expiry included.
	MaxAttempts int
	// CUMargin is the headroom over simulated units when the limit is estimated.
	CUMargin float64
	DryRun   bool
	// Fees replaces the plan's unit price with a percentile of recent fees
	// when Urgency is not none.
	Fees    *priority.FeeCalculator
	Urgency priority.Urgency
}

func DefaultOptions() Options {
	return Options{
		Commitment:     rpc.CommitmentConfirmed,
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   500 * time.Millisecond,
		MaxAttempts:    3,
		CUMargin:       priority.ComputeUnitBuffer,
	}
}

type Assembler struct {
	client      Client
	blockhashes BlockhashSource
	payer       solana.PrivateKey
	opts        Options
	logger      *services.ServiceLogger
}

func NewAssembler(client Client, blockhashes BlockhashSource, payer solana.PrivateKey, opts Options) *Assembler {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	a := &Assembler{client: client, blockhashes: blockhashes, payer: payer, opts: opts}
	a.logger = services.NewServiceLogger(a)
	return a
}

func (a *Assembler) ID() string {
	return ASSEMBLER_SERVICE
}

// signed holds one signed rendition of the plan.
type signed struct {
	tx        *solana.Transaction
	lastValid uint64
}

func (a *Assembler) sign(ixs []solana.Instruction, blockhash solana.Hash, lastValid uint64, extra []solana.PrivateKey) (*signed, error) {
	tx, err := solana.NewTransaction(ixs, blockhash, solana.TransactionPayer(a.payer.PublicKey()))
	if err != nil {
		return nil, common.Validation("assemble", err)
	}
	keys := make(map[solana.PublicKey]*solana.PrivateKey, len(extra)+1)
	keys[a.payer.PublicKey()] = &a.payer
	for i := range extra {
		keys[extra[i].PublicKey()] = &extra[i]
	}
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		return keys[pk]
	}); err != nil {
		return nil, common.Validation("sign", fmt.Errorf("%w: %v", ErrMissingSigner, err))
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, common.Validation("assemble", err)
	}
	metrics.TransactionBytes.Observe(float64(len(raw)))
	if len(raw) > common.MaxTransactionBytes {
		return nil, common.Validation("assemble", fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(raw), common.MaxTransactionBytes))
	}
	return &signed{tx: tx, lastValid: lastValid}, nil
}

// Simulate runs the transaction without signature checks against a fresh blockhash.
func (a *Assembler) Simulate(ctx context.Context, tx *solana.Transaction) (*domain.SimulationResult, error) {
	res, err := a.client.SimulateTransactionWithOpts(ctx, tx, &rpc.SimulateTransactionOpts{
		SigVerify:              false,
		ReplaceRecentBlockhash: true,
		Commitment:             a.opts.Commitment,
	})
	if err != nil {
		return nil, common.Network("simulate", err)
	}
	if res == nil || res.Value == nil {
		return nil, common.Network("simulate", errors.New("empty simulation response"))
	}

	out := &domain.SimulationResult{
		Success:   res.Value.Err == nil,
		Logs:      res.Value.Logs,
		ErrorCode: -1,
	}
	if res.Value.UnitsConsumed != nil {
		out.ComputeUnitsConsumed = *res.Value.UnitsConsumed
	}
	for _, line := range out.Logs {
		a.logger.Debug().Str("log", line).Msg("simulation")
	}
	if res.Value.Err != nil {
		out.Error = describeTxErr(res.Value.Err)
		out.ErrorCode = programErrorCode(res.Value.Err, out.Logs)
	}
	return out, nil
}

func simulationError(sim *domain.SimulationResult) error {
	msg := sim.Error
	if anchor := anchorMessage(sim.Logs); anchor != "" {
		msg = fmt.Sprintf("%s: %s", msg, anchor)
	}
	return common.Program("simulate", sim.ErrorCode, sim.Logs, errors.New(msg))
}

// Execute simulates the plan, then submits it and waits for confirmation.
// With a zero unit limit the limit is taken from the simulation.
func (a *Assembler) Execute(ctx context.Context, plan *Plan) (*domain.SubmitResult, error) {
	if err := a.priceFromNetwork(ctx, plan); err != nil {
		return nil, err
	}
	limit := plan.Budget.UnitLimit
	if priority.NeedsEstimate(limit) {
		limit = priority.MaxComputeUnits
	}
	ixs, err := plan.Instructions(limit)
	if err != nil {
		return nil, err
	}

	blockhash, lastValid, err := a.blockhashes.Blockhash(ctx)
	if err != nil {
		return nil, common.Network("blockhash", err)
	}
	s, err := a.sign(ixs, blockhash, lastValid, plan.Signers)
	if err != nil {
		return nil, err
	}

	sim, err := a.Simulate(ctx, s.tx)
	if err != nil {
		return nil, err
	}
	if !sim.Success {
		return nil, simulationError(sim)
	}
	metrics.SimulatedComputeUnits.Observe(float64(sim.ComputeUnitsConsumed))

	if priority.NeedsEstimate(plan.Budget.UnitLimit) {
		limit = priority.LimitWithBuffer(sim.ComputeUnitsConsumed, a.opts.CUMargin)
		a.logger.Info().Uint64("consumed", sim.ComputeUnitsConsumed).Uint32("limit", limit).Msg("estimated compute unit limit")
		if ixs, err = plan.Instructions(limit); err != nil {
			return nil, err
		}
		if s, err = a.sign(ixs, blockhash, lastValid, plan.Signers); err != nil {
			return nil, err
		}
	}

	result := &domain.SubmitResult{
		Signature:    s.tx.Signatures[0],
		ComputeUnits: sim.ComputeUnitsConsumed,
		Position:     plan.Position,
	}
	if a.opts.DryRun {
		result.Simulated = true
		return result, nil
	}

	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		result.Attempts = attempt
		result.Signature = s.tx.Signatures[0]

		slot, err := a.submit(ctx, s)
		if err == nil {
			result.Slot = slot
			a.logger.Info().Str("signature", result.Signature.String()).Uint64("slot", slot).Int("attempt", attempt).Msg("transaction confirmed")
			return result, nil
		}
		if !errors.Is(err, ErrBlockhashExpired) {
			return nil, err
		}
		if attempt == a.opts.MaxAttempts {
			return nil, common.ConfirmationTimeout("submit", result.Signature.String(), fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExceeded, attempt, err))
		}

		metrics.BlockhashRefreshes.Inc()
		blockhash, lastValid, err = a.blockhashes.Refresh(ctx)
		if err != nil {
			return nil, common.Network("blockhash", err)
		}
		a.logger.Warn().Str("expired", result.Signature.String()).Str("blockhash", blockhash.String()).Msg("blockhash expired, re-signing")
		if s, err = a.sign(ixs, blockhash, lastValid, plan.Signers); err != nil {
			return nil, err
		}
	}
	return nil, common.ConfirmationTimeout("submit", result.Signature.String(), ErrAttemptsExceeded)
}

// priceFromNetwork bids the urgency's percentile of fees recently paid for
// the plan's writable accounts. The configured price is kept on failure.
func (a *Assembler) priceFromNetwork(ctx context.Context, plan *Plan) error {
	if a.opts.Fees == nil || a.opts.Urgency == priority.UrgencyNone {
		return nil
	}
	ixs, err := plan.Instructions(priority.MaxComputeUnits)
	if err != nil {
		return err
	}
	accounts := priority.WritableAccounts(ixs, a.payer.PublicKey(), priority.MaxFeeAccounts)
	res := a.opts.Fees.UnitPrice(ctx, a.opts.Urgency, accounts, plan.Budget.UnitPrice)
	if res.Err != nil {
		a.logger.Warn().Err(res.Err).Uint64("unit_price", res.UnitPrice).Msg("recent fees unavailable, keeping configured price")
		return nil
	}
	a.logger.Info().
		Str("urgency", a.opts.Urgency.String()).
		Int("percentile", res.Percentile).
		Int("samples", res.SampleCount).
		Uint64("unit_price", res.UnitPrice).
		Msg("priced from recent fees")
	plan.Budget.UnitPrice = res.UnitPrice
	return nil
}

// submit sends one signed transaction and waits for it. ErrBlockhashExpired
// means it can no longer land and may be re-signed. Busy responses are
// resent at most MaxAttempts sends in total.
func (a *Assembler) submit(ctx context.Context, s *signed) (uint64, error) {
	sig := s.tx.Signatures[0]
	started := time.Now()

	for sends := 1; ; sends++ {
		metrics.SubmitAttempts.Inc()
		_, err := a.client.SendTransactionWithOpts(ctx, s.tx, rpc.TransactionOpts{
			SkipPreflight:       false,
			PreflightCommitment: a.opts.Commitment,
		})
		if err == nil {
			break
		}
		switch classifySend(err) {
		case sendBlockhashExpired:
			return 0, fmt.Errorf("%w: %v", ErrBlockhashExpired, err)
		case sendPreflight:
			return 0, common.Program("send", programErrorCode(nil, []string{err.Error()}), nil, err)
		case sendBusy:
			if sends >= a.opts.MaxAttempts {
				return 0, common.Network("send", fmt.Errorf("%w after %d sends: %v", ErrNodeBusy, sends, err))
			}
			a.logger.Warn().Err(err).Str("signature", sig.String()).Int("send", sends).Msg("node busy, resending")
			if !a.sleep(ctx, a.opts.PollInterval) {
				return 0, common.Network("send", ctx.Err())
			}
			continue
		}
		return 0, common.Network("send", err)
	}
	a.logger.Info().Str("signature", sig.String()).Msg("transaction sent")

	slot, err := a.confirm(ctx, sig)
	if err == nil {
		metrics.ConfirmDuration.Observe(time.Since(started).Seconds())
		return slot, nil
	}
	if !errors.Is(err, errConfirmDeadline) {
		return 0, err
	}
	return a.afterDeadline(ctx, sig, s.lastValid)
}

func (a *Assembler) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (a *Assembler) reached(status rpc.ConfirmationStatusType) bool {
	switch a.opts.Commitment {
	case rpc.CommitmentFinalized:
		return status == rpc.ConfirmationStatusFinalized
	case rpc.CommitmentProcessed:
		return status != ""
	default:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	}
}

// status returns the signature's status, nil when the cluster has not seen it.
func (a *Assembler) status(ctx context.Context, sig solana.Signature) (*rpc.SignatureStatusesResult, error) {
	res, err := a.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return nil, err
	}
	if res == nil || len(res.Value) == 0 {
		return nil, nil
	}
	return res.Value[0], nil
}

// landed turns a known status into a result: a slot, a program error, or not yet.
func (a *Assembler) landed(sig solana.Signature, st *rpc.SignatureStatusesResult) (uint64, bool, error) {
	if st == nil {
		return 0, false, nil
	}
	if st.Err != nil {
		e := common.Program("confirm", programErrorCode(st.Err, nil), nil, errors.New(describeTxErr(st.Err)))
		var ce *common.Error
		if errors.As(e, &ce) {
			ce.Signature = sig.String()
		}
		return 0, true, e
	}
	if a.reached(st.ConfirmationStatus) {
		return st.Slot, true, nil
	}
	return 0, false, nil
}

func (a *Assembler) confirm(ctx context.Context, sig solana.Signature) (uint64, error) {
	deadline := time.Now().Add(a.opts.ConfirmTimeout)
	for time.Now().Before(deadline) {
		st, err := a.status(ctx, sig)
		if err != nil {
			a.logger.Warn().Err(err).Str("signature", sig.String()).Msg("status poll failed")
		} else if slot, done, err := a.landed(sig, st); done {
			return slot, err
		}
		if !a.sleep(ctx, a.opts.PollInterval) {
			return 0, common.ConfirmationTimeout("confirm", sig.String(), ctx.Err())
		}
	}
	return 0, errConfirmDeadline
}

// afterDeadline decides the fate of an unconfirmed signature: one last status
// check, then the block height tells whether it can still land.
func (a *Assembler) afterDeadline(ctx context.Context, sig solana.Signature, lastValid uint64) (uint64, error) {
	st, err := a.status(ctx, sig)
	if err != nil {
		return 0, common.ConfirmationTimeout("confirm", sig.String(), err)
	}
	if slot, done, err := a.landed(sig, st); done {
		return slot, err
	}
	if st != nil {
		return 0, common.ConfirmationTimeout("confirm", sig.String(), fmt.Errorf("seen at slot %d but not %s", st.Slot, a.opts.Commitment))
	}
	height, err := a.client.GetBlockHeight(ctx, a.opts.Commitment)
	if err != nil {
		return 0, common.ConfirmationTimeout("confirm", sig.String(), err)
	}
	if height <= lastValid {
		return 0, common.ConfirmationTimeout("confirm", sig.String(),
			fmt.Errorf("not seen after %s, block height %d <= last valid %d", a.opts.ConfirmTimeout, height, lastValid))
	}
	return 0, fmt.Errorf("%w: height %d > last valid %d", ErrBlockhashExpired, height, lastValid)
}
