package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/lp-engine/internal/adapters/blockchain"
	"github.com/hxuan190/lp-engine/internal/adapters/persistence"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/metrics"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services"
	"github.com/hxuan190/lp-engine/internal/services/builder"
	"github.com/hxuan190/lp-engine/internal/services/transaction"
)

const DISPATCH_SERVICE = "dispatch-runner"

var (
	ErrPoolMismatch        = errors.New("position belongs to a different pool")
	ErrPositionProgram     = errors.New("position account not owned by protocol program")
	ErrMintProgram         = errors.New("mint not owned by a token program")
	ErrMissingMint         = errors.New("mint account not found")
	ErrMissingPrerequisite = errors.New("required account does not exist")
	ErrNothingToUnwrap     = errors.New("no wrapped SOL account to close")
)

// Fetcher is the account reader the runner needs.
type Fetcher interface {
	Accounts(ctx context.Context, addresses ...solana.PublicKey) ([]*blockchain.Account, error)
	Account(ctx context.Context, address solana.PublicKey) (*blockchain.Account, error)
	Existing(ctx context.Context, addresses ...solana.PublicKey) (map[solana.PublicKey]bool, error)
	TokenAccountsByOwner(ctx context.Context, owner, mint solana.PublicKey) ([]blockchain.TokenAccount, error)
}

type Executor interface {
	Execute(ctx context.Context, plan *transaction.Plan) (*domain.SubmitResult, error)
}

type SnapshotStore interface {
	Load(address solana.PublicKey) (*persistence.PoolSnapshot, bool, error)
}

type Runner struct {
	protocols Registry
	fetcher   Fetcher
	executor  Executor
	owner     solana.PublicKey
	snapshots SnapshotStore
	newSigner func() (solana.PrivateKey, error)
	logger    *services.ServiceLogger
}

type Option func(*Runner)

// WithSnapshots takes mint token programs from cached pool snapshots.
func WithSnapshots(s SnapshotStore) Option {
	return func(r *Runner) {
		r.snapshots = s
	}
}

// WithSignerSource replaces the generator of fresh position keypairs.
func WithSignerSource(f func() (solana.PrivateKey, error)) Option {
	return func(r *Runner) {
		r.newSigner = f
	}
}

func NewRunner(protocols Registry, fetcher Fetcher, executor Executor, owner solana.PublicKey, opts ...Option) *Runner {
	r := &Runner{
		protocols: protocols,
		fetcher:   fetcher,
		executor:  executor,
		owner:     owner,
		newSigner: solana.NewRandomPrivateKey,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = services.NewServiceLogger(r).Tag("owner", owner.String())
	return r
}

func (r *Runner) ID() string {
	return DISPATCH_SERVICE
}

// Run plans and executes one invocation. A wrap-only request with nothing to
// wrap or unwrap returns a nil result and submits nothing.
func (r *Runner) Run(ctx context.Context, req *domain.Request) (*domain.SubmitResult, error) {
	started := time.Now()
	mode := Select(req)

	res, err := r.run(ctx, req)

	status := "ok"
	if err != nil {
		status = common.KindOf(err).String()
	}
	metrics.Invocations.WithLabelValues(req.Protocol.String(), mode.String(), status).Inc()
	metrics.InvocationDuration.WithLabelValues(req.Protocol.String(), mode.String()).Observe(time.Since(started).Seconds())
	return res, err
}

func (r *Runner) run(ctx context.Context, req *domain.Request) (*domain.SubmitResult, error) {
	plan, err := r.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	if plan.IsEmpty() {
		r.logger.Info().Msg("nothing to submit")
		return nil, nil
	}
	return r.executor.Execute(ctx, plan)
}

// Plan selects the mode, reads the accounts it needs and returns the grouped
// instructions, with creates only for accounts that do not exist yet.
func (r *Runner) Plan(ctx context.Context, req *domain.Request) (*transaction.Plan, error) {
	mode := Select(req)
	if err := Validate(req, mode); err != nil {
		return nil, err
	}
	logger := r.logger.Tag("mode", mode.String())

	plan := &transaction.Plan{Budget: req.Budget}
	var (
		prereqs []protocol.Prerequisite
		err     error
	)
	if mode != domain.ModeWrapOnly {
		p, err := r.protocols.Get(req.Protocol)
		if err != nil {
			return nil, err
		}
		logger = logger.Tag("dex", p.Kind().String())

		switch mode {
		case domain.ModeSwap:
			prereqs, err = r.planSwap(ctx, p, req.Swap, plan)
		case domain.ModeRemove:
			prereqs, err = r.planRemove(ctx, p, req.Remove, plan)
		case domain.ModeOpen:
			prereqs, err = r.planOpen(ctx, p, req.Open, plan)
		}
		if err != nil {
			return nil, err
		}
	}

	native, err := r.planNative(req, plan)
	if err != nil {
		return nil, err
	}
	prereqs = append(prereqs, native...)

	wsol, err := builder.WrappedNativeAccount(r.owner)
	if err != nil {
		return nil, err
	}
	var extra []solana.PublicKey
	if req.Unwrap.Enabled {
		extra = append(extra, wsol)
	}
	exists, err := r.addMissing(ctx, plan, prereqs, extra...)
	if err != nil {
		return nil, err
	}
	if req.Unwrap.Enabled && !exists[wsol] && !plannedCreate(plan, wsol) {
		return nil, common.Validation("unwrap", ErrNothingToUnwrap)
	}

	logger.Debug().
		Int("creates", len(plan.Creates)).
		Int("wrap", len(plan.Wrap)).
		Int("action", len(plan.Action)).
		Int("unwrap", len(plan.Unwrap)).
		Msg("planned transaction")
	return plan, nil
}

func (r *Runner) planSwap(ctx context.Context, p protocol.PositionProtocol, req *domain.SwapRequest, plan *transaction.Plan) ([]protocol.Prerequisite, error) {
	pool, err := r.loadPool(ctx, p, req.Pool)
	if err != nil {
		return nil, err
	}
	bc := &protocol.BuildContext{Owner: r.owner, Pool: pool, Swap: req}
	if plan.Action, err = p.Build(protocol.ActionSwap, bc); err != nil {
		return nil, err
	}
	return p.Prerequisites(protocol.ActionSwap, bc)
}

func (r *Runner) planOpen(ctx context.Context, p protocol.PositionProtocol, req *domain.OpenRequest, plan *transaction.Plan) ([]protocol.Prerequisite, error) {
	pool, err := r.loadPool(ctx, p, req.Pool)
	if err != nil {
		return nil, err
	}
	rng, err := p.ResolveRange(pool, req.Range)
	if err != nil {
		return nil, err
	}
	delta, err := p.Allocate(pool, rng, req.Bounds)
	if err != nil {
		return nil, err
	}

	signer, err := r.newSigner()
	if err != nil {
		return nil, fmt.Errorf("generate position keypair: %w", err)
	}
	identity, err := p.NewPositionIdentity(signer.PublicKey())
	if err != nil {
		return nil, err
	}

	bc := &protocol.BuildContext{
		Owner:       r.owner,
		Pool:        pool,
		NewPosition: identity,
		Range:       rng,
		Delta:       delta,
	}
	prereqs, err := p.Prerequisites(protocol.ActionOpen, bc)
	if err != nil {
		return nil, err
	}
	if plan.Action, err = p.Build(protocol.ActionOpen, bc); err != nil {
		return nil, err
	}
	plan.Signers = append(plan.Signers, signer)
	plan.Position = &identity

	r.logger.Info().
		Str("pool", pool.Address.String()).
		Int32("lower", rng.Lower).
		Int32("upper", rng.Upper).
		Str("liquidity", delta.Liquidity.Dec()).
		Uint64("amount0", delta.Amount0).
		Uint64("amount1", delta.Amount1).
		Str("position", identity.Address.String()).
		Msg("opening position")
	return prereqs, nil
}

func (r *Runner) planRemove(ctx context.Context, p protocol.PositionProtocol, req *domain.RemoveRequest, plan *transaction.Plan) ([]protocol.Prerequisite, error) {
	positionAddress, err := p.PositionAccount(req.Position)
	if err != nil {
		return nil, err
	}

	var (
		positionAccount *blockchain.Account
		pool            *domain.PoolState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		acc, err := r.fetcher.Account(gctx, positionAddress)
		positionAccount = acc
		return err
	})
	if !req.Pool.IsZero() {
		g.Go(func() error {
			pl, err := r.loadPool(gctx, p, req.Pool)
			pool = pl
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !positionAccount.Owner.Equals(p.ProgramID()) {
		return nil, common.Validation("position", fmt.Errorf("%w: %s owned by %s", ErrPositionProgram, positionAddress, positionAccount.Owner))
	}
	pos, err := p.DecodePosition(req.Position, positionAccount.Data)
	if err != nil {
		return nil, err
	}
	if pool == nil {
		if pool, err = r.loadPool(ctx, p, pos.Pool); err != nil {
			return nil, err
		}
	} else if !pool.Address.Equals(pos.Pool) {
		return nil, common.Validation("position", fmt.Errorf("%w: %s is in %s, not %s", ErrPoolMismatch, positionAddress, pos.Pool, pool.Address))
	}
	if err := r.checkOwnership(ctx, pos); err != nil {
		return nil, err
	}

	bc := &protocol.BuildContext{
		Owner:    r.owner,
		Pool:     pool,
		Position: pos,
		MinOut0:  req.MinOut0,
		MinOut1:  req.MinOut1,
	}
	var prereqs []protocol.Prerequisite
	if !pos.IsEmpty() {
		if prereqs, err = p.Prerequisites(protocol.ActionDecrease, bc); err != nil {
			return nil, err
		}
	}
	if req.Close {
		closing, err := p.Prerequisites(protocol.ActionClose, bc)
		if err != nil {
			return nil, err
		}
		prereqs = append(prereqs, closing...)
	}
	if plan.Action, err = protocol.BuildRemove(p, bc, req.Close); err != nil {
		return nil, err
	}

	if p.Kind().IsBinBased() && !pos.IsEmpty() && (req.MinOut0 > 0 || req.MinOut1 > 0) {
		r.logger.Warn().
			Uint64("minOut0", req.MinOut0).
			Uint64("minOut1", req.MinOut1).
			Msg("remove-all-liquidity takes no minimum amounts; --min-out0/--min-out1 are not enforced")
	}
	r.logger.Info().
		Str("position", pos.Identity.Address.String()).
		Str("liquidity", liquidityString(pos)).
		Bool("close", req.Close).
		Msg("removing position")
	return prereqs, nil
}

func liquidityString(pos *domain.PositionState) string {
	if pos.Liquidity == nil {
		return "0"
	}
	return pos.Liquidity.Dec()
}

// checkOwnership makes sure the signer controls the position. NFT positions
// also get their holding token account and its program filled in.
func (r *Runner) checkOwnership(ctx context.Context, pos *domain.PositionState) error {
	if !pos.Identity.HasMint() {
		if !pos.Owner.Equals(r.owner) {
			return common.Validation("position", fmt.Errorf("%w: owner is %s", protocol.ErrPositionOwner, pos.Owner))
		}
		return nil
	}
	holder, err := r.findHolder(ctx, pos.Identity.Mint)
	if err != nil {
		return err
	}
	pos.TokenAccount = holder.Address
	pos.TokenProgram = holder.Program
	return nil
}

// findHolder looks at the associated accounts under both token programs
// first and falls back to scanning the owner's accounts for the mint.
func (r *Runner) findHolder(ctx context.Context, mint solana.PublicKey) (blockchain.TokenAccount, error) {
	programs := []solana.PublicKey{common.TokenProgramID, common.Token2022ID}
	candidates := make([]solana.PublicKey, 0, len(programs))
	for _, program := range programs {
		ata, err := builder.GetATAAddressForMint(r.owner, mint, program)
		if err != nil {
			return blockchain.TokenAccount{}, err
		}
		candidates = append(candidates, ata)
	}
	accs, err := r.fetcher.Accounts(ctx, candidates...)
	if err != nil {
		return blockchain.TokenAccount{}, err
	}
	for i, acc := range accs {
		if acc == nil {
			continue
		}
		ta, err := blockchain.DecodeTokenAccount(candidates[i], acc.Owner, acc.Data)
		if err == nil && r.holds(ta, mint) {
			return ta, nil
		}
	}

	all, err := r.fetcher.TokenAccountsByOwner(ctx, r.owner, mint)
	if err != nil {
		return blockchain.TokenAccount{}, err
	}
	for _, ta := range all {
		if r.holds(ta, mint) {
			return ta, nil
		}
	}
	return blockchain.TokenAccount{}, common.Validation("position", fmt.Errorf("%w: no token account holds %s", protocol.ErrPositionOwner, mint))
}

func (r *Runner) holds(ta blockchain.TokenAccount, mint solana.PublicKey) bool {
	return ta.Owner.Equals(r.owner) && ta.Mint.Equals(mint) && ta.Amount > 0
}

func (r *Runner) planNative(req *domain.Request, plan *transaction.Plan) ([]protocol.Prerequisite, error) {
	if !req.HasNativeOps() {
		return nil, nil
	}
	var out []protocol.Prerequisite
	if req.Wrap.Lamports > 0 {
		create, err := builder.CreateATAInstruction(r.owner, r.owner, common.NativeMint, common.TokenProgramID)
		if err != nil {
			return nil, err
		}
		out = append(out, protocol.Prerequisite{Address: create.Creates, Create: create})
		if plan.Wrap, err = builder.WrapNative(r.owner, req.Wrap.Lamports); err != nil {
			return nil, err
		}
	}
	if req.Unwrap.Enabled {
		unwrap, err := builder.UnwrapNative(r.owner)
		if err != nil {
			return nil, err
		}
		plan.Unwrap = []solana.Instruction{unwrap}
	}
	return out, nil
}

// addMissing checks every prerequisite (and extra) in one read and plans a
// create for each missing prerequisite.
func (r *Runner) addMissing(ctx context.Context, plan *transaction.Plan, prereqs []protocol.Prerequisite, extra ...solana.PublicKey) (map[solana.PublicKey]bool, error) {
	seen := make(map[solana.PublicKey]struct{}, len(prereqs)+len(extra))
	addresses := make([]solana.PublicKey, 0, len(prereqs)+len(extra))
	add := func(pk solana.PublicKey) {
		if _, ok := seen[pk]; ok {
			return
		}
		seen[pk] = struct{}{}
		addresses = append(addresses, pk)
	}
	for _, pr := range prereqs {
		add(pr.Address)
	}
	for _, pk := range extra {
		add(pk)
	}
	if len(addresses) == 0 {
		return map[solana.PublicKey]bool{}, nil
	}

	exists, err := r.fetcher.Existing(ctx, addresses...)
	if err != nil {
		return nil, err
	}
	for _, pr := range prereqs {
		if exists[pr.Address] {
			continue
		}
		if pr.Create == nil {
			return nil, common.Validation("prerequisites", fmt.Errorf("%w: %s", ErrMissingPrerequisite, pr.Address))
		}
		plan.AddCreate(pr.Create)
	}
	return exists, nil
}

func plannedCreate(plan *transaction.Plan, account solana.PublicKey) bool {
	for _, c := range plan.Creates {
		if c.Creates.Equals(account) {
			return true
		}
	}
	return false
}
