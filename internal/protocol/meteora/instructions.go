package meteora

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/services/builder"
)

const (
	ixInitializePosition = "initialize_position"
	ixAddLiquidity       = "add_liquidity"
	ixRemoveAllLiquidity = "remove_all_liquidity"
	ixClosePositionEmpty = "close_position_if_empty"
	ixSwap               = "swap"
	ixInitializeBinArray = "initialize_bin_array"
)

// optionalAccount stands in for an absent optional account.
var optionalAccount = common.DLMMProgramID

func initializeBinArray(lbPair, funder solana.PublicKey, index int64) (*builder.Instruction, error) {
	binArray, err := BinArrayAddress(lbPair, index)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixInitializeBinArray).I64(index).Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    ixInitializeBinArray,
		Program: common.DLMMProgramID,
		Metas: solana.AccountMetaSlice{
			builder.ReadOnly(lbPair),
			builder.Writable(binArray),
			builder.Signer(funder, true),
			builder.ReadOnly(common.SystemProgramID),
		},
		Payload: data,
		Creates: binArray,
	}, nil
}

func initializePosition(c *protocol.BuildContext) (*builder.Instruction, error) {
	position := c.NewPosition.Address
	if position.IsZero() {
		return nil, common.Validation(ixInitializePosition, fmt.Errorf("%w: position account", protocol.ErrMissingContext))
	}
	eventAuthority, err := EventAuthority()
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixInitializePosition).
		I32(c.Range.Lower).
		I32(int32(c.Range.Bins())).
		Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    ixInitializePosition,
		Program: common.DLMMProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Signer(c.Owner, true),
			builder.Signer(position, true),
			builder.ReadOnly(c.Pool.Address),
			builder.Signer(c.Owner, false),
			builder.ReadOnly(common.SystemProgramID),
			builder.ReadOnly(common.RentSysvarID),
			builder.ReadOnly(eventAuthority),
			builder.ReadOnly(common.DLMMProgramID),
		},
		Payload: data,
		Creates: position,
	}, nil
}

// liquidityMetas is the account list shared by add_liquidity and remove_all_liquidity.
func liquidityMetas(c *protocol.BuildContext, position solana.PublicKey, r domain.RangeSpec) (solana.AccountMetaSlice, error) {
	pool := c.Pool
	lo, hi := BinArrayIndexes(r.Lower, r.Upper)
	lower, err := BinArrayAddress(pool.Address, lo)
	if err != nil {
		return nil, err
	}
	upper, err := BinArrayAddress(pool.Address, hi)
	if err != nil {
		return nil, err
	}
	ataX, ataY, err := protocol.UserTokenAccounts(c.Owner, pool)
	if err != nil {
		return nil, err
	}
	eventAuthority, err := EventAuthority()
	if err != nil {
		return nil, err
	}
	return solana.AccountMetaSlice{
		builder.Writable(position),
		builder.Writable(pool.Address),
		builder.ReadOnly(optionalAccount),
		builder.Writable(ataX),
		builder.Writable(ataY),
		builder.Writable(pool.Token0.Vault),
		builder.Writable(pool.Token1.Vault),
		builder.ReadOnly(pool.Token0.Mint),
		builder.ReadOnly(pool.Token1.Mint),
		builder.Writable(lower),
		builder.Writable(upper),
		builder.Signer(c.Owner, false),
		builder.ReadOnly(protocol.TokenProgram(pool.Token0)),
		builder.ReadOnly(protocol.TokenProgram(pool.Token1)),
		builder.ReadOnly(eventAuthority),
		builder.ReadOnly(common.DLMMProgramID),
	}, nil
}

func addLiquidity(c *protocol.BuildContext, position solana.PublicKey, r domain.RangeSpec) (*builder.Instruction, error) {
	if len(c.Delta.Bins) == 0 {
		return nil, common.Validation(ixAddLiquidity, fmt.Errorf("%w: bin distribution", protocol.ErrMissingContext))
	}
	metas, err := liquidityMetas(c, position, r)
	if err != nil {
		return nil, err
	}
	payload := builder.NewAnchorPayload(ixAddLiquidity).
		U64(c.Delta.Amount0).
		U64(c.Delta.Amount1).
		VecLen(len(c.Delta.Bins))
	for _, b := range c.Delta.Bins {
		payload.I32(b.BinID).U16(b.Share0).U16(b.Share1)
	}
	data, err := payload.Bytes()
	if err != nil {
		return nil, common.Allocation(ixAddLiquidity, err)
	}
	return &builder.Instruction{
		Name:    ixAddLiquidity,
		Program: common.DLMMProgramID,
		Metas:   metas,
		Payload: data,
	}, nil
}

// removeAllLiquidity withdraws every bin and claims nothing else; the program
// takes no minimum outputs for it.
func removeAllLiquidity(c *protocol.BuildContext) (*builder.Instruction, error) {
	pos := c.Position
	metas, err := liquidityMetas(c, pos.Identity.Address, pos.Range)
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixRemoveAllLiquidity).Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    ixRemoveAllLiquidity,
		Program: common.DLMMProgramID,
		Metas:   metas,
		Payload: data,
	}, nil
}

func closePositionIfEmpty(c *protocol.BuildContext) (*builder.Instruction, error) {
	eventAuthority, err := EventAuthority()
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixClosePositionEmpty).Bytes()
	if err != nil {
		return nil, err
	}
	return &builder.Instruction{
		Name:    ixClosePositionEmpty,
		Program: common.DLMMProgramID,
		Metas: solana.AccountMetaSlice{
			builder.Writable(c.Position.Identity.Address),
			builder.Signer(c.Owner, false),
			builder.Writable(c.Owner),
			builder.ReadOnly(eventAuthority),
			builder.ReadOnly(common.DLMMProgramID),
		},
		Payload: data,
	}, nil
}

// swap trades X for Y when AToB. The price limit does not apply to DLMM; the
// program stops at min_amount_out or when the passed bin arrays run dry.
func swap(c *protocol.BuildContext) (*builder.Instruction, error) {
	pool, req := c.Pool, c.Swap
	in, out := protocol.SwapSides(pool, req.AToB)
	ataIn, err := builder.GetATAAddressForMint(c.Owner, in.Mint, protocol.TokenProgram(in))
	if err != nil {
		return nil, err
	}
	ataOut, err := builder.GetATAAddressForMint(c.Owner, out.Mint, protocol.TokenProgram(out))
	if err != nil {
		return nil, err
	}
	eventAuthority, err := EventAuthority()
	if err != nil {
		return nil, err
	}
	data, err := builder.NewAnchorPayload(ixSwap).
		U64(req.AmountIn).
		U64(req.MinAmountOut).
		Bytes()
	if err != nil {
		return nil, common.Validation(ixSwap, err)
	}

	metas := solana.AccountMetaSlice{
		builder.Writable(pool.Address),
		builder.ReadOnly(optionalAccount),
		builder.Writable(pool.Token0.Vault),
		builder.Writable(pool.Token1.Vault),
		builder.Writable(ataIn),
		builder.Writable(ataOut),
		builder.ReadOnly(pool.Token0.Mint),
		builder.ReadOnly(pool.Token1.Mint),
		builder.Writable(pool.Oracle),
		builder.ReadOnly(optionalAccount),
		builder.Signer(c.Owner, false),
		builder.ReadOnly(protocol.TokenProgram(pool.Token0)),
		builder.ReadOnly(protocol.TokenProgram(pool.Token1)),
		builder.ReadOnly(eventAuthority),
		builder.ReadOnly(common.DLMMProgramID),
	}
	for _, idx := range swapBinArrayIndexes(pool.ActiveBinID) {
		arr, err := BinArrayAddress(pool.Address, idx)
		if err != nil {
			return nil, err
		}
		metas = append(metas, builder.Writable(arr))
	}

	return &builder.Instruction{
		Name:    ixSwap,
		Program: common.DLMMProgramID,
		Metas:   metas,
		Payload: data,
	}, nil
}
