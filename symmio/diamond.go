// Package symmio binds the protocol diamond: its write calls, its views and
// the flows that gate writes on oracle attestations.
package symmio

import (
	"context"
	"fmt"
	"math/big"

	"github.com/banky/go-symmio/abis"
	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/erc20"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Config for initializing a Diamond
type Config struct {
	Address common.Address
	// ABI defaults to the embedded symmio.json
	ABI     *abi.ABI
	Backend chain.Backend
	// Submitter may be nil for a read-only binding
	Submitter *chain.Submitter
	// Collateral is the token approved before depositAndAllocate
	Collateral common.Address
	Logger     *zerolog.Logger
}

type Diamond struct {
	contract   *chain.Contract
	backend    chain.Backend
	submitter  *chain.Submitter
	collateral common.Address
	logger     zerolog.Logger
}

func New(cfg Config) (*Diamond, error) {
	if cfg.Address == constants.ZERO_ADDRESS {
		return nil, fmt.Errorf("diamond address is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	parsed := cfg.ABI
	if parsed == nil {
		embedded := abis.MustLoad(abis.SYMMIO)
		parsed = &embedded
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("contract", "diamond").Logger()
	}

	return &Diamond{
		contract:   chain.NewContract(cfg.Address, parsed, cfg.Backend, cfg.Submitter),
		backend:    cfg.Backend,
		submitter:  cfg.Submitter,
		collateral: cfg.Collateral,
		logger:     logger,
	}, nil
}

func (d *Diamond) Address() common.Address {
	return d.contract.Address
}

// Sender is the address the submitter signs with, if the binding can
// write.
func (d *Diamond) Sender() (common.Address, bool) {
	if d.submitter == nil {
		return common.Address{}, false
	}
	return d.submitter.From(), true
}

func (d *Diamond) ABI() *abi.ABI {
	return d.contract.ABI
}

// Pack encodes call against the diamond ABI without sending it.
func (d *Diamond) Pack(call chain.Call) ([]byte, error) {
	return d.contract.PackCall(call)
}

// Exec submits call to the diamond.
func (d *Diamond) Exec(ctx context.Context, call chain.Call, opts ...chain.SendOption) (*chain.Result, error) {
	d.logger.Debug().
		Str("method", call.Method).
		Uint64("gas_limit", call.GasLimit).
		Msg("submitting diamond call")
	return d.contract.Exec(ctx, call, opts...)
}

/*//////////////////////////////////////////////////////////////
                         PARTY A WRITES
//////////////////////////////////////////////////////////////*/

func (d *Diamond) SendQuote(ctx context.Context, req QuoteRequest, opts ...chain.SendOption) (*chain.Result, error) {
	return d.Exec(ctx, SendQuoteCall(req), opts...)
}

func (d *Diamond) RequestToClosePosition(
	ctx context.Context,
	req CloseRequest,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, RequestToClosePositionCall(req), opts...)
}

func (d *Diamond) RequestToCancelQuote(ctx context.Context, quoteID *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	return d.Exec(ctx, RequestToCancelQuoteCall(quoteID), opts...)
}

func (d *Diamond) RequestToCancelCloseRequest(
	ctx context.Context,
	quoteID *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, RequestToCancelCloseRequestCall(quoteID), opts...)
}

func (d *Diamond) ExpireQuote(ctx context.Context, quoteIDs []*big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	return d.Exec(ctx, ExpireQuoteCall(quoteIDs), opts...)
}

/*//////////////////////////////////////////////////////////////
                         PARTY B WRITES
//////////////////////////////////////////////////////////////*/

func (d *Diamond) LockQuote(
	ctx context.Context,
	quoteID *big.Int,
	sig types.SingleUpnlSig,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, LockQuoteCall(quoteID, sig), opts...)
}

func (d *Diamond) UnlockQuote(ctx context.Context, quoteID *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	return d.Exec(ctx, UnlockQuoteCall(quoteID), opts...)
}

func (d *Diamond) LockAndOpenQuote(
	ctx context.Context,
	quoteID *big.Int,
	filledAmount *big.Int,
	openedPrice *big.Int,
	upnlSig types.SingleUpnlSig,
	pairSig types.PairUpnlAndPriceSig,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, LockAndOpenQuoteCall(quoteID, filledAmount, openedPrice, upnlSig, pairSig), opts...)
}

func (d *Diamond) AcceptCancelCloseRequest(
	ctx context.Context,
	quoteID *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, AcceptCancelCloseRequestCall(quoteID), opts...)
}

func (d *Diamond) EmergencyClosePosition(
	ctx context.Context,
	quoteID *big.Int,
	sig types.PairUpnlAndPriceSig,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, EmergencyClosePositionCall(quoteID, sig), opts...)
}

func (d *Diamond) ChargeFundingRate(
	ctx context.Context,
	partyA common.Address,
	quoteIDs []*big.Int,
	rates []*big.Int,
	sig types.SingleUpnlSig,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	if len(quoteIDs) != len(rates) {
		return nil, fmt.Errorf("got %d quote ids but %d rates", len(quoteIDs), len(rates))
	}
	return d.Exec(ctx, ChargeFundingRateCall(partyA, quoteIDs, rates, sig), opts...)
}

/*//////////////////////////////////////////////////////////////
                       FORCE ACTIONS / SETTLE
//////////////////////////////////////////////////////////////*/

func (d *Diamond) ForceClosePosition(
	ctx context.Context,
	quoteID *big.Int,
	sig types.HighLowPriceSig,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, ForceClosePositionCall(quoteID, sig), opts...)
}

func (d *Diamond) SettleUpnl(
	ctx context.Context,
	sig types.SettlementSig,
	updatedPrices []*big.Int,
	partyA common.Address,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, SettleUpnlCall(sig, updatedPrices, partyA), opts...)
}

func (d *Diamond) SettleAndForceClosePosition(
	ctx context.Context,
	quoteID *big.Int,
	priceSig types.HighLowPriceSig,
	settleSig types.SettlementSig,
	updatedPrices []*big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, SettleAndForceClosePositionCall(quoteID, priceSig, settleSig, updatedPrices), opts...)
}

/*//////////////////////////////////////////////////////////////
                          ACCOUNT / BRIDGE
//////////////////////////////////////////////////////////////*/

// DepositAndAllocate approves the collateral for the diamond, waits for
// the approval to be mined and then deposits and allocates amount.
func (d *Diamond) DepositAndAllocate(ctx context.Context, amount *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	if d.collateral == constants.ZERO_ADDRESS {
		return nil, fmt.Errorf("collateral address is required to deposit")
	}

	token := erc20.New(d.collateral, nil, d.backend, d.submitter)
	approval, err := token.Approve(ctx, constants.GAS_ERC20_APPROVE, d.Address(), amount)
	if err != nil {
		return nil, fmt.Errorf("failed to approve collateral: %w", err)
	}
	d.logger.Info().
		Str("tx_hash", approval.Hash.Hex()).
		Str("amount", amount.String()).
		Msg("collateral approved")

	return d.Exec(ctx, DepositAndAllocateCall(amount), opts...)
}

func (d *Diamond) DepositToReserveVault(
	ctx context.Context,
	amount *big.Int,
	partyB common.Address,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, DepositToReserveVaultCall(amount, partyB), opts...)
}

func (d *Diamond) WithdrawFromReserveVault(ctx context.Context, amount *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	return d.Exec(ctx, WithdrawFromReserveVaultCall(amount), opts...)
}

func (d *Diamond) TransferAllocation(
	ctx context.Context,
	amount *big.Int,
	origin common.Address,
	recipient common.Address,
	sig types.SingleUpnlSig,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, TransferAllocationCall(amount, origin, recipient, sig), opts...)
}

func (d *Diamond) WithdrawReceivedBridgeValues(
	ctx context.Context,
	transactionIDs []*big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return d.Exec(ctx, WithdrawReceivedBridgeValuesCall(transactionIDs), opts...)
}
