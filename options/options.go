// Package options binds the options deployment of the protocol: collateral
// movement between a user, its counterparties and the reserve, plus the
// state views the instant layer exposes.
package options

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/banky/go-symmio/abis"
	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/erc20"
	"github.com/banky/go-symmio/internal/utils"
	"github.com/banky/go-symmio/muon"
	"github.com/banky/go-symmio/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Config for initializing an options Client
type Config struct {
	Address common.Address
	// ABI defaults to the embedded options.json
	ABI     *abi.ABI
	Backend chain.Backend
	// Submitter may be nil for a read-only client
	Submitter *chain.Submitter
	// Oracle is only needed by Deallocate
	Oracle  *muon.Client
	ChainID *big.Int
	Logger  *zerolog.Logger
}

type Client struct {
	contract  *chain.Contract
	backend   chain.Backend
	submitter *chain.Submitter
	oracle    *muon.Client
	chainID   *big.Int
	logger    zerolog.Logger
}

func New(cfg Config) (*Client, error) {
	if cfg.Address == constants.ZERO_ADDRESS {
		return nil, fmt.Errorf("options diamond address is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}

	parsed := cfg.ABI
	if parsed == nil {
		embedded := abis.MustLoad(abis.OPTIONS)
		parsed = &embedded
	}

	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(constants.DEFAULT_CHAIN_ID)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("contract", "options").Logger()
	}

	return &Client{
		contract:  chain.NewContract(cfg.Address, parsed, cfg.Backend, cfg.Submitter),
		backend:   cfg.Backend,
		submitter: cfg.Submitter,
		oracle:    cfg.Oracle,
		chainID:   chainID,
		logger:    logger,
	}, nil
}

func (c *Client) Address() common.Address {
	return c.contract.Address
}

/*//////////////////////////////////////////////////////////////
                            DEPOSITS
//////////////////////////////////////////////////////////////*/

// Deposit approves collateral for the options diamond, waits for the
// approval and deposits amount for the signer.
func (c *Client) Deposit(
	ctx context.Context,
	collateral common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	if err := c.approve(ctx, collateral, amount); err != nil {
		return nil, err
	}
	call := chain.NewCall(constants.GAS_OPTIONS_DEPOSIT, "deposit", collateral, amount)
	return c.contract.Exec(ctx, call, opts...)
}

// DepositFor is Deposit credited to user instead of the signer.
func (c *Client) DepositFor(
	ctx context.Context,
	collateral common.Address,
	user common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	if err := c.approve(ctx, collateral, amount); err != nil {
		return nil, err
	}
	call := chain.NewCall(constants.GAS_OPTIONS_DEPOSIT_FOR, "depositFor", collateral, user, amount)
	return c.contract.Exec(ctx, call, opts...)
}

func (c *Client) approve(ctx context.Context, collateral common.Address, amount *big.Int) error {
	if collateral == constants.ZERO_ADDRESS {
		return fmt.Errorf("collateral address is required to deposit")
	}
	token := erc20.New(collateral, nil, c.backend, c.submitter)
	res, err := token.Approve(ctx, constants.GAS_ERC20_APPROVE, c.Address(), amount)
	if err != nil {
		return fmt.Errorf("failed to approve collateral: %w", err)
	}
	c.logger.Info().
		Str("tx_hash", res.Hash.Hex()).
		Str("amount", amount.String()).
		Msg("collateral approved")
	return nil
}

/*//////////////////////////////////////////////////////////////
                           ALLOCATION
//////////////////////////////////////////////////////////////*/

func (c *Client) Allocate(
	ctx context.Context,
	collateral common.Address,
	counterParty common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	call := chain.NewCall(constants.GAS_OPTIONS_ALLOCATE, "allocate", collateral, counterParty, amount)
	return c.contract.Exec(ctx, call, opts...)
}

type DeallocateParams struct {
	Collateral   common.Address
	CounterParty common.Address
	Amount       *big.Int
	// IsPartyB deallocates as the counterparty's partyB, which makes the
	// counterparty the partyA of the attestation
	IsPartyB bool
	// Method overrides the oracle method, upnl_a by default
	Method string
}

// PrepareDeallocate fetches the uPnL attestation for the relationship and
// builds the deallocate call.
func (c *Client) PrepareDeallocate(ctx context.Context, p DeallocateParams) (chain.Call, error) {
	if c.oracle == nil {
		return chain.Call{}, fmt.Errorf("oracle client is required to deallocate")
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return chain.Call{}, fmt.Errorf("deallocate amount must be positive")
	}

	partyA := p.CounterParty
	if !p.IsPartyB {
		if c.submitter == nil {
			return chain.Call{}, fmt.Errorf("a signing submitter is required to deallocate")
		}
		partyA = c.submitter.From()
	}

	sig, err := c.oracle.OptionsUpnl(ctx, p.Method,
		muon.P("partyA", partyA.Hex()),
		muon.P("chainId", c.chainID),
		muon.P("symmio", c.Address().Hex()),
		muon.P("collateral", p.Collateral.Hex()),
	)
	if err != nil {
		return chain.Call{}, err
	}

	call := chain.NewCall(
		constants.GAS_OPTIONS_DEALLOCATE,
		"deallocate",
		p.Collateral,
		p.CounterParty,
		p.Amount,
		p.IsPartyB,
		sig,
	)
	call.Fingerprint = types.Fingerprint(&sig)

	c.logger.Debug().
		Str("party_a", partyA.Hex()).
		Str("party_upnl", sig.PartyUpnl.String()).
		Str("counter_party_upnl", sig.CounterPartyUpnl.String()).
		Msg("deallocate attestation")
	return call, nil
}

func (c *Client) Deallocate(ctx context.Context, p DeallocateParams, opts ...chain.SendOption) (*chain.Result, error) {
	call, err := c.PrepareDeallocate(ctx, p)
	if err != nil {
		return nil, err
	}
	return c.contract.Exec(ctx, call, opts...)
}

func (c *Client) AllocateToReserveBalance(
	ctx context.Context,
	collateral common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	call := chain.NewCall(constants.GAS_OPTIONS_DEFAULT, "allocateToReserveBalance", collateral, amount)
	return c.contract.Exec(ctx, call, opts...)
}

func (c *Client) SyncBalances(
	ctx context.Context,
	collateral common.Address,
	partyA common.Address,
	partyBs []common.Address,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	if len(partyBs) == 0 {
		return nil, fmt.Errorf("at least one partyB is required to sync balances")
	}
	call := chain.NewCall(constants.GAS_OPTIONS_SYNC_BALANCES, "syncBalances", collateral, partyA, partyBs)
	return c.contract.Exec(ctx, call, opts...)
}

/*//////////////////////////////////////////////////////////////
                        WITHDRAW / INTENTS
//////////////////////////////////////////////////////////////*/

type ExpressWithdrawParams struct {
	Collateral common.Address
	Amount     *big.Int
	To         common.Address
	Provider   common.Address
	UserData   []byte
}

func (c *Client) InitiateExpressWithdraw(
	ctx context.Context,
	p ExpressWithdrawParams,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	userData := p.UserData
	if userData == nil {
		userData = []byte{}
	}
	call := chain.NewCall(
		constants.GAS_OPTIONS_EXPRESS_WITHDRAW,
		"initiateExpressWithdraw",
		p.Collateral,
		p.Amount,
		p.To,
		p.Provider,
		userData,
	)
	return c.contract.Exec(ctx, call, opts...)
}

// ParseUserData reads express-withdraw user data: 0x-prefixed input is hex,
// anything else is taken as UTF-8 text.
func ParseUserData(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []byte{}, nil
	}
	if strings.HasPrefix(raw, "0x") {
		return utils.HexToBytes(raw)
	}
	return []byte(raw), nil
}

func (c *Client) DeactivateInstantActionMode(ctx context.Context, opts ...chain.SendOption) (*chain.Result, error) {
	call := chain.NewCall(constants.GAS_OPTIONS_DEACTIVATE, "deactivateInstantActionMode")
	return c.contract.Exec(ctx, call, opts...)
}

func (c *Client) CancelCloseIntent(ctx context.Context, intentIDs []*big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	if len(intentIDs) == 0 {
		return nil, fmt.Errorf("at least one intent id is required")
	}
	call := chain.NewCall(constants.GAS_OPTIONS_CANCEL_CLOSE, "cancelCloseIntent", intentIDs)
	return c.contract.Exec(ctx, call, opts...)
}

/*//////////////////////////////////////////////////////////////
                              VIEWS
//////////////////////////////////////////////////////////////*/

func (c *Client) GetNonce(ctx context.Context, party, counterParty common.Address) (*big.Int, error) {
	return c.uintView(ctx, "getNonce", party, counterParty)
}

func (c *Client) IsInstantLayerPaused(ctx context.Context) (bool, error) {
	return c.boolView(ctx, "isInstantLayerPaused")
}

func (c *Client) IsExternalTransferPaused(ctx context.Context) (bool, error) {
	return c.boolView(ctx, "isExternalTransferPaused")
}

func (c *Client) IsPartyBInEmergencyMode(ctx context.Context, partyB common.Address) (bool, error) {
	return c.boolView(ctx, "isPartyBInEmergencyMode", partyB)
}

func (c *Client) GetLastOpenIntentID(ctx context.Context) (*big.Int, error) {
	return c.uintView(ctx, "getLastOpenIntentId")
}

func (c *Client) GetActiveOpenIntentsCount(ctx context.Context, user common.Address) (*big.Int, error) {
	return c.uintView(ctx, "getActiveOpenIntentsCount", user)
}

func (c *Client) GetIsolatedLockedBalance(ctx context.Context, user, collateral common.Address) (*big.Int, error) {
	return c.uintView(ctx, "getIsolatedLockedBalance", user, collateral)
}

func (c *Client) IsWhitelistedCollateral(ctx context.Context, collateral common.Address) (bool, error) {
	return c.boolView(ctx, "isWhitelistedCollateral", collateral)
}

// State is a snapshot of the instant layer switches.
type State struct {
	InstantLayerPaused     bool
	ExternalTransferPaused bool
	LastOpenIntentID       *big.Int
}

func (c *Client) State(ctx context.Context) (State, error) {
	var state State
	var err error
	if state.InstantLayerPaused, err = c.IsInstantLayerPaused(ctx); err != nil {
		return State{}, err
	}
	if state.ExternalTransferPaused, err = c.IsExternalTransferPaused(ctx); err != nil {
		return State{}, err
	}
	if state.LastOpenIntentID, err = c.GetLastOpenIntentID(ctx); err != nil {
		return State{}, err
	}
	return state, nil
}

func (c *Client) uintView(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out := new(big.Int)
	if err := c.contract.CallInto(ctx, out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) boolView(ctx context.Context, method string, args ...any) (bool, error) {
	var out bool
	err := c.contract.CallInto(ctx, &out, method, args...)
	return out, err
}
