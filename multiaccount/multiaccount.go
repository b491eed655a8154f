// Package multiaccount binds the MultiAccount contract, which owns trading
// sub-accounts and forwards diamond calls on their behalf.
package multiaccount

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/banky/go-symmio/abis"
	"github.com/banky/go-symmio/chain"
	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/erc20"
	"github.com/banky/go-symmio/symmio"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

// MultiAccount method names.
const (
	METHOD_CALL                             = "_call"
	METHOD_ADD_ACCOUNT                      = "addAccount"
	METHOD_EDIT_ACCOUNT_NAME                = "editAccountName"
	METHOD_DEPOSIT_FOR_ACCOUNT              = "depositForAccount"
	METHOD_DEPOSIT_AND_ALLOCATE_FOR_ACCOUNT = "depositAndAllocateForAccount"
	METHOD_WITHDRAW_FROM_ACCOUNT            = "withdrawFromAccount"
	METHOD_DELEGATE_ACCESS                  = "delegateAccess"
	METHOD_DELEGATE_ACCESSES                = "delegateAccesses"
)

// Config for initializing a MultiAccount
type Config struct {
	Address common.Address
	// ABI defaults to the embedded MultiAccount.json
	ABI *abi.ABI
	// Diamond encodes the calls forwarded to sub-accounts
	Diamond   *symmio.Diamond
	Backend   chain.Backend
	Submitter *chain.Submitter
	// Collateral is approved before deposits
	Collateral common.Address
	Logger     *zerolog.Logger
}

type MultiAccount struct {
	contract   *chain.Contract
	diamond    *symmio.Diamond
	backend    chain.Backend
	submitter  *chain.Submitter
	collateral common.Address
	logger     zerolog.Logger
}

// Account is one entry of getAccounts.
type Account struct {
	AccountAddress common.Address
	Name           string
}

func New(cfg Config) (*MultiAccount, error) {
	if cfg.Address == constants.ZERO_ADDRESS {
		return nil, fmt.Errorf("multi-account address is required")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	if cfg.Diamond == nil {
		return nil, fmt.Errorf("diamond is required to encode forwarded calls")
	}

	parsed := cfg.ABI
	if parsed == nil {
		embedded := abis.MustLoad(abis.MULTIACCOUNT)
		parsed = &embedded
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("contract", "multiaccount").Logger()
	}

	return &MultiAccount{
		contract:   chain.NewContract(cfg.Address, parsed, cfg.Backend, cfg.Submitter),
		diamond:    cfg.Diamond,
		backend:    cfg.Backend,
		submitter:  cfg.Submitter,
		collateral: cfg.Collateral,
		logger:     logger,
	}, nil
}

func (m *MultiAccount) Address() common.Address {
	return m.contract.Address
}

/*//////////////////////////////////////////////////////////////
                        FORWARDED CALLS
//////////////////////////////////////////////////////////////*/

// WrapCall builds _call(account, callDatas). The inner calls carry no gas
// of their own; the outer limit covers them all.
func WrapCall(account common.Address, callDatas [][]byte) chain.Call {
	if callDatas == nil {
		callDatas = [][]byte{}
	}
	return chain.NewCall(constants.GAS_MULTIACCOUNT_CALL, METHOD_CALL, account, callDatas)
}

// Wrap encodes calls against the diamond ABI and wraps them for account.
func (m *MultiAccount) Wrap(account common.Address, calls ...chain.Call) (chain.Call, error) {
	if len(calls) == 0 {
		return chain.Call{}, fmt.Errorf("at least one call is required")
	}

	datas := make([][]byte, len(calls))
	methods := make([]string, len(calls))
	var fingerprint common.Hash
	for i, call := range calls {
		data, err := m.diamond.Pack(call)
		if err != nil {
			return chain.Call{}, err
		}
		datas[i] = data
		methods[i] = call.Method
		if fingerprint == (common.Hash{}) {
			fingerprint = call.Fingerprint
		}
	}

	wrapped := WrapCall(account, datas)
	wrapped.Fingerprint = fingerprint

	m.logger.Debug().
		Str("account", account.Hex()).
		Strs("methods", methods).
		Msg("wrapped diamond calls")
	return wrapped, nil
}

// Call forwards calls to the diamond as account in one transaction.
func (m *MultiAccount) Call(
	ctx context.Context,
	account common.Address,
	calls []chain.Call,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	wrapped, err := m.Wrap(account, calls...)
	if err != nil {
		return nil, err
	}
	return m.contract.Exec(ctx, wrapped, opts...)
}

// Proxy executes diamond calls as one sub-account. It can stand in for
// the diamond wherever a flow submits a prepared call.
type Proxy struct {
	multi   *MultiAccount
	account common.Address
}

var _ symmio.Executor = (*Proxy)(nil)

func (m *MultiAccount) For(account common.Address) *Proxy {
	return &Proxy{multi: m, account: account}
}

func (p *Proxy) Account() common.Address {
	return p.account
}

func (p *Proxy) Exec(ctx context.Context, call chain.Call, opts ...chain.SendOption) (*chain.Result, error) {
	return p.multi.Call(ctx, p.account, []chain.Call{call}, opts...)
}

func (p *Proxy) RequestToClosePosition(
	ctx context.Context,
	req symmio.CloseRequest,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return p.Exec(ctx, symmio.RequestToClosePositionCall(req), opts...)
}

func (p *Proxy) RequestToCancelQuote(ctx context.Context, quoteID *big.Int, opts ...chain.SendOption) (*chain.Result, error) {
	return p.Exec(ctx, symmio.RequestToCancelQuoteCall(quoteID), opts...)
}

func (p *Proxy) RequestToCancelCloseRequest(
	ctx context.Context,
	quoteID *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	return p.Exec(ctx, symmio.RequestToCancelCloseRequestCall(quoteID), opts...)
}

/*//////////////////////////////////////////////////////////////
                       ACCOUNT MANAGEMENT
//////////////////////////////////////////////////////////////*/

func (m *MultiAccount) AddAccount(ctx context.Context, name string, opts ...chain.SendOption) (*chain.Result, error) {
	return m.contract.Exec(ctx, chain.NewCall(constants.GAS_MULTIACCOUNT_ADD, METHOD_ADD_ACCOUNT, name), opts...)
}

func (m *MultiAccount) EditAccountName(
	ctx context.Context,
	account common.Address,
	name string,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	call := chain.NewCall(constants.GAS_MULTIACCOUNT_ACCOUNT, METHOD_EDIT_ACCOUNT_NAME, account, name)
	return m.contract.Exec(ctx, call, opts...)
}

// DepositForAccount approves the collateral for the multi-account and
// deposits amount into account.
func (m *MultiAccount) DepositForAccount(
	ctx context.Context,
	account common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	if err := m.approve(ctx, amount); err != nil {
		return nil, err
	}
	call := chain.NewCall(constants.GAS_MULTIACCOUNT_ACCOUNT, METHOD_DEPOSIT_FOR_ACCOUNT, account, amount)
	return m.contract.Exec(ctx, call, opts...)
}

// DepositAndAllocateForAccount approves the collateral, then deposits
// amount into account and allocates it.
func (m *MultiAccount) DepositAndAllocateForAccount(
	ctx context.Context,
	account common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	if err := m.approve(ctx, amount); err != nil {
		return nil, err
	}
	call := chain.NewCall(constants.GAS_MULTIACCOUNT_ACCOUNT, METHOD_DEPOSIT_AND_ALLOCATE_FOR_ACCOUNT, account, amount)
	return m.contract.Exec(ctx, call, opts...)
}

func (m *MultiAccount) WithdrawFromAccount(
	ctx context.Context,
	account common.Address,
	amount *big.Int,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	call := chain.NewCall(constants.GAS_MULTIACCOUNT_ACCOUNT, METHOD_WITHDRAW_FROM_ACCOUNT, account, amount)
	return m.contract.Exec(ctx, call, opts...)
}

func (m *MultiAccount) approve(ctx context.Context, amount *big.Int) error {
	if m.collateral == constants.ZERO_ADDRESS {
		return fmt.Errorf("collateral address is required to deposit")
	}
	token := erc20.New(m.collateral, nil, m.backend, m.submitter)
	res, err := token.Approve(ctx, constants.GAS_MULTIACCOUNT_APPROVE, m.Address(), amount)
	if err != nil {
		return fmt.Errorf("failed to approve collateral: %w", err)
	}
	m.logger.Info().
		Str("tx_hash", res.Hash.Hex()).
		Str("amount", amount.String()).
		Msg("collateral approved")
	return nil
}

// DelegateAccess grants or revokes target's right to call one diamond
// function on account. method is a diamond method name or a 0x selector.
func (m *MultiAccount) DelegateAccess(
	ctx context.Context,
	account common.Address,
	target common.Address,
	method string,
	state bool,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	selector, err := m.Selector(method)
	if err != nil {
		return nil, err
	}
	call := chain.NewCall(constants.GAS_MULTIACCOUNT_DELEGATE, METHOD_DELEGATE_ACCESS, account, target, selector, state)
	return m.contract.Exec(ctx, call, opts...)
}

func (m *MultiAccount) DelegateAccesses(
	ctx context.Context,
	account common.Address,
	target common.Address,
	methods []string,
	state bool,
	opts ...chain.SendOption,
) (*chain.Result, error) {
	selectors := make([][4]byte, len(methods))
	for i, method := range methods {
		selector, err := m.Selector(method)
		if err != nil {
			return nil, err
		}
		selectors[i] = selector
	}
	call := chain.NewCall(constants.GAS_MULTIACCOUNT_DELEGATES, METHOD_DELEGATE_ACCESSES, account, target, selectors, state)
	return m.contract.Exec(ctx, call, opts...)
}

// Selector resolves a diamond method name, or a 4-byte hex selector, to
// its selector.
func (m *MultiAccount) Selector(method string) ([4]byte, error) {
	var selector [4]byte

	if strings.HasPrefix(method, "0x") {
		raw, err := hexutil.Decode(method)
		if err != nil || len(raw) != 4 {
			return selector, fmt.Errorf("invalid selector %q", method)
		}
		copy(selector[:], raw)
		return selector, nil
	}

	abiMethod, ok := m.diamond.ABI().Methods[method]
	if !ok {
		return selector, fmt.Errorf("unknown diamond method %q", method)
	}
	copy(selector[:], abiMethod.ID)
	return selector, nil
}

/*//////////////////////////////////////////////////////////////
                              VIEWS
//////////////////////////////////////////////////////////////*/

func (m *MultiAccount) GetAccounts(ctx context.Context, user common.Address, start, size *big.Int) ([]Account, error) {
	var accounts []Account
	if err := m.contract.CallInto(ctx, &accounts, "getAccounts", user, start, size); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (m *MultiAccount) GetAccountsLength(ctx context.Context, user common.Address) (*big.Int, error) {
	out := new(big.Int)
	if err := m.contract.CallInto(ctx, out, "getAccountsLength", user); err != nil {
		return nil, err
	}
	return out, nil
}

// Owner returns the user that owns account.
func (m *MultiAccount) Owner(ctx context.Context, account common.Address) (common.Address, error) {
	var owner common.Address
	err := m.contract.CallInto(ctx, &owner, "owners", account)
	return owner, err
}
